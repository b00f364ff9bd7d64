package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/opd-ai/go-arcadeflight/pkg/telemetry"

// Metrics records simulation counters through OpenTelemetry. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	ticks        metric.Int64Counter
	tickDuration metric.Float64Histogram
	published    metric.Int64Counter
	dropped      metric.Int64Counter
	sinkErrors   metric.Int64Counter
	airflow      metric.Int64Counter
}

// NewMetrics creates the instruments on meter, or on the global meter
// provider when meter is nil.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}

	var (
		m   Metrics
		err error
	)
	if m.ticks, err = meter.Int64Counter(
		"flight.sim.ticks",
		metric.WithDescription("Simulation ticks executed"),
	); err != nil {
		return nil, err
	}
	if m.tickDuration, err = meter.Float64Histogram(
		"flight.sim.tick.duration",
		metric.WithDescription("Wall time spent computing one tick"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if m.published, err = meter.Int64Counter(
		"flight.telemetry.frames",
		metric.WithDescription("Telemetry frames accepted by the pipeline"),
	); err != nil {
		return nil, err
	}
	if m.dropped, err = meter.Int64Counter(
		"flight.telemetry.dropped",
		metric.WithDescription("Telemetry frames dropped due to a full buffer"),
	); err != nil {
		return nil, err
	}
	if m.sinkErrors, err = meter.Int64Counter(
		"flight.telemetry.sink.errors",
		metric.WithDescription("Frames a sink failed to write"),
	); err != nil {
		return nil, err
	}
	if m.airflow, err = meter.Int64Counter(
		"flight.airflow.transitions",
		metric.WithDescription("Aircraft crossing the airflow speed gate"),
	); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Metrics) RecordTick(ctx context.Context, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ticks.Add(ctx, 1)
	m.tickDuration.Record(ctx, float64(elapsed)/float64(time.Millisecond))
}

func (m *Metrics) FramePublished(ctx context.Context) {
	if m == nil {
		return
	}
	m.published.Add(ctx, 1)
}

func (m *Metrics) FrameDropped(ctx context.Context) {
	if m == nil {
		return
	}
	m.dropped.Add(ctx, 1)
}

func (m *Metrics) SinkError(ctx context.Context, sink string) {
	if m == nil {
		return
	}
	m.sinkErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("sink", sink)))
}

func (m *Metrics) AirflowChanged(ctx context.Context, aircraft string, active bool) {
	if m == nil {
		return
	}
	m.airflow.Add(ctx, 1, metric.WithAttributes(
		attribute.String("aircraft", aircraft),
		attribute.Bool("active", active),
	))
}
