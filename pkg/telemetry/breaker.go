package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker"

	"github.com/opd-ai/go-arcadeflight/pkg/logging"
)

// BreakerSettings configures the circuit breaker in front of a remote sink.
type BreakerSettings struct {
	Name                string
	MaxRequests         uint32
	Interval            time.Duration
	Timeout             time.Duration
	MaxConsecutiveFails uint32
}

// Guard wraps a sink with a circuit breaker. While the circuit is open,
// frames are rejected immediately instead of waiting on a failing backend.
type Guard struct {
	name     string
	sink     Sink
	breaker  *gobreaker.CircuitBreaker
	logger   *logging.Logger
	rejected atomic.Uint64
}

// NewGuard creates a guarded sink. A zero MaxConsecutiveFails trips after
// a single failure.
func NewGuard(sink Sink, settings BreakerSettings, logger *logging.Logger) *Guard {
	if logger == nil {
		logger = logging.Discard()
	}
	maxFails := settings.MaxConsecutiveFails
	if maxFails == 0 {
		maxFails = 1
	}

	g := &Guard{name: settings.Name, sink: sink, logger: logger}
	g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        settings.Name,
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFails
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info(context.Background(), "circuit breaker state changed",
				"name", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})
	return g
}

// Write forwards the frame through the circuit breaker.
func (g *Guard) Write(ctx context.Context, f Frame) error {
	_, err := g.breaker.Execute(func() (interface{}, error) {
		return nil, g.sink.Write(ctx, f)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			g.rejected.Add(1)
		}
		return fmt.Errorf("circuit breaker %s: %w", g.name, err)
	}
	return nil
}

// Close closes the wrapped sink.
func (g *Guard) Close() error { return g.sink.Close() }

// State returns the current breaker state.
func (g *Guard) State() gobreaker.State { return g.breaker.State() }

// Counts returns the breaker's request counters for the current interval.
func (g *Guard) Counts() gobreaker.Counts { return g.breaker.Counts() }

// Rejected is the number of frames refused while the circuit was open.
func (g *Guard) Rejected() uint64 { return g.rejected.Load() }

// Name identifies the guarded sink.
func (g *Guard) Name() string { return g.name }
