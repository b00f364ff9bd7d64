package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/opd-ai/go-arcadeflight/pkg/logging"
)

var (
	// ErrSinkClosed is returned when writing to a closed pipeline or sink.
	ErrSinkClosed = errors.New("telemetry sink closed")
	// ErrBufferFull is returned when a frame is dropped by a full pipeline.
	ErrBufferFull = errors.New("telemetry buffer full")
)

type namedSink struct {
	name     string
	sink     Sink
	failures uint64
}

// Pipeline fans frames out to sinks on a background goroutine. Publish
// never blocks the simulation loop: when the buffer is full the frame is
// dropped and counted.
type Pipeline struct {
	mu      sync.RWMutex
	frames  chan Frame
	sinks   []*namedSink
	started bool
	closed  bool
	done    chan struct{}

	published atomic.Uint64
	dropped   atomic.Uint64

	logger  *logging.Logger
	metrics *Metrics
}

// NewPipeline creates a pipeline holding up to bufferSize pending frames.
func NewPipeline(bufferSize int, logger *logging.Logger, metrics *Metrics) *Pipeline {
	if bufferSize < 1 {
		bufferSize = 1
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Pipeline{
		frames:  make(chan Frame, bufferSize),
		done:    make(chan struct{}),
		logger:  logger,
		metrics: metrics,
	}
}

// AddSink registers a sink. It must be called before Start.
func (p *Pipeline) AddSink(name string, s Sink) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sinks = append(p.sinks, &namedSink{name: name, sink: s})
}

// Start launches the delivery goroutine. Cancelling ctx does not stop
// delivery; Close drains the buffer and stops it.
func (p *Pipeline) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.closed {
		return
	}
	p.started = true
	go p.run(context.WithoutCancel(ctx))
}

func (p *Pipeline) run(ctx context.Context) {
	defer close(p.done)
	for f := range p.frames {
		p.deliver(ctx, f)
	}
}

func (p *Pipeline) deliver(ctx context.Context, f Frame) {
	for _, s := range p.sinks {
		if err := s.sink.Write(ctx, f); err != nil {
			s.failures++
			p.metrics.SinkError(ctx, s.name)
			if s.failures == 1 {
				p.logger.Warn(ctx, "telemetry sink write failed", "sink", s.name, "tick", f.Tick, "error", err.Error())
			} else {
				p.logger.Debug(ctx, "telemetry sink write failed", "sink", s.name, "tick", f.Tick, "failures", s.failures, "error", err.Error())
			}
		}
	}
}

// Publish queues a frame without blocking. It returns ErrBufferFull when
// the frame was dropped and ErrSinkClosed after Close.
func (p *Pipeline) Publish(ctx context.Context, f Frame) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrSinkClosed
	}

	select {
	case p.frames <- f:
		p.published.Add(1)
		p.metrics.FramePublished(ctx)
		return nil
	default:
		p.dropped.Add(1)
		p.metrics.FrameDropped(ctx)
		return ErrBufferFull
	}
}

// Published is the number of frames accepted.
func (p *Pipeline) Published() uint64 { return p.published.Load() }

// Dropped is the number of frames discarded because the buffer was full.
func (p *Pipeline) Dropped() uint64 { return p.dropped.Load() }

// Close stops accepting frames, delivers everything buffered and closes
// every sink. It is safe to call more than once.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.frames)
	started := p.started
	p.mu.Unlock()

	if started {
		<-p.done
	} else {
		p.run(context.Background())
	}

	var errs []error
	for _, s := range p.sinks {
		if err := s.sink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", s.name, err))
		}
	}
	if p.dropped.Load() > 0 {
		p.logger.Warn(context.Background(), "telemetry frames dropped", "dropped", p.dropped.Load(), "published", p.published.Load())
	}
	return errors.Join(errs...)
}
