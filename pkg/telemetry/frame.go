// Package telemetry carries per-tick flight data out of the simulation
// loop: HUD text, a bounded non-blocking pipeline and the sinks behind it.
package telemetry

import (
	"context"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/opd-ai/go-arcadeflight/pkg/flight"
	"github.com/opd-ai/go-arcadeflight/pkg/physics"
)

// Frame is one aircraft's state after a simulation tick.
type Frame struct {
	Tick       uint64
	Time       float64
	AircraftID string

	Throttle float64
	Speed    float64
	Altitude float64
	// Bank and AngleOfAttack are in degrees.
	Bank          float64
	AngleOfAttack float64

	Airflow     bool
	Turning     bool
	Stabilizing bool

	Position mgl64.Vec3
	Velocity mgl64.Vec3
	Force    mgl64.Vec3
	Torque   mgl64.Vec3
}

// NewFrame samples a controller after its body has been stepped. out is the
// force output that produced the step.
func NewFrame(tick uint64, simTime float64, aircraftID string, c *flight.Controller, out flight.Output) Frame {
	f := Frame{
		Tick:          tick,
		Time:          simTime,
		AircraftID:    aircraftID,
		Throttle:      c.Throttle(),
		Speed:         c.Speed(),
		Altitude:      c.Altitude(),
		Bank:          c.Bank(),
		AngleOfAttack: mgl64.RadToDeg(out.Airflow.AngleOfAttack),
		Airflow:       out.Airflow.Active,
		Turning:       out.Turning,
		Stabilizing:   out.Stabilizing,
		Force:         out.Force(),
		Torque:        out.Torque(),
	}
	if body := c.Body(); body != nil {
		f.Position = body.Position()
		f.Velocity = physics.Sanitize(body.LinearVelocity())
	}
	return f
}

// Sink consumes frames. Write is called from a single goroutine.
type Sink interface {
	Write(ctx context.Context, f Frame) error
	Close() error
}

// SinkFunc adapts a function to a Sink with a no-op Close.
type SinkFunc func(ctx context.Context, f Frame) error

func (fn SinkFunc) Write(ctx context.Context, f Frame) error { return fn(ctx, f) }
func (fn SinkFunc) Close() error                             { return nil }
