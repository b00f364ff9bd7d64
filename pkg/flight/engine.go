package flight

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/opd-ai/go-arcadeflight/pkg/physics"
)

// Engine integrates the throttle lever and produces forward thrust.
// The throttle level is the only state the flight model keeps between ticks.
type Engine struct {
	throttle    float64
	maxThrust   float64
	sensitivity float64
}

func NewEngine(t Tunables) *Engine {
	return &Engine{
		maxThrust:   t.MaxThrust,
		sensitivity: t.ThrottleSensitivity,
	}
}

// Step moves the throttle by axis*sensitivity*dt, clamped to [0, 1], and
// returns the thrust along forward.
func (e *Engine) Step(throttleAxis, dt float64, forward mgl64.Vec3) mgl64.Vec3 {
	if dt < 0 || math.IsNaN(dt) || math.IsInf(dt, 0) {
		dt = 0
	}
	e.throttle = physics.Clamp01(e.throttle + throttleAxis*e.sensitivity*dt)
	return forward.Mul(e.throttle * e.maxThrust)
}

// Throttle returns the current level in [0, 1].
func (e *Engine) Throttle() float64 { return e.throttle }
