package flight

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/opd-ai/go-arcadeflight/pkg/physics"
)

// Stabilization levels the wings when the roll stick is near neutral.
// Any roll input at or beyond RollNeutralBand suppresses it entirely.
func Stabilization(axes physics.Axes, rollInput, rollDeg, strength, dt float64) (mgl64.Vec3, bool) {
	if math.IsNaN(rollInput) || math.Abs(rollInput) >= RollNeutralBand {
		return mgl64.Vec3{}, false
	}
	rollDeg = physics.NormalizeAngle(rollDeg)
	return axes.Forward.Mul(-rollDeg * strength * dt), true
}
