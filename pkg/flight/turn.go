package flight

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/opd-ai/go-arcadeflight/pkg/physics"
)

// TurnStrength is the banked-turn force magnitude for a bank in degrees.
func TurnStrength(bankDeg, speed float64) float64 {
	return math.Abs(bankDeg) / 90 * speed * TurnForceScale
}

// BankedTurn returns the world-frame turning force and the coordinating yaw
// torque for the given bank. Both are zero inside the deadband. The turn
// direction is the horizontal vector cross(up, world up); when the wings
// are vertical enough for that to vanish, the force is zero.
func BankedTurn(axes physics.Axes, bankDeg, speed float64) (force, torque mgl64.Vec3, turning bool) {
	bankDeg = physics.NormalizeAngle(bankDeg)
	if math.Abs(bankDeg) <= BankDeadband {
		return mgl64.Vec3{}, mgl64.Vec3{}, false
	}

	dir := physics.SafeNormalize(axes.Up.Cross(physics.WorldUp))
	force = dir.Mul(physics.Sign(bankDeg) * TurnStrength(bankDeg, speed))
	torque = axes.Up.Mul(-bankDeg * CoordinationGain)
	return force, torque, true
}
