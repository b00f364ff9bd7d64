package flight

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/opd-ai/go-arcadeflight/pkg/physics"
)

// ControlTorque maps the three rotational stick axes onto the body axes.
// Pitch acts about right, roll about forward and yaw about up, each
// linear in its input and scaled by dt. With right-handed rotation a
// positive pitch input drops the nose and a positive roll input raises
// the right wing.
func ControlTorque(axes physics.Axes, pitch, roll, yaw float64, t Tunables, dt float64) mgl64.Vec3 {
	return axes.Right.Mul(pitch * t.PitchTorque * dt).
		Add(axes.Forward.Mul(roll * t.RollTorque * dt)).
		Add(axes.Up.Mul(yaw * t.YawTorque * dt))
}
