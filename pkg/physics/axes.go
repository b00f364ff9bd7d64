package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Axes is the body frame of a rigid body expressed in world space.
type Axes struct {
	Right   mgl64.Vec3
	Up      mgl64.Vec3
	Forward mgl64.Vec3
}

// AxesFromOrientation derives the local right/up/forward unit vectors from a
// world orientation. The quaternion is normalized first; a zero quaternion
// is treated as identity.
func AxesFromOrientation(q mgl64.Quat) Axes {
	q = q.Normalize()
	return Axes{
		Right:   q.Rotate(WorldRight),
		Up:      q.Rotate(WorldUp),
		Forward: q.Rotate(WorldForward),
	}
}

// ToLocal projects a world-space vector onto the body axes.
// The result is (right, up, forward) components.
func (a Axes) ToLocal(v mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{v.Dot(a.Right), v.Dot(a.Up), v.Dot(a.Forward)}
}

// ToWorld maps body-frame components back into world space.
func (a Axes) ToWorld(local mgl64.Vec3) mgl64.Vec3 {
	return a.Right.Mul(local[0]).Add(a.Up.Mul(local[1])).Add(a.Forward.Mul(local[2]))
}

// BankDegrees returns the rotation about the forward axis in (-180, 180].
// It matches the roll term of a yaw-pitch-roll decomposition: a right wing
// raised above the horizon is positive.
func (a Axes) BankDegrees() float64 {
	return NormalizeAngle(mgl64.RadToDeg(math.Atan2(a.Right.Y(), a.Up.Y())))
}
