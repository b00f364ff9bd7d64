package physics

import "github.com/go-gl/mathgl/mgl64"

// ForceMode selects how AddForce and AddTorque values are interpreted.
type ForceMode int

const (
	// ForceModeForce accumulates a continuous force, applied over the next step.
	ForceModeForce ForceMode = iota
	// ForceModeImpulse changes velocity immediately.
	ForceModeImpulse
)

func (m ForceMode) String() string {
	switch m {
	case ForceModeForce:
		return "force"
	case ForceModeImpulse:
		return "impulse"
	default:
		return "unknown"
	}
}

// RigidBody is the surface the flight model needs from a physics body.
// Forces and torques are world-space vectors; they are accumulated and
// consumed by the body's own integrator.
type RigidBody interface {
	Position() mgl64.Vec3
	Orientation() mgl64.Quat
	LinearVelocity() mgl64.Vec3
	AddForce(force mgl64.Vec3, mode ForceMode)
	AddTorque(torque mgl64.Vec3, mode ForceMode)
}

// BodySettings holds the mass properties and integration flags of a body.
type BodySettings struct {
	Mass           float64
	LinearDamping  float64
	AngularDamping float64
	UseGravity     bool
	Interpolate    bool
	// Inertia is the diagonal of the inertia tensor in body axes.
	Inertia mgl64.Vec3
}

// Configurable is implemented by bodies whose settings can be replaced.
type Configurable interface {
	Configure(settings BodySettings)
}
