package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// DefaultGravity is the standard downward acceleration along world Y.
const DefaultGravity = -9.81

// Body is a reference rigid body with a semi-implicit Euler integrator.
// It is not safe for concurrent use; the simulation steps it from a
// single goroutine.
type Body struct {
	position        mgl64.Vec3
	orientation     mgl64.Quat
	velocity        mgl64.Vec3
	angularVelocity mgl64.Vec3

	prevPosition    mgl64.Vec3
	prevOrientation mgl64.Quat

	force  mgl64.Vec3
	torque mgl64.Vec3

	settings     BodySettings
	gravity      float64
	groundHeight float64
	hasGround    bool
}

// NewBody creates a unit-mass body at rest.
func NewBody(position mgl64.Vec3, orientation mgl64.Quat) *Body {
	orientation = orientation.Normalize()
	return &Body{
		position:        position,
		orientation:     orientation,
		prevPosition:    position,
		prevOrientation: orientation,
		gravity:         DefaultGravity,
		settings: BodySettings{
			Mass:    1,
			Inertia: mgl64.Vec3{1, 1, 1},
		},
	}
}

// Configure replaces the body settings. A non-positive mass keeps the
// previous mass.
func (b *Body) Configure(settings BodySettings) {
	if settings.Mass <= 0 || math.IsNaN(settings.Mass) {
		settings.Mass = b.settings.Mass
	}
	b.settings = settings
}

func (b *Body) Settings() BodySettings { return b.settings }

// SetGravity sets the acceleration applied along world Y when UseGravity is on.
func (b *Body) SetGravity(g float64) { b.gravity = g }

// SetGround enables a flat ground plane at the given height.
func (b *Body) SetGround(height float64) {
	b.groundHeight = height
	b.hasGround = true
}

func (b *Body) Position() mgl64.Vec3        { return b.position }
func (b *Body) Orientation() mgl64.Quat     { return b.orientation }
func (b *Body) LinearVelocity() mgl64.Vec3  { return b.velocity }
func (b *Body) AngularVelocity() mgl64.Vec3 { return b.angularVelocity }

func (b *Body) SetPosition(p mgl64.Vec3) {
	b.position = Sanitize(p)
	b.prevPosition = b.position
}

func (b *Body) SetOrientation(q mgl64.Quat) {
	b.orientation = q.Normalize()
	b.prevOrientation = b.orientation
}

func (b *Body) SetLinearVelocity(v mgl64.Vec3)  { b.velocity = Sanitize(v) }
func (b *Body) SetAngularVelocity(w mgl64.Vec3) { b.angularVelocity = Sanitize(w) }

// PendingForce returns the force accumulated since the last step.
func (b *Body) PendingForce() mgl64.Vec3 { return b.force }

// PendingTorque returns the torque accumulated since the last step.
func (b *Body) PendingTorque() mgl64.Vec3 { return b.torque }

// AddForce accumulates a world-space force. Non-finite vectors are ignored.
func (b *Body) AddForce(force mgl64.Vec3, mode ForceMode) {
	if !Finite(force) {
		return
	}
	switch mode {
	case ForceModeImpulse:
		b.velocity = b.velocity.Add(force.Mul(1 / b.settings.Mass))
	default:
		b.force = b.force.Add(force)
	}
}

// AddTorque accumulates a world-space torque. Non-finite vectors are ignored.
func (b *Body) AddTorque(torque mgl64.Vec3, mode ForceMode) {
	if !Finite(torque) {
		return
	}
	switch mode {
	case ForceModeImpulse:
		b.angularVelocity = b.angularVelocity.Add(b.applyInverseInertia(torque))
	default:
		b.torque = b.torque.Add(torque)
	}
}

// applyInverseInertia maps a world torque to the angular acceleration it
// produces, using the diagonal inertia in body axes.
func (b *Body) applyInverseInertia(torque mgl64.Vec3) mgl64.Vec3 {
	local := b.orientation.Conjugate().Rotate(torque)
	for i := range local {
		inertia := b.settings.Inertia[i]
		if inertia <= 0 || math.IsNaN(inertia) {
			local[i] = 0
			continue
		}
		local[i] /= inertia
	}
	return b.orientation.Rotate(local)
}

// Step advances the body by dt seconds and clears the accumulated force
// and torque. A non-positive or non-finite dt leaves the body untouched.
func (b *Body) Step(dt float64) {
	if dt <= 0 || math.IsNaN(dt) || math.IsInf(dt, 0) {
		return
	}

	b.prevPosition = b.position
	b.prevOrientation = b.orientation

	accel := b.force.Mul(1 / b.settings.Mass)
	if b.settings.UseGravity {
		accel = accel.Add(mgl64.Vec3{0, b.gravity, 0})
	}
	b.velocity = b.velocity.Add(accel.Mul(dt)).Mul(1 / (1 + b.settings.LinearDamping*dt))

	alpha := b.applyInverseInertia(b.torque)
	b.angularVelocity = b.angularVelocity.Add(alpha.Mul(dt)).Mul(1 / (1 + b.settings.AngularDamping*dt))

	b.position = b.position.Add(b.velocity.Mul(dt))

	spin := mgl64.Quat{W: 0, V: b.angularVelocity}.Mul(b.orientation).Scale(0.5 * dt)
	b.orientation = b.orientation.Add(spin).Normalize()

	if b.hasGround && b.position.Y() < b.groundHeight {
		b.position[1] = b.groundHeight
		if b.velocity.Y() < 0 {
			b.velocity[1] = 0
		}
	}

	b.force = mgl64.Vec3{}
	b.torque = mgl64.Vec3{}
}

// Interpolated returns the pose blended between the previous and current
// step. alpha is clamped to [0, 1]. With interpolation disabled the
// current pose is returned.
func (b *Body) Interpolated(alpha float64) (mgl64.Vec3, mgl64.Quat) {
	if !b.settings.Interpolate {
		return b.position, b.orientation
	}
	alpha = Clamp01(alpha)
	pos := b.prevPosition.Add(b.position.Sub(b.prevPosition).Mul(alpha))
	rot := mgl64.QuatSlerp(b.prevOrientation, b.orientation, alpha)
	return pos, rot
}
