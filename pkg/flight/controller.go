package flight

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/opd-ai/go-arcadeflight/pkg/control"
	"github.com/opd-ai/go-arcadeflight/pkg/physics"
)

// InputSource supplies the pilot inputs read at the start of each tick.
type InputSource interface {
	Snapshot() control.Inputs
}

// Output is every contribution the controller submitted on one tick.
type Output struct {
	Thrust              mgl64.Vec3
	ControlTorque       mgl64.Vec3
	Lift                mgl64.Vec3
	TurnForce           mgl64.Vec3
	CoordinationTorque  mgl64.Vec3
	StabilizationTorque mgl64.Vec3

	Airflow     Airflow
	Turning     bool
	Stabilizing bool
	// Bank is the roll angle in degrees at the start of the tick.
	Bank     float64
	Throttle float64
	// Applied is false when the tick was skipped for lack of a body or inputs.
	Applied bool
}

// Force is the sum of all forces in the output.
func (o Output) Force() mgl64.Vec3 {
	return o.Thrust.Add(o.Lift).Add(o.TurnForce)
}

// Torque is the sum of all torques in the output.
func (o Output) Torque() mgl64.Vec3 {
	return o.ControlTorque.Add(o.CoordinationTorque).Add(o.StabilizationTorque)
}

// Option customizes a Controller.
type Option func(*Controller)

// WithBodySettings overrides the settings applied to the body on Attach.
func WithBodySettings(s physics.BodySettings) Option {
	return func(c *Controller) { c.bodySettings = s }
}

// WithInputs wires the input source at construction.
func WithInputs(src InputSource) Option {
	return func(c *Controller) { c.inputs = src }
}

// Controller runs the per-tick force pipeline for one aircraft.
type Controller struct {
	tunables     Tunables
	bodySettings physics.BodySettings
	engine       *Engine
	body         physics.RigidBody
	inputs       InputSource
	last         Output
}

// NewController creates a controller with the throttle at 0.
func NewController(t Tunables, opts ...Option) *Controller {
	c := &Controller{
		tunables:     t,
		bodySettings: AircraftBodySettings(),
		engine:       NewEngine(t),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Attach binds the controller to a body. Bodies that accept settings are
// configured once here, before the first tick.
func (c *Controller) Attach(body physics.RigidBody) {
	c.body = body
	if cfg, ok := body.(physics.Configurable); ok {
		cfg.Configure(c.bodySettings)
	}
}

// SetInputs replaces the input source.
func (c *Controller) SetInputs(src InputSource) { c.inputs = src }

// Step computes and submits one tick of forces and torques. Without a body
// or an input source it does nothing and returns a zero Output.
func (c *Controller) Step(dt float64) Output {
	if c.body == nil || c.inputs == nil {
		return Output{}
	}
	if dt < 0 || math.IsNaN(dt) || math.IsInf(dt, 0) {
		dt = 0
	}

	in := c.inputs.Snapshot()
	axes := physics.AxesFromOrientation(c.body.Orientation())
	velocity := c.body.LinearVelocity()

	out := Output{Applied: true, Bank: axes.BankDegrees()}

	out.Thrust = c.engine.Step(in.Throttle, dt, axes.Forward)
	out.Throttle = c.engine.Throttle()
	c.body.AddForce(out.Thrust, physics.ForceModeForce)

	out.ControlTorque = ControlTorque(axes, in.Pitch, in.Roll, in.Yaw, c.tunables, dt)
	c.body.AddTorque(out.ControlTorque, physics.ForceModeForce)

	out.Airflow = MeasureAirflow(velocity, axes)
	if out.Airflow.Active {
		out.Lift = Lift(out.Airflow, axes, c.tunables.LiftFactor)
		c.body.AddForce(out.Lift, physics.ForceModeForce)

		out.TurnForce, out.CoordinationTorque, out.Turning = BankedTurn(axes, out.Bank, out.Airflow.Speed)
		if out.Turning {
			c.body.AddForce(out.TurnForce, physics.ForceModeForce)
			c.body.AddTorque(out.CoordinationTorque, physics.ForceModeForce)
		}
	}

	out.StabilizationTorque, out.Stabilizing = Stabilization(axes, in.Roll, out.Bank, c.tunables.StabilizationStrength, dt)
	if out.Stabilizing {
		c.body.AddTorque(out.StabilizationTorque, physics.ForceModeForce)
	}

	c.last = out
	return out
}

// Throttle returns the engine level in [0, 1].
func (c *Controller) Throttle() float64 { return c.engine.Throttle() }

// Speed returns the magnitude of the body's velocity, 0 when unattached.
func (c *Controller) Speed() float64 {
	if c.body == nil {
		return 0
	}
	return physics.Sanitize(c.body.LinearVelocity()).Len()
}

// Altitude returns the body's vertical position, 0 when unattached.
func (c *Controller) Altitude() float64 {
	if c.body == nil {
		return 0
	}
	return c.body.Position().Y()
}

// Bank returns the current roll angle in degrees, 0 when unattached.
func (c *Controller) Bank() float64 {
	if c.body == nil {
		return 0
	}
	return physics.AxesFromOrientation(c.body.Orientation()).BankDegrees()
}

func (c *Controller) Body() physics.RigidBody { return c.body }
func (c *Controller) Tunables() Tunables       { return c.tunables }

// Last returns the output of the most recent applied tick.
func (c *Controller) Last() Output { return c.last }
