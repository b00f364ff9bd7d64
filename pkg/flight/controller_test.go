package flight

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/go-arcadeflight/pkg/control"
	"github.com/opd-ai/go-arcadeflight/pkg/physics"
)

// recordingBody is a fixed-state body that records submitted commands.
type recordingBody struct {
	position    mgl64.Vec3
	orientation mgl64.Quat
	velocity    mgl64.Vec3
	forces      []mgl64.Vec3
	torques     []mgl64.Vec3
	settings    *physics.BodySettings
}

func (b *recordingBody) Position() mgl64.Vec3       { return b.position }
func (b *recordingBody) Orientation() mgl64.Quat    { return b.orientation }
func (b *recordingBody) LinearVelocity() mgl64.Vec3 { return b.velocity }

func (b *recordingBody) AddForce(f mgl64.Vec3, mode physics.ForceMode) {
	if mode == physics.ForceModeForce {
		b.forces = append(b.forces, f)
	}
}

func (b *recordingBody) AddTorque(t mgl64.Vec3, mode physics.ForceMode) {
	if mode == physics.ForceModeForce {
		b.torques = append(b.torques, t)
	}
}

func (b *recordingBody) Configure(s physics.BodySettings) { b.settings = &s }

func sum(vs []mgl64.Vec3) mgl64.Vec3 {
	var total mgl64.Vec3
	for _, v := range vs {
		total = total.Add(v)
	}
	return total
}

type fixedInputs control.Inputs

func (f fixedInputs) Snapshot() control.Inputs { return control.Inputs(f) }

func TestController_UnwiredIsNoOp(t *testing.T) {
	c := NewController(DefaultTunables())
	out := c.Step(1.0 / 60)
	assert.False(t, out.Applied)
	assert.Equal(t, Output{}, out)

	body := &recordingBody{orientation: mgl64.QuatIdent()}
	c.Attach(body)
	out = c.Step(1.0 / 60)
	assert.False(t, out.Applied, "no input source")
	assert.Empty(t, body.forces)
	assert.Equal(t, 0.0, c.Throttle())
}

func TestController_AttachConfiguresBody(t *testing.T) {
	body := &recordingBody{orientation: mgl64.QuatIdent()}
	NewController(DefaultTunables()).Attach(body)

	require.NotNil(t, body.settings)
	assert.Equal(t, 1000.0, body.settings.Mass)
	assert.Equal(t, 0.1, body.settings.LinearDamping)
	assert.Equal(t, 2.0, body.settings.AngularDamping)
	assert.True(t, body.settings.UseGravity)
	assert.True(t, body.settings.Interpolate)
}

func TestController_SubmitsOutput(t *testing.T) {
	body := &recordingBody{
		position:    mgl64.Vec3{0, 500, 0},
		orientation: mgl64.QuatRotate(mgl64.DegToRad(30), physics.WorldForward),
		velocity:    mgl64.Vec3{0, -5, 60},
	}
	c := NewController(DefaultTunables(), WithInputs(fixedInputs{Pitch: 0.2, Throttle: 1}))
	c.Attach(body)

	out := c.Step(1.0 / 60)

	require.True(t, out.Applied)
	assert.True(t, out.Airflow.Active)
	assert.True(t, out.Turning)
	assert.True(t, out.Stabilizing)
	assert.InDelta(t, 30, out.Bank, 1e-9)
	assert.NotEqual(t, mgl64.Vec3{}, out.Lift)

	assert.InDelta(t, 0, sum(body.forces).Sub(out.Force()).Len(), 1e-9)
	assert.InDelta(t, 0, sum(body.torques).Sub(out.Torque()).Len(), 1e-9)
	assert.Len(t, body.forces, 3, "thrust, lift, turn")
	assert.Len(t, body.torques, 3, "control, coordination, stabilization")
	assert.Equal(t, out, c.Last())
}

func TestController_NoLiftOrTurnBelowAirflowSpeed(t *testing.T) {
	body := &recordingBody{
		orientation: mgl64.QuatRotate(mgl64.DegToRad(45), physics.WorldForward),
		velocity:    mgl64.Vec3{0, -3, 4},
	}
	c := NewController(DefaultTunables(), WithInputs(fixedInputs{Roll: 0.5}))
	c.Attach(body)

	out := c.Step(1.0 / 60)

	assert.False(t, out.Airflow.Active)
	assert.Equal(t, mgl64.Vec3{}, out.Lift)
	assert.Equal(t, mgl64.Vec3{}, out.TurnForce)
	assert.Equal(t, mgl64.Vec3{}, out.CoordinationTorque)
	assert.False(t, out.Turning)
	assert.False(t, out.Stabilizing, "roll input overrides self-leveling")
	assert.Len(t, body.forces, 1, "thrust only")
	assert.Len(t, body.torques, 1, "control only")
}

func TestController_Queries(t *testing.T) {
	body := &recordingBody{
		position:    mgl64.Vec3{10, 321, -4},
		orientation: mgl64.QuatIdent(),
		velocity:    mgl64.Vec3{3, 0, 4},
	}
	c := NewController(DefaultTunables(), WithInputs(fixedInputs{Throttle: 1}))

	assert.Equal(t, 0.0, c.Speed())
	assert.Equal(t, 0.0, c.Altitude())

	c.Attach(body)
	c.Step(1)

	assert.InDelta(t, 0.3, c.Throttle(), eps)
	assert.InDelta(t, 5, c.Speed(), eps)
	assert.Equal(t, 321.0, c.Altitude())
	assert.InDelta(t, 0, c.Bank(), eps)
}

// simulate runs a full controller and reference body for a fixed input script.
func simulate(ticks int) []Output {
	latch := control.NewLatch()
	body := physics.NewBody(mgl64.Vec3{0, 500, 0}, mgl64.QuatIdent())
	body.SetLinearVelocity(mgl64.Vec3{0, 0, 60})
	c := NewController(DefaultTunables(), WithInputs(latch))
	c.Attach(body)

	script := map[int]control.AxisEvent{
		0:   {Axis: control.AxisThrottle, Value: 1},
		30:  {Axis: control.AxisRoll, Value: 0.6},
		90:  {Axis: control.AxisRoll, Phase: control.PhaseCanceled},
		120: {Axis: control.AxisPitch, Value: -0.3},
		200: {Axis: control.AxisYaw, Value: 0.4},
	}

	outputs := make([]Output, 0, ticks)
	for i := 0; i < ticks; i++ {
		if ev, ok := script[i]; ok {
			latch.Apply(ev)
		}
		outputs = append(outputs, c.Step(1.0/60))
		body.Step(1.0 / 60)
	}
	return outputs
}

func TestController_Deterministic(t *testing.T) {
	first := simulate(400)
	second := simulate(400)

	require.Len(t, second, len(first))
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("tick %d diverged: %+v != %+v", i, first[i], second[i])
		}
	}
}

func TestController_StabilizationLevelsWings(t *testing.T) {
	body := physics.NewBody(mgl64.Vec3{0, 1000, 0}, mgl64.QuatRotate(mgl64.DegToRad(30), physics.WorldForward))
	body.SetLinearVelocity(mgl64.Vec3{0, 0, 80})
	c := NewController(DefaultTunables(), WithInputs(control.NewLatch()))
	c.Attach(body)

	start := c.Bank()
	for i := 0; i < 600; i++ {
		c.Step(1.0 / 60)
		body.Step(1.0 / 60)
	}

	assert.Less(t, abs(c.Bank()), abs(start))
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
