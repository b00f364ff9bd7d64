package telemetry

import (
	"context"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/go-arcadeflight/pkg/control"
	"github.com/opd-ai/go-arcadeflight/pkg/flight"
	"github.com/opd-ai/go-arcadeflight/pkg/physics"
)

func TestNewFrame(t *testing.T) {
	latch := control.NewLatch()
	latch.Apply(control.AxisEvent{Axis: control.AxisThrottle, Value: 1})

	body := physics.NewBody(mgl64.Vec3{5, 500, 0}, mgl64.QuatRotate(mgl64.DegToRad(20), physics.WorldForward))
	body.SetLinearVelocity(mgl64.Vec3{0, 0, 60})

	c := flight.NewController(flight.DefaultTunables(), flight.WithInputs(latch))
	c.Attach(body)

	out := c.Step(1.0 / 60)
	body.Step(1.0 / 60)

	f := NewFrame(1, 1.0/60, "alpha", c, out)

	assert.Equal(t, uint64(1), f.Tick)
	assert.Equal(t, "alpha", f.AircraftID)
	assert.InDelta(t, 0.005, f.Throttle, 1e-12)
	assert.Equal(t, c.Speed(), f.Speed)
	assert.Equal(t, body.Position().Y(), f.Altitude)
	assert.Equal(t, body.Position(), f.Position)
	assert.True(t, f.Airflow)
	assert.True(t, f.Turning)
	assert.Equal(t, out.Force(), f.Force)
	assert.Equal(t, out.Torque(), f.Torque)
	assert.InDelta(t, 20, f.Bank, 1)
}

func TestNewFrame_Unattached(t *testing.T) {
	c := flight.NewController(flight.DefaultTunables())
	f := NewFrame(3, 0.05, "ghost", c, flight.Output{})

	assert.Equal(t, mgl64.Vec3{}, f.Position)
	assert.Zero(t, f.Speed)
	assert.False(t, f.Airflow)
}

func TestSinkFunc(t *testing.T) {
	var got Frame
	s := SinkFunc(func(_ context.Context, f Frame) error {
		got = f
		return nil
	})
	require.NoError(t, s.Write(context.Background(), Frame{Tick: 4}))
	require.NoError(t, s.Close())
	assert.Equal(t, uint64(4), got.Tick)
}
