package flight

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/opd-ai/go-arcadeflight/pkg/physics"
)

// Airflow describes the relative wind seen by the wing on one tick.
type Airflow struct {
	// Active is false at or below MinAirflowSpeed.
	Active bool
	Speed  float64
	// Local is the velocity in body axes (right, up, forward).
	Local mgl64.Vec3
	// AngleOfAttack is in radians, zero when inactive.
	AngleOfAttack float64
}

// MeasureAirflow projects the world velocity onto the body axes and applies
// the airflow speed gate.
func MeasureAirflow(velocity mgl64.Vec3, axes physics.Axes) Airflow {
	velocity = physics.Sanitize(velocity)
	local := axes.ToLocal(velocity)
	af := Airflow{Speed: local.Len(), Local: local}
	if af.Speed <= MinAirflowSpeed {
		return af
	}
	af.Active = true
	af.AngleOfAttack = math.Atan2(-local.Y(), local.Z())
	return af
}

// Lift returns up * speed^2 * sin(aoa) * liftFactor, or zero without airflow.
func Lift(af Airflow, axes physics.Axes, liftFactor float64) mgl64.Vec3 {
	if !af.Active {
		return mgl64.Vec3{}
	}
	return axes.Up.Mul(af.Speed * af.Speed * math.Sin(af.AngleOfAttack) * liftFactor)
}
