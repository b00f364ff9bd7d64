// Package flight implements the arcade force model: thrust, control torque,
// lift, banked-turn coordination and roll stabilization. Every tick reads a
// snapshot of the body and the pilot inputs and submits additive forces and
// torques to the body's integrator.
package flight

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/opd-ai/go-arcadeflight/pkg/physics"
)

// Handling constants shared by every aircraft.
const (
	// MinAirflowSpeed is the speed at or below which no lift or turn is produced.
	MinAirflowSpeed = 5.0
	// BankDeadband is the bank angle in degrees that must be exceeded to turn.
	BankDeadband = 10.0
	// TurnForceScale multiplies bank fraction and speed into turn force.
	TurnForceScale = 50.0
	// CoordinationGain converts bank degrees into yaw torque.
	CoordinationGain = 0.01
	// RollNeutralBand is the stick deflection below which self-leveling engages.
	RollNeutralBand = 0.1
)

// ErrInvalidTunable is returned when a tunable is not a positive finite number.
var ErrInvalidTunable = errors.New("invalid tunable")

// Tunables are the per-aircraft handling parameters. All must be positive.
type Tunables struct {
	PitchTorque           float64 `json:"pitchTorque" mapstructure:"pitchTorque"`
	RollTorque            float64 `json:"rollTorque" mapstructure:"rollTorque"`
	YawTorque             float64 `json:"yawTorque" mapstructure:"yawTorque"`
	MaxThrust             float64 `json:"maxThrust" mapstructure:"maxThrust"`
	ThrottleSensitivity   float64 `json:"throttleSensitivity" mapstructure:"throttleSensitivity"`
	LiftFactor            float64 `json:"liftFactor" mapstructure:"liftFactor"`
	StabilizationStrength float64 `json:"stabilizationStrength" mapstructure:"stabilizationStrength"`
}

// DefaultTunables returns the stock handling of the arcade aircraft.
func DefaultTunables() Tunables {
	return Tunables{
		PitchTorque:           8000,
		RollTorque:            6000,
		YawTorque:             4000,
		MaxThrust:             100000,
		ThrottleSensitivity:   0.3,
		LiftFactor:            1.2,
		StabilizationStrength: 15,
	}
}

// Validate reports the first tunable that is not a positive finite number.
func (t Tunables) Validate() error {
	fields := []struct {
		name  string
		value float64
	}{
		{"pitchTorque", t.PitchTorque},
		{"rollTorque", t.RollTorque},
		{"yawTorque", t.YawTorque},
		{"maxThrust", t.MaxThrust},
		{"throttleSensitivity", t.ThrottleSensitivity},
		{"liftFactor", t.LiftFactor},
		{"stabilizationStrength", t.StabilizationStrength},
	}
	for _, f := range fields {
		if !(f.value > 0) || math.IsInf(f.value, 0) {
			return fmt.Errorf("%w: %s must be positive, got %v", ErrInvalidTunable, f.name, f.value)
		}
	}
	return nil
}

// AircraftBodySettings is the configuration the flight model requires of
// its rigid body before the first tick.
func AircraftBodySettings() physics.BodySettings {
	return physics.BodySettings{
		Mass:           1000,
		LinearDamping:  0.1,
		AngularDamping: 2,
		UseGravity:     true,
		Interpolate:    true,
		Inertia:        mgl64.Vec3{250, 250, 250},
	}
}
