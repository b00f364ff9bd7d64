package engine

import (
	"github.com/EngoEngine/ecs"

	"github.com/opd-ai/go-arcadeflight/pkg/control"
	"github.com/opd-ai/go-arcadeflight/pkg/flight"
	"github.com/opd-ai/go-arcadeflight/pkg/physics"
)

// Aircraft is one simulated airframe: its rigid body, the flight model
// driving it and the latched pilot inputs.
type Aircraft struct {
	ecs.BasicEntity

	ID         string
	Body       *physics.Body
	Controller *flight.Controller
	Inputs     *control.Latch

	last    flight.Output
	airflow bool
}

// LastOutput returns the forces and torques of the most recent tick.
func (a *Aircraft) LastOutput() flight.Output { return a.last }

// HasAirflow reports whether the last tick was above the airflow speed gate.
func (a *Aircraft) HasAirflow() bool { return a.airflow }
