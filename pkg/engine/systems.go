package engine

import (
	"errors"

	"github.com/EngoEngine/ecs"

	"github.com/opd-ai/go-arcadeflight/pkg/event"
	"github.com/opd-ai/go-arcadeflight/pkg/telemetry"
)

// System priorities. ecs runs higher priorities first, so every tick
// computes forces, then integrates, then samples telemetry.
const (
	flightPriority      = 30
	integrationPriority = 20
	telemetryPriority   = 10
)

// entityList keeps aircraft in spawn order so every run visits them in
// the same sequence.
type entityList []*Aircraft

func (l *entityList) add(a *Aircraft) { *l = append(*l, a) }

func (l *entityList) remove(basic ecs.BasicEntity) {
	for i, a := range *l {
		if a.BasicEntity.ID() == basic.ID() {
			*l = append((*l)[:i], (*l)[i+1:]...)
			return
		}
	}
}

// The systems below ignore the float32 dt handed in by ecs.World and use
// the simulation's float64 fixed step.

// FlightSystem runs each aircraft's force model.
type FlightSystem struct {
	sim      *Simulation
	entities entityList
}

func (s *FlightSystem) Add(a *Aircraft)              { s.entities.add(a) }
func (s *FlightSystem) Remove(basic ecs.BasicEntity) { s.entities.remove(basic) }
func (*FlightSystem) Priority() int                  { return flightPriority }

func (s *FlightSystem) Update(float32) {
	for _, a := range s.entities {
		a.last = a.Controller.Step(s.sim.TimeStep)
		if a.last.Airflow.Active != a.airflow {
			a.airflow = a.last.Airflow.Active
			s.sim.queueEvent(event.NewAirflowEvent(s.sim, a.ID, s.sim.frameTick, a.airflow, a.last.Airflow.Speed))
			s.sim.metrics.AirflowChanged(s.sim.ctx, a.ID, a.airflow)
		}
	}
}

// IntegrationSystem advances every rigid body by one step.
type IntegrationSystem struct {
	sim      *Simulation
	entities entityList
}

func (s *IntegrationSystem) Add(a *Aircraft)              { s.entities.add(a) }
func (s *IntegrationSystem) Remove(basic ecs.BasicEntity) { s.entities.remove(basic) }
func (*IntegrationSystem) Priority() int                  { return integrationPriority }

func (s *IntegrationSystem) Update(float32) {
	for _, a := range s.entities {
		a.Body.Step(s.sim.TimeStep)
	}
}

// TelemetrySystem samples aircraft into the telemetry pipeline every N ticks.
type TelemetrySystem struct {
	sim      *Simulation
	every    uint64
	entities entityList
}

func (s *TelemetrySystem) Add(a *Aircraft)              { s.entities.add(a) }
func (s *TelemetrySystem) Remove(basic ecs.BasicEntity) { s.entities.remove(basic) }
func (*TelemetrySystem) Priority() int                  { return telemetryPriority }

func (s *TelemetrySystem) Update(float32) {
	p := s.sim.pipeline
	if p == nil || s.sim.frameTick%s.every != 0 {
		return
	}
	simTime := float64(s.sim.frameTick) * s.sim.TimeStep
	for _, a := range s.entities {
		frame := telemetry.NewFrame(s.sim.frameTick, simTime, a.ID, a.Controller, a.last)
		if err := p.Publish(s.sim.ctx, frame); err != nil && !errors.Is(err, telemetry.ErrBufferFull) {
			s.sim.logger.Debug(s.sim.ctx, "telemetry publish failed", "aircraft", a.ID, "error", err.Error())
		}
	}
}
