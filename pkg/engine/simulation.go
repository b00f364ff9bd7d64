package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/EngoEngine/ecs"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/opd-ai/go-arcadeflight/pkg/config"
	"github.com/opd-ai/go-arcadeflight/pkg/control"
	"github.com/opd-ai/go-arcadeflight/pkg/event"
	"github.com/opd-ai/go-arcadeflight/pkg/flight"
	"github.com/opd-ai/go-arcadeflight/pkg/logging"
	"github.com/opd-ai/go-arcadeflight/pkg/physics"
	"github.com/opd-ai/go-arcadeflight/pkg/telemetry"
)

var (
	ErrAircraftExists  = errors.New("aircraft already exists")
	ErrUnknownAircraft = errors.New("unknown aircraft")
	ErrNotRunning      = errors.New("simulation is not running")
)

// Status is the lifecycle state of a Simulation.
type Status int

const (
	StatusIdle Status = iota
	StatusRunning
	StatusStopped
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusRunning:
		return "running"
	case StatusStopped:
		return "stopped"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

type scheduledInput struct {
	aircraft string
	input    control.AxisEvent
}

// Simulation steps a set of aircraft at a fixed time step. Forces are
// computed, bodies integrated and telemetry sampled by ecs systems in
// that order on every tick.
type Simulation struct {
	Config    *config.Config
	EventBus  *event.Bus
	SessionID string
	TimeStep  float64

	mu          sync.RWMutex
	status      Status
	currentTick uint64
	frameTick   uint64

	world       *ecs.World
	flight      *FlightSystem
	integration *IntegrationSystem
	telemetry   *TelemetrySystem
	aircraft    map[string]*Aircraft
	order       []*Aircraft

	schedule map[uint64][]scheduledInput
	pending  []event.Event

	pipeline *telemetry.Pipeline
	metrics  *telemetry.Metrics
	logger   *logging.Logger
	ctx      context.Context
}

// Option configures a Simulation.
type Option func(*Simulation)

func WithLogger(l *logging.Logger) Option {
	return func(s *Simulation) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithPipeline routes sampled frames into p. The simulation does not
// start or close the pipeline.
func WithPipeline(p *telemetry.Pipeline) Option {
	return func(s *Simulation) { s.pipeline = p }
}

func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Simulation) { s.metrics = m }
}

func WithSessionID(id string) Option {
	return func(s *Simulation) {
		if id != "" {
			s.SessionID = id
		}
	}
}

// NewSimulation validates cfg and builds an idle simulation with no aircraft.
func NewSimulation(cfg *config.Config, opts ...Option) (*Simulation, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Simulation{
		Config:    cfg,
		EventBus:  event.NewEventBus(),
		SessionID: logging.GenerateCorrelationID(),
		TimeStep:  cfg.Simulation.TimeStep,
		world:     &ecs.World{},
		aircraft:  make(map[string]*Aircraft),
		schedule:  make(map[uint64][]scheduledInput),
		logger:    logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ctx = logging.WithCorrelationID(context.Background(), s.SessionID)
	s.logger = s.logger.With("session_id", s.SessionID)

	every := uint64(1)
	if cfg.Telemetry.Every > 1 {
		every = uint64(cfg.Telemetry.Every)
	}
	s.flight = &FlightSystem{sim: s}
	s.integration = &IntegrationSystem{sim: s}
	s.telemetry = &TelemetrySystem{sim: s, every: every}
	s.world.AddSystem(s.flight)
	s.world.AddSystem(s.integration)
	s.world.AddSystem(s.telemetry)

	s.registerEventHandlers()
	return s, nil
}

func (s *Simulation) registerEventHandlers() {
	s.EventBus.Subscribe(event.AxisInput, s.handleInputEvent)
}

func (s *Simulation) handleInputEvent(e event.Event) {
	ie, ok := e.(*event.InputEvent)
	if !ok {
		return
	}
	s.mu.RLock()
	a, exists := s.aircraft[ie.AircraftID]
	s.mu.RUnlock()
	if !exists {
		s.logger.Debug(s.ctx, "input for unknown aircraft dropped", "aircraft", ie.AircraftID)
		return
	}
	a.Inputs.Apply(ie.Input)
}

// SpawnAircraft adds an aircraft at the configured spawn pose.
func (s *Simulation) SpawnAircraft(id string) (*Aircraft, error) {
	sp := s.Config.Spawn
	return s.SpawnAircraftAt(id, sp.Position.Vec3(), sp.Velocity.Vec3(), sp.HeadingDeg)
}

// SpawnAircraftAt adds an aircraft at position, yawed headingDeg clockwise
// from world forward. velocity is given in the aircraft's own frame.
func (s *Simulation) SpawnAircraftAt(id string, position, velocity mgl64.Vec3, headingDeg float64) (*Aircraft, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty aircraft id", config.ErrInvalidConfig)
	}

	s.mu.Lock()
	if _, exists := s.aircraft[id]; exists {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrAircraftExists, id)
	}

	orientation := mgl64.QuatRotate(mgl64.DegToRad(headingDeg), physics.WorldUp)
	body := physics.NewBody(position, orientation)
	body.SetGravity(s.Config.Simulation.Gravity)
	body.SetGround(s.Config.Simulation.GroundHeight)

	latch := control.NewLatch()
	ctrl := flight.NewController(s.Config.Aircraft.Tunables,
		flight.WithBodySettings(s.Config.Aircraft.Body.Settings()),
		flight.WithInputs(latch),
	)
	ctrl.Attach(body)
	body.SetLinearVelocity(orientation.Rotate(velocity))

	a := &Aircraft{
		BasicEntity: ecs.NewBasic(),
		ID:          id,
		Body:        body,
		Controller:  ctrl,
		Inputs:      latch,
	}
	s.aircraft[id] = a
	s.order = append(s.order, a)
	s.flight.Add(a)
	s.integration.Add(a)
	s.telemetry.Add(a)
	tick := s.currentTick
	s.mu.Unlock()

	s.logger.Info(s.ctx, "aircraft spawned", "aircraft", id, "altitude", position.Y())
	s.EventBus.Publish(event.NewAircraftEvent(event.AircraftSpawned, s, id, tick))
	return a, nil
}

// RemoveAircraft drops an aircraft from every system.
func (s *Simulation) RemoveAircraft(id string) error {
	s.mu.Lock()
	a, exists := s.aircraft[id]
	if !exists {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownAircraft, id)
	}
	delete(s.aircraft, id)
	for i, other := range s.order {
		if other == a {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.world.RemoveEntity(a.BasicEntity)
	tick := s.currentTick
	s.mu.Unlock()

	s.logger.Info(s.ctx, "aircraft removed", "aircraft", id)
	s.EventBus.Publish(event.NewAircraftEvent(event.AircraftRemoved, s, id, tick))
	return nil
}

// Aircraft looks up a spawned aircraft.
func (s *Simulation) Aircraft(id string) (*Aircraft, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.aircraft[id]
	return a, ok
}

// AircraftIDs lists aircraft in spawn order.
func (s *Simulation) AircraftIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.order))
	for _, a := range s.order {
		ids = append(ids, a.ID)
	}
	return ids
}

// ApplyAxisEvent publishes a pilot input on the event bus. It may be called
// from any goroutine; the input takes effect on the next tick.
func (s *Simulation) ApplyAxisEvent(id string, ev control.AxisEvent) error {
	if _, ok := s.Aircraft(id); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAircraft, id)
	}
	s.EventBus.Publish(event.NewInputEvent(s, id, ev))
	return nil
}

// Schedule queues an input to be applied just before the given tick runs.
// Tick 0 is the first tick after Start.
func (s *Simulation) Schedule(tick uint64, id string, ev control.AxisEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedule[tick] = append(s.schedule[tick], scheduledInput{aircraft: id, input: ev})
}

// LoadScript schedules every event of a validated script.
func (s *Simulation) LoadScript(script *config.Script) error {
	if script == nil {
		return nil
	}
	if err := script.Validate(); err != nil {
		return err
	}
	script.Sort()
	for _, e := range script.Events {
		ev, err := e.AxisEvent()
		if err != nil {
			return err
		}
		s.Schedule(e.Tick, e.Aircraft, ev)
	}
	s.logger.Debug(s.ctx, "script loaded", "events", len(script.Events), "last_tick", script.LastTick())
	return nil
}

// Start moves the simulation to running. Starting a running simulation is a no-op.
func (s *Simulation) Start(ctx context.Context) {
	s.mu.Lock()
	if s.status == StatusRunning {
		s.mu.Unlock()
		return
	}
	s.status = StatusRunning
	tick := s.currentTick
	s.mu.Unlock()

	s.logger.Info(ctx, "simulation started", "time_step", s.TimeStep)
	s.EventBus.Publish(event.NewSimulationEvent(event.SimulationStarted, s, s.SessionID, tick))
}

// Stop halts ticking. A stopped simulation can be started again.
func (s *Simulation) Stop(ctx context.Context) {
	s.mu.Lock()
	if s.status != StatusRunning {
		s.mu.Unlock()
		return
	}
	s.status = StatusStopped
	tick := s.currentTick
	s.mu.Unlock()

	s.logger.Info(ctx, "simulation stopped", "tick", tick)
	s.EventBus.Publish(event.NewSimulationEvent(event.SimulationStopped, s, s.SessionID, tick))
}

// Step advances every aircraft by one fixed time step. Only one goroutine
// may drive Step; input, spawn and snapshot calls are safe alongside it.
func (s *Simulation) Step() error {
	s.mu.RLock()
	if s.status != StatusRunning {
		s.mu.RUnlock()
		return ErrNotRunning
	}
	tick := s.currentTick
	s.mu.RUnlock()

	start := time.Now()
	s.dispatchScheduled(tick)

	s.mu.Lock()
	s.frameTick = tick + 1
	s.world.Update(float32(s.TimeStep))
	s.currentTick = tick + 1
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, e := range pending {
		s.EventBus.Publish(e)
	}
	s.metrics.RecordTick(s.ctx, time.Since(start))
	return nil
}

func (s *Simulation) dispatchScheduled(tick uint64) {
	s.mu.Lock()
	inputs := s.schedule[tick]
	delete(s.schedule, tick)
	s.mu.Unlock()

	for _, in := range inputs {
		if err := s.ApplyAxisEvent(in.aircraft, in.input); err != nil {
			s.logger.Warn(s.ctx, "scheduled input skipped", "tick", tick, "error", err.Error())
		}
	}
}

// queueEvent defers an event until the tick's lock is released. Called by
// systems during Update.
func (s *Simulation) queueEvent(e event.Event) {
	s.pending = append(s.pending, e)
}

// Run steps the simulation ticks times as fast as possible.
func (s *Simulation) Run(ctx context.Context, ticks uint64) error {
	for i := uint64(0); i < ticks; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.Step(); err != nil {
			return err
		}
	}
	return nil
}

// RunRealtime steps once per time step of wall clock until ctx is done or
// the simulation is stopped.
func (s *Simulation) RunRealtime(ctx context.Context) error {
	ticker := time.NewTicker(s.Config.TickDuration())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.Step(); err != nil {
				if errors.Is(err, ErrNotRunning) {
					return nil
				}
				return err
			}
		}
	}
}

// Status returns the lifecycle state.
func (s *Simulation) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Running reports whether ticks are being accepted.
func (s *Simulation) Running() bool { return s.Status() == StatusRunning }

// CurrentTick returns the number of completed ticks.
func (s *Simulation) CurrentTick() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentTick
}

// SimTime returns simulated seconds elapsed.
func (s *Simulation) SimTime() float64 {
	return float64(s.CurrentTick()) * s.TimeStep
}

// PendingInputs returns the number of ticks that still have scheduled input.
func (s *Simulation) PendingInputs() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.schedule)
}

// AircraftState is a read-only view of one aircraft.
type AircraftState struct {
	ID       string
	Position mgl64.Vec3
	Velocity mgl64.Vec3
	Speed    float64
	Altitude float64
	Bank     float64
	Throttle float64
	Airflow  bool
	Turning  bool
	Inputs   control.Inputs
}

// State is a consistent snapshot of the simulation.
type State struct {
	Tick     uint64
	Time     float64
	Status   Status
	Aircraft []AircraftState
}

// Snapshot copies the current state under the simulation lock.
func (s *Simulation) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := State{
		Tick:     s.currentTick,
		Time:     float64(s.currentTick) * s.TimeStep,
		Status:   s.status,
		Aircraft: make([]AircraftState, 0, len(s.order)),
	}
	for _, a := range s.order {
		st.Aircraft = append(st.Aircraft, AircraftState{
			ID:       a.ID,
			Position: a.Body.Position(),
			Velocity: a.Body.LinearVelocity(),
			Speed:    a.Controller.Speed(),
			Altitude: a.Controller.Altitude(),
			Bank:     a.Controller.Bank(),
			Throttle: a.Controller.Throttle(),
			Airflow:  a.airflow,
			Turning:  a.last.Turning,
			Inputs:   a.Inputs.Snapshot(),
		})
	}
	return st
}
