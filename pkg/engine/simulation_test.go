package engine

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/opd-ai/go-arcadeflight/pkg/config"
	"github.com/opd-ai/go-arcadeflight/pkg/control"
	"github.com/opd-ai/go-arcadeflight/pkg/event"
	"github.com/opd-ai/go-arcadeflight/pkg/telemetry"
)

func newTestSimulation(t *testing.T, cfg *config.Config, opts ...Option) *Simulation {
	t.Helper()
	sim, err := NewSimulation(cfg, opts...)
	if err != nil {
		t.Fatalf("NewSimulation() error = %v", err)
	}
	return sim
}

func TestNewSimulation_RejectsInvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Aircraft.LiftFactor = 0

	if _, err := NewSimulation(cfg); !errors.Is(err, config.ErrInvalidTunable) {
		t.Fatalf("NewSimulation() error = %v, want ErrInvalidTunable", err)
	}

	cfg = config.DefaultConfig()
	cfg.Simulation.TimeStep = 0
	if _, err := NewSimulation(cfg); !errors.Is(err, config.ErrInvalidTimeStep) {
		t.Fatalf("NewSimulation() error = %v, want ErrInvalidTimeStep", err)
	}
}

func TestSimulation_Lifecycle(t *testing.T) {
	sim := newTestSimulation(t, nil)
	ctx := context.Background()

	var seen []event.Type
	for _, typ := range []event.Type{event.SimulationStarted, event.SimulationStopped} {
		sim.EventBus.Subscribe(typ, func(e event.Event) { seen = append(seen, e.GetType()) })
	}

	if err := sim.Step(); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("Step() before Start error = %v, want ErrNotRunning", err)
	}
	if sim.Status() != StatusIdle {
		t.Errorf("Status() = %v, want idle", sim.Status())
	}

	sim.Start(ctx)
	sim.Start(ctx)
	if !sim.Running() {
		t.Fatal("Running() = false after Start")
	}
	if err := sim.Run(ctx, 3); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if sim.CurrentTick() != 3 {
		t.Errorf("CurrentTick() = %d, want 3", sim.CurrentTick())
	}
	if math.Abs(sim.SimTime()-3*sim.TimeStep) > 1e-12 {
		t.Errorf("SimTime() = %v, want %v", sim.SimTime(), 3*sim.TimeStep)
	}

	sim.Stop(ctx)
	if err := sim.Step(); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("Step() after Stop error = %v, want ErrNotRunning", err)
	}
	if sim.Status() != StatusStopped {
		t.Errorf("Status() = %v, want stopped", sim.Status())
	}

	want := []event.Type{event.SimulationStarted, event.SimulationStopped}
	if len(seen) != len(want) || seen[0] != want[0] || seen[1] != want[1] {
		t.Errorf("lifecycle events = %v, want %v", seen, want)
	}
}

func TestSimulation_SpawnAndRemove(t *testing.T) {
	sim := newTestSimulation(t, nil)

	var spawned, removed []string
	sim.EventBus.Subscribe(event.AircraftSpawned, func(e event.Event) {
		spawned = append(spawned, e.(*event.AircraftEvent).AircraftID)
	})
	sim.EventBus.Subscribe(event.AircraftRemoved, func(e event.Event) {
		removed = append(removed, e.(*event.AircraftEvent).AircraftID)
	})

	for _, id := range []string{"alpha", "bravo", "charlie"} {
		if _, err := sim.SpawnAircraft(id); err != nil {
			t.Fatalf("SpawnAircraft(%q) error = %v", id, err)
		}
	}
	if _, err := sim.SpawnAircraft("alpha"); !errors.Is(err, ErrAircraftExists) {
		t.Errorf("duplicate spawn error = %v, want ErrAircraftExists", err)
	}
	if _, err := sim.SpawnAircraft(""); !errors.Is(err, config.ErrInvalidConfig) {
		t.Errorf("empty id error = %v, want ErrInvalidConfig", err)
	}

	if err := sim.RemoveAircraft("bravo"); err != nil {
		t.Fatalf("RemoveAircraft() error = %v", err)
	}
	if err := sim.RemoveAircraft("bravo"); !errors.Is(err, ErrUnknownAircraft) {
		t.Errorf("second remove error = %v, want ErrUnknownAircraft", err)
	}

	ids := sim.AircraftIDs()
	if len(ids) != 2 || ids[0] != "alpha" || ids[1] != "charlie" {
		t.Errorf("AircraftIDs() = %v, want [alpha charlie]", ids)
	}
	if len(spawned) != 3 || len(removed) != 1 || removed[0] != "bravo" {
		t.Errorf("spawned = %v, removed = %v", spawned, removed)
	}
}

func TestSimulation_RemovedAircraftIsNotStepped(t *testing.T) {
	sim := newTestSimulation(t, nil)
	sim.Start(context.Background())

	keep, _ := sim.SpawnAircraft("keep")
	gone, _ := sim.SpawnAircraft("gone")
	before := gone.Body.Position()

	if err := sim.RemoveAircraft("gone"); err != nil {
		t.Fatal(err)
	}
	if err := sim.Run(context.Background(), 10); err != nil {
		t.Fatal(err)
	}

	if gone.Body.Position() != before {
		t.Errorf("removed aircraft moved from %v to %v", before, gone.Body.Position())
	}
	if keep.Body.Position() == before {
		t.Error("remaining aircraft did not move")
	}
}

func TestSimulation_SpawnHeading(t *testing.T) {
	sim := newTestSimulation(t, nil)

	a, err := sim.SpawnAircraftAt("east", mgl64.Vec3{0, 300, 0}, mgl64.Vec3{0, 0, 60}, 90)
	if err != nil {
		t.Fatal(err)
	}
	v := a.Body.LinearVelocity()
	if math.Abs(v.X()-60) > 1e-9 || math.Abs(v.Z()) > 1e-9 {
		t.Errorf("spawn velocity = %v, want (60, 0, 0)", v)
	}
	if math.Abs(a.Controller.Bank()) > 1e-9 {
		t.Errorf("spawn bank = %v, want 0", a.Controller.Bank())
	}
}

func TestSimulation_ApplyAxisEvent(t *testing.T) {
	sim := newTestSimulation(t, nil)
	a, _ := sim.SpawnAircraft("alpha")

	if err := sim.ApplyAxisEvent("nobody", control.AxisEvent{Axis: control.AxisRoll, Value: 1}); !errors.Is(err, ErrUnknownAircraft) {
		t.Errorf("ApplyAxisEvent(unknown) error = %v, want ErrUnknownAircraft", err)
	}

	var observed int
	sim.EventBus.Subscribe(event.AxisInput, func(event.Event) { observed++ })

	if err := sim.ApplyAxisEvent("alpha", control.AxisEvent{Axis: control.AxisRoll, Value: 3}); err != nil {
		t.Fatal(err)
	}
	if got := a.Inputs.Snapshot().Roll; got != 1 {
		t.Errorf("roll = %v, want clamped 1", got)
	}

	if err := sim.ApplyAxisEvent("alpha", control.AxisEvent{Axis: control.AxisRoll, Phase: control.PhaseCanceled}); err != nil {
		t.Fatal(err)
	}
	if got := a.Inputs.Snapshot().Roll; got != 0 {
		t.Errorf("roll after cancel = %v, want 0", got)
	}
	if observed != 2 {
		t.Errorf("observed %d input events, want 2", observed)
	}
}

func TestSimulation_ScheduledThrottle(t *testing.T) {
	sim := newTestSimulation(t, nil)
	a, _ := sim.SpawnAircraft("alpha")
	sim.Schedule(0, "alpha", control.AxisEvent{Axis: control.AxisThrottle, Value: 1})
	sim.Schedule(100, "alpha", control.AxisEvent{Axis: control.AxisThrottle, Phase: control.PhaseCanceled})
	sim.Start(context.Background())

	if err := sim.Run(context.Background(), 100); err != nil {
		t.Fatal(err)
	}
	if got := a.Controller.Throttle(); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("throttle after 100 ticks = %v, want 0.5", got)
	}

	if err := sim.Run(context.Background(), 50); err != nil {
		t.Fatal(err)
	}
	if got := a.Controller.Throttle(); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("throttle after release = %v, want held at 0.5", got)
	}
	if sim.PendingInputs() != 0 {
		t.Errorf("PendingInputs() = %d, want 0", sim.PendingInputs())
	}
}

func TestSimulation_ScheduledInputForUnknownAircraftIsSkipped(t *testing.T) {
	sim := newTestSimulation(t, nil)
	sim.Schedule(0, "ghost", control.AxisEvent{Axis: control.AxisPitch, Value: 1})
	sim.Start(context.Background())

	if err := sim.Step(); err != nil {
		t.Fatalf("Step() error = %v", err)
	}
}

func TestSimulation_AirflowEvents(t *testing.T) {
	sim := newTestSimulation(t, nil)

	var events []*event.AirflowEvent
	sim.EventBus.Subscribe(event.AirflowChanged, func(e event.Event) {
		events = append(events, e.(*event.AirflowEvent))
	})

	if _, err := sim.SpawnAircraftAt("flying", mgl64.Vec3{0, 500, 0}, mgl64.Vec3{0, 0, 60}, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := sim.SpawnAircraftAt("parked", mgl64.Vec3{}, mgl64.Vec3{}, 0); err != nil {
		t.Fatal(err)
	}
	sim.Start(context.Background())
	if err := sim.Run(context.Background(), 30); err != nil {
		t.Fatal(err)
	}

	if len(events) != 1 {
		t.Fatalf("got %d airflow events, want 1", len(events))
	}
	e := events[0]
	if e.AircraftID != "flying" || !e.Active || e.Tick != 1 {
		t.Errorf("airflow event = %+v, want flying active at tick 1", e)
	}
	if e.Speed <= 5 {
		t.Errorf("airflow speed = %v, want above 5", e.Speed)
	}

	parked, _ := sim.Aircraft("parked")
	if parked.HasAirflow() || parked.LastOutput().Lift != (mgl64.Vec3{}) {
		t.Error("parked aircraft should have no airflow or lift")
	}
	if y := parked.Body.Position().Y(); y < 0 {
		t.Errorf("parked aircraft sank below ground: y = %v", y)
	}
}

func TestSimulation_TelemetryEveryN(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Telemetry.Every = 5

	var (
		mu     sync.Mutex
		frames []telemetry.Frame
	)
	pipeline := telemetry.NewPipeline(64, nil, nil)
	pipeline.AddSink("memory", telemetry.SinkFunc(func(_ context.Context, f telemetry.Frame) error {
		mu.Lock()
		frames = append(frames, f)
		mu.Unlock()
		return nil
	}))

	sim := newTestSimulation(t, cfg, WithPipeline(pipeline), WithSessionID("session-1"))
	if sim.SessionID != "session-1" {
		t.Errorf("SessionID = %q, want session-1", sim.SessionID)
	}
	sim.SpawnAircraft("alpha")
	sim.SpawnAircraft("bravo")
	sim.Start(context.Background())

	if err := sim.Run(context.Background(), 20); err != nil {
		t.Fatal(err)
	}
	if err := pipeline.Close(); err != nil {
		t.Fatalf("pipeline.Close() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(frames) != 8 {
		t.Fatalf("got %d frames, want 8", len(frames))
	}
	wantTicks := []uint64{5, 5, 10, 10, 15, 15, 20, 20}
	for i, f := range frames {
		if f.Tick != wantTicks[i] {
			t.Errorf("frame %d tick = %d, want %d", i, f.Tick, wantTicks[i])
		}
		wantID := "alpha"
		if i%2 == 1 {
			wantID = "bravo"
		}
		if f.AircraftID != wantID {
			t.Errorf("frame %d aircraft = %q, want %q", i, f.AircraftID, wantID)
		}
	}
	if last := frames[len(frames)-1]; math.Abs(last.Time-20*sim.TimeStep) > 1e-12 {
		t.Errorf("last frame time = %v, want %v", last.Time, 20*sim.TimeStep)
	}
}

func runScripted(t *testing.T, ticks uint64) State {
	t.Helper()
	sim := newTestSimulation(t, nil, WithSessionID("deterministic"))
	for _, id := range []string{"lead", "wing"} {
		if _, err := sim.SpawnAircraft(id); err != nil {
			t.Fatal(err)
		}
	}
	if err := sim.LoadScript(config.DefaultScript("lead")); err != nil {
		t.Fatal(err)
	}
	sim.Schedule(120, "wing", control.AxisEvent{Axis: control.AxisYaw, Value: -0.5})
	sim.Start(context.Background())
	if err := sim.Run(context.Background(), ticks); err != nil {
		t.Fatal(err)
	}
	return sim.Snapshot()
}

func TestSimulation_Deterministic(t *testing.T) {
	first := runScripted(t, 800)
	second := runScripted(t, 800)

	if first.Tick != 800 || second.Tick != 800 {
		t.Fatalf("ticks = %d, %d, want 800", first.Tick, second.Tick)
	}
	if len(first.Aircraft) != 2 {
		t.Fatalf("got %d aircraft, want 2", len(first.Aircraft))
	}
	for i := range first.Aircraft {
		a, b := first.Aircraft[i], second.Aircraft[i]
		if a.Position != b.Position || a.Velocity != b.Velocity || a.Bank != b.Bank {
			t.Errorf("aircraft %s diverged: %+v vs %+v", a.ID, a, b)
		}
	}
	lead := first.Aircraft[0]
	if lead.ID != "lead" || lead.Throttle <= 0 {
		t.Errorf("lead state = %+v, want throttle above zero", lead)
	}
	for _, a := range first.Aircraft {
		if math.IsNaN(a.Position.Y()) || math.IsNaN(a.Speed) {
			t.Errorf("aircraft %s has non-finite state", a.ID)
		}
	}
}

func TestSimulation_LoadScriptRejectsInvalid(t *testing.T) {
	sim := newTestSimulation(t, nil)
	bad := &config.Script{Events: []config.ScriptEvent{{Tick: 1, Aircraft: "a", Axis: "rudder", Value: 1}}}
	if err := sim.LoadScript(bad); err == nil {
		t.Fatal("LoadScript() accepted an unknown axis")
	}
	if err := sim.LoadScript(nil); err != nil {
		t.Errorf("LoadScript(nil) error = %v", err)
	}
}
