package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/opd-ai/go-arcadeflight/pkg/engine"
	"github.com/opd-ai/go-arcadeflight/pkg/telemetry"
)

// TestHealthCheckIntegration probes a real simulation and a breaker-guarded sink.
func TestHealthCheckIntegration(t *testing.T) {
	sim, err := engine.NewSimulation(nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := sim.SpawnAircraft("alpha"); err != nil {
		t.Fatal(err)
	}

	failing := telemetry.SinkFunc(func(context.Context, telemetry.Frame) error {
		return errors.New("connection refused")
	})
	guard := telemetry.NewGuard(failing, telemetry.BreakerSettings{
		Name:                "influx",
		MaxConsecutiveFails: 2,
		Timeout:             time.Minute,
	}, nil)

	checker := NewChecker()
	checker.AddCheck(NewSimulationCheck(sim.Running, sim.CurrentTick))
	checker.AddCheck(NewBreakerCheck(guard.Name(), guard.State))

	ready := func() (int, Status) {
		rec := httptest.NewRecorder()
		checker.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
		var st Status
		if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
			t.Fatalf("invalid readiness JSON: %v", err)
		}
		return rec.Code, st
	}

	t.Run("not ready before start", func(t *testing.T) {
		code, st := ready()
		if code != http.StatusServiceUnavailable {
			t.Errorf("code = %d, want 503", code)
		}
		if st.Checks["simulation"].Status != statusUnhealthy {
			t.Errorf("simulation = %+v, want unhealthy", st.Checks["simulation"])
		}
		if st.Checks["sink_influx"].Status != statusHealthy {
			t.Errorf("sink = %+v, want healthy", st.Checks["sink_influx"])
		}
	})

	sim.Start(context.Background())

	t.Run("ready while ticking", func(t *testing.T) {
		if err := sim.Step(); err != nil {
			t.Fatal(err)
		}
		if code, st := ready(); code != http.StatusOK {
			t.Errorf("code = %d, status = %+v", code, st)
		}
		if err := sim.Step(); err != nil {
			t.Fatal(err)
		}
		if code, _ := ready(); code != http.StatusOK {
			t.Errorf("code = %d after another tick, want 200", code)
		}
	})

	t.Run("not ready when stalled", func(t *testing.T) {
		code, st := ready()
		if code != http.StatusServiceUnavailable || st.Checks["simulation"].Status != statusUnhealthy {
			t.Errorf("code = %d, simulation = %+v", code, st.Checks["simulation"])
		}
	})

	t.Run("not ready when sink trips", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			_ = guard.Write(context.Background(), telemetry.Frame{})
		}
		if err := sim.Step(); err != nil {
			t.Fatal(err)
		}
		code, st := ready()
		if code != http.StatusServiceUnavailable {
			t.Errorf("code = %d, want 503", code)
		}
		if st.Checks["simulation"].Status != statusHealthy {
			t.Errorf("simulation = %+v, want healthy", st.Checks["simulation"])
		}
		if st.Checks["sink_influx"].Status != statusUnhealthy {
			t.Errorf("sink = %+v, want unhealthy", st.Checks["sink_influx"])
		}
	})
}
