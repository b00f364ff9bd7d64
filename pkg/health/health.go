// Package health exposes liveness and readiness probes for a running
// flight simulation. Readiness aggregates named checks: the simulation
// loop is ticking, remote telemetry sinks are not tripped, and memory
// stays under a limit.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// Check is one named readiness probe.
type Check interface {
	Name() string
	Check(ctx context.Context) error
}

// Status is the aggregated result served by the readiness endpoint.
type Status struct {
	Status string                     `json:"status"`
	Checks map[string]ComponentStatus `json:"checks"`
}

// ComponentStatus is the result of one check.
type ComponentStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
)

// Checker runs registered checks. Safe for concurrent use.
type Checker struct {
	checks  map[string]Check
	timeout time.Duration
	mu      sync.RWMutex
}

// NewChecker creates an empty checker whose readiness probe gives checks
// five seconds to answer.
func NewChecker() *Checker {
	return &Checker{
		checks:  make(map[string]Check),
		timeout: 5 * time.Second,
	}
}

// AddCheck registers check, replacing any check with the same name.
func (c *Checker) AddCheck(check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[check.Name()] = check
}

func (c *Checker) RemoveCheck(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.checks, name)
}

// Names lists registered checks in sorted order.
func (c *Checker) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run executes every check. The result is healthy only if all pass.
func (c *Checker) Run(ctx context.Context) Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	st := Status{
		Status: statusHealthy,
		Checks: make(map[string]ComponentStatus, len(c.checks)),
	}
	for name, check := range c.checks {
		if err := check.Check(ctx); err != nil {
			st.Status = statusUnhealthy
			st.Checks[name] = ComponentStatus{Status: statusUnhealthy, Message: err.Error()}
			continue
		}
		st.Checks[name] = ComponentStatus{Status: statusHealthy}
	}
	return st
}

// LivenessHandler answers 200 while the process can serve HTTP.
func (c *Checker) LivenessHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// ReadinessHandler answers 200 when every check passes and 503 otherwise.
func (c *Checker) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), c.timeout)
	defer cancel()

	st := c.Run(ctx)
	code := http.StatusOK
	if st.Status != statusHealthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, st)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// Handler mounts /health and /ready.
func (c *Checker) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", c.LivenessHandler)
	mux.HandleFunc("/ready", c.ReadinessHandler)
	return mux
}

// NewServer returns an HTTP server for the probes on the given port.
func NewServer(port int, c *Checker) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      c.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
}

// SimulationCheck fails when the simulation is not running, or when it is
// running but its tick counter has not moved since the previous probe.
type SimulationCheck struct {
	running func() bool
	tick    func() uint64

	mu       sync.Mutex
	lastTick uint64
	probed   bool
}

// NewSimulationCheck builds a check from the simulation's Running and
// CurrentTick accessors. tick may be nil to skip stall detection.
func NewSimulationCheck(running func() bool, tick func() uint64) *SimulationCheck {
	return &SimulationCheck{running: running, tick: tick}
}

func (s *SimulationCheck) Name() string { return "simulation" }

func (s *SimulationCheck) Check(context.Context) error {
	if !s.running() {
		return fmt.Errorf("simulation is not running")
	}
	if s.tick == nil {
		return nil
	}

	now := s.tick()
	s.mu.Lock()
	defer s.mu.Unlock()
	stalled := s.probed && now == s.lastTick
	s.lastTick, s.probed = now, true
	if stalled {
		return fmt.Errorf("simulation stalled at tick %d", now)
	}
	return nil
}

// BreakerCheck fails while a telemetry sink's circuit breaker is open.
type BreakerCheck struct {
	name  string
	state func() gobreaker.State
}

// NewBreakerCheck watches a breaker-guarded sink.
func NewBreakerCheck(sink string, state func() gobreaker.State) *BreakerCheck {
	return &BreakerCheck{name: "sink_" + sink, state: state}
}

func (b *BreakerCheck) Name() string { return b.name }

func (b *BreakerCheck) Check(context.Context) error {
	if st := b.state(); st == gobreaker.StateOpen {
		return fmt.Errorf("circuit breaker %s", st)
	}
	return nil
}

// MemoryCheck fails when heap usage exceeds a limit.
type MemoryCheck struct {
	maxMB int64
	usage func() int64
}

// NewMemoryCheck limits usage to maxMB. A nil usage reads the Go heap.
func NewMemoryCheck(maxMB int64, usage func() int64) *MemoryCheck {
	if usage == nil {
		usage = HeapAllocMB
	}
	return &MemoryCheck{maxMB: maxMB, usage: usage}
}

func (m *MemoryCheck) Name() string { return "memory" }

func (m *MemoryCheck) Check(context.Context) error {
	if current := m.usage(); current > m.maxMB {
		return fmt.Errorf("memory usage %dMB exceeds limit %dMB", current, m.maxMB)
	}
	return nil
}

// HeapAllocMB reports allocated heap in megabytes.
func HeapAllocMB() int64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return int64(ms.Alloc / 1024 / 1024)
}
