// Package control holds the pilot input state and the events that update it.
package control

import (
	"fmt"
	"math"
	"strings"
	"sync"
)

// Axis identifies one of the four analog pilot controls.
type Axis int

const (
	AxisPitch Axis = iota
	AxisRoll
	AxisYaw
	AxisThrottle
)

var axisNames = [...]string{"pitch", "roll", "yaw", "throttle"}

func (a Axis) String() string {
	if a < 0 || int(a) >= len(axisNames) {
		return fmt.Sprintf("axis(%d)", int(a))
	}
	return axisNames[a]
}

// ParseAxis converts a case-insensitive axis name.
func ParseAxis(name string) (Axis, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range axisNames {
		if n == name {
			return Axis(i), nil
		}
	}
	return 0, fmt.Errorf("unknown axis %q", name)
}

// Phase distinguishes an axis reporting a value from an axis being released.
type Phase int

const (
	PhasePerformed Phase = iota
	PhaseCanceled
)

func (p Phase) String() string {
	switch p {
	case PhasePerformed:
		return "performed"
	case PhaseCanceled:
		return "canceled"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// ParsePhase converts a case-insensitive phase name.
func ParsePhase(name string) (Phase, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "performed", "":
		return PhasePerformed, nil
	case "canceled", "cancelled":
		return PhaseCanceled, nil
	default:
		return 0, fmt.Errorf("unknown phase %q", name)
	}
}

// AxisEvent is one change on an input axis.
type AxisEvent struct {
	Axis  Axis
	Phase Phase
	Value float64
}

// Inputs is the latest value of every axis, each in [-1, 1].
type Inputs struct {
	Pitch    float64
	Roll     float64
	Yaw      float64
	Throttle float64
}

// ApplyAxisEvent returns state with the event's axis replaced. A canceled
// event resets the axis to 0. Values are clamped to [-1, 1] and NaN
// becomes 0. Unknown axes leave state unchanged.
func ApplyAxisEvent(state Inputs, ev AxisEvent) Inputs {
	value := 0.0
	if ev.Phase == PhasePerformed {
		value = clampAxis(ev.Value)
	}

	switch ev.Axis {
	case AxisPitch:
		state.Pitch = value
	case AxisRoll:
		state.Roll = value
	case AxisYaw:
		state.Yaw = value
	case AxisThrottle:
		state.Throttle = value
	}
	return state
}

func clampAxis(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(-1, math.Min(1, v))
}

// Latch holds the input state shared between the goroutine delivering
// events and the one stepping the simulation. Each tick reads a single
// snapshot so a tick never sees a half-applied update.
type Latch struct {
	mu     sync.Mutex
	inputs Inputs
}

func NewLatch() *Latch {
	return &Latch{}
}

// Apply folds an event into the latched state.
func (l *Latch) Apply(ev AxisEvent) {
	l.mu.Lock()
	l.inputs = ApplyAxisEvent(l.inputs, ev)
	l.mu.Unlock()
}

// Snapshot returns a copy of the current inputs.
func (l *Latch) Snapshot() Inputs {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inputs
}

// Reset returns every axis to 0.
func (l *Latch) Reset() {
	l.mu.Lock()
	l.inputs = Inputs{}
	l.mu.Unlock()
}
