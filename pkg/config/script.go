package config

import (
	"fmt"
	"sort"

	"github.com/spf13/viper"

	"github.com/opd-ai/go-arcadeflight/pkg/control"
)

// ScriptEvent is one scheduled axis change in a maneuver script.
type ScriptEvent struct {
	Tick     uint64  `json:"tick" mapstructure:"tick"`
	Aircraft string  `json:"aircraft" mapstructure:"aircraft"`
	Axis     string  `json:"axis" mapstructure:"axis"`
	Phase    string  `json:"phase" mapstructure:"phase"`
	Value    float64 `json:"value" mapstructure:"value"`
}

// AxisEvent converts the scripted names into a control event.
func (e ScriptEvent) AxisEvent() (control.AxisEvent, error) {
	axis, err := control.ParseAxis(e.Axis)
	if err != nil {
		return control.AxisEvent{}, err
	}
	phase, err := control.ParsePhase(e.Phase)
	if err != nil {
		return control.AxisEvent{}, err
	}
	return control.AxisEvent{Axis: axis, Phase: phase, Value: e.Value}, nil
}

// Script is a deterministic input sequence replayed by tick number.
type Script struct {
	Events []ScriptEvent `json:"events" mapstructure:"events"`
}

// LoadScript reads a maneuver script. The format follows the file
// extension (JSON, YAML or TOML).
func LoadScript(path string) (*Script, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}

	var s Script
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to parse script: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	s.Sort()
	return &s, nil
}

// Validate rejects events with unknown axes or phases.
func (s *Script) Validate() error {
	for i, e := range s.Events {
		if _, err := e.AxisEvent(); err != nil {
			return fmt.Errorf("%w: script event %d: %v", ErrInvalidConfig, i, err)
		}
	}
	return nil
}

// Sort orders events by tick, keeping file order within a tick.
func (s *Script) Sort() {
	sort.SliceStable(s.Events, func(i, j int) bool {
		return s.Events[i].Tick < s.Events[j].Tick
	})
}

// LastTick returns the tick of the final event.
func (s *Script) LastTick() uint64 {
	var last uint64
	for _, e := range s.Events {
		if e.Tick > last {
			last = e.Tick
		}
	}
	return last
}

// DefaultScript is a short demonstration flight for one aircraft: a
// throttle run-up, a banked turn to the right, a release so the wings
// level themselves, and a gentle climb.
func DefaultScript(aircraft string) *Script {
	return &Script{Events: []ScriptEvent{
		{Tick: 0, Aircraft: aircraft, Axis: "throttle", Value: 1},
		{Tick: 200, Aircraft: aircraft, Axis: "throttle", Phase: "canceled"},
		{Tick: 240, Aircraft: aircraft, Axis: "roll", Value: 0.6},
		{Tick: 300, Aircraft: aircraft, Axis: "roll", Phase: "canceled"},
		{Tick: 600, Aircraft: aircraft, Axis: "pitch", Value: -0.4},
		{Tick: 720, Aircraft: aircraft, Axis: "pitch", Phase: "canceled"},
	}}
}
