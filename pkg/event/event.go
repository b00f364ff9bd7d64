// pkg/event/event.go
package event

import (
	"sync"

	"github.com/opd-ai/go-arcadeflight/pkg/control"
)

// Type represents the type of event
type Type string

// Simulation event types
const (
	AxisInput         Type = "axis_input"
	AircraftSpawned   Type = "aircraft_spawned"
	AircraftRemoved   Type = "aircraft_removed"
	AirflowChanged    Type = "airflow_changed"
	SimulationStarted Type = "simulation_started"
	SimulationStopped Type = "simulation_stopped"
)

// Event is the base interface for all events
type Event interface {
	GetType() Type
	GetSource() interface{}
}

// BaseEvent provides common functionality for all events
type BaseEvent struct {
	EventType Type
	Source    interface{}
}

// GetType returns the event type
func (e *BaseEvent) GetType() Type {
	return e.EventType
}

// GetSource returns the event source
func (e *BaseEvent) GetSource() interface{} {
	return e.Source
}

// Handler is a function that handles events
type Handler func(Event)

// Subscription identifies a registered handler.
type Subscription uint64

type subscriber struct {
	id      Subscription
	handler Handler
}

// Bus manages event subscriptions and dispatching
type Bus struct {
	handlers map[Type][]subscriber
	nextID   Subscription
	mu       sync.RWMutex
}

// NewEventBus creates a new event bus
func NewEventBus() *Bus {
	return &Bus{
		handlers: make(map[Type][]subscriber),
	}
}

// Subscribe registers a handler for a specific event type and returns an
// id for Unsubscribe.
func (b *Bus) Subscribe(eventType Type, handler Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	b.handlers[eventType] = append(b.handlers[eventType], subscriber{id: b.nextID, handler: handler})
	return b.nextID
}

// Unsubscribe removes a handler for a specific event type
func (b *Bus) Unsubscribe(eventType Type, id Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.handlers[eventType]
	for i, s := range subs {
		if s.id == id {
			// copy so in-flight Publish calls keep their slice intact
			next := make([]subscriber, 0, len(subs)-1)
			next = append(next, subs[:i]...)
			b.handlers[eventType] = append(next, subs[i+1:]...)
			return
		}
	}
}

// Publish sends an event to all subscribed handlers synchronously, in
// subscription order.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	subs := b.handlers[event.GetType()]
	b.mu.RUnlock()

	for _, s := range subs {
		s.handler(event)
	}
}

// Specific event implementations

// InputEvent carries one axis change for an aircraft.
type InputEvent struct {
	BaseEvent
	AircraftID string
	Input      control.AxisEvent
}

// NewInputEvent creates a new axis input event
func NewInputEvent(source interface{}, aircraftID string, input control.AxisEvent) *InputEvent {
	return &InputEvent{
		BaseEvent: BaseEvent{
			EventType: AxisInput,
			Source:    source,
		},
		AircraftID: aircraftID,
		Input:      input,
	}
}

// AircraftEvent contains information about aircraft lifecycle events
type AircraftEvent struct {
	BaseEvent
	AircraftID string
	Tick       uint64
}

// NewAircraftEvent creates a new aircraft event
func NewAircraftEvent(eventType Type, source interface{}, aircraftID string, tick uint64) *AircraftEvent {
	return &AircraftEvent{
		BaseEvent: BaseEvent{
			EventType: eventType,
			Source:    source,
		},
		AircraftID: aircraftID,
		Tick:       tick,
	}
}

// AirflowEvent is published when an aircraft crosses the airflow speed gate.
type AirflowEvent struct {
	BaseEvent
	AircraftID string
	Tick       uint64
	Active     bool
	Speed      float64
}

// NewAirflowEvent creates a new airflow event
func NewAirflowEvent(source interface{}, aircraftID string, tick uint64, active bool, speed float64) *AirflowEvent {
	return &AirflowEvent{
		BaseEvent: BaseEvent{
			EventType: AirflowChanged,
			Source:    source,
		},
		AircraftID: aircraftID,
		Tick:       tick,
		Active:     active,
		Speed:      speed,
	}
}

// SimulationEvent marks the start or end of a run.
type SimulationEvent struct {
	BaseEvent
	SessionID string
	Tick      uint64
}

// NewSimulationEvent creates a new simulation lifecycle event
func NewSimulationEvent(eventType Type, source interface{}, sessionID string, tick uint64) *SimulationEvent {
	return &SimulationEvent{
		BaseEvent: BaseEvent{
			EventType: eventType,
			Source:    source,
		},
		SessionID: sessionID,
		Tick:      tick,
	}
}
