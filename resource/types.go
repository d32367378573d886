package resource

import "context"

// Handle is an opaque reference to a live engine resource in a table.
// Handle 0 is reserved and always invalid.
type Handle uint32

// Kind names what a handle backs, e.g. "uniform" or "variable".
type Kind string

// EventType identifies a lifecycle transition.
type EventType uint8

const (
	EventCreated EventType = iota
	EventReleased
	EventLeaked
)

func (t EventType) String() string {
	switch t {
	case EventCreated:
		return "created"
	case EventReleased:
		return "released"
	case EventLeaked:
		return "leaked"
	default:
		return "unknown"
	}
}

// Event represents a resource lifecycle event.
type Event struct {
	Kind   Kind
	Handle Handle
	Type   EventType
}

// Observer receives notifications about resource lifecycle events.
type Observer interface {
	OnResourceEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) OnResourceEvent(e Event) { f(e) }

// Releaser is the native side of a handle. Release is called at most once.
type Releaser interface {
	Release(ctx context.Context) error
}
