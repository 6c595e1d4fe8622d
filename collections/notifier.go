package collections

type EventType string

const (
	EventCreated EventType = "created"
	EventUpdated EventType = "updated"
	EventDeleted EventType = "deleted"
)

// Event describes a committed change to a collection.
type Event struct {
	Collection string    `json:"collection"`
	Type       EventType `json:"type"`
	ID         string    `json:"id"`
}

// Notifier is told about every committed mutation. Notify must not block.
type Notifier interface {
	Notify(Event)
}

type NotifierFunc func(Event)

func (f NotifierFunc) Notify(e Event) { f(e) }

// Discard drops every event.
var Discard Notifier = NotifierFunc(func(Event) {})
