package stage

import "github.com/kingrea/storyforge/internal/hierarchy"

// EventKind names a progress notification.
type EventKind string

const (
	EventStarted   EventKind = "started"
	EventProcessed EventKind = "processed"
	EventSkipped   EventKind = "skipped"
	EventFailed    EventKind = "failed"
	EventFinished  EventKind = "finished"
)

// Event is a progress notification. Total is set on EventStarted; Report is
// set on EventFinished.
type Event struct {
	Stage  string
	Kind   EventKind
	ID     hierarchy.ID
	Total  int
	Err    error
	Report *Report
}

// Observer receives progress events. Implementations must be safe for
// concurrent use; workers report from their own goroutines.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Event)

func (f ObserverFunc) Observe(event Event) {
	f(event)
}

// Observers fans events out to several observers in order.
type Observers []Observer

func (o Observers) Observe(event Event) {
	for _, observer := range o {
		if observer != nil {
			observer.Observe(event)
		}
	}
}
