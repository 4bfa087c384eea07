package sync

import "time"

// EventType classifies sync activity.
type EventType string

const (
	EventSaved    EventType = "saved"
	EventQueued   EventType = "queued"
	EventSynced   EventType = "synced"
	EventFlushed  EventType = "flushed"
	EventLoaded   EventType = "loaded"
	EventOnline   EventType = "online"
	EventOffline  EventType = "offline"
	EventError    EventType = "error"
	EventImported EventType = "imported"
)

// Event is a sync activity notification, e.g. for the status dashboard.
type Event struct {
	Type    EventType `json:"type"`
	Time    time.Time `json:"time"`
	Message string    `json:"message,omitempty"`
	Ops     int       `json:"ops,omitempty"`
	Pending int       `json:"pending"`
}

// EventSink receives events. Publish must not block.
type EventSink interface {
	Publish(Event)
}

type discardSink struct{}

func (discardSink) Publish(Event) {}
