package attendance

import "time"

// EventType names a session event.
type EventType string

// Event types emitted by the engine.
const (
	EventSessionStarted   EventType = "session.started"
	EventAttendance       EventType = "attendance.recorded"
	EventLecturerAssigned EventType = "session.lecturer_assigned"
	EventSessionStopped   EventType = "session.stopped"
	EventSessionCrashed   EventType = "session.crashed"
)

// Event is one notification about a session.
type Event struct {
	Type       EventType `json:"type" msgpack:"type"`
	SessionID  string    `json:"session_id" msgpack:"session_id"`
	IdentityID string    `json:"identity_id,omitempty" msgpack:"identity_id,omitempty"`
	Name       string    `json:"name,omitempty" msgpack:"name,omitempty"`
	Distance   float64   `json:"distance,omitempty" msgpack:"distance,omitempty"`
	Device     int       `json:"device" msgpack:"device"`
	Reason     string    `json:"reason,omitempty" msgpack:"reason,omitempty"`
	Time       time.Time `json:"time" msgpack:"time"`
}

// EventSink receives session events. Publish must not block the calling loop for long.
type EventSink interface {
	Publish(Event)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(Event)

func (f EventSinkFunc) Publish(e Event) {
	f(e)
}

// MultiSink fans an event out to every sink in order.
type MultiSink []EventSink

func (m MultiSink) Publish(e Event) {
	for _, sink := range m {
		if sink != nil {
			sink.Publish(e)
		}
	}
}

type discardSink struct{}

func (discardSink) Publish(Event) {}
