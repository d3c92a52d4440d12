package history

import (
	"context"
	"time"
)

// EventType defines the kind of supervision event.
type EventType string

const (
	EventLaunch     EventType = "launch"
	EventStop       EventType = "stop"
	EventForceKill  EventType = "force_kill"
	EventStaleClean EventType = "stale_clean"
	EventStopFailed EventType = "stop_failed"
)

// Event is one supervision lifecycle event exported to the audit trail.
type Event struct {
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	PID        int       `json:"pid"`
	LogPath    string    `json:"log_path,omitempty"`
	Note       string    `json:"note,omitempty"`
}

// Sink is a destination for supervision events. Implementations must be
// safe for concurrent use. Recording is best-effort from the supervisor's
// perspective; a failing sink never fails supervision.
type Sink interface {
	Send(ctx context.Context, e Event) error
	Close() error
}
