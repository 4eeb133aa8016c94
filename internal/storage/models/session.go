package models

import "time"

// Session event types.
const (
	SessionEventStart = "start"
	SessionEventEnd   = "end"
)

// SessionEvent is a persisted session lifecycle event, fed by the data-plane
// collaborator through the monitor's session hooks.
type SessionEvent struct {
	ID         int64     `json:"id"`
	SessionID  string    `json:"session_id"`
	EventType  string    `json:"event_type"` // start, end
	EndpointID string    `json:"endpoint_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
