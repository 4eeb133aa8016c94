package monitor

import "time"

// Status is the health classification of an endpoint. It changes only
// through the engine's transition rules, never directly from raw samples.
type Status int

const (
	StatusUnknown Status = iota
	StatusOnline
	StatusDegraded
	StatusOffline
)

func (s Status) String() string {
	switch s {
	case StatusOnline:
		return "online"
	case StatusDegraded:
		return "degraded"
	case StatusOffline:
		return "offline"
	default:
		return "unknown"
	}
}

// Wire maps the internal status onto the two-state dashboard contract.
// Degraded endpoints are still serving, so they report as online.
func (s Status) Wire() string {
	switch s {
	case StatusOnline, StatusDegraded:
		return "online"
	default:
		return "offline"
	}
}

// Candidate reports whether an endpoint with this status may carry traffic.
func (s Status) Candidate() bool {
	return s == StatusOnline || s == StatusDegraded
}

// EndpointState is the engine's per-endpoint scoring state, updated once per
// completed probe round.
type EndpointState struct {
	EndpointID           string
	Status               Status
	ConsecutiveFailures  int
	ConsecutiveSuccesses int
	EWMALatencyMS        float64
	hasEWMA              bool
	Score                float64
	LastChecked          time.Time
}

// HasLatency reports whether at least one successful probe has seeded the
// EWMA.
func (s *EndpointState) HasLatency() bool { return s.hasEWMA }

// Selection is the single cell naming the endpoint that should carry
// traffic. ActiveEndpointID is empty when nothing is eligible.
type Selection struct {
	ActiveEndpointID  string
	Since             time.Time
	RoundsSinceSwitch int
}

// None reports whether no endpoint is selected.
func (s Selection) None() bool { return s.ActiveEndpointID == "" }
