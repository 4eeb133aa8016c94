package stats

import (
	"time"

	"gametunnel/internal/monitor"
)

// HistoryPoint is one successful latency measurement on the wire.
type HistoryPoint struct {
	Timestamp int64   `json:"timestamp"` // unix seconds
	Latency   float64 `json:"latency"`   // milliseconds
}

// ServerDetail is the per-endpoint section of a snapshot. Status carries the
// two-state dashboard contract ("online"/"offline"); latency is absent for
// endpoints without usable measurements.
type ServerDetail struct {
	Name           string         `json:"name"`
	Host           string         `json:"host"`
	Port           int            `json:"port"`
	Region         string         `json:"region"`
	Location       string         `json:"location"`
	Status         string         `json:"status"`
	Latency        *float64       `json:"latency,omitempty"`
	LatencyHistory []HistoryPoint `json:"latency_history"`
}

// ServerSummary aggregates endpoint health.
type ServerSummary struct {
	Online     int     `json:"online"`
	Total      int     `json:"total"`
	AvgLatency float64 `json:"avg_latency"`
}

// ConnectionSummary aggregates session counts.
type ConnectionSummary struct {
	Active int `json:"active"`
	Total  int `json:"total"`
}

// Snapshot is the immutable aggregate view published to subscribers.
// Consumers read it; nobody mutates it after construction.
type Snapshot struct {
	Timestamp     int64                    `json:"timestamp"`
	Servers       ServerSummary            `json:"servers"`
	Connections   ConnectionSummary        `json:"connections"`
	ActiveServer  string                   `json:"active_server,omitempty"`
	ServerDetails map[string]*ServerDetail `json:"server_details"`
}

// StateSource supplies a round-consistent view of endpoint state.
type StateSource interface {
	View() monitor.View
}

// SessionSource supplies session counts.
type SessionSource interface {
	Counts() (active, total int)
}

// Aggregator joins monitor and session state into snapshots.
type Aggregator struct {
	source   StateSource
	sessions SessionSource
}

// NewAggregator creates an aggregator. sessions may be nil when no session
// registry is wired (one-shot CLI use).
func NewAggregator(source StateSource, sessions SessionSource) *Aggregator {
	return &Aggregator{source: source, sessions: sessions}
}

// Snapshot builds one immutable snapshot from the current round state.
func (a *Aggregator) Snapshot() *Snapshot {
	view := a.source.View()

	snap := &Snapshot{
		Timestamp:     view.At.Unix(),
		ActiveServer:  view.Selection.ActiveEndpointID,
		ServerDetails: make(map[string]*ServerDetail, len(view.Endpoints)),
	}
	if a.sessions != nil {
		snap.Connections.Active, snap.Connections.Total = a.sessions.Counts()
	}

	var latencySum float64
	var latencyCount int

	for _, ev := range view.Endpoints {
		detail := &ServerDetail{
			Name:           ev.Endpoint.Name,
			Host:           ev.Endpoint.Host,
			Port:           ev.Endpoint.Port,
			Region:         ev.Endpoint.Region,
			Location:       ev.Endpoint.Location,
			Status:         ev.State.Status.Wire(),
			LatencyHistory: historyPoints(ev.Window),
		}

		// Candidate status implies at least one successful probe, so the
		// EWMA is always seeded here.
		if ev.State.Status.Candidate() {
			latency := ev.State.EWMALatencyMS
			detail.Latency = &latency
			latencySum += latency
			latencyCount++
		}

		snap.ServerDetails[ev.Endpoint.ID] = detail
		snap.Servers.Total++
		if ev.State.Status.Candidate() {
			snap.Servers.Online++
		}
	}

	if latencyCount > 0 {
		snap.Servers.AvgLatency = latencySum / float64(latencyCount)
	}
	return snap
}

// historyPoints maps a sample window onto wire history. Failed samples
// contribute no latency point; they only show up through status.
func historyPoints(window []monitor.Sample) []HistoryPoint {
	points := make([]HistoryPoint, 0, len(window))
	for _, s := range window {
		if !s.Succeeded {
			continue
		}
		points = append(points, HistoryPoint{
			Timestamp: s.Timestamp.Unix(),
			Latency:   s.LatencyMS,
		})
	}
	return points
}

// Age reports how old a snapshot is.
func (s *Snapshot) Age() time.Duration {
	return time.Since(time.Unix(s.Timestamp, 0))
}
