package sessions

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gametunnel/internal/storage"
	"gametunnel/internal/storage/models"
)

// maxRecentEvents bounds the in-memory lifecycle event history.
const maxRecentEvents = 1000

// Session is one live client attachment and its endpoint binding.
type Session struct {
	ID              string    `json:"session_id"`
	BoundEndpointID string    `json:"bound_endpoint_id,omitempty"`
	StartedAt       time.Time `json:"started_at"`
	BytesIn         uint64    `json:"bytes_in"`
	BytesOut        uint64    `json:"bytes_out"`
}

// Registry tracks live sessions and which endpoint each was bound to when it
// attached. Sessions are never rebound when the selection changes; migration
// is the data plane's problem.
type Registry struct {
	activeEndpoint func() string
	store          storage.Storage
	logger         *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
	total    int
	events   []*models.SessionEvent
}

// NewRegistry creates a session registry. activeEndpoint supplies the
// current selection at attach time; store may be nil to disable persistence.
func NewRegistry(activeEndpoint func() string, store storage.Storage, logger *zap.Logger) *Registry {
	if activeEndpoint == nil {
		activeEndpoint = func() string { return "" }
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		activeEndpoint: activeEndpoint,
		store:          store,
		logger:         logger.Named("sessions"),
		sessions:       make(map[string]*Session),
	}
}

// Attach registers a session bound to the currently active endpoint, or
// unbound if there is none. An empty id gets a generated one. Returns a copy
// of the binding.
func (r *Registry) Attach(sessionID string) Session {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	session := &Session{
		ID:              sessionID,
		BoundEndpointID: r.activeEndpoint(),
		StartedAt:       time.Now(),
	}

	r.mu.Lock()
	if existing, ok := r.sessions[sessionID]; ok {
		// Re-attach of a live session keeps the original binding.
		out := *existing
		r.mu.Unlock()
		return out
	}
	r.sessions[sessionID] = session
	r.total++
	event := r.appendEventLocked(sessionID, models.SessionEventStart, session.BoundEndpointID)
	out := *session
	r.mu.Unlock()

	r.persistEvent(event)
	r.logger.Debug("session attached",
		zap.String("session", sessionID),
		zap.String("endpoint", out.BoundEndpointID))
	return out
}

// Detach removes a session. Detaching an unknown or already-detached id is a
// no-op, not an error.
func (r *Registry) Detach(sessionID string) {
	r.mu.Lock()
	session, ok := r.sessions[sessionID]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.sessions, sessionID)
	event := r.appendEventLocked(sessionID, models.SessionEventEnd, session.BoundEndpointID)
	r.mu.Unlock()

	r.persistEvent(event)
	r.logger.Debug("session detached", zap.String("session", sessionID))
}

// AddTraffic credits transferred bytes to a session. Unknown sessions are
// ignored; the data plane may race a detach.
func (r *Registry) AddTraffic(sessionID string, bytesIn, bytesOut uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if session, ok := r.sessions[sessionID]; ok {
		session.BytesIn += bytesIn
		session.BytesOut += bytesOut
	}
}

// Counts returns the number of live sessions and the total ever attached.
func (r *Registry) Counts() (active, total int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions), r.total
}

// Active returns copies of all live sessions.
func (r *Registry) Active() []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, *s)
	}
	return out
}

// RecentEvents returns up to limit lifecycle events, newest first.
func (r *Registry) RecentEvents(limit int) []*models.SessionEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if limit <= 0 || limit > len(r.events) {
		limit = len(r.events)
	}
	out := make([]*models.SessionEvent, 0, limit)
	for i := len(r.events) - 1; i >= len(r.events)-limit; i-- {
		out = append(out, r.events[i])
	}
	return out
}

// appendEventLocked records a lifecycle event in memory and returns it for
// persistence. Callers hold r.mu.
func (r *Registry) appendEventLocked(sessionID, eventType, endpointID string) *models.SessionEvent {
	event := &models.SessionEvent{
		SessionID:  sessionID,
		EventType:  eventType,
		EndpointID: endpointID,
		OccurredAt: time.Now(),
	}
	if len(r.events) >= maxRecentEvents {
		r.events = r.events[1:]
	}
	r.events = append(r.events, event)
	return event
}

// persistEvent writes a lifecycle event through to storage best-effort, on
// the caller's goroutine and outside r.mu. A write failure is logged and
// never affects the session operation.
func (r *Registry) persistEvent(event *models.SessionEvent) {
	if r.store == nil {
		return
	}
	if err := r.store.RecordSessionEvent(context.Background(), event); err != nil {
		r.logger.Warn("failed to persist session event", zap.Error(err))
	}
}
