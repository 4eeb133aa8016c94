package sessions

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gametunnel/internal/storage/models"
	"gametunnel/internal/storage/sqlite"
)

func TestAttachBindsActiveEndpoint(t *testing.T) {
	active := "us-east-1"
	r := NewRegistry(func() string { return active }, nil, nil)

	s := r.Attach("game-1")
	assert.Equal(t, "game-1", s.ID)
	assert.Equal(t, "us-east-1", s.BoundEndpointID)
	assert.False(t, s.StartedAt.IsZero())

	// A later selection change does not rebind existing sessions.
	active = "eu-west-1"
	again := r.Attach("game-1")
	assert.Equal(t, "us-east-1", again.BoundEndpointID)

	fresh := r.Attach("game-2")
	assert.Equal(t, "eu-west-1", fresh.BoundEndpointID)
}

func TestAttachWithoutSelectionLeavesUnbound(t *testing.T) {
	r := NewRegistry(func() string { return "" }, nil, nil)

	s := r.Attach("")
	assert.NotEmpty(t, s.ID, "empty ids get generated")
	assert.Empty(t, s.BoundEndpointID)

	active, total := r.Counts()
	assert.Equal(t, 1, active)
	assert.Equal(t, 1, total)
}

func TestDetachIsIdempotent(t *testing.T) {
	r := NewRegistry(nil, nil, nil)

	r.Attach("s1")
	r.Detach("s1")
	r.Detach("s1")      // already detached
	r.Detach("unknown") // never attached

	active, total := r.Counts()
	assert.Equal(t, 0, active)
	assert.Equal(t, 1, total, "total keeps counting detached sessions")
}

func TestAddTraffic(t *testing.T) {
	r := NewRegistry(nil, nil, nil)
	r.Attach("s1")

	r.AddTraffic("s1", 100, 50)
	r.AddTraffic("s1", 10, 5)
	r.AddTraffic("ghost", 1, 1)

	sessions := r.Active()
	require.Len(t, sessions, 1)
	assert.Equal(t, uint64(110), sessions[0].BytesIn)
	assert.Equal(t, uint64(55), sessions[0].BytesOut)
}

func TestLifecycleEventsPersistBeforeReturning(t *testing.T) {
	store, err := sqlite.New(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	r := NewRegistry(func() string { return "us-east-1" }, store, nil)
	r.Attach("s1")
	r.Detach("s1")

	// The write happens on the attach/detach goroutine itself, so the events
	// are on disk by the time the calls return.
	events, err := store.GetSessionEvents(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, models.SessionEventEnd, events[0].EventType)
	assert.Equal(t, "s1", events[0].SessionID)
	assert.Equal(t, "us-east-1", events[0].EndpointID)

	starts, err := store.CountSessionEvents(context.Background(), models.SessionEventStart)
	require.NoError(t, err)
	assert.Equal(t, int64(1), starts)
}

func TestRecentEventsNewestFirst(t *testing.T) {
	r := NewRegistry(nil, nil, nil)

	r.Attach("s1")
	r.Attach("s2")
	r.Detach("s1")

	events := r.RecentEvents(10)
	require.Len(t, events, 3)
	assert.Equal(t, models.SessionEventEnd, events[0].EventType)
	assert.Equal(t, "s1", events[0].SessionID)
	assert.Equal(t, models.SessionEventStart, events[2].EventType)

	limited := r.RecentEvents(1)
	require.Len(t, limited, 1)
	assert.Equal(t, models.SessionEventEnd, limited[0].EventType)
}
