package dashboard

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gametunnel/internal/config"
	"gametunnel/internal/monitor"
	"gametunnel/internal/sessions"
	"gametunnel/internal/stats"
	"gametunnel/internal/storage/models"
	"gametunnel/internal/storage/sqlite"
)

type staticSource struct {
	view monitor.View
}

func (s *staticSource) View() monitor.View { return s.view }

func testView(at time.Time) monitor.View {
	return monitor.View{
		At: at,
		Endpoints: []monitor.EndpointView{
			{
				Endpoint: &models.Endpoint{ID: "us-east", Name: "US East", Host: "1.1.1.1", Port: 9000, Region: "us"},
				State: monitor.EndpointState{
					EndpointID:    "us-east",
					Status:        monitor.StatusOnline,
					EWMALatencyMS: 24,
				},
				Window: []monitor.Sample{
					{Timestamp: at.Add(-10 * time.Second), LatencyMS: 26, Succeeded: true},
					{Timestamp: at, LatencyMS: 24, Succeeded: true},
				},
			},
			{
				Endpoint: &models.Endpoint{ID: "eu-west", Name: "EU West", Host: "2.2.2.2", Port: 9000, Region: "eu"},
				State: monitor.EndpointState{
					EndpointID: "eu-west",
					Status:     monitor.StatusOffline,
				},
			},
		},
		Selection: monitor.Selection{ActiveEndpointID: "us-east", Since: at},
	}
}

func testServer(t *testing.T) (*Server, *sessions.Registry) {
	t.Helper()

	cfg := config.Default()
	cfg.Servers = []config.ServerConfig{
		{Name: "US East", Host: "1.1.1.1", Port: 9000, Region: "us"},
		{Name: "EU West", Host: "2.2.2.2", Port: 9000, Region: "eu"},
	}

	reg := sessions.NewRegistry(func() string { return "us-east" }, nil, nil)
	agg := stats.NewAggregator(&staticSource{view: testView(time.Now())}, reg)
	broadcaster := stats.NewBroadcaster(agg, time.Second, nil)

	return New(cfg, broadcaster, reg, nil, nil), reg
}

func getJSON(t *testing.T, handler http.Handler, path string, out any) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if out != nil && rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	}
	return rec
}

func TestStatsEndpoint(t *testing.T) {
	srv, reg := testServer(t)
	reg.Attach("s1")
	handler := srv.Router()

	var snap stats.Snapshot
	rec := getJSON(t, handler, "/api/stats", &snap)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, 1, snap.Servers.Online)
	assert.Equal(t, 2, snap.Servers.Total)
	assert.Equal(t, 1, snap.Connections.Active)
	assert.Equal(t, "us-east", snap.ActiveServer)
	require.Contains(t, snap.ServerDetails, "eu-west")
	assert.Equal(t, "offline", snap.ServerDetails["eu-west"].Status)
}

func TestServersEndpoint(t *testing.T) {
	srv, _ := testServer(t)

	var resp struct {
		ActiveServer  string                         `json:"active_server"`
		ServerDetails map[string]*stats.ServerDetail `json:"server_details"`
	}
	rec := getJSON(t, srv.Router(), "/api/servers", &resp)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "us-east", resp.ActiveServer)
	require.Contains(t, resp.ServerDetails, "us-east")
	assert.Equal(t, "online", resp.ServerDetails["us-east"].Status)
	require.NotNil(t, resp.ServerDetails["us-east"].Latency)
	assert.InDelta(t, 24, *resp.ServerDetails["us-east"].Latency, 1e-9)
}

func TestConnectionsEndpoint(t *testing.T) {
	srv, reg := testServer(t)
	reg.Attach("s1")
	reg.Attach("s2")
	reg.Detach("s2")

	var resp struct {
		Connections stats.ConnectionSummary `json:"connections"`
		Sessions    []sessions.Session      `json:"sessions"`
		Events      []*models.SessionEvent  `json:"events"`
	}
	rec := getJSON(t, srv.Router(), "/api/connections", &resp)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, 1, resp.Connections.Active)
	assert.Equal(t, 2, resp.Connections.Total)
	require.Len(t, resp.Sessions, 1)
	assert.Equal(t, "s1", resp.Sessions[0].ID)
	require.Len(t, resp.Events, 3)
	assert.Equal(t, models.SessionEventEnd, resp.Events[0].EventType)
}

func TestConnectionsEndpointServesPersistedEvents(t *testing.T) {
	store, err := sqlite.New(filepath.Join(t.TempDir(), "dashboard.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := config.Default()
	reg := sessions.NewRegistry(func() string { return "us-east" }, store, nil)
	agg := stats.NewAggregator(&staticSource{view: testView(time.Now())}, reg)
	srv := New(cfg, stats.NewBroadcaster(agg, time.Second, nil), reg, store, nil)

	reg.Attach("s1")
	reg.Detach("s1")
	reg.Attach("s2")

	var resp struct {
		Events           []*models.SessionEvent `json:"events"`
		LifetimeSessions int64                  `json:"lifetime_sessions"`
	}
	rec := getJSON(t, srv.Router(), "/api/connections", &resp)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, resp.Events, 3, "events survive in the store, not just in memory")
	assert.Equal(t, int64(2), resp.LifetimeSessions, "counts every session ever started")
}

func TestHistoryEndpointValidation(t *testing.T) {
	srv, _ := testServer(t)
	handler := srv.Router()

	rec := getJSON(t, handler, "/api/history", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = getJSON(t, handler, "/api/history?server=us-east&limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = getJSON(t, handler, "/api/history?server=nowhere", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHistoryEndpointServesWindow(t *testing.T) {
	srv, _ := testServer(t)

	var resp struct {
		Server  string               `json:"server"`
		History []stats.HistoryPoint `json:"history"`
	}
	rec := getJSON(t, srv.Router(), "/api/history?server=us-east", &resp)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "us-east", resp.Server)
	require.Len(t, resp.History, 2)
	assert.InDelta(t, 24, resp.History[1].Latency, 1e-9, "newest point comes last")

	rec = getJSON(t, srv.Router(), "/api/history?server=us-east&limit=1", &resp)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, resp.History, 1)
	assert.InDelta(t, 24, resp.History[0].Latency, 1e-9)
}

func TestConfigEndpointIsSanitized(t *testing.T) {
	srv, _ := testServer(t)

	rec := getJSON(t, srv.Router(), "/api/config", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp, "servers")
	assert.Contains(t, resp, "monitor")
	assert.NotContains(t, rec.Body.String(), "logging", "only monitoring parameters leave the process")
}

func TestWebsocketLiveStats(t *testing.T) {
	srv, _ := testServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "get_live_stats"}))

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var frame struct {
		Type string          `json:"type"`
		Data *stats.Snapshot `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&frame))

	assert.Equal(t, "live_stats", frame.Type)
	require.NotNil(t, frame.Data)
	assert.Equal(t, 2, frame.Data.Servers.Total)
	assert.Equal(t, "us-east", frame.Data.ActiveServer)
}

func TestWebsocketReceivesPublishedSnapshots(t *testing.T) {
	srv, _ := testServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	srv.stats.Publish()

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var frame struct {
		Type string `json:"type"`
	}
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "live_stats", frame.Type)
}
