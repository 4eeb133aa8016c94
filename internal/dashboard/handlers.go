package dashboard

import (
	"net/http"
	"strconv"

	"github.com/go-chi/render"
	"go.uber.org/zap"

	"gametunnel/internal/stats"
	"gametunnel/internal/storage/models"
)

const defaultHistoryLimit = 60

// handleStats returns the full latest snapshot.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, s.stats.Latest())
}

// handleServers returns only the per-server section of the snapshot.
func (s *Server) handleServers(w http.ResponseWriter, r *http.Request) {
	snap := s.stats.Latest()
	render.JSON(w, r, map[string]any{
		"active_server":  snap.ActiveServer,
		"servers":        snap.Servers,
		"server_details": snap.ServerDetails,
	})
}

// handleConnections returns session counts, live sessions and recent
// lifecycle events. With a store the events come from disk, so they cover
// sessions from before the last restart; counts over the persisted history
// are reported alongside.
func (s *Server) handleConnections(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"connections": s.stats.Latest().Connections,
	}
	if s.sessions != nil {
		resp["sessions"] = s.sessions.Active()
		resp["events"] = s.sessions.RecentEvents(50)
	}
	if s.store != nil {
		if events, err := s.store.GetSessionEvents(r.Context(), 50); err == nil {
			resp["events"] = events
		} else {
			s.logger.Warn("session event query failed", zap.Error(err))
		}
		if starts, err := s.store.CountSessionEvents(r.Context(), models.SessionEventStart); err == nil {
			resp["lifetime_sessions"] = starts
		}
	}
	render.JSON(w, r, resp)
}

// handleHistory returns persisted probe samples for one server. Without a
// store it serves the in-memory window from the latest snapshot.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	serverID := r.URL.Query().Get("server")
	if serverID == "" {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, map[string]string{"error": "missing 'server' query parameter"})
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "invalid 'limit' query parameter"})
			return
		}
		limit = parsed
	}

	detail, ok := s.stats.Latest().ServerDetails[serverID]
	if !ok {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, map[string]string{"error": "unknown server"})
		return
	}

	if s.store == nil {
		history := detail.LatencyHistory
		if len(history) > limit {
			history = history[len(history)-limit:]
		}
		render.JSON(w, r, map[string]any{"server": serverID, "history": history})
		return
	}

	records, err := s.store.GetSampleHistory(r.Context(), serverID, limit)
	if err != nil {
		s.logger.Warn("history query failed", zap.String("server", serverID), zap.Error(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, map[string]string{"error": "history unavailable"})
		return
	}

	history := make([]stats.HistoryPoint, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- { // stored newest-first, serve oldest-first
		rec := records[i]
		if !rec.Success || rec.LatencyMS == nil {
			continue
		}
		history = append(history, stats.HistoryPoint{
			Timestamp: rec.ProbedAt.Unix(),
			Latency:   *rec.LatencyMS,
		})
	}
	render.JSON(w, r, map[string]any{"server": serverID, "history": history})
}

// handleConfig exposes the monitoring parameters the UI displays. The full
// config never leaves the process.
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	mon := s.appCfg.Monitor
	servers := make([]map[string]any, 0, len(s.appCfg.Servers))
	for _, sv := range s.appCfg.Servers {
		servers = append(servers, map[string]any{
			"name":     sv.Name,
			"host":     sv.Host,
			"port":     sv.Port,
			"region":   sv.Region,
			"location": sv.Location,
		})
	}

	render.JSON(w, r, map[string]any{
		"servers": servers,
		"monitor": map[string]any{
			"probe_interval_seconds":   mon.ProbeInterval.Duration().Seconds(),
			"probe_timeout_seconds":    mon.ProbeTimeout.Duration().Seconds(),
			"publish_interval_seconds": mon.PublishInterval.Duration().Seconds(),
			"strategy":                 mon.Strategy,
			"window_size":              mon.WindowSize,
		},
	})
}
