package dashboard

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"gametunnel/internal/stats"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPongTimeout  = 60 * time.Second
	wsPingInterval = 30 * time.Second
)

// The dashboard binds to loopback; cross-origin pages on the same machine
// are allowed to connect.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

type wsRequest struct {
	Type string `json:"type"`
}

type wsFrame struct {
	Type string          `json:"type"`
	Data *stats.Snapshot `json:"data"`
}

// handleWebsocket upgrades the connection and streams live snapshots. Every
// publish tick produces one frame; a "get_live_stats" request produces an
// immediate one.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	logger := s.logger.With(zap.String("remote", conn.RemoteAddr().String()))
	logger.Debug("websocket client connected")

	sub := s.stats.Subscribe()
	defer s.stats.Unsubscribe(sub)
	defer conn.Close()

	// Requests arrive on their own goroutine so slow reads never stall the
	// snapshot stream. An immediate frame is requested up front, though the
	// broadcaster usually replays the latest snapshot on subscribe anyway.
	requests := make(chan struct{}, 1)
	readerDone := make(chan struct{})
	go s.readRequests(conn, requests, readerDone, logger)

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	writeFrame := func(snap *stats.Snapshot) bool {
		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteJSON(wsFrame{Type: "live_stats", Data: snap}); err != nil {
			logger.Debug("websocket write failed", zap.Error(err))
			return false
		}
		return true
	}

	for {
		select {
		case snap, ok := <-sub:
			if !ok || !writeFrame(snap) {
				return
			}
		case <-requests:
			if !writeFrame(s.stats.Latest()) {
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-readerDone:
			logger.Debug("websocket client disconnected")
			return
		case <-r.Context().Done():
			return
		}
	}
}

// readRequests consumes client messages until the connection drops,
// signalling each snapshot request through the requests channel.
func (s *Server) readRequests(conn *websocket.Conn, requests chan<- struct{}, done chan<- struct{}, logger *zap.Logger) {
	defer close(done)

	conn.SetReadLimit(1024)
	conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	})

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var req wsRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			logger.Debug("ignoring malformed websocket message", zap.Error(err))
			continue
		}
		if req.Type == "get_live_stats" {
			select {
			case requests <- struct{}{}:
			default: // one pending request is enough
			}
		}
	}
}
