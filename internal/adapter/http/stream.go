package http

import (
	"context"
	"net/http"
	"time"

	"github.com/couchcryptid/floodguard/internal/session"
	"github.com/gorilla/websocket"
)

const (
	pingInterval = 30 * time.Second
	writeWait    = 10 * time.Second
)

// StreamMessage is one frame on the snapshot stream.
type StreamMessage struct {
	Type      string            `json:"type"` // "snapshot" or "ping"
	Snapshot  *session.Snapshot `json:"snapshot,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// handleStream pushes the current snapshot on connect and after every change
// notification until the client disconnects or the server shuts down.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err, "remote_addr", r.RemoteAddr)
		return
	}
	defer conn.Close()

	s.metrics.StreamClients.Inc()
	defer s.metrics.StreamClients.Dec()
	s.logger.Debug("stream client connected", "remote_addr", r.RemoteAddr)

	changes, unsubscribe := s.dash.Subscribe()
	defer unsubscribe()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go readUntilClosed(conn, cancel)

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	if err := s.sendSnapshot(conn); err != nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("stream client disconnected", "remote_addr", r.RemoteAddr)
			return
		case <-s.closing:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(writeWait))
			return
		case <-changes:
			if err := s.sendSnapshot(conn); err != nil {
				return
			}
		case <-ticker.C:
			if err := writeMessage(conn, StreamMessage{Type: "ping", Timestamp: time.Now()}); err != nil {
				s.logger.Debug("stream ping failed", "error", err, "remote_addr", r.RemoteAddr)
				return
			}
		}
	}
}

func (s *Server) sendSnapshot(conn *websocket.Conn) error {
	snap := s.dash.Snapshot()
	err := writeMessage(conn, StreamMessage{Type: "snapshot", Snapshot: &snap, Timestamp: time.Now()})
	if err != nil {
		s.logger.Debug("stream write failed", "error", err)
	}
	return err
}

func writeMessage(conn *websocket.Conn, msg StreamMessage) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteJSON(msg)
}

// readUntilClosed drains client frames so control messages are processed and
// cancels once the connection fails.
func readUntilClosed(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
