package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/saturnblock/pythonplantpot/internal/log"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 512
)

// handleStatusStream pushes the engine snapshot every StatusInterval
func (s *Server) handleStatusStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("Failed to upgrade connection: %v", err)
		return
	}
	log.InfoH3("Status stream connected: %s", r.RemoteAddr)

	gone := make(chan struct{})
	go readPump(conn, gone)

	ticker := time.NewTicker(s.StatusInterval)
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ping.Stop()
		_ = conn.Close()
		log.InfoH3("Status stream disconnected: %s", r.RemoteAddr)
	}()

	if !s.push(conn) {
		return
	}
	for {
		select {
		case <-gone:
			return
		case <-s.closing:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-ticker.C:
			if !s.push(conn) {
				return
			}
		}
	}
}

func (s *Server) push(conn *websocket.Conn) bool {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(s.backend.Snapshot()) == nil
}

// readPump discards client messages and closes gone when the peer leaves
func readPump(conn *websocket.Conn, gone chan<- struct{}) {
	defer close(gone)

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error("WebSocket error: %v", err)
			}
			return
		}
	}
}
