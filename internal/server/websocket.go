package server

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/kode4food/caravan/topic"

	"github.com/kode4food/stride/pkg/api"
	"github.com/kode4food/stride/pkg/log"
)

// socket streams submission changes to one WebSocket client, optionally
// filtered to a single submission
type socket struct {
	conn      *websocket.Conn
	consumer  topic.Consumer[Change]
	filter    api.SubmissionID
	closeOnce sync.Once
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	wsBufferSize   = 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  wsBufferSize,
	WriteBufferSize: wsBufferSize,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleWebSocket upgrades the connection and streams change notifications.
// A submission_id query parameter restricts the stream to one submission
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("WebSocket upgrade failed",
			log.Error(err))
		return
	}

	sock := &socket{
		conn:     conn,
		consumer: s.changes.NewConsumer(),
		filter:   api.SubmissionID(c.Query("submission_id")),
	}

	s.mu.Lock()
	s.sockets.Add(sock)
	s.mu.Unlock()

	go func() {
		sock.run()
		s.mu.Lock()
		s.sockets.Remove(sock)
		s.mu.Unlock()
	}()
}

func (sock *socket) run() {
	defer sock.close()

	sock.conn.SetReadLimit(maxMessageSize)
	_ = sock.conn.SetReadDeadline(time.Now().Add(pongWait))
	sock.conn.SetPongHandler(func(string) error {
		_ = sock.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	closed := make(chan struct{})
	go sock.readUntilClosed(closed)

	for {
		select {
		case <-closed:
			return

		case change, ok := <-sock.consumer.Receive():
			if !ok {
				_ = sock.conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = sock.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if !sock.sendIfMatched(change) {
				return
			}

		case <-ticker.C:
			if !sock.sendPing() {
				return
			}
		}
	}
}

// readUntilClosed drains client frames so pongs are processed, signalling
// when the peer goes away
func (sock *socket) readUntilClosed(closed chan struct{}) {
	for {
		if _, _, err := sock.conn.ReadMessage(); err != nil {
			close(closed)
			return
		}
	}
}

func (sock *socket) sendIfMatched(change Change) bool {
	if sock.filter != "" && change.SubmissionID != sock.filter {
		return true
	}

	_ = sock.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := sock.conn.WriteJSON(change); err != nil {
		slog.Error("WebSocket write failed",
			log.SubmissionID(change.SubmissionID),
			log.Error(err))
		return false
	}
	return true
}

func (sock *socket) sendPing() bool {
	_ = sock.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return sock.conn.WriteMessage(websocket.PingMessage, nil) == nil
}

func (sock *socket) close() {
	sock.closeOnce.Do(func() {
		sock.consumer.Close()
		_ = sock.conn.Close()
	})
}
