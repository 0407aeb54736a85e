package internal

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 8192
	sendBuffer = 256
)

// Conn is one live connection handle, owned by exactly one identity. A user
// may hold several at once (multiple devices).
type Conn struct {
	id         string
	identity   Identity
	credential string
	sock       *websocket.Conn
	send       chan []byte
	done       chan struct{}
	once       sync.Once
}

func newConn(identity Identity, credential string, sock *websocket.Conn) *Conn {
	return &Conn{
		id:         uuid.NewString(),
		identity:   identity,
		credential: credential,
		sock:       sock,
		send:       make(chan []byte, sendBuffer),
		done:       make(chan struct{}),
	}
}

// ID returns the handle's unique id.
func (c *Conn) ID() string { return c.id }

// Identity returns the identity that owns this handle.
func (c *Conn) Identity() Identity { return c.identity }

// close signals the write pump to finish. Safe to call more than once.
func (c *Conn) close() {
	c.once.Do(func() { close(c.done) })
}

// enqueue hands a payload to the write pump without blocking. It reports
// false when the handle is closing or its buffer is full; the caller treats
// that as a delivery failure and schedules cleanup.
func (c *Conn) enqueue(payload []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// readPump consumes commands from the socket until the peer goes away, then
// runs the disconnect cascade exactly once via the deferred cleanup.
func (s *Server) readPump(conn *Conn) {
	defer func() {
		s.hub.Disconnect(conn)
		_ = conn.sock.Close()
		s.metrics.DecConn()
		if !s.hub.Online(conn.identity.ID) {
			s.limiter.Forget(conn.identity.ID)
		}
	}()
	conn.sock.SetReadLimit(maxMsgSize)
	_ = conn.sock.SetReadDeadline(time.Now().Add(pongWait))
	conn.sock.SetPongHandler(func(string) error {
		return conn.sock.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, payload, err := conn.sock.ReadMessage()
		if err != nil {
			// normal close or read error; the deferred cleanup fires.
			return
		}
		var cmd Command
		if err := json.Unmarshal(payload, &cmd); err != nil {
			s.sendError(conn, "bad_command", "malformed command payload")
			continue
		}
		s.dispatch(conn, cmd)
	}
}

func (s *Server) writePump(conn *Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.sock.Close()
	}()
	for {
		select {
		case message := <-conn.send:
			_ = conn.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.sock.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-conn.done:
			_ = conn.sock.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.sock.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case <-ticker.C:
			_ = conn.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.sock.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
