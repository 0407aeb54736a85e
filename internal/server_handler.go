package internal

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Server wires the websocket surface: credential verification, handle
// registration, and command dispatch into the hub and relay.
type Server struct {
	hub      *Hub
	relay    *Relay
	verifier Verifier
	limiter  *RateLimiter
	metrics  *Metrics
	log      *zap.Logger
	upgrader websocket.Upgrader
}

func NewServer(hub *Hub, relay *Relay, verifier Verifier, limiter *RateLimiter, metrics *Metrics, log *zap.Logger, allowedOrigins []string) *Server {
	return &Server{
		hub:      hub,
		relay:    relay,
		verifier: verifier,
		limiter:  limiter,
		metrics:  metrics,
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return originAllowed(allowedOrigins, r.Header.Get("Origin"))
			},
		},
	}
}

// Register installs the server's routes on a gin engine.
func (s *Server) Register(router *gin.Engine, wsPath string) {
	router.GET(wsPath, s.HandleWS)
	router.GET("/healthz", s.HandleHealth)
	router.GET("/metrics", gin.WrapH(s.metrics))
}

func (s *Server) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HandleWS authenticates the connection attempt and, only after the
// credential verifies, upgrades the socket and registers the handle. A bad
// credential is refused here with no registry state created.
func (s *Server) HandleWS(c *gin.Context) {
	credential := bearerToken(c.Request)
	identity, err := s.verifier.Verify(credential)
	if err != nil {
		s.metrics.IncAuthFailure()
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credential"})
		return
	}

	sock, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("upgrade failed", zap.String("user", identity.ID), zap.Error(err))
		return
	}

	conn := newConn(identity, credential, sock)
	s.hub.Register(conn)
	s.metrics.IncConn()
	s.log.Info("connected",
		zap.String("conn", conn.id),
		zap.String("user", identity.ID),
		zap.String("name", identity.Name))

	go s.writePump(conn)
	go s.readPump(conn)
}

// dispatch routes one client command. Persistence-bound commands run on this
// connection's read goroutine, so a slow store call delays only this
// connection's next command, never other users' traffic.
func (s *Server) dispatch(conn *Conn, cmd Command) {
	userID := conn.identity.ID
	s.hub.Touch(userID)
	switch cmd.Type {
	case CommandJoin:
		if cmd.Group == "" {
			s.sendError(conn, "bad_command", "join requires a group")
			return
		}
		snapshot, err := s.hub.Join(userID, cmd.Group)
		if err != nil {
			s.sendError(conn, "not_connected", err.Error())
			return
		}
		s.sendEvent(conn, EventGroupSnapshot, snapshot)
	case CommandLeave:
		if cmd.Group == "" {
			s.sendError(conn, "bad_command", "leave requires a group")
			return
		}
		s.hub.Leave(userID, cmd.Group)
	case CommandTyping:
		if cmd.Channel == "" {
			s.sendError(conn, "bad_command", "typing requires a channel")
			return
		}
		if err := s.hub.SetTyping(userID, cmd.Channel, cmd.IsTyping); err != nil {
			s.sendError(conn, "not_connected", err.Error())
		}
	case CommandPost:
		if !s.limiter.Allow(userID) {
			s.sendError(conn, "rate_limited", "too many messages, slow down")
			return
		}
		if err := s.relay.PostMessage(context.Background(), conn.identity, conn.credential, cmd.Body); err != nil {
			s.sendError(conn, "persistence_error", "post could not be saved")
		}
	case CommandDirect:
		if cmd.To == "" {
			s.sendError(conn, "bad_command", "dm requires a recipient")
			return
		}
		if !s.limiter.Allow(userID) {
			s.sendError(conn, "rate_limited", "too many messages, slow down")
			return
		}
		req := CreateMessageRequest{
			ChatID:    cmd.ChatID,
			Recipient: cmd.To,
			Content:   cmd.Body,
			MediaURL:  cmd.MediaURL,
			MediaType: cmd.MediaType,
		}
		// the relay already notifies the sender's connections on failure
		_ = s.relay.SendDirect(context.Background(), conn.identity, conn.credential, req)
	default:
		s.sendError(conn, "bad_command", "unknown command type")
	}
}

// sendEvent delivers an event to a single connection only, used for the
// join snapshot reply and direct error events.
func (s *Server) sendEvent(conn *Conn, event string, data any) {
	payload, err := json.Marshal(Event{Event: event, Data: data})
	if err != nil {
		s.log.Error("event marshal failed", zap.String("event", event), zap.Error(err))
		return
	}
	if !conn.enqueue(payload) {
		s.metrics.IncDeliveryFailure()
		s.log.Warn("delivery failed, dropping connection", zap.String("conn", conn.id), zap.String("user", conn.identity.ID))
		go s.hub.Disconnect(conn)
	}
}

func (s *Server) sendError(conn *Conn, code, message string) {
	s.sendEvent(conn, EventError, ErrorEvent{Code: code, Message: message})
}

func bearerToken(r *http.Request) string {
	if authz := strings.TrimSpace(r.Header.Get("Authorization")); authz != "" {
		if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return strings.TrimSpace(authz[len("bearer "):])
		}
	}
	return r.URL.Query().Get("token")
}
