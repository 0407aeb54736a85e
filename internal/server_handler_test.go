package internal

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const handlerTestSecret = "handler-secret"

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	store := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(StoredPost{ID: 42, Body: "hello"})
	}))
	t.Cleanup(store.Close)

	metrics := NewMetrics()
	hub := NewHub(zap.NewNop(), metrics, 0)
	relay := NewRelay(hub, NewStoreClient(store.URL, 0), zap.NewNop())
	verifier := NewJWTVerifier(handlerTestSecret)
	limiter := NewRateLimiter(100, time.Minute)
	server := NewServer(hub, relay, verifier, limiter, metrics, zap.NewNop(), nil)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	server.Register(router, "/ws")

	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)
	return ts
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func readEnvelope(t *testing.T, sock *websocket.Conn) envelope {
	t.Helper()
	_ = sock.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env envelope
	if err := sock.ReadJSON(&env); err != nil {
		t.Fatalf("read event: %v", err)
	}
	return env
}

func TestWSRefusesBadCredential(t *testing.T) {
	ts := newTestServer(t)
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts)+"?token=garbage", nil)
	if err == nil {
		t.Fatalf("expected handshake to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 refusal, got %+v", resp)
	}
}

func TestWSConnectJoinAndPost(t *testing.T) {
	ts := newTestServer(t)
	token, err := SignIdentity(handlerTestSecret, Identity{ID: "1", Name: "alice"}, time.Hour)
	if err != nil {
		t.Fatalf("SignIdentity: %v", err)
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	sock, _, err := websocket.DefaultDialer.Dial(wsURL(ts), header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer sock.Close()

	env := readEnvelope(t, sock)
	if env.Event != EventPresence {
		t.Fatalf("expected own presence broadcast first, got %q", env.Event)
	}

	if err := sock.WriteJSON(Command{Type: CommandJoin, Group: "general"}); err != nil {
		t.Fatalf("send join: %v", err)
	}
	env = readEnvelope(t, sock)
	if env.Event != EventGroupSnapshot {
		t.Fatalf("expected membership snapshot, got %q", env.Event)
	}
	var snap GroupSnapshot
	if err := json.Unmarshal(env.Data, &snap); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}
	if snap.Group != "general" || len(snap.Members) != 1 || snap.Members[0].UserID != "1" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}

	if err := sock.WriteJSON(Command{Type: CommandPost, Body: "hello"}); err != nil {
		t.Fatalf("send post: %v", err)
	}
	env = readEnvelope(t, sock)
	if env.Event != EventPostNew {
		t.Fatalf("expected stored post broadcast, got %q", env.Event)
	}
	var post StoredPost
	if err := json.Unmarshal(env.Data, &post); err != nil {
		t.Fatalf("unmarshal post: %v", err)
	}
	if post.ID != 42 {
		t.Fatalf("expected stored post 42, got %+v", post)
	}
}

func TestWSUnknownCommandGetsErrorEvent(t *testing.T) {
	ts := newTestServer(t)
	token, err := SignIdentity(handlerTestSecret, Identity{ID: "1", Name: "alice"}, time.Hour)
	if err != nil {
		t.Fatalf("SignIdentity: %v", err)
	}
	sock, _, err := websocket.DefaultDialer.Dial(wsURL(ts)+"?token="+token, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer sock.Close()

	if env := readEnvelope(t, sock); env.Event != EventPresence {
		t.Fatalf("expected presence, got %q", env.Event)
	}
	if err := sock.WriteJSON(Command{Type: "bogus"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	env := readEnvelope(t, sock)
	if env.Event != EventError {
		t.Fatalf("expected error event, got %q", env.Event)
	}
}
