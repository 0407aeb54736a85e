package storesvc

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	intrnl "github.com/ashishexplains17/websockets/internal"
	"github.com/ashishexplains17/websockets/internal/storage"
)

const testSecret = "test-secret"

func newTestService(t *testing.T) *httptest.Server {
	t.Helper()
	store, err := storage.NewStore("sqlite://file:" + t.Name() + "?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	gin.SetMode(gin.TestMode)
	router := gin.New()
	New(store, testSecret, time.Hour, zap.NewNop()).Register(router)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func TestSignupLoginAndTokenClaims(t *testing.T) {
	server := newTestService(t)

	if err := intrnl.APISignup(server.URL, "alice", "hunter2"); err != nil {
		t.Fatalf("APISignup: %v", err)
	}
	if err := intrnl.APISignup(server.URL, "alice", "again"); err == nil {
		t.Fatalf("expected duplicate signup to fail")
	}

	login, err := intrnl.APILogin(server.URL, "alice", "hunter2")
	if err != nil {
		t.Fatalf("APILogin: %v", err)
	}
	if login.Token == "" || login.Username != "alice" {
		t.Fatalf("unexpected login result: %+v", login)
	}

	identity, err := intrnl.NewJWTVerifier(testSecret).Verify(login.Token)
	if err != nil {
		t.Fatalf("issued token must verify: %v", err)
	}
	if identity.ID != login.UserID || identity.Name != "alice" {
		t.Fatalf("claims mismatch: %+v vs %+v", identity, login)
	}

	if _, err := intrnl.APILogin(server.URL, "alice", "wrong"); err == nil {
		t.Fatalf("expected bad password to fail")
	}
}

func TestPostEndpointRequiresCredential(t *testing.T) {
	server := newTestService(t)
	status, _ := doPost(t, server.URL+"/posts", "", map[string]string{"body": "hi"})
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", status)
	}
}

func TestPostAndMessageFlow(t *testing.T) {
	server := newTestService(t)
	if err := intrnl.APISignup(server.URL, "alice", "hunter2"); err != nil {
		t.Fatalf("APISignup: %v", err)
	}
	login, err := intrnl.APILogin(server.URL, "alice", "hunter2")
	if err != nil {
		t.Fatalf("APILogin: %v", err)
	}

	status, body := doPost(t, server.URL+"/posts", login.Token, map[string]string{"body": "first post"})
	if status != http.StatusCreated {
		t.Fatalf("create post: status %d body %s", status, body)
	}
	var post intrnl.StoredPost
	if err := json.Unmarshal(body, &post); err != nil {
		t.Fatalf("unmarshal post: %v", err)
	}
	if post.ID == 0 || post.AuthorName != "alice" || post.Body != "first post" {
		t.Fatalf("unexpected post: %+v", post)
	}

	status, body = doPost(t, server.URL+"/messages", login.Token, intrnl.CreateMessageRequest{
		Recipient: "7",
		Content:   "psst",
	})
	if status != http.StatusCreated {
		t.Fatalf("create message: status %d body %s", status, body)
	}
	var msg intrnl.StoredMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		t.Fatalf("unmarshal message: %v", err)
	}
	if msg.ID == 0 || msg.SenderID != login.UserID || msg.Recipient != "7" {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if msg.ChatID != chatKey(login.UserID, "7") {
		t.Fatalf("expected derived chat id, got %q", msg.ChatID)
	}
}

func TestChatKeyIsDirectionless(t *testing.T) {
	if chatKey("1", "7") != chatKey("7", "1") {
		t.Fatalf("chat key must not depend on direction")
	}
}

func doPost(t *testing.T, endpoint, token string, payload any) (int, []byte) {
	t.Helper()
	buf, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, endpoint, bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	var body bytes.Buffer
	_, _ = body.ReadFrom(resp.Body)
	return resp.StatusCode, body.Bytes()
}
