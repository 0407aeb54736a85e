package storage

import (
	"context"
	"testing"
)

func TestUserLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.CreateUser(ctx, "alice", "https://example.com/a.png", []byte("hash"))
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if id == 0 {
		t.Fatalf("expected id > 0")
	}
	if _, err := store.CreateUser(ctx, "alice", "", []byte("hash2")); err != ErrUserExists {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}

	user, err := store.GetUserByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if user == nil || user.Username != "alice" || user.Avatar != "https://example.com/a.png" {
		t.Fatalf("unexpected user: %+v", user)
	}

	missing, err := store.GetUserByUsername(ctx, "nobody")
	if err != nil {
		t.Fatalf("GetUserByUsername missing: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for unknown user, got %+v", missing)
	}
}

func TestPostLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.CreatePost(ctx, "1", "alice", "hello world")
	if err != nil {
		t.Fatalf("CreatePost: %v", err)
	}
	if first.ID == 0 {
		t.Fatalf("expected assigned id")
	}
	second, err := store.CreatePost(ctx, "2", "bob", "hi back")
	if err != nil {
		t.Fatalf("CreatePost second: %v", err)
	}

	posts, err := store.ListRecentPosts(ctx, 10)
	if err != nil {
		t.Fatalf("ListRecentPosts: %v", err)
	}
	if len(posts) != 2 || posts[0].ID != second.ID || posts[1].ID != first.ID {
		t.Fatalf("expected newest first, got %+v", posts)
	}
}

func TestMessageLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	saved, err := store.CreateMessage(ctx, Message{
		ChatID:      "1:2",
		SenderID:    "1",
		RecipientID: "2",
		Content:     "psst",
		MediaURL:    "https://example.com/cat.gif",
		MediaType:   "image/gif",
	})
	if err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	if saved.ID == 0 {
		t.Fatalf("expected assigned id")
	}
	if _, err := store.CreateMessage(ctx, Message{ChatID: "1:2", SenderID: "2", RecipientID: "1", Content: "what"}); err != nil {
		t.Fatalf("CreateMessage reply: %v", err)
	}

	msgs, err := store.ListChatMessages(ctx, "1:2", 10)
	if err != nil {
		t.Fatalf("ListChatMessages: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Content != "psst" || msgs[1].Content != "what" {
		t.Fatalf("expected oldest first, got %+v", msgs)
	}
	if msgs[0].MediaURL != "https://example.com/cat.gif" || msgs[0].MediaType != "image/gif" {
		t.Fatalf("media fields lost: %+v", msgs[0])
	}

	other, err := store.ListChatMessages(ctx, "3:4", 10)
	if err != nil {
		t.Fatalf("ListChatMessages other: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("expected empty chat, got %+v", other)
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := "sqlite://file:" + t.Name() + "?mode=memory&cache=shared"
	store, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
