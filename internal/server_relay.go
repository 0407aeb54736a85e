package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// CreateMessageRequest is the body sent to the store's message endpoint.
type CreateMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Recipient string `json:"recipient_id"`
	Content   string `json:"content"`
	MediaURL  string `json:"media_url,omitempty"`
	MediaType string `json:"media_type,omitempty"`
}

// StoreClient talks to the external persistence service. Every failure is
// reported as an error value wrapping ErrPersistence; nothing here panics
// into the registry.
type StoreClient struct {
	baseURL string
	http    *http.Client
}

func NewStoreClient(baseURL string, timeout time.Duration) *StoreClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &StoreClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// CreatePost stores a post under the author's credential.
func (sc *StoreClient) CreatePost(ctx context.Context, credential, body string) (StoredPost, error) {
	var stored StoredPost
	payload := map[string]string{"body": body}
	if err := sc.doJSON(ctx, http.MethodPost, "/posts", credential, payload, &stored); err != nil {
		return StoredPost{}, err
	}
	return stored, nil
}

// CreateMessage stores a direct message under the sender's credential.
func (sc *StoreClient) CreateMessage(ctx context.Context, credential string, req CreateMessageRequest) (StoredMessage, error) {
	var stored StoredMessage
	if err := sc.doJSON(ctx, http.MethodPost, "/messages", credential, req, &stored); err != nil {
		return StoredMessage{}, err
	}
	return stored, nil
}

func (sc *StoreClient) doJSON(ctx context.Context, method, path, credential string, payload, out any) error {
	buf, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(ErrPersistence, err.Error())
	}
	req, err := http.NewRequestWithContext(ctx, method, sc.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return errors.Wrap(ErrPersistence, err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	if credential != "" {
		req.Header.Set("Authorization", "Bearer "+credential)
	}
	resp, err := sc.http.Do(req)
	if err != nil {
		return errors.Wrap(ErrPersistence, err.Error())
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.Wrapf(ErrPersistence, "store returned %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(ErrPersistence, err.Error())
	}
	return nil
}

// Relay orchestrates the store round trip for posts and direct messages and
// fans the result out through the hub. Nothing is broadcast until the store
// has confirmed the write.
type Relay struct {
	hub   *Hub
	store *StoreClient
	log   *zap.Logger
}

func NewRelay(hub *Hub, store *StoreClient, log *zap.Logger) *Relay {
	return &Relay{hub: hub, store: store, log: log}
}

// PostMessage persists a post and, only on success, broadcasts it to every
// open connection. On failure the error is returned to the caller and no
// connection sees the unsaved content.
func (r *Relay) PostMessage(ctx context.Context, author Identity, credential, body string) error {
	stored, err := r.store.CreatePost(ctx, credential, body)
	if err != nil {
		r.log.Warn("post not persisted", zap.String("author", author.ID), zap.Error(err))
		return err
	}
	r.hub.Emit(ScopeAll(), EventPostNew, stored)
	return nil
}

// SendDirect persists a direct message, then delivers it to the recipient's
// open connections (best effort, no offline queuing) and confirms it to all
// of the sender's connections. On persistence failure the sender alone
// receives an error event.
func (r *Relay) SendDirect(ctx context.Context, sender Identity, credential string, req CreateMessageRequest) error {
	stored, err := r.store.CreateMessage(ctx, credential, req)
	if err != nil {
		r.log.Warn("direct message not persisted",
			zap.String("sender", sender.ID),
			zap.String("recipient", req.Recipient),
			zap.Error(err))
		r.hub.Emit(ScopeUser(sender.ID), EventError, ErrorEvent{Code: "persistence_error", Message: "message could not be saved"})
		return err
	}
	r.hub.Emit(ScopeUser(req.Recipient), EventDirectNew, stored)
	r.hub.Emit(ScopeUser(sender.ID), EventDirectSent, stored)
	return nil
}
