package internal

import "time"

// user presence states
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// server -> client event names
const (
	EventPresence      = "presence"
	EventGroupSnapshot = "group:snapshot"
	EventMemberJoined  = "group:joined"
	EventMemberLeft    = "group:left"
	EventTyping        = "typing"
	EventPostNew       = "post:new"
	EventDirectNew     = "dm:new"
	EventDirectSent    = "dm:sent"
	EventError         = "error"
)

// client -> server command types
const (
	CommandJoin   = "join"
	CommandLeave  = "leave"
	CommandTyping = "typing"
	CommandPost   = "post"
	CommandDirect = "dm"
)

// Command is the json envelope clients send over the websocket. Only the
// fields relevant to the given type are populated.
type Command struct {
	Type      string `json:"type"`
	Group     string `json:"group,omitempty"`
	Channel   string `json:"channel,omitempty"`
	IsTyping  bool   `json:"is_typing,omitempty"`
	Body      string `json:"body,omitempty"`
	To        string `json:"to,omitempty"`
	ChatID    string `json:"chat_id,omitempty"`
	MediaURL  string `json:"media_url,omitempty"`
	MediaType string `json:"media_type,omitempty"`
}

// Event is the json envelope the server pushes to clients.
type Event struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// PresenceRecord tracks a user's current status. One record exists per user
// that has connected during the process lifetime; status is online exactly
// while the user has at least one open handle.
type PresenceRecord struct {
	UserID     string    `json:"user_id"`
	Name       string    `json:"name"`
	Avatar     string    `json:"avatar,omitempty"`
	Status     string    `json:"status"`
	LastActive time.Time `json:"last_active"`
}

// MemberSnapshot is the presence view of one group member at a point in time.
type MemberSnapshot struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
	Status string `json:"status"`
}

// GroupSnapshot is returned to a joining connection. TakenAt lets the
// receiver order the snapshot against concurrently delivered member events
// and deduplicate by user id.
type GroupSnapshot struct {
	Group   string           `json:"group"`
	TakenAt int64            `json:"taken_at_ms"`
	Members []MemberSnapshot `json:"members"`
}

// MemberEvent announces one member joining or leaving a group.
type MemberEvent struct {
	Group  string         `json:"group"`
	Member MemberSnapshot `json:"member"`
}

// TypingEvent carries the current typing state of one user in one channel.
type TypingEvent struct {
	Channel  string `json:"channel"`
	UserID   string `json:"user_id"`
	IsTyping bool   `json:"is_typing"`
}

// ErrorEvent is delivered to the acting connection (or the sender's
// connections for direct-message failures), never to bystanders.
type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// StoredPost is the persistence service's representation of a saved post.
type StoredPost struct {
	ID         int64  `json:"id"`
	AuthorID   string `json:"author_id"`
	AuthorName string `json:"author_name"`
	Body       string `json:"body"`
	CreatedAt  int64  `json:"created_at"`
}

// StoredMessage is the persistence service's representation of a saved
// direct message.
type StoredMessage struct {
	ID        int64  `json:"id"`
	ChatID    string `json:"chat_id"`
	SenderID  string `json:"sender_id"`
	Recipient string `json:"recipient_id"`
	Content   string `json:"content"`
	MediaURL  string `json:"media_url,omitempty"`
	MediaType string `json:"media_type,omitempty"`
	CreatedAt int64  `json:"created_at"`
}
