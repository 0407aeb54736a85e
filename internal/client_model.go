package internal

import (
	"sync"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"
)

// ChatModel is the TUI state for one hub session.
type ChatModel struct {
	textInput textinput.Model

	hubURL   string
	token    string
	userID   string
	username string
	channel  string

	sock       *websocket.Conn
	writeMutex sync.Mutex
	events     chan Event

	lines      []string
	peers      map[string]MemberSnapshot // current channel members
	typing     map[string]bool           // user id -> typing in current channel
	selfTyping bool
	connected  bool
	lastError  error
	width      int
	height     int
}

func NewChatModel(hubURL, token, userID, username, channel string) *ChatModel {
	input := textinput.New()
	input.Placeholder = "Message (or /dm <user-id> <text>, /join <group>)…"
	input.CharLimit = 0
	input.Prompt = "> "
	input.Focus()

	return &ChatModel{
		textInput: input,
		hubURL:    hubURL,
		token:     token,
		userID:    userID,
		username:  username,
		channel:   channel,
		events:    make(chan Event, 64),
		lines:     make([]string, 0, 64),
		peers:     make(map[string]MemberSnapshot),
		typing:    make(map[string]bool),
	}
}

func (m *ChatModel) Init() tea.Cmd {
	return tea.Batch(m.connectCmd(), textinput.Blink)
}

// sendCommand writes one command frame. The websocket writer is not safe for
// concurrent use, so writes funnel through one mutex.
func (m *ChatModel) sendCommand(cmd Command) error {
	if m.sock == nil {
		return ErrNotConnected
	}
	m.writeMutex.Lock()
	defer m.writeMutex.Unlock()
	return m.sock.WriteJSON(cmd)
}
