package internal

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"
)

type connectedMsg struct{ sock *websocket.Conn }
type connectErrMsg struct{ err error }
type eventMsg struct{ event Event }
type disconnectedMsg struct{}

// connectCmd dials the hub with the bearer token and starts the read loop.
func (m *ChatModel) connectCmd() tea.Cmd {
	return func() tea.Msg {
		header := http.Header{}
		header.Set("Authorization", "Bearer "+m.token)
		sock, _, err := websocket.DefaultDialer.Dial(m.hubURL, header)
		if err != nil {
			return connectErrMsg{err: err}
		}
		return connectedMsg{sock: sock}
	}
}

// readLoop pumps server events into the model's channel until the socket dies.
func (m *ChatModel) readLoop() {
	defer close(m.events)
	for {
		_, payload, err := m.sock.ReadMessage()
		if err != nil {
			return
		}
		var event Event
		if err := json.Unmarshal(payload, &event); err != nil {
			continue
		}
		m.events <- event
	}
}

func (m *ChatModel) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		event, ok := <-m.events
		if !ok {
			return disconnectedMsg{}
		}
		return eventMsg{event: event}
	}
}

func (m *ChatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case connectedMsg:
		m.sock = msg.sock
		m.connected = true
		m.lastError = nil
		go m.readLoop()
		cmds := []tea.Cmd{m.waitForEvent()}
		if m.channel != "" {
			_ = m.sendCommand(Command{Type: CommandJoin, Group: m.channel})
		}
		return m, tea.Batch(cmds...)

	case connectErrMsg:
		m.lastError = msg.err
		return m, nil

	case disconnectedMsg:
		m.connected = false
		m.appendLine("· disconnected from hub")
		return m, nil

	case eventMsg:
		m.applyEvent(msg.event)
		return m, m.waitForEvent()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			if m.sock != nil {
				_ = m.sock.Close()
			}
			return m, tea.Quit
		case tea.KeyEnter:
			m.submitInput()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.textInput, cmd = m.textInput.Update(msg)
	if m.connected && m.channel != "" {
		if typing := m.textInput.Value() != ""; typing != m.selfTyping {
			m.selfTyping = typing
			_ = m.sendCommand(Command{Type: CommandTyping, Channel: m.channel, IsTyping: typing})
		}
	}
	return m, cmd
}

func (m *ChatModel) submitInput() {
	text := strings.TrimSpace(m.textInput.Value())
	m.textInput.Reset()
	if text == "" {
		return
	}
	switch {
	case strings.HasPrefix(text, "/join "):
		group := strings.TrimSpace(strings.TrimPrefix(text, "/join "))
		if group == "" {
			return
		}
		m.channel = group
		m.peers = make(map[string]MemberSnapshot)
		m.typing = make(map[string]bool)
		_ = m.sendCommand(Command{Type: CommandJoin, Group: group})
	case strings.HasPrefix(text, "/dm "):
		rest := strings.TrimSpace(strings.TrimPrefix(text, "/dm "))
		parts := strings.SplitN(rest, " ", 2)
		if len(parts) != 2 {
			m.appendLine("· usage: /dm <user-id> <text>")
			return
		}
		_ = m.sendCommand(Command{Type: CommandDirect, To: parts[0], Body: parts[1]})
	default:
		_ = m.sendCommand(Command{Type: CommandPost, Body: text})
	}
	if m.selfTyping && m.channel != "" {
		m.selfTyping = false
		_ = m.sendCommand(Command{Type: CommandTyping, Channel: m.channel, IsTyping: false})
	}
}

// applyEvent folds one server event into the view state.
func (m *ChatModel) applyEvent(event Event) {
	raw, err := json.Marshal(event.Data)
	if err != nil {
		return
	}
	switch event.Event {
	case EventPresence:
		var rec PresenceRecord
		if json.Unmarshal(raw, &rec) != nil {
			return
		}
		if peer, ok := m.peers[rec.UserID]; ok {
			peer.Status = rec.Status
			m.peers[rec.UserID] = peer
		}
		m.appendLine(fmt.Sprintf("· %s is %s", rec.Name, rec.Status))
	case EventGroupSnapshot:
		var snap GroupSnapshot
		if json.Unmarshal(raw, &snap) != nil {
			return
		}
		m.peers = make(map[string]MemberSnapshot, len(snap.Members))
		for _, member := range snap.Members {
			m.peers[member.UserID] = member
		}
		m.appendLine(fmt.Sprintf("· joined %s (%d online)", snap.Group, len(snap.Members)))
	case EventMemberJoined:
		var evt MemberEvent
		if json.Unmarshal(raw, &evt) != nil {
			return
		}
		m.peers[evt.Member.UserID] = evt.Member
		m.appendLine(fmt.Sprintf("· %s joined %s", evt.Member.Name, evt.Group))
	case EventMemberLeft:
		var evt MemberEvent
		if json.Unmarshal(raw, &evt) != nil {
			return
		}
		delete(m.peers, evt.Member.UserID)
		delete(m.typing, evt.Member.UserID)
		m.appendLine(fmt.Sprintf("· %s left %s", evt.Member.Name, evt.Group))
	case EventTyping:
		var evt TypingEvent
		if json.Unmarshal(raw, &evt) != nil {
			return
		}
		if evt.UserID == m.userID {
			return
		}
		if evt.IsTyping {
			m.typing[evt.UserID] = true
		} else {
			delete(m.typing, evt.UserID)
		}
	case EventPostNew:
		var post StoredPost
		if json.Unmarshal(raw, &post) != nil {
			return
		}
		m.appendLine(fmt.Sprintf("%s: %s", post.AuthorName, post.Body))
	case EventDirectNew:
		var dm StoredMessage
		if json.Unmarshal(raw, &dm) != nil {
			return
		}
		m.appendLine(fmt.Sprintf("[dm from %s] %s", dm.SenderID, dm.Content))
	case EventDirectSent:
		var dm StoredMessage
		if json.Unmarshal(raw, &dm) != nil {
			return
		}
		m.appendLine(fmt.Sprintf("[dm to %s] %s", dm.Recipient, dm.Content))
	case EventError:
		var evt ErrorEvent
		if json.Unmarshal(raw, &evt) != nil {
			return
		}
		m.appendLine(fmt.Sprintf("! %s", evt.Message))
	}
}

func (m *ChatModel) appendLine(line string) {
	m.lines = append(m.lines, line)
	if len(m.lines) > 500 {
		m.lines = m.lines[len(m.lines)-500:]
	}
}
