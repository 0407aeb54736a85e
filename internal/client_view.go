package internal

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	chatHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("213")).BorderStyle(lipgloss.NormalBorder()).BorderBottom(true).BorderForeground(lipgloss.Color("63")).Padding(0, 1)
	connectedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	connectingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("178")).Italic(true)
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	peerStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("110"))
	typingStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Italic(true)
	lineStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("253"))
	inputBoxStyle   = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("63")).Padding(0, 1).MarginTop(1)
)

func (m *ChatModel) View() string {
	var b strings.Builder

	title := fmt.Sprintf("relayhub · %s", m.username)
	if m.channel != "" {
		title += " · #" + m.channel
	}
	b.WriteString(chatHeaderStyle.Render(title))
	b.WriteString("\n")

	switch {
	case m.lastError != nil:
		b.WriteString(errorStyle.Render("connection failed: " + m.lastError.Error()))
	case m.connected:
		b.WriteString(connectedStyle.Render("connected") + peerStyle.Render("  "+m.peerSummary()))
	default:
		b.WriteString(connectingStyle.Render("connecting…"))
	}
	b.WriteString("\n\n")

	visible := m.lines
	if max := m.visibleLines(); len(visible) > max {
		visible = visible[len(visible)-max:]
	}
	for _, line := range visible {
		b.WriteString(lineStyle.Render(line))
		b.WriteString("\n")
	}

	if indicator := m.typingSummary(); indicator != "" {
		b.WriteString(typingStyle.Render(indicator))
		b.WriteString("\n")
	}

	b.WriteString(inputBoxStyle.Render(m.textInput.View()))
	b.WriteString("\n")
	return b.String()
}

func (m *ChatModel) visibleLines() int {
	if m.height <= 10 {
		return 20
	}
	return m.height - 8
}

func (m *ChatModel) peerSummary() string {
	if len(m.peers) == 0 {
		return "no peers online"
	}
	names := make([]string, 0, len(m.peers))
	for _, peer := range m.peers {
		names = append(names, peer.Name)
	}
	sort.Strings(names)
	return "online: " + strings.Join(names, ", ")
}

func (m *ChatModel) typingSummary() string {
	if len(m.typing) == 0 {
		return ""
	}
	names := make([]string, 0, len(m.typing))
	for userID := range m.typing {
		if peer, ok := m.peers[userID]; ok {
			names = append(names, peer.Name)
		} else {
			names = append(names, userID)
		}
	}
	sort.Strings(names)
	if len(names) == 1 {
		return names[0] + " is typing…"
	}
	return strings.Join(names, ", ") + " are typing…"
}
