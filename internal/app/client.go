package app

import (
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	intrnl "github.com/ashishexplains17/websockets/internal"
)

// RunClient logs in against the store service and launches the Bubble Tea
// TUI connected to the hub.
func RunClient(cfg ClientConfig) error {
	if cfg.HubURL == "" {
		return errors.New("hub URL is required")
	}
	if cfg.StoreURL == "" {
		return errors.New("store URL is required")
	}
	if cfg.Username == "" || cfg.Password == "" {
		return errors.New("username and password are required")
	}

	login, err := intrnl.APILogin(cfg.StoreURL, cfg.Username, cfg.Password)
	if err != nil {
		return err
	}

	model := intrnl.NewChatModel(cfg.HubURL, login.Token, login.UserID, login.Username, cfg.Channel)
	program := tea.NewProgram(model, tea.WithAltScreen())
	_, err = program.Run()
	return err
}
