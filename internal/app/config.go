package app

import (
	"os"
	"strings"
	"time"
)

// ServerConfig defines how the hub process runs. All values are fixed at
// process start.
type ServerConfig struct {
	Addr           string
	WSPath         string
	AllowedOrigins []string
	JWTSecret      string
	StoreURL       string
	StoreTimeout   time.Duration
	TypingTTL      time.Duration
	MessageLimit   int
	MessageWindow  time.Duration
}

// StoreConfig defines how the reference persistence service runs.
type StoreConfig struct {
	Addr      string
	DBPath    string
	JWTSecret string
	TokenTTL  time.Duration
}

// ClientConfig defines the parameters the TUI client needs.
type ClientConfig struct {
	HubURL   string
	StoreURL string
	Username string
	Password string
	Channel  string
}

// Getenv returns the variable's value or a default.
func Getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// ParseOrigins splits a comma separated origin list, dropping empty entries.
func ParseOrigins(csv string) []string {
	var out []string
	for _, part := range strings.Split(csv, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// NormalizeWSPath guarantees the websocket path starts with '/' and falls
// back to /ws when empty.
func NormalizeWSPath(path string) string {
	if path == "" {
		return "/ws"
	}
	if path[0] != '/' {
		return "/" + path
	}
	return path
}
