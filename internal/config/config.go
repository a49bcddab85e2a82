package config

import (
	"fmt"
	"net/url"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// ServerURL is the base URL of the chat service; the websocket channel
	// lives under /ws on the same host.
	ServerURL string
	// HistoryURL is the base URL of the message history endpoint.
	HistoryURL string
	// SessionFile is the path of the credential file written at login.
	SessionFile string
	// DebugAddr, when set, serves client metrics on /debug/vars.
	DebugAddr string
}

// Env carries environment overrides used as flag defaults.
type Env struct {
	ServerURL   string `envconfig:"SERVER_URL" default:"http://localhost:8000"`
	HistoryURL  string `envconfig:"HISTORY_URL"`
	SessionFile string `envconfig:"SESSION_FILE" default:".chat-session.json"`
	DebugAddr   string `envconfig:"DEBUG_ADDR"`
}

// FromEnv reads CHAT_* environment variables.
func FromEnv() (Env, error) {
	var env Env
	err := envconfig.Process("CHAT", &env)
	return env, err
}

func NewConfig(serverURL, historyURL, sessionFile, debugAddr string) (*Config, error) {
	if serverURL == "" {
		return nil, fmt.Errorf("server URL cannot be empty")
	}
	if _, err := url.Parse(serverURL); err != nil {
		return nil, fmt.Errorf("parse server URL: %w", err)
	}
	if sessionFile == "" {
		return nil, fmt.Errorf("session file cannot be empty")
	}

	// The history endpoint is served by the chat service unless overridden.
	if historyURL == "" {
		historyURL = serverURL
	}
	if _, err := url.Parse(historyURL); err != nil {
		return nil, fmt.Errorf("parse history URL: %w", err)
	}

	return &Config{
		ServerURL:   serverURL,
		HistoryURL:  historyURL,
		SessionFile: sessionFile,
		DebugAddr:   debugAddr,
	}, nil
}
