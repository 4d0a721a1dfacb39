package app

import (
	"fmt"

	"confy/internal/domain"
	"confy/internal/log"
	"confy/internal/relay"
	"confy/internal/session"
)

// App bundles the logging backend and relay connection for the CLI.
type App struct {
	LogBackend *log.Backend
	Relay      *relay.Client

	cfg Config
}

// New constructs the dependency graph from cfg and connects to the relay.
func New(cfg Config) (*App, error) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "NOTICE"
	}
	logBackend, err := log.New(cfg.LogFile, cfg.LogLevel, cfg.DisableLog)
	if err != nil {
		return nil, err
	}
	if cfg.RelayURL == "" {
		return nil, fmt.Errorf("no relay configured")
	}
	rc, err := relay.Dial(logBackend, cfg.RelayURL, domain.PeerID(cfg.Username))
	if err != nil {
		return nil, err
	}
	return &App{
		LogBackend: logBackend,
		Relay:      rc,
		cfg:        cfg,
	}, nil
}

// Open starts a session toward peer as initiator.
func (a *App) Open(peer domain.PeerID) (*session.Manager, error) {
	m := session.NewManager(a.LogBackend, a.Relay.Transport(peer), a.cfg.Session)
	a.Relay.Bind(peer, m)
	if err := m.Connect(peer); err != nil {
		a.Relay.Unbind(peer)
		m.Halt()
		return nil, err
	}
	return m, nil
}

// Answer builds the responder session for a tunnel a remote peer claimed.
// Intended for use from the relay client's incoming handler.
func (a *App) Answer(peer domain.PeerID) *session.Manager {
	m := session.NewManager(a.LogBackend, a.Relay.Transport(peer), a.cfg.Session)
	if err := m.Accept(peer); err != nil {
		m.Halt()
		return nil
	}
	return m
}

// Close tears down the relay connection and with it every session.
func (a *App) Close() {
	a.Relay.Close()
}
