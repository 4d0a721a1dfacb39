package app

import (
	"confy/internal/session"
)

// Config holds runtime wiring options for building the client.
type Config struct {
	// RelayURL is the relay base URL, e.g. http://127.0.0.1:8080.
	RelayURL string
	// Username is our name on the relay. Must be unique per relay.
	Username string
	// LogLevel is one of ERROR, WARNING, NOTICE, INFO, DEBUG.
	LogLevel string
	// LogFile is the log destination; empty means stderr.
	LogFile string
	// DisableLog discards all log output.
	DisableLog bool
	// Session bounds the handshake phases; zero values select defaults.
	Session session.Config
}
