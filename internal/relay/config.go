package relay

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

const defaultAddress = ":8080"

// LoggingConfig controls the relay daemon's log output.
type LoggingConfig struct {
	// Disable discards all log output.
	Disable bool
	// File is the log destination; empty means stderr.
	File string
	// Level is one of ERROR, WARNING, NOTICE, INFO, DEBUG.
	Level string
}

// ServerConfig is the relay daemon configuration, loaded from TOML.
type ServerConfig struct {
	// Address is the listen address.
	Address string
	Logging *LoggingConfig
}

func (c *ServerConfig) applyDefaults() {
	if c.Address == "" {
		c.Address = defaultAddress
	}
	if c.Logging == nil {
		c.Logging = &LoggingConfig{}
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "INFO"
	}
}

// LoadConfig reads and validates a relay daemon config file.
func LoadConfig(path string) (*ServerConfig, error) {
	cfg := new(ServerConfig)
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *ServerConfig {
	cfg := new(ServerConfig)
	cfg.applyDefaults()
	return cfg
}
