package config

import (
	"errors"
	"fmt"
)

// Event log backends.
const (
	LogBackendMemory = "memory"
	LogBackendJSONL  = "jsonl"
	LogBackendSQLite = "sqlite"
)

// LoggingConfig selects where car audit events are kept. Rotation settings
// only apply to the jsonl backend.
type LoggingConfig struct {
	Backend    string `json:"backend"`
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

// SetDefaults keeps events in memory unless a file backend is chosen.
func (c *LoggingConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = LogBackendMemory
	}
	if c.Backend == LogBackendMemory {
		return
	}
	if c.Path == "" {
		c.Path = "elevator-events.log"
	}
	if c.Backend == LogBackendJSONL && c.MaxSizeMB <= 0 {
		c.MaxSizeMB = 50
	}
}

func (c LoggingConfig) Validate() error {
	switch c.Backend {
	case LogBackendMemory:
		return nil
	case LogBackendJSONL, LogBackendSQLite:
		if c.Path == "" {
			return errors.New("path is required")
		}
		return nil
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
}
