package health

import "time"

// Config tunes the watchdog.
type Config struct {
	Period time.Duration `json:"period"`
	// HeartbeatTimeout is the silence after which a car is taken out of service.
	HeartbeatTimeout time.Duration `json:"heartbeat_timeout"`
	// RestartAfter is the silence, measured from the same heartbeat, after
	// which an out of service car is restarted.
	RestartAfter time.Duration `json:"restart_after"`
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.Period <= 0 {
		c.Period = 10 * time.Second
	}
	if c.HeartbeatTimeout <= 0 {
		c.HeartbeatTimeout = 60 * time.Second
	}
	if c.RestartAfter <= 0 {
		c.RestartAfter = 120 * time.Second
	}
}
