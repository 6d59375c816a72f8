package energy

import "time"

// Config tunes the energy optimizer.
type Config struct {
	Period time.Duration `json:"period"`
	// LowTrafficThreshold is the pending request count below which idle
	// cars are parked.
	LowTrafficThreshold int `json:"low_traffic_threshold"`
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.Period <= 0 {
		c.Period = 60 * time.Second
	}
	if c.LowTrafficThreshold <= 0 {
		c.LowTrafficThreshold = 5
	}
}
