package dispatch

import "time"

// Config defines dispatch-related settings.
type Config struct {
	// Period between two dispatch cycles.
	Period time.Duration `json:"period"`
	// HotspotRadius is the distance from a predicted hotspot within which an
	// idle car is left in place. Nil means the default; 0 is a valid radius.
	HotspotRadius *int `json:"hotspot_radius"`
	// OptimizeRadius is the same distance for on-demand route optimisation.
	OptimizeRadius *int `json:"optimize_radius"`
	// RidersPerCar sizes how many cars route optimisation sends to a batch.
	RidersPerCar int `json:"riders_per_car"`
}

// SetDefaults fills unset values.
func (c *Config) SetDefaults() {
	if c.Period <= 0 {
		c.Period = 5 * time.Second
	}
	if c.HotspotRadius == nil || *c.HotspotRadius < 0 {
		c.HotspotRadius = Radius(1)
	}
	if c.OptimizeRadius == nil || *c.OptimizeRadius < 0 {
		c.OptimizeRadius = Radius(2)
	}
	if c.RidersPerCar <= 0 {
		c.RidersPerCar = 10
	}
}

// Radius returns a pointer to n for the radius settings.
func Radius(n int) *int { return &n }
