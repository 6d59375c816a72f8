package config

import "fmt"

// StorageConfig selects where cars and requests are kept.
type StorageConfig struct {
	// Backend is "memory" or "sqlite".
	Backend string `json:"backend"`
	Path    string `json:"path"`
}

// SetDefaults applies sane defaults.
func (c *StorageConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "memory"
	}
	if c.Backend == "sqlite" && c.Path == "" {
		c.Path = "elevators.db"
	}
}

// Validate checks mandatory fields.
func (c StorageConfig) Validate() error {
	switch c.Backend {
	case "memory", "sqlite":
		return nil
	default:
		return fmt.Errorf("unknown backend %s", c.Backend)
	}
}

// FleetConfig describes the initial fleet.
type FleetConfig struct {
	// SeedFile lists cars created on first start (YAML or JSON).
	SeedFile string `json:"seed_file"`
	// Cars is used when no seed file is given and the store is empty.
	Cars int `json:"cars"`
	// Capacity of cars created from Cars.
	Capacity int `json:"capacity"`
}

// SetDefaults applies sane defaults.
func (c *FleetConfig) SetDefaults() {
	if c.Capacity <= 0 {
		c.Capacity = 10
	}
}
