// Package config loads the service configuration from a YAML or JSON file
// with K_-prefixed environment overrides (K_DISPATCH__PERIOD=3s).
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/elevfleet/core/dispatch"
	"github.com/kilianp07/elevfleet/core/energy"
	"github.com/kilianp07/elevfleet/core/health"
	"github.com/kilianp07/elevfleet/core/metrics"
	"github.com/kilianp07/elevfleet/core/movement"
	"github.com/kilianp07/elevfleet/core/prediction"
	"github.com/kilianp07/elevfleet/infra/monitoring"
	"github.com/kilianp07/elevfleet/infra/mqtt"
)

type Config struct {
	MQTT       mqtt.Config       `json:"mqtt"`
	Dispatch   dispatch.Config   `json:"dispatch"`
	Health     health.Config     `json:"health"`
	Energy     energy.Config     `json:"energy"`
	Movement   movement.Config   `json:"movement"`
	Prediction prediction.Config `json:"prediction"`
	Storage    StorageConfig     `json:"storage"`
	Logging    LoggingConfig     `json:"logging"`
	Metrics    metrics.Config    `json:"metrics"`
	Sentry     monitoring.Config `json:"sentry"`
	Fleet      FleetConfig       `json:"fleet"`
}

// Default returns a configuration running fully in memory.
func Default() *Config {
	var cfg Config
	cfg.SetDefaults()
	return &cfg
}

// Load reads path, applies environment overrides and defaults, and validates
// the result. An empty path loads defaults and environment only.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		ext := strings.ToLower(filepath.Ext(path))
		var parser koanf.Parser
		switch ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", ext)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, err
		}
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults fills every zero value.
func (c *Config) SetDefaults() {
	c.Dispatch.SetDefaults()
	c.Health.SetDefaults()
	c.Energy.SetDefaults()
	c.Movement.SetDefaults()
	c.Storage.SetDefaults()
	c.Logging.SetDefaults()
	c.Fleet.SetDefaults()
	if c.Prediction.MinSamples <= 0 {
		c.Prediction.MinSamples = prediction.DefaultMinSamples
	}
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	var errs []error
	if c.Health.RestartAfter <= c.Health.HeartbeatTimeout {
		errs = append(errs, fmt.Errorf("health: restart_after (%s) must exceed heartbeat_timeout (%s)", c.Health.RestartAfter, c.Health.HeartbeatTimeout))
	}
	if err := c.Storage.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("storage: %w", err))
	}
	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("logging: %w", err))
	}
	if c.MQTT.UseTLS && c.MQTT.Broker == "" {
		errs = append(errs, errors.New("mqtt: use_tls requires a broker"))
	}
	return errors.Join(errs...)
}
