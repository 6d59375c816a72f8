package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

//nolint:gocyclo
func TestLoad(t *testing.T) {
	path := writeFile(t, "config.yaml", `mqtt:
  broker: "tcp://localhost:1883"
  client_id: "cli"
  username: "user"
  password: "pass"
  topic_prefix: "tower-a"
  qos:
    command: 1
dispatch:
  period: 3s
  hotspot_radius: 2
health:
  heartbeat_timeout: 30s
  restart_after: 90s
energy:
  low_traffic_threshold: 3
movement:
  tick: 250ms
prediction:
  min_samples: 4
storage:
  backend: sqlite
  path: /tmp/fleet.db
logging:
  backend: jsonl
  path: /tmp/events.log
  max_size_mb: 5
metrics:
  listen: ":9100"
  sinks:
    - type: "nop"
sentry:
  environment: test
fleet:
  cars: 4
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	checks := []struct {
		name string
		got  any
		want any
	}{
		{"broker", cfg.MQTT.Broker, "tcp://localhost:1883"},
		{"client_id", cfg.MQTT.ClientID, "cli"},
		{"username", cfg.MQTT.Username, "user"},
		{"password", cfg.MQTT.Password, "pass"},
		{"topic_prefix", cfg.MQTT.TopicPrefix, "tower-a"},
		{"qos", cfg.MQTT.QoS["command"], byte(1)},
		{"dispatch.period", cfg.Dispatch.Period, 3 * time.Second},
		{"dispatch.hotspot_radius", *cfg.Dispatch.HotspotRadius, 2},
		{"dispatch.optimize_radius default", *cfg.Dispatch.OptimizeRadius, 2},
		{"health.heartbeat_timeout", cfg.Health.HeartbeatTimeout, 30 * time.Second},
		{"health.restart_after", cfg.Health.RestartAfter, 90 * time.Second},
		{"health.period default", cfg.Health.Period, 10 * time.Second},
		{"energy.threshold", cfg.Energy.LowTrafficThreshold, 3},
		{"energy.period default", cfg.Energy.Period, time.Minute},
		{"movement.tick", cfg.Movement.Tick, 250 * time.Millisecond},
		{"prediction.min_samples", cfg.Prediction.MinSamples, 4},
		{"storage.backend", cfg.Storage.Backend, "sqlite"},
		{"logging.max_size_mb", cfg.Logging.MaxSizeMB, 5},
		{"metrics.listen", cfg.Metrics.Listen, ":9100"},
		{"metrics_sink", len(cfg.Metrics.Sinks) == 1 && cfg.Metrics.Sinks[0].Type == "nop", true},
		{"sentry.environment", cfg.Sentry.Environment, "test"},
		{"fleet.cars", cfg.Fleet.Cars, 4},
		{"fleet.capacity default", cfg.Fleet.Capacity, 10},
	}
	for _, c := range checks {
		assert.Equal(t, c.want, c.got, c.name)
	}
}

func TestLoadJSONWithEnvOverride(t *testing.T) {
	path := writeFile(t, "config.json", `{"dispatch":{"period":"5s"},"energy":{"period":"2m"}}`)
	t.Setenv("K_DISPATCH__PERIOD", "7s")
	t.Setenv("K_MQTT__BROKER", "tcp://broker:1883")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7*time.Second, cfg.Dispatch.Period)
	assert.Equal(t, 2*time.Minute, cfg.Energy.Period)
	assert.Equal(t, "tcp://broker:1883", cfg.MQTT.Broker)
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, "memory", cfg.Logging.Backend)
	assert.Equal(t, 60*time.Second, cfg.Health.HeartbeatTimeout)
	assert.Equal(t, 120*time.Second, cfg.Health.RestartAfter)
	assert.Equal(t, 5, cfg.Energy.LowTrafficThreshold)
	assert.Equal(t, time.Second, cfg.Movement.Tick)
}

func TestLoadKeepsZeroRadius(t *testing.T) {
	cfg, err := Load(writeFile(t, "config.yaml", "dispatch:\n  hotspot_radius: 0\n"))
	require.NoError(t, err)
	require.NotNil(t, cfg.Dispatch.HotspotRadius)
	assert.Equal(t, 0, *cfg.Dispatch.HotspotRadius)
	assert.Equal(t, 2, *cfg.Dispatch.OptimizeRadius)
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"restart before timeout": "health:\n  heartbeat_timeout: 60s\n  restart_after: 30s\n",
		"storage backend":        "storage:\n  backend: postgres\n",
		"logging backend":        "logging:\n  backend: kafka\n",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeFile(t, "config.yaml", data))
			assert.Error(t, err)
		})
	}
	_, err := Load(writeFile(t, "config.toml", "x = 1"))
	assert.Error(t, err)
}
