package metrics

import "github.com/kilianp07/elevfleet/core/factory"

// Config defines settings for metrics sinks.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks" yaml:"sinks"`
	// Listen is the address of the Prometheus scrape endpoint. Empty disables it.
	Listen string `json:"listen" yaml:"listen"`
}
