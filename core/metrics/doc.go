// Package metrics defines the fleet events recorded for observability and the
// sink interfaces that receive them. Sinks such as the Prometheus and InfluxDB
// implementations in infra/metrics register themselves with the module
// factory; NewMetricsSink combines several configured sinks into a MultiSink.
package metrics
