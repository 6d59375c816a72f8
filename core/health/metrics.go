package health

import "github.com/prometheus/client_golang/prometheus"

var (
	transitionsTotal *prometheus.CounterVec
	outOfService     prometheus.Gauge
)

func newCollectors() (*prometheus.CounterVec, prometheus.Gauge) {
	tr := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "elevator_health_transitions_total",
			Help: "Service state changes applied by the health supervisor",
		},
		[]string{"transition"},
	)
	oos := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "elevator_out_of_service",
			Help: "Cars out of service after the last health check",
		},
	)
	return tr, oos
}

func init() {
	transitionsTotal, outOfService = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers health metrics on reg, or on the default
// registerer when reg is nil.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(transitionsTotal, outOfService)
}

// ResetMetrics recreates the collectors and registers them on reg if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	transitionsTotal, outOfService = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
