package scheduler

import "github.com/prometheus/client_golang/prometheus"

var (
	cycleDuration *prometheus.HistogramVec
	cycleErrors   *prometheus.CounterVec
)

func newCollectors() (*prometheus.HistogramVec, *prometheus.CounterVec) {
	dur := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fleet_cycle_duration_seconds",
			Help:    "Duration of periodic fleet cycles",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"job"},
	)
	errs := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleet_cycle_errors_total",
			Help: "Periodic fleet cycles that returned an error or panicked",
		},
		[]string{"job"},
	)
	return dur, errs
}

func init() {
	cycleDuration, cycleErrors = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers scheduler metrics on reg, or on the default
// registerer when reg is nil.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(cycleDuration, cycleErrors)
}

// ResetMetrics recreates the collectors and registers them on reg if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	cycleDuration, cycleErrors = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
