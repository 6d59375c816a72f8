package energy

import "github.com/prometheus/client_golang/prometheus"

var (
	parkedCars   prometheus.Gauge
	togglesTotal *prometheus.CounterVec
)

func newCollectors() (prometheus.Gauge, *prometheus.CounterVec) {
	parked := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "elevator_eco_parked",
			Help: "Cars in eco mode after the last energy cycle",
		},
	)
	toggles := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "elevator_eco_toggles_total",
			Help: "Eco mode changes applied by the energy optimizer",
		},
		[]string{"mode"},
	)
	return parked, toggles
}

func init() {
	parkedCars, togglesTotal = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers energy metrics on reg, or on the default
// registerer when reg is nil.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(parkedCars, togglesTotal)
}

// ResetMetrics recreates the collectors and registers them on reg if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	parkedCars, togglesTotal = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
