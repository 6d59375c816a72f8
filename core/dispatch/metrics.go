package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	assignmentsTotal  *prometheus.CounterVec
	assignmentFailure prometheus.Counter
	repositionsTotal  *prometheus.CounterVec
	assignmentCost    prometheus.Histogram
	pendingRequests   prometheus.Gauge
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.CounterVec, prometheus.Counter, *prometheus.CounterVec, prometheus.Histogram, prometheus.Gauge) {
	asg := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "elevator_assignments_total",
			Help: "Number of requests assigned to a car",
		},
		[]string{"mode"},
	)
	fail := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "elevator_assignment_failures_total",
			Help: "Number of assignments that failed and left the request pending",
		},
	)
	rep := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "elevator_repositions_total",
			Help: "Number of idle cars moved without a rider",
		},
		[]string{"reason"},
	)
	cost := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "elevator_assignment_cost",
			Help:    "Cost of the car selected for each automatic assignment",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 40, 80},
		},
	)
	pend := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "elevator_pending_requests",
			Help: "Pending requests seen at the start of the last dispatch cycle",
		},
	)
	return asg, fail, rep, cost, pend
}

func init() {
	assignmentsTotal, assignmentFailure, repositionsTotal, assignmentCost, pendingRequests = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers dispatch metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(assignmentsTotal, assignmentFailure, repositionsTotal, assignmentCost, pendingRequests)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	assignmentsTotal, assignmentFailure, repositionsTotal, assignmentCost, pendingRequests = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
