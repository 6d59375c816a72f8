package metrics

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/elevfleet/core/metrics"
)

// PromSink records fleet events in Prometheus metrics, labelled per car.
type PromSink struct {
	assignments *prometheus.CounterVec
	cost        *prometheus.HistogramVec
	repositions *prometheus.CounterVec
	health      *prometheus.CounterVec
	eco         *prometheus.CounterVec
	fleet       *prometheus.GaugeVec
}

var (
	_ coremetrics.RepositionRecorder    = (*PromSink)(nil)
	_ coremetrics.HealthRecorder        = (*PromSink)(nil)
	_ coremetrics.EcoRecorder           = (*PromSink)(nil)
	_ coremetrics.FleetSnapshotRecorder = (*PromSink)(nil)
)

// NewPromSink registers the sink metrics on the default Prometheus registerer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. Collectors
// already registered by a previous sink are reused.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		assignments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "elevator_car_assignments_total",
			Help: "Assignment attempts per car",
		}, []string{"elevator_id", "mode", "success"}),
		cost: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "elevator_car_assignment_cost",
			Help:    "Cost of successful assignments per car",
			Buckets: prometheus.LinearBuckets(0, 2, 10),
		}, []string{"elevator_id"}),
		repositions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "elevator_car_repositions_total",
			Help: "Empty moves per car",
		}, []string{"elevator_id", "reason"}),
		health: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "elevator_car_health_events_total",
			Help: "Service state changes per car",
		}, []string{"elevator_id", "transition"}),
		eco: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "elevator_car_eco_events_total",
			Help: "Eco mode changes per car",
		}, []string{"elevator_id", "parked"}),
		fleet: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "elevator_fleet_cars",
			Help: "Cars per state in the last fleet snapshot",
		}, []string{"state"}),
	}
	var err error
	if s.assignments, err = register(reg, s.assignments); err != nil {
		return nil, err
	}
	if s.cost, err = register(reg, s.cost); err != nil {
		return nil, err
	}
	if s.repositions, err = register(reg, s.repositions); err != nil {
		return nil, err
	}
	if s.health, err = register(reg, s.health); err != nil {
		return nil, err
	}
	if s.eco, err = register(reg, s.eco); err != nil {
		return nil, err
	}
	if s.fleet, err = register(reg, s.fleet); err != nil {
		return nil, err
	}
	return s, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func id(v int64) string { return strconv.FormatInt(v, 10) }

// RecordAssignment counts the attempt and observes the cost on success.
func (s *PromSink) RecordAssignment(ev coremetrics.AssignmentEvent) error {
	mode := "auto"
	if ev.Manual {
		mode = "manual"
	}
	s.assignments.WithLabelValues(id(ev.ElevatorID), mode, strconv.FormatBool(ev.Success)).Inc()
	if ev.Success {
		s.cost.WithLabelValues(id(ev.ElevatorID)).Observe(float64(ev.Cost))
	}
	return nil
}

func (s *PromSink) RecordReposition(ev coremetrics.RepositionEvent) error {
	s.repositions.WithLabelValues(id(ev.ElevatorID), ev.Reason).Inc()
	return nil
}

func (s *PromSink) RecordHealth(ev coremetrics.HealthEvent) error {
	s.health.WithLabelValues(id(ev.ElevatorID), string(ev.Transition)).Inc()
	return nil
}

func (s *PromSink) RecordEco(ev coremetrics.EcoEvent) error {
	s.eco.WithLabelValues(id(ev.ElevatorID), strconv.FormatBool(ev.Parked)).Inc()
	return nil
}

// RecordFleetSnapshot sets one gauge per car state.
func (s *PromSink) RecordFleetSnapshot(snap coremetrics.FleetSnapshot) error {
	s.fleet.WithLabelValues("total").Set(float64(snap.Total))
	s.fleet.WithLabelValues("operational").Set(float64(snap.Operational))
	s.fleet.WithLabelValues("idle").Set(float64(snap.Idle))
	s.fleet.WithLabelValues("parked").Set(float64(snap.Parked))
	s.fleet.WithLabelValues("pending_requests").Set(float64(snap.Pending))
	return nil
}
