package metrics

import "time"

// AssignmentEvent is recorded when a request is bound to a car.
type AssignmentEvent struct {
	RequestID   int64
	ElevatorID  int64
	SourceFloor int
	TargetFloor int
	Cost        int
	Manual      bool
	Success     bool
	Time        time.Time
}

// MetricsSink records assignment outcomes.
type MetricsSink interface {
	RecordAssignment(ev AssignmentEvent) error
}

// RepositionEvent is recorded when an idle car is moved without a rider.
type RepositionEvent struct {
	ElevatorID int64
	FromFloor  int
	ToFloor    int
	// Reason is "hotspot" or "optimize".
	Reason string
	Time   time.Time
}

// RepositionRecorder records proactive moves.
type RepositionRecorder interface {
	RecordReposition(ev RepositionEvent) error
}

// HealthTransition names a service state change of a car.
type HealthTransition string

const (
	TransitionDemoted   HealthTransition = "demoted"
	TransitionRestarted HealthTransition = "restarted"
	TransitionRecovered HealthTransition = "recovered"
	TransitionFault     HealthTransition = "fault"
	TransitionRepaired  HealthTransition = "repaired"
)

// HealthEvent is recorded on every service state change.
type HealthEvent struct {
	ElevatorID int64
	Transition HealthTransition
	Time       time.Time
}

// HealthRecorder records service state changes.
type HealthRecorder interface {
	RecordHealth(ev HealthEvent) error
}

// EcoEvent is recorded when a car enters or leaves eco mode.
type EcoEvent struct {
	ElevatorID int64
	Parked     bool
	Time       time.Time
}

// EcoRecorder records eco mode toggles.
type EcoRecorder interface {
	RecordEco(ev EcoEvent) error
}

// FleetSnapshot summarises the fleet at a point in time.
type FleetSnapshot struct {
	Total       int
	Operational int
	Idle        int
	Parked      int
	Pending     int
	Time        time.Time
}

// FleetSnapshotRecorder records fleet summaries.
type FleetSnapshotRecorder interface {
	RecordFleetSnapshot(s FleetSnapshot) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordAssignment(AssignmentEvent) error  { return nil }
func (NopSink) RecordReposition(RepositionEvent) error  { return nil }
func (NopSink) RecordHealth(HealthEvent) error          { return nil }
func (NopSink) RecordEco(EcoEvent) error                { return nil }
func (NopSink) RecordFleetSnapshot(FleetSnapshot) error { return nil }
