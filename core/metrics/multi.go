package metrics

import "errors"

// MultiSink fans events out to several sinks. Every sink receives the event
// even when an earlier one fails; the errors are joined.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

func (m *MultiSink) RecordAssignment(ev AssignmentEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		errs = append(errs, s.RecordAssignment(ev))
	}
	return errors.Join(errs...)
}

func (m *MultiSink) RecordReposition(ev RepositionEvent) error {
	return m.each(func(s MetricsSink) error { return Reposition(s, ev) })
}

func (m *MultiSink) RecordHealth(ev HealthEvent) error {
	return m.each(func(s MetricsSink) error { return Health(s, ev) })
}

func (m *MultiSink) RecordEco(ev EcoEvent) error {
	return m.each(func(s MetricsSink) error { return Eco(s, ev) })
}

func (m *MultiSink) RecordFleetSnapshot(snap FleetSnapshot) error {
	return m.each(func(s MetricsSink) error { return Snapshot(s, snap) })
}

func (m *MultiSink) each(fn func(MetricsSink) error) error {
	var errs []error
	for _, s := range m.Sinks {
		errs = append(errs, fn(s))
	}
	return errors.Join(errs...)
}
