package metrics

// Reposition forwards ev when sink supports it.
func Reposition(sink MetricsSink, ev RepositionEvent) error {
	if r, ok := sink.(RepositionRecorder); ok {
		return r.RecordReposition(ev)
	}
	return nil
}

// Health forwards ev when sink supports it.
func Health(sink MetricsSink, ev HealthEvent) error {
	if r, ok := sink.(HealthRecorder); ok {
		return r.RecordHealth(ev)
	}
	return nil
}

// Eco forwards ev when sink supports it.
func Eco(sink MetricsSink, ev EcoEvent) error {
	if r, ok := sink.(EcoRecorder); ok {
		return r.RecordEco(ev)
	}
	return nil
}

// Snapshot forwards s when sink supports it.
func Snapshot(sink MetricsSink, s FleetSnapshot) error {
	if r, ok := sink.(FleetSnapshotRecorder); ok {
		return r.RecordFleetSnapshot(s)
	}
	return nil
}
