package prediction

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/elevfleet/core/model"
)

// DefaultMinSamples is the number of matching past requests required before
// a prediction is made.
const DefaultMinSamples = 10

// HotspotPredictor returns the floor expected to be busiest around now.
// ok is false when no prediction can be made.
type HotspotPredictor interface {
	PredictHotspotFloor(ctx context.Context, now time.Time) (floor int, ok bool, err error)
}

// RequestSource lists historical requests.
type RequestSource interface {
	AllRequests(ctx context.Context) ([]model.Request, error)
}

// Config tunes the history predictor.
type Config struct {
	MinSamples int `json:"min_samples"`
	// StaticFloor, when set, replaces the history predictor.
	StaticFloor *int `json:"static_floor"`
}

// New returns the predictor described by cfg.
func New(cfg Config, src RequestSource) HotspotPredictor {
	if cfg.StaticFloor != nil {
		return StaticPredictor{Floor: *cfg.StaticFloor, Set: true}
	}
	return NewHistoryPredictor(src, cfg.MinSamples)
}

// HistoryPredictor picks the most frequent source floor among past requests
// made on the same weekday and hour as now.
type HistoryPredictor struct {
	src        RequestSource
	minSamples int
}

// NewHistoryPredictor returns a HistoryPredictor. A non-positive minSamples
// uses DefaultMinSamples.
func NewHistoryPredictor(src RequestSource, minSamples int) *HistoryPredictor {
	if minSamples <= 0 {
		minSamples = DefaultMinSamples
	}
	return &HistoryPredictor{src: src, minSamples: minSamples}
}

func (p *HistoryPredictor) PredictHotspotFloor(ctx context.Context, now time.Time) (int, bool, error) {
	all, err := p.src.AllRequests(ctx)
	if err != nil {
		return 0, false, fmt.Errorf("load request history: %w", err)
	}
	floors := make([]float64, 0, len(all))
	for _, r := range all {
		t := r.RequestTime.In(now.Location())
		if t.Weekday() == now.Weekday() && t.Hour() == now.Hour() {
			floors = append(floors, float64(r.SourceFloor))
		}
	}
	if len(floors) < p.minSamples {
		return 0, false, nil
	}
	return busiestFloor(floors), true, nil
}

// busiestFloor returns the mode of floors, the lowest floor on a tie.
func busiestFloor(floors []float64) int {
	sort.Float64s(floors)
	_, top := stat.Mode(floors, nil)
	run := 0.0
	for i, f := range floors {
		if i > 0 && floors[i-1] != f {
			run = 0
		}
		run++
		if run == top {
			return int(f)
		}
	}
	return int(floors[0])
}

// StaticPredictor always returns Floor when Set.
type StaticPredictor struct {
	Floor int
	Set   bool
}

func (s StaticPredictor) PredictHotspotFloor(context.Context, time.Time) (int, bool, error) {
	return s.Floor, s.Set, nil
}
