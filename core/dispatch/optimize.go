package dispatch

import (
	"context"
	"fmt"
	"sort"

	"github.com/kilianp07/elevfleet/core/model"
)

// OptimizeReport is the outcome of an on-demand route optimisation.
type OptimizeReport struct {
	BusiestFloor int     `json:"busiest_floor"`
	BatchSize    int     `json:"batch_size"`
	Moved        []int64 `json:"moved"`
	Summary      string  `json:"summary"`
}

// OptimizeRoutes groups pending requests by source floor and sends idle cars
// that are far from the busiest floor towards it, one car per RidersPerCar
// waiting riders.
func (d *Dispatcher) OptimizeRoutes(ctx context.Context) (OptimizeReport, error) {
	pending, err := d.state.RequestsByStatus(ctx, model.RequestPending)
	if err != nil {
		return OptimizeReport{}, err
	}
	if len(pending) == 0 {
		return OptimizeReport{Summary: "No pending requests to optimize."}, nil
	}
	floor, batch := busiestSource(pending)
	rep := OptimizeReport{BusiestFloor: floor, BatchSize: batch}

	idle, err := d.state.IdleCars(ctx)
	if err != nil {
		return rep, err
	}
	for _, c := range idle {
		if abs(c.CurrentFloor-floor) <= *d.cfg.OptimizeRadius {
			continue
		}
		moved, err := d.reposition(ctx, c.ID, floor, *d.cfg.OptimizeRadius, "optimize", true)
		if err != nil {
			d.log.Warnf("optimize: move car %d to floor %d: %v", c.ID, floor, err)
			continue
		}
		if !moved {
			continue
		}
		rep.Moved = append(rep.Moved, c.ID)
		d.rec.Record(ctx, c.ID, "Traffic Optimization: Moved to hotspot floor %d to serve %d pending requests.", floor, batch)
		if len(rep.Moved)*d.cfg.RidersPerCar >= batch {
			break
		}
	}
	rep.Summary = fmt.Sprintf("Optimization complete. Identified busiest floor: %d with %d requests. Repositioned %d idle elevators.",
		floor, batch, len(rep.Moved))
	return rep, nil
}

// busiestSource returns the source floor with the most requests, the lowest
// floor on a tie.
func busiestSource(reqs []model.Request) (floor, count int) {
	counts := map[int]int{}
	for _, r := range reqs {
		counts[r.SourceFloor]++
	}
	floors := make([]int, 0, len(counts))
	for f := range counts {
		floors = append(floors, f)
	}
	sort.Ints(floors)
	for _, f := range floors {
		if counts[f] > count {
			floor, count = f, counts[f]
		}
	}
	return floor, count
}
