// Package energy parks idle cars while traffic is low and brings them back
// when it picks up.
package energy

import (
	"context"
	"errors"

	"github.com/kilianp07/elevfleet/core/eventlog"
	"github.com/kilianp07/elevfleet/core/fleet"
	"github.com/kilianp07/elevfleet/core/logger"
	"github.com/kilianp07/elevfleet/core/metrics"
	"github.com/kilianp07/elevfleet/core/model"
	"github.com/kilianp07/elevfleet/core/monitoring"
)

const (
	parkedMessage   = "Energy Optimization: Enabled Eco Mode (Parked)."
	unparkedMessage = "Energy Optimization: Disabled Eco Mode (Active)."
)

// CycleReport describes one energy cycle.
type CycleReport struct {
	Pending     int     `json:"pending"`
	Operational int     `json:"operational"`
	LowTraffic  bool    `json:"low_traffic"`
	Parked      []int64 `json:"parked,omitempty"`
	Unparked    []int64 `json:"unparked,omitempty"`
	// ParkedTotal counts cars in eco mode once the cycle is done.
	ParkedTotal int `json:"parked_total"`
}

// Optimizer toggles eco mode on idle cars.
type Optimizer struct {
	state *fleet.State
	rec   *eventlog.Recorder
	log   logger.Logger
	sink  metrics.MetricsSink
	cfg   Config
}

// New returns an Optimizer.
func New(state *fleet.State, rec *eventlog.Recorder, log logger.Logger, sink metrics.MetricsSink, cfg Config) *Optimizer {
	cfg.SetDefaults()
	if log == nil {
		log = logger.NopLogger{}
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &Optimizer{state: state, rec: rec, log: log, sink: sink, cfg: cfg}
}

// RunCycle parks up to half of the operational cars when fewer than the
// threshold requests are pending, and unparks every parked car otherwise.
func (o *Optimizer) RunCycle(ctx context.Context) (CycleReport, error) {
	var rep CycleReport
	pending, err := o.state.RequestsByStatus(ctx, model.RequestPending)
	if err != nil {
		return rep, err
	}
	cars, err := o.state.Cars(ctx)
	if err != nil {
		return rep, err
	}
	rep.Pending = len(pending)
	for _, c := range cars {
		if c.Operational {
			rep.Operational++
		}
	}
	rep.LowTraffic = rep.Pending < o.cfg.LowTrafficThreshold && rep.Operational > 1

	if rep.LowTraffic {
		// The target counts cars parked in this cycle only.
		target := rep.Operational / 2
		parked := 0
		for _, c := range cars {
			if parked >= target {
				break
			}
			if !c.Idle() || c.EcoMode {
				continue
			}
			ok, err := o.toggle(ctx, c.ID, true)
			if err != nil {
				o.failed(c.ID, err)
				continue
			}
			if ok {
				parked++
				rep.Parked = append(rep.Parked, c.ID)
			}
		}
	} else {
		for _, c := range cars {
			if !c.EcoMode {
				continue
			}
			ok, err := o.toggle(ctx, c.ID, false)
			if err != nil {
				o.failed(c.ID, err)
				continue
			}
			if ok {
				rep.Unparked = append(rep.Unparked, c.ID)
			}
		}
	}

	o.snapshot(ctx, &rep)
	if len(rep.Parked) > 0 || len(rep.Unparked) > 0 {
		o.log.Infof("energy cycle: pending=%d operational=%d parked=%v unparked=%v", rep.Pending, rep.Operational, rep.Parked, rep.Unparked)
	}
	return rep, nil
}

// toggle sets the eco flag of car id. The car is re-checked under its lock:
// parking needs an idle car, unparking needs a parked one.
func (o *Optimizer) toggle(ctx context.Context, id int64, park bool) (bool, error) {
	changed := false
	err := o.state.Exclusive(ctx, id, func(h *fleet.Handle) error {
		c := h.Car()
		if park && (!c.Idle() || c.EcoMode) {
			return nil
		}
		if !park && !c.EcoMode {
			return nil
		}
		c.EcoMode = park
		if err := h.Save(c); err != nil {
			return err
		}
		if park {
			o.rec.Record(ctx, id, parkedMessage)
		} else {
			o.rec.Record(ctx, id, unparkedMessage)
		}
		changed = true
		return nil
	})
	if err != nil || !changed {
		return false, err
	}
	mode := "active"
	if park {
		mode = "parked"
	}
	togglesTotal.WithLabelValues(mode).Inc()
	if err := metrics.Eco(o.sink, metrics.EcoEvent{ElevatorID: id, Parked: park, Time: o.state.Now()}); err != nil {
		o.log.Warnf("record eco event: %v", err)
	}
	return true, nil
}

func (o *Optimizer) failed(id int64, err error) {
	if errors.Is(err, fleet.ErrNotFound) {
		return
	}
	logger.ForCar(o.log, id).Errorf("eco toggle: %v", err)
	monitoring.Capture("energy", "toggle", err)
}

func (o *Optimizer) snapshot(ctx context.Context, rep *CycleReport) {
	cars, err := o.state.Cars(ctx)
	if err != nil {
		o.log.Warnf("fleet snapshot: %v", err)
		return
	}
	snap := metrics.FleetSnapshot{Total: len(cars), Pending: rep.Pending, Time: o.state.Now()}
	for _, c := range cars {
		if c.Operational {
			snap.Operational++
		}
		if c.Idle() {
			snap.Idle++
		}
		if c.EcoMode {
			snap.Parked++
		}
	}
	rep.ParkedTotal = snap.Parked
	parkedCars.Set(float64(snap.Parked))
	if err := metrics.Snapshot(o.sink, snap); err != nil {
		o.log.Warnf("record fleet snapshot: %v", err)
	}
}
