// Package dispatch assigns pending transport requests to cars. Each cycle
// first repositions idle cars towards a predicted hotspot, then gives every
// pending request to the eligible car with the lowest cost.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/kilianp07/elevfleet/core/eventlog"
	"github.com/kilianp07/elevfleet/core/fleet"
	"github.com/kilianp07/elevfleet/core/logger"
	"github.com/kilianp07/elevfleet/core/metrics"
	"github.com/kilianp07/elevfleet/core/model"
	"github.com/kilianp07/elevfleet/core/monitoring"
	"github.com/kilianp07/elevfleet/core/prediction"
)

// Mover relocates a car whose lock is held by the caller.
type Mover interface {
	Relocate(h *fleet.Handle, floor int) error
}

// Assignment describes one request bound to a car.
type Assignment struct {
	RequestID  int64 `json:"request_id"`
	ElevatorID int64 `json:"elevator_id"`
	Cost       int   `json:"cost"`
}

// CycleReport summarises a dispatch cycle.
type CycleReport struct {
	Hotspot      *int         `json:"hotspot,omitempty"`
	Repositioned []int64      `json:"repositioned"`
	Assigned     []Assignment `json:"assigned"`
	Failed       []int64      `json:"failed"`
	Unassigned   int          `json:"unassigned"`
}

// Dispatcher runs the assignment cycle over a fleet.State.
type Dispatcher struct {
	state     *fleet.State
	mover     Mover
	predictor prediction.HotspotPredictor
	rec       *eventlog.Recorder
	log       logger.Logger
	sink      metrics.MetricsSink
	cfg       Config
}

// Option customises a Dispatcher.
type Option func(*Dispatcher)

// WithPredictor sets the hotspot oracle used by the proactive phase.
func WithPredictor(p prediction.HotspotPredictor) Option {
	return func(d *Dispatcher) { d.predictor = p }
}

// WithRecorder sets the audit trail recorder.
func WithRecorder(r *eventlog.Recorder) Option {
	return func(d *Dispatcher) { d.rec = r }
}

// WithLogger sets the operational logger.
func WithLogger(l logger.Logger) Option {
	return func(d *Dispatcher) { d.log = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(s metrics.MetricsSink) Option {
	return func(d *Dispatcher) { d.sink = s }
}

// New returns a Dispatcher. Without a predictor the proactive phase is skipped.
func New(state *fleet.State, mover Mover, cfg Config, opts ...Option) *Dispatcher {
	cfg.SetDefaults()
	d := &Dispatcher{
		state:     state,
		mover:     mover,
		predictor: prediction.StaticPredictor{},
		sink:      metrics.NopSink{},
		cfg:       cfg,
	}
	for _, o := range opts {
		o(d)
	}
	if d.log == nil {
		d.log = logger.NopLogger{}
	}
	return d
}

// RunCycle executes the proactive then the reactive phase. Failures on
// individual requests are recorded and never abort the cycle.
func (d *Dispatcher) RunCycle(ctx context.Context) (CycleReport, error) {
	var rep CycleReport
	if err := d.proactive(ctx, &rep); err != nil {
		d.log.Warnf("hotspot repositioning skipped: %v", err)
		monitoring.Capture("dispatch", "proactive", err)
	}
	if err := d.reactive(ctx, &rep); err != nil {
		return rep, err
	}
	return rep, nil
}

func (d *Dispatcher) proactive(ctx context.Context, rep *CycleReport) error {
	floor, ok, err := d.predictor.PredictHotspotFloor(ctx, d.state.Now())
	if err != nil {
		return fmt.Errorf("predict hotspot: %w", err)
	}
	if !ok {
		return nil
	}
	rep.Hotspot = &floor
	idle, err := d.state.IdleCars(ctx)
	if err != nil {
		return err
	}
	for _, c := range idle {
		if c.EcoMode || abs(c.CurrentFloor-floor) <= *d.cfg.HotspotRadius {
			continue
		}
		moved, err := d.reposition(ctx, c.ID, floor, *d.cfg.HotspotRadius, "hotspot", false)
		if err != nil {
			d.log.Warnf("reposition car %d to hotspot %d: %v", c.ID, floor, err)
			continue
		}
		if moved {
			rep.Repositioned = append(rep.Repositioned, c.ID)
		}
	}
	return nil
}

// reposition moves an idle car to floor when it is still farther than radius
// once its lock is held.
func (d *Dispatcher) reposition(ctx context.Context, id int64, floor, radius int, reason string, allowEco bool) (bool, error) {
	var moved bool
	err := d.state.Exclusive(ctx, id, func(h *fleet.Handle) error {
		c := h.Car()
		if !c.Idle() || (c.EcoMode && !allowEco) || abs(c.CurrentFloor-floor) <= radius {
			return nil
		}
		if err := d.mover.Relocate(h, floor); err != nil {
			return err
		}
		moved = true
		repositionsTotal.WithLabelValues(reason).Inc()
		if err := metrics.Reposition(d.sink, metrics.RepositionEvent{
			ElevatorID: id, FromFloor: c.CurrentFloor, ToFloor: floor, Reason: reason, Time: h.Now(),
		}); err != nil {
			d.log.Warnf("record reposition: %v", err)
		}
		return nil
	})
	return moved, err
}

func (d *Dispatcher) reactive(ctx context.Context, rep *CycleReport) error {
	pending, err := d.state.RequestsByStatus(ctx, model.RequestPending)
	if err != nil {
		return err
	}
	pendingRequests.Set(float64(len(pending)))
	if len(pending) == 0 {
		return nil
	}
	cars, err := d.state.OperationalCars(ctx)
	if err != nil {
		return err
	}
	for _, r := range pending {
		idx, cost := Best(cars, r)
		if idx < 0 {
			rep.Unassigned++
			continue
		}
		car, err := d.assign(ctx, r.ID, cars[idx].ID, cost, false)
		if err != nil {
			rep.Failed = append(rep.Failed, r.ID)
			if errors.Is(err, ErrCarFault) {
				cars = slices.Delete(cars, idx, idx+1)
			} else {
				cars[idx] = d.refresh(ctx, cars[idx])
			}
			continue
		}
		cars[idx] = car
		rep.Assigned = append(rep.Assigned, Assignment{RequestID: r.ID, ElevatorID: car.ID, Cost: cost})
	}
	return nil
}

// refresh reloads a candidate after a failed assignment so the rest of the
// cycle sees its current state.
func (d *Dispatcher) refresh(ctx context.Context, c model.Car) model.Car {
	fresh, err := d.state.Car(ctx, c.ID)
	if err != nil {
		c.Operational = false
		return c
	}
	return fresh
}

// ManualAssign binds request requestID to car carID without a cost search.
// Unknown ids fail with fleet.ErrNotFound and leave the fleet untouched.
func (d *Dispatcher) ManualAssign(ctx context.Context, requestID, carID int64) (model.Request, error) {
	if _, err := d.state.Request(ctx, requestID); err != nil {
		return model.Request{}, err
	}
	car, err := d.state.Car(ctx, carID)
	if err != nil {
		return model.Request{}, err
	}
	if !car.Operational {
		return model.Request{}, fmt.Errorf("manual assign to car %d: %w", carID, fleet.ErrCarUnavailable)
	}
	if _, err := d.assign(ctx, requestID, carID, -1, true); err != nil {
		return model.Request{}, err
	}
	return d.state.Request(ctx, requestID)
}

// assign relocates the car to the request's source then destination floor
// and marks the request assigned. Any failure leaves the request pending.
func (d *Dispatcher) assign(ctx context.Context, requestID, carID int64, cost int, manual bool) (model.Car, error) {
	var car model.Car
	var req model.Request
	err := d.state.ExclusiveRequest(ctx, requestID, func(r model.Request) error {
		req = r
		if r.Status != model.RequestPending {
			return fmt.Errorf("request %d is %s: %w", r.ID, r.Status, ErrAssignment)
		}
		return d.state.Exclusive(ctx, carID, func(h *fleet.Handle) error {
			c := h.Car()
			if !c.Operational || (!manual && !Eligible(c)) {
				return d.failed(ctx, r, carID, fmt.Errorf("car %d: %w", carID, fleet.ErrCarUnavailable))
			}
			if manual {
				d.rec.Record(ctx, carID, "Manually assigned request ID: %d", r.ID)
			}
			d.rec.Record(ctx, carID, "Assigned request ID: %d", r.ID)
			if err := d.mover.Relocate(h, r.SourceFloor); err != nil {
				return d.failed(ctx, r, carID, err)
			}
			if err := d.mover.Relocate(h, r.DestinationFloor); err != nil {
				return d.failed(ctx, r, carID, err)
			}
			r.Assign(carID)
			if _, err := d.state.SaveRequest(ctx, r); err != nil {
				return d.failed(ctx, r, carID, err)
			}
			car = h.Car()
			return nil
		})
	})

	ev := metrics.AssignmentEvent{
		RequestID:   requestID,
		ElevatorID:  carID,
		SourceFloor: req.SourceFloor,
		TargetFloor: req.DestinationFloor,
		Cost:        cost,
		Manual:      manual,
		Success:     err == nil,
		Time:        d.state.Now(),
	}
	if recErr := d.sink.RecordAssignment(ev); recErr != nil {
		d.log.Warnf("record assignment: %v", recErr)
	}
	if err != nil {
		if errors.Is(err, ErrAssignment) {
			assignmentFailure.Inc()
		}
		return car, err
	}
	mode := "auto"
	if manual {
		mode = "manual"
	} else {
		assignmentCost.Observe(float64(cost))
	}
	assignmentsTotal.WithLabelValues(mode).Inc()
	d.log.Infof("request %d assigned to car %d", requestID, carID)
	return car, nil
}

// failed records an assignment failure on the car's trail and wraps cause
// with ErrAssignment and ErrCarFault.
func (d *Dispatcher) failed(ctx context.Context, r model.Request, carID int64, cause error) error {
	d.rec.Record(ctx, carID, "Failed to assign request ID: %d. Error: %v", r.ID, cause)
	d.log.Errorf("assign request %d to car %d: %v", r.ID, carID, cause)
	err := fmt.Errorf("request %d: %w: %w: %w", r.ID, ErrAssignment, ErrCarFault, cause)
	monitoring.Capture("dispatch", "assign", err)
	return err
}
