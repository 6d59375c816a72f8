// Package health implements the heartbeat watchdog. A car silent for longer
// than the heartbeat timeout is taken out of service; once silent for longer
// than the restart delay it is restarted. A heartbeat brings a failed car
// straight back.
package health

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kilianp07/elevfleet/core/eventlog"
	"github.com/kilianp07/elevfleet/core/fleet"
	"github.com/kilianp07/elevfleet/core/logger"
	"github.com/kilianp07/elevfleet/core/metrics"
	"github.com/kilianp07/elevfleet/core/model"
	"github.com/kilianp07/elevfleet/core/monitoring"
)

// CheckReport lists the cars changed by a health check.
type CheckReport struct {
	Demoted   []int64 `json:"demoted"`
	Restarted []int64 `json:"restarted"`
}

// Supervisor applies the watchdog state machine to every car.
type Supervisor struct {
	state *fleet.State
	rec   *eventlog.Recorder
	log   logger.Logger
	sink  metrics.MetricsSink
	cfg   Config
}

// New returns a Supervisor.
func New(state *fleet.State, rec *eventlog.Recorder, log logger.Logger, sink metrics.MetricsSink, cfg Config) *Supervisor {
	cfg.SetDefaults()
	if log == nil {
		log = logger.NopLogger{}
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &Supervisor{state: state, rec: rec, log: log, sink: sink, cfg: cfg}
}

// RunCheck evaluates every car once. A failure on one car is logged and the
// check moves on to the next.
func (s *Supervisor) RunCheck(ctx context.Context) (CheckReport, error) {
	var rep CheckReport
	cars, err := s.state.Cars(ctx)
	if err != nil {
		return rep, err
	}
	down := 0
	for _, c := range cars {
		tr, err := s.check(ctx, c.ID)
		if err != nil {
			if !errors.Is(err, fleet.ErrNotFound) {
				s.log.Errorf("health check of car %d: %v", c.ID, err)
				monitoring.Capture("health", "check", err)
			}
			continue
		}
		switch tr {
		case metrics.TransitionDemoted:
			rep.Demoted = append(rep.Demoted, c.ID)
			down++
		case metrics.TransitionRestarted:
			rep.Restarted = append(rep.Restarted, c.ID)
		default:
			if !c.Operational {
				down++
			}
		}
	}
	outOfService.Set(float64(down))
	return rep, nil
}

func (s *Supervisor) check(ctx context.Context, id int64) (metrics.HealthTransition, error) {
	var tr metrics.HealthTransition
	err := s.state.Exclusive(ctx, id, func(h *fleet.Handle) error {
		c := h.Car()
		if c.LastHeartbeat.IsZero() {
			return nil
		}
		now := h.Now()
		silent := now.Sub(c.LastHeartbeat)
		switch {
		case c.Operational && silent > s.cfg.HeartbeatTimeout:
			last := c.LastHeartbeat
			c.TakeOutOfService()
			if err := h.Save(c); err != nil {
				return err
			}
			s.rec.Record(ctx, id, "Watchdog: Elevator marked OUT_OF_SERVICE due to missing heartbeat. Last heartbeat: %s", last.Format(time.RFC3339))
			logger.ForCar(s.log, id).Warnf("car silent for %s, taken out of service", silent.Truncate(time.Second))
			tr = metrics.TransitionDemoted
		case !c.Operational && silent > s.cfg.RestartAfter:
			s.rec.Record(ctx, id, "Watchdog: Attempting to restart elevator...")
			c.Restore()
			c.LastHeartbeat = now
			if err := h.Save(c); err != nil {
				return err
			}
			s.rec.Record(ctx, id, "Watchdog: Elevator successfully restarted and is now IDLE.")
			logger.ForCar(s.log, id).Infof("car restarted after %s of silence", silent.Truncate(time.Second))
			tr = metrics.TransitionRestarted
		}
		return nil
	})
	if err == nil && tr != "" {
		s.observe(id, tr)
	}
	return tr, err
}

// ReceiveHeartbeat refreshes the heartbeat of car id and brings it back into
// service if it had failed. Unknown ids are ignored.
func (s *Supervisor) ReceiveHeartbeat(ctx context.Context, id int64) error {
	var recovered bool
	err := s.state.Exclusive(ctx, id, func(h *fleet.Handle) error {
		c := h.Car()
		c.LastHeartbeat = h.Now()
		if !c.Operational {
			c.Restore()
			recovered = true
		}
		if err := h.Save(c); err != nil {
			return err
		}
		if recovered {
			s.rec.Record(ctx, id, "Health Monitor: Elevator recovered. Back online.")
		}
		return nil
	})
	if errors.Is(err, fleet.ErrNotFound) {
		s.log.Debugf("heartbeat for unknown car %d ignored", id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("heartbeat car %d: %w", id, err)
	}
	if recovered {
		s.observe(id, metrics.TransitionRecovered)
	}
	return nil
}

// ReportFault takes car id out of service on operator request.
func (s *Supervisor) ReportFault(ctx context.Context, id int64) (model.Car, error) {
	return s.apply(ctx, id, metrics.TransitionFault, "Reported fault. Status: OUT_OF_SERVICE", func(c *model.Car, _ time.Time) {
		c.TakeOutOfService()
		c.Direction = model.DirectionStopped
	})
}

// Repair brings car id back into service. The heartbeat clock restarts so
// the watchdog does not demote the car again right away.
func (s *Supervisor) Repair(ctx context.Context, id int64) (model.Car, error) {
	return s.apply(ctx, id, metrics.TransitionRepaired, "Elevator repaired. Status: IDLE", func(c *model.Car, now time.Time) {
		c.Restore()
		c.LastHeartbeat = now
	})
}

func (s *Supervisor) apply(ctx context.Context, id int64, tr metrics.HealthTransition, msg string, mutate func(*model.Car, time.Time)) (model.Car, error) {
	var out model.Car
	err := s.state.Exclusive(ctx, id, func(h *fleet.Handle) error {
		s.rec.Record(ctx, id, "%s", msg)
		c := h.Car()
		mutate(&c, h.Now())
		if err := h.Save(c); err != nil {
			return err
		}
		out = h.Car()
		return nil
	})
	if err != nil {
		return model.Car{}, err
	}
	s.observe(id, tr)
	return out, nil
}

func (s *Supervisor) observe(id int64, tr metrics.HealthTransition) {
	transitionsTotal.WithLabelValues(string(tr)).Inc()
	if err := metrics.Health(s.sink, metrics.HealthEvent{ElevatorID: id, Transition: tr, Time: s.state.Now()}); err != nil {
		s.log.Warnf("record health event: %v", err)
	}
}
