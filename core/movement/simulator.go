// Package movement drives cars between floors, either in one step or floor by
// floor on a fixed tick.
package movement

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kilianp07/elevfleet/core/eventlog"
	"github.com/kilianp07/elevfleet/core/fleet"
	"github.com/kilianp07/elevfleet/core/logger"
	"github.com/kilianp07/elevfleet/core/model"
)

// ErrStopped is returned once the simulator has been closed.
var ErrStopped = errors.New("movement simulator stopped")

// DefaultTick is the simulated travel time between two adjacent floors.
const DefaultTick = time.Second

// Config tunes the simulator.
type Config struct {
	Tick time.Duration `json:"tick"`
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.Tick <= 0 {
		c.Tick = DefaultTick
	}
}

// Simulator moves cars held in a fleet.State. At most one stepwise move runs
// per car; further requests for the same car wait their turn.
type Simulator struct {
	state *fleet.State
	rec   *eventlog.Recorder
	log   logger.Logger
	tick  time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
	slots  map[int64]*slot
}

// slot serialises the stepwise moves of one car. It is dropped from the map
// once no move holds or waits for it.
type slot struct {
	ch   chan struct{}
	refs int
}

// NewSimulator returns a Simulator. A nil recorder disables the audit trail.
func NewSimulator(state *fleet.State, rec *eventlog.Recorder, log logger.Logger, cfg Config) *Simulator {
	cfg.SetDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Simulator{
		state:  state,
		rec:    rec,
		log:    log,
		tick:   cfg.Tick,
		ctx:    ctx,
		cancel: cancel,
		slots:  map[int64]*slot{},
	}
}

// Teleport relocates car id to floor in a single step. A non-operational car
// is left untouched and moved is false.
func (s *Simulator) Teleport(ctx context.Context, id int64, floor int) (car model.Car, moved bool, err error) {
	err = s.state.Exclusive(ctx, id, func(h *fleet.Handle) error {
		car = h.Car()
		if !car.Operational {
			return nil
		}
		if err := s.Relocate(h, floor); err != nil {
			return err
		}
		car, moved = h.Car(), true
		return nil
	})
	return car, moved, err
}

// Relocate moves the car held by h straight to floor and leaves it idle.
// It fails with fleet.ErrCarUnavailable when the car is out of service.
func (s *Simulator) Relocate(h *fleet.Handle, floor int) error {
	c := h.Car()
	if !c.Operational {
		return fmt.Errorf("relocate car %d: %w", c.ID, fleet.ErrCarUnavailable)
	}
	s.rec.Record(h.Context(), c.ID, "Moving to floor %d", floor)
	c.HeadTowards(floor)
	c.CurrentFloor = floor
	c.Stop()
	return h.Save(c)
}

// Simulate starts a stepwise move of car id to floor and returns once the
// move is scheduled. Unknown cars fail with fleet.ErrNotFound; non-operational
// cars are ignored.
func (s *Simulator) Simulate(ctx context.Context, id int64, floor int) error {
	car, err := s.state.Car(ctx, id)
	if err != nil {
		return err
	}
	if !car.Operational {
		s.log.Debugf("car %d out of service, simulation to floor %d skipped", id, floor)
		return nil
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrStopped
	}
	s.wg.Add(1)
	s.mu.Unlock()

	release := s.state.TrackMove(id)
	go func() {
		defer s.wg.Done()
		defer release()
		if err := s.run(id, floor); err != nil && !errors.Is(err, context.Canceled) {
			s.log.Errorf("simulation of car %d to floor %d: %v", id, floor, err)
		}
	}()
	return nil
}

func (s *Simulator) run(id int64, target int) error {
	unlock, err := s.acquireSlot(id)
	if err != nil {
		return err
	}
	defer unlock()

	ctx := s.ctx
	var active bool
	err = s.state.Exclusive(ctx, id, func(h *fleet.Handle) error {
		c := h.Car()
		if !c.Operational {
			return nil
		}
		active = true
		s.rec.Record(ctx, id, "Simulation started to floor %d", target)
		c.HeadTowards(target)
		return h.Save(c)
	})
	if err != nil || !active {
		return err
	}

	for {
		arrived, err := s.step(ctx, id, target)
		if err != nil || arrived {
			return err
		}
	}
}

// step advances the car one floor after a tick. The car's floor is re-read
// each time so a concurrent teleport shifts the starting point of the rest
// of the trip.
func (s *Simulator) step(ctx context.Context, id int64, target int) (bool, error) {
	if c, err := s.state.Car(ctx, id); err == nil && c.CurrentFloor != target {
		if err := s.sleep(ctx); err != nil {
			return false, err
		}
	}
	var arrived bool
	err := s.state.Exclusive(ctx, id, func(h *fleet.Handle) error {
		c := h.Car()
		if !c.Operational {
			s.rec.Record(ctx, id, "Simulation aborted at floor %d: out of service", c.CurrentFloor)
			arrived = true
			return nil
		}
		if c.CurrentFloor == target {
			arrived = true
			c.Stop()
			if err := h.Save(c); err != nil {
				return err
			}
			s.rec.Record(ctx, id, "Simulation completed. Idle at floor %d", target)
			return nil
		}
		if target > c.CurrentFloor {
			c.CurrentFloor++
		} else {
			c.CurrentFloor--
		}
		if c.CurrentFloor != target {
			c.HeadTowards(target)
		}
		if err := h.Save(c); err != nil {
			return err
		}
		s.rec.Record(ctx, id, "Reached floor %d", c.CurrentFloor)
		return nil
	})
	if errors.Is(err, fleet.ErrNotFound) {
		s.log.Warnf("car %d removed during simulation", id)
		return true, nil
	}
	return arrived, err
}

func (s *Simulator) sleep(ctx context.Context) error {
	t := time.NewTimer(s.tick)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Simulator) acquireSlot(id int64) (func(), error) {
	s.mu.Lock()
	sl := s.slots[id]
	if sl == nil {
		sl = &slot{ch: make(chan struct{}, 1)}
		s.slots[id] = sl
	}
	sl.refs++
	s.mu.Unlock()
	select {
	case sl.ch <- struct{}{}:
		return func() {
			<-sl.ch
			s.releaseSlot(id, sl)
		}, nil
	case <-s.ctx.Done():
		s.releaseSlot(id, sl)
		return nil, s.ctx.Err()
	}
}

func (s *Simulator) releaseSlot(id int64, sl *slot) {
	s.mu.Lock()
	sl.refs--
	if sl.refs == 0 {
		delete(s.slots, id)
	}
	s.mu.Unlock()
}

func (s *Simulator) slotCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.slots)
}

// Wait blocks until no simulation is in flight.
func (s *Simulator) Wait() { s.wg.Wait() }

// Close stops accepting simulations and waits for in-flight ones. When ctx
// expires first the remaining moves are abandoned at their current floor.
func (s *Simulator) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		<-done
		return ctx.Err()
	}
}
