// Package fleet holds the shared elevator fleet state. Every read-modify-write
// of a car runs under that car's exclusive lock; operations on different cars
// never contend.
package fleet

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kilianp07/elevfleet/core/logger"
	"github.com/kilianp07/elevfleet/core/model"
	"github.com/kilianp07/elevfleet/core/repository"
)

// CarSpec describes a car to create.
type CarSpec struct {
	CurrentFloor int `json:"current_floor" yaml:"current_floor"`
	Capacity     int `json:"capacity" yaml:"capacity"`
}

// Option customises a State.
type Option func(*State)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *State) { s.now = now }
}

// WithBroadcaster sets the sink notified after each car persist.
func WithBroadcaster(b StatusBroadcaster) Option {
	return func(s *State) { s.broadcaster = b }
}

// WithLogger sets the operational logger.
func WithLogger(l logger.Logger) Option {
	return func(s *State) { s.log = l }
}

// State is the explicit holder of cars and requests.
type State struct {
	cars        repository.CarRepository
	requests    repository.RequestRepository
	cache       *readCache
	locks       *keyedLocks
	broadcaster StatusBroadcaster
	log         logger.Logger
	now         func() time.Time

	movesMu sync.Mutex
	moves   map[int64]int
}

// New builds a State over the given repositories.
func New(cars repository.CarRepository, requests repository.RequestRepository, opts ...Option) *State {
	s := &State{
		cars:        cars,
		requests:    requests,
		cache:       newReadCache(),
		locks:       newKeyedLocks(),
		broadcaster: NopBroadcaster{},
		log:         logger.NopLogger{},
		now:         time.Now,
		moves:       map[int64]int{},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Now returns the current time of the state clock.
func (s *State) Now() time.Time { return s.now() }

// Cars lists every car ordered by id.
func (s *State) Cars(ctx context.Context) ([]model.Car, error) {
	cars, _, err := cached(s.cache, carListKey, func() ([]model.Car, bool, error) {
		all, err := s.cars.FindAll(ctx)
		return all, true, err
	})
	if err != nil {
		return nil, fmt.Errorf("list cars: %w", err)
	}
	return cars, nil
}

// Car returns the car with the given id or ErrNotFound.
func (s *State) Car(ctx context.Context, id int64) (model.Car, error) {
	c, ok, err := cached(s.cache, carKey(id), func() (model.Car, bool, error) {
		return s.cars.FindByID(ctx, id)
	})
	if err != nil {
		return model.Car{}, fmt.Errorf("load car %d: %w", id, err)
	}
	if !ok {
		return model.Car{}, fmt.Errorf("car %d: %w", id, ErrNotFound)
	}
	return c, nil
}

// OperationalCars lists cars that are in service.
func (s *State) OperationalCars(ctx context.Context) ([]model.Car, error) {
	return s.filterCars(ctx, func(c model.Car) bool { return c.Operational })
}

// IdleCars lists operational cars standing still.
func (s *State) IdleCars(ctx context.Context) ([]model.Car, error) {
	return s.filterCars(ctx, model.Car.Idle)
}

func (s *State) filterCars(ctx context.Context, keep func(model.Car) bool) ([]model.Car, error) {
	all, err := s.Cars(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, c := range all {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out, nil
}

// Statuses returns the broadcast summary of every car.
func (s *State) Statuses(ctx context.Context) ([]model.StatusSummary, error) {
	all, err := s.Cars(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.StatusSummary, 0, len(all))
	for _, c := range all {
		out = append(out, c.Summary())
	}
	return out, nil
}

// CarPage returns one page of cars.
func (s *State) CarPage(ctx context.Context, p repository.PageRequest) (repository.Page[model.Car], error) {
	return s.cars.FindPage(ctx, p.Normalize("id"))
}

// AddCar creates an idle operational car.
func (s *State) AddCar(ctx context.Context, spec CarSpec) (model.Car, error) {
	c := model.NewCar(spec.CurrentFloor, spec.Capacity, s.now())
	saved, err := s.cars.Save(ctx, c)
	if err != nil {
		return model.Car{}, fmt.Errorf("save car: %w", err)
	}
	s.afterCarWrite(ctx, saved.ID)
	s.log.Infof("car %d added at floor %d", saved.ID, saved.CurrentFloor)
	return saved, nil
}

// DeleteCar removes a car. It fails with ErrCarBusy while a stepwise move
// for the car is in flight.
func (s *State) DeleteCar(ctx context.Context, id int64) error {
	return s.Exclusive(ctx, id, func(h *Handle) error {
		if s.movesInFlight(id) > 0 {
			return fmt.Errorf("delete car %d: %w", id, ErrCarBusy)
		}
		if err := s.cars.Delete(ctx, id); err != nil {
			return fmt.Errorf("delete car %d: %w", id, err)
		}
		h.deleted = true
		s.afterCarWrite(ctx, id)
		return nil
	})
}

// Exclusive runs fn with the car's lock held. The handle's Save persists
// mutations and triggers the status broadcast.
func (s *State) Exclusive(ctx context.Context, id int64, fn func(h *Handle) error) error {
	unlock, err := s.locks.lock(ctx, lockKey{kind: carLock, id: id})
	if err != nil {
		return fmt.Errorf("lock car %d: %w", id, err)
	}
	defer unlock()

	c, ok, err := s.cars.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("load car %d: %w", id, err)
	}
	if !ok {
		return fmt.Errorf("car %d: %w", id, ErrNotFound)
	}
	h := &Handle{ctx: ctx, state: s, car: c}
	return fn(h)
}

// TrackMove marks a stepwise move for car id as in flight until the returned
// release function is called.
func (s *State) TrackMove(id int64) func() {
	s.movesMu.Lock()
	s.moves[id]++
	s.movesMu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			s.movesMu.Lock()
			if s.moves[id]--; s.moves[id] <= 0 {
				delete(s.moves, id)
			}
			s.movesMu.Unlock()
		})
	}
}

func (s *State) movesInFlight(id int64) int {
	s.movesMu.Lock()
	defer s.movesMu.Unlock()
	return s.moves[id]
}

func (s *State) afterCarWrite(ctx context.Context, id int64) {
	s.cache.invalidate(carKey(id), carListKey)
	statuses, err := s.Statuses(ctx)
	if err != nil {
		s.log.Warnf("status broadcast skipped: %v", err)
		return
	}
	s.broadcaster.Broadcast(ctx, statuses)
}

// Handle gives exclusive access to one car inside State.Exclusive.
type Handle struct {
	ctx     context.Context
	state   *State
	car     model.Car
	deleted bool
}

// Car returns the current value of the locked car.
func (h *Handle) Car() model.Car { return h.car }

// Context returns the context of the Exclusive call.
func (h *Handle) Context() context.Context { return h.ctx }

// Now returns the state clock time.
func (h *Handle) Now() time.Time { return h.state.now() }

// Save persists c as the new value of the locked car.
func (h *Handle) Save(c model.Car) error {
	if h.deleted {
		return fmt.Errorf("car %d: %w", h.car.ID, ErrNotFound)
	}
	c.ID = h.car.ID
	saved, err := h.state.cars.Save(h.ctx, c)
	if err != nil {
		return fmt.Errorf("save car %d: %w", c.ID, err)
	}
	h.car = saved
	h.state.afterCarWrite(h.ctx, saved.ID)
	return nil
}

// Update applies mutate to a copy of the car and saves it.
func (h *Handle) Update(mutate func(c *model.Car)) error {
	c := h.car
	mutate(&c)
	return h.Save(c)
}
