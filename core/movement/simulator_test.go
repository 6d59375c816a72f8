package movement

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/elevfleet/core/eventlog"
	"github.com/kilianp07/elevfleet/core/fleet"
	"github.com/kilianp07/elevfleet/core/model"
	"github.com/kilianp07/elevfleet/infra/logger"
	"github.com/kilianp07/elevfleet/infra/store"
)

type fixture struct {
	state  *fleet.State
	events *eventlog.MemoryStore
	sim    *Simulator
}

func newFixture(t *testing.T, tick time.Duration) fixture {
	t.Helper()
	st := fleet.New(store.NewMemoryCars(), store.NewMemoryRequests())
	events := eventlog.NewMemoryStore()
	rec := eventlog.NewRecorder(events, logger.NopLogger{})
	sim := NewSimulator(st, rec, logger.NopLogger{}, Config{Tick: tick})
	t.Cleanup(func() { _ = sim.Close(context.Background()) })
	return fixture{state: st, events: events, sim: sim}
}

func (f fixture) messages(t *testing.T, id int64) []string {
	t.Helper()
	evs, err := f.events.Query(context.Background(), eventlog.Query{ElevatorID: id})
	require.NoError(t, err)
	out := make([]string, 0, len(evs))
	for _, e := range evs {
		out = append(out, e.Message)
	}
	return out
}

func TestTeleportIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Millisecond)
	c, err := f.state.AddCar(ctx, fleet.CarSpec{CurrentFloor: 1})
	require.NoError(t, err)

	car, moved, err := f.sim.Teleport(ctx, c.ID, 5)
	require.NoError(t, err)
	assert.True(t, moved)
	assert.Equal(t, 5, car.CurrentFloor)
	assert.Equal(t, model.StatusIdle, car.Status)
	assert.Equal(t, model.DirectionStopped, car.Direction)

	again, moved, err := f.sim.Teleport(ctx, c.ID, 5)
	require.NoError(t, err)
	assert.True(t, moved)
	again.LastHeartbeat, car.LastHeartbeat = time.Time{}, time.Time{}
	assert.Equal(t, car, again)
	assert.Equal(t, []string{"Moving to floor 5", "Moving to floor 5"}, f.messages(t, c.ID))
}

func TestTeleportOutOfServiceIsNoop(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Millisecond)
	c, err := f.state.AddCar(ctx, fleet.CarSpec{CurrentFloor: 2})
	require.NoError(t, err)
	require.NoError(t, f.state.Exclusive(ctx, c.ID, func(h *fleet.Handle) error {
		return h.Update((*model.Car).TakeOutOfService)
	}))

	car, moved, err := f.sim.Teleport(ctx, c.ID, 8)
	require.NoError(t, err)
	assert.False(t, moved)
	assert.Equal(t, 2, car.CurrentFloor)
	assert.Empty(t, f.messages(t, c.ID))

	_, _, err = f.sim.Teleport(ctx, 77, 3)
	assert.ErrorIs(t, err, fleet.ErrNotFound)
}

func TestRelocateRejectsOutOfService(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Millisecond)
	c, err := f.state.AddCar(ctx, fleet.CarSpec{})
	require.NoError(t, err)
	err = f.state.Exclusive(ctx, c.ID, func(h *fleet.Handle) error {
		if err := h.Update((*model.Car).TakeOutOfService); err != nil {
			return err
		}
		return f.sim.Relocate(h, 4)
	})
	assert.ErrorIs(t, err, fleet.ErrCarUnavailable)
}

func TestSimulateStepwise(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Millisecond)
	c, err := f.state.AddCar(ctx, fleet.CarSpec{CurrentFloor: 4})
	require.NoError(t, err)

	require.NoError(t, f.sim.Simulate(ctx, c.ID, 1))
	f.sim.Wait()

	got, err := f.state.Car(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.CurrentFloor)
	assert.Equal(t, model.StatusIdle, got.Status)
	assert.Equal(t, model.DirectionStopped, got.Direction)
	assert.Equal(t, []string{
		"Simulation started to floor 1",
		"Reached floor 3",
		"Reached floor 2",
		"Reached floor 1",
		"Simulation completed. Idle at floor 1",
	}, f.messages(t, c.ID))
}

func TestSimulateMatchesTeleportTerminalState(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Millisecond)
	a, err := f.state.AddCar(ctx, fleet.CarSpec{CurrentFloor: 0})
	require.NoError(t, err)
	b, err := f.state.AddCar(ctx, fleet.CarSpec{CurrentFloor: 0})
	require.NoError(t, err)

	require.NoError(t, f.sim.Simulate(ctx, a.ID, 3))
	_, _, err = f.sim.Teleport(ctx, b.ID, 3)
	require.NoError(t, err)
	f.sim.Wait()

	sa, err := f.state.Car(ctx, a.ID)
	require.NoError(t, err)
	sb, err := f.state.Car(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, sb.Summary().CurrentFloor, sa.Summary().CurrentFloor)
	assert.Equal(t, sb.Status, sa.Status)
	assert.Equal(t, sb.Direction, sa.Direction)
}

func TestSimulateSameFloor(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Hour)
	c, err := f.state.AddCar(ctx, fleet.CarSpec{CurrentFloor: 2})
	require.NoError(t, err)
	require.NoError(t, f.sim.Simulate(ctx, c.ID, 2))
	f.sim.Wait()
	assert.Equal(t, []string{"Simulation started to floor 2", "Simulation completed. Idle at floor 2"}, f.messages(t, c.ID))
}

func TestSimulateUnknownAndOutOfService(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Millisecond)
	assert.ErrorIs(t, f.sim.Simulate(ctx, 9, 1), fleet.ErrNotFound)

	c, err := f.state.AddCar(ctx, fleet.CarSpec{})
	require.NoError(t, err)
	require.NoError(t, f.state.Exclusive(ctx, c.ID, func(h *fleet.Handle) error {
		return h.Update((*model.Car).TakeOutOfService)
	}))
	require.NoError(t, f.sim.Simulate(ctx, c.ID, 3))
	f.sim.Wait()
	got, err := f.state.Car(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.CurrentFloor)
}

func TestSimulationsSerializedPerCar(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Millisecond)
	c, err := f.state.AddCar(ctx, fleet.CarSpec{CurrentFloor: 0})
	require.NoError(t, err)

	require.NoError(t, f.sim.Simulate(ctx, c.ID, 3))
	require.NoError(t, f.sim.Simulate(ctx, c.ID, 1))
	f.sim.Wait()

	got, err := f.state.Car(ctx, c.ID)
	require.NoError(t, err)
	assert.Contains(t, []int{1, 3}, got.CurrentFloor)
	assert.Equal(t, model.StatusIdle, got.Status)

	msgs := f.messages(t, c.ID)
	var started, completed int
	for _, m := range msgs {
		switch {
		case strings.HasPrefix(m, "Simulation started"):
			started++
		case strings.HasPrefix(m, "Simulation completed."):
			completed++
		}
	}
	assert.Equal(t, 2, started)
	assert.Equal(t, 2, completed)
	assert.Zero(t, f.sim.slotCount())
}

func TestSlotsReleasedForDeletedCars(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Millisecond)
	for i := 0; i < 3; i++ {
		c, err := f.state.AddCar(ctx, fleet.CarSpec{})
		require.NoError(t, err)
		require.NoError(t, f.sim.Simulate(ctx, c.ID, 2))
	}
	f.sim.Wait()
	for id := int64(1); id <= 3; id++ {
		require.NoError(t, f.state.DeleteCar(ctx, id))
	}
	assert.Zero(t, f.sim.slotCount())
}

func TestSimulationsOnDifferentCarsRunConcurrently(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 20*time.Millisecond)
	var ids []int64
	for i := 0; i < 4; i++ {
		c, err := f.state.AddCar(ctx, fleet.CarSpec{})
		require.NoError(t, err)
		ids = append(ids, c.ID)
	}
	start := time.Now()
	for _, id := range ids {
		require.NoError(t, f.sim.Simulate(ctx, id, 5))
	}
	f.sim.Wait()
	assert.Less(t, time.Since(start), 4*5*20*time.Millisecond)
}

func TestCloseRejectsNewSimulations(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Millisecond)
	c, err := f.state.AddCar(ctx, fleet.CarSpec{})
	require.NoError(t, err)
	require.NoError(t, f.sim.Close(ctx))
	assert.ErrorIs(t, f.sim.Simulate(ctx, c.ID, 2), ErrStopped)
}

func TestCloseAbandonsOnDeadline(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Hour)
	c, err := f.state.AddCar(ctx, fleet.CarSpec{CurrentFloor: 0})
	require.NoError(t, err)
	require.NoError(t, f.sim.Simulate(ctx, c.ID, 10))

	deadline, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
	defer cancel()
	err = f.sim.Close(deadline)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	got, err := f.state.Car(ctx, c.ID)
	require.NoError(t, err)
	assert.Less(t, got.CurrentFloor, 10)
	assert.NoError(t, f.state.DeleteCar(ctx, c.ID))
}

type fakeStarter struct {
	mu    sync.Mutex
	calls []model.MovementCommand
	err   error
}

func (f *fakeStarter) Simulate(_ context.Context, id int64, floor int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, model.MovementCommand{ElevatorID: id, TargetFloor: floor})
	return f.err
}

func TestConsumerDeduplicates(t *testing.T) {
	fs := &fakeStarter{}
	c := NewConsumer(fs, logger.NopLogger{})
	cmd := model.MovementCommand{CommandID: "a", ElevatorID: 1, TargetFloor: 4}
	c.Handle(context.Background(), cmd)
	c.Handle(context.Background(), cmd)
	c.Handle(context.Background(), model.MovementCommand{CommandID: "b", ElevatorID: 1, TargetFloor: 2})
	require.Len(t, fs.calls, 2)
	assert.Equal(t, 2, fs.calls[1].TargetFloor)
}

func TestConsumerForgetsOldIDs(t *testing.T) {
	fs := &fakeStarter{}
	c := NewConsumer(fs, logger.NopLogger{})
	c.ring = make([]string, 2)
	for _, id := range []string{"a", "b", "c", "a"} {
		c.Handle(context.Background(), model.MovementCommand{CommandID: id})
	}
	assert.Len(t, fs.calls, 4)
}

func TestConsumerDropsUnknownCar(t *testing.T) {
	f := newFixture(t, time.Millisecond)
	c := NewConsumer(f.sim, logger.NopLogger{})
	c.Handle(context.Background(), model.MovementCommand{CommandID: "x", ElevatorID: 404, TargetFloor: 1})
	f.sim.Wait()
	cars, err := f.state.Cars(context.Background())
	require.NoError(t, err)
	assert.Empty(t, cars)
}
