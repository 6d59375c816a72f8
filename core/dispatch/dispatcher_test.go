package dispatch

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/elevfleet/core/eventlog"
	"github.com/kilianp07/elevfleet/core/fleet"
	"github.com/kilianp07/elevfleet/core/model"
	"github.com/kilianp07/elevfleet/core/movement"
	"github.com/kilianp07/elevfleet/core/prediction"
	"github.com/kilianp07/elevfleet/infra/logger"
	"github.com/kilianp07/elevfleet/infra/store"
)

type flakyMover struct {
	inner   Mover
	failCar int64
}

func (f flakyMover) Relocate(h *fleet.Handle, floor int) error {
	if h.Car().ID == f.failCar {
		return errors.New("motor fault")
	}
	return f.inner.Relocate(h, floor)
}

type env struct {
	state  *fleet.State
	events *eventlog.MemoryStore
	rec    *eventlog.Recorder
	sim    *movement.Simulator
}

func newEnv(t *testing.T) env {
	t.Helper()
	ResetMetrics(prometheus.NewRegistry())
	st := fleet.New(store.NewMemoryCars(), store.NewMemoryRequests())
	events := eventlog.NewMemoryStore()
	rec := eventlog.NewRecorder(events, logger.NopLogger{})
	sim := movement.NewSimulator(st, rec, logger.NopLogger{}, movement.Config{})
	t.Cleanup(func() { _ = sim.Close(context.Background()) })
	return env{state: st, events: events, rec: rec, sim: sim}
}

func (e env) addCars(t *testing.T, floors ...int) {
	t.Helper()
	for _, f := range floors {
		_, err := e.state.AddCar(context.Background(), fleet.CarSpec{CurrentFloor: f})
		require.NoError(t, err)
	}
}

func (e env) update(t *testing.T, id int64, fn func(c *model.Car)) {
	t.Helper()
	require.NoError(t, e.state.Exclusive(context.Background(), id, func(h *fleet.Handle) error {
		return h.Update(fn)
	}))
}

func (e env) messages(t *testing.T, id int64) []string {
	t.Helper()
	evs, err := e.events.Query(context.Background(), eventlog.Query{ElevatorID: id})
	require.NoError(t, err)
	var out []string
	for _, ev := range evs {
		out = append(out, ev.Message)
	}
	return out
}

func TestRunCycleAssignsNearestCar(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.addCars(t, 0, 10)
	r, err := e.state.SubmitRequest(ctx, 9, 2)
	require.NoError(t, err)

	d := New(e.state, e.sim, Config{}, WithRecorder(e.rec))
	rep, err := d.RunCycle(ctx)
	require.NoError(t, err)
	require.Len(t, rep.Assigned, 1)
	assert.Equal(t, Assignment{RequestID: r.ID, ElevatorID: 2, Cost: 1}, rep.Assigned[0])

	got, err := e.state.Request(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RequestAssigned, got.Status)
	require.NotNil(t, got.AssignedElevatorID)
	assert.Equal(t, int64(2), *got.AssignedElevatorID)

	c, err := e.state.Car(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, c.CurrentFloor)
	assert.Equal(t, model.StatusIdle, c.Status)
	assert.Equal(t, model.DirectionStopped, c.Direction)
	assert.Equal(t, []string{"Assigned request ID: 1", "Moving to floor 9", "Moving to floor 2"}, e.messages(t, 2))
	assert.Empty(t, e.messages(t, 1))
	assert.Equal(t, 1.0, testutil.ToFloat64(assignmentsTotal.WithLabelValues("auto")))
}

func TestRunCycleUsesUpdatedPositions(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.addCars(t, 0, 5)
	_, err := e.state.SubmitRequest(ctx, 0, 10)
	require.NoError(t, err)
	_, err = e.state.SubmitRequest(ctx, 0, 3)
	require.NoError(t, err)

	rep, err := New(e.state, e.sim, Config{}).RunCycle(ctx)
	require.NoError(t, err)
	require.Len(t, rep.Assigned, 2)
	assert.Equal(t, int64(1), rep.Assigned[0].ElevatorID)
	assert.Equal(t, int64(2), rep.Assigned[1].ElevatorID)
}

func TestRunCycleLeavesRequestPendingWithoutEligibleCar(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.addCars(t, 0, 0, 0)
	e.update(t, 1, func(c *model.Car) { c.CurrentLoad = c.Capacity })
	e.update(t, 2, func(c *model.Car) { c.EcoMode = true })
	e.update(t, 3, (*model.Car).TakeOutOfService)
	r, err := e.state.SubmitRequest(ctx, 0, 4)
	require.NoError(t, err)

	rep, err := New(e.state, e.sim, Config{}).RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Unassigned)
	got, err := e.state.Request(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RequestPending, got.Status)
	assert.Nil(t, got.AssignedElevatorID)
}

func TestRunCycleAssignmentFailureKeepsPending(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.addCars(t, 0, 20)
	bad, err := e.state.SubmitRequest(ctx, 1, 3)
	require.NoError(t, err)
	good, err := e.state.SubmitRequest(ctx, 19, 15)
	require.NoError(t, err)

	d := New(e.state, flakyMover{inner: e.sim, failCar: 1}, Config{}, WithRecorder(e.rec))
	rep, err := d.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{bad.ID}, rep.Failed)
	require.Len(t, rep.Assigned, 1)
	assert.Equal(t, good.ID, rep.Assigned[0].RequestID)

	got, err := e.state.Request(ctx, bad.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RequestPending, got.Status)
	msgs := e.messages(t, 1)
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[1], "Failed to assign request ID: 1")
	assert.Contains(t, msgs[1], "motor fault")
	assert.Equal(t, 1.0, testutil.ToFloat64(assignmentFailure))
}

func TestRunCycleSkipsFaultyCarForRestOfCycle(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.addCars(t, 0, 20)
	first, err := e.state.SubmitRequest(ctx, 1, 3)
	require.NoError(t, err)
	second, err := e.state.SubmitRequest(ctx, 2, 4)
	require.NoError(t, err)

	d := New(e.state, flakyMover{inner: e.sim, failCar: 1}, Config{}, WithRecorder(e.rec))
	rep, err := d.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{first.ID}, rep.Failed)
	require.Len(t, rep.Assigned, 1)
	assert.Equal(t, second.ID, rep.Assigned[0].RequestID)
	assert.Equal(t, int64(2), rep.Assigned[0].ElevatorID)

	failures := 0
	for _, m := range e.messages(t, 1) {
		if strings.HasPrefix(m, "Failed to assign") {
			failures++
		}
	}
	assert.Equal(t, 1, failures)

	_, err = d.ManualAssign(ctx, first.ID, 1)
	assert.ErrorIs(t, err, ErrAssignment)
	assert.ErrorIs(t, err, ErrCarFault)
}

func TestRunCycleProactiveHotspot(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.addCars(t, 0, 7, 20, 1)
	e.update(t, 3, func(c *model.Car) { c.EcoMode = true })
	e.update(t, 4, func(c *model.Car) { c.HeadTowards(5) })

	d := New(e.state, e.sim, Config{}, WithPredictor(prediction.StaticPredictor{Floor: 8, Set: true}))
	rep, err := d.RunCycle(ctx)
	require.NoError(t, err)
	require.NotNil(t, rep.Hotspot)
	assert.Equal(t, 8, *rep.Hotspot)
	assert.Equal(t, []int64{1}, rep.Repositioned)

	cars, err := e.state.Cars(ctx)
	require.NoError(t, err)
	floors := []int{cars[0].CurrentFloor, cars[1].CurrentFloor, cars[2].CurrentFloor, cars[3].CurrentFloor}
	assert.Equal(t, []int{8, 7, 20, 1}, floors)
	assert.Equal(t, 1.0, testutil.ToFloat64(repositionsTotal.WithLabelValues("hotspot")))
}

func TestRunCycleZeroHotspotRadius(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.addCars(t, 7, 8)

	d := New(e.state, e.sim, Config{HotspotRadius: Radius(0)}, WithPredictor(prediction.StaticPredictor{Floor: 8, Set: true}))
	rep, err := d.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, rep.Repositioned)

	car, err := e.state.Car(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 8, car.CurrentFloor)
}

func TestConfigDefaultsOnlyUnsetRadius(t *testing.T) {
	cfg := Config{OptimizeRadius: Radius(0)}
	cfg.SetDefaults()
	assert.Equal(t, 1, *cfg.HotspotRadius)
	assert.Equal(t, 0, *cfg.OptimizeRadius)
}

type failingPredictor struct{}

func (failingPredictor) PredictHotspotFloor(context.Context, time.Time) (int, bool, error) {
	return 0, false, errors.New("history unavailable")
}

func TestRunCyclePredictorErrorStillAssigns(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.addCars(t, 0)
	_, err := e.state.SubmitRequest(ctx, 2, 3)
	require.NoError(t, err)
	rep, err := New(e.state, e.sim, Config{}, WithPredictor(failingPredictor{})).RunCycle(ctx)
	require.NoError(t, err)
	assert.Len(t, rep.Assigned, 1)
}

func TestManualAssign(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.addCars(t, 0, 3)
	r, err := e.state.SubmitRequest(ctx, 4, 6)
	require.NoError(t, err)
	d := New(e.state, e.sim, Config{}, WithRecorder(e.rec))

	before, err := e.state.Cars(ctx)
	require.NoError(t, err)
	_, err = d.ManualAssign(ctx, 99, 1)
	assert.ErrorIs(t, err, fleet.ErrNotFound)
	after, err := e.state.Cars(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Empty(t, e.messages(t, 0))

	_, err = d.ManualAssign(ctx, r.ID, 99)
	assert.ErrorIs(t, err, fleet.ErrNotFound)

	e.update(t, 2, (*model.Car).TakeOutOfService)
	_, err = d.ManualAssign(ctx, r.ID, 2)
	assert.ErrorIs(t, err, fleet.ErrCarUnavailable)
	pending, err := e.state.Request(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RequestPending, pending.Status)

	e.update(t, 1, func(c *model.Car) { c.EcoMode = true })
	got, err := d.ManualAssign(ctx, r.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, model.RequestAssigned, got.Status)
	assert.Equal(t, int64(1), *got.AssignedElevatorID)
	assert.Equal(t, []string{
		"Manually assigned request ID: 1",
		"Assigned request ID: 1",
		"Moving to floor 4",
		"Moving to floor 6",
	}, e.messages(t, 1))

	_, err = d.ManualAssign(ctx, r.ID, 1)
	assert.ErrorIs(t, err, ErrAssignment)
	assert.Equal(t, 1.0, testutil.ToFloat64(assignmentsTotal.WithLabelValues("manual")))
}

func TestOptimizeRoutes(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	d := New(e.state, e.sim, Config{}, WithRecorder(e.rec))

	rep, err := d.OptimizeRoutes(ctx)
	require.NoError(t, err)
	assert.Equal(t, "No pending requests to optimize.", rep.Summary)

	e.addCars(t, 0, 9, 1)
	for _, src := range []int{10, 10, 2, 10} {
		_, err := e.state.SubmitRequest(ctx, src, 0)
		require.NoError(t, err)
	}
	rep, err = d.OptimizeRoutes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, rep.BusiestFloor)
	assert.Equal(t, 3, rep.BatchSize)
	assert.Equal(t, []int64{1}, rep.Moved)
	assert.Equal(t, "Optimization complete. Identified busiest floor: 10 with 3 requests. Repositioned 1 idle elevators.", rep.Summary)
	assert.Equal(t, []string{
		"Moving to floor 10",
		"Traffic Optimization: Moved to hotspot floor 10 to serve 3 pending requests.",
	}, e.messages(t, 1))

	c, err := e.state.Car(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, c.CurrentFloor)
}

func TestOptimizeRoutesMovesOneCarPerBatch(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.addCars(t, 0, 0, 0)
	for i := 0; i < 15; i++ {
		_, err := e.state.SubmitRequest(ctx, 30, 0)
		require.NoError(t, err)
	}
	rep, err := New(e.state, e.sim, Config{}).OptimizeRoutes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, rep.Moved)
}

func TestBusiestSourceTie(t *testing.T) {
	floor, n := busiestSource([]model.Request{req(7, 0), req(3, 0), req(7, 1), req(3, 1)})
	assert.Equal(t, 3, floor)
	assert.Equal(t, 2, n)
}
