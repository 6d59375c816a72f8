package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/kilianp07/elevfleet/infra/logger"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return rec
}

func TestAddValidates(t *testing.T) {
	r := NewRunner(logger.NopLogger{})
	noop := func(context.Context) error { return nil }
	assert.Error(t, r.Add(Job{Period: time.Second, Run: noop}))
	assert.Error(t, r.Add(Job{Name: "a", Run: noop}))
	assert.Error(t, r.Add(Job{Name: "a", Period: time.Second}))
	require.NoError(t, r.Add(Job{Name: "a", Period: time.Second, Run: noop}))
	assert.Error(t, r.Add(Job{Name: "a", Period: time.Second, Run: noop}))
	assert.Equal(t, []string{"a"}, r.Jobs())
}

func TestJobsRunIndependently(t *testing.T) {
	ResetMetrics(prometheus.NewRegistry())
	var fast, slow atomic.Int32
	r := NewRunner(logger.NopLogger{})
	require.NoError(t, r.Add(Job{Name: "fast", Period: 5 * time.Millisecond, Run: func(context.Context) error {
		fast.Add(1)
		return nil
	}}))
	require.NoError(t, r.Add(Job{Name: "slow", Period: 5 * time.Millisecond, Timeout: time.Second, Run: func(ctx context.Context) error {
		slow.Add(1)
		time.Sleep(100 * time.Millisecond)
		return nil
	}}))
	require.NoError(t, r.Start(context.Background()))
	assert.ErrorIs(t, r.Start(context.Background()), ErrStarted)
	assert.ErrorIs(t, r.Add(Job{Name: "late", Period: time.Second, Run: func(context.Context) error { return nil }}), ErrStarted)

	require.Eventually(t, func() bool { return fast.Load() >= 5 }, time.Second, time.Millisecond)
	require.NoError(t, r.Stop(context.Background()))
	assert.GreaterOrEqual(t, slow.Load(), int32(1))
	assert.Equal(t, 2, testutil.CollectAndCount(cycleDuration))
}

func TestStopDrainsInFlightCycle(t *testing.T) {
	ResetMetrics(prometheus.NewRegistry())
	started := make(chan struct{})
	var finished atomic.Bool
	var cycleErr atomic.Value
	r := NewRunner(logger.NopLogger{})
	require.NoError(t, r.Add(Job{Name: "dispatch", Period: time.Hour, Immediate: true, Run: func(ctx context.Context) error {
		close(started)
		time.Sleep(50 * time.Millisecond)
		if err := ctx.Err(); err != nil {
			cycleErr.Store(err)
		}
		finished.Store(true)
		return nil
	}}))
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, r.Start(ctx))
	<-started
	cancel()
	require.NoError(t, r.Stop(context.Background()))
	assert.True(t, finished.Load())
	assert.Nil(t, cycleErr.Load())
}

func TestStopHonoursDeadline(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	r := NewRunner(logger.NopLogger{})
	require.NoError(t, r.Add(Job{Name: "stuck", Period: time.Hour, Timeout: time.Minute, Immediate: true, Run: func(context.Context) error {
		close(started)
		<-release
		return nil
	}}))
	require.NoError(t, r.Start(context.Background()))
	<-started
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, r.Stop(ctx), context.DeadlineExceeded)
	close(release)
	require.NoError(t, r.Stop(context.Background()))
}

func TestTriggerRecordsErrorsAndSpans(t *testing.T) {
	ResetMetrics(prometheus.NewRegistry())
	spans := recordSpans(t)
	boom := errors.New("boom")
	r := NewRunner(logger.NopLogger{})
	require.NoError(t, r.Add(Job{Name: "health", Period: time.Hour, Run: func(context.Context) error { return boom }}))

	assert.ErrorIs(t, r.Trigger(context.Background(), "health"), boom)
	assert.ErrorIs(t, r.Trigger(context.Background(), "nope"), ErrUnknownJob)
	assert.Equal(t, 1.0, testutil.ToFloat64(cycleErrors.WithLabelValues("health")))

	ended := spans.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "scheduler.cycle", ended[0].Name())
	assert.Equal(t, codes.Error, ended[0].Status().Code)
}

func TestPanicBecomesError(t *testing.T) {
	ResetMetrics(prometheus.NewRegistry())
	r := NewRunner(logger.NopLogger{})
	require.NoError(t, r.Add(Job{Name: "energy", Period: time.Hour, Run: func(context.Context) error {
		panic("bad cycle")
	}}))
	err := r.Trigger(context.Background(), "energy")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad cycle")
	assert.Equal(t, 1.0, testutil.ToFloat64(cycleErrors.WithLabelValues("energy")))
}

func TestCycleTimeout(t *testing.T) {
	ResetMetrics(prometheus.NewRegistry())
	r := NewRunner(logger.NopLogger{})
	require.NoError(t, r.Add(Job{Name: "slow", Period: time.Hour, Timeout: 10 * time.Millisecond, Run: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}}))
	assert.ErrorIs(t, r.Trigger(context.Background(), "slow"), context.DeadlineExceeded)
}
