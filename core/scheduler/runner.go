package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kilianp07/elevfleet/core/logger"
	"github.com/kilianp07/elevfleet/core/monitoring"
)

const tracerName = "github.com/kilianp07/elevfleet/core/scheduler"

var (
	// ErrStarted is returned when jobs are added to a running Runner.
	ErrStarted = errors.New("scheduler already started")
	// ErrUnknownJob is returned by Trigger for an unregistered job name.
	ErrUnknownJob = errors.New("unknown job")
)

// Runner owns a set of periodic jobs.
type Runner struct {
	log logger.Logger

	mu      sync.Mutex
	jobs    []*jobState
	byName  map[string]*jobState
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

type jobState struct {
	Job
	// running serializes ticks and triggers of the same job.
	running sync.Mutex
}

// NewRunner returns an empty Runner.
func NewRunner(log logger.Logger) *Runner {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Runner{log: log, byName: make(map[string]*jobState)}
}

// Add registers job. Jobs cannot be added once the runner is started.
func (r *Runner) Add(job Job) error {
	if err := job.validate(); err != nil {
		return fmt.Errorf("job %q: %w", job.Name, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return ErrStarted
	}
	if _, dup := r.byName[job.Name]; dup {
		return fmt.Errorf("job %q already registered", job.Name)
	}
	js := &jobState{Job: job}
	r.jobs = append(r.jobs, js)
	r.byName[job.Name] = js
	return nil
}

// Jobs returns the registered job names in registration order.
func (r *Runner) Jobs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.jobs))
	for _, j := range r.jobs {
		names = append(names, j.Name)
	}
	return names
}

// Start launches one goroutine per job. The loops stop when ctx is done or
// Stop is called.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return ErrStarted
	}
	r.started = true
	loopCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	for _, js := range r.jobs {
		r.wg.Add(1)
		go r.loop(loopCtx, js)
	}
	r.log.Infof("scheduler started with %d jobs", len(r.jobs))
	return nil
}

// Stop ends every loop and waits for in-flight cycles. It returns ctx.Err()
// if ctx expires first.
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Trigger runs one cycle of the named job now, waiting for a cycle already in
// progress to finish first.
func (r *Runner) Trigger(ctx context.Context, name string) error {
	r.mu.Lock()
	js, ok := r.byName[name]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return r.cycle(ctx, js)
}

func (r *Runner) loop(ctx context.Context, js *jobState) {
	defer r.wg.Done()
	defer monitoring.Recover("scheduler")

	ticker := time.NewTicker(js.Period)
	defer ticker.Stop()
	if js.Immediate {
		r.tick(ctx, js)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick(ctx, js)
		}
	}
}

func (r *Runner) tick(ctx context.Context, js *jobState) {
	if ctx.Err() != nil {
		return
	}
	if err := r.cycle(context.WithoutCancel(ctx), js); err != nil {
		r.log.Errorf("%s cycle: %v", js.Name, err)
	}
}

// cycle runs one iteration of js under its own timeout and a trace span.
// Errors and panics are counted and reported to monitoring.
func (r *Runner) cycle(ctx context.Context, js *jobState) (err error) {
	js.running.Lock()
	defer js.running.Unlock()

	ctx, cancel := context.WithTimeout(ctx, js.timeout())
	defer cancel()
	ctx, span := otel.Tracer(tracerName).Start(ctx, "scheduler.cycle",
		trace.WithAttributes(attribute.String("job", js.Name)))
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic in %s cycle: %v", js.Name, p)
		}
		cycleDuration.WithLabelValues(js.Name).Observe(time.Since(start).Seconds())
		if err != nil {
			cycleErrors.WithLabelValues(js.Name).Inc()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			monitoring.Capture("scheduler", js.Name, err)
		}
		span.End()
	}()
	return js.Run(ctx)
}
