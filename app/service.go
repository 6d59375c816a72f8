// Package app wires the fleet engine: storage, transport, metrics and the
// periodic loops. Service exposes the engine's entry points to the CLI and
// to any transport layer built on top.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/elevfleet/app/plugins"
	"github.com/kilianp07/elevfleet/config"
	"github.com/kilianp07/elevfleet/core/dispatch"
	"github.com/kilianp07/elevfleet/core/energy"
	"github.com/kilianp07/elevfleet/core/eventlog"
	"github.com/kilianp07/elevfleet/core/fleet"
	"github.com/kilianp07/elevfleet/core/health"
	coremetrics "github.com/kilianp07/elevfleet/core/metrics"
	"github.com/kilianp07/elevfleet/core/model"
	coremon "github.com/kilianp07/elevfleet/core/monitoring"
	"github.com/kilianp07/elevfleet/core/movement"
	coremqtt "github.com/kilianp07/elevfleet/core/mqtt"
	"github.com/kilianp07/elevfleet/core/prediction"
	"github.com/kilianp07/elevfleet/core/scheduler"
	"github.com/kilianp07/elevfleet/infra/logger"
	"github.com/kilianp07/elevfleet/infra/metrics"
	"github.com/kilianp07/elevfleet/infra/monitoring"
	"github.com/kilianp07/elevfleet/infra/mqtt"
)

const (
	JobDispatch = "dispatch"
	JobHealth   = "health"
	JobEnergy   = "energy"

	closeTimeout = 10 * time.Second
	statusBuffer = 16
)

// Service orchestrates the fleet engine.
type Service struct {
	cfg *config.Config
	log logger.Logger

	State      *fleet.State
	storage    plugins.Storage
	events     eventlog.Store
	recorder   *eventlog.Recorder
	status     *fleet.BusBroadcaster
	transport  coremqtt.Transport
	sink       coremetrics.MetricsSink
	sim        *movement.Simulator
	consumer   *movement.Consumer
	dispatcher *dispatch.Dispatcher
	health     *health.Supervisor
	energy     *energy.Optimizer
	runner     *scheduler.Runner
	gatherer   prometheus.Gatherer
}

// Option customises a Service.
type Option func(*options)

type options struct {
	transport coremqtt.Transport
	now       func() time.Time
	predictor prediction.HotspotPredictor
	gatherer  prometheus.Gatherer
}

// WithTransport replaces the transport selected from the configuration.
func WithTransport(t coremqtt.Transport) Option {
	return func(o *options) { o.transport = t }
}

// WithClock overrides the time source of the fleet state.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithPredictor replaces the configured hotspot predictor.
func WithPredictor(p prediction.HotspotPredictor) Option {
	return func(o *options) { o.predictor = p }
}

// WithGatherer sets the registry served on the metrics endpoint.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(o *options) { o.gatherer = g }
}

// New creates a Service from the configuration. The fleet is seeded when the
// store is empty.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (_ *Service, err error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	cfg.SetDefaults()
	logg := logger.New("service")
	s := &Service{cfg: cfg, log: logg, gatherer: o.gatherer}
	defer func() {
		if err != nil {
			s.release()
		}
	}()

	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, err
	}
	coremon.Init(mon)

	if s.storage, err = plugins.NewStorage(cfg.Storage); err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	if s.events, err = plugins.NewLogStore(cfg.Logging); err != nil {
		return nil, fmt.Errorf("event log: %w", err)
	}
	s.recorder = eventlog.NewRecorder(s.events, logger.New("eventlog"))
	if s.sink, err = coremetrics.NewMetricsSink(cfg.Metrics.Sinks); err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}

	s.status = fleet.NewBusBroadcaster(statusBuffer)
	stateOpts := []fleet.Option{fleet.WithBroadcaster(s.status), fleet.WithLogger(logger.New("fleet"))}
	if o.now != nil {
		stateOpts = append(stateOpts, fleet.WithClock(o.now))
	}
	s.State = fleet.New(s.storage.Cars, s.storage.Requests, stateOpts...)
	if err := s.seed(ctx); err != nil {
		return nil, err
	}

	s.transport = o.transport
	if s.transport == nil {
		if s.transport, err = newTransport(cfg.MQTT); err != nil {
			return nil, fmt.Errorf("mqtt client: %w", err)
		}
	}

	s.sim = movement.NewSimulator(s.State, s.recorder, logger.New("movement"), cfg.Movement)
	s.consumer = movement.NewConsumer(s.sim, logger.New("movement-consumer"))
	predictor := o.predictor
	if predictor == nil {
		predictor = prediction.New(cfg.Prediction, s.State)
	}
	s.dispatcher = dispatch.New(s.State, s.sim, cfg.Dispatch,
		dispatch.WithPredictor(predictor),
		dispatch.WithRecorder(s.recorder),
		dispatch.WithLogger(logger.New("dispatch")),
		dispatch.WithMetrics(s.sink),
	)
	s.health = health.New(s.State, s.recorder, logger.New("health"), s.sink, cfg.Health)
	s.energy = energy.New(s.State, s.recorder, logger.New("energy"), s.sink, cfg.Energy)

	s.runner = scheduler.NewRunner(logger.New("scheduler"))
	jobs := []scheduler.Job{
		{Name: JobDispatch, Period: cfg.Dispatch.Period, Run: s.dispatchJob},
		{Name: JobHealth, Period: cfg.Health.Period, Run: s.healthJob},
		{Name: JobEnergy, Period: cfg.Energy.Period, Run: s.energyJob},
	}
	for _, j := range jobs {
		if err := s.runner.Add(j); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func newTransport(cfg mqtt.Config) (coremqtt.Transport, error) {
	if cfg.Broker == "" {
		return mqtt.NewMemoryTransport(), nil
	}
	return mqtt.NewPahoClient(cfg)
}

func (s *Service) seed(ctx context.Context) error {
	var seed fleet.Seed
	switch {
	case s.cfg.Fleet.SeedFile != "":
		var err error
		if seed, err = fleet.LoadSeed(s.cfg.Fleet.SeedFile); err != nil {
			return err
		}
	case s.cfg.Fleet.Cars > 0:
		for i := 0; i < s.cfg.Fleet.Cars; i++ {
			seed.Cars = append(seed.Cars, fleet.CarSpec{Capacity: s.cfg.Fleet.Capacity})
		}
	default:
		return nil
	}
	n, err := s.State.ApplySeed(ctx, seed)
	if err != nil {
		return fmt.Errorf("seed fleet: %w", err)
	}
	if n > 0 {
		s.log.Infof("seeded %d cars", n)
	}
	return nil
}

// Run subscribes to the transport, starts the periodic loops and blocks
// until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if err := s.transport.SubscribeCommands(s.consumer.Handle); err != nil {
		return fmt.Errorf("subscribe commands: %w", err)
	}
	if err := s.transport.SubscribeHeartbeats(func(ctx context.Context, hb model.Heartbeat) {
		if err := s.health.ReceiveHeartbeat(ctx, hb.ElevatorID); err != nil {
			s.log.Warnf("heartbeat car %d: %v", hb.ElevatorID, err)
		}
	}); err != nil {
		return fmt.Errorf("subscribe heartbeats: %w", err)
	}
	go mqtt.ForwardStatus(ctx, s.status.Subscribe(), s.transport, logger.New("status"))
	if addr := s.cfg.Metrics.Listen; addr != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, addr, s.gatherer, s.log); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	if err := s.runner.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return nil
}

// Close stops the loops, waits for in-flight moves and releases resources.
func (s *Service) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	var errs []error
	if s.runner != nil {
		errs = append(errs, s.runner.Stop(ctx))
	}
	if s.sim != nil {
		if err := s.sim.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("simulator: %w", err))
		}
	}
	errs = append(errs, s.release())
	coremon.Flush(2 * time.Second)
	return errors.Join(errs...)
}

func (s *Service) release() error {
	var errs []error
	if s.transport != nil {
		errs = append(errs, s.transport.Close())
	}
	if s.status != nil {
		s.status.Close()
	}
	if s.events != nil {
		errs = append(errs, s.events.Close())
	}
	if s.storage.Close != nil {
		errs = append(errs, s.storage.Close())
	}
	return errors.Join(errs...)
}

// Trigger runs one cycle of the named loop now.
func (s *Service) Trigger(ctx context.Context, job string) error {
	return s.runner.Trigger(ctx, job)
}

func (s *Service) dispatchJob(ctx context.Context) error {
	rep, err := s.RunDispatchCycle(ctx)
	if err != nil {
		return err
	}
	if len(rep.Assigned) > 0 || len(rep.Failed) > 0 || len(rep.Repositioned) > 0 {
		s.log.Debugw("dispatch cycle", map[string]any{
			"assigned":     len(rep.Assigned),
			"failed":       len(rep.Failed),
			"repositioned": len(rep.Repositioned),
			"unassigned":   rep.Unassigned,
		})
	}
	return nil
}

func (s *Service) healthJob(ctx context.Context) error {
	_, err := s.RunHealthCheck(ctx)
	return err
}

func (s *Service) energyJob(ctx context.Context) error {
	_, err := s.RunEnergyOptimizationCycle(ctx)
	return err
}
