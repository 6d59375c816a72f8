package app

import (
	"context"

	"github.com/kilianp07/elevfleet/core/dispatch"
	"github.com/kilianp07/elevfleet/core/energy"
	"github.com/kilianp07/elevfleet/core/eventlog"
	"github.com/kilianp07/elevfleet/core/fleet"
	"github.com/kilianp07/elevfleet/core/health"
	"github.com/kilianp07/elevfleet/core/model"
	"github.com/kilianp07/elevfleet/core/repository"
)

// RunDispatchCycle runs one proactive and reactive dispatch pass.
func (s *Service) RunDispatchCycle(ctx context.Context) (dispatch.CycleReport, error) {
	return s.dispatcher.RunCycle(ctx)
}

// RunHealthCheck runs one watchdog pass.
func (s *Service) RunHealthCheck(ctx context.Context) (health.CheckReport, error) {
	return s.health.RunCheck(ctx)
}

// RunEnergyOptimizationCycle runs one eco mode pass.
func (s *Service) RunEnergyOptimizationCycle(ctx context.Context) (energy.CycleReport, error) {
	return s.energy.RunCycle(ctx)
}

// MoveElevator moves car id to floor immediately and returns the car.
func (s *Service) MoveElevator(ctx context.Context, id int64, floor int) (model.Car, error) {
	car, _, err := s.sim.Teleport(ctx, id, floor)
	return car, err
}

// SimulateMovement queues a stepwise move of car id to floor and returns the
// command id. The move runs once the command is consumed.
func (s *Service) SimulateMovement(ctx context.Context, id int64, floor int) (string, error) {
	return s.transport.PublishMove(ctx, id, floor)
}

// ReportFault takes car id out of service.
func (s *Service) ReportFault(ctx context.Context, id int64) (model.Car, error) {
	return s.health.ReportFault(ctx, id)
}

// RepairElevator brings car id back into service.
func (s *Service) RepairElevator(ctx context.Context, id int64) (model.Car, error) {
	return s.health.Repair(ctx, id)
}

// ReceiveHeartbeat records a heartbeat of car id. Unknown ids are ignored.
func (s *Service) ReceiveHeartbeat(ctx context.Context, id int64) error {
	return s.health.ReceiveHeartbeat(ctx, id)
}

// ManualAssign binds a pending request to a chosen car.
func (s *Service) ManualAssign(ctx context.Context, requestID, carID int64) (model.Request, error) {
	return s.dispatcher.ManualAssign(ctx, requestID, carID)
}

// OptimizeRoutes moves idle cars towards the floor with most waiting riders.
func (s *Service) OptimizeRoutes(ctx context.Context) (dispatch.OptimizeReport, error) {
	return s.dispatcher.OptimizeRoutes(ctx)
}

// SubmitRequest stores a new pending transport request.
func (s *Service) SubmitRequest(ctx context.Context, source, destination int) (model.Request, error) {
	return s.State.SubmitRequest(ctx, source, destination)
}

// AddCar creates a car.
func (s *Service) AddCar(ctx context.Context, spec fleet.CarSpec) (model.Car, error) {
	return s.State.AddCar(ctx, spec)
}

// Cars lists the fleet.
func (s *Service) Cars(ctx context.Context) ([]model.Car, error) {
	return s.State.Cars(ctx)
}

// RequestHistory returns one page of requests.
func (s *Service) RequestHistory(ctx context.Context, p repository.PageRequest) (repository.Page[model.Request], error) {
	return s.State.RequestHistory(ctx, p)
}

// Events returns the audit trail matching q.
func (s *Service) Events(ctx context.Context, q eventlog.Query) ([]model.LogEvent, error) {
	return s.events.Query(ctx, q)
}
