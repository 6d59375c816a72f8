package model

import (
	"fmt"
	"time"
)

// CarStatus is the motion/service state of an elevator car.
type CarStatus string

const (
	StatusIdle         CarStatus = "IDLE"
	StatusMovingUp     CarStatus = "MOVING_UP"
	StatusMovingDown   CarStatus = "MOVING_DOWN"
	StatusOutOfService CarStatus = "OUT_OF_SERVICE"
)

// Direction is the travel direction of a car.
type Direction string

const (
	DirectionUp      Direction = "UP"
	DirectionDown    Direction = "DOWN"
	DirectionStopped Direction = "STOPPED"
)

// DefaultCapacity is the rider capacity given to cars created without one.
const DefaultCapacity = 10

// Car represents one elevator unit of the fleet.
type Car struct {
	ID            int64     `json:"id" yaml:"id"`
	CurrentFloor  int       `json:"current_floor" yaml:"current_floor"`
	Status        CarStatus `json:"status" yaml:"status"`
	Direction     Direction `json:"direction" yaml:"direction"`
	Capacity      int       `json:"capacity" yaml:"capacity"`
	CurrentLoad   int       `json:"current_load" yaml:"current_load"`
	Operational   bool      `json:"operational" yaml:"operational"`
	EcoMode       bool      `json:"eco_mode" yaml:"eco_mode"`
	LastHeartbeat time.Time `json:"last_heartbeat" yaml:"-"`
}

// NewCar returns an idle, operational car parked at floor with the given
// capacity. A non-positive capacity falls back to DefaultCapacity.
func NewCar(floor, capacity int, now time.Time) Car {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return Car{
		CurrentFloor:  floor,
		Status:        StatusIdle,
		Direction:     DirectionStopped,
		Capacity:      capacity,
		Operational:   true,
		LastHeartbeat: now,
	}
}

// Validate checks the structural invariants of the car.
func (c Car) Validate() error {
	if c.Capacity <= 0 {
		return fmt.Errorf("car %d: capacity must be positive", c.ID)
	}
	if c.CurrentLoad < 0 || c.CurrentLoad > c.Capacity {
		return fmt.Errorf("car %d: load %d outside [0,%d]", c.ID, c.CurrentLoad, c.Capacity)
	}
	if (c.Status == StatusOutOfService) == c.Operational {
		return fmt.Errorf("car %d: status %s inconsistent with operational=%t", c.ID, c.Status, c.Operational)
	}
	if c.Status == StatusIdle && c.Direction != DirectionStopped {
		return fmt.Errorf("car %d: idle car must be stopped", c.ID)
	}
	return nil
}

// Full reports whether no rider can board.
func (c Car) Full() bool { return c.CurrentLoad >= c.Capacity }

// Idle reports whether the car is operational and not moving.
func (c Car) Idle() bool { return c.Operational && c.Status == StatusIdle }

// Dispatchable reports whether the car may be selected for new work.
func (c Car) Dispatchable() bool {
	return c.Operational && !c.EcoMode && !c.Full()
}

// HeadTowards sets status and direction for travel from the current floor to
// target. A car already at target becomes idle.
func (c *Car) HeadTowards(target int) {
	switch {
	case target > c.CurrentFloor:
		c.Status, c.Direction = StatusMovingUp, DirectionUp
	case target < c.CurrentFloor:
		c.Status, c.Direction = StatusMovingDown, DirectionDown
	default:
		c.Stop()
	}
}

// Stop parks the car in the idle state.
func (c *Car) Stop() {
	c.Status, c.Direction = StatusIdle, DirectionStopped
}

// TakeOutOfService marks the car as failed.
func (c *Car) TakeOutOfService() {
	c.Operational = false
	c.Status = StatusOutOfService
}

// Restore brings a failed car back online as idle.
func (c *Car) Restore() {
	c.Operational = true
	c.Stop()
}

// Summary returns the broadcast view of the car.
func (c Car) Summary() StatusSummary {
	return StatusSummary{
		ID:           c.ID,
		CurrentFloor: c.CurrentFloor,
		Status:       c.Status,
		Direction:    c.Direction,
		Operational:  c.Operational,
	}
}

// StatusSummary is the subset of car state pushed to status subscribers.
type StatusSummary struct {
	ID           int64     `json:"id"`
	CurrentFloor int       `json:"current_floor"`
	Status       CarStatus `json:"status"`
	Direction    Direction `json:"direction"`
	Operational  bool      `json:"operational"`
}
