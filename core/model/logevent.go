package model

import "time"

// LogEvent is one entry of the append-only car audit trail.
type LogEvent struct {
	ID         int64     `json:"id"`
	ElevatorID int64     `json:"elevator_id"`
	Message    string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
}

// MovementCommand asks the simulator to drive a car to TargetFloor.
type MovementCommand struct {
	CommandID   string    `json:"command_id"`
	ElevatorID  int64     `json:"elevator_id"`
	TargetFloor int       `json:"target_floor"`
	IssuedAt    time.Time `json:"issued_at"`
}

// Heartbeat is a liveness signal sent by a car.
type Heartbeat struct {
	ElevatorID int64     `json:"elevator_id"`
	SentAt     time.Time `json:"sent_at"`
}
