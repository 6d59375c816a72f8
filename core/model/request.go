package model

import "time"

// RequestStatus is the lifecycle state of a transport request.
type RequestStatus string

const (
	RequestPending  RequestStatus = "PENDING"
	RequestAssigned RequestStatus = "ASSIGNED"
)

// Request is a rider asking to travel from SourceFloor to DestinationFloor.
type Request struct {
	ID                 int64         `json:"id"`
	SourceFloor        int           `json:"source_floor"`
	DestinationFloor   int           `json:"destination_floor"`
	RequestTime        time.Time     `json:"request_time"`
	Status             RequestStatus `json:"status"`
	AssignedElevatorID *int64        `json:"assigned_elevator_id,omitempty"`
}

// NewRequest returns a pending request created at now.
func NewRequest(source, destination int, now time.Time) Request {
	return Request{
		SourceFloor:      source,
		DestinationFloor: destination,
		RequestTime:      now,
		Status:           RequestPending,
	}
}

// GoingUp reports whether the rider travels upwards.
func (r Request) GoingUp() bool { return r.DestinationFloor > r.SourceFloor }

// GoingDown reports whether the rider travels downwards.
func (r Request) GoingDown() bool { return r.DestinationFloor < r.SourceFloor }

// Assign marks the request as served by car id.
func (r *Request) Assign(carID int64) {
	id := carID
	r.AssignedElevatorID = &id
	r.Status = RequestAssigned
}
