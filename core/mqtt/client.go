// Package mqtt defines the message transport ports of the fleet engine:
// the movement command queue, heartbeat ingestion and status broadcast.
package mqtt

import (
	"context"

	"github.com/kilianp07/elevfleet/core/model"
)

// CommandHandler consumes one movement command.
type CommandHandler func(ctx context.Context, cmd model.MovementCommand)

// HeartbeatHandler consumes one heartbeat.
type HeartbeatHandler func(ctx context.Context, hb model.Heartbeat)

// CommandPublisher enqueues movement commands. Publishing returns once the
// command is handed to the transport, not once it is executed.
type CommandPublisher interface {
	PublishMove(ctx context.Context, elevatorID int64, floor int) (commandID string, err error)
}

// CommandSubscriber delivers queued movement commands to h.
type CommandSubscriber interface {
	SubscribeCommands(h CommandHandler) error
}

// HeartbeatPublisher sends a heartbeat on behalf of a car.
type HeartbeatPublisher interface {
	PublishHeartbeat(ctx context.Context, elevatorID int64) error
}

// HeartbeatSubscriber delivers received heartbeats to h.
type HeartbeatSubscriber interface {
	SubscribeHeartbeats(h HeartbeatHandler) error
}

// StatusPublisher broadcasts the fleet status.
type StatusPublisher interface {
	PublishStatus(ctx context.Context, statuses []model.StatusSummary) error
}

// Transport bundles every port.
type Transport interface {
	CommandPublisher
	CommandSubscriber
	HeartbeatPublisher
	HeartbeatSubscriber
	StatusPublisher
	Close() error
}
