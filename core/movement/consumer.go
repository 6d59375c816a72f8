package movement

import (
	"context"
	"errors"
	"sync"

	"github.com/kilianp07/elevfleet/core/fleet"
	"github.com/kilianp07/elevfleet/core/logger"
	"github.com/kilianp07/elevfleet/core/model"
)

const seenCapacity = 1024

// Starter schedules a stepwise move.
type Starter interface {
	Simulate(ctx context.Context, id int64, floor int) error
}

// Consumer turns queued movement commands into simulations. Redelivered
// command ids are ignored and commands for unknown cars are dropped.
type Consumer struct {
	sim Starter
	log logger.Logger

	mu   sync.Mutex
	seen map[string]struct{}
	ring []string
	next int
}

// NewConsumer returns a Consumer feeding sim.
func NewConsumer(sim Starter, log logger.Logger) *Consumer {
	return &Consumer{sim: sim, log: log, seen: map[string]struct{}{}, ring: make([]string, seenCapacity)}
}

// Handle processes one command. It never returns an error so queue
// transports can acknowledge unconditionally.
func (c *Consumer) Handle(ctx context.Context, cmd model.MovementCommand) {
	if cmd.CommandID != "" && !c.remember(cmd.CommandID) {
		c.log.Debugf("duplicate movement command %s ignored", cmd.CommandID)
		return
	}
	err := c.sim.Simulate(ctx, cmd.ElevatorID, cmd.TargetFloor)
	switch {
	case err == nil:
		c.log.Debugw("movement command accepted", map[string]any{
			"command_id":   cmd.CommandID,
			"elevator_id":  cmd.ElevatorID,
			"target_floor": cmd.TargetFloor,
		})
	case errors.Is(err, fleet.ErrNotFound):
		c.log.Warnf("movement command %s for unknown car %d dropped", cmd.CommandID, cmd.ElevatorID)
	case errors.Is(err, ErrStopped):
		c.log.Warnf("movement command %s dropped: simulator stopped", cmd.CommandID)
	default:
		c.log.Errorf("movement command %s: %v", cmd.CommandID, err)
	}
}

func (c *Consumer) remember(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, dup := c.seen[id]; dup {
		return false
	}
	if old := c.ring[c.next]; old != "" {
		delete(c.seen, old)
	}
	c.ring[c.next] = id
	c.next = (c.next + 1) % len(c.ring)
	c.seen[id] = struct{}{}
	return true
}
