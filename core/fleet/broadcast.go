package fleet

import (
	"context"

	"github.com/kilianp07/elevfleet/core/model"
	"github.com/kilianp07/elevfleet/internal/eventbus"
)

// StatusBroadcaster receives the fleet status after every car persist.
// Implementations must not block.
type StatusBroadcaster interface {
	Broadcast(ctx context.Context, statuses []model.StatusSummary)
}

// NopBroadcaster discards status updates.
type NopBroadcaster struct{}

func (NopBroadcaster) Broadcast(context.Context, []model.StatusSummary) {}

// BusBroadcaster fans status lists out through an event bus.
type BusBroadcaster struct {
	Bus *eventbus.Bus[[]model.StatusSummary]
}

// NewBusBroadcaster returns a broadcaster over a fresh bus.
func NewBusBroadcaster(buffer int) *BusBroadcaster {
	return &BusBroadcaster{Bus: eventbus.New[[]model.StatusSummary](buffer)}
}

func (b *BusBroadcaster) Broadcast(_ context.Context, statuses []model.StatusSummary) {
	b.Bus.Publish(statuses)
}

// Subscribe returns a channel of status lists.
func (b *BusBroadcaster) Subscribe() <-chan []model.StatusSummary { return b.Bus.Subscribe() }

// Close closes every subscriber channel.
func (b *BusBroadcaster) Close() { b.Bus.Close() }
