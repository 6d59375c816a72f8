package mqtt

import (
	"context"

	"github.com/kilianp07/elevfleet/core/logger"
	coremqtt "github.com/kilianp07/elevfleet/core/mqtt"
	"github.com/kilianp07/elevfleet/core/model"
)

// ForwardStatus publishes every status list read from updates until ctx is
// done or updates is closed. Only the newest pending list is sent.
func ForwardStatus(ctx context.Context, updates <-chan []model.StatusSummary, pub coremqtt.StatusPublisher, log logger.Logger) {
	if log == nil {
		log = logger.NopLogger{}
	}
	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-updates:
			if !ok {
				return
			}
			st = latest(st, updates)
			if err := pub.PublishStatus(ctx, st); err != nil {
				log.Warnf("publish fleet status: %v", err)
			}
		}
	}
}

func latest(st []model.StatusSummary, updates <-chan []model.StatusSummary) []model.StatusSummary {
	for {
		select {
		case next, ok := <-updates:
			if !ok {
				return st
			}
			st = next
		default:
			return st
		}
	}
}
