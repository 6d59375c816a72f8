package eventlog

import (
	"context"
	"fmt"
	"time"

	"github.com/kilianp07/elevfleet/core/logger"
	"github.com/kilianp07/elevfleet/core/model"
)

// Recorder appends formatted events for a car. Append failures are logged
// and never surface to the caller.
type Recorder struct {
	store Store
	log   logger.Logger
	now   func() time.Time
}

// NewRecorder wraps store. A nil store drops all events.
func NewRecorder(store Store, log logger.Logger) *Recorder {
	return &Recorder{store: store, log: log, now: time.Now}
}

// Record appends a message for car id.
func (r *Recorder) Record(ctx context.Context, id int64, format string, args ...any) {
	if r == nil || r.store == nil {
		return
	}
	ev := model.LogEvent{ElevatorID: id, Message: fmt.Sprintf(format, args...), Timestamp: r.now()}
	if err := r.store.Append(ctx, ev); err != nil && r.log != nil {
		r.log.Errorf("append event for car %d: %v", id, err)
	}
}

// Store returns the backing store.
func (r *Recorder) Store() Store { return r.store }
