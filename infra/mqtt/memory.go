package mqtt

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	coremqtt "github.com/kilianp07/elevfleet/core/mqtt"
	"github.com/kilianp07/elevfleet/core/model"
	"github.com/kilianp07/elevfleet/internal/eventbus"
)

const memoryQueueBuffer = 256

// MemoryTransport is an in-process coremqtt.Transport used when no broker is
// configured. Movement commands sit in a work queue until a consumer takes
// them; publishing blocks while the queue is full. Heartbeats fan out and a
// full subscriber drops them.
type MemoryTransport struct {
	commands   chan model.MovementCommand
	heartbeats *eventbus.Bus[model.Heartbeat]
	now        func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	closed   bool
	statuses []model.StatusSummary
}

var _ coremqtt.Transport = (*MemoryTransport)(nil)

// NewMemoryTransport returns an empty in-process transport.
func NewMemoryTransport() *MemoryTransport {
	ctx, cancel := context.WithCancel(context.Background())
	return &MemoryTransport{
		commands:   make(chan model.MovementCommand, memoryQueueBuffer),
		heartbeats: eventbus.New[model.Heartbeat](memoryQueueBuffer),
		now:        time.Now,
		ctx:        ctx,
		cancel:     cancel,
	}
}

func (m *MemoryTransport) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// PublishMove queues a movement command. It waits for room in the queue
// until ctx is done or the transport is closed.
func (m *MemoryTransport) PublishMove(ctx context.Context, elevatorID int64, floor int) (string, error) {
	if m.isClosed() {
		return "", coremqtt.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	cmd := model.MovementCommand{
		CommandID:   uuid.NewString(),
		ElevatorID:  elevatorID,
		TargetFloor: floor,
		IssuedAt:    m.now(),
	}
	select {
	case m.commands <- cmd:
		return cmd.CommandID, nil
	case <-ctx.Done():
		return "", ctx.Err()
	case <-m.ctx.Done():
		return "", coremqtt.ErrClosed
	}
}

// SubscribeCommands delivers queued commands to h on a dedicated goroutine,
// including those published before the call. Several subscribers share the
// queue and each command reaches one of them.
func (m *MemoryTransport) SubscribeCommands(h coremqtt.CommandHandler) error {
	if m.isClosed() {
		return coremqtt.ErrClosed
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		for {
			select {
			case <-m.ctx.Done():
				return
			case cmd := <-m.commands:
				h(m.ctx, cmd)
			}
		}
	}()
	return nil
}

// Queued returns the number of commands waiting for a consumer.
func (m *MemoryTransport) Queued() int { return len(m.commands) }

// PublishHeartbeat queues a heartbeat.
func (m *MemoryTransport) PublishHeartbeat(ctx context.Context, elevatorID int64) error {
	if m.isClosed() {
		return coremqtt.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.heartbeats.Publish(model.Heartbeat{ElevatorID: elevatorID, SentAt: m.now()})
	return nil
}

// SubscribeHeartbeats delivers heartbeats to h on a dedicated goroutine.
func (m *MemoryTransport) SubscribeHeartbeats(h coremqtt.HeartbeatHandler) error {
	if m.isClosed() {
		return coremqtt.ErrClosed
	}
	consume(m, m.heartbeats.Subscribe(), func(hb model.Heartbeat) { h(m.ctx, hb) })
	return nil
}

// PublishStatus keeps statuses as the retained fleet status.
func (m *MemoryTransport) PublishStatus(_ context.Context, statuses []model.StatusSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return coremqtt.ErrClosed
	}
	m.statuses = append([]model.StatusSummary(nil), statuses...)
	return nil
}

// LastStatus returns the most recent fleet status.
func (m *MemoryTransport) LastStatus() []model.StatusSummary {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.StatusSummary(nil), m.statuses...)
}

// Dropped counts heartbeats lost to full subscribers.
func (m *MemoryTransport) Dropped() uint64 {
	return m.heartbeats.Dropped()
}

// Close stops delivery and waits for handlers in progress.
func (m *MemoryTransport) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()
	m.cancel()
	m.heartbeats.Close()
	m.wg.Wait()
	return nil
}

func consume[T any](m *MemoryTransport, ch <-chan T, h func(T)) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		for v := range ch {
			h(v)
		}
	}()
}
