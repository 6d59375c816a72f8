package eventlog

import (
	"context"
	"sync"

	"github.com/kilianp07/elevfleet/core/model"
)

// MemoryStore keeps events in a slice.
type MemoryStore struct {
	mu     sync.RWMutex
	events []model.LogEvent
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (s *MemoryStore) Append(ctx context.Context, ev model.LogEvent) error {
	s.mu.Lock()
	ev.ID = int64(len(s.events) + 1)
	s.events = append(s.events, ev)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Query(ctx context.Context, q Query) ([]model.LogEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := []model.LogEvent{}
	for _, ev := range s.events {
		if q.match(ev) {
			res = append(res, ev)
		}
	}
	return res, nil
}

func (s *MemoryStore) Close() error { return nil }
