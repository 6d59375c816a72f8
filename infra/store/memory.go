package store

import (
	"context"
	"sort"
	"sync"

	"github.com/kilianp07/elevfleet/core/model"
	"github.com/kilianp07/elevfleet/core/repository"
)

// MemoryCars keeps cars in a map guarded by a RWMutex.
type MemoryCars struct {
	mu   sync.RWMutex
	next int64
	data map[int64]model.Car
}

// NewMemoryCars returns an empty in-memory car repository.
func NewMemoryCars() *MemoryCars {
	return &MemoryCars{data: map[int64]model.Car{}}
}

func (s *MemoryCars) FindAll(ctx context.Context) ([]model.Car, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]model.Car, 0, len(s.data))
	for _, c := range s.data {
		res = append(res, c)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

func (s *MemoryCars) FindByID(ctx context.Context, id int64) (model.Car, bool, error) {
	s.mu.RLock()
	c, ok := s.data[id]
	s.mu.RUnlock()
	return c, ok, nil
}

func (s *MemoryCars) Save(ctx context.Context, c model.Car) (model.Car, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == 0 {
		s.next++
		c.ID = s.next
	} else if c.ID > s.next {
		s.next = c.ID
	}
	s.data[c.ID] = c
	return c, nil
}

func (s *MemoryCars) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	delete(s.data, id)
	s.mu.Unlock()
	return nil
}

func (s *MemoryCars) FindPage(ctx context.Context, p repository.PageRequest) (repository.Page[model.Car], error) {
	all, _ := s.FindAll(ctx)
	p = p.Normalize("id")
	less := carLess(p.SortField)
	sort.SliceStable(all, func(i, j int) bool {
		if p.SortDir == repository.Asc {
			return less(all[i], all[j])
		}
		return less(all[j], all[i])
	})
	return paginate(all, p), nil
}

// MemoryRequests keeps requests in a map guarded by a RWMutex.
type MemoryRequests struct {
	mu   sync.RWMutex
	next int64
	data map[int64]model.Request
}

// NewMemoryRequests returns an empty in-memory request repository.
func NewMemoryRequests() *MemoryRequests {
	return &MemoryRequests{data: map[int64]model.Request{}}
}

func (s *MemoryRequests) FindAll(ctx context.Context) ([]model.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]model.Request, 0, len(s.data))
	for _, r := range s.data {
		res = append(res, r)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

func (s *MemoryRequests) FindByID(ctx context.Context, id int64) (model.Request, bool, error) {
	s.mu.RLock()
	r, ok := s.data[id]
	s.mu.RUnlock()
	return r, ok, nil
}

func (s *MemoryRequests) Save(ctx context.Context, r model.Request) (model.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == 0 {
		s.next++
		r.ID = s.next
	} else if r.ID > s.next {
		s.next = r.ID
	}
	s.data[r.ID] = r
	return r, nil
}

func (s *MemoryRequests) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	delete(s.data, id)
	s.mu.Unlock()
	return nil
}

func (s *MemoryRequests) FindByStatus(ctx context.Context, status model.RequestStatus) ([]model.Request, error) {
	all, _ := s.FindAll(ctx)
	res := all[:0]
	for _, r := range all {
		if r.Status == status {
			res = append(res, r)
		}
	}
	return res, nil
}

func (s *MemoryRequests) FindPage(ctx context.Context, p repository.PageRequest) (repository.Page[model.Request], error) {
	all, _ := s.FindAll(ctx)
	p = p.Normalize("request_time")
	less := requestLess(p.SortField)
	sort.SliceStable(all, func(i, j int) bool {
		if p.SortDir == repository.Asc {
			return less(all[i], all[j])
		}
		return less(all[j], all[i])
	})
	return paginate(all, p), nil
}

func carLess(field string) func(a, b model.Car) bool {
	switch field {
	case "current_floor":
		return func(a, b model.Car) bool { return a.CurrentFloor < b.CurrentFloor }
	case "last_heartbeat":
		return func(a, b model.Car) bool { return a.LastHeartbeat.Before(b.LastHeartbeat) }
	default:
		return func(a, b model.Car) bool { return a.ID < b.ID }
	}
}

func requestLess(field string) func(a, b model.Request) bool {
	switch field {
	case "request_time":
		return func(a, b model.Request) bool { return a.RequestTime.Before(b.RequestTime) }
	case "source_floor":
		return func(a, b model.Request) bool { return a.SourceFloor < b.SourceFloor }
	default:
		return func(a, b model.Request) bool { return a.ID < b.ID }
	}
}

func paginate[T any](all []T, p repository.PageRequest) repository.Page[T] {
	page := repository.Page[T]{Total: len(all), Page: p.Page, Size: p.Size}
	start := p.Offset()
	if start >= len(all) {
		page.Items = []T{}
		return page
	}
	end := start + p.Size
	if end > len(all) {
		end = len(all)
	}
	page.Items = append([]T(nil), all[start:end]...)
	return page
}
