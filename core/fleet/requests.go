package fleet

import (
	"context"
	"fmt"

	"github.com/kilianp07/elevfleet/core/model"
	"github.com/kilianp07/elevfleet/core/repository"
)

// SubmitRequest stores a new pending request.
func (s *State) SubmitRequest(ctx context.Context, source, destination int) (model.Request, error) {
	r := model.NewRequest(source, destination, s.now())
	saved, err := s.requests.Save(ctx, r)
	if err != nil {
		return model.Request{}, fmt.Errorf("save request: %w", err)
	}
	return saved, nil
}

// SaveRequest persists r.
func (s *State) SaveRequest(ctx context.Context, r model.Request) (model.Request, error) {
	saved, err := s.requests.Save(ctx, r)
	if err != nil {
		return model.Request{}, fmt.Errorf("save request %d: %w", r.ID, err)
	}
	return saved, nil
}

// Request returns the request with the given id or ErrNotFound.
func (s *State) Request(ctx context.Context, id int64) (model.Request, error) {
	r, ok, err := s.requests.FindByID(ctx, id)
	if err != nil {
		return model.Request{}, fmt.Errorf("load request %d: %w", id, err)
	}
	if !ok {
		return model.Request{}, fmt.Errorf("request %d: %w", id, ErrNotFound)
	}
	return r, nil
}

// RequestsByStatus lists requests with the given status ordered by id.
func (s *State) RequestsByStatus(ctx context.Context, status model.RequestStatus) ([]model.Request, error) {
	rs, err := s.requests.FindByStatus(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("list %s requests: %w", status, err)
	}
	return rs, nil
}

// AllRequests lists every request ordered by id.
func (s *State) AllRequests(ctx context.Context) ([]model.Request, error) {
	rs, err := s.requests.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	return rs, nil
}

// RequestHistory pages through requests, newest first by default.
func (s *State) RequestHistory(ctx context.Context, p repository.PageRequest) (repository.Page[model.Request], error) {
	return s.requests.FindPage(ctx, p.Normalize("request_time"))
}

// ExclusiveRequest runs fn with the request's lock held and the request
// loaded. Callers needing a car lock as well must take it inside fn.
func (s *State) ExclusiveRequest(ctx context.Context, id int64, fn func(r model.Request) error) error {
	unlock, err := s.locks.lock(ctx, lockKey{kind: requestLock, id: id})
	if err != nil {
		return fmt.Errorf("lock request %d: %w", id, err)
	}
	defer unlock()
	r, err := s.Request(ctx, id)
	if err != nil {
		return err
	}
	return fn(r)
}
