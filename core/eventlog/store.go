// Package eventlog stores the append-only audit trail of car events. The
// engine only writes to it; reads serve external reporting.
package eventlog

import (
	"context"
	"sort"
	"time"

	"github.com/kilianp07/elevfleet/core/model"
	"github.com/kilianp07/elevfleet/core/repository"
)

// Query defines filters for retrieving events. Zero values match everything.
type Query struct {
	Start      time.Time
	End        time.Time
	ElevatorID int64
}

func (q Query) match(ev model.LogEvent) bool {
	if !q.Start.IsZero() && ev.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && ev.Timestamp.After(q.End) {
		return false
	}
	return q.ElevatorID == 0 || ev.ElevatorID == q.ElevatorID
}

// Store persists LogEvents and supports querying.
type Store interface {
	Append(ctx context.Context, ev model.LogEvent) error
	Query(ctx context.Context, q Query) ([]model.LogEvent, error)
	Close() error
}

// Page returns one page of the events in s sorted by id or timestamp.
func Page(ctx context.Context, s Store, p repository.PageRequest) (repository.Page[model.LogEvent], error) {
	all, err := s.Query(ctx, Query{})
	if err != nil {
		return repository.Page[model.LogEvent]{}, err
	}
	p = p.Normalize("id")
	less := func(a, b model.LogEvent) bool { return a.ID < b.ID }
	if p.SortField == "timestamp" {
		less = func(a, b model.LogEvent) bool { return a.Timestamp.Before(b.Timestamp) }
	}
	sort.SliceStable(all, func(i, j int) bool {
		if p.SortDir == repository.Asc {
			return less(all[i], all[j])
		}
		return less(all[j], all[i])
	})
	res := repository.Page[model.LogEvent]{Total: len(all), Page: p.Page, Size: p.Size, Items: []model.LogEvent{}}
	start := p.Offset()
	if start >= len(all) {
		return res, nil
	}
	end := start + p.Size
	if end > len(all) {
		end = len(all)
	}
	res.Items = append(res.Items, all[start:end]...)
	return res, nil
}
