// Package repository defines the persistence ports used by the fleet engine.
// Implementations live in infra/store and must be safe for concurrent use.
package repository

import (
	"context"
	"strings"

	"github.com/kilianp07/elevfleet/core/model"
)

// SortDir is the ordering of a paginated query.
type SortDir string

const (
	Asc  SortDir = "asc"
	Desc SortDir = "desc"
)

// ParseSortDir maps free text to a SortDir, defaulting to Desc.
func ParseSortDir(s string) SortDir {
	if strings.EqualFold(s, string(Asc)) {
		return Asc
	}
	return Desc
}

// PageRequest selects one page of a collection.
type PageRequest struct {
	Page      int
	Size      int
	SortField string
	SortDir   SortDir
}

// Normalize clamps the page request to sane values.
func (p PageRequest) Normalize(defaultField string) PageRequest {
	if p.Page < 0 {
		p.Page = 0
	}
	if p.Size <= 0 {
		p.Size = 10
	}
	if p.SortField == "" {
		p.SortField = defaultField
	}
	if p.SortDir != Asc {
		p.SortDir = Desc
	}
	return p
}

// Offset returns the index of the first element of the page.
func (p PageRequest) Offset() int { return p.Page * p.Size }

// Page is one slice of a sorted collection.
type Page[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
	Page  int `json:"page"`
	Size  int `json:"size"`
}

// CarRepository persists elevator cars. FindAll is ordered by id.
type CarRepository interface {
	FindAll(ctx context.Context) ([]model.Car, error)
	FindByID(ctx context.Context, id int64) (model.Car, bool, error)
	Save(ctx context.Context, c model.Car) (model.Car, error)
	Delete(ctx context.Context, id int64) error
	FindPage(ctx context.Context, p PageRequest) (Page[model.Car], error)
}

// RequestRepository persists transport requests. FindAll and FindByStatus
// are ordered by id.
type RequestRepository interface {
	FindAll(ctx context.Context) ([]model.Request, error)
	FindByID(ctx context.Context, id int64) (model.Request, bool, error)
	Save(ctx context.Context, r model.Request) (model.Request, error)
	Delete(ctx context.Context, id int64) error
	FindByStatus(ctx context.Context, status model.RequestStatus) ([]model.Request, error)
	FindPage(ctx context.Context, p PageRequest) (Page[model.Request], error)
}
