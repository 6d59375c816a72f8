package dispatch

import (
	"math"

	"github.com/kilianp07/elevfleet/core/model"
)

const (
	passedPenalty    = 20
	directionPenalty = 10
	loadPenaltyScale = 10
)

// Eligible reports whether c may take a new request.
func Eligible(c model.Car) bool { return c.Dispatchable() }

// Cost scores how well car c fits request r. Lower is better.
func Cost(c model.Car, r model.Request) int {
	cost := abs(c.CurrentFloor - r.SourceFloor)
	if c.Capacity > 0 {
		cost += int(math.Round(float64(c.CurrentLoad) / float64(c.Capacity) * loadPenaltyScale))
	}
	switch c.Status {
	case model.StatusMovingUp:
		if r.SourceFloor < c.CurrentFloor {
			cost += passedPenalty
		} else if r.GoingDown() {
			cost += directionPenalty
		}
	case model.StatusMovingDown:
		if r.SourceFloor > c.CurrentFloor {
			cost += passedPenalty
		} else if r.GoingUp() {
			cost += directionPenalty
		}
	}
	return cost
}

// Best returns the index of the eligible car with the lowest cost, or -1.
// Cars are expected in ascending id order, so equal costs resolve to the
// lowest id.
func Best(cars []model.Car, r model.Request) (idx, cost int) {
	idx = -1
	for i, c := range cars {
		if !Eligible(c) {
			continue
		}
		if k := Cost(c, r); idx < 0 || k < cost {
			idx, cost = i, k
		}
	}
	return idx, cost
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
