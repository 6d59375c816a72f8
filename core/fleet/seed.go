package fleet

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Seed is the content of a fleet seed file.
type Seed struct {
	Cars []CarSpec `json:"cars" yaml:"cars"`
}

// LoadSeed reads a YAML or JSON seed file.
func LoadSeed(path string) (Seed, error) {
	var seed Seed
	data, err := os.ReadFile(path)
	if err != nil {
		return seed, fmt.Errorf("read seed: %w", err)
	}
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return seed, fmt.Errorf("parse seed %s: %w", path, err)
	}
	return seed, nil
}

// ApplySeed creates the seeded cars when the fleet is empty. It returns the
// number of cars created.
func (s *State) ApplySeed(ctx context.Context, seed Seed) (int, error) {
	existing, err := s.Cars(ctx)
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		return 0, nil
	}
	for i, spec := range seed.Cars {
		if _, err := s.AddCar(ctx, spec); err != nil {
			return i, err
		}
	}
	return len(seed.Cars), nil
}
