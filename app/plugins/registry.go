// Package plugins maps the backend names found in the configuration to
// constructors for the event log and the car/request repositories.
package plugins

import (
	"github.com/kilianp07/elevfleet/core/eventlog"
	"github.com/kilianp07/elevfleet/core/factory"
	"github.com/kilianp07/elevfleet/core/repository"
)

// Storage bundles the repositories of one backend.
type Storage struct {
	Cars     repository.CarRepository
	Requests repository.RequestRepository
	// Close releases the backend. It may be nil.
	Close func() error
}

var (
	LogStores = factory.NewRegistry[eventlog.Store]()
	Storages  = factory.NewRegistry[Storage]()
)

func RegisterLogStore(name string, f factory.Factory[eventlog.Store]) error {
	return LogStores.Register(name, f)
}

func RegisterStorage(name string, f factory.Factory[Storage]) error {
	return Storages.Register(name, f)
}
