package plugins

import (
	"github.com/kilianp07/elevfleet/config"
	"github.com/kilianp07/elevfleet/core/eventlog"
	"github.com/kilianp07/elevfleet/core/factory"
	"github.com/kilianp07/elevfleet/infra/store"
)

func init() {
	_ = RegisterLogStore(config.LogBackendMemory, func(map[string]any) (eventlog.Store, error) {
		return eventlog.NewMemoryStore(), nil
	})
	_ = RegisterLogStore(config.LogBackendJSONL, func(conf map[string]any) (eventlog.Store, error) {
		var lc config.LoggingConfig
		if err := factory.Decode(conf, &lc); err != nil {
			return nil, err
		}
		return eventlog.NewRotatingJSONLStore(lc.Path, lc.MaxSizeMB, lc.MaxBackups, lc.MaxAgeDays)
	})
	_ = RegisterLogStore(config.LogBackendSQLite, func(conf map[string]any) (eventlog.Store, error) {
		var lc config.LoggingConfig
		if err := factory.Decode(conf, &lc); err != nil {
			return nil, err
		}
		return eventlog.NewSQLiteStore(lc.Path)
	})

	_ = RegisterStorage("memory", func(map[string]any) (Storage, error) {
		return Storage{Cars: store.NewMemoryCars(), Requests: store.NewMemoryRequests()}, nil
	})
	_ = RegisterStorage("sqlite", func(conf map[string]any) (Storage, error) {
		var sc config.StorageConfig
		if err := factory.Decode(conf, &sc); err != nil {
			return Storage{}, err
		}
		db, err := store.NewSQLiteStore(sc.Path)
		if err != nil {
			return Storage{}, err
		}
		return Storage{Cars: db.Cars(), Requests: db.Requests(), Close: db.Close}, nil
	})
}

// NewLogStore builds the event log selected by cfg.
func NewLogStore(cfg config.LoggingConfig) (eventlog.Store, error) {
	return LogStores.Create(factory.ModuleConfig{Type: cfg.Backend, Conf: map[string]any{
		"path":         cfg.Path,
		"max_size_mb":  cfg.MaxSizeMB,
		"max_backups":  cfg.MaxBackups,
		"max_age_days": cfg.MaxAgeDays,
	}})
}

// NewStorage builds the repositories selected by cfg.
func NewStorage(cfg config.StorageConfig) (Storage, error) {
	return Storages.Create(factory.ModuleConfig{Type: cfg.Backend, Conf: map[string]any{"path": cfg.Path}})
}
