package plugins

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/elevfleet/config"
	"github.com/kilianp07/elevfleet/core/eventlog"
	"github.com/kilianp07/elevfleet/core/model"
)

func TestBuiltinsRegistered(t *testing.T) {
	assert.Equal(t, []string{"jsonl", "memory", "sqlite"}, LogStores.Names())
	assert.Equal(t, []string{"memory", "sqlite"}, Storages.Names())
}

func TestNewLogStoreBackends(t *testing.T) {
	dir := t.TempDir()
	for _, cfg := range []config.LoggingConfig{
		{Backend: "memory"},
		{Backend: "jsonl", Path: filepath.Join(dir, "events.log"), MaxSizeMB: 1},
		{Backend: "sqlite", Path: filepath.Join(dir, "events.db")},
	} {
		t.Run(cfg.Backend, func(t *testing.T) {
			st, err := NewLogStore(cfg)
			require.NoError(t, err)
			defer st.Close()
			ctx := context.Background()
			require.NoError(t, st.Append(ctx, model.LogEvent{ElevatorID: 1, Message: "Moving to floor 3"}))
			evs, err := st.Query(ctx, eventlog.Query{ElevatorID: 1})
			require.NoError(t, err)
			require.Len(t, evs, 1)
			assert.Equal(t, "Moving to floor 3", evs[0].Message)
		})
	}
	_, err := NewLogStore(config.LoggingConfig{Backend: "kafka"})
	assert.Error(t, err)
}

func TestNewStorageBackends(t *testing.T) {
	for _, cfg := range []config.StorageConfig{
		{Backend: "memory"},
		{Backend: "sqlite", Path: filepath.Join(t.TempDir(), "fleet.db")},
	} {
		t.Run(cfg.Backend, func(t *testing.T) {
			st, err := NewStorage(cfg)
			require.NoError(t, err)
			if st.Close != nil {
				defer st.Close()
			}
			ctx := context.Background()
			now := time.Date(2025, 3, 4, 8, 0, 0, 0, time.UTC)
			saved, err := st.Cars.Save(ctx, model.NewCar(2, 8, now))
			require.NoError(t, err)
			assert.Equal(t, int64(1), saved.ID)
			_, err = st.Requests.Save(ctx, model.NewRequest(0, 4, now))
			require.NoError(t, err)
			pending, err := st.Requests.FindByStatus(ctx, model.RequestPending)
			require.NoError(t, err)
			assert.Len(t, pending, 1)
		})
	}
}
