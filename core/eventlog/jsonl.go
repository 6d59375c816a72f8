package eventlog

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/kilianp07/elevfleet/core/model"
)

// RotatingJSONLStore stores events in a JSONL file with automatic rotation.
type RotatingJSONLStore struct {
	mu     sync.Mutex
	logger *lumberjack.Logger
	path   string
	nextID int64
}

// NewRotatingJSONLStore creates a store with rotation options in megabytes and days.
// Event ids continue from the records already present on disk.
func NewRotatingJSONLStore(path string, maxSizeMB, maxBackups, maxAgeDays int) (*RotatingJSONLStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	s := &RotatingJSONLStore{
		logger: &lumberjack.Logger{
			Filename:   path,
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
			MaxAge:     maxAgeDays,
		},
		path: path,
	}
	existing, err := s.Query(context.Background(), Query{})
	if err != nil {
		return nil, err
	}
	for _, ev := range existing {
		if ev.ID > s.nextID {
			s.nextID = ev.ID
		}
	}
	return s, nil
}

// Append writes the event and triggers rotation if needed.
func (s *RotatingJSONLStore) Append(ctx context.Context, ev model.LogEvent) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	ev.ID = s.nextID
	return json.NewEncoder(s.logger).Encode(ev)
}

// Query reads all log files including rotated ones.
func (s *RotatingJSONLStore) Query(ctx context.Context, q Query) ([]model.LogEvent, error) {
	_ = ctx
	files, err := filepath.Glob(s.path + "*")
	if err != nil {
		return nil, err
	}
	// rotated backups are named <base>-<timestamp><ext>
	if ext := filepath.Ext(s.path); ext != "" {
		more, err := filepath.Glob(s.path[:len(s.path)-len(ext)] + "-*" + ext)
		if err != nil {
			return nil, err
		}
		files = append(files, more...)
	}
	seen := map[string]bool{}
	res := []model.LogEvent{}
	for _, f := range files {
		if seen[f] {
			continue
		}
		seen[f] = true
		evs, err := readJSONL(f)
		if err != nil {
			continue
		}
		for _, ev := range evs {
			if q.match(ev) {
				res = append(res, ev)
			}
		}
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

func readJSONL(path string) ([]model.LogEvent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	var res []model.LogEvent
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var ev model.LogEvent
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			continue
		}
		res = append(res, ev)
	}
	return res, scanner.Err()
}

// Close closes the underlying writer.
func (s *RotatingJSONLStore) Close() error {
	return s.logger.Close()
}
