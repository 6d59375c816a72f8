package eventlog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kilianp07/elevfleet/core/model"
)

// SQLiteStore persists events to a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database at path and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	schema := `CREATE TABLE IF NOT EXISTS elevator_logs (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        elevator_id INTEGER,
        ts INTEGER,
        message TEXT
    );`
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Append writes the event to the database.
func (s *SQLiteStore) Append(ctx context.Context, ev model.LogEvent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO elevator_logs (elevator_id, ts, message) VALUES (?, ?, ?)`,
		ev.ElevatorID, ev.Timestamp.UnixNano(), ev.Message)
	return err
}

// Query returns events matching q ordered by id.
func (s *SQLiteStore) Query(ctx context.Context, q Query) ([]model.LogEvent, error) {
	var args []any
	query := `SELECT id, elevator_id, ts, message FROM elevator_logs WHERE 1=1`
	if !q.Start.IsZero() {
		query += ` AND ts >= ?`
		args = append(args, q.Start.UnixNano())
	}
	if !q.End.IsZero() {
		query += ` AND ts <= ?`
		args = append(args, q.End.UnixNano())
	}
	if q.ElevatorID != 0 {
		query += ` AND elevator_id = ?`
		args = append(args, q.ElevatorID)
	}
	query += ` ORDER BY id`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	res := []model.LogEvent{}
	for rows.Next() {
		var (
			ev model.LogEvent
			ts int64
		)
		if err := rows.Scan(&ev.ID, &ev.ElevatorID, &ts, &ev.Message); err != nil {
			return nil, err
		}
		ev.Timestamp = time.Unix(0, ts)
		res = append(res, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
