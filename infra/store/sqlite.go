package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kilianp07/elevfleet/core/model"
	"github.com/kilianp07/elevfleet/core/repository"
)

// SQLiteStore persists cars and requests in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database at path and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// modernc's driver serialises writers per connection; a single
	// connection avoids SQLITE_BUSY between the loops.
	db.SetMaxOpenConns(1)
	schema := `CREATE TABLE IF NOT EXISTS cars (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        current_floor INTEGER NOT NULL,
        status TEXT NOT NULL,
        direction TEXT NOT NULL,
        capacity INTEGER NOT NULL,
        current_load INTEGER NOT NULL,
        operational INTEGER NOT NULL,
        eco_mode INTEGER NOT NULL,
        last_heartbeat INTEGER NOT NULL
    );
    CREATE TABLE IF NOT EXISTS requests (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        source_floor INTEGER NOT NULL,
        destination_floor INTEGER NOT NULL,
        request_time INTEGER NOT NULL,
        status TEXT NOT NULL,
        assigned_elevator_id INTEGER
    );
    CREATE INDEX IF NOT EXISTS requests_status ON requests(status);`
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Cars returns the car repository backed by this database.
func (s *SQLiteStore) Cars() *SQLiteCars { return &SQLiteCars{db: s.db} }

// Requests returns the request repository backed by this database.
func (s *SQLiteStore) Requests() *SQLiteRequests { return &SQLiteRequests{db: s.db} }

// Close closes the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// SQLiteCars implements repository.CarRepository.
type SQLiteCars struct {
	db *sql.DB
}

const carColumns = `id, current_floor, status, direction, capacity, current_load, operational, eco_mode, last_heartbeat`

var carSortColumns = map[string]string{
	"id":             "id",
	"current_floor":  "current_floor",
	"last_heartbeat": "last_heartbeat",
}

func (s *SQLiteCars) FindAll(ctx context.Context) ([]model.Car, error) {
	return s.query(ctx, `SELECT `+carColumns+` FROM cars ORDER BY id`)
}

func (s *SQLiteCars) FindByID(ctx context.Context, id int64) (model.Car, bool, error) {
	cars, err := s.query(ctx, `SELECT `+carColumns+` FROM cars WHERE id = ?`, id)
	if err != nil || len(cars) == 0 {
		return model.Car{}, false, err
	}
	return cars[0], true, nil
}

func (s *SQLiteCars) Save(ctx context.Context, c model.Car) (model.Car, error) {
	if c.ID == 0 {
		res, err := s.db.ExecContext(ctx, `INSERT INTO cars
            (current_floor, status, direction, capacity, current_load, operational, eco_mode, last_heartbeat)
            VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			c.CurrentFloor, string(c.Status), string(c.Direction), c.Capacity, c.CurrentLoad,
			c.Operational, c.EcoMode, c.LastHeartbeat.UnixNano())
		if err != nil {
			return c, err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return c, err
		}
		c.ID = id
		return c, nil
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO cars (`+carColumns+`)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            current_floor = excluded.current_floor,
            status = excluded.status,
            direction = excluded.direction,
            capacity = excluded.capacity,
            current_load = excluded.current_load,
            operational = excluded.operational,
            eco_mode = excluded.eco_mode,
            last_heartbeat = excluded.last_heartbeat`,
		c.ID, c.CurrentFloor, string(c.Status), string(c.Direction), c.Capacity, c.CurrentLoad,
		c.Operational, c.EcoMode, c.LastHeartbeat.UnixNano())
	return c, err
}

func (s *SQLiteCars) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM cars WHERE id = ?`, id)
	return err
}

func (s *SQLiteCars) FindPage(ctx context.Context, p repository.PageRequest) (repository.Page[model.Car], error) {
	p = p.Normalize("id")
	col, ok := carSortColumns[p.SortField]
	if !ok {
		return repository.Page[model.Car]{}, fmt.Errorf("unsupported sort field %q", p.SortField)
	}
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cars`).Scan(&total); err != nil {
		return repository.Page[model.Car]{}, err
	}
	items, err := s.query(ctx, fmt.Sprintf(`SELECT %s FROM cars ORDER BY %s %s, id LIMIT ? OFFSET ?`,
		carColumns, col, p.SortDir), p.Size, p.Offset())
	if err != nil {
		return repository.Page[model.Car]{}, err
	}
	return repository.Page[model.Car]{Items: items, Total: total, Page: p.Page, Size: p.Size}, nil
}

func (s *SQLiteCars) query(ctx context.Context, q string, args ...any) ([]model.Car, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	res := []model.Car{}
	for rows.Next() {
		var (
			c         model.Car
			status    string
			direction string
			heartbeat int64
		)
		if err := rows.Scan(&c.ID, &c.CurrentFloor, &status, &direction, &c.Capacity, &c.CurrentLoad,
			&c.Operational, &c.EcoMode, &heartbeat); err != nil {
			return nil, err
		}
		c.Status = model.CarStatus(status)
		c.Direction = model.Direction(direction)
		c.LastHeartbeat = time.Unix(0, heartbeat)
		res = append(res, c)
	}
	return res, rows.Err()
}

// SQLiteRequests implements repository.RequestRepository.
type SQLiteRequests struct {
	db *sql.DB
}

const requestColumns = `id, source_floor, destination_floor, request_time, status, assigned_elevator_id`

var requestSortColumns = map[string]string{
	"id":           "id",
	"request_time": "request_time",
	"source_floor": "source_floor",
}

func (s *SQLiteRequests) FindAll(ctx context.Context) ([]model.Request, error) {
	return s.query(ctx, `SELECT `+requestColumns+` FROM requests ORDER BY id`)
}

func (s *SQLiteRequests) FindByID(ctx context.Context, id int64) (model.Request, bool, error) {
	reqs, err := s.query(ctx, `SELECT `+requestColumns+` FROM requests WHERE id = ?`, id)
	if err != nil || len(reqs) == 0 {
		return model.Request{}, false, err
	}
	return reqs[0], true, nil
}

func (s *SQLiteRequests) FindByStatus(ctx context.Context, status model.RequestStatus) ([]model.Request, error) {
	return s.query(ctx, `SELECT `+requestColumns+` FROM requests WHERE status = ? ORDER BY id`, string(status))
}

func (s *SQLiteRequests) Save(ctx context.Context, r model.Request) (model.Request, error) {
	var assigned sql.NullInt64
	if r.AssignedElevatorID != nil {
		assigned = sql.NullInt64{Int64: *r.AssignedElevatorID, Valid: true}
	}
	if r.ID == 0 {
		res, err := s.db.ExecContext(ctx, `INSERT INTO requests
            (source_floor, destination_floor, request_time, status, assigned_elevator_id)
            VALUES (?, ?, ?, ?, ?)`,
			r.SourceFloor, r.DestinationFloor, r.RequestTime.UnixNano(), string(r.Status), assigned)
		if err != nil {
			return r, err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return r, err
		}
		r.ID = id
		return r, nil
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO requests (`+requestColumns+`)
        VALUES (?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            source_floor = excluded.source_floor,
            destination_floor = excluded.destination_floor,
            request_time = excluded.request_time,
            status = excluded.status,
            assigned_elevator_id = excluded.assigned_elevator_id`,
		r.ID, r.SourceFloor, r.DestinationFloor, r.RequestTime.UnixNano(), string(r.Status), assigned)
	return r, err
}

func (s *SQLiteRequests) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM requests WHERE id = ?`, id)
	return err
}

func (s *SQLiteRequests) FindPage(ctx context.Context, p repository.PageRequest) (repository.Page[model.Request], error) {
	p = p.Normalize("request_time")
	col, ok := requestSortColumns[p.SortField]
	if !ok {
		return repository.Page[model.Request]{}, fmt.Errorf("unsupported sort field %q", p.SortField)
	}
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM requests`).Scan(&total); err != nil {
		return repository.Page[model.Request]{}, err
	}
	items, err := s.query(ctx, fmt.Sprintf(`SELECT %s FROM requests ORDER BY %s %s, id LIMIT ? OFFSET ?`,
		requestColumns, col, p.SortDir), p.Size, p.Offset())
	if err != nil {
		return repository.Page[model.Request]{}, err
	}
	return repository.Page[model.Request]{Items: items, Total: total, Page: p.Page, Size: p.Size}, nil
}

func (s *SQLiteRequests) query(ctx context.Context, q string, args ...any) ([]model.Request, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	res := []model.Request{}
	for rows.Next() {
		var (
			r        model.Request
			ts       int64
			status   string
			assigned sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &r.SourceFloor, &r.DestinationFloor, &ts, &status, &assigned); err != nil {
			return nil, err
		}
		r.RequestTime = time.Unix(0, ts)
		r.Status = model.RequestStatus(status)
		if assigned.Valid {
			id := assigned.Int64
			r.AssignedElevatorID = &id
		}
		res = append(res, r)
	}
	return res, rows.Err()
}
