package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"travelmap/internal/itinerary"
)

var ErrNotFound = errors.New("trip not found")

const schema = `
CREATE TABLE IF NOT EXISTS trips (
  id         TEXT PRIMARY KEY,
  name       TEXT NOT NULL DEFAULT '',
  body       TEXT NOT NULL,
  updated_at BIGINT NOT NULL
)`

// Store persists each trip as one JSON snapshot row, so readers never see a
// partially written sequence.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create trips table: %w", err)
	}
	return nil
}

type tripBody struct {
	Segments itinerary.Sequence  `json:"segments"`
	Queue    []itinerary.Segment `json:"queue,omitempty"`
}

type TripSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (s *Store) LoadTrip(ctx context.Context, id string) (*itinerary.Trip, error) {
	var (
		name    string
		body    string
		updated int64
	)
	err := s.db.QueryRowContext(ctx, `SELECT name, body, updated_at FROM trips WHERE id = $1`, id).
		Scan(&name, &body, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("load %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("query trip: %w", err)
	}
	var b tripBody
	if err := json.Unmarshal([]byte(body), &b); err != nil {
		return nil, fmt.Errorf("decode trip %s: %w", id, err)
	}
	return &itinerary.Trip{
		ID:        id,
		Name:      name,
		Segments:  itinerary.Normalize(b.Segments),
		Queue:     itinerary.Normalize(b.Queue),
		UpdatedAt: time.UnixMilli(updated).UTC(),
	}, nil
}

// SaveTrip replaces the stored snapshot of t.
func (s *Store) SaveTrip(ctx context.Context, t *itinerary.Trip) error {
	if t.ID == "" {
		return fmt.Errorf("save trip: empty id")
	}
	body, err := json.Marshal(tripBody{Segments: t.Segments, Queue: t.Queue})
	if err != nil {
		return fmt.Errorf("encode trip %s: %w", t.ID, err)
	}
	t.UpdatedAt = time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()
	_, err = tx.ExecContext(ctx, `
INSERT INTO trips (id, name, body, updated_at) VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE SET name = excluded.name, body = excluded.body, updated_at = excluded.updated_at`,
		t.ID, t.Name, string(body), t.UpdatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("upsert trip %s: %w", t.ID, err)
	}
	return tx.Commit()
}

func (s *Store) ListTrips(ctx context.Context) ([]TripSummary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, updated_at FROM trips ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query trips: %w", err)
	}
	defer rows.Close()
	var out []TripSummary
	for rows.Next() {
		var ts TripSummary
		var updated int64
		if err := rows.Scan(&ts.ID, &ts.Name, &updated); err != nil {
			return nil, err
		}
		ts.UpdatedAt = time.UnixMilli(updated).UTC()
		out = append(out, ts)
	}
	return out, rows.Err()
}

func (s *Store) DeleteTrip(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM trips WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete trip %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("delete %s: %w", id, ErrNotFound)
	}
	return nil
}
