package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ridelog/pkg/db"
)

// Store defines the repository interface.
type Store interface {
	RideIndex
	StateStore

	// Close closes the store connection.
	Close() error
}

// SQLiteStore implements Store.
type SQLiteStore struct {
	db *db.DB
}

// NewSQLiteStore creates a new store.
func NewSQLiteStore(d *db.DB) *SQLiteStore {
	return &SQLiteStore{db: d}
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Ride index ---

func (s *SQLiteStore) SaveRide(ctx context.Context, r *RideRecord) error {
	if r.TrackPath == "" {
		return errors.New("ride record without track path")
	}
	savedAt := r.SavedAt
	if savedAt.IsZero() {
		savedAt = time.Now()
	}
	query := `INSERT OR REPLACE INTO rides (track_path, ride_id, summary_path, distance_km, date_text, recovered, saved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, r.TrackPath, r.RideID, r.SummaryPath, r.DistanceKm, r.DateText, r.Recovered, savedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to save ride %s: %w", r.TrackPath, err)
	}
	return nil
}

// GetRideByID returns nil, nil if no ride with that id was indexed.
func (s *SQLiteStore) GetRideByID(ctx context.Context, rideID string) (*RideRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT track_path, ride_id, summary_path, distance_km, date_text, recovered, saved_at
		FROM rides WHERE ride_id = ? LIMIT 1`, rideID)
	r, err := scanRide(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

func (s *SQLiteStore) HasRide(ctx context.Context, trackPath string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT count(*) FROM rides WHERE track_path = ?", trackPath).Scan(&n)
	return n > 0, err
}

// ListRides returns indexed rides, most recently saved first.
func (s *SQLiteStore) ListRides(ctx context.Context) ([]*RideRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT track_path, ride_id, summary_path, distance_km, date_text, recovered, saved_at
		FROM rides ORDER BY saved_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*RideRecord
	for rows.Next() {
		r, err := scanRide(rows)
		if err != nil {
			slog.Warn("Skipping unreadable ride row", "error", err)
			continue
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeleteRide(ctx context.Context, trackPath string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM rides WHERE track_path = ?", trackPath)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRide(sc scanner) (*RideRecord, error) {
	var (
		r       RideRecord
		rideID  sql.NullString
		summary sql.NullString
		date    sql.NullString
		dist    sql.NullFloat64
		savedAt sql.NullTime
	)
	if err := sc.Scan(&r.TrackPath, &rideID, &summary, &dist, &date, &r.Recovered, &savedAt); err != nil {
		return nil, err
	}
	r.RideID = rideID.String
	r.SummaryPath = summary.String
	r.DateText = date.String
	r.DistanceKm = dist.Float64
	if savedAt.Valid {
		r.SavedAt = savedAt.Time
	}
	return &r, nil
}

// --- State ---

func (s *SQLiteStore) GetState(ctx context.Context, key string) (string, bool) {
	var val string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM persistent_state WHERE key = ?", key).Scan(&val)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			slog.Warn("Failed to read state", "key", key, "error", err)
		}
		return "", false
	}
	return val, true
}

func (s *SQLiteStore) SetState(ctx context.Context, key, val string) error {
	query := `INSERT OR REPLACE INTO persistent_state (key, value, created_at) VALUES (?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, key, val, time.Now().UTC())
	return err
}

func (s *SQLiteStore) DeleteState(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM persistent_state WHERE key = ?", key)
	return err
}
