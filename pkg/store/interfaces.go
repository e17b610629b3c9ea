package store

import (
	"context"
	"time"
)

// RideRecord indexes one saved ride by its track file.
type RideRecord struct {
	TrackPath   string
	RideID      string
	SummaryPath string
	DistanceKm  float64
	DateText    string
	Recovered   bool // archived from a checkpoint at startup
	SavedAt     time.Time
}

// RideIndex tracks which rides have been written to disk.
type RideIndex interface {
	SaveRide(ctx context.Context, r *RideRecord) error
	GetRideByID(ctx context.Context, rideID string) (*RideRecord, error)
	HasRide(ctx context.Context, trackPath string) (bool, error)
	ListRides(ctx context.Context) ([]*RideRecord, error)
	DeleteRide(ctx context.Context, trackPath string) error
}

// StateStore handles persistent application state.
type StateStore interface {
	GetState(ctx context.Context, key string) (string, bool)
	SetState(ctx context.Context, key, val string) error
	DeleteState(ctx context.Context, key string) error
}
