package core

import (
	"context"

	"ridelog/pkg/model"
	"ridelog/pkg/store"
)

// Recorder is the part of ride.Recorder the application layer drives.
type Recorder interface {
	Snapshot() model.RideState
	Start(ctx context.Context) (model.RideState, error)
	Stop(ctx context.Context) (model.RideState, error)
	SetLocationPermission(ctx context.Context, granted bool) (model.RideState, error)
	MarkSaved(ctx context.Context, fileName string) (model.RideState, error)
}

// Snapshotter provides the latest ride state without blocking.
type Snapshotter interface {
	Snapshot() model.RideState
}

// RideStore is the persistence the service needs: the ride index and key/value state.
type RideStore interface {
	store.RideIndex
	store.StateStore
}
