package core

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"ridelog/pkg/config"
	"ridelog/pkg/store"
)

// CheckpointJob periodically stores the active ride so it can be recovered
// after a crash.
type CheckpointJob struct {
	BaseJob
	st       store.StateStore
	rec      Snapshotter
	interval time.Duration

	lastSavedState []byte
}

// NewCheckpointJob creates a new checkpoint job.
func NewCheckpointJob(st store.StateStore, rec Snapshotter, interval time.Duration) *CheckpointJob {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &CheckpointJob{
		BaseJob:  NewBaseJob("Checkpoint"),
		st:       st,
		rec:      rec,
		interval: interval,
	}
}

// Start begins the checkpoint loop.
func (j *CheckpointJob) Start(ctx context.Context) {
	ticker := time.NewTicker(j.interval)

	slog.Info("Checkpoint: loop started", "interval", j.interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				j.checkAndSave(ctx)
			}
		}
	}()
}

func (j *CheckpointJob) checkAndSave(ctx context.Context) {
	if !j.TryLock() {
		return
	}
	defer j.Unlock()

	snap := j.rec.Snapshot()
	if !snap.Recording || len(snap.Path) == 0 {
		return
	}

	data, err := json.Marshal(snap)
	if err != nil {
		slog.Error("Checkpoint: Failed to serialize ride state", "error", err)
		return
	}

	if bytes.Equal(data, j.lastSavedState) {
		return
	}

	if err := j.st.SetState(ctx, config.KeyActiveRide, string(data)); err != nil {
		slog.Error("Checkpoint: Failed to save ride state", "error", err)
		return
	}
	j.lastSavedState = data
	slog.Debug("Checkpoint: Ride saved", "size", len(data), "samples", len(snap.Path))
}
