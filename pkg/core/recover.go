package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"ridelog/pkg/config"
	"ridelog/pkg/model"
)

// Recover archives a ride interrupted by a crash, if a checkpoint exists, and
// clears the checkpoint. A checkpoint whose ride was already indexed is
// dropped. It returns the summary of the recovered ride, or nil.
func (s *RideService) Recover(ctx context.Context) (*model.RideSummary, error) {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	raw, ok := s.st.GetState(ctx, config.KeyActiveRide)
	if !ok {
		return nil, nil
	}
	defer func() {
		if err := s.st.DeleteState(ctx, config.KeyActiveRide); err != nil {
			slog.Warn("Failed to clear ride checkpoint", "error", err)
		}
	}()

	var st model.RideState
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		slog.Warn("Discarding unreadable ride checkpoint", "error", err)
		return nil, nil
	}

	if st.RideID != "" {
		existing, err := s.st.GetRideByID(ctx, st.RideID)
		if err != nil {
			return nil, fmt.Errorf("failed to look up checkpointed ride: %w", err)
		}
		if existing != nil {
			slog.Debug("Checkpointed ride already saved", "ride_id", st.RideID, "path", existing.TrackPath)
			return nil, nil
		}
	}

	last, ok := st.LastSample()
	if !ok {
		return nil, nil
	}
	st.Recording = false
	st.Paused = false

	slog.Info("Recovering interrupted ride", "ride_id", st.RideID, "samples", len(st.Path))
	return s.archive(ctx, st, last.Time(), true)
}
