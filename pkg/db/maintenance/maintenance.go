// Package maintenance reconciles the ride index with the rides directory at startup.
package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"ridelog/pkg/store"
	"ridelog/pkg/summary"
)

const ridesDirStateKey = "rides_dir_mtime"

// Run indexes summaries that are on disk but not in the database, then drops
// index rows whose track file is gone. Failures are logged, never fatal.
func Run(ctx context.Context, s store.Store, ridesDir string) error {
	slog.Info("Starting database maintenance...", "rides_dir", ridesDir)

	if n, err := indexSummaries(ctx, s, ridesDir); err != nil {
		slog.Error("Ride indexing failed", "error", err)
	} else if n > 0 {
		slog.Info("Indexed rides from disk", "count", n)
	}

	if n, err := pruneMissing(ctx, s); err != nil {
		slog.Error("Ride index pruning failed", "error", err)
	} else if n > 0 {
		slog.Info("Pruned rides with missing tracks", "count", n)
	}
	return nil
}

// indexSummaries scans the rides directory when its mtime changed since the last run.
func indexSummaries(ctx context.Context, s store.Store, ridesDir string) (int, error) {
	info, err := os.Stat(ridesDir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to stat rides dir: %w", err)
	}

	mtime := info.ModTime().UTC().Format(time.RFC3339Nano)
	if stored, found := s.GetState(ctx, ridesDirStateKey); found && stored == mtime {
		return 0, nil
	}

	summaries, err := summary.NewStore(ridesDir).LoadAll()
	if err != nil {
		return 0, err
	}

	count := 0
	for _, sum := range summaries {
		if sum.FilePath == "" {
			continue
		}
		known, err := s.HasRide(ctx, sum.FilePath)
		if err != nil {
			return count, fmt.Errorf("failed to check ride %s: %w", sum.FilePath, err)
		}
		if known {
			continue
		}
		rec := &store.RideRecord{
			TrackPath:   sum.FilePath,
			SummaryPath: filepath.Join(ridesDir, summary.FileName(sum.FilePath)),
			DistanceKm:  sum.DistanceKm,
			DateText:    sum.DateText,
		}
		if err := s.SaveRide(ctx, rec); err != nil {
			return count, err
		}
		count++
	}

	if err := s.SetState(ctx, ridesDirStateKey, mtime); err != nil {
		return count, fmt.Errorf("failed to update state: %w", err)
	}
	return count, nil
}

func pruneMissing(ctx context.Context, s store.Store) (int, error) {
	rides, err := s.ListRides(ctx)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, r := range rides {
		if _, err := os.Stat(r.TrackPath); !os.IsNotExist(err) {
			continue
		}
		if err := s.DeleteRide(ctx, r.TrackPath); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}
