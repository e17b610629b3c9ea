package core

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"ridelog/pkg/config"
	"ridelog/pkg/logging"
	"ridelog/pkg/model"
	"ridelog/pkg/ride"
	"ridelog/pkg/store"
	"ridelog/pkg/summary"
	"ridelog/pkg/track"
)

// RideService drives the recorder lifecycle and persists finished rides: the
// GPX track with optional FIT, GeoJSON and Parquet exports, then the summary
// record, then the index row.
type RideService struct {
	rec  Recorder
	cfg  *config.Config
	sums *summary.Store
	st   RideStore
	loc  *time.Location

	// serializes Stop and Recover so a ride is archived once
	saveMu sync.Mutex
	now    func() time.Time
}

// NewRideService creates a new ride service.
func NewRideService(rec Recorder, cfg *config.Config, sums *summary.Store, st RideStore) *RideService {
	return &RideService{
		rec:  rec,
		cfg:  cfg,
		sums: sums,
		st:   st,
		loc:  cfg.Storage.Location(),
		now:  time.Now,
	}
}

// Snapshot returns the current ride state.
func (s *RideService) Snapshot() model.RideState {
	return s.rec.Snapshot()
}

// Start begins a new ride.
func (s *RideService) Start(ctx context.Context) (model.RideState, error) {
	st, err := s.rec.Start(ctx)
	if err != nil {
		return st, err
	}
	if err := s.st.SetState(ctx, config.KeyLastRideID, st.RideID); err != nil {
		slog.Warn("Failed to remember ride id", "error", err)
	}
	logging.LogEvent(&model.RideEvent{
		Timestamp: st.StartTime(),
		Type:      "start",
		Title:     st.RideID,
	})
	return st, nil
}

// Stop ends the ride and saves it. A ride without samples is not saved and
// yields a nil summary without error.
func (s *RideService) Stop(ctx context.Context) (*model.RideSummary, error) {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	final, err := s.rec.Stop(ctx)
	if err != nil {
		return nil, err
	}
	logging.LogEvent(&model.RideEvent{
		Type:    "stop",
		Title:   final.RideID,
		Summary: fmt.Sprintf("%.2f km in %s", final.DistanceKm, model.FormatHHMMSS(final.MovingTime)),
	})

	sum, err := s.archive(ctx, final, s.now(), false)
	if err != nil {
		return nil, err
	}
	if err := s.st.DeleteState(ctx, config.KeyActiveRide); err != nil {
		slog.Warn("Failed to clear ride checkpoint", "error", err)
	}
	if sum == nil {
		slog.Info("Ride had no samples, nothing saved", "ride_id", final.RideID)
		return nil, nil
	}
	if _, err := s.rec.MarkSaved(ctx, filepath.Base(sum.FilePath)); err != nil {
		return sum, err
	}
	return sum, nil
}

// archive writes the track files, the summary record and the index row for a
// finished ride. It returns nil when the ride has no samples.
func (s *RideService) archive(ctx context.Context, st model.RideState, end time.Time, recovered bool) (*model.RideSummary, error) {
	t := track.FromRide(st, end, s.loc)
	if t.Empty() {
		return nil, nil
	}

	dir := s.cfg.Storage.RidesDir
	trackPath, err := track.SaveGPX(dir, t)
	if err != nil {
		return nil, fmt.Errorf("failed to save track: %w", err)
	}
	s.saveExports(dir, t)

	sum := summary.FromRide(st, trackPath, s.loc)
	summaryPath, err := s.sums.Append(sum)
	if err != nil {
		return nil, err
	}

	rec := &store.RideRecord{
		TrackPath:   trackPath,
		RideID:      st.RideID,
		SummaryPath: summaryPath,
		DistanceKm:  sum.DistanceKm,
		DateText:    sum.DateText,
		Recovered:   recovered,
		SavedAt:     s.now(),
	}
	if err := s.st.SaveRide(ctx, rec); err != nil {
		// the files are on disk; maintenance indexes them on next start
		slog.Error("Failed to index ride", "path", trackPath, "error", err)
	}

	eventType := "saved"
	if recovered {
		eventType = "recovered"
	}
	logging.LogEvent(&model.RideEvent{
		Type:    eventType,
		Title:   filepath.Base(trackPath),
		Summary: fmt.Sprintf("%.2f km, avg %.1f km/h, +%d m", sum.DistanceKm, sum.AvgMovingKmh, sum.ElevGainM),
	})
	slog.Info("Ride saved", "path", trackPath, "distance_km", sum.DistanceKm, "recovered", recovered)
	return &sum, nil
}

// saveExports writes the optional export formats. Failures are logged only.
func (s *RideService) saveExports(dir string, t track.Track) {
	exports := []struct {
		enabled bool
		name    string
		save    func(string, track.Track) (string, error)
	}{
		{s.cfg.Export.FIT, "fit", track.SaveFIT},
		{s.cfg.Export.GeoJSON, "geojson", track.SaveGeoJSON},
		{s.cfg.Export.Parquet, "parquet", track.SaveParquet},
	}
	for _, e := range exports {
		if !e.enabled {
			continue
		}
		if _, err := e.save(dir, t); err != nil {
			slog.Warn("Track export failed", "format", e.name, "error", err)
		}
	}
}

// SetLocationPermission forwards the grant to the recorder and remembers it across restarts.
func (s *RideService) SetLocationPermission(ctx context.Context, granted bool) (model.RideState, error) {
	st, err := s.rec.SetLocationPermission(ctx, granted)
	if err != nil {
		return st, err
	}
	if err := s.st.SetState(ctx, config.KeyPermissionSet, strconv.FormatBool(granted)); err != nil {
		slog.Warn("Failed to persist location permission", "error", err)
	}
	return st, nil
}

// RestorePermission re-applies the last persisted permission grant, if any.
func (s *RideService) RestorePermission(ctx context.Context) error {
	val, ok := s.st.GetState(ctx, config.KeyPermissionSet)
	if !ok {
		return nil
	}
	granted, err := strconv.ParseBool(val)
	if err != nil {
		return nil
	}
	_, err = s.rec.SetLocationPermission(ctx, granted)
	return err
}

// Rides lists saved ride summaries, newest first.
func (s *RideService) Rides() ([]model.RideSummary, error) {
	return s.sums.LoadAll()
}

// Stats returns the speed distribution of the current ride's moving samples.
func (s *RideService) Stats() ride.SpeedStats {
	return ride.ComputeSpeedStats(s.rec.Snapshot().Path, s.cfg.Ride.AutoPause.PauseBelowKmh)
}
