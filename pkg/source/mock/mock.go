// Package mock simulates a bike ride: cruising legs along a slowly wandering
// heading, separated by stops long enough to trigger auto-pause.
package mock

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"ridelog/pkg/config"
	"ridelog/pkg/geo"
	"ridelog/pkg/model"
)

const (
	StageRiding  = "RIDING"
	StageStopped = "STOPPED"

	// altitude undulation
	hillAmplitudeM = 12.0
	hillLengthKm   = 1.5
)

// Config holds the simulated ride parameters.
type Config struct {
	StartLat     float64
	StartLon     float64
	StartAlt     float64
	Heading      float64
	SpeedKmh     float64
	Interval     time.Duration
	RideDuration time.Duration
	StopDuration time.Duration
	Seed         int64 // 0 picks a time-based seed
}

// ConfigFrom converts the YAML settings.
func ConfigFrom(c config.MockSourceConfig) Config {
	return Config{
		StartLat:     c.StartLat,
		StartLon:     c.StartLon,
		StartAlt:     c.StartAlt,
		Heading:      c.Heading,
		SpeedKmh:     c.SpeedKmh,
		Interval:     c.Interval.Std(),
		RideDuration: c.RideDuration.Std(),
		StopDuration: c.StopDuration.Std(),
	}
}

// Sink receives generated samples. ride.Recorder satisfies it.
type Sink interface {
	Push(ctx context.Context, s model.GeoSample) error
}

// Source generates samples. It is not safe for concurrent use; Run owns it.
type Source struct {
	cfg Config
	rng *rand.Rand

	pos         geo.Point
	heading     float64
	stage       string
	stageStart  time.Time
	travelledKm float64
}

// New creates a source positioned at the configured start.
func New(cfg Config) *Source {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Source{
		cfg:     cfg,
		rng:     rand.New(rand.NewSource(seed)),
		pos:     geo.Point{Lat: cfg.StartLat, Lon: cfg.StartLon},
		heading: cfg.Heading,
		stage:   StageRiding,
	}
}

// Stage returns the current simulation stage.
func (s *Source) Stage() string {
	return s.stage
}

// Next advances the simulation by one interval and returns the sample observed at now.
func (s *Source) Next(now time.Time) model.GeoSample {
	if s.stageStart.IsZero() {
		s.stageStart = now
	}
	s.updateStage(now)

	speed := 0.0
	if s.stage == StageRiding {
		// gentle surging around the cruise speed
		speed = s.cfg.SpeedKmh * (1 + 0.08*math.Sin(float64(now.Unix())/20.0))
		speed = math.Max(0, speed+s.rng.NormFloat64()*0.5)

		stepKm := speed * s.cfg.Interval.Hours()
		s.pos = geo.DestinationPoint(s.pos, stepKm, s.heading)
		s.travelledKm += stepKm

		s.heading = math.Mod(s.heading+s.rng.NormFloat64()*2.0+360, 360)
	}

	return model.GeoSample{
		Lat:         s.pos.Lat,
		Lon:         s.pos.Lon,
		AltitudeM:   s.cfg.StartAlt + hillAmplitudeM*math.Sin(2*math.Pi*s.travelledKm/hillLengthKm),
		TimestampMs: now.UnixMilli(),
		SpeedKmh:    speed,
	}
}

func (s *Source) updateStage(now time.Time) {
	elapsed := now.Sub(s.stageStart)
	switch s.stage {
	case StageRiding:
		if s.cfg.StopDuration > 0 && s.cfg.RideDuration > 0 && elapsed >= s.cfg.RideDuration {
			s.stage = StageStopped
			s.stageStart = now
		}
	case StageStopped:
		if elapsed >= s.cfg.StopDuration {
			s.stage = StageRiding
			s.stageStart = now
		}
	}
}

// Run pushes a sample every interval until ctx is cancelled or the sink fails.
func (s *Source) Run(ctx context.Context, sink Sink) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	slog.Info("Mock source started", "lat", s.pos.Lat, "lon", s.pos.Lon, "speed_kmh", s.cfg.SpeedKmh)
	stage := s.stage
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			if err := sink.Push(ctx, s.Next(now)); err != nil {
				return err
			}
			if s.stage != stage {
				slog.Debug("Mock source stage changed", "stage", s.stage)
				stage = s.stage
			}
		}
	}
}
