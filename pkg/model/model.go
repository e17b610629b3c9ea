// Package model holds the ride data types shared across packages.
package model

import (
	"fmt"
	"time"

	"ridelog/pkg/geo"
)

// GeoSample is one observed position from the sample source.
type GeoSample struct {
	Lat         float64 `json:"lat"`          // Degrees
	Lon         float64 `json:"lon"`          // Degrees
	AltitudeM   float64 `json:"altitude_m"`   // Meters
	TimestampMs int64   `json:"timestamp_ms"` // Unix ms, non-decreasing within a ride
	SpeedKmh    float64 `json:"speed_kmh"`    // >= 0
}

// Point returns the sample position.
func (s GeoSample) Point() geo.Point {
	return geo.Point{Lat: s.Lat, Lon: s.Lon}
}

// Time returns the sample timestamp as a time.Time.
func (s GeoSample) Time() time.Time {
	return time.UnixMilli(s.TimestampMs)
}

// WindInfo is the latest wind annotation. A nil field means unknown.
type WindInfo struct {
	SpeedKmh   *float64 `json:"speed_kmh"`
	DirFromDeg *int     `json:"dir_from_deg"` // 0=N, 90=E; direction the wind blows from
	GustKmh    *float64 `json:"gust_kmh"`
}

// Known reports whether any wind field is set.
func (w WindInfo) Known() bool {
	return w.SpeedKmh != nil || w.DirFromDeg != nil || w.GustKmh != nil
}

// RideState is an immutable snapshot of the ride. Every update produces a new value;
// Path is shared between snapshots and must be treated as read-only.
type RideState struct {
	RideID     string `json:"ride_id"`
	Generation uint64 `json:"generation"`

	Recording          bool `json:"recording"`
	Paused             bool `json:"paused"`
	LocationPermission bool `json:"location_permission"`

	Path []GeoSample `json:"path"`

	SpeedKmh          float64       `json:"speed_kmh"`
	DistanceKm        float64       `json:"distance_km"`
	AvgMovingSpeedKmh float64       `json:"avg_moving_speed_kmh"`
	ElapsedText       string        `json:"elapsed_text"`
	MovingTime        time.Duration `json:"moving_time"`
	ElevGainM         int           `json:"elev_gain_m"`
	VMaxKmh           float64       `json:"vmax_kmh"`

	StartTimestampMs  int64    `json:"start_timestamp_ms"`
	LastSavedFileName string   `json:"last_saved_file_name"`
	Wind              WindInfo `json:"wind"`
}

// NewRideState returns the zero-metrics state shown before and at the start of a ride.
func NewRideState() RideState {
	return RideState{ElapsedText: "00:00:00"}
}

// LastSample returns the most recent accepted sample, if any.
func (s *RideState) LastSample() (GeoSample, bool) {
	if len(s.Path) == 0 {
		return GeoSample{}, false
	}
	return s.Path[len(s.Path)-1], true
}

// StartTime returns the ride start as a time.Time.
func (s *RideState) StartTime() time.Time {
	return time.UnixMilli(s.StartTimestampMs)
}

// RideSummary is the synopsis persisted once per finished ride.
type RideSummary struct {
	Title        string  `json:"title"`
	FilePath     string  `json:"file_path"`
	DistanceKm   float64 `json:"distance_km"`
	DurationText string  `json:"duration_text"`
	AvgMovingKmh float64 `json:"avg_moving_kmh"`
	VMaxKmh      float64 `json:"vmax_kmh"`
	ElevGainM    int     `json:"elev_gain_m"`
	DateText     string  `json:"date_text"`
}

// FormatHHMMSS renders whole seconds as "HH:MM:SS". Negative input renders as zero.
func FormatHHMMSS(d time.Duration) string {
	secs := int64(d / time.Second)
	if secs < 0 {
		secs = 0
	}
	h := secs / 3600
	m := (secs % 3600) / 60
	s := secs % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// RideEvent is one line of the ride event log.
type RideEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"` // "start", "stop", "saved", "recovered"
	Title     string    `json:"title"`
	Summary   string    `json:"summary,omitempty"`
}
