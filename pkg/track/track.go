// Package track writes the recorded sample path to track-exchange files.
package track

import (
	"time"

	"ridelog/pkg/geo"
	"ridelog/pkg/model"
)

// Track is a finished ride path ready for export.
type Track struct {
	Name   string
	Start  time.Time
	End    time.Time
	Points []model.GeoSample
}

// FromRide builds a Track from a ride snapshot, ending at end. File names are
// derived from the start time in loc.
func FromRide(st model.RideState, end time.Time, loc *time.Location) Track {
	if loc == nil {
		loc = time.Local
	}
	return Track{
		Start:  st.StartTime().In(loc),
		End:    end,
		Points: st.Path,
	}
}

// BaseName returns the file stem for a ride started at start.
func BaseName(start time.Time) string {
	return "ride_" + start.Format("20060102_150405")
}

// Empty reports whether the track has no points.
func (t Track) Empty() bool {
	return len(t.Points) == 0
}

// cumulativeMeters returns the running path length at each point.
func (t Track) cumulativeMeters() []float64 {
	out := make([]float64, len(t.Points))
	for i := 1; i < len(t.Points); i++ {
		out[i] = out[i-1] + geo.DistanceKm(t.Points[i-1].Point(), t.Points[i].Point())*1000
	}
	return out
}
