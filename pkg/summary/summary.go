package summary

import (
	"time"

	"ridelog/pkg/model"
)

const (
	titleLayout = "20060102_150405"
	dateLayout  = "2006-01-02 15:04"
)

// FromRide derives the summary of a finished ride. filePath is the saved track.
func FromRide(st model.RideState, filePath string, loc *time.Location) model.RideSummary {
	if loc == nil {
		loc = time.Local
	}
	start := st.StartTime().In(loc)
	return model.RideSummary{
		Title:        DefaultTitle + " " + start.Format(titleLayout),
		FilePath:     filePath,
		DistanceKm:   st.DistanceKm,
		DurationText: model.FormatHHMMSS(st.MovingTime),
		AvgMovingKmh: st.AvgMovingSpeedKmh,
		VMaxKmh:      st.VMaxKmh,
		ElevGainM:    st.ElevGainM,
		DateText:     start.Format(dateLayout),
	}
}
