package ride

import (
	"time"

	"ridelog/pkg/model"
)

// Tick advances the wall-clock fields of the ride: elapsed text, moving time and
// average moving speed. Moving time grows by now-lastTick (clamped at zero) only
// while recording and not paused; it is independent of the sample-count detector.
func Tick(prev model.RideState, lastTick, now time.Time) model.RideState {
	next := prev
	if prev.StartTimestampMs > 0 {
		next.ElapsedText = model.FormatHHMMSS(now.Sub(prev.StartTime()))
	}

	if prev.Recording && !prev.Paused {
		if delta := now.Sub(lastTick); delta > 0 {
			next.MovingTime += delta
		}
	}

	next.AvgMovingSpeedKmh = AverageSpeed(next.DistanceKm, next.MovingTime)
	return next
}

// AverageSpeed returns km/h over the moving time, or 0 when no time has passed.
func AverageSpeed(distanceKm float64, moving time.Duration) float64 {
	hours := moving.Hours()
	if hours <= 0 {
		return 0
	}
	return distanceKm / hours
}
