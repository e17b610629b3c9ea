package ride

import (
	"math"

	"ridelog/pkg/geo"
	"ridelog/pkg/model"
)

// DefaultNoiseCeilingM is the largest single-step climb counted as elevation gain.
const DefaultNoiseCeilingM = 5.0

// Accumulate folds one sample into the ride state and returns the new state and
// detector. The previous state's fields are never modified; the returned Path
// extends prev.Path in place when capacity allows, so each state must be
// advanced at most once. Branching two states off the same prev is not supported.
//
// The pause flag is evaluated first and the step's distance is counted only when
// the resulting flag is false, so the sample that flips the ride into Paused adds
// no distance. vmax is updated regardless of pause state.
func Accumulate(prev model.RideState, det AutoPause, s model.GeoSample, noiseCeilingM float64) (model.RideState, AutoPause) {
	det = det.Update(s.SpeedKmh)

	next := prev
	next.Paused = det.Paused

	if last, ok := prev.LastSample(); ok {
		if !det.Paused {
			next.DistanceKm += geo.DistanceKm(last.Point(), s.Point())
		}
		next.ElevGainM += elevationDelta(last.AltitudeM, s.AltitudeM, noiseCeilingM)
	}

	if s.SpeedKmh > next.VMaxKmh {
		next.VMaxKmh = s.SpeedKmh
	}

	next.Path = appendSample(prev.Path, s)
	next.SpeedKmh = s.SpeedKmh
	return next, det
}

// elevationDelta returns floor(dz) for climbs in (0, ceiling], else 0. NaN
// altitudes fall through to 0.
func elevationDelta(fromM, toM, ceilingM float64) int {
	dz := toM - fromM
	if !(dz > 0 && dz <= ceilingM) {
		return 0
	}
	return int(math.Floor(dz))
}

// appendSample grows the path in place when capacity allows. Earlier snapshots
// keep their own length and never observe the new element; states must be
// advanced linearly (never two Accumulate calls on the same prev).
func appendSample(path []model.GeoSample, s model.GeoSample) []model.GeoSample {
	return append(path, s)
}
