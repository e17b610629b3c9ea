package ride

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"ridelog/pkg/model"
)

// SpeedStats describes the distribution of moving sample speeds in a ride.
type SpeedStats struct {
	Samples int     `json:"samples"`
	MeanKmh float64 `json:"mean_kmh"`
	StdKmh  float64 `json:"std_kmh"`
	P50Kmh  float64 `json:"p50_kmh"`
	P95Kmh  float64 `json:"p95_kmh"`
	MaxKmh  float64 `json:"max_kmh"`
}

// ComputeSpeedStats summarizes the speeds of samples at or above minMovingKmh.
// It returns the zero value when no sample qualifies.
func ComputeSpeedStats(path []model.GeoSample, minMovingKmh float64) SpeedStats {
	speeds := make([]float64, 0, len(path))
	for _, s := range path {
		if s.SpeedKmh >= minMovingKmh {
			speeds = append(speeds, s.SpeedKmh)
		}
	}
	if len(speeds) == 0 {
		return SpeedStats{}
	}
	sort.Float64s(speeds)

	out := SpeedStats{
		Samples: len(speeds),
		MeanKmh: stat.Mean(speeds, nil),
		P50Kmh:  stat.Quantile(0.5, stat.Empirical, speeds, nil),
		P95Kmh:  stat.Quantile(0.95, stat.Empirical, speeds, nil),
		MaxKmh:  speeds[len(speeds)-1],
	}
	if len(speeds) > 1 {
		out.StdKmh = stat.StdDev(speeds, nil)
	}
	return out
}
