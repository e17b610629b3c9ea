package ride

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"ridelog/pkg/model"
)

func TestTick(t *testing.T) {
	start := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

	base := model.NewRideState()
	base.Recording = true
	base.StartTimestampMs = start.UnixMilli()
	base.DistanceKm = 10
	base.MovingTime = 30 * time.Minute

	tests := []struct {
		name        string
		mutate      func(*model.RideState)
		lastTick    time.Time
		now         time.Time
		wantElapsed string
		wantMoving  time.Duration
		wantAvg     float64
	}{
		{
			name:        "Moving",
			lastTick:    start.Add(3599 * time.Second),
			now:         start.Add(3600 * time.Second),
			wantElapsed: "01:00:00",
			wantMoving:  30*time.Minute + time.Second,
			wantAvg:     10 / (1801.0 / 3600.0),
		},
		{
			name:        "Paused_NoMovingTime",
			mutate:      func(s *model.RideState) { s.Paused = true },
			lastTick:    start.Add(59 * time.Second),
			now:         start.Add(61 * time.Second),
			wantElapsed: "00:01:01",
			wantMoving:  30 * time.Minute,
			wantAvg:     20,
		},
		{
			name:        "ClockWentBackwards_Clamped",
			lastTick:    start.Add(10 * time.Second),
			now:         start.Add(5 * time.Second),
			wantElapsed: "00:00:05",
			wantMoving:  30 * time.Minute,
			wantAvg:     20,
		},
		{
			name:        "NotRecording",
			mutate:      func(s *model.RideState) { s.Recording = false },
			lastTick:    start,
			now:         start.Add(2 * time.Second),
			wantElapsed: "00:00:02",
			wantMoving:  30 * time.Minute,
			wantAvg:     20,
		},
		{
			name:        "NoMovingTime_ZeroAverage",
			mutate:      func(s *model.RideState) { s.MovingTime = 0; s.Paused = true },
			lastTick:    start,
			now:         start.Add(time.Second),
			wantElapsed: "00:00:01",
			wantMoving:  0,
			wantAvg:     0,
		},
		{
			name:        "LongRide",
			lastTick:    start.Add(26*time.Hour + 3*time.Minute + 6*time.Second),
			now:         start.Add(26*time.Hour + 3*time.Minute + 7*time.Second),
			wantElapsed: "26:03:07",
			wantMoving:  30*time.Minute + time.Second,
			wantAvg:     10 / (1801.0 / 3600.0),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prev := base
			if tt.mutate != nil {
				tt.mutate(&prev)
			}
			got := Tick(prev, tt.lastTick, tt.now)

			assert.Equal(t, tt.wantElapsed, got.ElapsedText)
			assert.Equal(t, tt.wantMoving, got.MovingTime)
			assert.InDelta(t, tt.wantAvg, got.AvgMovingSpeedKmh, 1e-9)
			assert.Equal(t, prev.DistanceKm, got.DistanceKm)
		})
	}
}

func TestAverageSpeed(t *testing.T) {
	assert.Zero(t, AverageSpeed(5, 0))
	assert.Zero(t, AverageSpeed(5, -time.Second))
	assert.InDelta(t, 24.0, AverageSpeed(12, 30*time.Minute), 1e-9)
}
