package wind

import (
	"time"

	"ridelog/pkg/geo"
)

// Throttle decides when the wind annotation should be refreshed. It only
// remembers successful fetches, so a failure is retried no sooner than the
// next sample that satisfies the policy.
type Throttle struct {
	MinInterval   time.Duration
	MinDistanceKm float64

	lastAt  time.Time
	lastPos geo.Point
	ok      bool
}

// NewThrottle returns a throttle with the given limits.
func NewThrottle(minInterval time.Duration, minDistanceKm float64) *Throttle {
	return &Throttle{MinInterval: minInterval, MinDistanceKm: minDistanceKm}
}

// Due reports whether a fetch should be issued for a sample taken at now and pos.
func (t *Throttle) Due(now time.Time, pos geo.Point) bool {
	if !t.ok {
		return true
	}
	if now.Sub(t.lastAt) >= t.MinInterval {
		return true
	}
	return geo.DistanceKm(t.lastPos, pos) > t.MinDistanceKm
}

// RecordSuccess stores the time and position of a successful fetch.
func (t *Throttle) RecordSuccess(at time.Time, pos geo.Point) {
	t.lastAt = at
	t.lastPos = pos
	t.ok = true
}

// Reset forgets the last success, as at the start of a new ride.
func (t *Throttle) Reset() {
	*t = Throttle{MinInterval: t.MinInterval, MinDistanceKm: t.MinDistanceKm}
}
