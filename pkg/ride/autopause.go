package ride

import "ridelog/pkg/config"

// AutoPause classifies motion as active or paused from successive speed samples.
// It counts qualifying samples, not wall-clock time: the thresholds only mean
// "seconds" when the source delivers roughly one sample per second.
type AutoPause struct {
	Paused bool

	below int // consecutive samples under PauseBelowKmh while active
	above int // consecutive samples over ResumeAboveKmh while paused

	cfg config.PauseConfig
}

// NewAutoPause returns an active detector with the given thresholds.
func NewAutoPause(cfg config.PauseConfig) AutoPause {
	return AutoPause{cfg: cfg}
}

// DefaultAutoPause returns a detector using the default thresholds (1.0 / 2.0 km/h, 10 / 3 samples).
func DefaultAutoPause() AutoPause {
	return NewAutoPause(config.DefaultConfig().Ride.AutoPause)
}

// Update evaluates one sample speed and returns the next detector value.
func (a AutoPause) Update(speedKmh float64) AutoPause {
	if !a.Paused {
		if speedKmh < a.cfg.PauseBelowKmh {
			a.below++
			if a.below >= a.cfg.PauseAfter {
				a.Paused = true
				a.below, a.above = 0, 0
			}
		} else {
			a.below = 0
		}
		return a
	}

	if speedKmh > a.cfg.ResumeAboveKmh {
		a.above++
		if a.above >= a.cfg.ResumeAfter {
			a.Paused = false
			a.below, a.above = 0, 0
		}
	} else {
		a.above = 0
	}
	return a
}
