package ride

import (
	"testing"
)

func feed(a AutoPause, speed float64, n int) (AutoPause, []bool) {
	flags := make([]bool, 0, n)
	for i := 0; i < n; i++ {
		a = a.Update(speed)
		flags = append(flags, a.Paused)
	}
	return a, flags
}

func firstPaused(flags []bool, want bool) int {
	for i, f := range flags {
		if f == want {
			return i + 1
		}
	}
	return -1
}

func TestAutoPause_PausesOnTenthSlowSample(t *testing.T) {
	_, flags := feed(DefaultAutoPause(), 0.5, 12)
	if got := firstPaused(flags, true); got != 10 {
		t.Errorf("paused on sample %d, want 10", got)
	}
}

func TestAutoPause_ResumesOnThirdFastSample(t *testing.T) {
	a, _ := feed(DefaultAutoPause(), 0.5, 10)
	if !a.Paused {
		t.Fatal("expected paused after 10 slow samples")
	}
	_, flags := feed(a, 2.5, 5)
	if got := firstPaused(flags, false); got != 3 {
		t.Errorf("resumed on sample %d, want 3", got)
	}
}

func TestAutoPause_Hysteresis(t *testing.T) {
	tests := []struct {
		name   string
		speeds []float64
		want   bool
	}{
		{"NineSlowThenFast_Resets", append(repeat(0.5, 9), 5.0), false},
		{"NineSlowFastNineSlow", append(append(repeat(0.5, 9), 5.0), repeat(0.5, 9)...), false},
		{"ExactlyPauseThreshold_NotSlow", repeat(1.0, 20), false},
		{"ExactlyResumeThreshold_NotFast", append(repeat(0.0, 10), repeat(2.0, 5)...), true},
		{"TwoFastThenSlow_StaysPaused", append(append(repeat(0.0, 10), 3.0, 3.0), 0.5), true},
		{"ResumeCounterResets", append(append(repeat(0.0, 10), 3.0, 3.0, 1.5), 3.0, 3.0), true},
		{"ResumeAfterReset", append(append(repeat(0.0, 10), 3.0, 3.0, 1.5), 3.0, 3.0, 3.0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := DefaultAutoPause()
			for _, s := range tt.speeds {
				a = a.Update(s)
			}
			if a.Paused != tt.want {
				t.Errorf("Paused = %v, want %v", a.Paused, tt.want)
			}
		})
	}
}

func TestAutoPause_CountersClearedOnTransition(t *testing.T) {
	a, _ := feed(DefaultAutoPause(), 0.5, 10)
	if a.below != 0 || a.above != 0 {
		t.Errorf("counters after pause = %d/%d, want 0/0", a.below, a.above)
	}
	a, _ = feed(a, 2.5, 3)
	if a.Paused || a.below != 0 || a.above != 0 {
		t.Errorf("after resume: paused=%v counters=%d/%d", a.Paused, a.below, a.above)
	}
}

func TestAutoPause_ValueSemantics(t *testing.T) {
	a := DefaultAutoPause()
	b := a.Update(0.1)
	if a.below != 0 {
		t.Error("Update must not modify the receiver")
	}
	if b.below != 1 {
		t.Errorf("below = %d, want 1", b.below)
	}
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}
