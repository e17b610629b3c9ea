package ride

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ridelog/pkg/model"
	"ridelog/pkg/tracker"
	"ridelog/pkg/wind"
)

type fakeWind struct {
	calls   atomic.Int32
	release chan struct{} // nil: answer immediately
	speed   float64
	err     error
	failAt  int32 // calls from this one on return err; 0: every call
}

func (f *fakeWind) FetchWind(ctx context.Context, lat, lon float64) (model.WindInfo, error) {
	n := f.calls.Add(1)
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return model.WindInfo{}, ctx.Err()
		}
	}
	if f.err != nil && n >= f.failAt {
		return model.WindInfo{}, f.err
	}
	speed := f.speed
	return model.WindInfo{SpeedKmh: &speed}, nil
}

func startRecorder(t *testing.T, opts Options) *Recorder {
	t.Helper()
	r := NewRecorder(opts)
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		wg.Wait()
	})
	return r
}

func sampleAt(i int, speed float64) model.GeoSample {
	return model.GeoSample{
		Lat:         52.0,
		Lon:         21.0 + float64(i)*0.0001,
		AltitudeM:   100,
		TimestampMs: 1_700_000_000_000 + int64(i)*1000,
		SpeedKmh:    speed,
	}
}

func waitFor(t *testing.T, r *Recorder, cond func(model.RideState) bool) model.RideState {
	t.Helper()
	require.Eventually(t, func() bool { return cond(r.Snapshot()) }, 2*time.Second, 5*time.Millisecond)
	return r.Snapshot()
}

func TestRecorder_Lifecycle(t *testing.T) {
	r := startRecorder(t, Options{TickInterval: time.Hour})
	ctx := context.Background()

	_, err := r.Stop(ctx)
	assert.ErrorIs(t, err, ErrNotRecording)

	st, err := r.Start(ctx)
	require.NoError(t, err)
	assert.True(t, st.Recording)
	assert.NotEmpty(t, st.RideID)
	assert.Equal(t, uint64(1), st.Generation)
	assert.Equal(t, "00:00:00", st.ElapsedText)

	_, err = r.Start(ctx)
	assert.ErrorIs(t, err, ErrAlreadyRecording)

	for i := 0; i < 3; i++ {
		require.NoError(t, r.Push(ctx, sampleAt(i, 20)))
	}
	waitFor(t, r, func(s model.RideState) bool { return len(s.Path) == 3 })

	final, err := r.Stop(ctx)
	require.NoError(t, err)
	assert.False(t, final.Recording)
	assert.False(t, final.Paused)
	assert.Len(t, final.Path, 3)
	assert.Greater(t, final.DistanceKm, 0.0)

	next, err := r.Start(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, st.RideID, next.RideID)
	assert.Greater(t, next.Generation, final.Generation)
	assert.Empty(t, next.Path)
	assert.Zero(t, next.DistanceKm)
}

func TestRecorder_DropsSamplesWhenIdle(t *testing.T) {
	r := startRecorder(t, Options{TickInterval: time.Hour})
	ctx := context.Background()

	require.NoError(t, r.Push(ctx, sampleAt(0, 10)))
	_, err := r.SetLocationPermission(ctx, true) // round trip through the loop
	require.NoError(t, err)

	snap := r.Snapshot()
	assert.Empty(t, snap.Path)
	assert.True(t, snap.LocationPermission)
}

func TestRecorder_ClampsNegativeSpeed(t *testing.T) {
	r := startRecorder(t, Options{TickInterval: time.Hour})
	ctx := context.Background()
	_, err := r.Start(ctx)
	require.NoError(t, err)

	require.NoError(t, r.Push(ctx, sampleAt(0, -3)))
	st := waitFor(t, r, func(s model.RideState) bool { return len(s.Path) == 1 })
	assert.Zero(t, st.Path[0].SpeedKmh)
}

func TestRecorder_WindMergedIntoState(t *testing.T) {
	fw := &fakeWind{speed: 14}
	r := startRecorder(t, Options{TickInterval: time.Hour, Wind: fw})
	ctx := context.Background()
	_, err := r.Start(ctx)
	require.NoError(t, err)

	require.NoError(t, r.Push(ctx, sampleAt(0, 20)))
	st := waitFor(t, r, func(s model.RideState) bool { return s.Wind.Known() })
	assert.Equal(t, 14.0, *st.Wind.SpeedKmh)

	// subsequent samples within the throttle window do not fetch again
	for i := 1; i < 5; i++ {
		require.NoError(t, r.Push(ctx, sampleAt(i, 20)))
	}
	st = waitFor(t, r, func(s model.RideState) bool { return len(s.Path) == 5 })
	assert.Equal(t, int32(1), fw.calls.Load())
	assert.True(t, st.Wind.Known(), "wind must survive later sample updates")
}

func TestRecorder_WindFailureKeepsPrevious(t *testing.T) {
	fw := &fakeWind{err: errors.New("timeout")}
	r := startRecorder(t, Options{TickInterval: time.Hour, Wind: fw})
	ctx := context.Background()
	_, err := r.Start(ctx)
	require.NoError(t, err)

	require.NoError(t, r.Push(ctx, sampleAt(0, 20)))
	require.Eventually(t, func() bool { return fw.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	// the failure was not recorded as a success, so the next sample is due again
	require.Eventually(t, func() bool {
		_ = r.Push(ctx, sampleAt(1, 20))
		return fw.calls.Load() >= 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.False(t, r.Snapshot().Wind.Known())
}

func TestRecorder_WindFailureAfterSuccessKeepsKnownWind(t *testing.T) {
	fw := &fakeWind{speed: 14, err: errors.New("timeout"), failAt: 2}
	r := startRecorder(t, Options{
		TickInterval: time.Hour,
		Wind:         fw,
		Throttle:     wind.NewThrottle(time.Second, 100),
	})
	ctx := context.Background()
	_, err := r.Start(ctx)
	require.NoError(t, err)

	require.NoError(t, r.Push(ctx, sampleAt(0, 20)))
	waitFor(t, r, func(s model.RideState) bool { return s.Wind.Known() })

	// one interval later a fetch is due again and fails
	require.NoError(t, r.Push(ctx, sampleAt(1, 20)))
	require.Eventually(t, func() bool { return fw.calls.Load() == 2 }, time.Second, 5*time.Millisecond)

	// a third fetch is only dispatched once the failed result was handled
	require.Eventually(t, func() bool {
		_ = r.Push(ctx, sampleAt(2, 20))
		return fw.calls.Load() >= 3
	}, 2*time.Second, 10*time.Millisecond)

	st := r.Snapshot()
	require.True(t, st.Wind.Known())
	assert.Equal(t, 14.0, *st.Wind.SpeedKmh)
}

func TestRecorder_RejectsNonFinitePosition(t *testing.T) {
	r := startRecorder(t, Options{TickInterval: time.Hour})
	ctx := context.Background()
	_, err := r.Start(ctx)
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*model.GeoSample)
	}{
		{"NaNLat", func(s *model.GeoSample) { s.Lat = math.NaN() }},
		{"InfLon", func(s *model.GeoSample) { s.Lon = math.Inf(-1) }},
		{"NaNAltitude", func(s *model.GeoSample) { s.AltitudeM = math.NaN() }},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := sampleAt(i, 20)
			tt.mutate(&s)
			assert.ErrorIs(t, r.Push(ctx, s), ErrInvalidSample)
		})
	}

	require.NoError(t, r.Push(ctx, sampleAt(10, 20)))
	st := waitFor(t, r, func(s model.RideState) bool { return len(s.Path) == 1 })
	assert.Zero(t, st.DistanceKm)
	assert.Equal(t, 0, st.ElevGainM)
}

func TestRecorder_StaleWindDiscarded(t *testing.T) {
	fw := &fakeWind{speed: 30, release: make(chan struct{})}
	tr := tracker.New()
	r := startRecorder(t, Options{
		TickInterval: time.Hour,
		Wind:         fw,
		WindProvider: "test",
		Tracker:      tr,
		Throttle:     wind.NewThrottle(5*time.Minute, 0.5),
	})
	ctx := context.Background()

	_, err := r.Start(ctx)
	require.NoError(t, err)
	require.NoError(t, r.Push(ctx, sampleAt(0, 20)))
	require.Eventually(t, func() bool { return fw.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	_, err = r.Stop(ctx)
	require.NoError(t, err)
	next, err := r.Start(ctx)
	require.NoError(t, err)

	close(fw.release)
	require.Eventually(t, func() bool {
		stats := tr.Snapshot()
		return len(stats) == 1 && stats[0].Stale == 1
	}, 2*time.Second, 5*time.Millisecond)

	snap := r.Snapshot()
	assert.Equal(t, next.RideID, snap.RideID)
	assert.False(t, snap.Wind.Known(), "result from the previous ride must not leak into the new one")
}

func TestRecorder_TickerAdvancesMovingTime(t *testing.T) {
	r := startRecorder(t, Options{TickInterval: 10 * time.Millisecond})
	ctx := context.Background()
	_, err := r.Start(ctx)
	require.NoError(t, err)

	st := waitFor(t, r, func(s model.RideState) bool { return s.MovingTime >= 50*time.Millisecond })
	assert.True(t, st.Recording)

	stopped, err := r.Stop(ctx)
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, stopped.MovingTime, r.Snapshot().MovingTime, "ticker must stop with the ride")
}

func TestRecorder_Subscribe(t *testing.T) {
	r := startRecorder(t, Options{TickInterval: time.Hour})
	ctx := context.Background()

	ch, unsubscribe := r.Subscribe()
	defer unsubscribe()

	first := <-ch
	assert.False(t, first.Recording)

	_, err := r.Start(ctx)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		require.NoError(t, r.Push(ctx, sampleAt(i, 20)))
	}

	// latest-wins: a reader that never keeps up still ends on the newest snapshot
	var latest model.RideState
	deadline := time.After(2 * time.Second)
	for len(latest.Path) < 10 {
		select {
		case latest = <-ch:
		case <-deadline:
			t.Fatalf("subscriber stuck at %d samples", len(latest.Path))
		}
	}
	assert.Len(t, latest.Path, 10)

	unsubscribe()
	unsubscribe()
}

func TestRecorder_MarkSaved(t *testing.T) {
	r := startRecorder(t, Options{TickInterval: time.Hour})
	st, err := r.MarkSaved(context.Background(), "ride_20240601_080000.gpx")
	require.NoError(t, err)
	assert.Equal(t, "ride_20240601_080000.gpx", st.LastSavedFileName)
}

func TestRecorder_ClosedAfterRunExits(t *testing.T) {
	r := NewRecorder(Options{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()
	cancel()
	<-done

	_, err := r.Start(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}
