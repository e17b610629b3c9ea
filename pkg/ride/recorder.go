// Package ride implements the ride accumulation engine: the auto-pause detector,
// the sample reducer, the wall-clock ticker and the single-writer Recorder that
// owns the canonical ride state.
package ride

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"ridelog/pkg/config"
	"ridelog/pkg/model"
	"ridelog/pkg/tracker"
	"ridelog/pkg/wind"
)

var (
	ErrAlreadyRecording = errors.New("ride already recording")
	ErrNotRecording     = errors.New("no ride recording")
	ErrClosed           = errors.New("recorder stopped")
	ErrInvalidSample    = errors.New("sample position is not finite")
)

// WindFetcher resolves the current wind at a position.
type WindFetcher interface {
	FetchWind(ctx context.Context, lat, lon float64) (model.WindInfo, error)
}

// Options configures a Recorder. Zero values fall back to defaults.
type Options struct {
	TickInterval  time.Duration
	SampleBuffer  int
	NoiseCeilingM float64
	AutoPause     config.PauseConfig

	Wind         WindFetcher // nil disables enrichment
	WindProvider string      // tracker key for discarded results
	WindTimeout  time.Duration
	Throttle     *wind.Throttle
	Tracker      *tracker.Tracker

	Now func() time.Time
}

// Recorder is the only writer of the ride state. Samples, ticks, wind results and
// lifecycle commands are applied one at a time by Run; readers get immutable
// snapshots through Snapshot and Subscribe.
type Recorder struct {
	opts Options

	samples chan model.GeoSample
	msgs    chan message
	done    chan struct{}

	current atomic.Pointer[model.RideState]

	subMu sync.Mutex
	subs  map[chan model.RideState]struct{}

	// owned by Run
	state       model.RideState
	det         AutoPause
	generation  uint64
	windPending uint64 // generation of the in-flight fetch, 0 if none
	lastTick    time.Time
	ticker      *time.Ticker
}

// NewRecorder creates an idle Recorder. Call Run to start processing.
func NewRecorder(opts Options) *Recorder {
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Second
	}
	if opts.SampleBuffer <= 0 {
		opts.SampleBuffer = 64
	}
	if opts.NoiseCeilingM <= 0 {
		opts.NoiseCeilingM = DefaultNoiseCeilingM
	}
	if opts.AutoPause.PauseAfter == 0 {
		opts.AutoPause = config.DefaultConfig().Ride.AutoPause
	}
	if opts.WindTimeout <= 0 {
		opts.WindTimeout = 20 * time.Second
	}
	if opts.Throttle == nil {
		opts.Throttle = wind.NewThrottle(5*time.Minute, 0.5)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	r := &Recorder{
		opts:    opts,
		samples: make(chan model.GeoSample, opts.SampleBuffer),
		msgs:    make(chan message, 8),
		done:    make(chan struct{}),
		subs:    make(map[chan model.RideState]struct{}),
		state:   model.NewRideState(),
		det:     NewAutoPause(opts.AutoPause),
	}
	initial := r.state
	r.current.Store(&initial)
	return r
}

// Snapshot returns the latest committed ride state.
func (r *Recorder) Snapshot() model.RideState {
	return *r.current.Load()
}

// Subscribe returns a channel that always holds the most recent snapshot; slow
// readers skip intermediate states. The returned func unsubscribes.
func (r *Recorder) Subscribe() (<-chan model.RideState, func()) {
	ch := make(chan model.RideState, 1)
	ch <- r.Snapshot()

	r.subMu.Lock()
	r.subs[ch] = struct{}{}
	r.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			r.subMu.Lock()
			delete(r.subs, ch)
			r.subMu.Unlock()
		})
	}
}

// Push hands a sample to the recorder. Negative speeds are clamped to zero and
// samples with a NaN or infinite position are rejected with ErrInvalidSample.
// Samples arriving while no ride is recording are dropped by the loop.
func (r *Recorder) Push(ctx context.Context, s model.GeoSample) error {
	if !finite(s.Lat) || !finite(s.Lon) || !finite(s.AltitudeM) {
		return ErrInvalidSample
	}
	if s.SpeedKmh < 0 || math.IsNaN(s.SpeedKmh) {
		s.SpeedKmh = 0
	}
	select {
	case r.samples <- s:
		return nil
	case <-r.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start begins a new ride and returns its first snapshot.
func (r *Recorder) Start(ctx context.Context) (model.RideState, error) {
	reply := make(chan commandResult, 1)
	if err := r.send(ctx, startRide{reply: reply}); err != nil {
		return model.RideState{}, err
	}
	return r.await(ctx, reply)
}

// Stop ends the current ride and returns its final snapshot.
func (r *Recorder) Stop(ctx context.Context) (model.RideState, error) {
	reply := make(chan commandResult, 1)
	if err := r.send(ctx, stopRide{reply: reply}); err != nil {
		return model.RideState{}, err
	}
	return r.await(ctx, reply)
}

// SetLocationPermission records whether the position source may be used.
func (r *Recorder) SetLocationPermission(ctx context.Context, granted bool) (model.RideState, error) {
	reply := make(chan commandResult, 1)
	if err := r.send(ctx, setPermission{granted: granted, reply: reply}); err != nil {
		return model.RideState{}, err
	}
	return r.await(ctx, reply)
}

// MarkSaved records the file name of the last persisted track.
func (r *Recorder) MarkSaved(ctx context.Context, fileName string) (model.RideState, error) {
	reply := make(chan commandResult, 1)
	if err := r.send(ctx, markSaved{fileName: fileName, reply: reply}); err != nil {
		return model.RideState{}, err
	}
	return r.await(ctx, reply)
}

func (r *Recorder) send(ctx context.Context, m message) error {
	select {
	case r.msgs <- m:
		return nil
	case <-r.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Recorder) await(ctx context.Context, reply <-chan commandResult) (model.RideState, error) {
	select {
	case res := <-reply:
		return res.state, res.err
	case <-r.done:
		return model.RideState{}, ErrClosed
	case <-ctx.Done():
		return model.RideState{}, ctx.Err()
	}
}

// Run processes messages until ctx is cancelled. It must be called exactly once.
func (r *Recorder) Run(ctx context.Context) {
	defer close(r.done)
	defer r.stopTicker()

	for {
		select {
		case <-ctx.Done():
			return
		case s := <-r.samples:
			r.handleSample(ctx, s)
		case m := <-r.msgs:
			r.handle(m)
		case <-r.tickC():
			r.handleTick(r.opts.Now())
		}
	}
}

// tickC returns the ticker channel, or nil (blocks forever) when not recording.
func (r *Recorder) tickC() <-chan time.Time {
	if r.ticker == nil {
		return nil
	}
	return r.ticker.C
}

func (r *Recorder) startTicker(now time.Time) {
	r.stopTicker()
	r.lastTick = now
	r.ticker = time.NewTicker(r.opts.TickInterval)
}

func (r *Recorder) stopTicker() {
	if r.ticker != nil {
		r.ticker.Stop()
		r.ticker = nil
	}
}

func (r *Recorder) newRideID() string {
	return uuid.NewString()
}

// commit publishes the loop's state to readers.
func (r *Recorder) commit() {
	snap := r.state
	r.current.Store(&snap)

	r.subMu.Lock()
	defer r.subMu.Unlock()
	for ch := range r.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

func (r *Recorder) logger() *slog.Logger {
	return slog.With("ride_id", r.state.RideID)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
