package ride

import (
	"context"
	"log/slog"
	"time"

	"ridelog/pkg/model"
)

// message is a command applied by the Run loop.
type message interface {
	isMessage()
}

type commandResult struct {
	state model.RideState
	err   error
}

type startRide struct {
	reply chan<- commandResult
}

type stopRide struct {
	reply chan<- commandResult
}

type setPermission struct {
	granted bool
	reply   chan<- commandResult
}

type markSaved struct {
	fileName string
	reply    chan<- commandResult
}

// windResolved carries a finished fetch back to the loop, tagged with the
// generation of the ride that dispatched it.
type windResolved struct {
	generation uint64
	info       model.WindInfo
	err        error
	sample     model.GeoSample
}

func (startRide) isMessage()     {}
func (stopRide) isMessage()      {}
func (setPermission) isMessage() {}
func (markSaved) isMessage()     {}
func (windResolved) isMessage()  {}

func (r *Recorder) handle(m message) {
	switch m := m.(type) {
	case startRide:
		m.reply <- r.handleStart()
	case stopRide:
		m.reply <- r.handleStop()
	case setPermission:
		r.state.LocationPermission = m.granted
		r.commit()
		m.reply <- commandResult{state: r.state}
	case markSaved:
		r.state.LastSavedFileName = m.fileName
		r.commit()
		m.reply <- commandResult{state: r.state}
	case windResolved:
		r.handleWind(m)
	}
}

func (r *Recorder) handleStart() commandResult {
	if r.state.Recording {
		return commandResult{state: r.state, err: ErrAlreadyRecording}
	}

	now := r.opts.Now()
	r.generation++

	next := model.NewRideState()
	next.RideID = r.newRideID()
	next.Generation = r.generation
	next.Recording = true
	next.LocationPermission = r.state.LocationPermission
	next.LastSavedFileName = r.state.LastSavedFileName
	next.StartTimestampMs = now.UnixMilli()

	r.state = next
	r.det = NewAutoPause(r.opts.AutoPause)
	r.opts.Throttle.Reset()
	r.startTicker(now)
	r.commit()

	r.logger().Info("Ride started", "generation", r.generation)
	return commandResult{state: r.state}
}

func (r *Recorder) handleStop() commandResult {
	if !r.state.Recording {
		return commandResult{state: r.state, err: ErrNotRecording}
	}

	r.stopTicker()
	// Any fetch still in flight now belongs to a superseded generation.
	r.generation++

	r.state.Recording = false
	r.state.Paused = false
	r.commit()

	r.logger().Info("Ride stopped",
		"distance_km", r.state.DistanceKm,
		"samples", len(r.state.Path),
		"moving", r.state.MovingTime.Round(time.Second))
	return commandResult{state: r.state}
}

func (r *Recorder) handleSample(ctx context.Context, s model.GeoSample) {
	if !r.state.Recording {
		return
	}

	wasPaused := r.state.Paused
	r.state, r.det = Accumulate(r.state, r.det, s, r.opts.NoiseCeilingM)
	r.commit()

	if wasPaused != r.state.Paused {
		r.logger().Info("Auto-pause", "paused", r.state.Paused, "speed_kmh", s.SpeedKmh)
	}

	r.maybeDispatchWind(ctx, s)
}

func (r *Recorder) handleTick(now time.Time) {
	if !r.state.Recording {
		return
	}
	r.state = Tick(r.state, r.lastTick, now)
	r.lastTick = now
	r.commit()
}

func (r *Recorder) maybeDispatchWind(ctx context.Context, s model.GeoSample) {
	if r.opts.Wind == nil || r.windPending == r.generation {
		return
	}
	if !r.opts.Throttle.Due(s.Time(), s.Point()) {
		return
	}

	gen := r.generation
	r.windPending = gen
	go func() {
		fctx, cancel := context.WithTimeout(ctx, r.opts.WindTimeout)
		defer cancel()

		info, err := r.opts.Wind.FetchWind(fctx, s.Lat, s.Lon)
		msg := windResolved{generation: gen, info: info, err: err, sample: s}
		select {
		case r.msgs <- msg:
		case <-ctx.Done():
		}
	}()
}

// handleWind merges a fetch result into the Wind field only, and only if the
// ride that requested it is still the current one.
func (r *Recorder) handleWind(m windResolved) {
	if m.generation == r.windPending {
		r.windPending = 0
	}

	if m.err != nil {
		slog.Debug("Wind fetch failed", "generation", m.generation, "error", m.err)
		return
	}
	if m.generation != r.generation || !r.state.Recording {
		slog.Debug("Discarding stale wind result", "generation", m.generation, "current", r.generation)
		if r.opts.Tracker != nil {
			r.opts.Tracker.TrackStale(r.opts.WindProvider)
		}
		return
	}

	r.opts.Throttle.RecordSuccess(m.sample.Time(), m.sample.Point())
	r.state.Wind = m.info
	r.commit()
}
