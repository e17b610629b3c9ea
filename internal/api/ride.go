package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"ridelog/pkg/model"
	"ridelog/pkg/ride"
	"ridelog/pkg/track"
)

const (
	maxSampleBody   = 1 << 20
	streamWriteWait = 10 * time.Second
)

// RideController is the ride lifecycle as exposed to HTTP clients.
type RideController interface {
	Snapshot() model.RideState
	Start(ctx context.Context) (model.RideState, error)
	Stop(ctx context.Context) (*model.RideSummary, error)
	SetLocationPermission(ctx context.Context, granted bool) (model.RideState, error)
	Rides() ([]model.RideSummary, error)
	Stats() ride.SpeedStats
}

// SampleFeed accepts samples and publishes ride snapshots.
type SampleFeed interface {
	Push(ctx context.Context, s model.GeoSample) error
	Subscribe() (<-chan model.RideState, func())
}

type RideHandler struct {
	ctl      RideController
	feed     SampleFeed
	upgrader websocket.Upgrader
	now      func() time.Time
}

func NewRideHandler(ctl RideController, feed SampleFeed) *RideHandler {
	return &RideHandler{
		ctl:  ctl,
		feed: feed,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		now: time.Now,
	}
}

// StopResponse carries the saved summary; Summary is null when the ride had no samples.
type StopResponse struct {
	Summary *model.RideSummary `json:"summary"`
	State   model.RideState    `json:"state"`
}

type PermissionRequest struct {
	Granted bool `json:"granted"`
}

type SamplesResponse struct {
	Accepted int `json:"accepted"`
}

// StreamMessage is one websocket frame: the snapshot without its path.
type StreamMessage struct {
	model.RideState
	Samples int `json:"samples"`
}

func (h *RideHandler) HandleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ctl.Snapshot())
}

func (h *RideHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	st, err := h.ctl.Start(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *RideHandler) HandleStop(w http.ResponseWriter, r *http.Request) {
	sum, err := h.ctl.Stop(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, StopResponse{Summary: sum, State: h.ctl.Snapshot()})
}

func (h *RideHandler) HandlePermission(w http.ResponseWriter, r *http.Request) {
	var req PermissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid permission request: %w", err))
		return
	}
	st, err := h.ctl.SetLocationPermission(r.Context(), req.Granted)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// HandleSamples accepts one sample object or an array of samples. Samples
// without a timestamp are stamped with the arrival time.
func (h *RideHandler) HandleSamples(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxSampleBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	samples, err := decodeSamples(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	now := h.now().UnixMilli()
	for i := range samples {
		if err := validateSample(samples[i]); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("sample %d: %w", i, err))
			return
		}
		if samples[i].TimestampMs == 0 {
			samples[i].TimestampMs = now
		}
	}

	for i, s := range samples {
		if err := h.feed.Push(r.Context(), s); err != nil {
			slog.Warn("Sample ingest interrupted", "accepted", i, "error", err)
			writeError(w, statusFor(err), err)
			return
		}
	}
	writeJSON(w, http.StatusAccepted, SamplesResponse{Accepted: len(samples)})
}

func decodeSamples(body []byte) ([]model.GeoSample, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, errors.New("empty body")
	}
	if trimmed[0] == '[' {
		var out []model.GeoSample
		if err := json.Unmarshal(trimmed, &out); err != nil {
			return nil, fmt.Errorf("invalid samples: %w", err)
		}
		return out, nil
	}
	var s model.GeoSample
	if err := json.Unmarshal(trimmed, &s); err != nil {
		return nil, fmt.Errorf("invalid sample: %w", err)
	}
	return []model.GeoSample{s}, nil
}

func validateSample(s model.GeoSample) error {
	if math.IsNaN(s.Lat) || s.Lat < -90 || s.Lat > 90 {
		return fmt.Errorf("latitude %v out of range", s.Lat)
	}
	if math.IsNaN(s.Lon) || s.Lon < -180 || s.Lon > 180 {
		return fmt.Errorf("longitude %v out of range", s.Lon)
	}
	return nil
}

func (h *RideHandler) HandleRides(w http.ResponseWriter, r *http.Request) {
	rides, err := h.ctl.Rides()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, rides)
}

func (h *RideHandler) HandleRideStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ctl.Stats())
}

// HandleTrack renders the current ride path as GeoJSON.
func (h *RideHandler) HandleTrack(w http.ResponseWriter, r *http.Request) {
	st := h.ctl.Snapshot()
	end := h.now()
	if last, ok := st.LastSample(); ok {
		end = last.Time()
	}
	t := track.FromRide(st, end, nil)
	t.Name = st.RideID

	data, err := track.GeoJSON(t).MarshalJSON()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	if _, err := w.Write(data); err != nil {
		slog.Error("Failed to write track response", "error", err)
	}
}

// HandleStream upgrades to a websocket and sends every published snapshot
// (latest-wins) until the client goes away.
func (h *RideHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		slog.Debug("Ride stream upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	updates, unsubscribe := h.feed.Subscribe()
	defer unsubscribe()

	// The read loop only detects the client closing the connection.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-closed:
			return
		case st := <-updates:
			msg := StreamMessage{RideState: st, Samples: len(st.Path)}
			msg.Path = nil
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteJSON(msg); err != nil {
				slog.Debug("Ride stream closed", "error", err)
				return
			}
		}
	}
}
