package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"ridelog/pkg/version"
)

// NewServer creates and configures the HTTP server.
// It accepts handlers for all API endpoints and a shutdownFunc for graceful shutdown.
func NewServer(addr string, rides *RideHandler, stats *StatsHandler, shutdown func()) *http.Server {
	mux := http.NewServeMux()

	// 1. Health Endpoint
	mux.HandleFunc("GET /health", handleHealth)

	// 2. Version Endpoint
	mux.HandleFunc("GET /api/version", handleVersion)

	// 3. Ride Endpoints
	mux.HandleFunc("GET /api/ride", rides.HandleState)
	mux.HandleFunc("POST /api/ride/start", rides.HandleStart)
	mux.HandleFunc("POST /api/ride/stop", rides.HandleStop)
	mux.HandleFunc("POST /api/ride/permission", rides.HandlePermission)
	mux.HandleFunc("GET /api/ride/stream", rides.HandleStream)
	mux.HandleFunc("GET /api/ride/track.geojson", rides.HandleTrack)
	mux.HandleFunc("GET /api/ride/stats", rides.HandleRideStats)
	mux.HandleFunc("GET /api/rides", rides.HandleRides)

	// 4. Sample Ingest
	mux.HandleFunc("POST /api/samples", rides.HandleSamples)

	// 5. Stats Endpoint
	mux.Handle("GET /api/stats", stats)

	// 6. Shutdown Endpoint
	mux.HandleFunc("POST /api/shutdown", func(w http.ResponseWriter, r *http.Request) {
		slog.Info("Graceful shutdown initiated via API")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("Shutting down...")); err != nil {
			slog.Error("Failed to write shutdown response", "error", err)
		}
		// Call shutdown in a goroutine to allow response to flush
		go func() {
			time.Sleep(100 * time.Millisecond)
			shutdown()
		}()
	})

	return &http.Server{
		Addr:        addr,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
		// no WriteTimeout: the ride stream is long-lived and sets its own write deadlines
		IdleTimeout: 60 * time.Second,
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		slog.Error("Failed to write health response", "error", err)
	}
}

func handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if _, err := fmt.Fprintf(w, `{"version": "%s"}`, version.Version); err != nil {
		slog.Error("Failed to write version response", "error", err)
	}
}
