package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"ridelog/internal/api"
	"ridelog/pkg/config"
	"ridelog/pkg/core"
	"ridelog/pkg/db"
	"ridelog/pkg/db/maintenance"
	"ridelog/pkg/logging"
	"ridelog/pkg/request"
	"ridelog/pkg/ride"
	"ridelog/pkg/source/mock"
	"ridelog/pkg/store"
	"ridelog/pkg/summary"
	"ridelog/pkg/tracker"
	"ridelog/pkg/version"
	"ridelog/pkg/wind"
)

const defaultConfigPath = "configs/ridelog.yaml"

var (
	configPath = flag.String("config", defaultConfigPath, "Path to the config file")
	initConfig = flag.Bool("init-config", false, "Generate default config file and exit")
)

func main() {
	flag.Parse()

	if *initConfig {
		if err := config.GenerateDefault(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Config file generated:", *configPath)
		return
	}

	if err := run(context.Background(), *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL ERROR: Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	appCfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cleanupLogs, err := logging.Init(&appCfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanupLogs()

	slog.Info("ridelog started", "version", version.Version)

	dbConn, st, err := initDB(appCfg)
	if err != nil {
		return err
	}
	defer dbConn.Close()

	if err := maintenance.Run(ctx, st, appCfg.Storage.RidesDir); err != nil {
		slog.Error("Maintenance tasks failed", "error", err)
	}

	tr := tracker.New()
	rec := newRecorder(appCfg, tr)

	// The recorder outlives ctx so an active ride can still be stopped and saved on shutdown.
	recCtx, recCancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		rec.Run(recCtx)
	}()
	defer func() {
		recCancel()
		wg.Wait()
	}()

	svc := core.NewRideService(rec, appCfg, summary.NewStore(appCfg.Storage.RidesDir), st)
	if sum, err := svc.Recover(ctx); err != nil {
		slog.Error("Ride recovery failed", "error", err)
	} else if sum != nil {
		slog.Info("Recovered interrupted ride", "path", sum.FilePath, "distance_km", sum.DistanceKm)
	}
	if err := svc.RestorePermission(ctx); err != nil {
		slog.Warn("Failed to restore location permission", "error", err)
	}

	core.NewCheckpointJob(st, rec, appCfg.Checkpoint.Interval.Std()).Start(ctx)

	if err := startSource(ctx, appCfg, svc, rec); err != nil {
		return err
	}

	serverErr := runServer(ctx, appCfg, svc, rec, tr)

	// Save whatever is being recorded before the recorder goes away.
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	stopActiveRide(stopCtx, svc)

	return serverErr
}

func initDB(appCfg *config.Config) (*db.DB, store.Store, error) {
	dbConn, err := db.Init(appCfg.DB.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return dbConn, store.NewSQLiteStore(dbConn), nil
}

func newRecorder(cfg *config.Config, tr *tracker.Tracker) *ride.Recorder {
	opts := ride.Options{
		TickInterval:  cfg.Ride.TickInterval.Std(),
		SampleBuffer:  cfg.Ride.SampleBuffer,
		NoiseCeilingM: cfg.Ride.ElevNoiseMaxM,
		AutoPause:     cfg.Ride.AutoPause,
		WindTimeout:   cfg.Wind.Timeout.Std(),
		Throttle:      wind.NewThrottle(cfg.Wind.MinInterval.Std(), cfg.Wind.MinDistance.Km()),
		Tracker:       tr,
	}

	if cfg.Wind.Enabled {
		reqClient := request.New(request.ClientConfig{
			Retries:        cfg.Request.Retries,
			ConnectTimeout: cfg.Request.ConnectTimeout.Std(),
			ReadTimeout:    cfg.Request.ReadTimeout.Std(),
			BaseDelay:      cfg.Request.BaseDelay.Std(),
		}, tr)
		opts.Wind = wind.NewClient(reqClient, cfg.Wind.URL)
		opts.WindProvider = request.Provider(cfg.Wind.URL)
	} else {
		slog.Info("Wind enrichment disabled")
	}

	return ride.NewRecorder(opts)
}

func startSource(ctx context.Context, cfg *config.Config, svc *core.RideService, rec *ride.Recorder) error {
	switch cfg.Source.Provider {
	case "mock":
		src := mock.New(mock.ConfigFrom(cfg.Source.Mock))
		if cfg.Source.Mock.AutoStart {
			if _, err := svc.Start(ctx); err != nil {
				return fmt.Errorf("failed to start ride: %w", err)
			}
		}
		go func() {
			if err := src.Run(ctx, rec); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
				slog.Error("Mock source stopped", "error", err)
			}
		}()
	default:
		slog.Info("No built-in sample source, waiting for samples on the API")
	}
	return nil
}

func stopActiveRide(ctx context.Context, svc *core.RideService) {
	if !svc.Snapshot().Recording {
		return
	}
	slog.Info("Saving active ride before exit")
	sum, err := svc.Stop(ctx)
	if err != nil {
		slog.Error("Failed to save active ride", "error", err)
		return
	}
	if sum != nil {
		slog.Info("Active ride saved", "path", sum.FilePath)
	}
}

func runServer(ctx context.Context, cfg *config.Config, svc *core.RideService, rec *ride.Recorder, tr *tracker.Tracker) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)
	shutdownFunc := func() { quit <- syscall.SIGTERM }

	srv := api.NewServer(cfg.Server.Address,
		api.NewRideHandler(svc, rec),
		api.NewStatsHandler(tr),
		shutdownFunc,
	)

	srv.Handler = loggingMiddleware(srv.Handler)
	return runServerLifecycle(ctx, srv, quit)
}

func runServerLifecycle(ctx context.Context, srv *http.Server, quit chan os.Signal) error {
	slog.Info("Starting server", "addr", srv.Addr)
	serverErrors := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()
	select {
	case <-quit:
		slog.Info("Shutting down server...")
	case <-ctx.Done():
		slog.Info("Context cancelled, shutting down...")
	case err := <-serverErrors:
		return fmt.Errorf("server failed: %w", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("Request Processed", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
