package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
	DB         DBConfig         `yaml:"db"`
	Storage    StorageConfig    `yaml:"storage"`
	Ride       RideConfig       `yaml:"ride"`
	Wind       WindConfig       `yaml:"wind"`
	Request    RequestConfig    `yaml:"request"`
	Export     ExportConfig     `yaml:"export"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
	Source     SourceConfig     `yaml:"source"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Server LogSettings `yaml:"server"`
	Events LogSettings `yaml:"events"`
}

// LogSettings holds settings for a specific logger.
type LogSettings struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

// DBConfig holds database settings.
type DBConfig struct {
	Path string `yaml:"path"`
}

// StorageConfig holds the location of ride tracks and summary records.
type StorageConfig struct {
	RidesDir string `yaml:"rides_dir"`
	// Location used for summary date text and file names ("Local" or an IANA name).
	Timezone string `yaml:"timezone"`
}

// RideConfig holds accumulation settings.
type RideConfig struct {
	TickInterval  Duration    `yaml:"tick_interval"`
	SampleBuffer  int         `yaml:"sample_buffer"`
	ElevNoiseMaxM float64     `yaml:"elev_noise_max_m"`
	AutoPause     PauseConfig `yaml:"auto_pause"`
}

// PauseConfig holds the auto-pause hysteresis thresholds.
type PauseConfig struct {
	PauseBelowKmh  float64 `yaml:"pause_below_kmh"`
	ResumeAboveKmh float64 `yaml:"resume_above_kmh"`
	PauseAfter     int     `yaml:"pause_after"`  // consecutive samples
	ResumeAfter    int     `yaml:"resume_after"` // consecutive samples
}

// WindConfig holds wind enrichment settings.
type WindConfig struct {
	Enabled     bool     `yaml:"enabled"`
	URL         string   `yaml:"url"`
	MinInterval Duration `yaml:"min_interval"`
	MinDistance Distance `yaml:"min_distance"`
	Timeout     Duration `yaml:"timeout"`
}

// RequestConfig holds HTTP request settings.
type RequestConfig struct {
	Retries        int      `yaml:"retries"`
	ConnectTimeout Duration `yaml:"connect_timeout"`
	ReadTimeout    Duration `yaml:"read_timeout"`
	BaseDelay      Duration `yaml:"base_delay"`
}

// ExportConfig toggles the supplementary track exports written next to the GPX file.
type ExportConfig struct {
	FIT     bool `yaml:"fit"`
	GeoJSON bool `yaml:"geojson"`
	Parquet bool `yaml:"parquet"`
}

// CheckpointConfig holds crash-recovery checkpoint settings.
type CheckpointConfig struct {
	Interval Duration `yaml:"interval"`
}

// SourceConfig selects the built-in sample source.
type SourceConfig struct {
	Provider string           `yaml:"provider"` // "none", "mock"
	Mock     MockSourceConfig `yaml:"mock"`
}

// MockSourceConfig holds settings for the simulated ride.
type MockSourceConfig struct {
	StartLat     float64  `yaml:"start_lat"`
	StartLon     float64  `yaml:"start_lon"`
	StartAlt     float64  `yaml:"start_alt"`
	Heading      float64  `yaml:"heading"`
	SpeedKmh     float64  `yaml:"speed_kmh"`
	Interval     Duration `yaml:"interval"`
	RideDuration Duration `yaml:"ride_duration"` // riding leg before each stop
	StopDuration Duration `yaml:"stop_duration"`
	AutoStart    bool     `yaml:"auto_start"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address: "localhost:8420",
		},
		Log: LogConfig{
			Server: LogSettings{
				Path:  "./logs/server.log",
				Level: "INFO",
			},
			Events: LogSettings{
				Path:  "./logs/rides.log",
				Level: "INFO",
			},
		},
		DB: DBConfig{
			Path: "./data/ridelog.db",
		},
		Storage: StorageConfig{
			RidesDir: "./data/rides",
			Timezone: "Local",
		},
		Ride: RideConfig{
			TickInterval:  Duration(1 * time.Second),
			SampleBuffer:  64,
			ElevNoiseMaxM: 5.0,
			AutoPause: PauseConfig{
				PauseBelowKmh:  1.0,
				ResumeAboveKmh: 2.0,
				PauseAfter:     10,
				ResumeAfter:    3,
			},
		},
		Wind: WindConfig{
			Enabled:     true,
			URL:         "https://api.open-meteo.com/v1/forecast",
			MinInterval: Duration(5 * time.Minute),
			MinDistance: Distance(500),
			Timeout:     Duration(20 * time.Second),
		},
		Request: RequestConfig{
			Retries:        0,
			ConnectTimeout: Duration(8 * time.Second),
			ReadTimeout:    Duration(8 * time.Second),
			BaseDelay:      Duration(500 * time.Millisecond),
		},
		Export: ExportConfig{
			FIT:     true,
			GeoJSON: false,
			Parquet: false,
		},
		Checkpoint: CheckpointConfig{
			Interval: Duration(30 * time.Second),
		},
		Source: SourceConfig{
			Provider: "none",
			Mock: MockSourceConfig{
				StartLat:     52.2297,
				StartLon:     21.0122,
				StartAlt:     100.0,
				Heading:      90.0,
				SpeedKmh:     22.0,
				Interval:     Duration(1 * time.Second),
				RideDuration: Duration(3 * time.Minute),
				StopDuration: Duration(20 * time.Second),
				AutoStart:    false,
			},
		},
	}
}

// Location resolves the configured timezone, falling back to time.Local.
func (c *StorageConfig) Location() *time.Location {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Load loads the configuration from the given path.
// If the file does not exist, it creates it with default values.
// If the file exists, it merges defaults with existing values but does NOT save back to disk.
// A .env file next to the working directory is loaded first, if present.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := DefaultConfig()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if err := Save(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to save config file: %w", err)
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides selected settings from the environment (never saved back to disk).
func applyEnv(cfg *Config) {
	if v := os.Getenv("RIDELOG_ADDR"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("RIDELOG_WIND_URL"); v != "" {
		cfg.Wind.URL = v
	}
	if v := os.Getenv("RIDELOG_RIDES_DIR"); v != "" {
		cfg.Storage.RidesDir = v
	}
}

// Validate checks settings the ride engine cannot run without.
func (c *Config) Validate() error {
	p := c.Ride.AutoPause
	if p.PauseAfter < 1 || p.ResumeAfter < 1 {
		return fmt.Errorf("invalid auto_pause: pause_after and resume_after must be >= 1")
	}
	if p.ResumeAboveKmh < p.PauseBelowKmh {
		return fmt.Errorf("invalid auto_pause: resume_above_kmh (%.2f) below pause_below_kmh (%.2f)", p.ResumeAboveKmh, p.PauseBelowKmh)
	}
	if c.Ride.SampleBuffer < 1 {
		return fmt.Errorf("invalid ride.sample_buffer %d: must be >= 1", c.Ride.SampleBuffer)
	}
	if c.Storage.RidesDir == "" {
		return fmt.Errorf("storage.rides_dir must not be empty")
	}
	switch c.Source.Provider {
	case "", "none", "mock":
	default:
		return fmt.Errorf("unknown source provider '%s'", c.Source.Provider)
	}
	return nil
}

// Save writes the configuration to the path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# ridelog configuration
# ---------------------
# Supported Units:
#   Duration: ms, s, m, h, d (day)
#   Distance: m (meters), km (kilometers)

`)
	data = append(header, data...)

	reProvider := regexp.MustCompile(`(?m)^(\s+)provider:`)
	data = reProvider.ReplaceAll(data, []byte("${1}# Options: none, mock\n${1}provider:"))

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateDefault creates a default config file at the given path.
// Returns nil if the file already exists.
func GenerateDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return Save(path, DefaultConfig())
}
