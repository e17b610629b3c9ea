package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name     string
		content  string // empty: no file on disk
		validate func(*testing.T, *Config)
		wantErr  bool
	}{
		{
			name: "NewFile_Defaults",
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 10, cfg.Ride.AutoPause.PauseAfter)
				assert.Equal(t, 3, cfg.Ride.AutoPause.ResumeAfter)
				assert.Equal(t, 5*time.Minute, cfg.Wind.MinInterval.Std())
				assert.InDelta(t, 0.5, cfg.Wind.MinDistance.Km(), 1e-9)
				assert.Equal(t, 0, cfg.Request.Retries)
			},
		},
		{
			name:    "ExistingFile_Override",
			content: "wind:\n  min_interval: 10m\n  min_distance: 1km\nride:\n  auto_pause:\n    pause_after: 4\n",
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 10*time.Minute, cfg.Wind.MinInterval.Std())
				assert.Equal(t, Distance(1000), cfg.Wind.MinDistance)
				assert.Equal(t, 4, cfg.Ride.AutoPause.PauseAfter)
				// untouched keys keep their defaults
				assert.Equal(t, 3, cfg.Ride.AutoPause.ResumeAfter)
				assert.Equal(t, "localhost:8420", cfg.Server.Address)
			},
		},
		{
			name:    "Invalid_Provider",
			content: "source:\n  provider: gpsd\n",
			wantErr: true,
		},
		{
			name:    "Invalid_Hysteresis",
			content: "ride:\n  auto_pause:\n    pause_below_kmh: 3\n    resume_above_kmh: 2\n",
			wantErr: true,
		},
		{
			name:    "Malformed_YAML",
			content: "ride: [unclosed\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "ridelog.yaml")
			if tt.content != "" {
				require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))
			}

			cfg, err := Load(path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.validate(t, cfg)

			_, statErr := os.Stat(path)
			assert.NoError(t, statErr, "config file should exist after Load")
		})
	}
}

func TestLoad_DoesNotRewriteExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ridelog.yaml")
	original := "server:\n  address: 0.0.0.0:9000\n"
	require.NoError(t, os.WriteFile(path, []byte(original), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Address)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, original, string(data))
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("RIDELOG_RIDES_DIR", "/tmp/rides-from-env")
	path := filepath.Join(t.TempDir(), "ridelog.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/rides-from-env", cfg.Storage.RidesDir)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "rides-from-env", "env overrides must not be persisted")
}

func TestSave_Annotations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ridelog.yaml")
	require.NoError(t, Save(path, DefaultConfig()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	assert.True(t, strings.HasPrefix(content, "# ridelog configuration"))
	assert.Contains(t, content, "# Options: none, mock")
	assert.Contains(t, content, "min_distance: 500m")
	assert.Contains(t, content, "min_interval: 5m0s")
}

func TestGenerateDefault_KeepsExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "ridelog.yaml")
	require.NoError(t, GenerateDefault(path))

	require.NoError(t, os.WriteFile(path, []byte("custom: true\n"), 0o644))
	require.NoError(t, GenerateDefault(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "custom: true\n", string(data))
}

func TestStorageLocation(t *testing.T) {
	tests := []struct {
		tz   string
		want string
	}{
		{"", time.Local.String()},
		{"Local", time.Local.String()},
		{"UTC", "UTC"},
		{"Not/AZone", time.Local.String()},
	}
	for _, tt := range tests {
		c := StorageConfig{Timezone: tt.tz}
		assert.Equal(t, tt.want, c.Location().String(), "timezone %q", tt.tz)
	}
}
