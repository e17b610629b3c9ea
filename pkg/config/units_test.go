package config

import (
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input    string
		expected time.Duration
		wantErr  bool
	}{
		{"30s", 30 * time.Second, false},
		{"5m", 5 * time.Minute, false},
		{"1.5h", 90 * time.Minute, false},
		{"250ms", 250 * time.Millisecond, false},
		{"1d", 24 * time.Hour, false},
		{"1d12h", 36 * time.Hour, false},
		{"0.5d", 12 * time.Hour, false},
		{"", 0, false},
		{"soon", 0, true},
		{"2dx", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseDuration(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDuration(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.expected {
			t.Errorf("ParseDuration(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

func TestParseDistance(t *testing.T) {
	tests := []struct {
		input    string
		expected float64
		wantErr  bool
	}{
		{"500m", 500, false},
		{"0.5km", 500, false},
		{"750", 750, false},
		{" 2 km ", 2000, false},
		{"-5m", 0, true},
		{"far", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseDistance(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDistance(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.expected {
			t.Errorf("ParseDistance(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

func TestUnitsYAML(t *testing.T) {
	type holder struct {
		Every Duration `yaml:"every"`
		Far   Distance `yaml:"far"`
		Near  Distance `yaml:"near"`
	}

	var h holder
	in := "every: 1d\nfar: 1.2km\nnear: 300\n"
	if err := yaml.Unmarshal([]byte(in), &h); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if h.Every.Std() != 24*time.Hour {
		t.Errorf("Every = %v, want 24h", h.Every.Std())
	}
	if h.Far != 1200 {
		t.Errorf("Far = %v, want 1200", h.Far)
	}
	if h.Near.Km() != 0.3 {
		t.Errorf("Near.Km() = %v, want 0.3", h.Near.Km())
	}

	out, err := yaml.Marshal(h)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back holder
	if err := yaml.Unmarshal(out, &back); err != nil {
		t.Fatalf("unmarshal of %q: %v", out, err)
	}
	if back != h {
		t.Errorf("YAML round trip changed values: got %+v, want %+v", back, h)
	}
}
