package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MatchThreshold != 0.6 {
		t.Errorf("expected default threshold 0.6, got %g", cfg.MatchThreshold)
	}
	if cfg.FrameRate != 30 {
		t.Errorf("expected default frame rate 30, got %g", cfg.FrameRate)
	}
	if cfg.StopGrace != 3*time.Second {
		t.Errorf("expected default stop grace 3s, got %s", cfg.StopGrace)
	}
	if cfg.CollectorURL != "http://localhost:5001" {
		t.Errorf("unexpected collector url %q", cfg.CollectorURL)
	}
	if cfg.Store.Driver != DriverFile {
		t.Errorf("expected file driver, got %q", cfg.Store.Driver)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("ROLLCALL_MATCH_THRESHOLD", "0.45")
	t.Setenv("ROLLCALL_STORE_DRIVER", "sqlite")
	t.Setenv("ROLLCALL_CAMERA_WARMUP", "750ms")
	t.Setenv("ROLLCALL_EXPORT_GZIP", "true")
	t.Setenv("ROLLCALL_WORKER_INPUT_SIZE", "320")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MatchThreshold != 0.45 {
		t.Errorf("expected 0.45, got %g", cfg.MatchThreshold)
	}
	if cfg.Store.Driver != DriverSQLite {
		t.Errorf("expected sqlite, got %q", cfg.Store.Driver)
	}
	if cfg.Camera.Warmup != 750*time.Millisecond {
		t.Errorf("expected 750ms, got %s", cfg.Camera.Warmup)
	}
	if !cfg.ExportGzip {
		t.Error("expected gzip export")
	}
	if cfg.Worker.InputSize != 320 {
		t.Errorf("expected 320, got %d", cfg.Worker.InputSize)
	}
}

func TestLoadError(t *testing.T) {
	t.Setenv("ROLLCALL_FRAME_RATE", "fast")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	base, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero threshold", func(c *Config) { c.MatchThreshold = 0 }},
		{"threshold above 2", func(c *Config) { c.MatchThreshold = 2.5 }},
		{"zero frame rate", func(c *Config) { c.FrameRate = 0 }},
		{"negative grace", func(c *Config) { c.StopGrace = -time.Second }},
		{"unknown driver", func(c *Config) { c.Store.Driver = "redis" }},
		{"empty collector", func(c *Config) { c.CollectorURL = "" }},
		{"relative collector", func(c *Config) { c.CollectorURL = "localhost:5001" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("expected validation error")
			}
		})
	}
}
