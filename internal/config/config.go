// Package config loads rollcall settings from ROLLCALL_* environment variables.
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
)

// Prefix is prepended to every variable name below.
const Prefix = "ROLLCALL_"

// Store drivers.
const (
	DriverFile     = "file"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMinio    = "minio"
)

// Config is the full runtime configuration. Command flags that were set
// explicitly override these values after Load.
type Config struct {
	MatchThreshold float64       `env:"MATCH_THRESHOLD" envDefault:"0.6"`
	FrameRate      float64       `env:"FRAME_RATE" envDefault:"30"`
	StopGrace      time.Duration `env:"STOP_GRACE" envDefault:"3s"`

	CollectorURL  string        `env:"COLLECTOR_URL" envDefault:"http://localhost:5001"`
	ExportTimeout time.Duration `env:"EXPORT_TIMEOUT" envDefault:"10s"`
	ExportGzip    bool          `env:"EXPORT_GZIP" envDefault:"false"`

	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat    string `env:"LOG_FORMAT" envDefault:"text"`
	OtelEndpoint string `env:"OTEL_ENDPOINT"`

	Store  StoreConfig
	Camera CameraConfig
	Worker WorkerConfig
}

type StoreConfig struct {
	Driver string `env:"STORE_DRIVER" envDefault:"file"`
	// Path is the JSON file for the file driver or the database file for sqlite.
	// Empty picks a per-driver default in the working directory.
	Path string `env:"STORE_PATH"`
	DSN  string `env:"STORE_DSN" envDefault:"postgres://localhost:5432/rollcall"`

	MinioEndpoint  string `env:"MINIO_ENDPOINT" envDefault:"localhost:9000"`
	MinioBucket    string `env:"MINIO_BUCKET" envDefault:"rollcall"`
	MinioObject    string `env:"MINIO_OBJECT" envDefault:"enrollments.json"`
	MinioAccessKey string `env:"MINIO_ACCESS_KEY"`
	MinioSecretKey string `env:"MINIO_SECRET_KEY"`
	MinioUseSSL    bool   `env:"MINIO_USE_SSL" envDefault:"false"`
}

type CameraConfig struct {
	Device string        `env:"CAMERA_DEVICE" envDefault:"/dev/video0"`
	Format string        `env:"CAMERA_FORMAT" envDefault:"v4l2"`
	Width  int           `env:"CAMERA_WIDTH" envDefault:"640"`
	Height int           `env:"CAMERA_HEIGHT" envDefault:"480"`
	Warmup time.Duration `env:"CAMERA_WARMUP" envDefault:"5s"`
}

type WorkerConfig struct {
	Python         string  `env:"WORKER_PYTHON" envDefault:"python3"`
	Script         string  `env:"WORKER_SCRIPT" envDefault:"python/oracle.py"`
	ModelDir       string  `env:"WORKER_MODEL_DIR" envDefault:"models"`
	InputSize      int     `env:"WORKER_INPUT_SIZE" envDefault:"416"`
	ScoreThreshold float64 `env:"WORKER_SCORE_THRESHOLD" envDefault:"0.5"`
}

// Load parses the environment into a Config. It does not validate; callers
// apply flag overrides first and then call Validate.
func Load() (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: Prefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Validate rejects settings no component can run with.
func (c Config) Validate() error {
	if c.MatchThreshold <= 0 || c.MatchThreshold > 2 {
		return fmt.Errorf("match threshold must be in (0, 2], got %g", c.MatchThreshold)
	}
	if c.FrameRate <= 0 {
		return fmt.Errorf("frame rate must be positive, got %g", c.FrameRate)
	}
	if c.StopGrace < 0 {
		return fmt.Errorf("stop grace must not be negative, got %s", c.StopGrace)
	}
	switch c.Store.Driver {
	case DriverFile, DriverPostgres, DriverSQLite, DriverMinio:
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.CollectorURL == "" {
		return fmt.Errorf("collector url is required")
	}
	if u, err := url.Parse(c.CollectorURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("collector url %q is not an absolute URL", c.CollectorURL)
	}
	return nil
}
