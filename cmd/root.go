package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/andresmejia3/rollcall/internal/config"
	"github.com/andresmejia3/rollcall/internal/logging"
	"github.com/andresmejia3/rollcall/internal/store"
	"github.com/andresmejia3/rollcall/internal/telemetry"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	// Cfg is the environment configuration with explicit flags applied on top
	Cfg config.Config
	// Logger is the structured logger shared by subcommands
	Logger *slog.Logger
	// Enrollments is the enrollment store shared by subcommands
	Enrollments *store.Store

	shutdownTelemetry = func(context.Context) error { return nil }
)

// Version is the application version.
const Version = "0.1.0"

// noStore marks commands that must not open the enrollment store.
const noStore = "rollcall/no-store"

var rootCmd = &cobra.Command{
	Use:     "rollcall",
	Short:   "Live face identification with per-session attendance events",
	Version: Version, // This enables the --version flag
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		applyFlags(cmd.Flags(), &cfg)
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		Cfg = cfg

		Logger, err = logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
		if err != nil {
			return err
		}
		slog.SetDefault(Logger)

		shutdownTelemetry, err = telemetry.Setup(cmd.Context(), "rollcall", cfg.OtelEndpoint)
		if err != nil {
			Logger.Warn("tracing disabled", "error", err)
		}

		if cmd.Annotations[noStore] == "true" {
			return nil
		}

		// Use the command's context (which will be cancellable) for the connection
		backend, err := openBackend(cmd.Context(), cfg.Store)
		if err != nil {
			return fmt.Errorf("failed to open %s store: %w", cfg.Store.Driver, err)
		}
		Enrollments, err = store.Open(cmd.Context(), backend, Logger)
		if err != nil {
			backend.Close(context.Background())
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		// Use Background here because the main context might be cancelled already (due to Ctrl+C)
		// and we still need to close the store and flush spans.
		if Enrollments != nil {
			Enrollments.Close(context.Background())
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		shutdownTelemetry(ctx)
	},
}

func Execute() {
	// Create a context that listens for Ctrl+C (SIGINT) or Kill (SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// This tells Cobra not to print the version in the help text, which is cleaner.
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("store-driver", config.DriverFile, "Enrollment store: file, sqlite, postgres or minio")
	pf.String("store-path", "", "File or SQLite database path (default: rollcall-enrollments.json / rollcall.db)")
	pf.String("store-dsn", "", "PostgreSQL connection string (default: postgres://localhost:5432/rollcall)")
	pf.String("log-level", "info", "Log level: debug, info, warn, error")
	pf.String("log-format", "text", "Log format: text or json")
}

// applyFlags copies every flag the user set explicitly onto cfg, so flags win
// over ROLLCALL_* variables while unset flags leave the environment alone.
func applyFlags(fs *pflag.FlagSet, cfg *config.Config) {
	changed := func(name string) bool {
		f := fs.Lookup(name)
		return f != nil && f.Changed
	}

	strs := map[string]*string{
		"store-driver":  &cfg.Store.Driver,
		"store-path":    &cfg.Store.Path,
		"store-dsn":     &cfg.Store.DSN,
		"log-level":     &cfg.LogLevel,
		"log-format":    &cfg.LogFormat,
		"device":        &cfg.Camera.Device,
		"format":        &cfg.Camera.Format,
		"collector-url": &cfg.CollectorURL,
	}
	for name, dst := range strs {
		if changed(name) {
			*dst, _ = fs.GetString(name)
		}
	}

	floats := map[string]*float64{
		"threshold":  &cfg.MatchThreshold,
		"frame-rate": &cfg.FrameRate,
	}
	for name, dst := range floats {
		if changed(name) {
			*dst, _ = fs.GetFloat64(name)
		}
	}

	durations := map[string]*time.Duration{
		"stop-grace": &cfg.StopGrace,
		"warmup":     &cfg.Camera.Warmup,
	}
	for name, dst := range durations {
		if changed(name) {
			*dst, _ = fs.GetDuration(name)
		}
	}

	if changed("gzip") {
		cfg.ExportGzip, _ = fs.GetBool("gzip")
	}
}
