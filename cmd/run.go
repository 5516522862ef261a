package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/andresmejia3/rollcall/internal/camera"
	"github.com/andresmejia3/rollcall/internal/events"
	"github.com/andresmejia3/rollcall/internal/match"
	"github.com/andresmejia3/rollcall/internal/overlay"
	"github.com/andresmejia3/rollcall/internal/session"
	"github.com/andresmejia3/rollcall/internal/utils"
	"github.com/spf13/cobra"
)

var runOpts struct {
	Duration    time.Duration
	SnapshotDir string
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a live identification session until Ctrl+C",
	Long: "Opens the camera, loads the face models and identifies every face in view against the " +
		"enrolled identities. On stop, the session's detection events are exported to the collector.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runSession(cmd.Context())
	},
}

func init() {
	f := runCmd.Flags()
	f.Float64P("threshold", "t", 0.6, "Face matching threshold (lower is stricter)")
	f.Float64P("frame-rate", "r", 30, "Maximum frames analysed per second")
	f.String("device", "/dev/video0", "Capture device passed to ffmpeg")
	f.String("format", "v4l2", "ffmpeg input format (v4l2, avfoundation, dshow)")
	f.Duration("warmup", 5*time.Second, "How long to wait for the first camera frame")
	f.Duration("stop-grace", 3*time.Second, "How long stop waits for an in-flight detection")
	f.String("collector-url", "http://localhost:5001", "Base URL of the detection collector")
	f.Bool("gzip", false, "Gzip the exported event batch")
	f.DurationVar(&runOpts.Duration, "duration", 0, "Stop automatically after this long (0 runs until Ctrl+C)")
	f.StringVarP(&runOpts.SnapshotDir, "debug-screenshots", "d", "", "Write the latest annotated frame to this directory")
	rootCmd.AddCommand(runCmd)
}

// runSession drives one session: start, wait for Ctrl+C or --duration, stop, export.
func runSession(ctx context.Context) error {
	w := newWorker(Cfg.Worker)
	defer w.Close()

	device := camera.NewFFmpegDevice(utils.CaptureOptions{
		Device:      Cfg.Camera.Device,
		InputFormat: Cfg.Camera.Format,
		Width:       Cfg.Camera.Width,
		Height:      Cfg.Camera.Height,
		FrameRate:   Cfg.FrameRate,
	}, Cfg.Camera.Warmup, Logger)

	sinks := overlay.Multi{overlay.NewLogSink(Logger)}
	if runOpts.SnapshotDir != "" {
		snap, err := overlay.NewSnapshotSink(runOpts.SnapshotDir, Logger)
		if err != nil {
			utils.ShowError("Failed to prepare snapshot directory", err, nil)
			return err
		}
		sinks = append(sinks, snap)
	}

	exporter := events.NewHTTPExporter(Cfg.CollectorURL, Cfg.ExportGzip)
	sess := session.New(session.Config{
		Camera:    device,
		Extractor: w,
		Store:     Enrollments,
		Matcher:   match.New(Cfg.MatchThreshold),
		Flusher:   events.NewFlusher(exporter, Cfg.ExportTimeout, Logger),
		Overlay:   sinks,
		FrameRate: Cfg.FrameRate,
		StopGrace: Cfg.StopGrace,
		Logger:    Logger,
	})

	fmt.Fprintf(os.Stderr, "🎥 Opening %s and loading models...\n", Cfg.Camera.Device)
	if err := sess.Start(ctx); err != nil {
		utils.ShowError("Failed to start session", err, w.Cmd)
		return err
	}
	fmt.Fprintf(os.Stderr, "🟢 Session %s running against %d enrolled identities. Press Ctrl+C to stop.\n",
		sess.ID()[:8], Enrollments.Len())

	var timeout <-chan time.Time
	if runOpts.Duration > 0 {
		timer := time.NewTimer(runOpts.Duration)
		defer timer.Stop()
		timeout = timer.C
	}
	select {
	case <-ctx.Done():
	case <-timeout:
	}

	fmt.Fprintln(os.Stderr, "\n🛑 Stopping session...")
	// The signal context is already cancelled; stop still needs its grace period
	if err := sess.Stop(context.Background()); err != nil {
		return err
	}

	n := len(sess.Events())
	if n > 0 {
		fmt.Fprintf(os.Stderr, "📤 Exporting %d detection events to %s...\n", n, Cfg.CollectorURL)
	}
	sess.Wait()
	fmt.Fprintf(os.Stderr, "🏁 Session complete. %d detection events recorded.\n", n)
	return nil
}
