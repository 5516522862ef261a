package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/andresmejia3/rollcall/internal/types"
	"github.com/andresmejia3/rollcall/internal/utils"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var enrollLabel string

var enrollCmd = &cobra.Command{
	Use:   "enroll --label <name> <image_path>...",
	Short: "Enroll one reference sample per still image under a label",
	Long: "Each image contributes one new enrollment entry. Existing entries with the same label " +
		"are kept; images without a detectable face are reported and skipped.",
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runEnroll(cmd.Context(), enrollLabel, args)
	},
}

func init() {
	enrollCmd.Flags().StringVarP(&enrollLabel, "label", "l", "", "Identity label to enroll the images under")
	enrollCmd.MarkFlagRequired("label")
	rootCmd.AddCommand(enrollCmd)
}

func runEnroll(ctx context.Context, label string, paths []string) error {
	fmt.Fprintln(os.Stderr, "🚀 Starting AI Engine...")
	w := newWorker(Cfg.Worker)
	defer w.Close()
	if err := w.Load(ctx); err != nil {
		utils.ShowError("Failed to load face models", err, w.Cmd)
		return err
	}

	bar := progressbar.NewOptions(len(paths),
		progressbar.OptionSetDescription("🧬 Enrolling "+label),
		progressbar.OptionSetWriter(os.Stderr), // Write bar to Stderr
		progressbar.OptionShowCount(),
	)

	var enrolled int
	var skipped []string
	for _, path := range paths {
		frame, err := readFrame(path)
		if err != nil {
			bar.Clear()
			utils.ShowError("Failed to read image "+path, err, nil)
			return err
		}

		_, err = Enrollments.Enroll(ctx, w, label, frame)
		switch {
		case errors.Is(err, types.ErrNoFaceDetected):
			skipped = append(skipped, path)
		case err != nil:
			bar.Clear()
			utils.ShowError("Enrollment failed", err, w.Cmd)
			return err
		default:
			enrolled++
		}
		bar.Add(1)
	}
	bar.Finish()
	fmt.Fprintln(os.Stderr)

	for _, path := range skipped {
		fmt.Fprintf(os.Stderr, "⚠️  No face detected in %s, skipped.\n", filepath.Base(path))
	}
	if enrolled == 0 {
		return fmt.Errorf("nothing enrolled for %q: %w", label, types.ErrNoFaceDetected)
	}
	fmt.Printf("✅ Enrolled %d sample(s) as '%s' (%d entries in store)\n", enrolled, label, Enrollments.Len())
	return nil
}

// readFrame loads a still image as a frame, checking it decodes.
func readFrame(path string) (types.Frame, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.Frame{}, err
	}
	return types.NewFrame(data)
}
