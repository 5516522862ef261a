package cmd

import (
	"context"
	"fmt"
	"math"
	"os"
	"text/tabwriter"

	"github.com/andresmejia3/rollcall/internal/match"
	"github.com/andresmejia3/rollcall/internal/types"
	"github.com/andresmejia3/rollcall/internal/utils"
	"github.com/spf13/cobra"
)

var identifyCmd = &cobra.Command{
	Use:   "identify <image_path>",
	Short: "Identify every face in a still image against the enrolled identities",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runIdentify(cmd.Context(), args[0])
	},
}

func init() {
	identifyCmd.Flags().Float64P("threshold", "t", 0.6, "Face matching threshold (lower is stricter)")
	rootCmd.AddCommand(identifyCmd)
}

func runIdentify(ctx context.Context, imagePath string) error {
	if _, err := os.Stat(imagePath); os.IsNotExist(err) {
		utils.ShowError("Input file does not exist", err, nil)
		return err
	}
	frame, err := readFrame(imagePath)
	if err != nil {
		utils.ShowError("Failed to read image file", err, nil)
		return err
	}

	fmt.Fprintln(os.Stderr, "🚀 Starting AI Engine...")
	w := newWorker(Cfg.Worker)
	defer w.Close()
	if err := w.Load(ctx); err != nil {
		utils.ShowError("Failed to load face models", err, w.Cmd)
		return err
	}

	fmt.Fprintln(os.Stderr, "🔍 Analyzing faces...")
	faces, err := w.DetectAll(ctx, frame)
	if err != nil {
		utils.ShowError("AI processing failed", err, w.Cmd)
		return err
	}
	if len(faces) == 0 {
		fmt.Println("❌ No faces detected in the provided image.")
		return nil
	}

	matcher := match.New(Cfg.MatchThreshold)
	entries := Enrollments.Snapshot()

	wOut := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(wOut, "FACE\tLABEL\tDISTANCE\tAGE\tGENDER\tEMOTION")
	fmt.Fprintln(wOut, "----\t-----\t--------\t---\t------\t-------")
	for i, f := range faces {
		res := matcher.Match(f.Descriptor, entries)
		fmt.Fprintf(wOut, "%d\t%s\t%s\t%d\t%s\t%s\n",
			i+1,
			res.Label,
			fmtDistance(res.Distance),
			types.RoundAge(f.Age),
			types.ParseGender(f.Gender),
			f.Expressions.Dominant(),
		)
	}
	return wOut.Flush()
}

func fmtDistance(d float64) string {
	if math.IsInf(d, 1) {
		return "-"
	}
	return fmt.Sprintf("%.3f", d)
}
