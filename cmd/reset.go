package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/andresmejia3/rollcall/internal/utils"
	"github.com/spf13/cobra"
)

var (
	resetYes       bool
	resetSnapshots string
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Remove every enrolled identity",
	Long:  "Clears the enrollment store. Pass --debug-screenshots to also delete a snapshot directory.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		reader := bufio.NewReader(os.Stdin)

		if resetYes || confirm(reader, os.Stdout, fmt.Sprintf("⚠️  Are you sure you want to delete all %d enrollments?", Enrollments.Len())) {
			fmt.Println("🗑️  Clearing enrollment store...")
			if err := Enrollments.Reset(cmd.Context()); err != nil {
				utils.ShowError("Failed to reset enrollment store", err, nil)
				return err
			}
		}

		if resetSnapshots != "" {
			if resetYes || confirm(reader, os.Stdout, "⚠️  Are you sure you want to delete all debug frames?") {
				fmt.Println("🗑️  Clearing Debug Frames...")
				removeDir(resetSnapshots)
			}
		}

		fmt.Println("✨ Reset Complete.")
		return nil
	},
}

func init() {
	resetCmd.Flags().BoolVarP(&resetYes, "yes", "y", false, "Do not ask for confirmation")
	resetCmd.Flags().StringVarP(&resetSnapshots, "debug-screenshots", "d", "", "Snapshot directory to delete as well")
	rootCmd.AddCommand(resetCmd)
}

func confirm(r *bufio.Reader, w io.Writer, prompt string) bool {
	fmt.Fprintf(w, "%s [y/N]: ", prompt)
	res, _ := r.ReadString('\n')
	res = strings.TrimSpace(strings.ToLower(res))
	return res == "y" || res == "yes"
}

func removeDir(path string) {
	if err := os.RemoveAll(path); err != nil {
		fmt.Fprintf(os.Stderr, "⚠️  Failed to remove %s: %v\n", path, err)
	}
}
