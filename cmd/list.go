package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/andresmejia3/rollcall/internal/utils"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all enrolled identities",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		entries, err := Enrollments.LoadAll(cmd.Context())
		if err != nil {
			utils.ShowError("Failed to list enrollments", err, nil)
			return err
		}

		if len(entries) == 0 {
			fmt.Println("No identities enrolled.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "#\tLABEL\tSAMPLES\tDIMS")
		fmt.Fprintln(w, "-\t-----\t-------\t----")
		labels := make(map[string]bool)
		for i, e := range entries {
			labels[e.Label] = true
			dims := 0
			if len(e.Descriptors) > 0 {
				dims = len(e.Descriptors[0])
			}
			fmt.Fprintf(w, "%d\t%s\t%d\t%d\n", i+1, e.Label, len(e.Descriptors), dims)
		}
		w.Flush()
		fmt.Printf("\n%d entries, %d distinct labels\n", len(entries), len(labels))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
