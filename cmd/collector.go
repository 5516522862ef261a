package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/andresmejia3/rollcall/internal/collector"
	"github.com/spf13/cobra"
)

var collectorAddr string

var collectorCmd = &cobra.Command{
	Use:         "collector",
	Short:       "Serve a development detection collector on POST /api/detections",
	Annotations: map[string]string{noStore: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runCollector(cmd.Context(), collectorAddr)
	},
}

func init() {
	collectorCmd.Flags().StringVarP(&collectorAddr, "addr", "a", ":5001", "Listen address")
	rootCmd.AddCommand(collectorCmd)
}

func runCollector(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           collector.NewRouter(Logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	fmt.Fprintf(os.Stderr, "📥 Collector listening on %s%s\n", addr, collector.DetectionsPath)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	fmt.Fprintln(os.Stderr, "\n👋 Collector stopped.")
	return nil
}
