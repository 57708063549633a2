package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func (a *app) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show a summary of job states and the worker stop signal",
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := a.manager.Stats()
			if err != nil {
				return fmt.Errorf("stats failed: %w", err)
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "STATE\tCOUNT")
			fmt.Fprintf(w, "pending\t%d\n", stats.Pending)
			fmt.Fprintf(w, "processing\t%d\n", stats.Processing)
			fmt.Fprintf(w, "completed\t%d\n", stats.Completed)
			fmt.Fprintf(w, "dead (DLQ)\t%d\n", stats.Dead)
			if stats.Failed > 0 {
				// Diagnostic bucket: only populated by the worker's
				// crash fallback.
				fmt.Fprintf(w, "failed\t%d\n", stats.Failed)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if a.stop.Exists() {
				fmt.Println("\nWorkers are signaled to stop.")
			} else {
				fmt.Println("\nNo stop signal; workers (if any) are running.")
			}
			return nil
		},
	}
}
