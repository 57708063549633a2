package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/queuectl/queuectl"
)

func (a *app) listCmd() *cobra.Command {
	var state string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs by state",
		RunE: func(cmd *cobra.Command, args []string) error {
			jobs, err := a.manager.List(state)
			if err != nil {
				return fmt.Errorf("list failed: %w", err)
			}
			if len(jobs) == 0 {
				fmt.Printf("No jobs found in state %q.\n", state)
				return nil
			}
			printJobs(jobs)
			return nil
		},
	}
	cmd.Flags().StringVarP(&state, "state", "s", queuectl.Pending, "job state to list (pending, processing, completed, dead)")
	return cmd
}

func printJobs(jobs []*queuectl.Job) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCOMMAND\tATTEMPTS\tMAX RETRIES\tRUN AT")
	for _, job := range jobs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n",
			job.ID,
			job.Command,
			job.Attempts,
			job.MaxRetries,
			time.Unix(0, job.RunAt).Format(time.RFC3339),
		)
	}
	_ = w.Flush()
}
