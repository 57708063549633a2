package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/queuectl/queuectl"
)

func (a *app) dlqCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dlq",
		Short: "Manage the dead letter queue",
	}
	cmd.AddCommand(a.dlqListCmd())
	cmd.AddCommand(a.dlqRetryCmd())
	return cmd
}

func (a *app) dlqListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all jobs in the DLQ",
		RunE: func(cmd *cobra.Command, args []string) error {
			jobs, err := a.manager.List(queuectl.Dead)
			if err != nil {
				return fmt.Errorf("list failed: %w", err)
			}
			if len(jobs) == 0 {
				fmt.Println("Dead letter queue is empty.")
				return nil
			}
			printJobs(jobs)
			return nil
		},
	}
}

func (a *app) dlqRetryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retry <job-id>",
		Short: "Move a job from the DLQ back to pending with a fresh retry budget",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			if err := a.manager.RetryDead(id); err != nil {
				if errors.Is(err, queuectl.ErrNotFound) {
					return fmt.Errorf("job %q is not in the DLQ: %w", id, err)
				}
				return fmt.Errorf("dlq retry failed: %w", err)
			}
			fmt.Printf("Job %s moved back to pending.\n", id)
			return nil
		},
	}
}
