package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/queuectl/queuectl"
)

func (a *app) enqueueCmd() *cobra.Command {
	var (
		id         string
		maxRetries int
	)
	cmd := &cobra.Command{
		Use:   "enqueue <command>",
		Short: "Add a new job to the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job := &queuectl.Job{
				ID:         id,
				Command:    args[0],
				MaxRetries: maxRetries,
			}
			if err := a.manager.Enqueue(job); err != nil {
				if errors.Is(err, queuectl.ErrDuplicateID) {
					return fmt.Errorf("job id %q already exists: %w", job.ID, err)
				}
				return fmt.Errorf("enqueue failed: %w", err)
			}
			fmt.Printf("Enqueued job %s\n", job.ID)
			fmt.Printf("  Command:     %s\n", job.Command)
			fmt.Printf("  Max retries: %d\n", job.MaxRetries)
			return nil
		},
	}
	cmd.Flags().StringVarP(&id, "id", "i", "", "unique job id (default: a new UUID)")
	cmd.Flags().IntVarP(&maxRetries, "max-retries", "r", -1, "max retries for this job (default: from config)")
	return cmd
}
