package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func (a *app) workerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Manage worker processes",
	}
	cmd.AddCommand(a.workerStartCmd())
	cmd.AddCommand(a.workerStopCmd())
	return cmd
}

func (a *app) workerStartCmd() *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Run one or more workers in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Printf("starting %d worker(s), pid %d", count, os.Getpid())
			log.Printf("stop with Ctrl+C or `queuectl worker stop`")

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			if err := a.manager.StartWorkers(ctx, count); err != nil {
				return fmt.Errorf("workers failed: %w", err)
			}
			log.Printf("all workers have shut down")
			return nil
		},
	}
	cmd.Flags().IntVarP(&count, "count", "c", 1, "number of workers to run")
	return cmd
}

func (a *app) workerStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Signal running workers to shut down gracefully",
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.stop.Exists() {
				fmt.Println("Stop signal already present; workers may already be stopping.")
				return nil
			}
			if err := a.stop.Signal(); err != nil {
				return fmt.Errorf("create stop signal: %w", err)
			}
			fmt.Println("Stop signal sent. Workers will exit after finishing their current jobs.")
			return nil
		},
	}
}
