package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/queuectl/queuectl"
)

func (a *app) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage queue configuration",
	}
	cmd.AddCommand(a.configSetCmd())
	cmd.AddCommand(a.configGetCmd())
	return cmd
}

func (a *app) configSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value (max_retries, backoff_base)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value := args[0], args[1]
			switch key {
			case queuectl.ConfigMaxRetries, queuectl.ConfigBackoffBase:
				n, err := strconv.Atoi(value)
				if err != nil || n < 0 {
					return fmt.Errorf("%s must be a non-negative integer, got %q", key, value)
				}
			default:
				fmt.Printf("Warning: %q is not a recognized config key (recognized: %s, %s)\n",
					key, queuectl.ConfigMaxRetries, queuectl.ConfigBackoffBase)
			}
			if err := a.manager.SetConfig(key, value); err != nil {
				return fmt.Errorf("config set failed: %w", err)
			}
			fmt.Printf("%s = %s\n", key, value)
			return nil
		},
	}
}

func (a *app) configGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Read a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := a.manager.GetConfig(args[0])
			if errors.Is(err, queuectl.ErrNotFound) {
				return fmt.Errorf("config key %q not found: %w", args[0], err)
			}
			if err != nil {
				return fmt.Errorf("config get failed: %w", err)
			}
			fmt.Println(value)
			return nil
		},
	}
}
