package main

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/queuectl/queuectl/ui/server"
)

func (a *app) uiCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "ui",
		Short: "Serve a live web view of the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Printf("ui listening on http://%s", addr)
			return server.New(a.manager).Serve(addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8997", "HTTP bind address")
	return cmd
}
