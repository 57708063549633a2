// Command queuectl manages a durable background job queue: enqueue
// shell commands, run workers, inspect state, and manage the DLQ.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/queuectl/queuectl"
	"github.com/queuectl/queuectl/mongodb"
	"github.com/queuectl/queuectl/mysql"
	"github.com/queuectl/queuectl/sqlite"
)

// Exit codes. Conflicts and precondition mismatches are distinguishable
// from generic storage failures, so scripts can tell "duplicate id" or
// "job not in DLQ" apart from "store unreachable".
const (
	exitError    = 1
	exitConflict = 2
	exitNotFound = 3
)

const (
	dbFileName   = "queue.db"
	stopFileName = "stop_workers"
)

// store is what the CLI needs from a backend: the queue operations
// plus a way to close the connection on exit.
type store interface {
	queuectl.Store
	Close() error
}

// app carries the shared state between cobra commands.
type app struct {
	dataDir   string
	storeType string
	dburl     string

	st      store
	stop    *queuectl.StopFile
	manager *queuectl.Manager
}

func main() {
	a := &app{}
	root := a.rootCmd()
	err := root.Execute()
	if a.st != nil {
		_ = a.st.Close()
	}
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, queuectl.ErrDuplicateID):
		os.Exit(exitConflict)
	case errors.Is(err, queuectl.ErrNotFound):
		os.Exit(exitNotFound)
	default:
		os.Exit(exitError)
	}
}

func (a *app) rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "queuectl",
		Short:             "Manage a durable background job queue",
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}
	cmd.PersistentFlags().StringVar(&a.dataDir, "data-dir", "", "directory for the queue database and stop file (default ~/.queuectl)")
	cmd.PersistentFlags().StringVar(&a.storeType, "store", "sqlite", "storage backend (sqlite, mysql or mongodb)")
	cmd.PersistentFlags().StringVar(&a.dburl, "dburl", "", "DSN for the mysql or mongodb backend")

	cmd.AddCommand(a.enqueueCmd())
	cmd.AddCommand(a.statusCmd())
	cmd.AddCommand(a.listCmd())
	cmd.AddCommand(a.configCmd())
	cmd.AddCommand(a.dlqCmd())
	cmd.AddCommand(a.workerCmd())
	cmd.AddCommand(a.uiCmd())
	return cmd
}

// setup resolves paths, opens the store and initializes the manager.
// It runs once per invocation, before any subcommand.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	if a.dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("resolve home directory: %w", err)
		}
		a.dataDir = filepath.Join(home, ".queuectl")
	}
	a.stop = queuectl.NewStopFile(filepath.Join(a.dataDir, stopFileName))

	var st store
	var err error
	switch a.storeType {
	case "sqlite":
		st, err = sqlite.NewStore(filepath.Join(a.dataDir, dbFileName))
	case "mysql":
		if a.dburl == "" {
			return errors.New("--dburl is required with --store=mysql")
		}
		st, err = mysql.NewStore(a.dburl)
	case "mongodb":
		if a.dburl == "" {
			return errors.New("--dburl is required with --store=mongodb")
		}
		st, err = mongodb.NewStore(a.dburl)
	default:
		return fmt.Errorf("unsupported store %q; use sqlite, mysql or mongodb", a.storeType)
	}
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	a.st = st
	a.manager = queuectl.New(
		queuectl.SetStore(st),
		queuectl.SetStopFile(a.stop),
	)
	if err := a.manager.Start(); err != nil {
		return fmt.Errorf("initialize store: %w", err)
	}
	return nil
}
