package queuectl

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// DefaultRunTimeout is the hard wall-clock limit for a single job
// execution.
const DefaultRunTimeout = 1 * time.Hour

// ErrRunTimeout is returned by a Runner when a command exceeded its
// wall-clock limit.
var ErrRunTimeout = errors.New("queuectl: command timed out")

// Runner executes a job's command. A nil error means exit code 0;
// everything else (non-zero exit, timeout, launch fault) is treated as
// a failure input to the Retrier.
type Runner interface {
	Run(ctx context.Context, command string) error
}

// ShellRunner runs commands through "sh -c" with a hard timeout.
type ShellRunner struct {
	// Timeout limits the wall-clock time of one execution.
	// Zero selects DefaultRunTimeout.
	Timeout time.Duration
}

// Run executes the command and waits for it to finish or time out.
func (r ShellRunner) Run(ctx context.Context, command string) error {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultRunTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	err := cmd.Run()
	if err == nil {
		return nil
	}
	if ctx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("%w after %v", ErrRunTimeout, timeout)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return fmt.Errorf("queuectl: command exited with code %d", exitErr.ExitCode())
	}
	return fmt.Errorf("queuectl: command could not be run: %w", err)
}
