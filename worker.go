package queuectl

import (
	"context"
	"time"
)

// worker is a single polling loop. Any number of workers, in any number
// of processes, may run against the same store; they never talk to each
// other directly.
type worker struct {
	m  *Manager
	id int
}

func newWorker(m *Manager, id int) *worker {
	return &worker{m: m, id: id}
}

// Run polls the store for work until the context is canceled or the
// stop signal is consumed. It never returns an error: storage faults
// inside the loop are recoverable and handled with a longer sleep.
func (w *worker) Run(ctx context.Context) error {
	defer w.m.testWorkerExited() // testing hook

	w.m.logger.Printf("queuectl: worker %d starting", w.id)

	// A stop signal that is already present gates exactly this startup
	// window: consume it and exit before entering the loop.
	if w.m.stop.Consume() {
		w.m.logger.Printf("queuectl: worker %d found stop signal on startup, exiting", w.id)
		return nil
	}

	for {
		if ctx.Err() != nil {
			w.m.logger.Printf("queuectl: worker %d shutting down", w.id)
			return nil
		}
		// The stop check happens between job cycles, never during one,
		// so an in-flight job always completes before shutdown.
		if w.m.stop.Consume() {
			w.m.logger.Printf("queuectl: worker %d consumed stop signal, exiting", w.id)
			return nil
		}

		job, err := w.m.st.Claim()
		if err != nil {
			w.m.logger.Printf("queuectl: worker %d: claim failed: %v", w.id, err)
			if !w.sleep(ctx, w.m.errorInterval) {
				return nil
			}
			continue
		}
		if job == nil {
			if !w.sleep(ctx, w.m.pollInterval) {
				return nil
			}
			continue
		}

		w.m.testJobClaimed() // testing hook
		w.m.logger.Printf("queuectl: worker %d running job %s: %s", w.id, job.ID, job.Command)

		runErr := w.m.runner.Run(ctx, job.Command)
		if runErr == nil {
			if err := w.m.retrier.OnSuccess(job); err != nil {
				w.recover(job, err)
				if !w.sleep(ctx, w.m.errorInterval) {
					return nil
				}
				continue
			}
			w.m.logger.Printf("queuectl: worker %d: job %s completed", w.id, job.ID)
			w.m.testJobSucceeded() // testing hook
			continue
		}

		w.m.logger.Printf("queuectl: worker %d: job %s failed: %v", w.id, job.ID, runErr)
		state, err := w.m.retrier.OnFailure(job)
		if err != nil {
			w.recover(job, err)
			if !w.sleep(ctx, w.m.errorInterval) {
				return nil
			}
			continue
		}
		switch state {
		case Dead:
			w.m.testJobDead() // testing hook
		default:
			w.m.testJobRetry() // testing hook
		}
	}
}

// recover force-writes the diagnostic Failed state when a claimed job's
// outcome could not be persisted, so the row does not remain stuck in
// Processing forever. Best effort, not a transactional guarantee.
func (w *worker) recover(job *Job, cause error) {
	w.m.logger.Printf("queuectl: worker %d: could not persist outcome of job %s: %v", w.id, job.ID, cause)
	if err := w.m.st.UpdateState(job.ID, Failed); err != nil {
		w.m.logger.Printf("queuectl: worker %d: could not mark job %s as failed: %v", w.id, job.ID, err)
	}
}

// sleep blocks for d or until the context is canceled. It returns false
// when the worker should exit.
func (w *worker) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		w.m.logger.Printf("queuectl: worker %d shutting down", w.id)
		return false
	}
}
