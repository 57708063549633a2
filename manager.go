package queuectl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	defaultPollInterval  = 1 * time.Second
	defaultErrorInterval = 5 * time.Second
)

func nop() {}

// Manager is the front door of the job queue. It resolves enqueue
// defaults, runs worker loops, and exposes the operator surface
// (stats, listings, config, DLQ retry). Create a new manager via New.
//
// Any number of managers in separate processes may share one store;
// coordination between them is entirely mediated by the store and the
// stop signal.
type Manager struct {
	logger  Logger
	st      Store // persistent storage
	backoff BackoffFunc
	runner  Runner
	stop    *StopFile
	retrier *Retrier

	pollInterval  time.Duration // idle sleep between polls
	errorInterval time.Duration // sleep after an unexpected worker error
	nowFn         func() time.Time

	testJobEnqueued  func() // testing hook
	testJobClaimed   func() // testing hook
	testJobSucceeded func() // testing hook
	testJobRetry     func() // testing hook
	testJobDead      func() // testing hook
	testWorkerExited func() // testing hook
}

// New creates a new manager. Pass options to configure it.
func New(options ...ManagerOption) *Manager {
	m := &Manager{
		logger:           stdLogger{},
		st:               NewInMemoryStore(),
		backoff:          exponentialBackoff,
		runner:           ShellRunner{},
		pollInterval:     defaultPollInterval,
		errorInterval:    defaultErrorInterval,
		nowFn:            time.Now,
		testJobEnqueued:  nop,
		testJobClaimed:   nop,
		testJobSucceeded: nop,
		testJobRetry:     nop,
		testJobDead:      nop,
		testWorkerExited: nop,
	}
	for _, opt := range options {
		opt(m)
	}
	m.retrier = NewRetrier(m.st, m.backoff, m.logger)
	m.retrier.nowFn = m.nowFn
	return m
}

// -- Configuration --

// ManagerOption is the signature of an options provider.
type ManagerOption func(*Manager)

// SetLogger specifies the logger to use when e.g. reporting errors.
func SetLogger(logger Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// SetStore specifies the backing Store implementation for the manager.
func SetStore(store Store) ManagerOption {
	return func(m *Manager) {
		if store != nil {
			m.st = store
		}
	}
}

// SetBackoffFunc specifies the backoff function that returns the time
// span before a failed job becomes eligible again. Exponential backoff
// on the configured base is used by default.
func SetBackoffFunc(fn BackoffFunc) ManagerOption {
	return func(m *Manager) {
		if fn != nil {
			m.backoff = fn
		} else {
			m.backoff = exponentialBackoff
		}
	}
}

// SetRunner specifies how job commands are executed. A shell runner
// with the default 1 hour timeout is used by default.
func SetRunner(r Runner) ManagerOption {
	return func(m *Manager) {
		if r != nil {
			m.runner = r
		}
	}
}

// SetStopFile specifies the stop-signal marker observed by workers.
// Without it, workers only stop on context cancellation.
func SetStopFile(f *StopFile) ManagerOption {
	return func(m *Manager) {
		m.stop = f
	}
}

// SetPollInterval specifies how long an idle worker sleeps between
// polls.
func SetPollInterval(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.pollInterval = d
		}
	}
}

// SetErrorInterval specifies how long a worker sleeps after an
// unexpected error in its poll/execute cycle.
func SetErrorInterval(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.errorInterval = d
		}
	}
}

// SetClock overrides the time source used for enqueue and retry
// timestamps. Intended for tests.
func SetClock(nowFn func() time.Time) ManagerOption {
	return func(m *Manager) {
		if nowFn != nil {
			m.nowFn = nowFn
		}
	}
}

// -- Start --

// Start initializes the backing store. It must be called once before
// enqueueing or starting workers, and is the only operation whose
// failure is fatal to the caller.
func (m *Manager) Start() error {
	return m.st.Start()
}

// -- Enqueue --

// Enqueue adds a new job to the queue. A missing ID is resolved to a
// freshly generated UUID; a negative MaxRetries is resolved from the
// max_retries config key. If Enqueue returns nil, the job is stored
// durably and will be picked up by a worker.
func (m *Manager) Enqueue(job *Job) error {
	if job.Command == "" {
		return errors.New("queuectl: no command specified")
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.MaxRetries < 0 {
		job.MaxRetries = m.defaultMaxRetries()
	}
	now := m.nowFn().UnixNano()
	job.State = Pending
	job.Attempts = 0
	job.RunAt = now
	job.Created = now
	job.Updated = now
	if err := m.st.Create(job); err != nil {
		return err
	}
	m.testJobEnqueued() // testing hook
	return nil
}

// defaultMaxRetries reads the configured default, falling back when the
// key is missing or malformed.
func (m *Manager) defaultMaxRetries() int {
	v, err := m.st.GetConfig(ConfigMaxRetries)
	if err != nil {
		return DefaultMaxRetries
	}
	var n int
	if _, err := fmt.Sscanf(v, "%d", &n); err != nil || n < 0 {
		m.logger.Printf("queuectl: config %s=%q is not a valid integer, using %d", ConfigMaxRetries, v, DefaultMaxRetries)
		return DefaultMaxRetries
	}
	return n
}

// -- Workers --

// StartWorkers runs n polling workers until the context is canceled or
// the stop signal is consumed. A stale stop file is cleared first so a
// leftover signal from a previous shutdown does not immediately kill
// the new workers. StartWorkers blocks until every worker has exited.
func (m *Manager) StartWorkers(ctx context.Context, n int) error {
	if n < 1 {
		n = 1
	}
	if err := m.stop.Clear(); err != nil {
		return err
	}
	g, ctx := errgroup.WithContext(ctx)
	for i := 1; i <= n; i++ {
		w := newWorker(m, i)
		g.Go(func() error { return w.Run(ctx) })
	}
	return g.Wait()
}

// -- Operator surface --

// Stats returns current statistics about the job queue.
func (m *Manager) Stats() (*Stats, error) {
	return m.st.Stats()
}

// Lookup returns the job with the specified identifier.
// If no such job exists, ErrNotFound is returned.
func (m *Manager) Lookup(id string) (*Job, error) {
	return m.st.Lookup(id)
}

// List returns all jobs in the given state, oldest first.
func (m *Manager) List(state string) ([]*Job, error) {
	return m.st.List(state)
}

// RetryDead moves a job from the DLQ back to Pending with a fresh
// retry budget. ErrNotFound means the job does not exist or is not
// currently dead.
func (m *Manager) RetryDead(id string) error {
	return m.st.RetryDead(id)
}

// GetConfig reads a config value. Missing keys yield ErrNotFound.
func (m *Manager) GetConfig(key string) (string, error) {
	return m.st.GetConfig(key)
}

// SetConfig creates or overwrites a config value. Validation of the
// recognized keys is the caller's concern.
func (m *Manager) SetConfig(key, value string) error {
	return m.st.SetConfig(key, value)
}
