package queuectl

import (
	"strconv"
	"time"
)

const (
	// defaultBackoffBase is used when the backoff_base config key is
	// missing or not numeric.
	defaultBackoffBase = 2.0

	// DefaultMaxRetries is applied to new jobs when neither the caller
	// nor the config table provides a value.
	DefaultMaxRetries = 3
)

// Retrier decides and persists the next state of a job that finished
// execution. On failure a job either goes back to Pending with its run
// time pushed into the future, or to Dead once its retry budget is
// exhausted.
type Retrier struct {
	st      Store
	backoff BackoffFunc
	logger  Logger
	nowFn   func() time.Time
}

// NewRetrier creates a Retrier on top of the given store. A nil backoff
// or logger selects the defaults.
func NewRetrier(st Store, backoff BackoffFunc, logger Logger) *Retrier {
	if backoff == nil {
		backoff = exponentialBackoff
	}
	if logger == nil {
		logger = stdLogger{}
	}
	return &Retrier{
		st:      st,
		backoff: backoff,
		logger:  logger,
		nowFn:   time.Now,
	}
}

// OnFailure increments the job's attempt counter and either reschedules
// it with backoff or moves it to the DLQ. It returns the new state,
// Pending or Dead.
func (r *Retrier) OnFailure(job *Job) (string, error) {
	now := r.nowFn()
	attempts := job.Attempts + 1

	if attempts >= job.MaxRetries {
		job.State = Dead
		job.Attempts = attempts
		job.Updated = now.UnixNano()
		if err := r.st.Update(job); err != nil {
			return "", err
		}
		r.logger.Printf("queuectl: job %s failed on final attempt, moving to DLQ", job.ID)
		return Dead, nil
	}

	delay := r.backoff(r.base(), attempts)
	job.State = Pending
	job.Attempts = attempts
	job.RunAt = now.Add(delay).UnixNano()
	job.Updated = now.UnixNano()
	if err := r.st.Update(job); err != nil {
		return "", err
	}
	r.logger.Printf("queuectl: job %s failed, retrying in %v (attempt %d)", job.ID, delay, attempts)
	return Pending, nil
}

// OnSuccess marks the job as Completed. Completed jobs are never
// reclaimed.
func (r *Retrier) OnSuccess(job *Job) error {
	job.State = Completed
	job.Updated = r.nowFn().UnixNano()
	return r.st.Update(job)
}

// base reads the backoff base from config, falling back to the default
// when the key is missing or not numeric.
func (r *Retrier) base() float64 {
	v, err := r.st.GetConfig(ConfigBackoffBase)
	if err != nil {
		return defaultBackoffBase
	}
	base, err := strconv.ParseFloat(v, 64)
	if err != nil || base <= 0 {
		r.logger.Printf("queuectl: config %s=%q is not numeric, using %v", ConfigBackoffBase, v, defaultBackoffBase)
		return defaultBackoffBase
	}
	return base
}
