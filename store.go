package queuectl

import "errors"

var (
	// ErrNotFound must be returned from Store implementations when a
	// certain job or config key could not be found in the data store.
	ErrNotFound = errors.New("queuectl: not found")

	// ErrDuplicateID must be returned from Create when a job with the
	// same identifier already exists. It is a caller-visible conflict,
	// never an overwrite.
	ErrDuplicateID = errors.New("queuectl: job id already exists")
)

// Config keys recognized by the queue. The store only persists them;
// defaults are the caller's responsibility.
const (
	ConfigMaxRetries  = "max_retries"
	ConfigBackoffBase = "backoff_base"
)

// Store implements persistent storage of jobs and configuration.
//
// Any number of worker processes may share one store. All cross-worker
// coordination goes through the store, so Claim must be atomic: no two
// concurrent callers may receive the same job.
type Store interface {
	// Start is called once at process startup. It creates the schema if
	// necessary and seeds the config defaults. It must be safe to call
	// on every run.
	Start() error

	// Create adds a job to the store in state Pending. It returns
	// ErrDuplicateID when a job with the same ID already exists.
	Create(*Job) error

	// Claim atomically picks the oldest Pending job whose RunAt has
	// passed, marks it Processing, and returns it. The select-and-mark
	// happens under an exclusive write intent, so exactly one caller
	// wins each job. If no job is eligible, or another claimer holds
	// the lock right now, Claim returns (nil, nil).
	Claim() (*Job, error)

	// Update persists the job's state, attempts and run time, touching
	// its update timestamp. The caller must own the job (it is in
	// Processing) or otherwise hold exclusive logical ownership.
	Update(*Job) error

	// UpdateState unconditionally overwrites the job's state, touching
	// its update timestamp. Used by the worker's crash fallback.
	UpdateState(id, state string) error

	// RetryDead moves a job from Dead back to Pending, resetting its
	// attempts to zero and its run time to now. It returns ErrNotFound
	// when the job does not exist or is not currently Dead, so callers
	// can tell a precondition mismatch from a storage fault.
	RetryDead(id string) error

	// Lookup returns the details of a job by its identifier.
	// If the job could not be found, ErrNotFound must be returned.
	Lookup(id string) (*Job, error)

	// List returns all jobs in the given state, oldest first.
	List(state string) ([]*Job, error)

	// Stats returns the number of jobs per state. States without jobs
	// are reported as zero, never omitted.
	Stats() (*Stats, error)

	// GetConfig returns the value for a config key, or ErrNotFound.
	// The store never substitutes defaults.
	GetConfig(key string) (string, error)

	// SetConfig creates or overwrites a config key.
	SetConfig(key, value string) error
}
