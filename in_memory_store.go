package queuectl

import (
	"sync"
	"time"
)

// InMemoryStore is a simple in-memory store implementation.
// It implements the Store interface. Do not use in production:
// it cannot be shared across processes and loses all jobs on exit.
type InMemoryStore struct {
	mu     sync.Mutex
	jobs   map[string]*Job
	config map[string]string
	nowFn  func() time.Time
}

// NewInMemoryStore creates a new InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		jobs:   make(map[string]*Job),
		config: make(map[string]string),
		nowFn:  time.Now,
	}
}

// Start seeds the config defaults, like a persistent store does on
// first initialization.
func (st *InMemoryStore) Start() error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.config[ConfigMaxRetries]; !ok {
		st.config[ConfigMaxRetries] = "3"
	}
	if _, ok := st.config[ConfigBackoffBase]; !ok {
		st.config[ConfigBackoffBase] = "2"
	}
	return nil
}

// Create adds a new job.
func (st *InMemoryStore) Create(job *Job) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, exists := st.jobs[job.ID]; exists {
		return ErrDuplicateID
	}
	c := *job
	st.jobs[job.ID] = &c
	return nil
}

// Claim picks the oldest eligible pending job and marks it Processing.
// The mutex makes the select-and-mark atomic within the process.
func (st *InMemoryStore) Claim() (*Job, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	now := st.nowFn().UnixNano()
	var next *Job
	for _, job := range st.jobs {
		if job.State != Pending || job.RunAt > now {
			continue
		}
		if next == nil || job.Created < next.Created {
			next = job
		}
	}
	if next == nil {
		return nil, nil
	}
	claimed := *next // pre-update row contents for the caller
	next.State = Processing
	next.Updated = now
	return &claimed, nil
}

// Update updates the job.
func (st *InMemoryStore) Update(job *Job) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	c := *job
	st.jobs[job.ID] = &c
	return nil
}

// UpdateState unconditionally overwrites the job's state.
func (st *InMemoryStore) UpdateState(id, state string) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	job, found := st.jobs[id]
	if !found {
		return ErrNotFound
	}
	job.State = state
	job.Updated = st.nowFn().UnixNano()
	return nil
}

// RetryDead moves a dead job back to Pending with a fresh budget.
func (st *InMemoryStore) RetryDead(id string) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	job, found := st.jobs[id]
	if !found || job.State != Dead {
		return ErrNotFound
	}
	now := st.nowFn().UnixNano()
	job.State = Pending
	job.Attempts = 0
	job.RunAt = now
	job.Updated = now
	return nil
}

// Lookup returns the job with the specified identifier (or ErrNotFound).
func (st *InMemoryStore) Lookup(id string) (*Job, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	job, found := st.jobs[id]
	if !found {
		return nil, ErrNotFound
	}
	c := *job
	return &c, nil
}

// List returns all jobs in the given state, oldest first.
func (st *InMemoryStore) List(state string) ([]*Job, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	var jobs []*Job
	for _, job := range st.jobs {
		if job.State == state {
			c := *job
			jobs = append(jobs, &c)
		}
	}
	for i := 1; i < len(jobs); i++ {
		for j := i; j > 0 && jobs[j].Created < jobs[j-1].Created; j-- {
			jobs[j], jobs[j-1] = jobs[j-1], jobs[j]
		}
	}
	return jobs, nil
}

// Stats returns statistics about the jobs in the store.
func (st *InMemoryStore) Stats() (*Stats, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	stats := &Stats{}
	for _, job := range st.jobs {
		switch job.State {
		case Pending:
			stats.Pending++
		case Processing:
			stats.Processing++
		case Completed:
			stats.Completed++
		case Dead:
			stats.Dead++
		case Failed:
			stats.Failed++
		}
	}
	return stats, nil
}

// GetConfig returns a config value or ErrNotFound; it never substitutes
// defaults.
func (st *InMemoryStore) GetConfig(key string) (string, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	v, found := st.config[key]
	if !found {
		return "", ErrNotFound
	}
	return v, nil
}

// SetConfig creates or overwrites a config key.
func (st *InMemoryStore) SetConfig(key, value string) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.config[key] = value
	return nil
}
