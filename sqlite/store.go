package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"github.com/queuectl/queuectl"
	"github.com/queuectl/queuectl/sqlite/internal"
)

const (
	jobsSchema = `CREATE TABLE IF NOT EXISTS jobs (
id text primary key,
command text not null,
state text not null default 'pending',
attempts integer not null default 0,
max_retries integer not null default 3,
run_at integer not null,
created_at integer not null,
updated_at integer not null);`

	configSchema = `CREATE TABLE IF NOT EXISTS config (
key text primary key,
value text not null);`

	// Index to make the pending-scan in Claim fast.
	jobsIndex = `CREATE INDEX IF NOT EXISTS ix_jobs_state_run_at ON jobs (state, run_at);`
)

// jobColumns is the column order used by every select and scan.
var jobColumns = []string{"id", "command", "state", "attempts", "max_retries", "run_at", "created_at", "updated_at"}

// Store is the default persistent storage backend: a single SQLite
// file, conventionally at ~/.queuectl/queue.db, shared by any number
// of local worker processes. It implements the queuectl.Store
// interface.
//
// Claim relies on SQLite's write lock: the claim transaction acquires
// the lock before the pending-scan (the connection opens transactions
// with BEGIN IMMEDIATE), so a second concurrent claimer blocks until
// the first commits or rolls back and never sees the same row.
type Store struct {
	db     *sql.DB
	path   string
	logger queuectl.Logger
}

// StoreOption is an options provider for Store.
type StoreOption func(*Store)

// SetLogger redirects store logging, e.g. for schema migrations.
func SetLogger(logger queuectl.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStore opens (and creates, if needed) the SQLite database file at
// path. Call Start before using the store.
func NewStore(path string, options ...StoreOption) (*Store, error) {
	st := &Store{path: path}
	for _, opt := range options {
		opt(st)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	// WAL for cross-process concurrency, a busy timeout so writers
	// queue up instead of failing immediately, and immediate
	// transactions so Claim takes the write lock before its read.
	dsn := "file:" + path +
		"?_txlock=immediate" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// Serialize this process's access on one connection. Cross-process
	// exclusion comes from the database write lock, not from here.
	db.SetMaxOpenConns(1)
	st.db = db
	return st, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Start creates the schema and seeds the config defaults. It is safe
// to run on every process start.
func (s *Store) Start() error {
	for _, stmt := range []string{jobsSchema, configSchema, jobsIndex} {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	seeds := map[string]string{
		queuectl.ConfigMaxRetries:  "3",
		queuectl.ConfigBackoffBase: "2",
	}
	for key, value := range seeds {
		query, args, err := sq.Insert("config").
			Options("OR IGNORE").
			Columns("key", "value").
			Values(key, value).
			ToSql()
		if err != nil {
			return err
		}
		if _, err := s.db.Exec(query, args...); err != nil {
			return err
		}
	}
	return nil
}

// Create adds a new job to the store.
func (s *Store) Create(job *queuectl.Job) error {
	query, args, err := sq.Insert("jobs").
		Columns(jobColumns...).
		Values(job.ID, job.Command, job.State, job.Attempts, job.MaxRetries, job.RunAt, job.Created, job.Updated).
		ToSql()
	if err != nil {
		return err
	}
	err = internal.RunWithRetry(func() error {
		_, execErr := s.db.Exec(query, args...)
		return execErr
	}, internal.IsBusy)
	if internal.IsDup(err) {
		return queuectl.ErrDuplicateID
	}
	return err
}

// Claim picks the oldest eligible pending job and marks it Processing,
// both inside one immediate transaction. Lock contention is reported
// as (nil, nil): the caller simply polls again later.
func (s *Store) Claim() (*queuectl.Job, error) {
	var claimed *queuectl.Job
	err := internal.RunInTx(context.Background(), s.db, func(ctx context.Context, tx *sql.Tx) error {
		claimed = nil
		now := time.Now().UnixNano()
		query, args, err := sq.Select(jobColumns...).
			From("jobs").
			Where(sq.Eq{"state": queuectl.Pending}).
			Where(sq.LtOrEq{"run_at": now}).
			OrderBy("created_at ASC").
			Limit(1).
			ToSql()
		if err != nil {
			return err
		}
		job, err := scanJob(tx.QueryRowContext(ctx, query, args...))
		if internal.IsNotFound(err) {
			return nil // empty transaction, nothing eligible
		}
		if err != nil {
			return err
		}
		query, args, err = sq.Update("jobs").
			Set("state", queuectl.Processing).
			Set("updated_at", now).
			Where(sq.Eq{"id": job.ID}).
			ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}
		claimed = job
		return nil
	})
	if err != nil {
		if internal.IsBusy(err) {
			return nil, nil
		}
		return nil, err
	}
	return claimed, nil
}

// Update persists the job's state, attempts and run time.
func (s *Store) Update(job *queuectl.Job) error {
	query, args, err := sq.Update("jobs").
		Set("state", job.State).
		Set("attempts", job.Attempts).
		Set("run_at", job.RunAt).
		Set("updated_at", job.Updated).
		Where(sq.Eq{"id": job.ID}).
		ToSql()
	if err != nil {
		return err
	}
	return internal.RunWithRetry(func() error {
		_, execErr := s.db.Exec(query, args...)
		return execErr
	}, internal.IsBusy)
}

// UpdateState unconditionally overwrites the job's state. The caller
// must already hold logical ownership of the row.
func (s *Store) UpdateState(id, state string) error {
	query, args, err := sq.Update("jobs").
		Set("state", state).
		Set("updated_at", time.Now().UnixNano()).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return err
	}
	return internal.RunWithRetry(func() error {
		_, execErr := s.db.Exec(query, args...)
		return execErr
	}, internal.IsBusy)
}

// RetryDead moves a dead job back to Pending with attempts reset. The
// state condition lives in the WHERE clause, so the check-and-reset is
// a single conditional update.
func (s *Store) RetryDead(id string) error {
	now := time.Now().UnixNano()
	query, args, err := sq.Update("jobs").
		Set("state", queuectl.Pending).
		Set("attempts", 0).
		Set("run_at", now).
		Set("updated_at", now).
		Where(sq.Eq{"id": id, "state": queuectl.Dead}).
		ToSql()
	if err != nil {
		return err
	}
	var affected int64
	err = internal.RunWithRetry(func() error {
		res, execErr := s.db.Exec(query, args...)
		if execErr != nil {
			return execErr
		}
		affected, execErr = res.RowsAffected()
		return execErr
	}, internal.IsBusy)
	if err != nil {
		return err
	}
	if affected == 0 {
		// The id does not exist or the job is not dead.
		return queuectl.ErrNotFound
	}
	return nil
}

// Lookup retrieves a single job by its identifier.
func (s *Store) Lookup(id string) (*queuectl.Job, error) {
	query, args, err := sq.Select(jobColumns...).
		From("jobs").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, err
	}
	job, err := scanJob(s.db.QueryRow(query, args...))
	if internal.IsNotFound(err) {
		return nil, queuectl.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// List returns all jobs in the given state, oldest first.
func (s *Store) List(state string) ([]*queuectl.Job, error) {
	query, args, err := sq.Select(jobColumns...).
		From("jobs").
		Where(sq.Eq{"state": state}).
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var jobs []*queuectl.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Stats returns the number of jobs per state. States without rows are
// reported as zero.
func (s *Store) Stats() (*queuectl.Stats, error) {
	query, args, err := sq.Select("state", "COUNT(*)").
		From("jobs").
		GroupBy("state").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	stats := &queuectl.Stats{}
	for rows.Next() {
		var state string
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, err
		}
		switch state {
		case queuectl.Pending:
			stats.Pending = count
		case queuectl.Processing:
			stats.Processing = count
		case queuectl.Completed:
			stats.Completed = count
		case queuectl.Dead:
			stats.Dead = count
		case queuectl.Failed:
			stats.Failed = count
		}
	}
	return stats, rows.Err()
}

// GetConfig returns the value for a config key, or ErrNotFound.
func (s *Store) GetConfig(key string) (string, error) {
	query, args, err := sq.Select("value").
		From("config").
		Where(sq.Eq{"key": key}).
		ToSql()
	if err != nil {
		return "", err
	}
	var value string
	err = s.db.QueryRow(query, args...).Scan(&value)
	if internal.IsNotFound(err) {
		return "", queuectl.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// SetConfig creates or overwrites a config key.
func (s *Store) SetConfig(key, value string) error {
	query, args, err := sq.Insert("config").
		Options("OR REPLACE").
		Columns("key", "value").
		Values(key, value).
		ToSql()
	if err != nil {
		return err
	}
	return internal.RunWithRetry(func() error {
		_, execErr := s.db.Exec(query, args...)
		return execErr
	}, internal.IsBusy)
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*queuectl.Job, error) {
	var j queuectl.Job
	err := row.Scan(&j.ID, &j.Command, &j.State, &j.Attempts, &j.MaxRetries, &j.RunAt, &j.Created, &j.Updated)
	if err != nil {
		return nil, err
	}
	return &j, nil
}
