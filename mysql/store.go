package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	mysqldriver "github.com/go-sql-driver/mysql"

	"github.com/queuectl/queuectl"
	"github.com/queuectl/queuectl/mysql/internal"
)

const (
	jobsSchema = `CREATE TABLE IF NOT EXISTS jobs (
id varchar(191) primary key,
command text not null,
state varchar(30) not null,
attempts integer not null,
max_retries integer not null,
run_at bigint not null,
created_at bigint not null,
updated_at bigint not null,
index ix_jobs_state_run_at (state, run_at),
index ix_jobs_created (created_at));`

	configSchema = "CREATE TABLE IF NOT EXISTS config (`key` varchar(191) primary key, `value` text not null);"
)

var jobColumns = []string{"id", "command", "state", "attempts", "max_retries", "run_at", "created_at", "updated_at"}

// Store represents a persistent MySQL storage backend for deployments
// where the workers share a database server instead of a local file.
// It implements the queuectl.Store interface.
//
// Claim locks the selected row with SELECT ... FOR UPDATE inside the
// claim transaction, so concurrent claimers serialize on the row and
// never hand out the same job twice.
type Store struct {
	db     *sql.DB
	logger queuectl.Logger
}

// StoreOption is an options provider for Store.
type StoreOption func(*Store)

// SetLogger redirects store logging.
func SetLogger(logger queuectl.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStore connects to MySQL with the given DSN, creating the database
// named in the DSN if it does not exist. Call Start before using the
// store.
func NewStore(url string, options ...StoreOption) (*Store, error) {
	st := &Store{}
	for _, opt := range options {
		opt(st)
	}
	cfg, err := mysqldriver.ParseDSN(url)
	if err != nil {
		return nil, err
	}
	dbname := cfg.DBName
	if dbname == "" {
		return nil, errors.New("mysql: no database specified")
	}
	// First connect without DB name to create the database.
	cfg.DBName = ""
	setupdb, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, err
	}
	_, err = setupdb.Exec(fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", dbname))
	if cerr := setupdb.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, err
	}

	// Now connect again, this time with the db name.
	st.db, err = sql.Open("mysql", url)
	if err != nil {
		return nil, err
	}
	return st, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Start creates the schema and seeds the config defaults. It is safe
// to run on every process start.
func (s *Store) Start() error {
	for _, stmt := range []string{jobsSchema, configSchema} {
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
			Options("IGNORE").
			Columns("`key`", "`value`").
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
	}, internal.IsContention)
	if internal.IsDup(err) {
		return queuectl.ErrDuplicateID
	}
	return err
}

// Claim picks the oldest eligible pending job and marks it Processing
// inside one transaction, holding a row lock between the select and
// the update. Contention is reported as (nil, nil).
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
			Suffix("FOR UPDATE").
			ToSql()
		if err != nil {
			return err
		}
		job, err := scanJob(tx.QueryRowContext(ctx, query, args...))
		if internal.IsNotFound(err) {
			return nil
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
		if internal.IsContention(err) {
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
	}, internal.IsContention)
}

// UpdateState unconditionally overwrites the job's state.
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
	}, internal.IsContention)
}

// RetryDead moves a dead job back to Pending with attempts reset.
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
	}, internal.IsContention)
	if err != nil {
		return err
	}
	if affected == 0 {
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

// Stats returns the number of jobs per state.
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
	query, args, err := sq.Select("`value`").
		From("config").
		Where(sq.Eq{"`key`": key}).
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
		Columns("`key`", "`value`").
		Values(key, value).
		Suffix("ON DUPLICATE KEY UPDATE `value` = VALUES(`value`)").
		ToSql()
	if err != nil {
		return err
	}
	return internal.RunWithRetry(func() error {
		_, execErr := s.db.Exec(query, args...)
		return execErr
	}, internal.IsContention)
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
