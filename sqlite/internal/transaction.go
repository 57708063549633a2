package internal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
)

// RunInTx runs fn in a database transaction.
// The context ctx is passed to fn, as well as the newly created
// transaction.
//
// There are a few rules that fn must respect:
//
//  1. fn must use the passed tx reference for all database calls.
//  2. fn must not commit or rollback the transaction: RunInTx will do
//     that.
//  3. fn must be idempotent, i.e. it may be called several times
//     without side effects.
//
// If fn returns nil, RunInTx commits the transaction, returning the
// result of the Commit. If fn returns a non-nil value, RunInTx rolls
// back the transaction and reports fn's error.
//
// RunInTx also recovers from panics, e.g. in fn.
func RunInTx(ctx context.Context, db *sql.DB, fn func(context.Context, *sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := recover(); rerr != nil {
			err = fmt.Errorf("%v", rerr)
			_ = tx.Rollback()
		}
	}()
	if err = fn(ctx, tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// RunWithRetry runs fn and, when it fails with an error classified as
// retryable, repeats it with exponential backoff before giving up.
func RunWithRetry(fn func() error, retryable func(error) bool) error {
	return RunWithRetryBackoff(fn, retryable, newDefaultBackoff())
}

// RunWithRetryBackoff is like RunWithRetry but with configurable backoff.
func RunWithRetryBackoff(fn func() error, retryable func(error) bool, b backoff.BackOff) (err error) {
	b.Reset()
	for {
		if err = fn(); err == nil {
			return nil
		}
		if retryable != nil && !retryable(err) {
			return err
		}
		delay := b.NextBackOff()
		if delay == backoff.Stop {
			return err
		}
		time.Sleep(delay)
	}
}

func newDefaultBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = 1 * time.Second
	b.MaxElapsedTime = 5 * time.Second
	return b
}
