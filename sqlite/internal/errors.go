package internal

import (
	"database/sql"
	"errors"
	"strings"
)

// IsNotFound returns true if the given error indicates that a record
// could not be found.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// IsDup returns true if the given error indicates that we found
// a duplicate record.
func IsDup(err error) bool {
	if err == nil {
		return false
	}
	// modernc.org/sqlite reports SQLITE_CONSTRAINT_PRIMARYKEY and
	// SQLITE_CONSTRAINT_UNIQUE with this message text.
	return strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "constraint failed")
}

// IsBusy returns true if the given error indicates lock contention:
// another connection holds the write lock on the database. Callers
// treat this as "no job available right now", not as a failure.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "SQLITE_LOCKED") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}
