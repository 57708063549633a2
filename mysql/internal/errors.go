package internal

import (
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"
)

// IsNotFound returns true if the given error indicates that a record
// could not be found.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// IsDup returns true if the given error indicates that we found
// a duplicate record.
func IsDup(err error) bool {
	var me *mysql.MySQLError
	if !errors.As(err, &me) {
		return false
	}
	return me.Number == 1062 // Duplicate key error
}

// IsContention returns true if the given error indicates that another
// transaction holds a conflicting lock. Error 1213 is a deadlock,
// error 1205 a lock wait timeout; both mean a concurrent claimer got
// there first and the caller should simply try again later.
func IsContention(err error) bool {
	var me *mysql.MySQLError
	if !errors.As(err, &me) {
		return false
	}
	return me.Number == 1213 || me.Number == 1205
}
