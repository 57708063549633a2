package internal

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
)

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{sql.ErrNoRows, true},
		{fmt.Errorf("wrapped: %w", sql.ErrNoRows), true},
		{errors.New("boom"), false},
	}
	for _, tt := range tests {
		if have, want := IsNotFound(tt.err), tt.want; have != want {
			t.Errorf("IsNotFound(%v) = %t, want %t", tt.err, have, want)
		}
	}
}

func TestIsDup(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'x' for key 'PRIMARY'"}, true},
		{&mysql.MySQLError{Number: 1213, Message: "Deadlock found"}, false},
		{errors.New("boom"), false},
	}
	for _, tt := range tests {
		if have, want := IsDup(tt.err), tt.want; have != want {
			t.Errorf("IsDup(%v) = %t, want %t", tt.err, have, want)
		}
	}
}

func TestIsContention(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{&mysql.MySQLError{Number: 1213, Message: "Deadlock found when trying to get lock"}, true},
		{&mysql.MySQLError{Number: 1205, Message: "Lock wait timeout exceeded"}, true},
		{&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}, false},
		{errors.New("boom"), false},
	}
	for _, tt := range tests {
		if have, want := IsContention(tt.err), tt.want; have != want {
			t.Errorf("IsContention(%v) = %t, want %t", tt.err, have, want)
		}
	}
}
