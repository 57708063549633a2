package queuectl

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// StopFile is the shared stop signal for workers: the existence of a
// marker file means "stop requested". It is advisory and idempotent to
// clear; any worker may consume it. A nil *StopFile is never signaled.
type StopFile struct {
	path string
}

// NewStopFile returns a stop signal backed by the marker at path.
func NewStopFile(path string) *StopFile {
	return &StopFile{path: path}
}

// Path returns the location of the marker file.
func (f *StopFile) Path() string {
	if f == nil {
		return ""
	}
	return f.path
}

// Exists reports whether a stop has been requested.
func (f *StopFile) Exists() bool {
	if f == nil {
		return false
	}
	_, err := os.Stat(f.path)
	return err == nil
}

// Signal requests a stop by creating the marker file.
func (f *StopFile) Signal() error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return err
	}
	file, err := os.OpenFile(f.path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	return file.Close()
}

// Clear removes the marker file. A missing marker is not an error.
func (f *StopFile) Clear() error {
	if f == nil {
		return nil
	}
	err := os.Remove(f.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Consume atomically observes-and-clears the signal. It returns true
// when a stop was requested, in which case the marker has been removed
// so the signal gates exactly one startup or poll cycle.
func (f *StopFile) Consume() bool {
	if f == nil {
		return false
	}
	err := os.Remove(f.path)
	return err == nil
}
