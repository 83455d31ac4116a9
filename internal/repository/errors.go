package repository

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an update targets a record that does not exist
	ErrNotFound = errors.New("not found")

	// ErrValidation is returned for disallowed operations and empty payloads
	ErrValidation = errors.New("validation failed")
)

// StorageError reports a failure of the underlying storage medium
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %q: %w", kind, id, ErrNotFound)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
