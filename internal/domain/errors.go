package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrInvalidInput      = errors.New("invalid input")
	ErrAccountNotFound   = errors.New("billing account not found")
	ErrInvalidTransition = errors.New("invalid service status transition")
	ErrRunInProgress     = errors.New("billing run already in progress")
	ErrPersistence       = errors.New("persistence failure")
)

// PersistenceError wraps a storage-layer failure. errors.Is(err, ErrPersistence)
// matches it; errors.Unwrap exposes the driver error.
type PersistenceError struct {
	Op  string
	Err error
}

func NewPersistenceError(op string, err error) *PersistenceError {
	return &PersistenceError{Op: op, Err: err}
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, ErrPersistence, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }
