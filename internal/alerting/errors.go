package alerting

import (
	"errors"
	"fmt"

	"github.com/good-yellow-bee/vitalguard/internal/models"
)

// NotFoundError is returned when an operation names an unknown device or alert.
type NotFoundError struct {
	Kind string // "alert" or "device"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// StateConflictError is returned when a lifecycle transition is attempted
// from a state that does not allow it.
type StateConflictError struct {
	AlertID   string
	Operation string
	Status    models.AlertStatus
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("cannot %s alert %s in status %s", e.Operation, e.AlertID, e.Status)
}

// PersistenceError wraps a storage failure.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func persistErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsStateConflict reports whether err is a StateConflictError.
func IsStateConflict(err error) bool {
	var sc *StateConflictError
	return errors.As(err, &sc)
}
