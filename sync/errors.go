package sync

import (
	"fmt"

	"github.com/pkg/errors"
)

// MappingError marks a source record that cannot produce a valid target
// entity. The record is skipped, never submitted.
type MappingError struct {
	Kind   string
	ID     string
	Reason string
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("mapping %s %s: %s", e.Kind, e.ID, e.Reason)
}

// ConflictError is a uniqueness rejection from the target system. It is
// recoverable by searching on the natural key and linking the existing
// record.
type ConflictError struct {
	Kind string
	Key  string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s with key %q already exists", e.Kind, e.Key)
}

// NotFoundError marks an expected record missing in either system.
type NotFoundError struct {
	Kind string
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Key)
}

// JobTimeoutError is raised when a bulk job does not reach a terminal state
// within the poll attempt budget.
type JobTimeoutError struct {
	JobID    string
	Attempts int
}

func (e *JobTimeoutError) Error() string {
	return fmt.Sprintf("job %s not terminal after %d poll attempts", e.JobID, e.Attempts)
}

// TransportError wraps a network or auth failure from an adapter. It is not
// retried locally, the driver skips the entity and logs.
type TransportError struct {
	System string
	Op     string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.System, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

func IsNotFound(err error) bool {
	var ne *NotFoundError
	return errors.As(err, &ne)
}

func IsMapping(err error) bool {
	var me *MappingError
	return errors.As(err, &me)
}

func IsJobTimeout(err error) bool {
	var je *JobTimeoutError
	return errors.As(err, &je)
}
