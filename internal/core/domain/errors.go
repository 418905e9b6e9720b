package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrSyncInProgress indicates a sync is already running for the
	// (account, kind) pair. The begin guard returns this instead of
	// starting a duplicate pass.
	ErrSyncInProgress = errors.New("sync in progress")

	// ErrSyncDisabled indicates syncing was disabled for the pair.
	ErrSyncDisabled = errors.New("sync disabled")

	// ErrInvalidCursor indicates a stored cursor the adapter cannot
	// resume from; the caller should force a full sync.
	ErrInvalidCursor = errors.New("invalid sync cursor")

	// ErrNotConflicted indicates a resolve call on a record that is not
	// in conflict.
	ErrNotConflicted = errors.New("record is not conflicted")

	// ErrConflict is the sentinel matched by ConflictError via errors.Is.
	ErrConflict = errors.New("conflict")
)

// ConflictError rejects a local mutation whose expected version no longer
// matches the stored record. It carries the store's current snapshot so
// the caller can retry with fresh data or force-overwrite.
type ConflictError struct {
	// Current is the record as stored at rejection time.
	Current *Record
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	if e.Current == nil {
		return "conflict: record changed"
	}
	return fmt.Sprintf("conflict: record %s is at version %d", e.Current.ID, e.Current.Version)
}

// Is lets errors.Is(err, ErrConflict) match a ConflictError.
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}
