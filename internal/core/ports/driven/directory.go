package driven

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/relaysync/internal/core/domain"
)

// RemoteChange is one change reported by a provider's change log.
type RemoteChange struct {
	// RemoteID is the provider-assigned identity of the record.
	RemoteID string

	// Fields is the kind-specific payload, already mapped out of the
	// provider's wire format. Empty for deletions.
	Fields map[string]any

	// RemoteUpdatedAt is the modification timestamp the provider reports.
	RemoteUpdatedAt time.Time

	// Deleted marks a remote tombstone.
	Deleted bool
}

// ChangePage is one page of a provider change listing.
type ChangePage struct {
	// Changes are the changes in provider order.
	Changes []RemoteChange

	// NextCursor resumes listing after this page. On the final page it is
	// the token the next incremental sync should start from.
	NextCursor string

	// HasMore indicates further pages exist.
	HasMore bool

	// TotalEstimate is a best-effort count of records the listing covers.
	// Zero means the provider gave no estimate.
	TotalEstimate int
}

// PushResult is the provider's acknowledgement of a push.
type PushResult struct {
	// RemoteID is the provider identity, newly assigned for creates.
	RemoteID string

	// RemoteUpdatedAt is the provider's timestamp for the pushed state.
	RemoteUpdatedAt time.Time
}

// RemoteDirectory is the capability a provider family exposes to the sync
// engine: a resumable change log plus create/update/delete. One instance
// serves one (account, kind) pair. Provider-specific paging, rate limits
// and field mapping stay behind this interface.
//
// Delivery is at-least-once: after an interruption, a page already
// processed may be re-delivered, so callers must apply changes
// idempotently.
type RemoteDirectory interface {
	// Provider returns the provider identifier (google, microsoft, ...).
	Provider() string

	// Kind returns the record kind this directory serves.
	Kind() domain.RecordKind

	// Validate checks that the directory is configured and authenticated.
	// Typically a lightweight API call.
	Validate(ctx context.Context) error

	// ListChanges returns one page of changes at the cursor. An empty
	// cursor requests full enumeration from the beginning.
	// Errors are classified Transient or Permanent; an unclassified
	// error is pass-fatal.
	ListChanges(ctx context.Context, cursor string) (*ChangePage, error)

	// Push creates or updates the record remotely and returns the
	// provider identity and timestamp.
	Push(ctx context.Context, rec *domain.Record) (*PushResult, error)

	// Remove deletes the record remotely. A record already gone at the
	// provider is success, keeping Remove idempotent under retries.
	Remove(ctx context.Context, remoteID string) error

	// Close releases resources.
	Close() error
}

// DirectoryFactory creates remote directories from account configuration.
type DirectoryFactory interface {
	// Create returns a RemoteDirectory for the account and kind.
	// Returns domain.ErrInvalidInput for an unknown provider.
	Create(ctx context.Context, account domain.Account, kind domain.RecordKind) (RemoteDirectory, error)
}

// ErrorClass partitions directory errors for retry policy.
type ErrorClass int

const (
	// ClassTransient covers rate limits, timeouts and 5xx responses.
	// The affected record or page is retried on the next pass.
	ClassTransient ErrorClass = iota + 1

	// ClassPermanent covers auth revocation, validation rejections and
	// records gone at the provider. Recorded, never retried blindly.
	ClassPermanent
)

// DirectoryError attaches a retry classification to a provider error.
type DirectoryError struct {
	Class ErrorClass
	Err   error
}

// Error implements the error interface.
func (e *DirectoryError) Error() string {
	switch e.Class {
	case ClassTransient:
		return fmt.Sprintf("transient: %v", e.Err)
	case ClassPermanent:
		return fmt.Sprintf("permanent: %v", e.Err)
	default:
		return e.Err.Error()
	}
}

// Unwrap exposes the underlying provider error.
func (e *DirectoryError) Unwrap() error {
	return e.Err
}

// Transient wraps err as retryable on the next pass.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &DirectoryError{Class: ClassTransient, Err: err}
}

// Permanent wraps err as not retryable.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &DirectoryError{Class: ClassPermanent, Err: err}
}

// IsTransient returns true if err carries a transient classification.
func IsTransient(err error) bool {
	var de *DirectoryError
	return errors.As(err, &de) && de.Class == ClassTransient
}

// IsPermanent returns true if err carries a permanent classification.
func IsPermanent(err error) bool {
	var de *DirectoryError
	return errors.As(err, &de) && de.Class == ClassPermanent
}
