package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/relaysync/internal/core/domain"
)

// RecordStore owns the authoritative local copy of each record plus its
// sync metadata. Implementations must serialise mutations per record so a
// concurrent local edit and an in-flight sync application cannot lose
// updates, and must bump Version atomically with every local mutation.
//
// The *FromLocal operations implement the optimistic-concurrency local
// mutation path: a stale expectedVersion is rejected with
// *domain.ConflictError carrying the current snapshot, and the stored
// record is left untouched.
type RecordStore interface {
	// Get retrieves a record by local ID.
	Get(ctx context.Context, id string) (*domain.Record, error)

	// GetByRemoteID retrieves a record by provider identity.
	GetByRemoteID(ctx context.Context, accountID string, kind domain.RecordKind, remoteID string) (*domain.Record, error)

	// List returns all records for an account and kind, soft-deleted
	// included.
	List(ctx context.Context, accountID string, kind domain.RecordKind) ([]domain.Record, error)

	// ListPending returns records awaiting push (pending_create,
	// pending_update, pending_delete).
	ListPending(ctx context.Context, accountID string, kind domain.RecordKind) ([]domain.Record, error)

	// ListByStatus returns records in the given sync status.
	ListByStatus(ctx context.Context, accountID string, kind domain.RecordKind, status domain.SyncStatus) ([]domain.Record, error)

	// CreateFromLocal stores a locally created record: status
	// pending_create, version 1, localUpdatedAt now.
	CreateFromLocal(ctx context.Context, rec *domain.Record) error

	// UpdateFromLocal applies a local edit if expectedVersion still
	// matches: replaces fields, bumps version, sets pending_update
	// (pending_create stays pending_create), localUpdatedAt now.
	UpdateFromLocal(ctx context.Context, id string, fields map[string]any, expectedVersion int64) (*domain.Record, error)

	// SoftDelete marks the record deleted if expectedVersion still
	// matches: isDeleted true, status pending_delete, version bumped.
	SoftDelete(ctx context.Context, id string, expectedVersion int64) (*domain.Record, error)

	// ApplyRemote applies a remote change: upserts the local shadow with
	// the remote fields, sets status synced and remoteUpdatedAt, clears
	// any remote snapshot. Version is NOT bumped; remote application is
	// not a local edit. Idempotent under re-delivery.
	//
	// The status is re-checked inside the store's lock: if the record
	// acquired a pending edit or an unresolved conflict after the
	// caller's lookup, nothing is overwritten and *domain.ConflictError
	// carries the current snapshot so the caller can re-decide.
	ApplyRemote(ctx context.Context, accountID string, kind domain.RecordKind, remoteID string, fields map[string]any, remoteUpdatedAt time.Time) (*domain.Record, error)

	// ApplyRemoteDelete soft-deletes the local shadow for a remote
	// tombstone: isDeleted true, status synced. Guarded like
	// ApplyRemote: a record that acquired a pending edit or conflict
	// since the caller's lookup is left untouched and the current
	// snapshot returned in *domain.ConflictError.
	ApplyRemoteDelete(ctx context.Context, id string, remoteUpdatedAt time.Time) error

	// MarkConflict sets status conflict and stores the remote snapshot
	// alongside the untouched local fields.
	MarkConflict(ctx context.Context, id string, snapshot domain.RemoteSnapshot) error

	// MarkSynced clears a pending status after a successful push,
	// recording the provider identity and timestamp.
	MarkSynced(ctx context.Context, id string, remoteID string, remoteUpdatedAt time.Time) error

	// MarkError records a permanent push failure on the record.
	MarkError(ctx context.Context, id string, message string) error

	// ResolveConflict settles a conflicted record. keep_local restores
	// the local fields as pending, accept_remote applies the stored
	// snapshot as synced. Returns domain.ErrNotConflicted otherwise.
	ResolveConflict(ctx context.Context, id string, resolution domain.ConflictResolution) (*domain.Record, error)

	// HardDelete removes the row. Reserved for completed remote deletes
	// and explicit purge; the sync engine never hard-deletes live data.
	HardDelete(ctx context.Context, id string) error
}

// AccountStore persists connected accounts.
type AccountStore interface {
	// Get retrieves an account by ID.
	Get(ctx context.Context, id string) (*domain.Account, error)

	// List returns all accounts.
	List(ctx context.Context) ([]domain.Account, error)

	// Save stores or updates an account.
	Save(ctx context.Context, account domain.Account) error

	// Delete removes an account.
	Delete(ctx context.Context, id string) error
}
