package driving

import (
	"context"

	"github.com/custodia-labs/relaysync/internal/core/domain"
)

// RecordService is the local mutation surface for records. Callers supply
// the version they last observed; a stale version is rejected with
// *domain.ConflictError carrying the current snapshot, and the caller
// decides whether to retry with fresh data or force-overwrite. This is
// optimistic concurrency, not locking: no mutation blocks another.
type RecordService interface {
	// Get retrieves a record by ID.
	Get(ctx context.Context, id string) (*domain.Record, error)

	// List returns all records for an account and kind.
	List(ctx context.Context, accountID string, kind domain.RecordKind) ([]domain.Record, error)

	// ListByStatus returns records in the given status, e.g. conflicts
	// awaiting resolution or records with stored push errors.
	ListByStatus(ctx context.Context, accountID string, kind domain.RecordKind, status domain.SyncStatus) ([]domain.Record, error)

	// Create stores a new local record as pending_create.
	Create(ctx context.Context, accountID string, kind domain.RecordKind, fields map[string]any) (*domain.Record, error)

	// Update applies a local edit guarded by expectedVersion.
	Update(ctx context.Context, id string, fields map[string]any, expectedVersion int64) (*domain.Record, error)

	// Delete soft-deletes the record guarded by expectedVersion. The
	// remote copy is removed on the next sync pass.
	Delete(ctx context.Context, id string, expectedVersion int64) error

	// Resolve settles a surfaced conflict with an explicit decision.
	Resolve(ctx context.Context, id string, resolution domain.ConflictResolution) (*domain.Record, error)

	// Purge hard-deletes the record locally without touching the remote
	// copy. Reserved for account teardown and user-initiated purge.
	Purge(ctx context.Context, id string) error
}
