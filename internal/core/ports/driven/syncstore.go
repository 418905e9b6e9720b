package driven

import (
	"context"

	"github.com/custodia-labs/relaysync/internal/core/domain"
)

// SyncStateStore persists one sync state per (account, kind) pair and
// enforces the at-most-one-concurrent-sync guard.
//
// Begin is the single cross-task coordination point: it must be an atomic
// check-and-set on the pair's state. Complete and Fail must commit the
// cursor and the counters together; a cursor that advances without its
// counters (or vice versa) is a corruption the engine cannot recover from.
type SyncStateStore interface {
	// Get returns the pair's state, or domain.ErrNotFound before the
	// first sync.
	Get(ctx context.Context, accountID string, kind domain.RecordKind) (*domain.SyncState, error)

	// List returns all known sync states.
	List(ctx context.Context) ([]domain.SyncState, error)

	// Begin transitions the pair to syncing, creating the state lazily on
	// first use. Returns domain.ErrSyncInProgress if already syncing and
	// domain.ErrSyncDisabled if the pair has sync disabled. The returned
	// snapshot carries the cursor the pass should resume from.
	Begin(ctx context.Context, accountID string, kind domain.RecordKind) (*domain.SyncState, error)

	// SaveProgress updates counters, the phase label and the derived
	// percentage of an in-flight pass. The cursor is untouched.
	SaveProgress(ctx context.Context, accountID string, kind domain.RecordKind, counters domain.SyncCounters, operation string) error

	// Complete finishes a pass: status completed, final counters, new
	// cursor, lastSuccessfulSyncAt now. Committed atomically.
	Complete(ctx context.Context, accountID string, kind domain.RecordKind, counters domain.SyncCounters, cursor string) error

	// Fail finishes a pass after a pass-fatal error: status error, the
	// message stored, cursor left at the last good checkpoint.
	// Committed atomically.
	Fail(ctx context.Context, accountID string, kind domain.RecordKind, counters domain.SyncCounters, message string, cursor string) error

	// SetEnabled toggles whether sync may run for the pair.
	SetEnabled(ctx context.Context, accountID string, kind domain.RecordKind, enabled bool) error

	// SetAutoSync toggles background scheduling for the pair.
	SetAutoSync(ctx context.Context, accountID string, kind domain.RecordKind, auto bool) error

	// Reset clears counters, cursor and error, returning the pair to
	// idle. The state row itself is never deleted.
	Reset(ctx context.Context, accountID string, kind domain.RecordKind) error
}
