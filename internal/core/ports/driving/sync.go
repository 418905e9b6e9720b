package driving

import (
	"context"

	"github.com/custodia-labs/relaysync/internal/core/domain"
)

// SyncEngine coordinates record synchronisation between the local store
// and remote providers. It is the engine's exposed surface: trigger a
// pass and wait, stream a pass's progress, or read the current state.
type SyncEngine interface {
	// TriggerSync runs one sync pass for the pair to completion or
	// failure. forceFullSync discards the stored cursor and re-enumerates
	// the provider. Returns domain.ErrSyncInProgress if a pass is
	// already running for the pair.
	//
	// A pass that finished with only record-level errors is a completed
	// result with a non-zero ErrorRecords count, not an error return.
	TriggerSync(ctx context.Context, accountID string, kind domain.RecordKind, forceFullSync bool) (*SyncResult, error)

	// StreamSync starts a pass and returns its progress events: a finite,
	// non-restartable sequence of progress events terminated by exactly
	// one complete or error event, after which the channel is closed.
	// The caller must drain the channel.
	StreamSync(ctx context.Context, accountID string, kind domain.RecordKind, forceFullSync bool) (<-chan domain.ProgressEvent, error)

	// SyncState returns a read-only snapshot of the pair's state. It is
	// available whether or not a sync is in flight; before the first sync
	// it returns domain.ErrNotFound.
	SyncState(ctx context.Context, accountID string, kind domain.RecordKind) (*domain.SyncState, error)
}

// SyncResult is the outcome of one sync pass.
type SyncResult struct {
	// AccountID identifies the account.
	AccountID string

	// Kind is the record kind synced.
	Kind domain.RecordKind

	// Status is completed or error.
	Status domain.SyncRunStatus

	// Counters are the final pass counters.
	Counters domain.SyncCounters

	// Cursor is the token the next incremental pass will start from.
	Cursor string

	// Message carries the top-level reason of a pass-fatal failure.
	Message string
}
