package domain

import "time"

// SyncRunStatus is the account-wide state of synchronisation for one
// (account, kind) pair. Conflicts are a per-record condition counted in
// SyncCounters, never an account-wide status.
type SyncRunStatus string

const (
	// RunIdle means no sync has run yet or the state was reset.
	RunIdle SyncRunStatus = "idle"

	// RunSyncing means a sync pass is in flight.
	RunSyncing SyncRunStatus = "syncing"

	// RunCompleted means the last pass drained all pages, possibly with
	// record-level errors.
	RunCompleted SyncRunStatus = "completed"

	// RunError means the last pass failed before completion; the cursor
	// is preserved at the last good checkpoint.
	RunError SyncRunStatus = "error"
)

// IsValid returns true for a known run status.
func (s SyncRunStatus) IsValid() bool {
	switch s {
	case RunIdle, RunSyncing, RunCompleted, RunError:
		return true
	}
	return false
}

// SyncCounters are the aggregate per-pass counters.
type SyncCounters struct {
	// TotalRecords is a best-effort estimate from the adapter. It may be
	// revised upward mid-sync, never below SyncedRecords.
	TotalRecords int

	// SyncedRecords counts records reconciled this pass.
	SyncedRecords int

	// PendingRecords counts local records still awaiting push.
	PendingRecords int

	// ErrorRecords counts records the provider permanently rejected.
	ErrorRecords int

	// ConflictRecords counts records surfaced as conflicts.
	ConflictRecords int
}

// Percent returns progress as syncedRecords / max(totalRecords,
// syncedRecords), clamped to [0,100].
func (c SyncCounters) Percent() int {
	denom := c.TotalRecords
	if c.SyncedRecords > denom {
		denom = c.SyncedRecords
	}
	if denom <= 0 {
		return 0
	}
	pct := c.SyncedRecords * 100 / denom
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// SyncState tracks synchronisation for one (account, kind) pair. It is
// created lazily on first sync trigger and persists for the account's
// lifetime; it is reset, never deleted.
type SyncState struct {
	// AccountID identifies the account.
	AccountID string

	// Kind is the record kind this state covers.
	Kind RecordKind

	// Status is the current run status.
	Status SyncRunStatus

	// Counters are the aggregate counters of the current or last pass.
	Counters SyncCounters

	// Cursor is the opaque provider token for incremental sync.
	Cursor string

	// LastSuccessfulSyncAt is when a pass last completed.
	LastSuccessfulSyncAt time.Time

	// LastSyncAttemptAt is when a pass last started.
	LastSyncAttemptAt time.Time

	// CurrentOperation is a human-readable phase label.
	CurrentOperation string

	// ProgressPercentage is the derived progress of the current pass.
	ProgressPercentage int

	// SyncError is the top-level message of a pass-fatal failure.
	SyncError string

	// SyncEnabled gates whether sync may be triggered at all.
	SyncEnabled bool

	// AutoSync opts the pair into the background scheduler.
	AutoSync bool
}
