package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/relaysync/internal/core/domain"
	"github.com/custodia-labs/relaysync/internal/core/ports/driven"
	"github.com/custodia-labs/relaysync/internal/core/ports/driving"
	"github.com/custodia-labs/relaysync/internal/logger"
)

// Phase labels reported through SyncState.CurrentOperation and the
// progress stream.
const (
	opPullingChanges = "pulling remote changes"
	opPushingPending = "pushing pending records"
	opFinalising     = "finalising"
)

// Ensure SyncOrchestrator implements the interface.
var _ driving.SyncEngine = (*SyncOrchestrator)(nil)

// SyncOrchestrator runs sync passes: it pulls provider changes through a
// RemoteDirectory, reconciles them against the RecordStore, pushes
// pending local mutations back, and reports progress through the
// SyncStateStore and an optional event stream.
//
// The at-most-one-concurrent-sync guarantee per (account, kind) comes
// from SyncStateStore.Begin, not from the orchestrator itself.
type SyncOrchestrator struct {
	accounts driven.AccountStore
	records  driven.RecordStore
	states   driven.SyncStateStore
	factory  driven.DirectoryFactory
}

// NewSyncOrchestrator creates a sync orchestrator.
func NewSyncOrchestrator(
	accounts driven.AccountStore,
	records driven.RecordStore,
	states driven.SyncStateStore,
	factory driven.DirectoryFactory,
) *SyncOrchestrator {
	return &SyncOrchestrator{
		accounts: accounts,
		records:  records,
		states:   states,
		factory:  factory,
	}
}

// TriggerSync runs one pass to completion or failure.
func (o *SyncOrchestrator) TriggerSync(ctx context.Context, accountID string, kind domain.RecordKind, forceFullSync bool) (*driving.SyncResult, error) {
	return o.runPass(ctx, accountID, kind, forceFullSync, nil)
}

// StreamSync runs one pass in the background and returns its progress
// events. Failures before the session starts (unknown account, sync
// already in progress) surface as the stream's terminal error event.
func (o *SyncOrchestrator) StreamSync(ctx context.Context, accountID string, kind domain.RecordKind, forceFullSync bool) (<-chan domain.ProgressEvent, error) {
	if !kind.IsValid() {
		return nil, fmt.Errorf("%w: unknown record kind %q", domain.ErrInvalidInput, kind)
	}
	pub := NewProgressPublisher(accountID, kind)
	go func() {
		if _, err := o.runPass(ctx, accountID, kind, forceFullSync, pub); err != nil {
			logger.Debug("Streamed sync for %s/%s ended with error: %v", accountID, kind, err)
		}
	}()
	return pub.Events(), nil
}

// SyncState returns a read-only snapshot of the pair's state.
func (o *SyncOrchestrator) SyncState(ctx context.Context, accountID string, kind domain.RecordKind) (*domain.SyncState, error) {
	return o.states.Get(ctx, accountID, kind)
}

// runPass executes one full or incremental sync pass.
//
//nolint:gocyclo // Orchestration function with necessary sequential steps
func (o *SyncOrchestrator) runPass(
	ctx context.Context,
	accountID string,
	kind domain.RecordKind,
	forceFullSync bool,
	pub *ProgressPublisher,
) (*driving.SyncResult, error) {
	if !kind.IsValid() {
		err := fmt.Errorf("%w: unknown record kind %q", domain.ErrInvalidInput, kind)
		if pub != nil {
			pub.Error(domain.SyncCounters{}, err.Error())
		}
		return nil, err
	}

	// 1. Resolve the account and claim the session. Both failures happen
	// before the session exists, so SyncState is untouched.
	account, err := o.accounts.Get(ctx, accountID)
	if err != nil {
		err = fmt.Errorf("get account: %w", err)
		if pub != nil {
			pub.Error(domain.SyncCounters{}, err.Error())
		}
		return nil, err
	}

	state, err := o.states.Begin(ctx, accountID, kind)
	if err != nil {
		err = fmt.Errorf("begin sync: %w", err)
		if pub != nil {
			pub.Error(domain.SyncCounters{}, err.Error())
		}
		return nil, err
	}

	logger.Section(fmt.Sprintf("sync %s/%s", accountID, kind))
	logger.Info("Starting %s sync for %s/%s", syncMode(forceFullSync, state.Cursor), accountID, kind)

	counters := domain.SyncCounters{}
	checkpoint := state.Cursor

	// 2. Build the provider directory.
	dir, err := o.factory.Create(ctx, *account, kind)
	if err != nil {
		return o.failPass(ctx, accountID, kind, counters, fmt.Errorf("create directory: %w", err), checkpoint, pub)
	}
	defer dir.Close()

	if err := dir.Validate(ctx); err != nil {
		return o.failPass(ctx, accountID, kind, counters, fmt.Errorf("validate directory: %w", err), checkpoint, pub)
	}

	if pending, perr := o.records.ListPending(ctx, accountID, kind); perr == nil {
		counters.PendingRecords = len(pending)
	}

	cursor := state.Cursor
	fullSync := forceFullSync || cursor == ""
	if forceFullSync {
		cursor = ""
	}

	// seen tracks remote identities delivered by a full enumeration so
	// local shadows the provider no longer has can be reaped afterwards.
	var seen map[string]struct{}
	if fullSync {
		seen = make(map[string]struct{})
	}

	// 3. Pull loop. Cancellation is cooperative: checked between pages
	// only, so an aborted pass leaves the cursor at a page boundary.
	for {
		if cerr := ctx.Err(); cerr != nil {
			return o.failPass(ctx, accountID, kind, counters, fmt.Errorf("sync cancelled: %w", cerr), checkpoint, pub)
		}

		page, lerr := dir.ListChanges(ctx, cursor)
		if lerr != nil {
			// Providers expire incremental tokens (Google answers 410
			// Gone). Restart the pass as a full enumeration once.
			if errors.Is(lerr, domain.ErrInvalidCursor) && !fullSync {
				logger.Info("Cursor expired for %s/%s, falling back to full sync", accountID, kind)
				cursor = ""
				checkpoint = ""
				fullSync = true
				seen = make(map[string]struct{})
				continue
			}
			return o.failPass(ctx, accountID, kind, counters, fmt.Errorf("list changes: %w", lerr), checkpoint, pub)
		}

		if page.TotalEstimate > counters.TotalRecords {
			counters.TotalRecords = page.TotalEstimate
		}

		for _, change := range collapsePage(page.Changes) {
			o.reconcileRemote(ctx, accountID, kind, change, &counters, seen)
		}

		cursor = page.NextCursor
		checkpoint = page.NextCursor
		o.reportProgress(ctx, accountID, kind, &counters, opPullingChanges, pub)

		if !page.HasMore {
			break
		}
	}

	// 4. A full enumeration is authoritative: synced shadows whose
	// remote identity was not delivered no longer exist at the provider.
	if fullSync {
		o.reapUnseen(ctx, accountID, kind, seen, &counters)
	}

	// 5. Push phase: propagate pending local mutations.
	pending, err := o.records.ListPending(ctx, accountID, kind)
	if err != nil {
		return o.failPass(ctx, accountID, kind, counters, fmt.Errorf("list pending: %w", err), checkpoint, pub)
	}
	for i := range pending {
		if cerr := ctx.Err(); cerr != nil {
			return o.failPass(ctx, accountID, kind, counters, fmt.Errorf("sync cancelled: %w", cerr), checkpoint, pub)
		}
		o.pushOne(ctx, dir, &pending[i], &counters)
	}
	if remaining, perr := o.records.ListPending(ctx, accountID, kind); perr == nil {
		counters.PendingRecords = len(remaining)
	}
	o.reportProgress(ctx, accountID, kind, &counters, opPushingPending, pub)

	// 6. Finalise: the new cursor and the final counters are committed
	// together by the store.
	if counters.TotalRecords < counters.SyncedRecords {
		counters.TotalRecords = counters.SyncedRecords
	}
	if err := o.states.Complete(context.WithoutCancel(ctx), accountID, kind, counters, checkpoint); err != nil {
		return o.failPass(ctx, accountID, kind, counters, fmt.Errorf("save sync state: %w", err), checkpoint, pub)
	}
	if pub != nil {
		pub.Complete(counters, opFinalising)
	}

	logger.Info("Sync complete for %s/%s: %d synced, %d conflicts, %d errors",
		accountID, kind, counters.SyncedRecords, counters.ConflictRecords, counters.ErrorRecords)

	return &driving.SyncResult{
		AccountID: accountID,
		Kind:      kind,
		Status:    domain.RunCompleted,
		Counters:  counters,
		Cursor:    checkpoint,
	}, nil
}

// failPass ends the session after a pass-fatal error. The cursor stays at
// the last fully processed page so the next pass resumes without loss.
func (o *SyncOrchestrator) failPass(
	ctx context.Context,
	accountID string,
	kind domain.RecordKind,
	counters domain.SyncCounters,
	cause error,
	checkpoint string,
	pub *ProgressPublisher,
) (*driving.SyncResult, error) {
	logger.Warn("Sync failed for %s/%s: %v", accountID, kind, cause)

	// State writes must survive the caller's cancellation.
	wctx := context.WithoutCancel(ctx)
	if err := o.states.Fail(wctx, accountID, kind, counters, cause.Error(), checkpoint); err != nil {
		logger.Warn("Failed to persist sync failure for %s/%s: %v", accountID, kind, err)
	}
	if pub != nil {
		pub.Error(counters, cause.Error())
	}
	return &driving.SyncResult{
		AccountID: accountID,
		Kind:      kind,
		Status:    domain.RunError,
		Counters:  counters,
		Cursor:    checkpoint,
		Message:   cause.Error(),
	}, cause
}

// reconcileRemote applies one collapsed remote change to the local store.
// Record-level failures are counted, never escalated to pass-fatal.
func (o *SyncOrchestrator) reconcileRemote(
	ctx context.Context,
	accountID string,
	kind domain.RecordKind,
	change driven.RemoteChange,
	counters *domain.SyncCounters,
	seen map[string]struct{},
) {
	if seen != nil && !change.Deleted {
		seen[change.RemoteID] = struct{}{}
	}

	local, err := o.records.GetByRemoteID(ctx, accountID, kind, change.RemoteID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			logger.Debug("Lookup failed for remote %s: %v", change.RemoteID, err)
			counters.ErrorRecords++
			return
		}
		local = nil
	}

	switch decideRemote(local, change) {
	case actionApply:
		if _, err := o.records.ApplyRemote(ctx, accountID, kind, change.RemoteID, change.Fields, change.RemoteUpdatedAt); err != nil {
			var conflict *domain.ConflictError
			if errors.As(err, &conflict) {
				// A local edit committed after the lookup; the store
				// refused the overwrite. Re-decide against the fresh
				// snapshot: the change either becomes a conflict or is
				// superseded by the pending push.
				if decideRemote(conflict.Current, change) == actionConflict {
					o.surfaceConflict(ctx, conflict.Current, change, counters)
				}
				return
			}
			logger.Debug("Apply failed for remote %s: %v", change.RemoteID, err)
			counters.ErrorRecords++
			return
		}
		counters.SyncedRecords++

	case actionDelete:
		if err := o.records.ApplyRemoteDelete(ctx, local.ID, change.RemoteUpdatedAt); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				// A local edit outran the tombstone; the push phase
				// settles it against the provider.
				return
			}
			logger.Debug("Remote delete failed for %s: %v", local.ID, err)
			counters.ErrorRecords++
			return
		}
		counters.SyncedRecords++

	case actionConflict:
		o.surfaceConflict(ctx, local, change, counters)

	case actionDrop, actionSkip:
		// Stale relative to a pending local edit, or nothing to do.
	}
}

// surfaceConflict preserves both copies and counts newly surfaced
// conflicts once.
func (o *SyncOrchestrator) surfaceConflict(
	ctx context.Context,
	local *domain.Record,
	change driven.RemoteChange,
	counters *domain.SyncCounters,
) {
	alreadyConflicted := local.SyncStatus == domain.StatusConflict
	snap := domain.RemoteSnapshot{Fields: change.Fields, RemoteUpdatedAt: change.RemoteUpdatedAt}
	if err := o.records.MarkConflict(ctx, local.ID, snap); err != nil {
		logger.Debug("Mark conflict failed for %s: %v", local.ID, err)
		counters.ErrorRecords++
		return
	}
	if !alreadyConflicted {
		counters.ConflictRecords++
	}
}

// reapUnseen soft-deletes synced shadows a full enumeration did not
// deliver. Records with pending edits or surfaced conflicts are left for
// the push phase and the user respectively.
func (o *SyncOrchestrator) reapUnseen(
	ctx context.Context,
	accountID string,
	kind domain.RecordKind,
	seen map[string]struct{},
	counters *domain.SyncCounters,
) {
	all, err := o.records.List(ctx, accountID, kind)
	if err != nil {
		logger.Debug("Reap listing failed for %s/%s: %v", accountID, kind, err)
		return
	}
	for i := range all {
		rec := &all[i]
		if rec.RemoteID == "" || rec.IsDeleted || rec.SyncStatus != domain.StatusSynced {
			continue
		}
		if _, ok := seen[rec.RemoteID]; ok {
			continue
		}
		if err := o.records.ApplyRemoteDelete(ctx, rec.ID, rec.RemoteUpdatedAt); err != nil {
			// A local edit landed after the listing; leave it for the
			// push phase.
			if errors.Is(err, domain.ErrConflict) {
				continue
			}
			logger.Debug("Reap failed for %s: %v", rec.ID, err)
			counters.ErrorRecords++
			continue
		}
		counters.SyncedRecords++
	}
}

// pushOne propagates one pending record to the provider.
//
// Permanent rejections are recorded on the record and do not abort the
// pass; transient and unclassified push errors leave the record pending
// for the next pass rather than retrying in-process against a provider
// that may be rate limiting.
func (o *SyncOrchestrator) pushOne(
	ctx context.Context,
	dir driven.RemoteDirectory,
	rec *domain.Record,
	counters *domain.SyncCounters,
) {
	switch rec.SyncStatus {
	case domain.StatusPendingCreate, domain.StatusPendingUpdate:
		res, err := dir.Push(ctx, rec)
		if err != nil {
			if driven.IsPermanent(err) {
				if merr := o.records.MarkError(ctx, rec.ID, err.Error()); merr != nil {
					logger.Debug("Mark error failed for %s: %v", rec.ID, merr)
				}
				counters.ErrorRecords++
			} else {
				logger.Debug("Push deferred for %s: %v", rec.ID, err)
			}
			return
		}
		if err := o.records.MarkSynced(ctx, rec.ID, res.RemoteID, res.RemoteUpdatedAt); err != nil {
			logger.Debug("Mark synced failed for %s: %v", rec.ID, err)
			counters.ErrorRecords++
			return
		}
		counters.SyncedRecords++

	case domain.StatusPendingDelete:
		if rec.RemoteID != "" {
			if err := dir.Remove(ctx, rec.RemoteID); err != nil {
				if driven.IsPermanent(err) {
					if merr := o.records.MarkError(ctx, rec.ID, err.Error()); merr != nil {
						logger.Debug("Mark error failed for %s: %v", rec.ID, merr)
					}
					counters.ErrorRecords++
				} else {
					logger.Debug("Remove deferred for %s: %v", rec.ID, err)
				}
				return
			}
		}
		// The delete round-tripped (or the record was never pushed);
		// drop the local shadow.
		if err := o.records.HardDelete(ctx, rec.ID); err != nil {
			logger.Debug("Hard delete failed for %s: %v", rec.ID, err)
			counters.ErrorRecords++
			return
		}
		counters.SyncedRecords++
	}
}

// reportProgress persists and publishes in-flight counters. Called at
// page boundaries and phase transitions, never per record.
func (o *SyncOrchestrator) reportProgress(
	ctx context.Context,
	accountID string,
	kind domain.RecordKind,
	counters *domain.SyncCounters,
	operation string,
	pub *ProgressPublisher,
) {
	if counters.TotalRecords < counters.SyncedRecords {
		counters.TotalRecords = counters.SyncedRecords
	}
	if err := o.states.SaveProgress(ctx, accountID, kind, *counters, operation); err != nil {
		logger.Debug("Save progress failed for %s/%s: %v", accountID, kind, err)
	}
	if pub != nil {
		pub.Progress(*counters, operation)
	}
}

// syncMode names the pass mode for logging.
func syncMode(forceFull bool, cursor string) string {
	if forceFull || cursor == "" {
		return "full"
	}
	return "incremental"
}
