package services

import (
	"github.com/custodia-labs/relaysync/internal/core/domain"
	"github.com/custodia-labs/relaysync/internal/core/ports/driven"
)

// remoteAction is the reconciliation decision for one incoming remote
// change against the current local record.
type remoteAction int

const (
	// actionApply writes the remote fields to the local shadow.
	actionApply remoteAction = iota

	// actionDelete soft-deletes the local shadow for a remote tombstone.
	actionDelete

	// actionConflict preserves both copies and surfaces the record.
	actionConflict

	// actionDrop discards a remote change that is stale relative to a
	// pending local edit; the pending push will supersede it.
	actionDrop

	// actionSkip ignores a change with nothing to do locally.
	actionSkip
)

// decideRemote is the remote-application path of conflict detection.
//
// A record with an un-pushed local edit is never silently overwritten:
// a newer remote change becomes a conflict with both snapshots preserved,
// an older one is dropped. Records without pending edits take the remote
// change, except that a change older than what was already applied is
// dropped (the provider re-delivered stale data).
//
// local is nil when no shadow exists for the remoteId yet.
func decideRemote(local *domain.Record, change driven.RemoteChange) remoteAction {
	if local == nil {
		if change.Deleted {
			return actionSkip
		}
		return actionApply
	}

	if change.Deleted {
		// A pending local edit outranks the tombstone; the push phase
		// decides its fate against the provider.
		if local.SyncStatus.IsPending() || local.SyncStatus == domain.StatusConflict {
			return actionSkip
		}
		if local.IsDeleted {
			return actionSkip
		}
		return actionDelete
	}

	switch local.SyncStatus {
	case domain.StatusPendingUpdate, domain.StatusPendingDelete:
		if change.RemoteUpdatedAt.After(local.LocalUpdatedAt) {
			return actionConflict
		}
		return actionDrop

	case domain.StatusPendingCreate:
		// A pending create has no remoteId; a change matching one means
		// identity reuse at the provider. Treat like any pending edit.
		if change.RemoteUpdatedAt.After(local.LocalUpdatedAt) {
			return actionConflict
		}
		return actionDrop

	case domain.StatusConflict:
		// Already surfaced; refresh the preserved remote snapshot when
		// the provider has something newer.
		if local.RemoteSnapshot == nil || change.RemoteUpdatedAt.After(local.RemoteSnapshot.RemoteUpdatedAt) {
			return actionConflict
		}
		return actionDrop

	default: // synced, error
		if !local.RemoteUpdatedAt.IsZero() && change.RemoteUpdatedAt.Before(local.RemoteUpdatedAt) {
			return actionDrop
		}
		return actionApply
	}
}

// collapsePage applies last-write-wins within a single page: when one
// page carries several changes for the same remoteId in non-monotonic
// order, only the change with the greatest remoteUpdatedAt survives
// (ties keep the later page position). Provider order is preserved for
// distinct records.
func collapsePage(changes []driven.RemoteChange) []driven.RemoteChange {
	if len(changes) < 2 {
		return changes
	}

	index := make(map[string]int, len(changes))
	out := make([]driven.RemoteChange, 0, len(changes))
	for _, ch := range changes {
		if i, ok := index[ch.RemoteID]; ok {
			if !out[i].RemoteUpdatedAt.After(ch.RemoteUpdatedAt) {
				out[i] = ch
			}
			continue
		}
		index[ch.RemoteID] = len(out)
		out = append(out, ch)
	}
	return out
}
