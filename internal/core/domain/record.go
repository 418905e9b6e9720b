package domain

import "time"

// RecordKind identifies which kind of record a Record holds.
type RecordKind string

const (
	// KindContact is an address-book contact.
	KindContact RecordKind = "contact"

	// KindEvent is a calendar event.
	KindEvent RecordKind = "event"
)

// IsValid returns true for a known record kind.
func (k RecordKind) IsValid() bool {
	return k == KindContact || k == KindEvent
}

// SyncStatus is the synchronisation state of a single record.
// It is a closed enumeration: a record is in exactly one state at a time,
// which keeps combinations like "conflicted pending-create" unrepresentable.
type SyncStatus string

const (
	// StatusSynced means local and remote copies agreed at the last
	// successful reconciliation.
	StatusSynced SyncStatus = "synced"

	// StatusPendingCreate means the record was created locally and has
	// never been pushed to the provider.
	StatusPendingCreate SyncStatus = "pending_create"

	// StatusPendingUpdate means a local edit has not yet been pushed.
	StatusPendingUpdate SyncStatus = "pending_update"

	// StatusPendingDelete means a local delete has not yet been pushed.
	StatusPendingDelete SyncStatus = "pending_delete"

	// StatusConflict means local and remote both changed; both snapshots
	// are preserved until the caller resolves the conflict.
	StatusConflict SyncStatus = "conflict"

	// StatusError means the provider permanently rejected the record's
	// last push; the message is stored on the record.
	StatusError SyncStatus = "error"
)

// IsValid returns true for a known sync status.
func (s SyncStatus) IsValid() bool {
	switch s {
	case StatusSynced, StatusPendingCreate, StatusPendingUpdate,
		StatusPendingDelete, StatusConflict, StatusError:
		return true
	}
	return false
}

// IsPending returns true if the status represents an un-pushed local
// mutation.
func (s SyncStatus) IsPending() bool {
	switch s {
	case StatusPendingCreate, StatusPendingUpdate, StatusPendingDelete:
		return true
	}
	return false
}

// Record is a user-owned entity (contact or calendar event) held in the
// local record store alongside its per-record sync metadata.
type Record struct {
	// ID is the local identity, stable for the record's lifetime.
	ID string

	// AccountID identifies the owning account.
	AccountID string

	// Kind is the record kind.
	Kind RecordKind

	// RemoteID is the identity assigned by the remote provider.
	// Empty until the first successful push.
	RemoteID string

	// Fields is the kind-specific payload (name/emails/phones for a
	// contact; title/times/attendees for an event). Opaque to the engine.
	Fields map[string]any

	// LocalUpdatedAt is when the record was last mutated locally.
	LocalUpdatedAt time.Time

	// RemoteUpdatedAt is the timestamp the provider reported on last fetch.
	RemoteUpdatedAt time.Time

	// SyncStatus is the record's synchronisation state.
	SyncStatus SyncStatus

	// SyncError holds the provider's message after a permanent push
	// failure. Empty unless SyncStatus is StatusError.
	SyncError string

	// IsDeleted marks a soft-deleted record. The row survives for
	// reconciliation; hard delete is a separate explicit operation.
	IsDeleted bool

	// Version increases on every local mutation. The conflict detector
	// compares it against a caller-supplied expected version.
	Version int64

	// RemoteSnapshot preserves the remote copy while SyncStatus is
	// StatusConflict, so both sides survive for caller-side resolution.
	RemoteSnapshot *RemoteSnapshot

	// CreatedAt is when the record was first stored locally.
	CreatedAt time.Time
}

// RemoteSnapshot is the remote side of a conflicted record.
type RemoteSnapshot struct {
	Fields          map[string]any
	RemoteUpdatedAt time.Time
}

// Clone returns a deep-enough copy for handing records across goroutine
// boundaries. Field values themselves are treated as immutable.
func (r *Record) Clone() *Record {
	out := *r
	if r.Fields != nil {
		out.Fields = make(map[string]any, len(r.Fields))
		for k, v := range r.Fields {
			out.Fields[k] = v
		}
	}
	if r.RemoteSnapshot != nil {
		snap := *r.RemoteSnapshot
		if r.RemoteSnapshot.Fields != nil {
			snap.Fields = make(map[string]any, len(r.RemoteSnapshot.Fields))
			for k, v := range r.RemoteSnapshot.Fields {
				snap.Fields[k] = v
			}
		}
		out.RemoteSnapshot = &snap
	}
	return &out
}

// ConflictResolution selects how a surfaced conflict is settled.
type ConflictResolution string

const (
	// ResolutionKeepLocal keeps the local fields and re-queues the record
	// for push.
	ResolutionKeepLocal ConflictResolution = "keep_local"

	// ResolutionAcceptRemote applies the preserved remote snapshot and
	// discards the local edit.
	ResolutionAcceptRemote ConflictResolution = "accept_remote"
)

// IsValid returns true for a known resolution.
func (r ConflictResolution) IsValid() bool {
	return r == ResolutionKeepLocal || r == ResolutionAcceptRemote
}
