package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/relaysync/internal/core/domain"
	"github.com/custodia-labs/relaysync/internal/core/ports/driven"
)

// newID mints local record identity for shadows discovered during a
// remote pull.
func newID() string {
	return uuid.NewString()
}

// Ensure RecordStore implements the interface.
var _ driven.RecordStore = (*RecordStore)(nil)

// RecordStore is an in-memory implementation of driven.RecordStore.
// A single mutex serialises all record mutations, which satisfies the
// per-record serialisation requirement; reads hand out clones so callers
// never alias stored state.
type RecordStore struct {
	mu      sync.RWMutex
	records map[string]*domain.Record
	// remoteIndex maps accountID|kind|remoteID to the local ID.
	remoteIndex map[string]string
}

// NewRecordStore creates a new in-memory record store.
func NewRecordStore() *RecordStore {
	return &RecordStore{
		records:     make(map[string]*domain.Record),
		remoteIndex: make(map[string]string),
	}
}

func remoteKey(accountID string, kind domain.RecordKind, remoteID string) string {
	return accountID + "|" + string(kind) + "|" + remoteID
}

// Get retrieves a record by local ID.
func (s *RecordStore) Get(_ context.Context, id string) (*domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return rec.Clone(), nil
}

// GetByRemoteID retrieves a record by provider identity.
func (s *RecordStore) GetByRemoteID(_ context.Context, accountID string, kind domain.RecordKind, remoteID string) (*domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.remoteIndex[remoteKey(accountID, kind, remoteID)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	rec, ok := s.records[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return rec.Clone(), nil
}

// List returns all records for an account and kind.
func (s *RecordStore) List(_ context.Context, accountID string, kind domain.RecordKind) ([]domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Record
	for _, rec := range s.records {
		if rec.AccountID == accountID && rec.Kind == kind {
			out = append(out, *rec.Clone())
		}
	}
	return out, nil
}

// ListPending returns records awaiting push.
func (s *RecordStore) ListPending(_ context.Context, accountID string, kind domain.RecordKind) ([]domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Record
	for _, rec := range s.records {
		if rec.AccountID == accountID && rec.Kind == kind && rec.SyncStatus.IsPending() {
			out = append(out, *rec.Clone())
		}
	}
	return out, nil
}

// ListByStatus returns records in the given status.
func (s *RecordStore) ListByStatus(_ context.Context, accountID string, kind domain.RecordKind, status domain.SyncStatus) ([]domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Record
	for _, rec := range s.records {
		if rec.AccountID == accountID && rec.Kind == kind && rec.SyncStatus == status {
			out = append(out, *rec.Clone())
		}
	}
	return out, nil
}

// CreateFromLocal stores a locally created record.
func (s *RecordStore) CreateFromLocal(_ context.Context, rec *domain.Record) error {
	if rec.ID == "" {
		return fmt.Errorf("%w: record id required", domain.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[rec.ID]; ok {
		return domain.ErrAlreadyExists
	}

	stored := rec.Clone()
	stored.SyncStatus = domain.StatusPendingCreate
	stored.Version = 1
	stored.LocalUpdatedAt = time.Now()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = stored.LocalUpdatedAt
	}
	s.records[stored.ID] = stored
	if stored.RemoteID != "" {
		s.remoteIndex[remoteKey(stored.AccountID, stored.Kind, stored.RemoteID)] = stored.ID
	}

	*rec = *stored.Clone()
	return nil
}

// UpdateFromLocal applies a local edit guarded by expectedVersion.
func (s *RecordStore) UpdateFromLocal(_ context.Context, id string, fields map[string]any, expectedVersion int64) (*domain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if rec.Version != expectedVersion {
		return nil, &domain.ConflictError{Current: rec.Clone()}
	}

	rec.Fields = cloneFields(fields)
	rec.Version++
	rec.LocalUpdatedAt = time.Now()
	if rec.SyncStatus != domain.StatusPendingCreate {
		rec.SyncStatus = domain.StatusPendingUpdate
	}
	rec.SyncError = ""
	return rec.Clone(), nil
}

// SoftDelete marks the record deleted guarded by expectedVersion.
func (s *RecordStore) SoftDelete(_ context.Context, id string, expectedVersion int64) (*domain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if rec.Version != expectedVersion {
		return nil, &domain.ConflictError{Current: rec.Clone()}
	}

	rec.IsDeleted = true
	rec.SyncStatus = domain.StatusPendingDelete
	rec.Version++
	rec.LocalUpdatedAt = time.Now()
	return rec.Clone(), nil
}

// ApplyRemote upserts the local shadow with remote fields. Idempotent:
// re-applying the same change leaves the record unchanged.
func (s *RecordStore) ApplyRemote(_ context.Context, accountID string, kind domain.RecordKind, remoteID string, fields map[string]any, remoteUpdatedAt time.Time) (*domain.Record, error) {
	if remoteID == "" {
		return nil, fmt.Errorf("%w: remote id required", domain.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := remoteKey(accountID, kind, remoteID)
	if id, ok := s.remoteIndex[key]; ok {
		rec := s.records[id]
		// Re-check under the lock: a local edit or conflict that landed
		// after the caller's lookup must not be overwritten.
		if rec.SyncStatus.IsPending() || rec.SyncStatus == domain.StatusConflict {
			return nil, &domain.ConflictError{Current: rec.Clone()}
		}
		rec.Fields = cloneFields(fields)
		rec.RemoteUpdatedAt = remoteUpdatedAt
		rec.SyncStatus = domain.StatusSynced
		rec.RemoteSnapshot = nil
		rec.SyncError = ""
		rec.IsDeleted = false
		return rec.Clone(), nil
	}

	rec := &domain.Record{
		ID:              newID(),
		AccountID:       accountID,
		Kind:            kind,
		RemoteID:        remoteID,
		Fields:          cloneFields(fields),
		RemoteUpdatedAt: remoteUpdatedAt,
		SyncStatus:      domain.StatusSynced,
		Version:         1,
		CreatedAt:       time.Now(),
	}
	s.records[rec.ID] = rec
	s.remoteIndex[key] = rec.ID
	return rec.Clone(), nil
}

// ApplyRemoteDelete soft-deletes the local shadow for a remote tombstone.
func (s *RecordStore) ApplyRemoteDelete(_ context.Context, id string, remoteUpdatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return domain.ErrNotFound
	}
	if rec.SyncStatus.IsPending() || rec.SyncStatus == domain.StatusConflict {
		return &domain.ConflictError{Current: rec.Clone()}
	}
	rec.IsDeleted = true
	rec.SyncStatus = domain.StatusSynced
	rec.RemoteUpdatedAt = remoteUpdatedAt
	rec.RemoteSnapshot = nil
	return nil
}

// MarkConflict preserves the remote snapshot alongside the local fields.
func (s *RecordStore) MarkConflict(_ context.Context, id string, snapshot domain.RemoteSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return domain.ErrNotFound
	}
	snap := snapshot
	snap.Fields = cloneFields(snapshot.Fields)
	rec.SyncStatus = domain.StatusConflict
	rec.RemoteSnapshot = &snap
	return nil
}

// MarkSynced clears a pending status after a successful push.
func (s *RecordStore) MarkSynced(_ context.Context, id string, remoteID string, remoteUpdatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return domain.ErrNotFound
	}
	if rec.RemoteID != remoteID {
		if rec.RemoteID != "" {
			delete(s.remoteIndex, remoteKey(rec.AccountID, rec.Kind, rec.RemoteID))
		}
		rec.RemoteID = remoteID
		s.remoteIndex[remoteKey(rec.AccountID, rec.Kind, remoteID)] = rec.ID
	}
	rec.RemoteUpdatedAt = remoteUpdatedAt
	rec.SyncStatus = domain.StatusSynced
	rec.SyncError = ""
	return nil
}

// MarkError records a permanent push failure.
func (s *RecordStore) MarkError(_ context.Context, id string, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return domain.ErrNotFound
	}
	rec.SyncStatus = domain.StatusError
	rec.SyncError = message
	return nil
}

// ResolveConflict settles a conflicted record.
func (s *RecordStore) ResolveConflict(_ context.Context, id string, resolution domain.ConflictResolution) (*domain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if rec.SyncStatus != domain.StatusConflict {
		return nil, domain.ErrNotConflicted
	}

	switch resolution {
	case domain.ResolutionKeepLocal:
		// The local edit wins and goes back in the push queue.
		rec.SyncStatus = domain.StatusPendingUpdate
		if rec.IsDeleted {
			rec.SyncStatus = domain.StatusPendingDelete
		}
		rec.Version++
		rec.LocalUpdatedAt = time.Now()
		rec.RemoteSnapshot = nil

	case domain.ResolutionAcceptRemote:
		if rec.RemoteSnapshot == nil {
			return nil, fmt.Errorf("%w: conflict has no remote snapshot", domain.ErrInvalidInput)
		}
		rec.Fields = cloneFields(rec.RemoteSnapshot.Fields)
		rec.RemoteUpdatedAt = rec.RemoteSnapshot.RemoteUpdatedAt
		rec.SyncStatus = domain.StatusSynced
		rec.IsDeleted = false
		rec.RemoteSnapshot = nil

	default:
		return nil, fmt.Errorf("%w: unknown resolution %q", domain.ErrInvalidInput, resolution)
	}
	return rec.Clone(), nil
}

// HardDelete removes the row.
func (s *RecordStore) HardDelete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return nil // Already gone
	}
	if rec.RemoteID != "" {
		delete(s.remoteIndex, remoteKey(rec.AccountID, rec.Kind, rec.RemoteID))
	}
	delete(s.records, id)
	return nil
}

func cloneFields(fields map[string]any) map[string]any {
	if fields == nil {
		return nil
	}
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
