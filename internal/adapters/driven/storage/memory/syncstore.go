package memory

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/relaysync/internal/core/domain"
	"github.com/custodia-labs/relaysync/internal/core/ports/driven"
)

// Ensure SyncStateStore implements the interface.
var _ driven.SyncStateStore = (*SyncStateStore)(nil)

// SyncStateStore is an in-memory implementation of driven.SyncStateStore.
// Begin is a check-and-set under the store mutex, which makes it the
// atomic guard the orchestrator relies on.
type SyncStateStore struct {
	mu     sync.RWMutex
	states map[string]*domain.SyncState
}

// NewSyncStateStore creates a new in-memory sync state store.
func NewSyncStateStore() *SyncStateStore {
	return &SyncStateStore{
		states: make(map[string]*domain.SyncState),
	}
}

func stateKey(accountID string, kind domain.RecordKind) string {
	return accountID + "|" + string(kind)
}

// Get retrieves sync state for a pair.
func (s *SyncStateStore) Get(_ context.Context, accountID string, kind domain.RecordKind) (*domain.SyncState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[stateKey(accountID, kind)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := *st
	return &out, nil
}

// List returns all known sync states.
func (s *SyncStateStore) List(_ context.Context) ([]domain.SyncState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.SyncState, 0, len(s.states))
	for _, st := range s.states {
		out = append(out, *st)
	}
	return out, nil
}

// Begin transitions the pair to syncing, creating the state lazily.
func (s *SyncStateStore) Begin(_ context.Context, accountID string, kind domain.RecordKind) (*domain.SyncState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := stateKey(accountID, kind)
	st, ok := s.states[key]
	if !ok {
		st = &domain.SyncState{
			AccountID:   accountID,
			Kind:        kind,
			Status:      domain.RunIdle,
			SyncEnabled: true,
		}
		s.states[key] = st
	}

	if !st.SyncEnabled {
		return nil, domain.ErrSyncDisabled
	}
	if st.Status == domain.RunSyncing {
		return nil, domain.ErrSyncInProgress
	}

	st.Status = domain.RunSyncing
	st.LastSyncAttemptAt = time.Now()
	st.CurrentOperation = "starting"
	st.SyncError = ""
	st.Counters = domain.SyncCounters{}
	st.ProgressPercentage = 0

	out := *st
	return &out, nil
}

// SaveProgress updates in-flight counters and the phase label.
func (s *SyncStateStore) SaveProgress(_ context.Context, accountID string, kind domain.RecordKind, counters domain.SyncCounters, operation string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[stateKey(accountID, kind)]
	if !ok {
		return domain.ErrNotFound
	}
	st.Counters = counters
	st.CurrentOperation = operation
	st.ProgressPercentage = counters.Percent()
	return nil
}

// Complete finishes a pass, committing counters and cursor together.
func (s *SyncStateStore) Complete(_ context.Context, accountID string, kind domain.RecordKind, counters domain.SyncCounters, cursor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[stateKey(accountID, kind)]
	if !ok {
		return domain.ErrNotFound
	}
	st.Status = domain.RunCompleted
	st.Counters = counters
	st.Cursor = cursor
	st.CurrentOperation = ""
	st.ProgressPercentage = counters.Percent()
	st.SyncError = ""
	st.LastSuccessfulSyncAt = time.Now()
	return nil
}

// Fail finishes a pass after a pass-fatal error, preserving the
// checkpoint cursor.
func (s *SyncStateStore) Fail(_ context.Context, accountID string, kind domain.RecordKind, counters domain.SyncCounters, message string, cursor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[stateKey(accountID, kind)]
	if !ok {
		return domain.ErrNotFound
	}
	st.Status = domain.RunError
	st.Counters = counters
	st.Cursor = cursor
	st.CurrentOperation = ""
	st.SyncError = message
	return nil
}

// SetEnabled toggles syncing for the pair, creating the state lazily.
func (s *SyncStateStore) SetEnabled(_ context.Context, accountID string, kind domain.RecordKind, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.ensureLocked(accountID, kind)
	st.SyncEnabled = enabled
	return nil
}

// SetAutoSync toggles background scheduling for the pair.
func (s *SyncStateStore) SetAutoSync(_ context.Context, accountID string, kind domain.RecordKind, auto bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.ensureLocked(accountID, kind)
	st.AutoSync = auto
	return nil
}

// Reset returns the pair to idle with counters and cursor cleared. The
// state itself survives; sync state is reset, never deleted.
func (s *SyncStateStore) Reset(_ context.Context, accountID string, kind domain.RecordKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[stateKey(accountID, kind)]
	if !ok {
		return domain.ErrNotFound
	}
	enabled, auto := st.SyncEnabled, st.AutoSync
	*st = domain.SyncState{
		AccountID:   accountID,
		Kind:        kind,
		Status:      domain.RunIdle,
		SyncEnabled: enabled,
		AutoSync:    auto,
	}
	return nil
}

func (s *SyncStateStore) ensureLocked(accountID string, kind domain.RecordKind) *domain.SyncState {
	key := stateKey(accountID, kind)
	st, ok := s.states[key]
	if !ok {
		st = &domain.SyncState{
			AccountID:   accountID,
			Kind:        kind,
			Status:      domain.RunIdle,
			SyncEnabled: true,
		}
		s.states[key] = st
	}
	return st
}
