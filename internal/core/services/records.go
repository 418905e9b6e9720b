package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/relaysync/internal/core/domain"
	"github.com/custodia-labs/relaysync/internal/core/ports/driven"
	"github.com/custodia-labs/relaysync/internal/core/ports/driving"
)

// Ensure RecordService implements the interface.
var _ driving.RecordService = (*RecordService)(nil)

// RecordService is the local mutation surface. The version discipline
// itself lives at the store boundary; this service validates input,
// assigns identity and delegates.
type RecordService struct {
	records  driven.RecordStore
	accounts driven.AccountStore
}

// NewRecordService creates a record service.
func NewRecordService(records driven.RecordStore, accounts driven.AccountStore) *RecordService {
	return &RecordService{records: records, accounts: accounts}
}

// Get retrieves a record by ID.
func (s *RecordService) Get(ctx context.Context, id string) (*domain.Record, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: record id required", domain.ErrInvalidInput)
	}
	return s.records.Get(ctx, id)
}

// List returns all records for an account and kind.
func (s *RecordService) List(ctx context.Context, accountID string, kind domain.RecordKind) ([]domain.Record, error) {
	if !kind.IsValid() {
		return nil, fmt.Errorf("%w: unknown record kind %q", domain.ErrInvalidInput, kind)
	}
	return s.records.List(ctx, accountID, kind)
}

// ListByStatus returns records in the given status.
func (s *RecordService) ListByStatus(ctx context.Context, accountID string, kind domain.RecordKind, status domain.SyncStatus) ([]domain.Record, error) {
	if !kind.IsValid() {
		return nil, fmt.Errorf("%w: unknown record kind %q", domain.ErrInvalidInput, kind)
	}
	if !status.IsValid() {
		return nil, fmt.Errorf("%w: unknown sync status %q", domain.ErrInvalidInput, status)
	}
	return s.records.ListByStatus(ctx, accountID, kind, status)
}

// Create stores a new local record as pending_create.
func (s *RecordService) Create(ctx context.Context, accountID string, kind domain.RecordKind, fields map[string]any) (*domain.Record, error) {
	if !kind.IsValid() {
		return nil, fmt.Errorf("%w: unknown record kind %q", domain.ErrInvalidInput, kind)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: fields required", domain.ErrInvalidInput)
	}
	if _, err := s.accounts.Get(ctx, accountID); err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}

	rec := &domain.Record{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Kind:      kind,
		Fields:    fields,
		CreatedAt: time.Now(),
	}
	if err := s.records.CreateFromLocal(ctx, rec); err != nil {
		return nil, fmt.Errorf("create record: %w", err)
	}
	return rec, nil
}

// Update applies a local edit guarded by expectedVersion. A stale
// version returns *domain.ConflictError with the current snapshot.
func (s *RecordService) Update(ctx context.Context, id string, fields map[string]any, expectedVersion int64) (*domain.Record, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: record id required", domain.ErrInvalidInput)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: fields required", domain.ErrInvalidInput)
	}
	return s.records.UpdateFromLocal(ctx, id, fields, expectedVersion)
}

// Delete soft-deletes the record guarded by expectedVersion.
func (s *RecordService) Delete(ctx context.Context, id string, expectedVersion int64) error {
	if id == "" {
		return fmt.Errorf("%w: record id required", domain.ErrInvalidInput)
	}
	_, err := s.records.SoftDelete(ctx, id, expectedVersion)
	return err
}

// Resolve settles a surfaced conflict.
func (s *RecordService) Resolve(ctx context.Context, id string, resolution domain.ConflictResolution) (*domain.Record, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: record id required", domain.ErrInvalidInput)
	}
	if !resolution.IsValid() {
		return nil, fmt.Errorf("%w: unknown resolution %q", domain.ErrInvalidInput, resolution)
	}
	return s.records.ResolveConflict(ctx, id, resolution)
}

// Purge hard-deletes the record locally.
func (s *RecordService) Purge(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: record id required", domain.ErrInvalidInput)
	}
	return s.records.HardDelete(ctx, id)
}
