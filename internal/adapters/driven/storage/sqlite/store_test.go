package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/relaysync/internal/core/domain"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) (*Store, func()) {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "relaysync-test-*")
	require.NoError(t, err)

	store, err := NewStore(tempDir)
	require.NoError(t, err)
	require.NotNil(t, store)

	cleanup := func() {
		assert.NoError(t, store.Close())
		assert.NoError(t, os.RemoveAll(tempDir))
	}

	return store, cleanup
}

// createTestAccount creates an account to satisfy foreign key constraints.
func createTestAccount(t *testing.T, store *Store, accountID string) {
	t.Helper()
	ctx := context.Background()
	err := store.AccountStore().Save(ctx, domain.Account{
		ID:       accountID,
		Provider: domain.ProviderGeneric,
		Name:     "Test Account " + accountID,
		Config:   map[string]string{},
	})
	require.NoError(t, err)
}

// ==================== Store Creation and Initialization Tests ====================

func TestNewStore_ErrorHandling(t *testing.T) {
	// Test with invalid path (should fail to create directory)
	_, err := NewStore("/invalid\x00path")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "creating data directory")
}

func TestNewStore_Success(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "relaysync-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tempDir)

	store, err := NewStore(tempDir)
	require.NoError(t, err)
	require.NotNil(t, store)
	defer store.Close()

	// Verify database file was created
	dbPath := filepath.Join(tempDir, "relaysync.db")
	assert.Equal(t, dbPath, store.Path())
	assert.FileExists(t, dbPath)

	// Verify database connection is working
	err = store.db.Ping()
	assert.NoError(t, err)
}

func TestNewStore_MigrationsIdempotent(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "relaysync-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tempDir)

	store, err := NewStore(tempDir)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// Re-opening the same database re-runs migrate without error.
	store, err = NewStore(tempDir)
	require.NoError(t, err)
	require.NoError(t, store.Close())
}

// ==================== Account Store Tests ====================

func TestSQLiteAccountStore_SaveAndGet(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	accounts := store.AccountStore()
	err := accounts.Save(ctx, domain.Account{
		ID:       "acc-1",
		Provider: domain.ProviderGoogle,
		Name:     "Work",
		Config:   map[string]string{"access_token": "tok"},
	})
	require.NoError(t, err)

	saved, err := accounts.Get(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderGoogle, saved.Provider)
	assert.Equal(t, "Work", saved.Name)
	assert.Equal(t, "tok", saved.Config["access_token"])
	assert.False(t, saved.CreatedAt.IsZero())
}

func TestSQLiteAccountStore_Get_NotFound(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	account, err := store.AccountStore().Get(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Nil(t, account)
}

func TestSQLiteAccountStore_Upsert(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	accounts := store.AccountStore()
	require.NoError(t, accounts.Save(ctx, domain.Account{ID: "acc-1", Provider: domain.ProviderGeneric, Name: "old"}))
	require.NoError(t, accounts.Save(ctx, domain.Account{ID: "acc-1", Provider: domain.ProviderGeneric, Name: "new"}))

	saved, err := accounts.Get(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, "new", saved.Name)

	all, err := accounts.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSQLiteAccountStore_Delete_CascadesToRecords(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	createTestAccount(t, store, "acc-1")
	records := store.RecordStore()
	_, err := records.ApplyRemote(ctx, "acc-1", domain.KindContact, "remote-1", map[string]any{"name": "Ann"}, time.Now())
	require.NoError(t, err)

	require.NoError(t, store.AccountStore().Delete(ctx, "acc-1"))

	_, err = records.GetByRemoteID(ctx, "acc-1", domain.KindContact, "remote-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// ==================== Record Store Tests ====================

func TestSQLiteRecordStore_CreateAndGet(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	createTestAccount(t, store, "acc-1")
	records := store.RecordStore()

	rec := &domain.Record{
		ID:        "rec-1",
		AccountID: "acc-1",
		Kind:      domain.KindContact,
		Fields:    map[string]any{"name": "Ann", "email": "ann@example.com"},
	}
	require.NoError(t, records.CreateFromLocal(ctx, rec))
	assert.Equal(t, domain.StatusPendingCreate, rec.SyncStatus)
	assert.Equal(t, int64(1), rec.Version)

	saved, err := records.Get(ctx, "rec-1")
	require.NoError(t, err)
	assert.Equal(t, "Ann", saved.Fields["name"])
	assert.Equal(t, domain.StatusPendingCreate, saved.SyncStatus)
	assert.False(t, saved.IsDeleted)
}

func TestSQLiteRecordStore_Create_Duplicate(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	createTestAccount(t, store, "acc-1")
	records := store.RecordStore()

	require.NoError(t, records.CreateFromLocal(ctx, &domain.Record{ID: "rec-1", AccountID: "acc-1", Kind: domain.KindContact, Fields: map[string]any{}}))
	err := records.CreateFromLocal(ctx, &domain.Record{ID: "rec-1", AccountID: "acc-1", Kind: domain.KindContact, Fields: map[string]any{}})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestSQLiteRecordStore_UpdateFromLocal_VersionGuard(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	createTestAccount(t, store, "acc-1")
	records := store.RecordStore()

	rec := &domain.Record{ID: "rec-1", AccountID: "acc-1", Kind: domain.KindContact, Fields: map[string]any{"name": "Ann"}}
	require.NoError(t, records.CreateFromLocal(ctx, rec))

	updated, err := records.UpdateFromLocal(ctx, "rec-1", map[string]any{"name": "Ann B"}, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Version)

	// Stale version surfaces the current row.
	_, err = records.UpdateFromLocal(ctx, "rec-1", map[string]any{"name": "stale"}, 1)
	assert.ErrorIs(t, err, domain.ErrConflict)

	var conflict *domain.ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "Ann B", conflict.Current.Fields["name"])

	saved, err := records.Get(ctx, "rec-1")
	require.NoError(t, err)
	assert.Equal(t, "Ann B", saved.Fields["name"])
}

func TestSQLiteRecordStore_ApplyRemote_UpsertAndIdempotent(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	createTestAccount(t, store, "acc-1")
	records := store.RecordStore()

	remoteTime := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	first, err := records.ApplyRemote(ctx, "acc-1", domain.KindEvent, "ev-1", map[string]any{"title": "standup"}, remoteTime)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSynced, first.SyncStatus)

	second, err := records.ApplyRemote(ctx, "acc-1", domain.KindEvent, "ev-1", map[string]any{"title": "standup"}, remoteTime)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	all, err := records.List(ctx, "acc-1", domain.KindEvent)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSQLiteRecordStore_ApplyRemote_RefusesPendingEdit(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	createTestAccount(t, store, "acc-1")
	records := store.RecordStore()

	rec, err := records.ApplyRemote(ctx, "acc-1", domain.KindContact, "remote-1", map[string]any{"name": "Ann"}, time.Now())
	require.NoError(t, err)

	// A local edit lands between a sync pass's lookup and its apply.
	_, err = records.UpdateFromLocal(ctx, rec.ID, map[string]any{"name": "Ann B"}, rec.Version)
	require.NoError(t, err)

	applied, err := records.ApplyRemote(ctx, "acc-1", domain.KindContact, "remote-1", map[string]any{"name": "Ann"}, time.Now())
	assert.Nil(t, applied)
	assert.ErrorIs(t, err, domain.ErrConflict)

	var conflict *domain.ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, domain.StatusPendingUpdate, conflict.Current.SyncStatus)

	saved, err := records.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ann B", saved.Fields["name"])
	assert.Equal(t, domain.StatusPendingUpdate, saved.SyncStatus)
}

func TestSQLiteRecordStore_ApplyRemoteDelete_RefusesPendingEdit(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	createTestAccount(t, store, "acc-1")
	records := store.RecordStore()

	rec, err := records.ApplyRemote(ctx, "acc-1", domain.KindEvent, "ev-1", map[string]any{"title": "standup"}, time.Now())
	require.NoError(t, err)
	_, err = records.UpdateFromLocal(ctx, rec.ID, map[string]any{"title": "retro"}, rec.Version)
	require.NoError(t, err)

	err = records.ApplyRemoteDelete(ctx, rec.ID, time.Now())
	assert.ErrorIs(t, err, domain.ErrConflict)

	saved, err := records.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.False(t, saved.IsDeleted)
	assert.Equal(t, domain.StatusPendingUpdate, saved.SyncStatus)
}

func TestSQLiteRecordStore_ConflictRoundTrip(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	createTestAccount(t, store, "acc-1")
	records := store.RecordStore()

	rec, err := records.ApplyRemote(ctx, "acc-1", domain.KindContact, "remote-1", map[string]any{"name": "remote"}, time.Now())
	require.NoError(t, err)
	_, err = records.UpdateFromLocal(ctx, rec.ID, map[string]any{"name": "local"}, rec.Version)
	require.NoError(t, err)

	snapTime := time.Now().Add(time.Minute).UTC().Truncate(time.Second)
	require.NoError(t, records.MarkConflict(ctx, rec.ID, domain.RemoteSnapshot{
		Fields:          map[string]any{"name": "newer remote"},
		RemoteUpdatedAt: snapTime,
	}))

	saved, err := records.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConflict, saved.SyncStatus)
	require.NotNil(t, saved.RemoteSnapshot)
	assert.Equal(t, "newer remote", saved.RemoteSnapshot.Fields["name"])

	resolved, err := records.ResolveConflict(ctx, rec.ID, domain.ResolutionAcceptRemote)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSynced, resolved.SyncStatus)
	assert.Equal(t, "newer remote", resolved.Fields["name"])
	assert.Nil(t, resolved.RemoteSnapshot)
}

func TestSQLiteRecordStore_MarkSyncedAssignsRemoteID(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	createTestAccount(t, store, "acc-1")
	records := store.RecordStore()

	rec := &domain.Record{ID: "rec-1", AccountID: "acc-1", Kind: domain.KindContact, Fields: map[string]any{"name": "Ann"}}
	require.NoError(t, records.CreateFromLocal(ctx, rec))

	require.NoError(t, records.MarkSynced(ctx, "rec-1", "remote-new", time.Now()))

	byRemote, err := records.GetByRemoteID(ctx, "acc-1", domain.KindContact, "remote-new")
	require.NoError(t, err)
	assert.Equal(t, "rec-1", byRemote.ID)
	assert.Equal(t, domain.StatusSynced, byRemote.SyncStatus)
}

func TestSQLiteRecordStore_ListPending(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	createTestAccount(t, store, "acc-1")
	records := store.RecordStore()

	require.NoError(t, records.CreateFromLocal(ctx, &domain.Record{ID: "rec-1", AccountID: "acc-1", Kind: domain.KindContact, Fields: map[string]any{}}))
	_, err := records.ApplyRemote(ctx, "acc-1", domain.KindContact, "remote-1", map[string]any{}, time.Now())
	require.NoError(t, err)

	pending, err := records.ListPending(ctx, "acc-1", domain.KindContact)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "rec-1", pending[0].ID)
}

func TestSQLiteRecordStore_HardDelete(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	createTestAccount(t, store, "acc-1")
	records := store.RecordStore()

	require.NoError(t, records.CreateFromLocal(ctx, &domain.Record{ID: "rec-1", AccountID: "acc-1", Kind: domain.KindContact, Fields: map[string]any{}}))
	require.NoError(t, records.HardDelete(ctx, "rec-1"))

	_, err := records.Get(ctx, "rec-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// Deleting again is a no-op.
	assert.NoError(t, records.HardDelete(ctx, "rec-1"))
}

// ==================== Sync State Store Tests ====================

func TestSQLiteSyncStateStore_BeginGuard(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	states := store.SyncStateStore()
	state, err := states.Begin(ctx, "acc-1", domain.KindContact)
	require.NoError(t, err)
	assert.Equal(t, domain.RunSyncing, state.Status)
	assert.True(t, state.SyncEnabled)

	_, err = states.Begin(ctx, "acc-1", domain.KindContact)
	assert.ErrorIs(t, err, domain.ErrSyncInProgress)

	// Different kind for the same account is independent.
	_, err = states.Begin(ctx, "acc-1", domain.KindEvent)
	assert.NoError(t, err)
}

func TestSQLiteSyncStateStore_BeginDisabled(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	states := store.SyncStateStore()
	require.NoError(t, states.SetEnabled(ctx, "acc-1", domain.KindContact, false))

	_, err := states.Begin(ctx, "acc-1", domain.KindContact)
	assert.ErrorIs(t, err, domain.ErrSyncDisabled)
}

func TestSQLiteSyncStateStore_CompletePersistsCursorAndCounters(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	states := store.SyncStateStore()
	_, err := states.Begin(ctx, "acc-1", domain.KindContact)
	require.NoError(t, err)

	counters := domain.SyncCounters{TotalRecords: 110, SyncedRecords: 110}
	require.NoError(t, states.Complete(ctx, "acc-1", domain.KindContact, counters, "cursor-final"))

	state, err := states.Get(ctx, "acc-1", domain.KindContact)
	require.NoError(t, err)
	assert.Equal(t, domain.RunCompleted, state.Status)
	assert.Equal(t, counters, state.Counters)
	assert.Equal(t, "cursor-final", state.Cursor)
	assert.Equal(t, 100, state.ProgressPercentage)
	assert.False(t, state.LastSuccessfulSyncAt.IsZero())
}

func TestSQLiteSyncStateStore_FailKeepsCheckpoint(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	states := store.SyncStateStore()
	_, err := states.Begin(ctx, "acc-1", domain.KindEvent)
	require.NoError(t, err)

	require.NoError(t, states.Fail(ctx, "acc-1", domain.KindEvent,
		domain.SyncCounters{TotalRecords: 50, SyncedRecords: 20}, "provider unavailable", "cursor-page-2"))

	state, err := states.Get(ctx, "acc-1", domain.KindEvent)
	require.NoError(t, err)
	assert.Equal(t, domain.RunError, state.Status)
	assert.Equal(t, "provider unavailable", state.SyncError)
	assert.Equal(t, "cursor-page-2", state.Cursor)
	assert.True(t, state.LastSuccessfulSyncAt.IsZero())

	// A failed pass can begin again.
	_, err = states.Begin(ctx, "acc-1", domain.KindEvent)
	assert.NoError(t, err)
}

func TestSQLiteSyncStateStore_ResetPreservesFlags(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	states := store.SyncStateStore()
	require.NoError(t, states.SetAutoSync(ctx, "acc-1", domain.KindContact, true))
	_, err := states.Begin(ctx, "acc-1", domain.KindContact)
	require.NoError(t, err)
	require.NoError(t, states.Complete(ctx, "acc-1", domain.KindContact, domain.SyncCounters{TotalRecords: 3, SyncedRecords: 3}, "c"))

	require.NoError(t, states.Reset(ctx, "acc-1", domain.KindContact))

	state, err := states.Get(ctx, "acc-1", domain.KindContact)
	require.NoError(t, err)
	assert.Equal(t, domain.RunIdle, state.Status)
	assert.Empty(t, state.Cursor)
	assert.Equal(t, domain.SyncCounters{}, state.Counters)
	assert.True(t, state.AutoSync)
	assert.True(t, state.SyncEnabled)
}

func TestSQLiteSyncStateStore_List(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	states := store.SyncStateStore()
	_, err := states.Begin(ctx, "acc-1", domain.KindContact)
	require.NoError(t, err)
	require.NoError(t, states.SetAutoSync(ctx, "acc-2", domain.KindEvent, true))

	all, err := states.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
