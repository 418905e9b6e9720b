package cli

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/relaysync/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/relaysync/internal/core/domain"
)

func setupStatusTest(t *testing.T) (func(), *memory.SyncStateStore) {
	t.Helper()
	states := memory.NewSyncStateStore()
	oldStore := stateStore
	stateStore = states
	return func() { stateStore = oldStore }, states
}

func TestStatusCmd_NoStates(t *testing.T) {
	cleanup, _ := setupStatusTest(t)
	defer cleanup()

	out, err := executeCommand("status")
	require.NoError(t, err)
	assert.Contains(t, out, "No sync states recorded yet.")
}

func TestStatusCmd_ListsAllPairs(t *testing.T) {
	cleanup, states := setupStatusTest(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, states.SetEnabled(ctx, "acc-1", domain.KindContact, true))
	require.NoError(t, states.SetEnabled(ctx, "acc-1", domain.KindEvent, true))

	out, err := executeCommand("status")
	require.NoError(t, err)
	assert.Contains(t, out, "acc-1 / contact")
	assert.Contains(t, out, "acc-1 / event")
}

func TestStatusCmd_SinglePair(t *testing.T) {
	cleanup, states := setupStatusTest(t)
	defer cleanup()

	ctx := context.Background()
	_, err := states.Begin(ctx, "acc-1", domain.KindContact)
	require.NoError(t, err)
	require.NoError(t, states.Complete(ctx, "acc-1", domain.KindContact,
		domain.SyncCounters{TotalRecords: 20, SyncedRecords: 20}, "cur-1"))

	out, err := executeCommand("status", "acc-1", "contact")
	require.NoError(t, err)
	assert.Contains(t, out, "completed")
	assert.Contains(t, out, "20 total, 20 synced")
	assert.Contains(t, out, "Last sync:")
}

func TestStatusCmd_UnknownPair(t *testing.T) {
	cleanup, _ := setupStatusTest(t)
	defer cleanup()

	out, err := executeCommand("status", "acc-9", "contact")
	require.NoError(t, err)
	assert.Contains(t, out, "No sync state for acc-9/contact yet.")
}

func TestStatusCmd_ShowsFailure(t *testing.T) {
	cleanup, states := setupStatusTest(t)
	defer cleanup()

	ctx := context.Background()
	_, err := states.Begin(ctx, "acc-1", domain.KindContact)
	require.NoError(t, err)
	require.NoError(t, states.Fail(ctx, "acc-1", domain.KindContact,
		domain.SyncCounters{}, "validate directory: credentials revoked", "cur-1"))

	out, err := executeCommand("status", "acc-1", "contact")
	require.NoError(t, err)
	assert.Contains(t, out, "error")
	assert.Contains(t, out, "credentials revoked")
}

func TestStatusCmd_StoreNotConfigured(t *testing.T) {
	oldStore := stateStore
	stateStore = nil
	defer func() { stateStore = oldStore }()

	_, err := executeCommand("status")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "state store not configured")
}
