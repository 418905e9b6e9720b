package cli

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/relaysync/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/relaysync/internal/core/domain"
	"github.com/custodia-labs/relaysync/internal/core/services"
)

func setupAutosyncTest(t *testing.T) (func(), *memory.SyncStateStore) {
	t.Helper()
	states := memory.NewSyncStateStore()

	oldStore := stateStore
	oldScheduler := syncScheduler
	stateStore = states
	syncScheduler = services.NewScheduler(time.Hour, states, &mockSyncEngine{})
	cleanup := func() {
		stateStore = oldStore
		syncScheduler = oldScheduler
	}
	return cleanup, states
}

func TestAutosyncEnableCmd(t *testing.T) {
	cleanup, states := setupAutosyncTest(t)
	defer cleanup()

	out, err := executeCommand("autosync", "enable", "acc-1", "contact")
	require.NoError(t, err)
	assert.Contains(t, out, "Auto-sync enabled")

	state, err := states.Get(context.Background(), "acc-1", domain.KindContact)
	require.NoError(t, err)
	assert.True(t, state.AutoSync)
}

func TestAutosyncDisableCmd(t *testing.T) {
	cleanup, states := setupAutosyncTest(t)
	defer cleanup()

	require.NoError(t, states.SetAutoSync(context.Background(), "acc-1", domain.KindContact, true))

	out, err := executeCommand("autosync", "disable", "acc-1", "contact")
	require.NoError(t, err)
	assert.Contains(t, out, "Auto-sync disabled")

	state, err := states.Get(context.Background(), "acc-1", domain.KindContact)
	require.NoError(t, err)
	assert.False(t, state.AutoSync)
}

func TestAutosyncEnableCmd_UnknownKind(t *testing.T) {
	cleanup, _ := setupAutosyncTest(t)
	defer cleanup()

	_, err := executeCommand("autosync", "enable", "acc-1", "mailbox")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown record kind")
}

func TestAutosyncRunCmd(t *testing.T) {
	cleanup, _ := setupAutosyncTest(t)
	defer cleanup()

	out, err := executeCommand("autosync", "run")
	require.NoError(t, err)
	assert.Contains(t, out, "Done.")
}

func TestAutosyncRunCmd_SchedulerNotConfigured(t *testing.T) {
	oldScheduler := syncScheduler
	syncScheduler = nil
	defer func() { syncScheduler = oldScheduler }()

	_, err := executeCommand("autosync", "run")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "scheduler not configured")
}
