package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSyncRunStatus_IsValid(t *testing.T) {
	assert.True(t, RunIdle.IsValid())
	assert.True(t, RunSyncing.IsValid())
	assert.True(t, RunCompleted.IsValid())
	assert.True(t, RunError.IsValid())
	assert.False(t, SyncRunStatus("conflict").IsValid())
}

func TestSyncCounters_Percent_Zero(t *testing.T) {
	assert.Equal(t, 0, SyncCounters{}.Percent())
}

func TestSyncCounters_Percent_Partial(t *testing.T) {
	c := SyncCounters{TotalRecords: 200, SyncedRecords: 50}
	assert.Equal(t, 25, c.Percent())
}

func TestSyncCounters_Percent_Complete(t *testing.T) {
	c := SyncCounters{TotalRecords: 110, SyncedRecords: 110}
	assert.Equal(t, 100, c.Percent())
}

func TestSyncCounters_Percent_SyncedExceedsEstimate(t *testing.T) {
	// The total is a best-effort estimate; synced may outrun it.
	c := SyncCounters{TotalRecords: 10, SyncedRecords: 40}
	assert.Equal(t, 100, c.Percent())
}

func TestSyncCounters_Percent_NoEstimate(t *testing.T) {
	c := SyncCounters{SyncedRecords: 7}
	assert.Equal(t, 100, c.Percent())
}

func TestProgressEventType_Terminal(t *testing.T) {
	assert.False(t, EventProgress.Terminal())
	assert.True(t, EventComplete.Terminal())
	assert.True(t, EventError.Terminal())
}
