package google

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/relaysync/internal/core/domain"
)

func TestDecodeCursor_Empty(t *testing.T) {
	cursor, err := DecodeCursor("")
	require.NoError(t, err)
	assert.True(t, cursor.IsEmpty())
	assert.Equal(t, CursorVersion, cursor.Version)
}

func TestCursor_RoundTrip(t *testing.T) {
	original := &Cursor{Version: CursorVersion, SyncToken: "sync-abc", PageToken: "page-xyz"}

	decoded, err := DecodeCursor(original.Encode())
	require.NoError(t, err)
	assert.Equal(t, "sync-abc", decoded.SyncToken)
	assert.Equal(t, "page-xyz", decoded.PageToken)
	assert.False(t, decoded.IsEmpty())
}

func TestDecodeCursor_InvalidBase64(t *testing.T) {
	_, err := DecodeCursor("not!!valid!!base64")
	assert.ErrorIs(t, err, domain.ErrInvalidCursor)
}

func TestDecodeCursor_InvalidJSON(t *testing.T) {
	// "bm90LWpzb24" is base64 for "not-json"
	_, err := DecodeCursor("bm90LWpzb24=")
	assert.ErrorIs(t, err, domain.ErrInvalidCursor)
}

func TestDecodeCursor_FutureVersion(t *testing.T) {
	future := &Cursor{Version: CursorVersion + 1, SyncToken: "tok"}
	_, err := DecodeCursor(future.Encode())
	assert.ErrorIs(t, err, domain.ErrInvalidCursor)
}
