package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/relaysync/internal/core/domain"
)

func TestAccountStore_SaveAndGet(t *testing.T) {
	store := NewAccountStore()
	ctx := context.Background()

	account := domain.Account{
		ID:       "acc-1",
		Provider: domain.ProviderGoogle,
		Name:     "Work",
		Config:   map[string]string{"token": "abc"},
		CreatedAt: time.Now(),
	}

	err := store.Save(ctx, account)
	require.NoError(t, err)

	saved, err := store.Get(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderGoogle, saved.Provider)
	assert.Equal(t, "Work", saved.Name)
	assert.Equal(t, "abc", saved.Config["token"])
}

func TestAccountStore_Get_NotFound(t *testing.T) {
	store := NewAccountStore()
	ctx := context.Background()

	account, err := store.Get(ctx, "nonexistent")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Nil(t, account)
}

func TestAccountStore_Save_Update(t *testing.T) {
	store := NewAccountStore()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, domain.Account{ID: "acc-1", Provider: domain.ProviderGeneric, Name: "old"}))
	require.NoError(t, store.Save(ctx, domain.Account{ID: "acc-1", Provider: domain.ProviderGeneric, Name: "new"}))

	saved, err := store.Get(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, "new", saved.Name)
}

func TestAccountStore_List(t *testing.T) {
	store := NewAccountStore()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, domain.Account{ID: "acc-1", Provider: domain.ProviderGoogle}))
	require.NoError(t, store.Save(ctx, domain.Account{ID: "acc-2", Provider: domain.ProviderMicrosoft}))

	accounts, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, accounts, 2)
}

func TestAccountStore_Delete(t *testing.T) {
	store := NewAccountStore()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, domain.Account{ID: "acc-1"}))
	require.NoError(t, store.Delete(ctx, "acc-1"))

	_, err := store.Get(ctx, "acc-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// Delete non-existent should not error
	assert.NoError(t, store.Delete(ctx, "acc-1"))
}
