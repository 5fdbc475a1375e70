//go:build integration

package topic

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrivo-ai/scrivo/internal/testutil"
)

func TestStoreCRUD(t *testing.T) {
	testDB, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	store := NewStore(testDB.Pool, nil)
	ctx := context.Background()

	created, err := store.Create(ctx, "Product updates", "Release announcements", "Write in a factual, concise tone.")
	require.NoError(t, err)
	require.NotZero(t, created.ID)

	got, err := store.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Product updates", got.Name)
	assert.Equal(t, "Write in a factual, concise tone.", got.Prompt)

	updated, err := store.Update(ctx, created.ID, "", "", "Write with enthusiasm.")
	require.NoError(t, err)
	assert.Equal(t, "Product updates", updated.Name, "empty name keeps stored value")
	assert.Equal(t, "Write with enthusiasm.", updated.Prompt)

	_, err = store.Create(ctx, "Another", "", "")
	require.NoError(t, err)
	topics, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, topics, 2)
	assert.Equal(t, "Another", topics[0].Name, "listing is name ordered")

	require.NoError(t, store.Delete(ctx, created.ID))
	require.ErrorIs(t, store.Delete(ctx, created.ID), ErrNotFound)
	_, err = store.Get(ctx, created.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStoreCreateRequiresName(t *testing.T) {
	testDB, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	store := NewStore(testDB.Pool, nil)
	_, err := store.Create(context.Background(), "   ", "", "")
	require.Error(t, err)
}
