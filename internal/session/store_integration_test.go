//go:build integration

package session

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrivo-ai/scrivo/internal/testutil"
)

func TestStoreAppendAndHistory(t *testing.T) {
	testDB, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	store := NewStore(testDB.Pool, nil)
	ctx := context.Background()
	id := NewID()

	require.NoError(t, store.Append(ctx, id, Turn{Role: RoleUser, Content: "write me a post"}))
	require.NoError(t, store.Append(ctx, id, Turn{
		Role:    RoleAssistant,
		Content: "Done.\n\nActions taken:\n- create_post (post 3)",
		FunctionCalls: []FunctionCallRecord{
			{Name: "create_post", PostID: 3, EditLink: "/posts/3/edit"},
		},
		Model:    "gpt-4o",
		Settings: json.RawMessage(`{"temperature":0.7,"top_p":1,"max_tokens":2000}`),
	}))

	turns, err := store.History(ctx, id, 0)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, RoleUser, turns[0].Role)
	assert.Equal(t, RoleAssistant, turns[1].Role)
	require.Len(t, turns[1].FunctionCalls, 1)
	assert.Equal(t, "create_post", turns[1].FunctionCalls[0].Name)
	assert.EqualValues(t, 3, turns[1].FunctionCalls[0].PostID)
	assert.NotZero(t, turns[0].CreatedAt)

	// User turns carry no model snapshot; assistant turns do.
	assert.Empty(t, turns[0].Model)
	assert.Equal(t, "gpt-4o", turns[1].Model)
	assert.JSONEq(t, `{"temperature":0.7,"top_p":1,"max_tokens":2000}`, string(turns[1].Settings))
}

func TestStoreHistoryCap(t *testing.T) {
	testDB, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	store := NewStore(testDB.Pool, nil)
	ctx := context.Background()
	id := NewID()

	for i := 0; i < MaxStoredTurns+7; i++ {
		require.NoError(t, store.Append(ctx, id, Turn{Role: RoleUser, Content: fmt.Sprintf("turn %d", i)}))
	}

	turns, err := store.History(ctx, id, 0)
	require.NoError(t, err)
	require.Len(t, turns, MaxStoredTurns)
	// Oldest turns were evicted; the first retained turn is number 7.
	assert.Equal(t, "turn 7", turns[0].Content)
	assert.Equal(t, fmt.Sprintf("turn %d", MaxStoredTurns+6), turns[len(turns)-1].Content)

	limited, err := store.History(ctx, id, 5)
	require.NoError(t, err)
	require.Len(t, limited, 5)
	assert.Equal(t, fmt.Sprintf("turn %d", MaxStoredTurns+2), limited[0].Content)
}

func TestStoreClearKeepsSession(t *testing.T) {
	testDB, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	store := NewStore(testDB.Pool, nil)
	ctx := context.Background()
	id := NewID()

	require.NoError(t, store.Append(ctx, id, Turn{Role: RoleUser, Content: "hello"}))
	require.NoError(t, store.Clear(ctx, id))

	turns, err := store.History(ctx, id, 0)
	require.NoError(t, err)
	assert.Empty(t, turns)

	// Session row survives, so export still succeeds.
	doc, err := store.ExportSession(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, doc.SessionID)
	assert.Empty(t, doc.Messages)
}

func TestStoreExportImportRoundTrip(t *testing.T) {
	testDB, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	store := NewStore(testDB.Pool, nil)
	ctx := context.Background()
	id := NewID()

	require.NoError(t, store.Append(ctx, id, Turn{Role: RoleUser, Content: "q"}))
	require.NoError(t, store.Append(ctx, id, Turn{Role: RoleAssistant, Content: "a"}))

	doc, err := store.ExportSession(ctx, id)
	require.NoError(t, err)
	require.Equal(t, ExportVersion, doc.Version)
	require.Len(t, doc.Messages, 2)

	newID, err := store.ImportSession(ctx, doc)
	require.NoError(t, err)
	require.NotEqual(t, id, newID)
	require.True(t, ValidID(newID))

	imported, err := store.History(ctx, newID, 0)
	require.NoError(t, err)
	require.Len(t, imported, 2)
	assert.Equal(t, "q", imported[0].Content)
	assert.Equal(t, "a", imported[1].Content)
}

func TestStoreExportUnknownSession(t *testing.T) {
	testDB, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	store := NewStore(testDB.Pool, nil)

	_, err := store.ExportSession(context.Background(), NewID())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStoreSessionsListing(t *testing.T) {
	testDB, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	store := NewStore(testDB.Pool, nil)
	ctx := context.Background()

	first := NewID()
	second := NewID()
	require.NoError(t, store.Append(ctx, first, Turn{Role: RoleUser, Content: "a"}))
	require.NoError(t, store.Append(ctx, second, Turn{Role: RoleUser, Content: "b"}))
	require.NoError(t, store.Append(ctx, second, Turn{Role: RoleAssistant, Content: "c"}))

	infos, err := store.Sessions(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	// Most recently updated first.
	assert.Equal(t, second, infos[0].ID)
	assert.Equal(t, 2, infos[0].TurnCount)
	assert.Equal(t, 1, infos[1].TurnCount)
}

func TestStoreDelete(t *testing.T) {
	testDB, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	store := NewStore(testDB.Pool, nil)
	ctx := context.Background()
	id := NewID()

	require.NoError(t, store.Append(ctx, id, Turn{Role: RoleUser, Content: "a"}))
	require.NoError(t, store.Delete(ctx, id))
	require.ErrorIs(t, store.Delete(ctx, id), ErrNotFound)
}
