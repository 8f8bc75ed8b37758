package badger_test

import (
	"context"
	"testing"
	"time"

	"github.com/fwojciec/relay"
	"github.com/fwojciec/relay/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepo(t *testing.T) *badger.Repository {
	t.Helper()
	repo, err := badger.Open(badger.Config{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestOpen_RequiresPath(t *testing.T) {
	t.Parallel()
	_, err := badger.Open(badger.Config{})
	assert.Error(t, err)
}

func TestRepository_StageThenSave(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := newRepo(t)
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	placeholder := relay.Message{ID: "a1", ConversationID: "c1", Role: relay.RoleAssistant, Status: relay.StatusLoading, CreatedAt: created}
	require.NoError(t, repo.Insert(ctx, placeholder))

	_, err := repo.Get(ctx, "a1")
	require.ErrorIs(t, err, relay.ErrMessageNotFound)

	require.NoError(t, repo.Save(ctx))
	got, err := repo.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, relay.StatusLoading, got.Status)

	final := placeholder
	final.Content = "answer"
	final.Status = relay.StatusCompleted
	require.NoError(t, repo.Update(ctx, final))
	require.NoError(t, repo.Save(ctx))

	got, err = repo.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "answer", got.Content)
	assert.Equal(t, relay.StatusCompleted, got.Status)
	assert.True(t, created.Equal(got.CreatedAt))

	msgs, err := repo.List(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, msgs, 1, "update must not duplicate the index entry")
}

func TestRepository_ListOrdering(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := newRepo(t)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	for _, m := range []relay.Message{
		{ID: "m2", ConversationID: "c1", Role: relay.RoleAssistant, Content: "second", CreatedAt: base.Add(time.Second)},
		{ID: "m1", ConversationID: "c1", Role: relay.RoleUser, Content: "first", CreatedAt: base},
		{ID: "x1", ConversationID: "c1/nested", Role: relay.RoleUser, Content: "other", CreatedAt: base},
	} {
		require.NoError(t, repo.Insert(ctx, m))
	}
	require.NoError(t, repo.Save(ctx))

	got, err := repo.List(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].Content)
	assert.Equal(t, "second", got[1].Content)

	// Moving a message in time reorders it.
	moved := got[0]
	moved.CreatedAt = base.Add(2 * time.Second)
	require.NoError(t, repo.Update(ctx, moved))
	require.NoError(t, repo.Save(ctx))

	got, err = repo.List(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "second", got[0].Content)
	assert.Equal(t, "first", got[1].Content)
}

func TestRepository_Errors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := newRepo(t)

	msg := relay.Message{ID: "m1", Role: relay.RoleUser}
	require.NoError(t, repo.Insert(ctx, msg))
	assert.ErrorIs(t, repo.Insert(ctx, msg), relay.ErrMessageExists)
	require.NoError(t, repo.Save(ctx))
	assert.ErrorIs(t, repo.Insert(ctx, msg), relay.ErrMessageExists)
	assert.ErrorIs(t, repo.Update(ctx, relay.Message{ID: "nope"}), relay.ErrMessageNotFound)
	assert.ErrorIs(t, repo.Insert(ctx, relay.Message{}), relay.ErrValidation)
}

func TestRepository_SurvivesReopen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()

	repo, err := badger.Open(badger.Config{Path: dir})
	require.NoError(t, err)
	require.NoError(t, repo.Insert(ctx, relay.Message{ID: "m1", ConversationID: "c1", Role: relay.RoleUser, Content: "kept"}))
	require.NoError(t, repo.Save(ctx))
	require.NoError(t, repo.Close())

	reopened, err := badger.Open(badger.Config{Path: dir})
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })
	msgs, err := reopened.List(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "kept", msgs[0].Content)
}
