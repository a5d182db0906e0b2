package item

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestCreateAndGetRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	it := &Item{
		ID:         "a1",
		Type:       "article",
		RawContent: "long read about transformers",
		URL:        "https://example.com/post",
		Metadata:   Metadata{Title: "Transformers", Author: "Jane Doe", Colors: []string{"blue"}},
		Keywords:   []string{"ml", "transformers"},
		Tags:       []string{"ai"},
		Voice: &VoiceAnalysis{
			Transcript: "note to self",
			Tone:       "casual",
		},
	}
	require.NoError(t, repo.Create(ctx, it))
	assert.False(t, it.CreatedAt.IsZero())

	got, err := repo.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "article", got.Type)
	assert.Equal(t, "Jane Doe", got.Metadata.Author)
	assert.Equal(t, []string{"ml", "transformers"}, got.Keywords)
	require.NotNil(t, got.Voice)
	assert.Equal(t, "note to self", got.Voice.Transcript)
}

func TestGetMissingReturnsErrNotFound(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateRefreshesItem(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	it := &Item{ID: "a1", Type: "note", RawContent: "draft"}
	require.NoError(t, repo.Create(ctx, it))

	it.Type = "todo"
	it.Metadata.Title = "Buy milk"
	require.NoError(t, repo.Update(ctx, it))

	got, err := repo.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "todo", got.Type)
	assert.Equal(t, "Buy milk", got.Metadata.Title)
	assert.False(t, got.UpdatedAt.Before(got.CreatedAt))

	err = repo.Update(ctx, &Item{ID: "ghost"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &Item{ID: "a1", Type: "note"}))
	require.NoError(t, repo.Delete(ctx, "a1"))

	_, err := repo.Get(ctx, "a1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, "a1"), ErrNotFound)
}

func TestListNewestFirstWithTypeFilter(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, typ := range []string{"note", "article", "note"} {
		require.NoError(t, repo.Create(ctx, &Item{
			ID:        string(rune('a' + i)),
			Type:      typ,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
			UpdatedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	all, err := repo.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].ID)

	notes, err := repo.List(ctx, "note")
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, "c", notes[0].ID)
	assert.Equal(t, "a", notes[1].ID)
}

func TestStats(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Total)
	assert.Nil(t, stats.LatestDate)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, typ := range []string{"note", "article", "note"} {
		require.NoError(t, repo.Create(ctx, &Item{
			ID:        string(rune('a' + i)),
			Type:      typ,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
			UpdatedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	stats, err = repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.ByType["note"])
	assert.Equal(t, 1, stats.ByType["article"])
	require.NotNil(t, stats.LatestDate)
	assert.True(t, stats.LatestDate.After(*stats.OldestDate))
}
