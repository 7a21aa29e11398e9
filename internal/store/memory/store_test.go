package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Sjdjdiejdrirhdkjej/YouTube-video-summariser-sub000/internal/summary"
)

func TestStoreSaveGetDelete(t *testing.T) {
	t.Parallel()

	store := New()
	ctx := context.Background()

	_, err := store.Get(ctx, "dQw4w9WgXcQ")
	require.ErrorIs(t, err, summary.ErrNotFound)

	sum := summary.StoredSummary{
		VideoID:   "dQw4w9WgXcQ",
		VideoURL:  "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		Summary:   "a classic",
		Sources:   []string{"oembed", "transcript"},
		CreatedAt: time.Unix(1700000000, 0).UTC(),
		UpdatedAt: time.Unix(1700000000, 0).UTC(),
	}
	require.NoError(t, store.Save(ctx, sum))

	got, err := store.Get(ctx, "dQw4w9WgXcQ")
	require.NoError(t, err)
	require.Equal(t, sum, got)

	require.NoError(t, store.Delete(ctx, "dQw4w9WgXcQ"))
	_, err = store.Get(ctx, "dQw4w9WgXcQ")
	require.ErrorIs(t, err, summary.ErrNotFound)

	// Idempotent delete.
	require.NoError(t, store.Delete(ctx, "dQw4w9WgXcQ"))
}

func TestStoreRejectsEmptyVideoID(t *testing.T) {
	t.Parallel()

	store := New()
	require.Error(t, store.Save(context.Background(), summary.StoredSummary{}))
}

func TestStoreLastWriterWins(t *testing.T) {
	t.Parallel()

	store := New()
	ctx := context.Background()

	first := summary.StoredSummary{VideoID: "abc123DEF45", Summary: "first"}
	second := summary.StoredSummary{VideoID: "abc123DEF45", Summary: "second"}
	require.NoError(t, store.Save(ctx, first))
	require.NoError(t, store.Save(ctx, second))

	got, err := store.Get(ctx, "abc123DEF45")
	require.NoError(t, err)
	require.Equal(t, "second", got.Summary)
	require.Equal(t, 1, store.Len())
}

func TestStoreCopiesSources(t *testing.T) {
	t.Parallel()

	store := New()
	ctx := context.Background()

	sources := []string{"oembed"}
	require.NoError(t, store.Save(ctx, summary.StoredSummary{VideoID: "v", Sources: sources}))
	sources[0] = "mutated"

	got, err := store.Get(ctx, "v")
	require.NoError(t, err)
	require.Equal(t, []string{"oembed"}, got.Sources)

	got.Sources[0] = "mutated again"
	again, err := store.Get(ctx, "v")
	require.NoError(t, err)
	require.Equal(t, []string{"oembed"}, again.Sources)
}

func TestStoreConcurrentSaves(t *testing.T) {
	t.Parallel()

	store := New()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.Save(ctx, summary.StoredSummary{VideoID: "shared", Summary: "s"})
			_, _ = store.Get(ctx, "shared")
		}()
	}
	wg.Wait()

	got, err := store.Get(ctx, "shared")
	require.NoError(t, err)
	require.Equal(t, "s", got.Summary)
}
