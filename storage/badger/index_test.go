package badger

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/poiesic/chatrecall/core"
	"github.com/poiesic/chatrecall/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(id string, x, y float32) *core.IndexedVector {
	return &core.IndexedVector{
		ID:     id,
		Vector: []float32{x, y},
		Body:   "body of " + id,
		Metadata: core.Metadata{
			Title:        "title " + id,
			CreatedAt:    "2024-01-01T00:00:00Z",
			MessageCount: 2,
		},
	}
}

func newTestStore(t *testing.T) *IndexStore {
	t.Helper()
	store, err := NewMemoryIndexStore()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store.(*IndexStore)
}

func TestIndexStore_UpsertAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, record("a", 1, 0)))

	got, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "a", got.ID)
	assert.Equal(t, []float32{1, 0}, got.Vector)
	assert.Equal(t, "body of a", got.Body)
	assert.Equal(t, "title a", got.Metadata.Title)
	assert.NotZero(t, got.Seq)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestIndexStore_UpsertIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, store.Upsert(ctx, record("a", 1, 0)))
		require.NoError(t, store.Upsert(ctx, record("b", 0, 1)))
	}

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestIndexStore_ReplaceKeepsSequence(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, record("a", 1, 0)))
	first, err := store.Get(ctx, "a")
	require.NoError(t, err)

	replacement := record("a", 0, 1)
	replacement.Body = "new body"
	require.NoError(t, store.Upsert(ctx, replacement))

	got, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "new body", got.Body)
	assert.Equal(t, []float32{0, 1}, got.Vector)
	assert.Equal(t, first.Seq, got.Seq)
}

func TestIndexStore_UpsertRejectsInvalidRecords(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		record *core.IndexedVector
	}{
		{"nil", nil},
		{"empty id", record("", 1, 0)},
		{"empty vector", &core.IndexedVector{ID: "a", Body: "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, store.Upsert(ctx, tt.record), core.ErrInvalidVector)
		})
	}
}

func TestIndexStore_Query(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, record("east", 1, 0)))
	require.NoError(t, store.Upsert(ctx, record("north", 0, 1)))
	require.NoError(t, store.Upsert(ctx, record("west", -1, 0)))
	require.NoError(t, store.Upsert(ctx, record("northeast", 1, 1)))

	hits, err := store.Query(ctx, []float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)

	assert.Equal(t, "east", hits[0].ID)
	assert.InDelta(t, 0, hits[0].Distance, 1e-6)
	assert.InDelta(t, 1, hits[0].Similarity(), 1e-6)
	assert.Equal(t, "northeast", hits[1].ID)
	assert.Equal(t, "north", hits[2].ID)
	assert.InDelta(t, 1, hits[2].Distance, 1e-6)
	assert.Equal(t, "body of east", hits[0].Body)
	assert.Equal(t, "title east", hits[0].Metadata.Title)
}

func TestIndexStore_QueryTiesKeepInsertionOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Keys sort as a < b < c but insertion order is c, a, b.
	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, store.Upsert(ctx, record(id, 1, 0)))
	}
	// Replacing c keeps its position.
	require.NoError(t, store.Upsert(ctx, record("c", 2, 0)))

	hits, err := store.Query(ctx, []float32{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, []string{"c", "a", "b"}, []string{hits[0].ID, hits[1].ID, hits[2].ID})
}

func TestIndexStore_QueryEdgeCases(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	t.Run("empty store", func(t *testing.T) {
		hits, err := store.Query(ctx, []float32{1, 0}, 5)
		require.NoError(t, err)
		assert.Empty(t, hits)
	})

	t.Run("invalid topK", func(t *testing.T) {
		_, err := store.Query(ctx, []float32{1, 0}, 0)
		assert.ErrorIs(t, err, storage.ErrInvalidQuery)
	})

	t.Run("empty vector", func(t *testing.T) {
		_, err := store.Query(ctx, nil, 5)
		assert.ErrorIs(t, err, storage.ErrInvalidQuery)
	})

	t.Run("zero vector has similarity zero", func(t *testing.T) {
		require.NoError(t, store.Upsert(ctx, record("zero", 0, 0)))
		hits, err := store.Query(ctx, []float32{1, 0}, 5)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.InDelta(t, 0, hits[0].Similarity(), 1e-6)
	})
}

func TestIndexStore_Delete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, record("a", 1, 0)))
	require.NoError(t, store.Delete(ctx, "a"))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	assert.ErrorIs(t, store.Delete(ctx, "a"), storage.ErrNotFound)
}

func TestIndexStore_ResetAll(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		require.NoError(t, store.Upsert(ctx, record(fmt.Sprintf("doc-%d", i), 1, float32(i))))
	}
	require.NoError(t, store.SaveManifest(ctx, &core.Manifest{EmbeddingModel: "m", Dimensions: 2}))

	require.NoError(t, store.ResetAll(ctx))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	_, err = store.GetManifest(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// The store stays usable.
	require.NoError(t, store.Upsert(ctx, record("again", 1, 0)))
	count, err = store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestIndexStore_ForEach(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		require.NoError(t, store.Upsert(ctx, record(fmt.Sprintf("doc-%d", i), 1, 0)))
	}

	var sizes []int
	var ids []string
	err := store.ForEach(ctx, 3, func(batch []*core.IndexedVector) error {
		sizes = append(sizes, len(batch))
		for _, r := range batch {
			ids = append(ids, r.ID)
			// Writing during iteration is allowed.
			r.Body = "rewritten"
			if err := store.Upsert(ctx, r); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{3, 3, 1}, sizes)
	assert.Len(t, ids, 7)
	assert.Equal(t, "doc-0", ids[0])

	got, err := store.Get(ctx, "doc-6")
	require.NoError(t, err)
	assert.Equal(t, "rewritten", got.Body)
}

func TestIndexStore_ForEachStopsOnError(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, store.Upsert(ctx, record(fmt.Sprintf("doc-%d", i), 1, 0)))
	}

	calls := 0
	err := store.ForEach(ctx, 2, func([]*core.IndexedVector) error {
		calls++
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 1, calls)
}

func TestIndexStore_ConcurrentUpsertAndQuery(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				assert.NoError(t, store.Upsert(ctx, record(fmt.Sprintf("doc-%d-%d", w, i), 1, float32(i))))
			}
		}()
		go func() {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				hits, err := store.Query(ctx, []float32{1, 0}, 5)
				assert.NoError(t, err)
				for _, h := range hits {
					assert.NotEmpty(t, h.Body)
				}
			}
		}()
	}
	wg.Wait()

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 80, count)
}

func TestIndexStore_Closed(t *testing.T) {
	store, err := NewMemoryIndexStore()
	require.NoError(t, err)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	ctx := context.Background()
	assert.ErrorIs(t, store.Ping(ctx), storage.ErrStorageClosed)
	assert.ErrorIs(t, store.Upsert(ctx, record("a", 1, 0)), storage.ErrStorageClosed)
	_, err = store.Count(ctx)
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
}

func TestIndexStore_Durable(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewIndexStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Upsert(ctx, record("a", 1, 0)))
	require.NoError(t, store.Close())

	store, err = NewIndexStore(dir)
	require.NoError(t, err)
	defer store.Close()

	got, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "body of a", got.Body)

	// New inserts are ordered after the reopened records.
	require.NoError(t, store.Upsert(ctx, record("b", 1, 0)))
	b, err := store.Get(ctx, "b")
	require.NoError(t, err)
	assert.Greater(t, b.Seq, got.Seq)
}

func TestManifest(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.GetManifest(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.SaveManifest(ctx, &core.Manifest{EmbeddingModel: "text-embedding-3-small", Dimensions: 1536}))

	got, err := store.GetManifest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "text-embedding-3-small", got.EmbeddingModel)
	assert.Equal(t, 1536, got.Dimensions)
	assert.False(t, got.UpdatedAt.IsZero())
}

func TestCosineDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float32
	}{
		{"identical", []float32{1, 2}, []float32{1, 2}, 0},
		{"scaled", []float32{1, 2}, []float32{2, 4}, 0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 1},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, 2},
		{"zero", []float32{0, 0}, []float32{1, 0}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, cosineDistance(tt.a, tt.b), 1e-6)
		})
	}
}
