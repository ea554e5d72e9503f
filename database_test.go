package chatrecall

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/poiesic/chatrecall/ai"
	"github.com/poiesic/chatrecall/ai/mock"
	"github.com/poiesic/chatrecall/archive"
	"github.com/poiesic/chatrecall/config"
	"github.com/poiesic/chatrecall/reembed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testArchive = `[
  {"uuid": "c1", "name": "Python tips", "created_at": "2024-03-01T10:00:00Z",
   "chat_messages": [
     {"sender": "human", "text": "I love Python"},
     {"sender": "assistant", "text": "Python is great for scripting"}
   ]},
  {"uuid": "c2", "name": "Dinner", "created_at": "2024-03-02T10:00:00Z",
   "chat_messages": [
     {"sender": "human", "text": "how long should I boil pasta"}
   ]},
  {"uuid": "c3", "name": "Empty", "chat_messages": []}
]`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Store.Path = filepath.Join(t.TempDir(), "test_db")
	return cfg
}

func openTestDatabase(t *testing.T, cfg *config.Config) *Database {
	t.Helper()
	db, err := NewDatabase(cfg, WithProvider(mock.NewMockProvider()))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func importTestArchive(t *testing.T, db *Database) {
	t.Helper()
	raws, err := archive.Decode([]byte(testArchive))
	require.NoError(t, err)

	imp, err := db.NewImporter()
	require.NoError(t, err)
	defer imp.Release()

	report, err := imp.ImportBatch(context.Background(), raws)
	require.NoError(t, err)
	require.Equal(t, 2, report.Succeeded)
	require.Equal(t, 1, report.Skipped)
}

func TestNewDatabase(t *testing.T) {
	t.Run("create new database", func(t *testing.T) {
		db := openTestDatabase(t, testConfig(t))

		assert.NotNil(t, db.IndexStore())
		assert.NotNil(t, db.Embedder())
		assert.NotNil(t, db.logger)
		assert.Equal(t, mock.ModelName, db.ModelName())
	})

	t.Run("error with invalid path", func(t *testing.T) {
		// Try to create a database at a file path instead of directory
		tmpFile := filepath.Join(t.TempDir(), "not_a_dir")
		err := os.WriteFile(tmpFile, []byte("test"), 0644)
		require.NoError(t, err)

		cfg := config.Default()
		cfg.Store.Path = tmpFile
		db, err := NewDatabase(cfg, WithProvider(mock.NewMockProvider()))
		assert.Error(t, err)
		assert.Nil(t, db)
	})

	t.Run("invalid configuration", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Store.Backend = "sqlite"
		db, err := NewDatabase(cfg)
		assert.ErrorIs(t, err, config.ErrInvalidConfig)
		assert.Nil(t, db)
	})

	t.Run("hosted API without key", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Embedding.APIKey = ""
		db, err := NewDatabase(cfg)
		assert.ErrorIs(t, err, ai.ErrConfiguration)
		assert.Nil(t, db)
	})
}

func TestDatabase_Close(t *testing.T) {
	db, err := NewDatabase(testConfig(t), WithProvider(mock.NewMockProvider()))
	require.NoError(t, err)
	require.NotNil(t, db)

	assert.NoError(t, db.Close())
	// Closing twice is harmless
	assert.NoError(t, db.Close())
}

func TestDatabase_ImportAndSearch(t *testing.T) {
	db := openTestDatabase(t, testConfig(t))
	importTestArchive(t, db)

	searcher, err := db.NewSearcher()
	require.NoError(t, err)

	results, err := searcher.Search(context.Background(), "Python", 5)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "c1", results[0].ID)
	assert.Equal(t, "Python tips", results[0].Title)
	assert.Equal(t, "2024-03-01", results[0].DisplayDate)

	doc, err := searcher.Show(context.Background(), "c2")
	require.NoError(t, err)
	assert.Equal(t, "Dinner", doc.Title)
	assert.Contains(t, doc.Body, "boil pasta")
}

func TestDatabase_Stats(t *testing.T) {
	db := openTestDatabase(t, testConfig(t))

	stats, err := db.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Conversations)
	assert.Zero(t, stats.Messages)
	assert.Nil(t, stats.Manifest)

	importTestArchive(t, db)

	stats, err = db.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Conversations)
	assert.Equal(t, 3, stats.Messages)
	require.NotNil(t, stats.Manifest)
	assert.Equal(t, mock.ModelName, stats.Manifest.EmbeddingModel)
	assert.Equal(t, mock.DefaultDimensions, stats.Manifest.Dimensions)
}

func TestDatabase_Reset(t *testing.T) {
	db := openTestDatabase(t, testConfig(t))
	importTestArchive(t, db)

	require.NoError(t, db.Reset(context.Background()))

	stats, err := db.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Conversations)
	assert.Nil(t, stats.Manifest)
}

func TestDatabase_Reembed(t *testing.T) {
	db := openTestDatabase(t, testConfig(t))
	importTestArchive(t, db)

	var progress bytes.Buffer
	reembedder, err := db.NewReembedder(nil, &progress)
	require.NoError(t, err)

	result, err := reembedder.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Records)
	assert.Contains(t, progress.String(), "Progress: 2/2")
}

// embeddingServer answers embedding requests with 2-dim vectors until
// failing is set, then counts requests and answers 503.
func embeddingServer(t *testing.T, failing *atomic.Bool, failed *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing.Load() {
			failed.Add(1)
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprint(w, `{"error": {"message": "overloaded"}}`)
			return
		}
		var req struct {
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		type item struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		resp := struct {
			Data []item `json:"data"`
		}{}
		for i, in := range req.Input {
			resp.Data = append(resp.Data, item{Embedding: []float32{float32(len(in)), 1}, Index: i})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDatabase_ReembedDoesNotStackRetries(t *testing.T) {
	var failing atomic.Bool
	var failed atomic.Int32
	srv := embeddingServer(t, &failing, &failed)

	cfg := testConfig(t)
	cfg.Embedding.Host = srv.URL
	cfg.Embedding.Model = "test-model"
	cfg.Embedding.MaxAttempts = 3
	cfg.Embedding.RetryDelay = time.Millisecond
	db, err := NewDatabase(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	importTestArchive(t, db)

	failing.Store(true)
	reembedCfg := &reembed.Config{
		BatchSize:      10,
		ReportInterval: 10,
		MaxRetries:     3,
		RetryDelay:     time.Millisecond,
	}
	reembedder, err := db.NewReembedder(reembedCfg, nil)
	require.NoError(t, err)

	_, err = reembedder.Run(context.Background())
	require.ErrorIs(t, err, ai.ErrServiceUnavailable)
	assert.EqualValues(t, 3, failed.Load())
	assert.Equal(t, 3, reembedCfg.MaxRetries)
}

func TestDatabase_ReembedRetriesInjectedProvider(t *testing.T) {
	cfg := testConfig(t)
	cfg.Embedding.MaxAttempts = 3
	embedder := mock.NewMockEmbedder()
	db, err := NewDatabase(cfg, WithProvider(mock.NewMockProviderWithEmbedder(embedder)))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	importTestArchive(t, db)

	calls := embedder.CallCount()
	embedder.EmbedTextsFunc = func(context.Context, []string) ([][]float32, error) {
		return nil, ai.ErrServiceUnavailable
	}
	reembedder, err := db.NewReembedder(&reembed.Config{
		BatchSize:      10,
		ReportInterval: 10,
		MaxRetries:     2,
		RetryDelay:     time.Millisecond,
	}, nil)
	require.NoError(t, err)

	_, err = reembedder.Run(context.Background())
	require.ErrorIs(t, err, ai.ErrServiceUnavailable)
	assert.Equal(t, calls+2, embedder.CallCount())
}

func TestDatabase_RedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.Redis.Addr = mr.Addr()
	cfg.Redis.KeyPrefix = "test"

	provider := mock.NewMockProvider()
	db, err := NewDatabase(cfg, WithProvider(provider))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	importTestArchive(t, db)
	keys := mr.Keys()
	assert.Len(t, keys, 2)
	for _, key := range keys {
		assert.Contains(t, key, "test:"+mock.ModelName+":")
	}

	embedder := provider.(*mock.MockProvider).GetMockEmbedder()
	calls := embedder.CallCount()
	importTestArchive(t, db)
	assert.Equal(t, calls, embedder.CallCount())
}

func TestDatabase_RedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.Redis.Addr = mr.Addr()

	provider := mock.NewMockProvider()
	db, err := NewDatabase(cfg, WithProvider(provider))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mr.Close()
	importTestArchive(t, db)

	embedder := provider.(*mock.MockProvider).GetMockEmbedder()
	assert.Positive(t, embedder.CallCount())
	stats, err := db.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Conversations)
}

func TestDatabase_WithoutEmbedding(t *testing.T) {
	cfg := testConfig(t)
	db := openTestDatabase(t, cfg)
	importTestArchive(t, db)
	require.NoError(t, db.Close())

	// The hosted API would need a key; store-only mode does not.
	cfg.Embedding.APIKey = ""
	db, err := NewDatabase(cfg, WithoutEmbedding())
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, cfg.Embedding.Model, db.ModelName())

	stats, err := db.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Conversations)

	searcher, err := db.NewSearcher()
	require.NoError(t, err)
	doc, err := searcher.Show(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "Python tips", doc.Title)

	_, err = searcher.Search(context.Background(), "Python", 5)
	assert.ErrorIs(t, err, ErrEmbeddingDisabled)
	assert.ErrorIs(t, err, ai.ErrConfiguration)
}
