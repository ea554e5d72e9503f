// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package chatrecall

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/poiesic/chatrecall/ai"
	"github.com/poiesic/chatrecall/ai/openai"
	"github.com/poiesic/chatrecall/ai/rediscache"
	"github.com/poiesic/chatrecall/archive"
	"github.com/poiesic/chatrecall/config"
	"github.com/poiesic/chatrecall/core"
	"github.com/poiesic/chatrecall/ingestion"
	"github.com/poiesic/chatrecall/reembed"
	"github.com/poiesic/chatrecall/search"
	"github.com/poiesic/chatrecall/storage"
	"github.com/poiesic/chatrecall/storage/badger"
	"github.com/poiesic/chatrecall/storage/qdrant"
	"github.com/redis/go-redis/v9"
)

// Database ties an index store to an embedding provider and hands out the
// importer, searcher and reembedder that operate on them.
type Database struct {
	config   *config.Config
	store    storage.IndexStore
	provider ai.Provider
	embedder ai.Embedder
	redis    *redis.Client
	logger   *slog.Logger

	// embedderRetries is set when the embedder already retries failed calls.
	embedderRetries bool
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	store       storage.IndexStore
	provider    ai.Provider
	noEmbedding bool
}

// ErrEmbeddingDisabled is returned by every embedding call of a database
// opened with WithoutEmbedding.
var ErrEmbeddingDisabled = fmt.Errorf("%w: embedding is disabled for this database", ai.ErrConfiguration)

// WithIndexStore uses store instead of opening the configured backend.
// The database takes ownership and closes it.
func WithIndexStore(store storage.IndexStore) DatabaseOption {
	return func(o *databaseOptions) {
		o.store = store
	}
}

// WithProvider uses provider instead of the OpenAI-compatible one built
// from the embedding configuration.
func WithProvider(provider ai.Provider) DatabaseOption {
	return func(o *databaseOptions) {
		o.provider = provider
	}
}

// WithoutEmbedding opens the store only. Commands that read or delete
// stored documents work without embedding credentials; anything that embeds
// fails with ErrEmbeddingDisabled.
func WithoutEmbedding() DatabaseOption {
	return func(o *databaseOptions) {
		o.noEmbedding = true
	}
}

// NewDatabase opens the store and the embedding provider described by cfg.
// A nil cfg means config.Default().
func NewDatabase(cfg *config.Config, opts ...DatabaseOption) (*Database, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Apply options
	options := &databaseOptions{}
	for _, opt := range opts {
		opt(options)
	}

	logger := slog.Default().With("component", "database")

	store := options.store
	if store == nil {
		var err error
		store, err = openStore(cfg)
		if err != nil {
			return nil, err
		}
	}

	db := &Database{
		config: cfg,
		store:  store,
		logger: logger,
	}
	if options.noEmbedding {
		db.embedder = disabledEmbedder{}
		return db, nil
	}

	provider := options.provider
	if provider == nil {
		var err error
		provider, err = openai.NewProvider(cfg.AIConfig())
		if err != nil {
			store.Close()
			return nil, err
		}
		db.embedderRetries = cfg.Embedding.MaxAttempts > 1
	}
	db.provider = provider
	db.embedder = provider.Embedder()

	if cfg.Redis.Addr != "" {
		db.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		cacheOpts := []rediscache.Option{rediscache.WithTTL(cfg.Redis.TTL)}
		if cfg.Redis.KeyPrefix != "" {
			cacheOpts = append(cacheOpts, rediscache.WithKeyPrefix(cfg.Redis.KeyPrefix))
		}
		cached, err := rediscache.New(db.embedder, db.redis, provider.ModelName(), cacheOpts...)
		if err != nil {
			db.Close()
			return nil, err
		}
		db.embedder = cached
		logger.Debug("embedding cache enabled", "addr", cfg.Redis.Addr)
	}

	logger.Debug("database opened",
		"backend", cfg.Store.Backend,
		"model", provider.ModelName())
	return db, nil
}

func openStore(cfg *config.Config) (storage.IndexStore, error) {
	switch cfg.Store.Backend {
	case config.BackendQdrant:
		return qdrant.NewIndexStore(cfg.Qdrant())
	default:
		return badger.NewIndexStore(cfg.Store.Path)
	}
}

// Close releases the provider, the cache client and the store.
func (db *Database) Close() error {
	// Close AI provider first
	if db.provider != nil {
		if err := db.provider.Close(); err != nil {
			db.logger.Error("error closing AI provider", "err", err)
		}
	}

	if db.redis != nil {
		if err := db.redis.Close(); err != nil {
			db.logger.Error("error closing redis client", "err", err)
		}
	}

	if err := db.store.Close(); err != nil && !errors.Is(err, storage.ErrStorageClosed) {
		db.logger.Error("error closing index store", "err", err)
		return err
	}
	return nil
}

// IndexStore returns the underlying store.
func (db *Database) IndexStore() storage.IndexStore {
	return db.store
}

// Embedder returns the embedder used for documents and queries, including
// the cache when one is configured.
func (db *Database) Embedder() ai.Embedder {
	return db.embedder
}

// ModelName returns the embedding model identifier.
func (db *Database) ModelName() string {
	if db.provider == nil {
		return db.config.Embedding.Model
	}
	return db.provider.ModelName()
}

// NewImporter creates an importer configured from the import section.
// Options passed here are applied last.
func (db *Database) NewImporter(opts ...ingestion.Option) (*ingestion.Importer, error) {
	normalizer, err := archive.NewNormalizer(archive.WithMaxChars(db.config.Import.MaxChars))
	if err != nil {
		return nil, err
	}
	base := []ingestion.Option{
		ingestion.WithNormalizer(normalizer),
		ingestion.WithConcurrency(db.config.Import.Concurrency),
		ingestion.WithBatchSize(db.config.Import.BatchSize),
		ingestion.WithEmbeddingModel(db.ModelName()),
	}
	return ingestion.NewImporter(db.store, db.embedder, append(base, opts...)...)
}

// NewSearcher creates a searcher over the store.
func (db *Database) NewSearcher(opts ...search.Option) (*search.Searcher, error) {
	return search.NewSearcher(db.store, db.embedder, opts...)
}

// NewReembedder creates a reembedder that records the current model in the
// manifest. A nil cfg means reembed.DefaultConfig(). Progress is written to
// progress; nil discards it. When the configured provider retries on its
// own, cfg.MaxRetries is lowered to a single attempt.
func (db *Database) NewReembedder(cfg *reembed.Config, progress io.Writer) (*reembed.Reembedder, error) {
	if cfg == nil {
		cfg = reembed.DefaultConfig()
	}
	c := *cfg
	if c.EmbeddingModel == "" {
		c.EmbeddingModel = db.ModelName()
	}
	if db.embedderRetries && c.MaxRetries > 1 {
		db.logger.Debug("embedder retries already, reembedding makes single attempts",
			"max_attempts", db.config.Embedding.MaxAttempts)
		c.MaxRetries = 1
	}
	return reembed.NewReembedder(db.store, db.embedder, &c, progress)
}

// Stats counts stored conversations and messages and reads the manifest
// when the store keeps one.
func (db *Database) Stats(ctx context.Context) (*core.Stats, error) {
	stats := &core.Stats{}
	err := db.store.ForEach(ctx, storage.DefaultBatchSize, func(batch []*core.IndexedVector) error {
		for _, record := range batch {
			stats.Conversations++
			stats.Messages += record.Metadata.MessageCount
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning index: %w", err)
	}

	if ms, ok := db.store.(storage.ManifestStore); ok {
		manifest, err := ms.GetManifest(ctx)
		switch {
		case errors.Is(err, storage.ErrNotFound):
		case err != nil:
			return nil, fmt.Errorf("reading manifest: %w", err)
		default:
			stats.Manifest = manifest
		}
	}
	return stats, nil
}

// Reset deletes every stored document.
func (db *Database) Reset(ctx context.Context) error {
	if err := db.store.ResetAll(ctx); err != nil {
		return fmt.Errorf("resetting index: %w", err)
	}
	db.logger.Info("index reset")
	return nil
}

type disabledEmbedder struct{}

func (disabledEmbedder) EmbedText(context.Context, string) ([]float32, error) {
	return nil, ErrEmbeddingDisabled
}

func (disabledEmbedder) EmbedTexts(context.Context, []string) ([][]float32, error) {
	return nil, ErrEmbeddingDisabled
}
