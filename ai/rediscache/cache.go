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

package rediscache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/poiesic/chatrecall/ai"
	"github.com/poiesic/chatrecall/core"
	"github.com/poiesic/chatrecall/storage"
	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces cache entries.
const DefaultKeyPrefix = "chatrecall:emb"

// ErrClientRequired is returned when no Redis client is supplied.
var ErrClientRequired = errors.New("redis client is required")

// Embedder caches vectors produced by an inner embedder in Redis, keyed by
// model and content hash. Redis failures are logged and fall through to the
// inner embedder.
type Embedder struct {
	inner  ai.Embedder
	client *redis.Client
	model  string
	prefix string
	ttl    time.Duration
	logger *slog.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

var (
	_ ai.Embedder = (*Embedder)(nil)
	_ ai.Pinger   = (*Embedder)(nil)
)

// Option configures the cache.
type Option func(*Embedder)

// WithTTL expires entries after ttl. Zero keeps them forever.
func WithTTL(ttl time.Duration) Option {
	return func(e *Embedder) {
		e.ttl = ttl
	}
}

// WithKeyPrefix replaces DefaultKeyPrefix.
func WithKeyPrefix(prefix string) Option {
	return func(e *Embedder) {
		e.prefix = prefix
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Embedder) {
		e.logger = logger
	}
}

// New wraps inner with a cache. The client is not owned by the cache.
func New(inner ai.Embedder, client *redis.Client, model string, opts ...Option) (*Embedder, error) {
	if inner == nil {
		return nil, fmt.Errorf("%w: inner embedder is required", ai.ErrConfiguration)
	}
	if client == nil {
		return nil, fmt.Errorf("%w: %w", ai.ErrConfiguration, ErrClientRequired)
	}
	e := &Embedder{
		inner:  inner,
		client: client,
		model:  model,
		prefix: DefaultKeyPrefix,
		logger: slog.Default().With("component", "embedding-cache"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Key returns the Redis key for text.
func (e *Embedder) Key(text string) string {
	return fmt.Sprintf("%s:%s:%s", e.prefix, e.model, core.IDFromContent(text).Hex())
}

// EmbedText serves text from the cache or embeds and stores it.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	key := e.Key(text)
	data, err := e.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		vector, decodeErr := storage.UnmarshalVector(data)
		if decodeErr == nil {
			e.hits.Add(1)
			return vector, nil
		}
		e.logger.Warn("dropping corrupt cache entry", "key", key, "error", decodeErr)
	case !errors.Is(err, redis.Nil):
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		e.logger.Warn("cache read failed", "error", err)
	}

	e.misses.Add(1)
	vector, err := e.inner.EmbedText(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := e.client.Set(ctx, key, storage.MarshalVector(vector), e.ttl).Err(); err != nil {
		e.logger.Warn("cache write failed", "error", err)
	}
	return vector, nil
}

// EmbedTexts fetches all keys at once and embeds only the misses, in one
// inner batch call.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	keys := make([]string, len(texts))
	for i, text := range texts {
		keys[i] = e.Key(text)
	}

	vectors := make([][]float32, len(texts))
	values, err := e.client.MGet(ctx, keys...).Result()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		e.logger.Warn("cache read failed", "error", err)
		values = nil
	}
	for i, value := range values {
		s, ok := value.(string)
		if !ok {
			continue
		}
		if vector, err := storage.UnmarshalVector([]byte(s)); err == nil {
			vectors[i] = vector
		}
	}

	var missing []int
	for i, vector := range vectors {
		if vector == nil {
			missing = append(missing, i)
		}
	}
	e.hits.Add(int64(len(texts) - len(missing)))
	e.misses.Add(int64(len(missing)))
	if len(missing) == 0 {
		return vectors, nil
	}

	missTexts := make([]string, len(missing))
	for j, i := range missing {
		missTexts[j] = texts[i]
	}
	embedded, err := e.inner.EmbedTexts(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(embedded) != len(missing) {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d", ai.ErrServiceUnavailable, len(missing), len(embedded))
	}

	_, err = e.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for j, i := range missing {
			vectors[i] = embedded[j]
			pipe.Set(ctx, keys[i], storage.MarshalVector(embedded[j]), e.ttl)
		}
		return nil
	})
	if err != nil {
		e.logger.Warn("cache write failed", "error", err)
	}
	return vectors, nil
}

// Ping checks the inner embedder. An unreachable Redis only degrades the
// cache to pass-through, so it is logged rather than returned.
func (e *Embedder) Ping(ctx context.Context) error {
	if err := e.client.Ping(ctx).Err(); err != nil {
		e.logger.Warn("redis unreachable, embedding without cache", "error", err)
	}
	return ai.Ping(ctx, e.inner)
}

// Stats returns cache hits and misses since creation.
func (e *Embedder) Stats() (hits, misses int64) {
	return e.hits.Load(), e.misses.Load()
}
