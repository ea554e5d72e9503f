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

package qdrant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/poiesic/chatrecall/core"
	"github.com/poiesic/chatrecall/storage"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	DefaultHost       = "localhost"
	DefaultPort       = 6334
	DefaultCollection = "conversations"
)

// Config describes how to reach the Qdrant collection.
type Config struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
	// Dimensions fixes the vector size of a new collection. When zero the
	// size of the first upserted vector is used.
	Dimensions int
}

// DefaultConfig returns a config for a local Qdrant instance.
func DefaultConfig() Config {
	return Config{
		Host:       DefaultHost,
		Port:       DefaultPort,
		Collection: DefaultCollection,
	}
}

func (c *Config) normalize() {
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Collection == "" {
		c.Collection = DefaultCollection
	}
}

// IndexStore implements storage.IndexStore on a Qdrant collection using
// cosine distance. Point IDs are derived from the document ID hash and the
// document ID itself travels in the payload.
type IndexStore struct {
	client     *qdrant.Client
	collection string
	logger     *slog.Logger

	mu         sync.Mutex
	dimensions int
	exists     bool
	closed     bool
}

var _ storage.IndexStore = (*IndexStore)(nil)

// NewIndexStore connects to Qdrant. The connection is established lazily;
// use Ping to verify reachability.
func NewIndexStore(cfg Config) (storage.IndexStore, error) {
	cfg.normalize()
	if cfg.Dimensions < 0 {
		return nil, fmt.Errorf("dimensions must not be negative, got %d", cfg.Dimensions)
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:                   cfg.Host,
		Port:                   cfg.Port,
		APIKey:                 cfg.APIKey,
		UseTLS:                 cfg.UseTLS,
		SkipCompatibilityCheck: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrStoreUnavailable, err)
	}
	return &IndexStore{
		client:     client,
		collection: cfg.Collection,
		dimensions: cfg.Dimensions,
		logger:     slog.Default().With("component", "qdrant", "collection", cfg.Collection),
	}, nil
}

// Close closes the gRPC connections.
func (s *IndexStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.client.Close()
}

func (s *IndexStore) check(ctx context.Context) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return storage.ErrStorageClosed
	}
	return ctx.Err()
}

// Ping runs a server health check.
func (s *IndexStore) Ping(ctx context.Context) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return wrapErr(err)
	}
	return nil
}

// collectionExists reports whether the collection is present. A positive
// answer is cached.
func (s *IndexStore) collectionExists(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exists {
		return true, nil
	}
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return false, wrapErr(err)
	}
	s.exists = exists
	return exists, nil
}

// ensureCollection creates the collection if needed, sized to dims unless a
// size was configured.
func (s *IndexStore) ensureCollection(ctx context.Context, dims int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exists {
		return nil
	}
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return wrapErr(err)
	}
	if !exists {
		if s.dimensions == 0 {
			s.dimensions = dims
		}
		if err := s.createCollection(ctx); err != nil {
			return err
		}
	}
	s.exists = true
	return nil
}

// createCollection must be called with mu held.
func (s *IndexStore) createCollection(ctx context.Context) error {
	s.logger.Info("creating collection", "dimensions", s.dimensions)
	err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(s.dimensions),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	return wrapErr(err)
}

// Upsert writes the record as a single point.
func (s *IndexStore) Upsert(ctx context.Context, record *core.IndexedVector) error {
	if err := core.ValidateIndexedVector(record); err != nil {
		return err
	}
	if err := s.check(ctx); err != nil {
		return err
	}
	if err := s.ensureCollection(ctx, len(record.Vector)); err != nil {
		return err
	}
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         []*qdrant.PointStruct{toPoint(record)},
	})
	return wrapErr(err)
}

// Get returns the record with the given ID.
func (s *IndexStore) Get(ctx context.Context, id string) (*core.IndexedVector, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	exists, err := s.collectionExists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	points, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: s.collection,
		Ids:            []*qdrant.PointId{pointID(id)},
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		return nil, wrapErr(err)
	}
	for _, p := range points {
		record, err := fromPayload(p.GetPayload(), denseVector(p.GetVectors()))
		if err != nil {
			return nil, err
		}
		if record.ID == id {
			return record, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, id)
}

// Delete removes one record.
func (s *IndexStore) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelector(pointID(id)),
	})
	return wrapErr(err)
}

// Query returns the topK nearest points in server order.
func (s *IndexStore) Query(ctx context.Context, vector []float32, topK int) ([]core.Hit, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: topK must be positive, got %d", storage.ErrInvalidQuery, topK)
	}
	if err := core.ValidateEmbedding(vector); err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrInvalidQuery, err)
	}
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	exists, err := s.collectionExists(ctx)
	if err != nil || !exists {
		return nil, err
	}

	scored, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQueryDense(vector),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, wrapErr(err)
	}
	hits := make([]core.Hit, 0, len(scored))
	for _, p := range scored {
		hit, err := toHit(p.GetPayload(), p.GetScore())
		if err != nil {
			return nil, err
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// Count returns the exact number of points.
func (s *IndexStore) Count(ctx context.Context) (int, error) {
	if err := s.check(ctx); err != nil {
		return 0, err
	}
	exists, err := s.collectionExists(ctx)
	if err != nil || !exists {
		return 0, err
	}
	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, wrapErr(err)
	}
	return int(n), nil
}

// ResetAll drops the collection and recreates it empty when its vector
// size is known.
func (s *IndexStore) ResetAll(ctx context.Context) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return wrapErr(err)
	}
	if exists {
		s.logger.Info("dropping collection")
		if err := s.client.DeleteCollection(ctx, s.collection); err != nil {
			return wrapErr(err)
		}
	}
	s.exists = false
	if s.dimensions == 0 {
		return nil
	}
	if err := s.createCollection(ctx); err != nil {
		return err
	}
	s.exists = true
	return nil
}

// ForEach pages through the collection with scroll offsets.
func (s *IndexStore) ForEach(ctx context.Context, batchSize int, fn func(batch []*core.IndexedVector) error) error {
	if batchSize <= 0 {
		batchSize = storage.DefaultBatchSize
	}
	if err := s.check(ctx); err != nil {
		return err
	}
	exists, err := s.collectionExists(ctx)
	if err != nil || !exists {
		return err
	}

	var offset *qdrant.PointId
	for {
		if err := s.check(ctx); err != nil {
			return err
		}
		points, next, err := s.client.ScrollAndOffset(ctx, &qdrant.ScrollPoints{
			CollectionName: s.collection,
			Offset:         offset,
			Limit:          qdrant.PtrOf(uint32(batchSize)),
			WithPayload:    qdrant.NewWithPayload(true),
			WithVectors:    qdrant.NewWithVectors(true),
		})
		if err != nil {
			return wrapErr(err)
		}
		if len(points) == 0 {
			return nil
		}
		batch := make([]*core.IndexedVector, 0, len(points))
		for _, p := range points {
			record, err := fromPayload(p.GetPayload(), denseVector(p.GetVectors()))
			if err != nil {
				return fmt.Errorf("point %d: %w", p.GetId().GetNum(), err)
			}
			batch = append(batch, record)
		}
		if err := fn(batch); err != nil {
			return err
		}
		if next == nil {
			return nil
		}
		offset = next
	}
}

// wrapErr marks transport failures as ErrStoreUnavailable.
func wrapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.Unauthenticated, codes.PermissionDenied:
		return fmt.Errorf("%w: %w", storage.ErrStoreUnavailable, err)
	}
	return err
}
