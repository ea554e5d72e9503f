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

package storage

import (
	"context"

	"github.com/poiesic/chatrecall/core"
)

// DefaultBatchSize is the number of records ForEach hands out per call when
// the caller passes a non-positive batch size.
const DefaultBatchSize = 100

// IndexStore is a durable, keyed collection of vectors searched by cosine
// distance. Implementations must be safe for concurrent use: an upsert is
// atomic with respect to concurrent queries.
type IndexStore interface {
	// Upsert inserts the record or atomically replaces the record with the
	// same ID. Repeating an upsert leaves the store unchanged.
	Upsert(ctx context.Context, record *core.IndexedVector) error

	// Get returns the record with the given ID.
	// Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*core.IndexedVector, error)

	// Delete removes one record.
	// Returns ErrNotFound if it doesn't exist.
	Delete(ctx context.Context, id string) error

	// Query returns up to topK records nearest to vector, by ascending
	// cosine distance. An empty store yields an empty result.
	Query(ctx context.Context, vector []float32, topK int) ([]core.Hit, error)

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)

	// ResetAll deletes every record.
	ResetAll(ctx context.Context) error

	// ForEach calls fn with consecutive batches of at most batchSize records
	// until the store is exhausted or fn returns an error.
	ForEach(ctx context.Context, batchSize int, fn func(batch []*core.IndexedVector) error) error

	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error

	// Close closes the store and releases resources.
	Close() error
}

// ManifestStore is implemented by stores that remember which embedding
// model produced their vectors.
type ManifestStore interface {
	// GetManifest returns the stored manifest.
	// Returns ErrNotFound if none was saved.
	GetManifest(ctx context.Context) (*core.Manifest, error)

	// SaveManifest replaces the stored manifest.
	SaveManifest(ctx context.Context, manifest *core.Manifest) error
}
