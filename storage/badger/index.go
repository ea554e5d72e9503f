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

package badger

import (
	"bytes"
	"cmp"
	"context"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/chatrecall/core"
	"github.com/poiesic/chatrecall/storage"
)

// maxConflictRetries bounds how often an upsert is retried after losing a
// race against another writer of the same key.
const maxConflictRetries = 5

// IndexStore implements storage.IndexStore and storage.ManifestStore on
// BadgerDB. Queries are exact: every stored vector is scored.
type IndexStore struct {
	backend *Backend
	seq     *badger.Sequence
}

var (
	_ storage.IndexStore    = (*IndexStore)(nil)
	_ storage.ManifestStore = (*IndexStore)(nil)
)

// NewIndexStore opens (or creates) a durable index store in dir.
//
// Returns storage.IndexStore; the value also implements storage.ManifestStore.
func NewIndexStore(dir string) (storage.IndexStore, error) {
	backend, err := OpenBackend(dir, false)
	if err != nil {
		return nil, err
	}
	store, err := newIndexStore(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}
	return store, nil
}

// newIndexStore takes ownership of backend.
func newIndexStore(backend *Backend) (*IndexStore, error) {
	seq, err := backend.GetSequence(documentSeq)
	if err != nil {
		return nil, err
	}
	return &IndexStore{backend: backend, seq: seq}, nil
}

// Close releases the sequence and closes the database.
func (s *IndexStore) Close() error {
	if s.backend.IsClosed() {
		return nil
	}
	seqErr := s.seq.Release()
	if err := s.backend.Close(); err != nil {
		return err
	}
	return seqErr
}

// Ping reports ErrStorageClosed once the store is closed.
func (s *IndexStore) Ping(ctx context.Context) error {
	return s.check(ctx)
}

func (s *IndexStore) check(ctx context.Context) error {
	if s.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	return ctx.Err()
}

// nextSeq returns the next insertion sequence number, never 0.
func (s *IndexStore) nextSeq() (uint64, error) {
	n, err := s.seq.Next()
	if err != nil {
		return 0, err
	}
	// BadgerDB sequences can return 0 on first call, so we skip it
	if n == 0 {
		return s.seq.Next()
	}
	return n, nil
}

// Upsert writes the record in a single transaction. A replaced record keeps
// its original insertion sequence so that ties keep their order.
func (s *IndexStore) Upsert(ctx context.Context, record *core.IndexedVector) error {
	if err := core.ValidateIndexedVector(record); err != nil {
		return err
	}

	for attempt := 0; ; attempt++ {
		if err := s.check(ctx); err != nil {
			return err
		}
		err := s.backend.WithTx(func(tx *badger.Txn) error {
			key := makeDocumentKey(record.ID)
			stored := *record

			existing, err := getRecord(tx, key)
			switch {
			case err == nil:
				stored.Seq = existing.Seq
			case errors.Is(err, storage.ErrNotFound):
				if stored.Seq, err = s.nextSeq(); err != nil {
					return err
				}
			default:
				return err
			}

			if err := tx.Set(key, storage.MarshalIndexedVector(&stored)); err != nil {
				return err
			}
			return tx.Commit()
		}, true)

		if !errors.Is(err, badger.ErrConflict) || attempt >= maxConflictRetries {
			return err
		}
		s.backend.logger.Debug("upsert conflict, retrying", "id", record.ID, "attempt", attempt+1)
	}
}

// Get returns the record with the given ID.
func (s *IndexStore) Get(ctx context.Context, id string) (*core.IndexedVector, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	var record *core.IndexedVector
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		record, err = getRecord(tx, makeDocumentKey(id))
		return err
	}, false)
	return record, err
}

// Delete removes one record.
func (s *IndexStore) Delete(ctx context.Context, id string) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	return s.backend.WithTx(func(tx *badger.Txn) error {
		key := makeDocumentKey(id)
		if _, err := tx.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: %s", storage.ErrNotFound, id)
			}
			return err
		}
		if err := tx.Delete(key); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

type scoredRecord struct {
	hit core.Hit
	seq uint64
}

// Query scores every stored vector and returns the topK nearest, ordered by
// cosine distance and then by insertion sequence.
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

	var scored []scoredRecord
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(documentPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var record *core.IndexedVector
			err := iter.Item().Value(func(val []byte) error {
				var err error
				record, err = storage.UnmarshalIndexedVector(val)
				return err
			})
			if err != nil {
				return err
			}
			scored = append(scored, scoredRecord{
				hit: core.Hit{
					ID:       record.ID,
					Body:     record.Body,
					Metadata: record.Metadata,
					Distance: cosineDistance(vector, record.Vector),
				},
				seq: record.Seq,
			})
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(scored, func(a, b scoredRecord) int {
		if c := cmp.Compare(a.hit.Distance, b.hit.Distance); c != 0 {
			return c
		}
		return cmp.Compare(a.seq, b.seq)
	})
	if len(scored) > topK {
		scored = scored[:topK]
	}

	hits := make([]core.Hit, len(scored))
	for i, sr := range scored {
		hits[i] = sr.hit
	}
	return hits, nil
}

// Count returns the number of stored records.
func (s *IndexStore) Count(ctx context.Context) (int, error) {
	if err := s.check(ctx); err != nil {
		return 0, err
	}
	keys, err := s.backend.KeysWithPrefix([]byte(documentPrefix))
	return len(keys), err
}

// ResetAll deletes every record and the manifest.
func (s *IndexStore) ResetAll(ctx context.Context) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	keys, err := s.backend.KeysWithPrefix([]byte(documentPrefix))
	if err != nil {
		return err
	}
	keys = append(keys, []byte(manifestKey))
	s.backend.logger.Info("resetting index store", "records", len(keys)-1)
	return s.backend.DeleteKeys(keys)
}

// ForEach walks the records in key order. Each batch is read in its own
// transaction, so fn may write to the store.
func (s *IndexStore) ForEach(ctx context.Context, batchSize int, fn func(batch []*core.IndexedVector) error) error {
	if batchSize <= 0 {
		batchSize = storage.DefaultBatchSize
	}

	var after []byte
	for {
		if err := s.check(ctx); err != nil {
			return err
		}

		batch := make([]*core.IndexedVector, 0, batchSize)
		err := s.backend.WithTx(func(tx *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = []byte(documentPrefix)
			iter := tx.NewIterator(opts)
			defer iter.Close()

			if after == nil {
				iter.Rewind()
			} else {
				iter.Seek(after)
				if iter.Valid() && bytes.Equal(iter.Item().Key(), after) {
					iter.Next()
				}
			}
			for ; iter.Valid() && len(batch) < batchSize; iter.Next() {
				item := iter.Item()
				var record *core.IndexedVector
				err := item.Value(func(val []byte) error {
					var err error
					record, err = storage.UnmarshalIndexedVector(val)
					return err
				})
				if err != nil {
					return fmt.Errorf("record %s: %w", documentIDFromKey(item.Key()), err)
				}
				batch = append(batch, record)
				after = item.KeyCopy(after[:0])
			}
			return nil
		}, false)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}
		if err := fn(batch); err != nil {
			return err
		}
		if len(batch) < batchSize {
			return nil
		}
	}
}

// getRecord reads and decodes the record stored under key.
func getRecord(tx *badger.Txn, key []byte) (*core.IndexedVector, error) {
	item, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, documentIDFromKey(key))
		}
		return nil, err
	}
	var record *core.IndexedVector
	err = item.Value(func(val []byte) error {
		var err error
		record, err = storage.UnmarshalIndexedVector(val)
		return err
	})
	return record, err
}

// cosineDistance returns 1 - cos(a, b). A zero vector has similarity 0 with
// everything. Extra trailing dimensions on either side are ignored.
func cosineDistance(a, b []float32) float32 {
	n := min(len(a), len(b))
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	return float32(1 - dot/(math.Sqrt(normA)*math.Sqrt(normB)))
}
