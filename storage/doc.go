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

// Package storage provides the index store abstraction for chatrecall.
//
// IndexStore keeps one vector per document ID together with the document
// body and metadata, and answers nearest-neighbour queries under cosine
// distance. Two backends implement it:
//
//   - storage/badger: an embedded, durable store (default)
//   - storage/qdrant: a remote Qdrant collection
//
// # Constructor Return Type Pattern
//
// Public constructors return the IndexStore interface to prevent coupling
// to a particular backend:
//
//	store, err := badger.NewIndexStore("/path/to/db")  // returns storage.IndexStore
//
// Internal constructors may return concrete types since they're only used
// within the implementation package.
//
// # Usage
//
// Use in tests with in-memory storage:
//
//	store, err := badger.NewMemoryIndexStore()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
// # Serialization
//
// Records and manifests are encoded with mus-go serializers. The encoding is
// positional; fields are never reordered.
//
// # Context Support
//
// All store methods accept context.Context for cancellation and timeout
// support.
package storage
