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

package reembed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/chatrecall/ai"
	"github.com/poiesic/chatrecall/core"
	"github.com/poiesic/chatrecall/storage"
)

// Config holds configuration for the reembedding operation.
type Config struct {
	// BatchSize is the number of records to process in each batch
	BatchSize int

	// ReportInterval is how often to report progress (number of records)
	ReportInterval int

	// MaxRetries is the maximum number of attempts for each embedding call
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration

	// EmbeddingModel is recorded in the store manifest after a run.
	// Empty leaves the manifest alone.
	EmbeddingModel string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      storage.DefaultBatchSize,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Result summarizes a run.
type Result struct {
	Records int
	Elapsed time.Duration
}

// Reembedder replaces the vector of every stored record.
type Reembedder struct {
	store     storage.IndexStore
	config    *Config
	progress  io.Writer
	processor *BatchProcessor
	logger    *slog.Logger
}

// NewReembedder creates a new reembedder.
// progress: where to write progress output (typically os.Stderr); nil discards it
func NewReembedder(store storage.IndexStore, embedder ai.Embedder, config *Config, progress io.Writer) (*Reembedder, error) {
	if store == nil {
		return nil, ErrIndexStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.BatchSize <= 0 {
		config.BatchSize = storage.DefaultBatchSize
	}
	if progress == nil {
		progress = io.Discard
	}

	return &Reembedder{
		store:     store,
		config:    config,
		progress:  progress,
		processor: NewBatchProcessor(store, embedder, config.MaxRetries, config.RetryDelay),
		logger:    slog.Default().With("component", "reembedder"),
	}, nil
}

// Run re-embeds every stored record. It stops at the first batch that still
// fails after retries; records already processed keep their new vectors, so
// a rerun is safe.
func (r *Reembedder) Run(ctx context.Context) (*Result, error) {
	total, err := r.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count records: %w", err)
	}
	if total == 0 {
		fmt.Fprintf(r.progress, "No records found in index (0 records)\n")
		return &Result{}, nil
	}

	fmt.Fprintf(r.progress, "Starting reembedding of %d records (batch size: %d)\n",
		total, r.config.BatchSize)

	tracker := NewProgressTracker(r.progress, total, r.config.ReportInterval)
	tracker.Start()

	processed := 0
	err = r.store.ForEach(ctx, r.config.BatchSize, func(batch []*core.IndexedVector) error {
		if err := r.processor.Process(ctx, batch); err != nil {
			return fmt.Errorf("failed to process batch: %w", err)
		}
		processed += len(batch)
		tracker.Update(processed)
		return nil
	})
	tracker.Finish()
	result := &Result{Records: processed, Elapsed: tracker.Elapsed()}
	if err != nil {
		r.logger.Error("reembedding stopped", "processed", processed, "total", total, "err", err)
		return result, err
	}

	r.saveManifest(ctx)

	fmt.Fprintf(r.progress, "Reembedding complete. Processed %d records in %v (%.1f records/sec)\n",
		processed, result.Elapsed.Round(time.Second), float64(processed)/result.Elapsed.Seconds())

	return result, nil
}

func (r *Reembedder) saveManifest(ctx context.Context) {
	ms, ok := r.store.(storage.ManifestStore)
	if !ok || r.config.EmbeddingModel == "" || r.processor.Dimensions() == 0 {
		return
	}
	err := ms.SaveManifest(ctx, &core.Manifest{
		EmbeddingModel: r.config.EmbeddingModel,
		Dimensions:     r.processor.Dimensions(),
		UpdatedAt:      time.Now().UTC(),
	})
	if err != nil {
		r.logger.Warn("error saving manifest", "err", err)
	}
}
