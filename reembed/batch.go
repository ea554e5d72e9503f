package reembed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/poiesic/chatrecall/ai"
	"github.com/poiesic/chatrecall/core"
	"github.com/poiesic/chatrecall/storage"
)

// BatchProcessor re-embeds batches of stored records.
type BatchProcessor struct {
	store          storage.IndexStore
	embedder       ai.Embedder
	maxRetries     int
	retryBaseDelay time.Duration
	dims           int
}

// NewBatchProcessor creates a new batch processor.
// maxRetries: maximum number of attempts for each embedding call
// retryBaseDelay: base delay for exponential backoff
func NewBatchProcessor(store storage.IndexStore, embedder ai.Embedder, maxRetries int, retryBaseDelay time.Duration) *BatchProcessor {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &BatchProcessor{
		store:          store,
		embedder:       embedder,
		maxRetries:     maxRetries,
		retryBaseDelay: retryBaseDelay,
	}
}

// retryable reports whether another attempt could succeed. Configuration
// and input errors will not change between attempts.
func retryable(err error) bool {
	return !ai.IsFatal(err) && !errors.Is(err, ai.ErrInvalidInput)
}

// Process embeds the stored bodies again and upserts each record with the
// new vector. Metadata and bodies are left untouched.
func (bp *BatchProcessor) Process(ctx context.Context, records []*core.IndexedVector) error {
	if len(records) == 0 {
		return nil
	}

	texts := make([]string, len(records))
	for i, record := range records {
		texts[i] = record.Body
	}

	var embeddings [][]float32
	err := ai.RetryIf(ctx, func() error {
		var err error
		embeddings, err = bp.embedder.EmbedTexts(ctx, texts)
		return err
	}, bp.maxRetries, bp.retryBaseDelay, retryable)
	if err != nil {
		return fmt.Errorf("failed to generate embeddings after %d attempts: %w", bp.maxRetries, err)
	}

	if len(embeddings) != len(records) {
		return fmt.Errorf("embedding count mismatch: expected %d, got %d", len(records), len(embeddings))
	}

	for i, record := range records {
		updated := *record
		updated.Vector = embeddings[i]
		if err := bp.store.Upsert(ctx, &updated); err != nil {
			return fmt.Errorf("failed to update record %s: %w", record.ID, err)
		}
		bp.dims = len(embeddings[i])
	}
	return nil
}

// Dimensions returns the size of the last vector written, or 0.
func (bp *BatchProcessor) Dimensions() int {
	return bp.dims
}
