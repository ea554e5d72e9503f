package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/chatrecall/ai"
	"github.com/poiesic/chatrecall/core"
	"github.com/poiesic/chatrecall/storage"
)

// embeddingProcessor embeds documents and upserts them into the index store.
type embeddingProcessor struct {
	store     storage.IndexStore
	embedder  ai.Embedder
	batchSize int
	observer  Observer
	logger    *slog.Logger
}

var _ processor = (*embeddingProcessor)(nil)

// newEmbeddingProcessor creates a new embedding processor.
func newEmbeddingProcessor(store storage.IndexStore, embedder ai.Embedder, batchSize int, observer Observer, logger *slog.Logger) (*embeddingProcessor, error) {
	if store == nil {
		return nil, ErrIndexStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if logger == nil {
		logger = slog.Default()
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &embeddingProcessor{
		store:     store,
		embedder:  embedder,
		batchSize: batchSize,
		observer:  observer,
		logger:    logger.With("processor", "embeddings"),
	}, nil
}

// process embeds the chunk and stores every document that got a vector.
func (ep *embeddingProcessor) process(ctx context.Context, chunk []item) []result {
	vectors, errs := ep.embed(ctx, chunk)

	results := make([]result, len(chunk))
	for i, it := range chunk {
		res := result{index: it.index, title: it.doc.Title}
		if errs[i] != nil {
			res.outcome = core.OutcomeFailed
			res.err = fmt.Errorf("embedding: %w", errs[i])
			results[i] = res
			continue
		}

		record := &core.IndexedVector{
			ID:       it.doc.ID,
			Vector:   vectors[i],
			Body:     it.doc.Body,
			Metadata: it.doc.Metadata(),
		}
		start := time.Now()
		err := ep.store.Upsert(ctx, record)
		ep.observer.ObserveLatency(ServiceStore, time.Since(start))
		if err != nil {
			res.outcome = core.OutcomeFailed
			res.err = fmt.Errorf("storing: %w", err)
		} else {
			res.outcome = core.OutcomeSucceeded
			res.dims = len(vectors[i])
		}
		results[i] = res
	}
	return results
}

// embed returns one vector or one error per item. A batch call is tried
// first when enabled; if it fails for any reason other than the context,
// every item is retried on its own so failures stay attributable.
func (ep *embeddingProcessor) embed(ctx context.Context, chunk []item) ([][]float32, []error) {
	vectors := make([][]float32, len(chunk))
	errs := make([]error, len(chunk))

	if ep.batchSize > 1 && len(chunk) > 1 {
		texts := make([]string, len(chunk))
		for i, it := range chunk {
			texts[i] = it.doc.Body
		}
		start := time.Now()
		batch, err := ep.embedder.EmbedTexts(ctx, texts)
		ep.observer.ObserveLatency(ServiceEmbedding, time.Since(start))
		if err == nil && len(batch) == len(chunk) {
			return batch, errs
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			for i := range errs {
				errs[i] = ctxErr
			}
			return vectors, errs
		}
		if err == nil {
			err = fmt.Errorf("expected %d embeddings, got %d", len(chunk), len(batch))
		}
		ep.logger.Debug("batch embedding failed, embedding items one by one", "items", len(chunk), "err", err)
	}

	for i, it := range chunk {
		if err := ctx.Err(); err != nil {
			errs[i] = err
			continue
		}
		start := time.Now()
		vectors[i], errs[i] = ep.embedder.EmbedText(ctx, it.doc.Body)
		ep.observer.ObserveLatency(ServiceEmbedding, time.Since(start))
	}
	return vectors, errs
}
