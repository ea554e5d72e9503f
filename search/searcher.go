package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/poiesic/chatrecall/ai"
	"github.com/poiesic/chatrecall/core"
	"github.com/poiesic/chatrecall/storage"
)

// DefaultTopK is used when a search asks for zero or fewer results.
const DefaultTopK = 5

// Searcher provides semantic search over indexed conversations.
type Searcher struct {
	store    storage.IndexStore
	embedder ai.Embedder
	monitor  SearchMonitor
	logger   *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithMonitor sets the monitor used by Search and by SearchWithMonitor
// when it is given nil.
func WithMonitor(monitor SearchMonitor) Option {
	return func(s *Searcher) error {
		if monitor == nil {
			monitor = &noopMonitor{}
		}
		s.monitor = monitor
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(store storage.IndexStore, embedder ai.Embedder, opts ...Option) (*Searcher, error) {
	if store == nil {
		return nil, ErrIndexStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	s := &Searcher{
		store:    store,
		embedder: embedder,
		monitor:  &noopMonitor{},
		logger:   slog.Default(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "searcher")

	return s, nil
}

// Search returns up to topK conversations closest to query, best first.
// topK <= 0 means DefaultTopK. An empty index yields an empty slice.
func (s *Searcher) Search(ctx context.Context, query string, topK int) ([]*core.SearchResult, error) {
	return s.SearchWithMonitor(ctx, query, topK, nil)
}

// SearchWithMonitor is Search with callbacks at each stage. Any failure
// fails the whole search; partial results are never returned.
func (s *Searcher) SearchWithMonitor(ctx context.Context, query string, topK int, monitor SearchMonitor) ([]*core.SearchResult, error) {
	if monitor == nil {
		monitor = s.monitor
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	monitor.Start(query)

	if strings.TrimSpace(query) == "" {
		monitor.Fail(ErrEmptyQuery)
		return nil, ErrEmptyQuery
	}

	start := time.Now()
	embedding, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		s.logger.Error("error generating embedding for query", "err", err)
		err = fmt.Errorf("embedding query: %w", err)
		monitor.Fail(err)
		return nil, err
	}
	monitor.AfterQueryEmbedding(embedding, time.Since(start))

	start = time.Now()
	hits, err := s.store.Query(ctx, embedding, topK)
	if err != nil {
		s.logger.Error("error querying index", "err", err)
		err = fmt.Errorf("querying index: %w", err)
		monitor.Fail(err)
		return nil, err
	}
	monitor.AfterIndexQuery(hits, time.Since(start))

	results := make([]*core.SearchResult, len(hits))
	for i := range hits {
		results[i] = toResult(i+1, &hits[i])
	}
	s.logger.Debug("search complete", "results", len(results), "top_k", topK)

	monitor.Finish(results)
	return results, nil
}

// Show returns the full stored document with the given ID.
func (s *Searcher) Show(ctx context.Context, id string) (*core.Document, error) {
	record, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &core.Document{
		ID:           record.ID,
		Title:        record.Metadata.Title,
		CreatedAt:    record.Metadata.CreatedAt,
		MessageCount: record.Metadata.MessageCount,
		Body:         record.Body,
		Truncated:    record.Metadata.Truncated,
	}, nil
}

func toResult(rank int, hit *core.Hit) *core.SearchResult {
	return &core.SearchResult{
		Rank:         rank,
		ID:           hit.ID,
		Title:        hit.Metadata.Title,
		CreatedAt:    hit.Metadata.CreatedAt,
		DisplayDate:  displayDate(hit.Metadata.CreatedAt),
		MessageCount: hit.Metadata.MessageCount,
		Similarity:   hit.Similarity(),
		BodyPreview:  preview(hit.Body),
		Body:         hit.Body,
	}
}
