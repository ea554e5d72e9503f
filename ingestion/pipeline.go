package ingestion

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/chatrecall/ai"
	"github.com/poiesic/chatrecall/archive"
	"github.com/poiesic/chatrecall/core"
	"github.com/poiesic/chatrecall/storage"
)

const (
	// FailureTitleChars bounds the title kept in an ImportFailure.
	FailureTitleChars = 30
	// FailureMessageChars bounds the error message kept in an ImportFailure.
	FailureMessageChars = 150

	logIDChars = 20
)

// Importer orchestrates normalization, embedding and storage of raw
// conversations.
type Importer struct {
	store         storage.IndexStore
	embedder      ai.Embedder
	normalizer    *archive.Normalizer
	pool          *ants.Pool
	concurrency   int
	batchSize     int
	progress      ProgressFunc
	observer      Observer
	model         string
	embeddingProc processor
	logger        *slog.Logger
}

// Option configures an Importer.
type Option func(*Importer) error

// WithNormalizer replaces the default normalizer.
func WithNormalizer(nz *archive.Normalizer) Option {
	return func(imp *Importer) error {
		if nz == nil {
			return ErrNormalizerRequired
		}
		imp.normalizer = nz
		return nil
	}
}

// WithConcurrency sets how many chunks are embedded at once.
// Default is 1, which processes items in order on the calling goroutine.
func WithConcurrency(n int) Option {
	return func(imp *Importer) error {
		if n < 1 {
			n = 1
		}
		if imp.pool != nil {
			imp.pool.Release()
			imp.pool = nil
		}
		imp.concurrency = n
		if n == 1 {
			return nil
		}
		pool, err := ants.NewPool(n)
		if err != nil {
			return err
		}
		imp.pool = pool
		return nil
	}
}

// WithBatchSize sets how many documents are embedded per EmbedTexts call.
// Default is 1, which embeds every document with its own request.
func WithBatchSize(n int) Option {
	return func(imp *Importer) error {
		if n < 1 {
			n = 1
		}
		imp.batchSize = n
		return nil
	}
}

// WithProgress registers a progress callback. It runs while the report is
// locked and should return quickly.
func WithProgress(fn ProgressFunc) Option {
	return func(imp *Importer) error {
		imp.progress = fn
		return nil
	}
}

// WithObserver registers an observer for import telemetry.
func WithObserver(observer Observer) Option {
	return func(imp *Importer) error {
		if observer == nil {
			observer = nopObserver{}
		}
		imp.observer = observer
		return nil
	}
}

// WithEmbeddingModel names the model behind the embedder. When the store
// keeps a manifest, a mismatch with the stored model is logged and the
// manifest is updated after a batch that stored anything.
func WithEmbeddingModel(model string) Option {
	return func(imp *Importer) error {
		imp.model = model
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(imp *Importer) error {
		if logger == nil {
			logger = slog.Default()
		}
		imp.logger = logger
		return nil
	}
}

// NewImporter creates an importer that writes to store using embedder.
func NewImporter(store storage.IndexStore, embedder ai.Embedder, opts ...Option) (*Importer, error) {
	if store == nil {
		return nil, ErrIndexStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	normalizer, err := archive.NewNormalizer()
	if err != nil {
		return nil, err
	}

	imp := &Importer{
		store:       store,
		embedder:    embedder,
		normalizer:  normalizer,
		concurrency: 1,
		batchSize:   1,
		observer:    nopObserver{},
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		if optErr := opt(imp); optErr != nil {
			imp.Release()
			return nil, optErr
		}
	}
	imp.logger = imp.logger.With("component", "importer")

	embeddingProc, err := newEmbeddingProcessor(store, embedder, imp.batchSize, imp.observer, imp.logger)
	if err != nil {
		imp.Release()
		return nil, err
	}
	imp.embeddingProc = embeddingProc

	return imp, nil
}

// Release releases the worker pool. The importer should not be used after
// calling Release.
func (imp *Importer) Release() {
	if imp.pool != nil {
		imp.pool.Release()
	}
}

// ImportBatch imports raws and returns the per-batch report.
//
// Each item succeeds, is skipped or fails on its own. Cancellation or an
// expired deadline turns the remaining items into failures; items already
// stored stay stored. The error is non-nil only when preflight fails, in
// which case no item was touched.
func (imp *Importer) ImportBatch(ctx context.Context, raws []archive.RawConversation) (*core.ImportReport, error) {
	start := time.Now()
	report := &core.ImportReport{
		RunID: uuid.NewString(),
		Total: len(raws),
	}
	logger := imp.logger.With("run", report.RunID)

	if err := imp.preflight(ctx, logger); err != nil {
		return nil, err
	}
	imp.checkManifest(ctx, logger)

	logger.Info("importing conversations", "total", len(raws), "concurrency", imp.concurrency, "batch_size", imp.batchSize)
	t := &tally{report: report, progress: imp.progress, observer: imp.observer, logger: logger}

	items := make([]item, 0, len(raws))
	for i, raw := range raws {
		normalized, err := imp.normalizer.Normalize(raw, i)
		switch {
		case err != nil:
			t.fold(result{
				index:   i,
				outcome: core.OutcomeFailed,
				title:   imp.normalizer.Title(raw),
				err:     fmt.Errorf("normalizing: %w", err),
			})
		case normalized.Skip != nil:
			t.fold(result{
				index:   i,
				outcome: core.OutcomeSkipped,
				title:   normalized.Skip.Title,
				skip:    normalized.Skip,
			})
		default:
			items = append(items, item{index: i, doc: normalized.Document})
		}
	}

	chunks := chunkItems(items, imp.batchSize)
	if imp.pool == nil {
		for _, chunk := range chunks {
			imp.runChunk(ctx, chunk, t)
		}
	} else {
		var wg sync.WaitGroup
		for _, chunk := range chunks {
			wg.Add(1)
			err := imp.pool.Submit(func() {
				defer wg.Done()
				imp.runChunk(ctx, chunk, t)
			})
			if err != nil {
				wg.Done()
				logger.Debug("worker pool rejected chunk, running inline", "err", err)
				imp.runChunk(ctx, chunk, t)
			}
		}
		wg.Wait()
	}

	t.finish()
	report.Duration = time.Since(start)
	imp.saveManifest(ctx, t.dims, logger)

	logger.Info("import complete",
		"succeeded", report.Succeeded,
		"skipped", report.Skipped,
		"failed", report.Failed,
		"duration", report.Duration)
	return report, nil
}

// runChunk processes one chunk and folds its results. A panic fails every
// item of the chunk instead of escaping the batch.
func (imp *Importer) runChunk(ctx context.Context, chunk []item, t *tally) {
	defer func() {
		if r := recover(); r != nil {
			for _, it := range chunk {
				t.fold(result{
					index:   it.index,
					outcome: core.OutcomeFailed,
					title:   it.doc.Title,
					err:     fmt.Errorf("panic: %v", r),
				})
			}
		}
	}()
	results := imp.embeddingProc.process(ctx, chunk)
	for _, res := range results {
		t.fold(res)
	}
}

// preflight checks the store and the embedding service before any item is
// touched. A context that is already done is left to fail the items.
func (imp *Importer) preflight(ctx context.Context, logger *slog.Logger) error {
	if ctx.Err() != nil {
		return nil
	}
	if err := imp.store.Ping(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("%w: index store: %w", ErrPreflightFailed, err)
	}
	if err := ai.Ping(ctx, imp.embedder); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		if ai.IsFatal(err) || errors.Is(err, ai.ErrServiceUnavailable) {
			return fmt.Errorf("%w: embedding service: %w", ErrPreflightFailed, err)
		}
		logger.Warn("embedding service check failed, continuing", "err", err)
	}
	return nil
}

func (imp *Importer) checkManifest(ctx context.Context, logger *slog.Logger) {
	ms, ok := imp.store.(storage.ManifestStore)
	if !ok || imp.model == "" {
		return
	}
	manifest, err := ms.GetManifest(ctx)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		logger.Warn("error reading manifest", "err", err)
	case manifest.EmbeddingModel != imp.model:
		logger.Warn("index holds vectors from a different embedding model; run reembed",
			"stored", manifest.EmbeddingModel, "current", imp.model)
	}
}

func (imp *Importer) saveManifest(ctx context.Context, dims int, logger *slog.Logger) {
	ms, ok := imp.store.(storage.ManifestStore)
	if !ok || imp.model == "" || dims == 0 {
		return
	}
	err := ms.SaveManifest(ctx, &core.Manifest{
		EmbeddingModel: imp.model,
		Dimensions:     dims,
		UpdatedAt:      time.Now().UTC(),
	})
	if err != nil {
		logger.Warn("error saving manifest", "err", err)
	}
}

// tally folds results into the report one at a time.
type tally struct {
	mu       sync.Mutex
	report   *core.ImportReport
	progress ProgressFunc
	observer Observer
	logger   *slog.Logger
	dims     int
}

func (t *tally) fold(res result) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch res.outcome {
	case core.OutcomeSucceeded:
		t.report.Succeeded++
		if t.dims == 0 {
			t.dims = res.dims
		}
	case core.OutcomeSkipped:
		t.report.Skipped++
		t.report.Skips = append(t.report.Skips, *res.skip)
		t.logger.Debug("skipping conversation",
			"index", res.index,
			"reason", res.skip.Reason.String(),
			"id", clip(res.skip.ID, logIDChars))
	default:
		t.report.Failed++
		t.report.Failures = append(t.report.Failures, core.ImportFailure{
			Index:   res.index,
			Title:   clip(res.title, FailureTitleChars),
			Message: clip(res.err.Error(), FailureMessageChars),
		})
		t.logger.Warn("conversation failed",
			"index", res.index,
			"title", clip(res.title, FailureTitleChars),
			"err", res.err)
	}

	t.observer.ObserveItem(res.outcome)
	if t.progress != nil {
		t.progress(t.report.Processed(), t.report.Total)
	}
}

// finish orders failures and skips by item index.
func (t *tally) finish() {
	t.mu.Lock()
	defer t.mu.Unlock()

	slices.SortFunc(t.report.Failures, func(a, b core.ImportFailure) int {
		return cmp.Compare(a.Index, b.Index)
	})
	slices.SortFunc(t.report.Skips, func(a, b core.Skip) int {
		return cmp.Compare(a.Index, b.Index)
	})
	if t.report.Total == 0 && t.progress != nil {
		t.progress(0, 0)
	}
}

// clip keeps the first n characters of s.
func clip(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
