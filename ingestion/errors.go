package ingestion

import "errors"

var (
	// ErrIndexStoreRequired is returned when an index store is not provided.
	ErrIndexStoreRequired = errors.New("index store required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrNormalizerRequired is returned when WithNormalizer is given nil.
	ErrNormalizerRequired = errors.New("normalizer required")

	// ErrPreflightFailed is returned when the embedding service or the
	// index store is unusable before any item was processed.
	ErrPreflightFailed = errors.New("import preflight failed")
)
