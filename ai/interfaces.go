package ai

import "context"

// Embedder turns text into a fixed-length vector.
// Implementations must be safe for concurrent use.
type Embedder interface {
	// EmbedText returns the embedding of one text.
	// Errors are wrapped with one of the package sentinel errors.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts returns one embedding per input text, in input order.
	// A failure fails the whole batch.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Pinger is implemented by embedders that can check their service is
// reachable before a long-running operation starts.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ping checks e when it implements Pinger and succeeds otherwise.
func Ping(ctx context.Context, e Embedder) error {
	if p, ok := e.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Provider owns an embedding service and its lifecycle.
type Provider interface {
	// Embedder returns the embedding service, decorated according to the
	// provider's configuration. It is safe for concurrent use.
	Embedder() Embedder

	// ModelName identifies the embedding model. Vectors from different
	// models are not comparable.
	ModelName() string

	// Ping checks that the embedding service is reachable.
	Ping(ctx context.Context) error

	// Close releases resources held by the provider.
	Close() error
}
