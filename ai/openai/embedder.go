package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"

	"github.com/poiesic/chatrecall/ai"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// pingText is embedded by Ping to verify credentials and model.
const pingText = "ping"

// statusCodePattern finds the HTTP status in langchaingo's error text.
var statusCodePattern = regexp.MustCompile(`status code: (\d{3})`)

// Embedder implements ai.Embedder using OpenAI-compatible embedding APIs.
type Embedder struct {
	embedder embeddings.Embedder
	model    string
	logger   *slog.Logger
}

// newEmbedder is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newEmbedder(config *ai.Config) (*Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	// Local OpenAI-compatible servers ignore the token but the client wants one.
	token := config.APIKey
	if token == "" {
		token = "none"
	}

	opts := []openai.Option{
		openai.WithBaseURL(config.EmbeddingHost),
		openai.WithToken(token),
		openai.WithEmbeddingModel(config.EmbeddingModel),
	}
	if config.Dimensions > 0 {
		opts = append(opts, openai.WithEmbeddingDimensions(config.Dimensions))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, classify(err)
	}

	embedder, err := embeddings.NewEmbedder(client,
		embeddings.WithStripNewLines(true),
		embeddings.WithBatchSize(config.BatchSize),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ai.ErrConfiguration, err)
	}

	return &Embedder{
		embedder: embedder,
		model:    config.EmbeddingModel,
		logger:   slog.Default().With("component", "openai-embedder", "model", config.EmbeddingModel),
	}, nil
}

// NewEmbedder creates a new embedder using the provided configuration.
// The returned embedder is not decorated with retries or throttling.
//
// Returns ai.Embedder interface to enforce abstraction.
func NewEmbedder(config *ai.Config) (ai.Embedder, error) {
	return newEmbedder(config)
}

// EmbedText generates a vector embedding for a single text string.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	e.logger.Debug("generating embedding for single text", "length", len(text))

	vectors, err := e.embedder.EmbedDocuments(ctx, []string{text})
	if err != nil {
		err = contextOr(ctx, err)
		e.logger.Debug("failed to generate embedding", "err", err)
		return nil, err
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("%w: empty embedding response", ai.ErrServiceUnavailable)
	}
	return vectors[0], nil
}

// EmbedTexts generates vector embeddings for multiple text strings,
// split into requests of at most the configured batch size.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	e.logger.Debug("generating embeddings for texts", "count", len(texts))

	vectors, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		err = contextOr(ctx, err)
		e.logger.Debug("failed to generate embeddings", "count", len(texts), "err", err)
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d", ai.ErrServiceUnavailable, len(texts), len(vectors))
	}
	return vectors, nil
}

// Ping embeds a short probe text.
func (e *Embedder) Ping(ctx context.Context) error {
	_, err := e.EmbedText(ctx, pingText)
	return err
}

// contextOr reports the context's error when the request failed because the
// context ended; the client flattens those into plain strings.
func contextOr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("embedding request: %w", ctxErr)
	}
	return classify(err)
}

// classify maps a client error onto the ai error taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, openai.ErrMissingToken) {
		return fmt.Errorf("%w: %w", ai.ErrConfiguration, err)
	}

	if m := statusCodePattern.FindStringSubmatch(err.Error()); m != nil {
		code, _ := strconv.Atoi(m[1])
		switch {
		case code == http.StatusTooManyRequests:
			return fmt.Errorf("%w: %w", ai.ErrRateLimited, err)
		case code == http.StatusUnauthorized, code == http.StatusForbidden:
			return fmt.Errorf("%w: %w", ai.ErrConfiguration, err)
		case code >= http.StatusInternalServerError:
			return fmt.Errorf("%w: %w", ai.ErrServiceUnavailable, err)
		case code >= http.StatusBadRequest:
			return fmt.Errorf("%w: %w", ai.ErrInvalidInput, err)
		}
	}

	// Network failures, timeouts and malformed or empty responses.
	return fmt.Errorf("%w: %w", ai.ErrServiceUnavailable, err)
}
