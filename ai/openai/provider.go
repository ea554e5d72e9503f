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

package openai

import (
	"context"
	"log/slog"

	"github.com/poiesic/chatrecall/ai"
)

// Provider implements ai.Provider using an OpenAI-compatible service.
type Provider struct {
	config    *ai.Config
	embedder  *Embedder
	decorated ai.Embedder
	logger    *slog.Logger
}

// NewProvider creates a new AI provider with an OpenAI-compatible embedder.
// The config is validated and normalized before use. The embedder returned
// by Embedder is throttled and retried according to the config.
//
// Returns ai.Provider interface (not *Provider) to enforce abstraction
// and prevent coupling to OpenAI-specific implementation details.
func NewProvider(config *ai.Config) (ai.Provider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	embedder, err := newEmbedder(config)
	if err != nil {
		return nil, err
	}

	// Throttle each attempt, not each retried call.
	var decorated ai.Embedder = embedder
	decorated = ai.NewRateLimitedEmbedder(decorated, config.RequestsPerSecond, config.Burst)
	decorated = ai.NewRetryingEmbedder(decorated, config.MaxAttempts, config.RetryDelay)

	return &Provider{
		config:    config,
		embedder:  embedder,
		decorated: decorated,
		logger:    slog.Default().With("component", "openai-provider"),
	}, nil
}

// Embedder returns the text embedding service.
func (p *Provider) Embedder() ai.Embedder {
	return p.decorated
}

// ModelName returns the configured embedding model.
func (p *Provider) ModelName() string {
	return p.config.EmbeddingModel
}

// Ping checks that the service accepts the credentials and model.
func (p *Provider) Ping(ctx context.Context) error {
	return p.embedder.Ping(ctx)
}

// Close releases resources held by the provider.
// Currently a no-op as the underlying client doesn't require explicit cleanup.
func (p *Provider) Close() error {
	p.logger.Debug("closing OpenAI provider")
	return nil
}
