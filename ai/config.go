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

package ai

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultEmbeddingHost is the hosted OpenAI API.
	DefaultEmbeddingHost = "https://api.openai.com/v1"

	// DefaultEmbeddingModel is the embedding model used when none is set.
	DefaultEmbeddingModel = "text-embedding-3-small"

	// DefaultBatchSize is the number of texts sent per embedding request.
	DefaultBatchSize = 64

	// DefaultRetryDelay is the base delay between retries.
	DefaultRetryDelay = time.Second

	openAIHostMarker = "api.openai.com"
)

// Config holds configuration for the embedding service.
type Config struct {
	// EmbeddingHost is the base URL of an OpenAI-compatible API.
	// Example: "http://localhost:11434/v1" for a local server
	EmbeddingHost string

	// EmbeddingModel is the model identifier.
	// Example: "text-embedding-3-small", "nomic-embed-text"
	EmbeddingModel string

	// APIKey authenticates against the service. Required for the hosted
	// OpenAI API, optional for local servers.
	APIKey string

	// Dimensions requests shortened embeddings from models that support it.
	// Zero uses the model's native size.
	Dimensions int

	// BatchSize is the maximum number of texts per request.
	BatchSize int

	// RequestsPerSecond throttles requests client-side. Zero disables throttling.
	RequestsPerSecond float64

	// Burst is the number of requests allowed above the steady rate.
	Burst int

	// MaxAttempts bounds attempts per request. 1 disables retries.
	MaxAttempts int

	// RetryDelay is the base delay between attempts; it doubles each retry.
	RetryDelay time.Duration
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithEmbeddingHost sets the embedding service host URL.
func WithEmbeddingHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
	}
}

// WithEmbeddingModel sets the embedding model identifier.
func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithDimensions requests embeddings of the given size.
func WithDimensions(n int) ConfigOption {
	return func(c *Config) {
		c.Dimensions = n
	}
}

// WithBatchSize sets the maximum number of texts per request.
func WithBatchSize(n int) ConfigOption {
	return func(c *Config) {
		c.BatchSize = n
	}
}

// WithRateLimit throttles requests to rps per second with the given burst.
func WithRateLimit(rps float64, burst int) ConfigOption {
	return func(c *Config) {
		c.RequestsPerSecond = rps
		c.Burst = burst
	}
}

// WithRetry retries retryable failures up to maxAttempts attempts in total.
func WithRetry(maxAttempts int, delay time.Duration) ConfigOption {
	return func(c *Config) {
		c.MaxAttempts = maxAttempts
		c.RetryDelay = delay
	}
}

// DefaultConfig returns a Config targeting the hosted OpenAI API.
// Retries and throttling are off by default.
func DefaultConfig() *Config {
	return &Config{
		EmbeddingHost:  DefaultEmbeddingHost,
		EmbeddingModel: DefaultEmbeddingModel,
		BatchSize:      DefaultBatchSize,
		Burst:          1,
		MaxAttempts:    1,
		RetryDelay:     DefaultRetryDelay,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithEmbeddingHost("http://localhost:11434/v1"),
//	    WithEmbeddingModel("nomic-embed-text"),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// RequiresAPIKey reports whether the configured host needs an API key.
func (c *Config) RequiresAPIKey() bool {
	return strings.Contains(c.EmbeddingHost, openAIHostMarker)
}

// Normalize ensures the configuration is in a canonical form.
// It adds the /v1 suffix to the host if missing, which is required
// by most OpenAI-compatible APIs (Ollama, LocalAI, vLLM, etc).
func (c *Config) Normalize() {
	if c.EmbeddingHost != "" && !strings.HasSuffix(c.EmbeddingHost, "/v1") {
		c.EmbeddingHost = strings.TrimSuffix(c.EmbeddingHost, "/") + "/v1"
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 1
	}
	if c.Burst <= 0 {
		c.Burst = 1
	}
}

// Validate checks that the configuration is valid and complete.
// It normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	if c.EmbeddingHost == "" {
		return fmt.Errorf("%w: EmbeddingHost is required", ErrConfiguration)
	}
	if c.EmbeddingModel == "" {
		return fmt.Errorf("%w: EmbeddingModel is required", ErrConfiguration)
	}
	if c.RequiresAPIKey() && c.APIKey == "" {
		return fmt.Errorf("%w: an API key is required for %s", ErrConfiguration, c.EmbeddingHost)
	}
	if c.Dimensions < 0 {
		return fmt.Errorf("%w: Dimensions must not be negative", ErrConfiguration)
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("%w: RequestsPerSecond must not be negative", ErrConfiguration)
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("%w: RetryDelay must not be negative", ErrConfiguration)
	}
	return nil
}
