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
	"context"
	"log/slog"
	"time"
)

// RetryIf retries an operation with exponential backoff until it succeeds,
// maxAttempts is reached, or retryable reports false for a failure.
// baseDelay doubles after each retry. The error from the last attempt is
// returned.
func RetryIf(ctx context.Context, operation func() error, maxAttempts int, baseDelay time.Duration, retryable func(error) bool) error {
	if maxAttempts <= 0 {
		return ErrInvalidMaxAttempts
	}

	var lastErr error
	delay := baseDelay
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = operation()
		if lastErr == nil {
			if attempt > 1 {
				slog.Debug("operation succeeded after retry", "attempt", attempt)
			}
			return nil
		}
		if attempt == maxAttempts || !retryable(lastErr) {
			break
		}

		slog.Debug("operation failed, will retry", "attempt", attempt, "maxAttempts", maxAttempts, "delay", delay, "err", lastErr)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
	}

	return lastErr
}

// RetryingEmbedder retries retryable embedding failures.
type RetryingEmbedder struct {
	inner       Embedder
	maxAttempts int
	baseDelay   time.Duration
}

// NewRetryingEmbedder wraps inner so that rate-limit and availability
// failures are retried up to maxAttempts attempts in total. With
// maxAttempts <= 1 inner is returned unchanged.
func NewRetryingEmbedder(inner Embedder, maxAttempts int, baseDelay time.Duration) Embedder {
	if maxAttempts <= 1 {
		return inner
	}
	return &RetryingEmbedder{inner: inner, maxAttempts: maxAttempts, baseDelay: baseDelay}
}

func (r *RetryingEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	err := RetryIf(ctx, func() error {
		var err error
		vec, err = r.inner.EmbedText(ctx, text)
		return err
	}, r.maxAttempts, r.baseDelay, IsRetryable)
	return vec, err
}

func (r *RetryingEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	var vecs [][]float32
	err := RetryIf(ctx, func() error {
		var err error
		vecs, err = r.inner.EmbedTexts(ctx, texts)
		return err
	}, r.maxAttempts, r.baseDelay, IsRetryable)
	return vecs, err
}

// Ping is not retried.
func (r *RetryingEmbedder) Ping(ctx context.Context) error {
	return Ping(ctx, r.inner)
}
