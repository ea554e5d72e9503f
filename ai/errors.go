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

import "errors"

var (
	// ErrServiceUnavailable indicates a transient service or network failure.
	ErrServiceUnavailable = errors.New("embedding service unavailable")

	// ErrRateLimited indicates the service refused the request due to throttling.
	ErrRateLimited = errors.New("embedding service rate limited")

	// ErrInvalidInput indicates the service rejected the input itself.
	ErrInvalidInput = errors.New("embedding input rejected")

	// ErrConfiguration indicates bad credentials, endpoint or model settings.
	ErrConfiguration = errors.New("embedding configuration error")

	// ErrInvalidMaxAttempts is returned when maxAttempts is <= 0
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")
)

// IsRetryable reports whether err may succeed when retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrServiceUnavailable)
}

// IsFatal reports whether err will fail every request, not just this one.
func IsFatal(err error) bool {
	return errors.Is(err, ErrConfiguration)
}
