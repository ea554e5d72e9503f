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

// Package ai provides the embedding abstraction used by chatrecall.
//
// Importing and searching only depend on the Embedder interface. Concrete
// services live in sub-packages:
//
//   - ai/openai: OpenAI-compatible embedding APIs
//   - ai/rediscache: a Redis-backed cache in front of any Embedder
//   - ai/mock: deterministic test doubles
//
// # Errors
//
// Adapters translate service failures into four sentinel errors so callers
// can react without knowing which service is behind the interface:
//
//   - ErrServiceUnavailable: transient failure, the request may succeed later
//   - ErrRateLimited: the service is throttling requests
//   - ErrInvalidInput: the service rejected this particular input
//   - ErrConfiguration: credentials or endpoint are wrong; retrying is pointless
//
// IsRetryable and IsFatal classify an error against this taxonomy.
//
// # Decorators
//
// NewRateLimitedEmbedder and NewRetryingEmbedder wrap an Embedder with
// client-side throttling and bounded retries. Both pass Ping through to the
// wrapped embedder when it implements Pinger.
//
// # Constructor Return Types
//
// Public constructors in ai/openai return interface types. Test doubles in
// ai/mock return concrete types so tests can inspect call counts and inject
// failures.
package ai
