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

package core

import "errors"

// Domain validation errors
var (
	// ErrInvalidDocument indicates a Document failed validation.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrInvalidVector indicates an IndexedVector failed validation.
	ErrInvalidVector = errors.New("invalid indexed vector")

	// ErrEmptyID indicates the ID field is empty.
	ErrEmptyID = errors.New("id cannot be empty")

	// ErrEmptyBody indicates the Body field is empty or whitespace.
	ErrEmptyBody = errors.New("body cannot be empty")

	// ErrNegativeMessageCount indicates a negative MessageCount.
	ErrNegativeMessageCount = errors.New("message count cannot be negative")

	// ErrEmptyEmbedding indicates a vector with no components.
	ErrEmptyEmbedding = errors.New("embedding cannot be empty")

	// ErrNonFiniteEmbedding indicates a vector containing NaN or Inf.
	ErrNonFiniteEmbedding = errors.New("embedding contains non-finite values")
)
