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

import (
	"fmt"
	"math"
	"strings"
)

// ValidateDocument validates a Document according to domain rules.
//
// Validation rules:
//   - ID must not be empty
//   - Body must contain non-whitespace text
//   - MessageCount must not be negative
//
// Title and CreatedAt are opaque and never validated.
func ValidateDocument(doc *Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrInvalidDocument)
	}

	if doc.ID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrEmptyID)
	}

	if strings.TrimSpace(doc.Body) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrEmptyBody)
	}

	if doc.MessageCount < 0 {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrNegativeMessageCount)
	}

	return nil
}

// ValidateIndexedVector validates a record before it is written to a store.
//
// Dimensionality is not checked against other records; mixing models in one
// store is the caller's responsibility.
func ValidateIndexedVector(v *IndexedVector) error {
	if v == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidVector)
	}

	if v.ID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidVector, ErrEmptyID)
	}

	if err := ValidateEmbedding(v.Vector); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidVector, err)
	}

	if v.Metadata.MessageCount < 0 {
		return fmt.Errorf("%w: %w", ErrInvalidVector, ErrNegativeMessageCount)
	}

	return nil
}

// ValidateEmbedding checks that a vector is non-empty and finite.
func ValidateEmbedding(vector []float32) error {
	if len(vector) == 0 {
		return ErrEmptyEmbedding
	}
	for _, f := range vector {
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return ErrNonFiniteEmbedding
		}
	}
	return nil
}
