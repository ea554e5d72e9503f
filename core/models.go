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
	"encoding/binary"
	"encoding/hex"
	"time"

	"github.com/go-crypt/x/blake2b"
)

type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Hex renders the ID as a fixed-width hex string.
func (id ID) Hex() string {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(id))
	return hex.EncodeToString(buf[:])
}

// Document is the canonical text form of one conversation.
type Document struct {
	ID           string
	Title        string
	CreatedAt    string // opaque, may be empty or malformed
	MessageCount int    // messages in the source conversation, not lines kept
	Body         string
	Truncated    bool
}

// Metadata is what the index keeps next to a vector.
func (d *Document) Metadata() Metadata {
	return Metadata{
		Title:        d.Title,
		CreatedAt:    d.CreatedAt,
		MessageCount: d.MessageCount,
		Truncated:    d.Truncated,
	}
}

// SkipReason explains why a conversation was not turned into a Document.
type SkipReason int

const (
	// SkipNoMessages means the conversation had no messages at all.
	SkipNoMessages SkipReason = iota + 1
	// SkipNoExtractableText means no message yielded any text.
	SkipNoExtractableText
)

func (r SkipReason) String() string {
	switch r {
	case SkipNoMessages:
		return "no messages"
	case SkipNoExtractableText:
		return "no extractable text"
	default:
		return "unknown"
	}
}

// Skip is a non-error decision to leave a conversation out of the index.
type Skip struct {
	Index  int
	ID     string
	Title  string
	Reason SkipReason
}

// Metadata accompanies every stored vector.
type Metadata struct {
	Title        string
	CreatedAt    string
	MessageCount int
	Truncated    bool // body was cut at the document size limit
}

// IndexedVector is the unit of storage in an index store.
type IndexedVector struct {
	ID       string
	Vector   []float32
	Body     string
	Metadata Metadata
	Seq      uint64 // insertion order, assigned by the store on first insert
}

// Hit is one similarity query match. Distance is cosine distance.
type Hit struct {
	ID       string
	Body     string
	Metadata Metadata
	Distance float32
}

// Similarity converts the cosine distance back to cosine similarity.
func (h *Hit) Similarity() float32 {
	return 1 - h.Distance
}

// Outcome classifies what happened to one item of an import batch.
type Outcome int

const (
	OutcomeSucceeded Outcome = iota + 1
	OutcomeSkipped
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ImportFailure describes one item that failed during import.
type ImportFailure struct {
	Index   int
	Title   string
	Message string
}

// ImportReport aggregates the outcome of one import batch.
type ImportReport struct {
	RunID     string
	Total     int
	Succeeded int
	Skipped   int
	Failed    int
	Failures  []ImportFailure
	Skips     []Skip
	Duration  time.Duration
}

// Processed returns the number of items accounted for so far.
func (r *ImportReport) Processed() int {
	return r.Succeeded + r.Skipped + r.Failed
}

// SearchResult is one ranked match returned by a search.
type SearchResult struct {
	Rank         int
	ID           string
	Title        string
	CreatedAt    string
	DisplayDate  string // first 10 characters of CreatedAt, or "N/A"
	MessageCount int
	Similarity   float32
	BodyPreview  string
	Body         string
}

// Manifest records which embedding model produced the stored vectors.
type Manifest struct {
	EmbeddingModel string
	Dimensions     int
	UpdatedAt      time.Time
}

// Stats summarizes the contents of an index store.
type Stats struct {
	Conversations int
	Messages      int
	Manifest      *Manifest
}
