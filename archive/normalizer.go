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

package archive

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/poiesic/chatrecall/core"
	"github.com/tidwall/gjson"
)

const (
	// DefaultMaxChars is the body budget in characters. Embedding services
	// reject oversized inputs, so bodies are cut before they are embedded.
	DefaultMaxChars = 5000

	// DefaultTruncationMarker is appended to truncated bodies.
	DefaultTruncationMarker = "\n...(truncated)"

	// DefaultTitle is used for conversations without a title.
	DefaultTitle = "(untitled)"

	// DefaultSender is used for messages without a sender.
	DefaultSender = "unknown"

	// fallbackIDPrefix prefixes the positional ID of records without one.
	fallbackIDPrefix = "unknown_"

	textContentType = "text"
)

// Normalizer converts raw conversations into documents.
// A Normalizer is immutable after construction and safe for concurrent use.
type Normalizer struct {
	maxChars     int
	marker       string
	defaultTitle string
	aliases      Aliases
}

// Option configures a Normalizer.
type Option func(*Normalizer) error

// WithMaxChars sets the body budget in characters.
// Default is DefaultMaxChars.
func WithMaxChars(n int) Option {
	return func(nz *Normalizer) error {
		if n <= 0 {
			return ErrInvalidMaxChars
		}
		nz.maxChars = n
		return nil
	}
}

// WithTruncationMarker sets the marker appended to truncated bodies.
func WithTruncationMarker(marker string) Option {
	return func(nz *Normalizer) error {
		nz.marker = marker
		return nil
	}
}

// WithDefaultTitle sets the title used when a record has none.
func WithDefaultTitle(title string) Option {
	return func(nz *Normalizer) error {
		nz.defaultTitle = title
		return nil
	}
}

// WithAliases overrides field aliases. Empty lists keep the defaults.
func WithAliases(aliases Aliases) Option {
	return func(nz *Normalizer) error {
		nz.aliases = aliases.merge(DefaultAliases())
		return nil
	}
}

// NewNormalizer creates a normalizer with the given options.
func NewNormalizer(opts ...Option) (*Normalizer, error) {
	nz := &Normalizer{
		maxChars:     DefaultMaxChars,
		marker:       DefaultTruncationMarker,
		defaultTitle: DefaultTitle,
		aliases:      DefaultAliases(),
	}
	for _, opt := range opts {
		if err := opt(nz); err != nil {
			return nil, err
		}
	}
	return nz, nil
}

// MaxChars returns the configured body budget.
func (nz *Normalizer) MaxChars() int {
	return nz.maxChars
}

// Normalized is the outcome of normalizing one record.
// Exactly one of Document and Skip is set.
type Normalized struct {
	Document *core.Document
	Skip     *core.Skip
}

// ID resolves the record's identifier, falling back to "unknown_<index>".
func (nz *Normalizer) ID(raw RawConversation, index int) string {
	if id := lookupString(raw.record, nz.aliases.ID); id != "" {
		return id
	}
	return fallbackIDPrefix + strconv.Itoa(index)
}

// Title resolves the record's title, falling back to the default title.
func (nz *Normalizer) Title(raw RawConversation) string {
	if title := lookupString(raw.record, nz.aliases.Title); title != "" {
		return title
	}
	return nz.defaultTitle
}

// MessageCount returns the number of messages in the record, or 0 when the
// message list is missing or not an array.
func (nz *Normalizer) MessageCount(raw RawConversation) int {
	messages := lookup(raw.record, nz.aliases.Messages)
	if !messages.IsArray() {
		return 0
	}
	return len(messages.Array())
}

// Normalize converts one raw conversation into a Document or a Skip.
// An error is returned only for malformed records; it never has side effects.
func (nz *Normalizer) Normalize(raw RawConversation, index int) (Normalized, error) {
	id := nz.ID(raw, index)
	title := nz.Title(raw)

	messages := lookup(raw.record, nz.aliases.Messages)
	if !messages.Exists() {
		return skip(index, id, title, core.SkipNoMessages), nil
	}
	if !messages.IsArray() {
		return Normalized{}, fmt.Errorf("%w: messages is %s, not an array", ErrMalformedRecord, messages.Type)
	}
	items := messages.Array()
	if len(items) == 0 {
		return skip(index, id, title, core.SkipNoMessages), nil
	}

	lines := make([]string, 0, len(items))
	for i, msg := range items {
		text, err := nz.messageText(msg)
		if err != nil {
			return Normalized{}, fmt.Errorf("message %d: %w", i, err)
		}
		if text == "" {
			continue
		}
		sender := lookupString(msg, nz.aliases.Sender)
		if sender == "" {
			sender = DefaultSender
		}
		lines = append(lines, "["+sender+"]: "+text)
	}

	body := strings.Join(lines, "\n")
	if strings.TrimSpace(body) == "" {
		return skip(index, id, title, core.SkipNoExtractableText), nil
	}

	body, truncated := truncate(body, nz.maxChars, nz.marker)

	return Normalized{
		Document: &core.Document{
			ID:           id,
			Title:        title,
			CreatedAt:    lookupString(raw.record, nz.aliases.CreatedAt),
			MessageCount: len(items),
			Body:         body,
			Truncated:    truncated,
		},
	}, nil
}

// messageText extracts the combined text of one message.
func (nz *Normalizer) messageText(msg gjson.Result) (string, error) {
	if !msg.IsObject() {
		return "", fmt.Errorf("%w: message is %s, not an object", ErrMalformedRecord, msg.Type)
	}

	content := lookup(msg, nz.aliases.Content)
	switch {
	case content.IsArray():
		var parts []string
		for _, item := range content.Array() {
			if item.Get("type").String() != textContentType {
				continue
			}
			if text := strings.TrimSpace(lookupString(item, nz.aliases.Text)); text != "" {
				parts = append(parts, text)
			}
		}
		return strings.Join(parts, " "), nil
	case content.Type == gjson.String:
		return strings.TrimSpace(content.String()), nil
	case !content.Exists():
		// Older exports carry the text directly on the message.
		return strings.TrimSpace(lookupString(msg, nz.aliases.Text)), nil
	default:
		return "", fmt.Errorf("%w: content is %s", ErrMalformedRecord, content.Type)
	}
}

func skip(index int, id, title string, reason core.SkipReason) Normalized {
	return Normalized{
		Skip: &core.Skip{
			Index:  index,
			ID:     id,
			Title:  title,
			Reason: reason,
		},
	}
}

// truncate keeps the first maxChars characters of s and appends marker when
// anything was cut.
func truncate(s string, maxChars int, marker string) (string, bool) {
	if utf8.RuneCountInString(s) <= maxChars {
		return s, false
	}
	cut, n := 0, 0
	for i := range s {
		if n == maxChars {
			cut = i
			break
		}
		n++
	}
	return s[:cut] + marker, true
}
