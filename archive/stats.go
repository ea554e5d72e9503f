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
	"cmp"
	"slices"

	"github.com/poiesic/chatrecall/core"
)

// ConversationSize identifies a conversation by its size.
type ConversationSize struct {
	Index    int
	ID       string
	Title    string
	Messages int
}

// Summary describes an archive without importing it.
type Summary struct {
	Conversations int
	Messages      int
	Importable    int
	Truncated     int
	NoMessages    int
	NoText        int
	Malformed     int
	Largest       []ConversationSize
}

// Summarize classifies every record the way an import would and returns the
// top conversations by message count.
func (nz *Normalizer) Summarize(raws []RawConversation, top int) Summary {
	summary := Summary{Conversations: len(raws)}
	sizes := make([]ConversationSize, 0, len(raws))

	for i, raw := range raws {
		count := nz.MessageCount(raw)
		summary.Messages += count
		sizes = append(sizes, ConversationSize{
			Index:    i,
			ID:       nz.ID(raw, i),
			Title:    nz.Title(raw),
			Messages: count,
		})

		result, err := nz.Normalize(raw, i)
		switch {
		case err != nil:
			summary.Malformed++
		case result.Skip != nil && result.Skip.Reason == core.SkipNoMessages:
			summary.NoMessages++
		case result.Skip != nil:
			summary.NoText++
		default:
			summary.Importable++
			if result.Document.Truncated {
				summary.Truncated++
			}
		}
	}

	slices.SortStableFunc(sizes, func(a, b ConversationSize) int {
		return cmp.Compare(b.Messages, a.Messages)
	})
	if top < 0 {
		top = 0
	}
	if len(sizes) > top {
		sizes = sizes[:top]
	}
	summary.Largest = sizes
	return summary
}
