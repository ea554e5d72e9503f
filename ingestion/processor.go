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

package ingestion

import (
	"context"

	"github.com/poiesic/chatrecall/core"
)

// result is the outcome of one item. It is folded into the report as a
// single update.
type result struct {
	index   int
	outcome core.Outcome
	title   string
	skip    *core.Skip
	err     error
	dims    int
}

// item is one normalized document waiting to be embedded and stored.
type item struct {
	index int
	doc   *core.Document
}

// processor turns a chunk of documents into results, one per item, in
// chunk order. Items sharing an ID are upserted in index order.
type processor interface {
	process(ctx context.Context, chunk []item) []result
}

// chunkItems packs items into chunks of about size items. Items with the
// same document ID always land in one chunk so that, whatever the
// concurrency, the last occurrence is written last.
func chunkItems(items []item, size int) [][]item {
	if size < 1 {
		size = 1
	}
	groups := make(map[string][]item)
	var order []string
	for _, it := range items {
		id := it.doc.ID
		if _, ok := groups[id]; !ok {
			order = append(order, id)
		}
		groups[id] = append(groups[id], it)
	}

	var chunks [][]item
	var current []item
	for _, id := range order {
		group := groups[id]
		if len(current) > 0 && len(current)+len(group) > size {
			chunks = append(chunks, current)
			current = nil
		}
		current = append(current, group...)
	}
	if len(current) > 0 {
		chunks = append(chunks, current)
	}
	return chunks
}
