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

// Package search answers natural-language queries against an index store.
//
// The Searcher embeds the query, asks the store for the nearest documents
// under cosine distance and shapes each hit into a core.SearchResult with a
// similarity score, a display date and a body preview. Results keep the
// store's order; nothing is re-ranked here.
package search
