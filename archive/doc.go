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

// Package archive reads exported chat-conversation archives and turns each
// raw conversation into a canonical core.Document.
//
// # Archive format
//
// An archive is either a JSON array of conversation objects or an object that
// wraps that array under "conversations". Records are kept as raw JSON and
// only inspected through alias lists, so exports from different tools (and
// different versions of the same tool) can be read without a fixed schema:
//
//	[
//	  {
//	    "uuid": "28d5...",
//	    "name": "Python questions",
//	    "created_at": "2025-01-02T03:04:05Z",
//	    "chat_messages": [
//	      {"sender": "human", "content": [{"type": "text", "text": "I love Python"}]}
//	    ]
//	  }
//	]
//
// # Normalization
//
// Normalizer.Normalize is pure. For each message only content items of type
// "text" are kept; each message becomes one "[sender]: text" line and the
// lines are joined with newlines. Conversations without messages or without
// any text are reported as core.Skip values rather than errors. Bodies longer
// than the character budget are cut at the head and end with a marker.
package archive
