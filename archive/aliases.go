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

import "github.com/tidwall/gjson"

// Aliases lists the accepted key names for each field, highest priority first.
type Aliases struct {
	ID        []string
	Title     []string
	CreatedAt []string
	Messages  []string
	Sender    []string
	Content   []string
	Text      []string
}

// DefaultAliases returns the key names seen across known export formats.
func DefaultAliases() Aliases {
	return Aliases{
		ID:        []string{"uuid", "id"},
		Title:     []string{"name", "title"},
		CreatedAt: []string{"created_at", "created-at", "createdAt", "create_time"},
		Messages:  []string{"chat_messages", "messages"},
		Sender:    []string{"sender", "role"},
		Content:   []string{"content"},
		Text:      []string{"text"},
	}
}

// merge fills empty alias lists from defaults.
func (a Aliases) merge(defaults Aliases) Aliases {
	pick := func(v, d []string) []string {
		if len(v) == 0 {
			return d
		}
		return v
	}
	return Aliases{
		ID:        pick(a.ID, defaults.ID),
		Title:     pick(a.Title, defaults.Title),
		CreatedAt: pick(a.CreatedAt, defaults.CreatedAt),
		Messages:  pick(a.Messages, defaults.Messages),
		Sender:    pick(a.Sender, defaults.Sender),
		Content:   pick(a.Content, defaults.Content),
		Text:      pick(a.Text, defaults.Text),
	}
}

// lookup returns the first alias present on obj with a non-null value.
func lookup(obj gjson.Result, keys []string) gjson.Result {
	if !obj.IsObject() {
		return gjson.Result{}
	}
	for _, key := range keys {
		v := obj.Get(gjson.Escape(key))
		if v.Exists() && v.Type != gjson.Null {
			return v
		}
	}
	return gjson.Result{}
}

// lookupString is lookup for scalar fields; empty strings fall through to
// the next alias.
func lookupString(obj gjson.Result, keys []string) string {
	if !obj.IsObject() {
		return ""
	}
	for _, key := range keys {
		v := obj.Get(gjson.Escape(key))
		if !v.Exists() || v.Type == gjson.Null || v.IsObject() || v.IsArray() {
			continue
		}
		if s := v.String(); s != "" {
			return s
		}
	}
	return ""
}
