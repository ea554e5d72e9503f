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
	"io"
	"os"

	"github.com/tidwall/gjson"
)

// wrapperKey holds the conversation array in wrapped archives.
const wrapperKey = "conversations"

// RawConversation is one conversation record as it appears in an export.
// It is read-only; fields are resolved through alias lists at normalization time.
type RawConversation struct {
	record gjson.Result
}

// NewRawConversation wraps a single JSON conversation record.
func NewRawConversation(json string) RawConversation {
	return RawConversation{record: gjson.Parse(json)}
}

// JSON returns the raw JSON of the record.
func (r RawConversation) JSON() string {
	return r.record.Raw
}

// Decode parses an archive held in memory.
func Decode(data []byte) ([]RawConversation, error) {
	if !gjson.ValidBytes(data) {
		return nil, ErrInvalidJSON
	}

	root := gjson.ParseBytes(data)
	list := root
	if root.IsObject() {
		list = root.Get(wrapperKey)
	}
	if !list.IsArray() {
		return nil, ErrUnsupportedArchive
	}

	items := list.Array()
	raws := make([]RawConversation, len(items))
	for i, item := range items {
		raws[i] = RawConversation{record: item}
	}
	return raws, nil
}

// Read parses an archive from a reader.
func Read(r io.Reader) ([]RawConversation, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive: %w", err)
	}
	return Decode(data)
}

// Load parses the archive file at path.
func Load(path string) ([]RawConversation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive: %w", err)
	}
	raws, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return raws, nil
}
