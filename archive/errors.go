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

import "errors"

var (
	// ErrInvalidJSON is returned when the archive is not valid JSON.
	ErrInvalidJSON = errors.New("archive is not valid JSON")

	// ErrUnsupportedArchive is returned when the archive is valid JSON but
	// contains neither a conversation array nor a "conversations" wrapper.
	ErrUnsupportedArchive = errors.New("unsupported archive layout")

	// ErrMalformedRecord is returned when a conversation record cannot be
	// normalized, e.g. its message list is not an array.
	ErrMalformedRecord = errors.New("malformed conversation record")

	// ErrInvalidMaxChars is returned when the truncation budget is not positive.
	ErrInvalidMaxChars = errors.New("max chars must be greater than 0")
)
