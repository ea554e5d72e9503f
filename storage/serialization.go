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

package storage

import (
	"errors"
	"fmt"
	"time"

	"github.com/mus-format/mus-go"
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/chatrecall/core"
)

// decodeError wraps a codec failure for field. Input that ends early is
// additionally marked as truncated.
func decodeError(field string, err error) error {
	if errors.Is(err, mus.ErrTooSmallByteSlice) {
		return fmt.Errorf("%w: %w: %s: %w", ErrSerializationFailed, ErrTruncatedData, field, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrSerializationFailed, field, err)
}

// vectorSer encodes a length-prefixed slice of fixed-width floats.
var vectorSer = ord.NewSliceSer[float32](raw.Float32)

// MarshalVector serializes a vector to bytes.
func MarshalVector(vector []float32) []byte {
	buf := make([]byte, vectorSer.Size(vector))
	vectorSer.Marshal(vector, buf)
	return buf
}

// UnmarshalVector deserializes a vector from bytes.
func UnmarshalVector(data []byte) ([]float32, error) {
	vector, _, err := vectorSer.Unmarshal(data)
	if err != nil {
		return nil, decodeError("vector", err)
	}
	return vector, nil
}

func indexedVectorSize(v *core.IndexedVector) int {
	return ord.String.Size(v.ID) +
		vectorSer.Size(v.Vector) +
		ord.String.Size(v.Body) +
		ord.String.Size(v.Metadata.Title) +
		ord.String.Size(v.Metadata.CreatedAt) +
		varint.Int.Size(v.Metadata.MessageCount) +
		ord.Bool.Size(v.Metadata.Truncated) +
		varint.Uint64.Size(v.Seq)
}

// MarshalIndexedVector serializes a record to bytes.
func MarshalIndexedVector(v *core.IndexedVector) []byte {
	buf := make([]byte, indexedVectorSize(v))
	n := ord.String.Marshal(v.ID, buf)
	n += vectorSer.Marshal(v.Vector, buf[n:])
	n += ord.String.Marshal(v.Body, buf[n:])
	n += ord.String.Marshal(v.Metadata.Title, buf[n:])
	n += ord.String.Marshal(v.Metadata.CreatedAt, buf[n:])
	n += varint.Int.Marshal(v.Metadata.MessageCount, buf[n:])
	n += ord.Bool.Marshal(v.Metadata.Truncated, buf[n:])
	varint.Uint64.Marshal(v.Seq, buf[n:])
	return buf
}

// UnmarshalIndexedVector deserializes a record from bytes.
func UnmarshalIndexedVector(data []byte) (*core.IndexedVector, error) {
	var (
		v   core.IndexedVector
		n   int
		m   int
		err error
	)
	fail := func(field string, err error) (*core.IndexedVector, error) {
		return nil, decodeError(field, err)
	}

	if v.ID, m, err = ord.String.Unmarshal(data); err != nil {
		return fail("id", err)
	}
	n += m
	if v.Vector, m, err = vectorSer.Unmarshal(data[n:]); err != nil {
		return fail("vector", err)
	}
	n += m
	if v.Body, m, err = ord.String.Unmarshal(data[n:]); err != nil {
		return fail("body", err)
	}
	n += m
	if v.Metadata.Title, m, err = ord.String.Unmarshal(data[n:]); err != nil {
		return fail("title", err)
	}
	n += m
	if v.Metadata.CreatedAt, m, err = ord.String.Unmarshal(data[n:]); err != nil {
		return fail("created_at", err)
	}
	n += m
	if v.Metadata.MessageCount, m, err = varint.Int.Unmarshal(data[n:]); err != nil {
		return fail("message_count", err)
	}
	n += m
	if v.Metadata.Truncated, m, err = ord.Bool.Unmarshal(data[n:]); err != nil {
		return fail("truncated", err)
	}
	n += m
	if v.Seq, _, err = varint.Uint64.Unmarshal(data[n:]); err != nil {
		return fail("seq", err)
	}
	return &v, nil
}

// MarshalManifest serializes a manifest to bytes.
func MarshalManifest(manifest *core.Manifest) []byte {
	micros := manifest.UpdatedAt.UnixMicro()
	buf := make([]byte, ord.String.Size(manifest.EmbeddingModel)+
		varint.Int.Size(manifest.Dimensions)+
		varint.Int64.Size(micros))
	n := ord.String.Marshal(manifest.EmbeddingModel, buf)
	n += varint.Int.Marshal(manifest.Dimensions, buf[n:])
	varint.Int64.Marshal(micros, buf[n:])
	return buf
}

// UnmarshalManifest deserializes a manifest from bytes.
func UnmarshalManifest(data []byte) (*core.Manifest, error) {
	model, n, err := ord.String.Unmarshal(data)
	if err != nil {
		return nil, decodeError("manifest model", err)
	}
	dims, m, err := varint.Int.Unmarshal(data[n:])
	if err != nil {
		return nil, decodeError("manifest dimensions", err)
	}
	micros, _, err := varint.Int64.Unmarshal(data[n+m:])
	if err != nil {
		return nil, decodeError("manifest timestamp", err)
	}
	return &core.Manifest{
		EmbeddingModel: model,
		Dimensions:     dims,
		UpdatedAt:      time.UnixMicro(micros).UTC(),
	}, nil
}
