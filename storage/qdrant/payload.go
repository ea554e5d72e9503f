package qdrant

import (
	"fmt"

	"github.com/poiesic/chatrecall/core"
	"github.com/poiesic/chatrecall/storage"
	"github.com/qdrant/go-client/qdrant"
)

// Payload keys.
const (
	keyDocID        = "doc_id"
	keyBody         = "body"
	keyTitle        = "title"
	keyCreatedAt    = "created_at"
	keyMessageCount = "message_count"
	keyTruncated    = "truncated"
)

// pointID maps a document ID onto a numeric point ID.
func pointID(docID string) *qdrant.PointId {
	return qdrant.NewIDNum(uint64(core.IDFromContent(docID)))
}

func toPoint(record *core.IndexedVector) *qdrant.PointStruct {
	return &qdrant.PointStruct{
		Id:      pointID(record.ID),
		Vectors: qdrant.NewVectorsDense(record.Vector),
		Payload: map[string]*qdrant.Value{
			keyDocID:        qdrant.NewValueString(record.ID),
			keyBody:         qdrant.NewValueString(record.Body),
			keyTitle:        qdrant.NewValueString(record.Metadata.Title),
			keyCreatedAt:    qdrant.NewValueString(record.Metadata.CreatedAt),
			keyMessageCount: qdrant.NewValueInt(int64(record.Metadata.MessageCount)),
			keyTruncated:    qdrant.NewValueBool(record.Metadata.Truncated),
		},
	}
}

func fromPayload(payload map[string]*qdrant.Value, vector []float32) (*core.IndexedVector, error) {
	id := payload[keyDocID].GetStringValue()
	if id == "" {
		return nil, fmt.Errorf("%w: payload has no %s", storage.ErrSerializationFailed, keyDocID)
	}
	return &core.IndexedVector{
		ID:       id,
		Vector:   vector,
		Body:     payload[keyBody].GetStringValue(),
		Metadata: metadataFromPayload(payload),
	}, nil
}

func metadataFromPayload(payload map[string]*qdrant.Value) core.Metadata {
	return core.Metadata{
		Title:        payload[keyTitle].GetStringValue(),
		CreatedAt:    payload[keyCreatedAt].GetStringValue(),
		MessageCount: int(payload[keyMessageCount].GetIntegerValue()),
		Truncated:    payload[keyTruncated].GetBoolValue(),
	}
}

// toHit converts a cosine similarity score into a hit.
func toHit(payload map[string]*qdrant.Value, score float32) (core.Hit, error) {
	id := payload[keyDocID].GetStringValue()
	if id == "" {
		return core.Hit{}, fmt.Errorf("%w: payload has no %s", storage.ErrSerializationFailed, keyDocID)
	}
	return core.Hit{
		ID:       id,
		Body:     payload[keyBody].GetStringValue(),
		Metadata: metadataFromPayload(payload),
		Distance: 1 - score,
	}, nil
}

func denseVector(vectors *qdrant.VectorsOutput) []float32 {
	v := vectors.GetVector()
	if dense := v.GetDense(); dense != nil {
		return dense.GetData()
	}
	// Servers older than 1.12 only fill the flat field.
	//lint:ignore SA1019 needed for older servers
	return v.GetData()
}
