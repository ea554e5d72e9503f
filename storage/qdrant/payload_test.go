package qdrant

import (
	"testing"

	"github.com/poiesic/chatrecall/core"
	"github.com/poiesic/chatrecall/storage"
	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPointRoundTrip(t *testing.T) {
	record := &core.IndexedVector{
		ID:     "conv-1",
		Vector: []float32{0.6, 0.8},
		Body:   "[human]: hello",
		Metadata: core.Metadata{
			Title:        "Greeting",
			CreatedAt:    "2024-03-01T10:00:00Z",
			MessageCount: 4,
			Truncated:    true,
		},
	}

	point := toPoint(record)
	assert.Equal(t, uint64(core.IDFromContent("conv-1")), point.GetId().GetNum())
	assert.Equal(t, []float32{0.6, 0.8}, point.GetVectors().GetVector().GetDense().GetData())

	decoded, err := fromPayload(point.GetPayload(), record.Vector)
	require.NoError(t, err)
	assert.Equal(t, record, decoded)
}

func TestMetadataFromPayload_MissingTruncated(t *testing.T) {
	meta := metadataFromPayload(map[string]*qdrant.Value{
		keyTitle: qdrant.NewValueString("older point"),
	})
	assert.Equal(t, "older point", meta.Title)
	assert.False(t, meta.Truncated)
}

func TestPointID_Deterministic(t *testing.T) {
	assert.Equal(t, pointID("a").GetNum(), pointID("a").GetNum())
	assert.NotEqual(t, pointID("a").GetNum(), pointID("b").GetNum())
}

func TestFromPayload_MissingDocID(t *testing.T) {
	_, err := fromPayload(map[string]*qdrant.Value{
		keyBody: qdrant.NewValueString("orphan"),
	}, nil)
	assert.ErrorIs(t, err, storage.ErrSerializationFailed)

	_, err = toHit(nil, 0.5)
	assert.ErrorIs(t, err, storage.ErrSerializationFailed)
}

func TestToHit_ScoreToDistance(t *testing.T) {
	payload := toPoint(&core.IndexedVector{
		ID:       "x",
		Vector:   []float32{1},
		Body:     "body",
		Metadata: core.Metadata{Title: "T", MessageCount: 2},
	}).GetPayload()

	hit, err := toHit(payload, 0.75)
	require.NoError(t, err)
	assert.Equal(t, "x", hit.ID)
	assert.Equal(t, "body", hit.Body)
	assert.Equal(t, "T", hit.Metadata.Title)
	assert.Equal(t, 2, hit.Metadata.MessageCount)
	assert.InDelta(t, 0.25, hit.Distance, 1e-6)
	assert.InDelta(t, 0.75, hit.Similarity(), 1e-6)
}

func TestDenseVector(t *testing.T) {
	dense := &qdrant.VectorsOutput{
		VectorsOptions: &qdrant.VectorsOutput_Vector{
			Vector: &qdrant.VectorOutput{
				Vector: &qdrant.VectorOutput_Dense{Dense: &qdrant.DenseVector{Data: []float32{1, 2}}},
			},
		},
	}
	assert.Equal(t, []float32{1, 2}, denseVector(dense))
	assert.Nil(t, denseVector(nil))
}

func TestConfigNormalize(t *testing.T) {
	var cfg Config
	cfg.normalize()
	assert.Equal(t, DefaultConfig(), cfg)

	cfg = Config{Host: "qdrant.internal", Port: 7000, Collection: "chats"}
	cfg.normalize()
	assert.Equal(t, "qdrant.internal", cfg.Host)
	assert.Equal(t, 7000, cfg.Port)
	assert.Equal(t, "chats", cfg.Collection)
}
