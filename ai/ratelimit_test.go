package ai

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRateLimitedEmbedder_Disabled(t *testing.T) {
	inner := &scriptedEmbedder{}
	assert.Same(t, inner, NewRateLimitedEmbedder(inner, 0, 1))
}

func TestRateLimitedEmbedder_Throttles(t *testing.T) {
	inner := &scriptedEmbedder{}
	e := NewRateLimitedEmbedder(inner, 20, 1)

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := e.EmbedText(context.Background(), "x")
		require.NoError(t, err)
	}

	// Burst of one: the second and third calls each wait about 50ms.
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
	assert.Equal(t, 3, inner.calls)
}

func TestRateLimitedEmbedder_ContextCanceled(t *testing.T) {
	inner := &scriptedEmbedder{}
	e := NewRateLimitedEmbedder(inner, 0.001, 1)

	_, err := e.EmbedText(context.Background(), "uses the burst")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.EmbedTexts(ctx, []string{"blocked"})
	assert.Error(t, err)
	assert.Equal(t, 1, inner.calls)
}

func TestRateLimitedEmbedder_PingBypassesLimiter(t *testing.T) {
	inner := &scriptedEmbedder{}
	e := NewRateLimitedEmbedder(inner, 0.001, 1)

	for i := 0; i < 3; i++ {
		require.NoError(t, Ping(context.Background(), e))
	}
	assert.Equal(t, 3, inner.pings)
}
