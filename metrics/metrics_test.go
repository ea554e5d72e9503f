package metrics

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/poiesic/chatrecall/ai/mock"
	"github.com/poiesic/chatrecall/core"
	"github.com/poiesic/chatrecall/ingestion"
	"github.com/poiesic/chatrecall/search"
	"github.com/poiesic/chatrecall/storage/badger"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveItem(t *testing.T) {
	c := New()
	c.ObserveItem(core.OutcomeSucceeded)
	c.ObserveItem(core.OutcomeSucceeded)
	c.ObserveItem(core.OutcomeFailed)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.importItems.WithLabelValues("succeeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.importItems.WithLabelValues("failed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.importItems.WithLabelValues("skipped")))
}

func TestObserveLatency(t *testing.T) {
	c := New()
	c.ObserveLatency(ingestion.ServiceEmbedding, 120*time.Millisecond)
	c.ObserveLatency(ingestion.ServiceStore, time.Millisecond)

	assert.Equal(t, 2, testutil.CollectAndCount(c.dependencyLatency))
}

func TestSearchMonitor(t *testing.T) {
	c := New()
	c.Start("q")
	c.AfterQueryEmbedding(nil, time.Millisecond)
	c.AfterIndexQuery(nil, time.Millisecond)
	c.Finish(nil)
	c.Start("q")
	c.Fail(errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(c.searches.WithLabelValues(StatusOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.searches.WithLabelValues(StatusError)))
	assert.Equal(t, 2, testutil.CollectAndCount(c.dependencyLatency))
}

func TestSearcherWithCollector(t *testing.T) {
	store, err := badger.NewMemoryIndexStore()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	c := New()
	s, err := search.NewSearcher(store, mock.NewMockEmbedder(), search.WithMonitor(c))
	require.NoError(t, err)

	_, err = s.Search(context.Background(), "anything", 5)
	require.NoError(t, err)
	_, err = s.Search(context.Background(), "  ", 5)
	require.ErrorIs(t, err, search.ErrEmptyQuery)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.searches.WithLabelValues(StatusOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.searches.WithLabelValues(StatusError)))
}

func TestWriteTextfile(t *testing.T) {
	c := New()
	c.ObserveItem(core.OutcomeSkipped)
	c.Finish(nil)

	path := filepath.Join(t.TempDir(), "chatrecall.prom")
	require.NoError(t, c.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `chatrecall_import_items_total{outcome="skipped"} 1`)
	assert.Contains(t, string(data), `chatrecall_searches_total{status="ok"} 1`)
}
