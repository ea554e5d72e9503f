package search

import (
	"time"

	"github.com/poiesic/chatrecall/core"
)

// SearchMonitor provides hooks to observe the search process.
// Exactly one of Finish and Fail is called after Start.
type SearchMonitor interface {
	Start(query string)
	AfterQueryEmbedding(vector []float32, elapsed time.Duration)
	AfterIndexQuery(hits []core.Hit, elapsed time.Duration)
	Finish(results []*core.SearchResult)
	Fail(err error)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                                 {}
func (n *noopMonitor) AfterQueryEmbedding(_ []float32, _ time.Duration) {}
func (n *noopMonitor) AfterIndexQuery(_ []core.Hit, _ time.Duration)   {}
func (n *noopMonitor) Finish(_ []*core.SearchResult)                  {}
func (n *noopMonitor) Fail(_ error)                                   {}
