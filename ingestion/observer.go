package ingestion

import (
	"time"

	"github.com/poiesic/chatrecall/core"
)

// Dependency names passed to Observer.ObserveLatency.
const (
	ServiceEmbedding = "embedding"
	ServiceStore     = "store"
)

// ProgressFunc receives (processed, total) after every item. Calls are
// serialized and processed never decreases.
type ProgressFunc func(processed, total int)

// Observer receives import telemetry. Implementations must be safe for
// concurrent use.
type Observer interface {
	// ObserveItem is called once per item with its final outcome.
	ObserveItem(outcome core.Outcome)

	// ObserveLatency records the duration of one call to a dependency.
	ObserveLatency(service string, d time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveItem(core.Outcome)              {}
func (nopObserver) ObserveLatency(string, time.Duration) {}
