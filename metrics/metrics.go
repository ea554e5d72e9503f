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

package metrics

import (
	"time"

	"github.com/poiesic/chatrecall/core"
	"github.com/poiesic/chatrecall/ingestion"
	"github.com/poiesic/chatrecall/search"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "chatrecall"

// Search status label values.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Collector records import and search telemetry in its own registry.
type Collector struct {
	registry          *prometheus.Registry
	importItems       *prometheus.CounterVec
	dependencyLatency *prometheus.HistogramVec
	searches          *prometheus.CounterVec
}

var (
	_ ingestion.Observer   = (*Collector)(nil)
	_ search.SearchMonitor = (*Collector)(nil)
)

// New creates a Collector with every metric registered.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		importItems: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "import_items_total",
				Help:      "Imported conversations by outcome.",
			},
			[]string{"outcome"},
		),
		dependencyLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "dependency_latency_seconds",
				Help:      "Latency of calls to the embedding service and the index store.",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2, 5, 10},
			},
			[]string{"service"},
		),
		searches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "searches_total",
				Help:      "Searches by status.",
			},
			[]string{"status"},
		),
	}
	c.registry.MustRegister(c.importItems, c.dependencyLatency, c.searches)
	return c
}

// Registry exposes the underlying registry, e.g. for an HTTP handler.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ObserveItem counts one import outcome.
func (c *Collector) ObserveItem(outcome core.Outcome) {
	c.importItems.WithLabelValues(outcome.String()).Inc()
}

// ObserveLatency records one dependency call.
func (c *Collector) ObserveLatency(service string, d time.Duration) {
	c.dependencyLatency.WithLabelValues(service).Observe(d.Seconds())
}

func (c *Collector) Start(_ string) {}

func (c *Collector) AfterQueryEmbedding(_ []float32, elapsed time.Duration) {
	c.ObserveLatency(ingestion.ServiceEmbedding, elapsed)
}

func (c *Collector) AfterIndexQuery(_ []core.Hit, elapsed time.Duration) {
	c.ObserveLatency(ingestion.ServiceStore, elapsed)
}

func (c *Collector) Finish(_ []*core.SearchResult) {
	c.searches.WithLabelValues(StatusOK).Inc()
}

func (c *Collector) Fail(_ error) {
	c.searches.WithLabelValues(StatusError).Inc()
}

// WriteTextfile writes every metric to path in the text exposition format,
// replacing the file atomically. Intended for the node exporter textfile
// collector.
func (c *Collector) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, c.registry)
}
