// Package metrics exposes Prometheus collectors for imports and searches.
package metrics
