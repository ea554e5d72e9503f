// Package rediscache provides an ai.Embedder decorator that caches vectors
// in Redis.
//
// Entries are keyed by embedding model and the BLAKE2b hash of the text, so
// re-importing an unchanged archive does not call the embedding service
// again. Values use the same binary vector encoding as the index stores.
package rediscache
