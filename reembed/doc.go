// Package reembed re-embeds every stored conversation with the current
// embedding model.
//
// Vectors from different models are not comparable, so switching models
// means replacing every stored vector. The Reembedder walks the index store
// in batches, embeds the stored bodies again with retry and backoff, and
// upserts them with their metadata unchanged. Progress is written as a
// single updating line.
package reembed
