// Package ingestion imports exported conversation archives into an index
// store.
//
// An Importer normalizes each raw conversation, embeds the resulting
// document and upserts it. Every item is processed inside its own failure
// boundary: a failed item is recorded in the core.ImportReport and the
// batch moves on. Only a preflight failure, detected before the first item
// is touched, aborts a batch.
//
// Embedding can run on a worker pool (WithConcurrency) and in batched calls
// (WithBatchSize). The report accounting and the progress callback are the
// same in every mode.
package ingestion
