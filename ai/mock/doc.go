// Package mock provides test doubles for the ai package.
//
// # Usage
//
//	provider := mock.NewMockProvider()
//	embedder := provider.(*mock.MockProvider).GetMockEmbedder()
//
//	// Custom behavior injection
//	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
//	    return nil, ai.ErrRateLimited
//	}
//
//	// Check call counts
//	count := embedder.CallCount()
//
// # Default Behavior
//
// MockEmbedder returns bag-of-words vectors, so a query shares similarity
// with exactly the documents that contain its words. MockProvider reports
// ModelName as its model.
package mock
