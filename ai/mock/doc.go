// Package mock provides a test double for ai.Embedder.
//
// # Usage
//
//	mockEmbedder := mock.NewMockEmbedder()
//	vector, _ := mockEmbedder.EmbedText(ctx, "test text")
//
//	// Inject failures
//	mockEmbedder.WithEmbedTextFunc(func(ctx context.Context, text string) ([]float32, error) {
//	    return nil, ai.ErrEmbedding
//	})
//
//	// Check call counts
//	count := mockEmbedder.CallCount()
//
// # Default Behavior
//
// MockEmbedder returns deterministic unit vectors derived from an FNV hash
// of the text, so identical text always embeds identically and a record's
// description is its own nearest neighbour.
package mock
