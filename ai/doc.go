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


// Package ai provides the text embedding abstraction used by mediasearch.
//
// Record descriptions are embedded at ingestion time and free-text queries
// are embedded at search time. Both paths go through the Embedder interface
// so the same model serves both sides of the similarity comparison.
//
// # Implementation Packages
//
//   - ai/openai: any OpenAI-compatible host, via langchaingo
//   - ai/goopenai: the OpenAI API, via the go-openai client
//   - ai/mock: deterministic test double
//
// Public constructors (openai.NewEmbedder, goopenai.NewEmbedder) return the
// ai.Embedder interface. The mock returns its concrete type so tests can
// inject behavior and inspect call counts.
//
// # Usage Example
//
//	cfg := ai.NewConfig(ai.WithEmbeddingHost("http://localhost:11434"))
//	embedder, err := openai.NewEmbedder(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	vector, err := embedder.EmbedText(ctx, "cats playing piano")
//
// # Errors
//
// Every failure is wrapped in ErrEmbedding. Empty input additionally wraps
// ErrEmptyText, and a response with no usable vector wraps ErrNoEmbedding.
package ai
