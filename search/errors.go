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


package search

import "errors"

var (
	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrIndexRequired is returned when a vector index is not provided.
	ErrIndexRequired = errors.New("vector index required")

	// ErrRecordLookupRequired is returned when a record lookup is not provided.
	ErrRecordLookupRequired = errors.New("record lookup required")

	// ErrQueryRequired is returned when a search request has no query text.
	ErrQueryRequired = errors.New("query is required")

	// ErrInvalidFilter is returned when filter input cannot be interpreted.
	ErrInvalidFilter = errors.New("invalid filter")

	// ErrInvalidBatchSize is returned for a joiner batch size outside 1..storage.MaxLookupBatch.
	ErrInvalidBatchSize = errors.New("invalid lookup batch size")
)
