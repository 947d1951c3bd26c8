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


// Package search answers free-text queries against the vector index.
//
// A query moves through a fixed sequence of stages:
//
//	RECEIVED -> EMBEDDED -> MATCHED -> ENRICHED | DEGRADED -> RESPONDED
//
// The query text is embedded, optional duration and date bounds are
// translated into the index filter grammar, and the top matches are joined
// against the record store in batches of at most storage.MaxLookupBatch ids.
// The joined records are returned in similarity order.
//
// When the record store lookup fails the search does not: the response is
// built from the metadata the index keeps next to each vector, every item is
// marked as a fallback and the response carries a warning. Embedding and
// index failures are terminal for the request.
package search
