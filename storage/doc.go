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


// Package storage provides the storage abstraction layer for mediasearch.
//
// Two collaborators live behind this package:
//
//   - VectorIndex: one embedding per record plus a reduced metadata
//     projection, queried by similarity with an optional Filter
//   - RecordStore: the authoritative media records, looked up by id in
//     batches of at most MaxLookupBatch
//
// # Backends
//
//   - storage/badger: embedded BadgerDB, the default and the test backend
//   - storage/postgres: pgvector for the index and jsonb documents for records
//
// # Constructor Return Type Pattern
//
// Public constructors return the interface types:
//
//	index, err := badger.NewVectorIndex(backend)  // returns storage.VectorIndex
//
// Use in tests with in-memory storage:
//
//	index, records, backend, err := badger.NewMemoryStores()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
// # Filters
//
// Filter is a small Mongo-style grammar shared by every backend:
//
//	Filter{"duration": {OpGTE: 60.0, OpLTE: 300.0}}
//
// Each backend evaluates it natively (in-process for BadgerDB, SQL for
// Postgres) with the same semantics.
//
// # Thread Safety
//
// All implementations must be thread-safe and support concurrent access
// from multiple goroutines.
package storage
