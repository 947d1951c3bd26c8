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


package storage

import "errors"

var (
	// ErrNotFound indicates that the requested record was not found.
	ErrNotFound = errors.New("record not found")

	// ErrIndexWrite indicates the vector index rejected or failed an upsert.
	ErrIndexWrite = errors.New("vector index write failed")

	// ErrIndexQuery indicates the vector index failed a similarity query.
	ErrIndexQuery = errors.New("vector index query failed")

	// ErrDimensionMismatch indicates a query vector whose length differs
	// from a stored entry's.
	ErrDimensionMismatch = errors.New("vector dimensions differ")

	// ErrStore indicates a record store failure.
	ErrStore = errors.New("record store failed")

	// ErrBatchTooLarge is returned when a lookup names more than MaxLookupBatch ids.
	ErrBatchTooLarge = errors.New("lookup batch too large")

	// ErrInvalidFilter indicates a filter with an unknown field, operator or operand.
	ErrInvalidFilter = errors.New("invalid filter")

	// ErrStorageClosed indicates that the storage backend is closed.
	ErrStorageClosed = errors.New("storage is closed")

	// ErrSerializationFailed indicates a serialization/deserialization failure.
	ErrSerializationFailed = errors.New("serialization failed")

	// ErrTruncatedData indicates that data was truncated during reading.
	ErrTruncatedData = errors.New("truncated data")
)
