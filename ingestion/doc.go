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


// Package ingestion turns newly created media records into vector index entries.
//
// The Ingester validates a record, embeds its description and upserts the
// vector with a reduced metadata projection (title, duration, createdAt).
// It is idempotent: processing the same record twice leaves one entry.
// It never retries; an upstream failure ends the run and is reported to
// the caller.
//
// The Consumer drains an events.Queue onto a worker pool and settles each
// delivery: success and invalid records are acknowledged, upstream failures
// are negatively acknowledged so the queue can redeliver them.
package ingestion
