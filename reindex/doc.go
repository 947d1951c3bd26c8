// Package reindex rebuilds the vector index from the record store.
//
// It walks every record of a collection in batches, embeds the batch's
// descriptions in one call and upserts the resulting entries. Invalid records
// are skipped and counted. Unlike the ingestion path, transient embedding and
// index failures are retried with exponential backoff, since a backfill has
// no event source to redeliver for it.
//
// Use it after switching embedding models or storage backends, or to index
// records written before the ingestion worker was running.
package reindex
