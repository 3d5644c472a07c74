// Package storage defines the persistence boundary for the account ledger:
// the append-only event journal with optimistic concurrency control and the
// materialized view store.
//
// Backends report concurrency and validation failures synchronously and
// never retry; retry policy (reload history, re-decide, re-append) belongs
// to the orchestration layer. Both backends honor all-or-nothing batch
// semantics, so no caller can observe a partially appended batch.
package storage
