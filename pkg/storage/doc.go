/*
Package storage defines the uniform StorageBackend capability implemented by
the two storage tiers: a durable tier (postgres/sqlx, the server of record)
and a cache tier (embedded bbolt, a warm read-through cache). Both tiers
expose identical single-row semantics; the synchronizer (pkg/syncer) is
responsible for converging list/filter results that may be stale on the
cache tier.
*/
package storage
