// Package storage provides the table-scoped key-value store backing each
// shard node's local data.
//
// A record is addressed by a (table, primaryKey) pair rather than a bare
// string key, since every caller in this system already works in terms
// of a table and a primary key; Store takes both arguments directly so
// callers never build or parse a composite key themselves.
//
// MemoryStore is the only implementation: an in-memory map guarded by a
// sync.RWMutex, with no persistence across restarts. That's sufficient
// for a shard node, since durability comes from replication across the
// group rather than from the node's own storage.
package storage
