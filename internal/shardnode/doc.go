// Package shardnode implements a single shard node: the leader-or-follower
// process that actually owns a slice of table data and replicates it to
// the rest of its shard group over internal/bus.
//
// # Roles
//
// A node is configured as exactly one of:
//
//   - Leader: accepts writes, applies them locally, and publishes a
//     ReplicationMessage for every create/delete so followers catch up.
//   - Follower: accepts no writes, subscribes under its own unique
//     consumer group (so every follower gets the full stream rather than
//     load-balancing it with its peers), and applies incoming messages to
//     its local copy.
//
// Both roles serve reads from the same local storage.Store.
//
// # Conflict resolution
//
// Replicated updates are applied under last-writer-wins: an update is
// discarded if its timestamp is not strictly greater than the timestamp
// already stored for that record. Deletes remove the record outright;
// there is no tombstone recording that a delete happened, so a late,
// stale create replicated after a delete can resurrect the record. This
// mirrors the original service's behavior and is a known, accepted gap
// rather than an oversight.
package shardnode
