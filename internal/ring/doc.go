// Package ring implements the coordinator's consistent-hash ring, mapping
// "table::primary_key" strings to shard group ids while minimizing
// reassignment when groups are added or removed.
//
// The ring is a thin, concurrency-safe wrapper around
// github.com/golang/groupcache/consistenthash. groupcache's Map type has no
// Remove operation, so removal is implemented by rebuilding the underlying
// Map from the surviving group set; additions are cheap (single Add call).
package ring
