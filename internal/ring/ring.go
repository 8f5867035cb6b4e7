package ring

import (
	"sort"
	"sync"

	"github.com/golang/groupcache/consistenthash"
)

// virtualReplicas is the number of virtual nodes each shard group
// contributes to the ring. Higher counts smooth key distribution at the
// cost of more memory for the sorted replica slice; 160 sits at the upper
// end of the 40-160 range called out for this design.
const virtualReplicas = 160

// Ring maps arbitrary string keys ("table::primary_key") to shard group ids
// using consistent hashing with virtual nodes.
//
// Mutations (AddGroup/RemoveGroup) are serialized by an exclusive lock.
// Lookup takes a read lock and never blocks on another lookup, satisfying
// the "lookups may run concurrently" requirement; no network or disk I/O
// ever happens while the lock is held.
type Ring struct {
	mu     sync.RWMutex
	hash   *consistenthash.Map
	groups map[string]struct{}
}

// New creates an empty ring.
func New() *Ring {
	return &Ring{
		hash:   consistenthash.New(virtualReplicas, nil),
		groups: make(map[string]struct{}),
	}
}

// AddGroup adds a shard group to the ring. It is idempotent: adding a group
// that is already present is a no-op.
func (r *Ring) AddGroup(groupID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.groups[groupID]; ok {
		return
	}
	r.groups[groupID] = struct{}{}
	r.hash.Add(groupID)
}

// RemoveGroup removes a shard group from the ring. It is idempotent:
// removing a group that is absent is a no-op.
//
// consistenthash.Map exposes no Remove, so this rebuilds the Map from the
// remaining groups. Rebuild cost is O(n*virtualReplicas*log); acceptable
// since group membership changes are rare compared to lookups.
func (r *Ring) RemoveGroup(groupID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.groups[groupID]; !ok {
		return
	}
	delete(r.groups, groupID)

	rebuilt := consistenthash.New(virtualReplicas, nil)
	remaining := make([]string, 0, len(r.groups))
	for g := range r.groups {
		remaining = append(remaining, g)
	}
	// Deterministic add order: when two virtual nodes hash to the same
	// point, consistenthash keeps the group added last, so the order
	// decides who owns that point.
	sort.Strings(remaining)
	rebuilt.Add(remaining...)
	r.hash = rebuilt
}

// Lookup returns the shard group id that owns key, and false if the ring is
// empty.
func (r *Ring) Lookup(key string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.groups) == 0 {
		return "", false
	}
	return r.hash.Get(key), true
}

// Groups returns a snapshot of the group ids currently on the ring, in no
// particular order.
func (r *Ring) Groups() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.groups))
	for g := range r.groups {
		out = append(out, g)
	}
	return out
}
