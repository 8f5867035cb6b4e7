package coordinator

import (
	"log"
	"sync"

	"github.com/dreamware/torua/internal/ring"
)

// GroupTopology is a shard group's current view of which node is its
// leader and which nodes are following it. A group with no leader can
// still serve reads from its followers but rejects writes.
type GroupTopology struct {
	Leader    string   `json:"leader"`
	Followers []string `json:"followers"`
}

// Topology tracks shard-group membership and routes group ids onto the
// consistent-hash ring. It is the coordinator's only source of truth for
// "who is in group G and who leads it"; there is no external
// configuration store behind it.
//
// Mutations are serialized by mu; the ring has its own internal lock, so
// RegisterShard never holds mu while calling into it for longer than the
// single AddGroup call requires.
type Topology struct {
	mu     sync.RWMutex
	groups map[string]*GroupTopology
	ring   *ring.Ring
}

// NewTopology creates an empty topology backed by a fresh ring.
func NewTopology() *Topology {
	return &Topology{
		groups: make(map[string]*GroupTopology),
		ring:   ring.New(),
	}
}

// RegisterShard records that shardURL belongs to group_id, as either its
// leader or one of its followers. Registration is idempotent and
// last-writer-wins: a second leader registration for the same group simply
// replaces the first, with a warning logged so the operator can see a
// split-brain forming.
func (t *Topology) RegisterShard(groupID, shardURL string, isLeader bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	g, ok := t.groups[groupID]
	if !ok {
		g = &GroupTopology{}
		t.groups[groupID] = g
		t.ring.AddGroup(groupID)
	}

	if isLeader {
		if g.Leader != "" && g.Leader != shardURL {
			log.Printf("coordinator: replacing leader for group %s: %s -> %s", groupID, g.Leader, shardURL)
		}
		g.Leader = shardURL
		g.Followers = removeString(g.Followers, shardURL)
	} else {
		if !containsString(g.Followers, shardURL) {
			g.Followers = append(g.Followers, shardURL)
		}
		if g.Leader == shardURL {
			g.Leader = ""
		}
	}

	log.Printf("coordinator: registered %s for group %s (leader=%v)", shardURL, groupID, isLeader)
}

// GroupForKey resolves key ("table::primary_key") to a group id via the
// ring. ok is false if no group has ever registered.
func (t *Topology) GroupForKey(key string) (groupID string, ok bool) {
	return t.ring.Lookup(key)
}

// Group returns a copy of the current topology entry for groupID, and
// false if the group is unknown.
func (t *Topology) Group(groupID string) (GroupTopology, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	g, ok := t.groups[groupID]
	if !ok {
		return GroupTopology{}, false
	}
	return GroupTopology{Leader: g.Leader, Followers: append([]string(nil), g.Followers...)}, true
}

// Snapshot returns a copy of every group's topology, keyed by group id.
// Used by the /ops/health-report endpoint.
func (t *Topology) Snapshot() map[string]GroupTopology {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]GroupTopology, len(t.groups))
	for id, g := range t.groups {
		out[id] = GroupTopology{Leader: g.Leader, Followers: append([]string(nil), g.Followers...)}
	}
	return out
}

func containsString(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

func removeString(ss []string, s string) []string {
	out := ss[:0]
	for _, v := range ss {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
