// Package coordinator implements the control plane for Torua's distributed
// storage system: table registration, the shard-group topology, and request
// routing from table::primary_key down to the right shard node.
//
// # Overview
//
// The coordinator is the single entry point clients and the edge gateway
// talk to. It does not store any table data itself; every read or write is
// forwarded to a shard node once the coordinator has worked out which
// node should handle it.
//
// # Architecture
//
//	┌───────────────────────────────────────┐
//	│              COORDINATOR              │
//	├───────────────────────────────────────┤
//	│  Topology                             │
//	│    group_id -> {leader, followers}    │
//	│                                       │
//	│  TableRegistry                        │
//	│    table_name -> TableDefinition      │
//	│                                       │
//	│  Router                               │
//	│    internal/ring lookup ->            │
//	│    leader (writes) / any node (reads) │
//	└───────────────────────────────────────┘
//
// # Declared leadership, not elected leadership
//
// Shard nodes tell the coordinator whether they're a leader or a follower
// for their group at boot, via register_shard; the coordinator believes
// whichever registration it saw most recently. There is no election, no
// quorum, and no fencing token. Two nodes booted as leader for the same
// group, or a network partition that lets an old leader keep serving
// writes after a new one registers, produce a real split brain. Topology
// logs a warning when it observes a leader being replaced, but it does not
// try to prevent or resolve the condition; resolving it is a deliberate
// non-goal of this system.
//
// # No automatic rebalancing or failover
//
// Group membership only changes when a shard node calls register_shard.
// The coordinator never redistributes groups on its own, never demotes an
// unreachable leader, and never promotes a follower. A dead leader simply
// makes its group's writes fail with 503 until an operator (or the node
// itself, on restart) re-registers a leader for that group.
//
// # Routing
//
// Routing a key is: hash "table::primary_key" on the ring to get a
// group_id, look up that group's topology entry, then either return the
// leader (writes) or a uniformly random choice between the leader and its
// followers (reads). A group with no registered nodes, or a write routed
// to a group with no leader, is a 503; there is nothing else to fall back
// to.
package coordinator
