package shardnode

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dreamware/torua/internal/bus"
	"github.com/dreamware/torua/internal/storage"
)

// ErrNotLeader is returned by write operations attempted against a
// follower node. Only the leader of a shard group accepts writes; a
// follower that tried to write locally without going through the leader
// would silently diverge from the rest of the group.
var ErrNotLeader = fmt.Errorf("Write operations allowed only on Leader")

// ErrRecordNotFound is returned when a record doesn't exist under the
// requested table and primary key.
var ErrRecordNotFound = fmt.Errorf("record not found")

// Stats tracks per-node operation counts, mirroring the counters the
// teacher's shard package kept for a single in-process shard, generalized
// here across a full shard node's table-scoped records.
type Stats struct {
	Creates uint64
	Reads   uint64
	Deletes uint64
}

// Node is one shard node: either the leader or a follower of a shard
// group. It owns a local storage.Store and, depending on role, either a
// bus.Producer (leader) or a bus.Consumer (follower).
type Node struct {
	GroupID  string
	IsLeader bool

	store storage.Store

	producer bus.Producer
	consumer bus.Consumer
	topic    string

	replicationLag prometheus.Gauge

	stats struct {
		creates, reads, deletes uint64
	}

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewLeader creates a shard node that owns writes for groupID and
// publishes every create/delete to topic via producer.
func NewLeader(groupID string, producer bus.Producer, topic string) *Node {
	return &Node{
		GroupID:  groupID,
		IsLeader: true,
		store:    storage.NewMemoryStore(),
		producer: producer,
		topic:    topic,
	}
}

// NewFollower creates a shard node that replicates groupID's data by
// consuming topic via consumer. The caller is responsible for having
// subscribed consumer under a consumer group unique to this follower, so
// it sees every message rather than sharing the stream with its peers.
func NewFollower(groupID string, consumer bus.Consumer) *Node {
	return &Node{
		GroupID:  groupID,
		IsLeader: false,
		store:    storage.NewMemoryStore(),
		consumer: consumer,
		replicationLag: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "shard_replication_lag_seconds",
			Help: "Seconds between a leader's write and this follower applying it.",
			ConstLabels: prometheus.Labels{
				"group_id": groupID,
			},
		}),
	}
}

// Start begins background work for the node. For a follower, this is the
// replication loop that applies incoming messages; for a leader it is a
// no-op, since writes are applied synchronously by CreateRecord/DeleteRecord.
func (n *Node) Start(ctx context.Context) {
	if n.IsLeader {
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	n.cancel = cancel
	n.wg.Add(1)
	go n.replicationLoop(loopCtx)
}

// Stop cancels the replication loop (if any) and waits for it to exit.
func (n *Node) Stop() {
	if n.cancel != nil {
		n.cancel()
	}
	n.wg.Wait()
}

func (n *Node) replicationLoop(ctx context.Context) {
	defer n.wg.Done()
	for {
		msgs, err := n.consumer.Poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("shardnode[%s]: replication poll error: %v", n.GroupID, err)
			continue
		}
		for _, m := range msgs {
			var repl ReplicationMessage
			if err := json.Unmarshal(m.Value, &repl); err != nil {
				log.Printf("shardnode[%s]: failed to decode replication message: %v", n.GroupID, err)
				continue
			}
			n.applyUpdate(repl)
		}
	}
}

// applyUpdate implements last-writer-wins replication: an update is
// dropped if it is not strictly newer than what's already stored. Deletes
// remove the record outright; see package doc for why that can resurrect
// a record under a late, stale create.
func (n *Node) applyUpdate(msg ReplicationMessage) {
	if existingRaw, err := n.store.Get(msg.TableName, msg.PrimaryKey); err == nil {
		var existing record
		if err := json.Unmarshal(existingRaw, &existing); err == nil && msg.Timestamp <= existing.Timestamp {
			log.Printf("shardnode[%s]: [LWW] ignoring stale update for %s/%s", n.GroupID, msg.TableName, msg.PrimaryKey)
			return
		}
	}

	switch msg.Operation {
	case "create":
		rec := record{Value: msg.Value, Timestamp: msg.Timestamp}
		encoded, err := json.Marshal(rec)
		if err != nil {
			log.Printf("shardnode[%s]: encoding replicated record: %v", n.GroupID, err)
			return
		}
		if err := n.store.Put(msg.TableName, msg.PrimaryKey, encoded); err != nil {
			log.Printf("shardnode[%s]: applying replicated create: %v", n.GroupID, err)
			return
		}
		log.Printf("shardnode[%s]: [REPLICA] applied create %s/%s", n.GroupID, msg.TableName, msg.PrimaryKey)
	case "delete":
		if err := n.store.Delete(msg.TableName, msg.PrimaryKey); err != nil {
			log.Printf("shardnode[%s]: applying replicated delete: %v", n.GroupID, err)
			return
		}
		log.Printf("shardnode[%s]: [REPLICA] applied delete %s/%s", n.GroupID, msg.TableName, msg.PrimaryKey)
	default:
		log.Printf("shardnode[%s]: unknown replication operation %q", n.GroupID, msg.Operation)
		return
	}

	if n.replicationLag != nil {
		lag := float64(time.Now().UnixNano()-msg.Timestamp) / 1e9
		n.replicationLag.Set(lag)
	}
}

// CreateRecord stores value under table/primaryKey and, on a leader,
// publishes the resulting create to the rest of the shard group.
func (n *Node) CreateRecord(ctx context.Context, table, primaryKey string, value json.RawMessage) error {
	if !n.IsLeader {
		return ErrNotLeader
	}

	timestamp := time.Now().UnixNano()
	rec := record{Value: value, Timestamp: timestamp}
	encoded, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("shardnode: encoding record: %w", err)
	}
	if err := n.store.Put(table, primaryKey, encoded); err != nil {
		return fmt.Errorf("shardnode: storing record: %w", err)
	}
	atomic.AddUint64(&n.stats.creates, 1)

	msg := ReplicationMessage{
		Operation:  "create",
		TableName:  table,
		PrimaryKey: primaryKey,
		Value:      value,
		Timestamp:  timestamp,
	}
	return n.publish(ctx, primaryKey, msg)
}

// ReadRecord returns the current value stored for table/primaryKey, or
// ErrRecordNotFound.
func (n *Node) ReadRecord(table, primaryKey string) (json.RawMessage, error) {
	raw, err := n.store.Get(table, primaryKey)
	if err != nil {
		if err == storage.ErrKeyNotFound {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	atomic.AddUint64(&n.stats.reads, 1)

	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("shardnode: decoding stored record: %w", err)
	}
	return rec.Value, nil
}

// ExistsRecord reports whether table/primaryKey currently has a value,
// without counting as a read for statistics purposes.
func (n *Node) ExistsRecord(table, primaryKey string) bool {
	_, err := n.store.Get(table, primaryKey)
	return err == nil
}

// DeleteRecord removes table/primaryKey and, on a leader, publishes the
// deletion to the rest of the shard group.
func (n *Node) DeleteRecord(ctx context.Context, table, primaryKey string) error {
	if !n.IsLeader {
		return ErrNotLeader
	}
	if !n.ExistsRecord(table, primaryKey) {
		return ErrRecordNotFound
	}

	timestamp := time.Now().UnixNano()
	if err := n.store.Delete(table, primaryKey); err != nil {
		return fmt.Errorf("shardnode: deleting record: %w", err)
	}
	atomic.AddUint64(&n.stats.deletes, 1)

	msg := ReplicationMessage{
		Operation:  "delete",
		TableName:  table,
		PrimaryKey: primaryKey,
		Timestamp:  timestamp,
	}
	return n.publish(ctx, primaryKey, msg)
}

func (n *Node) publish(ctx context.Context, key string, msg ReplicationMessage) error {
	encoded, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("shardnode: encoding replication message: %w", err)
	}
	return n.producer.ProduceSync(ctx, bus.Message{
		Topic: n.topic,
		Key:   []byte(key),
		Value: encoded,
	})
}

// GetStats returns a snapshot of this node's operation counters.
func (n *Node) GetStats() Stats {
	return Stats{
		Creates: atomic.LoadUint64(&n.stats.creates),
		Reads:   atomic.LoadUint64(&n.stats.reads),
		Deletes: atomic.LoadUint64(&n.stats.deletes),
	}
}
