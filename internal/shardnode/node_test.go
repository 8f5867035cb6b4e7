package shardnode

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/dreamware/torua/internal/bus/membus"
)

func newLeaderFollowerPair(t *testing.T, groupID string) (*Node, *Node, context.CancelFunc) {
	t.Helper()
	topic := groupID + "-replication"
	b := membus.New()

	followerConsumer, err := b.Consumer(topic, "follower-"+groupID)
	if err != nil {
		t.Fatalf("Consumer: %v", err)
	}
	producer, err := b.Producer(topic)
	if err != nil {
		t.Fatalf("Producer: %v", err)
	}

	leader := NewLeader(groupID, producer, topic)
	follower := NewFollower(groupID, followerConsumer)

	ctx, cancel := context.WithCancel(context.Background())
	follower.Start(ctx)

	return leader, follower, cancel
}

func TestCreateOnFollowerFails(t *testing.T) {
	_, follower, cancel := newLeaderFollowerPair(t, "g1")
	defer cancel()

	err := follower.CreateRecord(context.Background(), "movies", "1", json.RawMessage(`{"title":"x"}`))
	if err != ErrNotLeader {
		t.Fatalf("err = %v, want ErrNotLeader", err)
	}
}

func TestCreateReplicatesToFollower(t *testing.T) {
	leader, follower, cancel := newLeaderFollowerPair(t, "g1")
	defer cancel()

	ctx := context.Background()
	if err := leader.CreateRecord(ctx, "movies", "1", json.RawMessage(`{"title":"arrival"}`)); err != nil {
		t.Fatalf("CreateRecord: %v", err)
	}

	waitForRecord(t, follower, "movies", "1", `{"title":"arrival"}`)
}

func TestDeleteReplicatesToFollower(t *testing.T) {
	leader, follower, cancel := newLeaderFollowerPair(t, "g1")
	defer cancel()

	ctx := context.Background()
	if err := leader.CreateRecord(ctx, "movies", "1", json.RawMessage(`{"title":"arrival"}`)); err != nil {
		t.Fatalf("CreateRecord: %v", err)
	}
	waitForRecord(t, follower, "movies", "1", `{"title":"arrival"}`)

	if err := leader.DeleteRecord(ctx, "movies", "1"); err != nil {
		t.Fatalf("DeleteRecord: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if !follower.ExistsRecord("movies", "1") {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expected delete to replicate to follower")
}

func TestApplyUpdateIgnoresStaleTimestamp(t *testing.T) {
	_, follower, cancel := newLeaderFollowerPair(t, "g1")
	defer cancel()

	follower.applyUpdate(ReplicationMessage{
		Operation: "create", TableName: "movies", PrimaryKey: "1",
		Value: json.RawMessage(`{"title":"new"}`), Timestamp: 1000,
	})
	follower.applyUpdate(ReplicationMessage{
		Operation: "create", TableName: "movies", PrimaryKey: "1",
		Value: json.RawMessage(`{"title":"stale"}`), Timestamp: 500,
	})

	value, err := follower.ReadRecord("movies", "1")
	if err != nil {
		t.Fatalf("ReadRecord: %v", err)
	}
	if string(value) != `{"title":"new"}` {
		t.Fatalf("value = %s, want the newer write to survive", value)
	}
}

func TestReadRecordNotFound(t *testing.T) {
	leader, _, cancel := newLeaderFollowerPair(t, "g1")
	defer cancel()

	if _, err := leader.ReadRecord("movies", "missing"); err != ErrRecordNotFound {
		t.Fatalf("err = %v, want ErrRecordNotFound", err)
	}
}

func waitForRecord(t *testing.T, n *Node, table, pk, want string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if v, err := n.ReadRecord(table, pk); err == nil {
			if string(v) != want {
				t.Fatalf("value = %s, want %s", v, want)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("record %s/%s never replicated", table, pk)
}
