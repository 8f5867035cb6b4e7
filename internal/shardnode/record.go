package shardnode

import "encoding/json"

// record is what a shard node actually stores for one primary key: the
// caller's value plus the write timestamp used to settle LWW conflicts
// during replication.
type record struct {
	Value     json.RawMessage `json:"value"`
	Timestamp int64           `json:"timestamp"`
}

// ReplicationMessage is published by a leader for every create or delete
// and consumed by its followers. Operation is "create" or "delete";
// Value is only set for "create".
type ReplicationMessage struct {
	Operation  string          `json:"operation"`
	TableName  string          `json:"table_name"`
	PrimaryKey string          `json:"primary_key"`
	Value      json.RawMessage `json:"value,omitempty"`
	Timestamp  int64           `json:"timestamp"`
}
