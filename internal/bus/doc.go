// Package bus defines the message-bus abstraction shared by the shard
// replication path, the collections outbox relay, and the filter consumer.
//
// Two implementations exist: internal/bus/franzbus, a thin wrapper around
// github.com/twmb/franz-go for production use, and internal/bus/membus, an
// in-process fake used by tests so scenarios from the design's testable
// properties don't need a running broker.
package bus
