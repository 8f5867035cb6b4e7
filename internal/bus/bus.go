package bus

import "context"

// Message is a single record on the bus: an opaque key used for partition
// routing and a value carrying the marshaled payload (replication entry,
// collection update, compensation event, ...).
type Message struct {
	Topic string
	Key   []byte
	Value []byte
}

// Producer publishes messages to a topic. ProduceSync mirrors the
// synchronous, wait-for-ack send the storage layer's replication path
// relies on: the caller observes a write as durable only once ProduceSync
// returns nil.
type Producer interface {
	ProduceSync(ctx context.Context, msg Message) error
	Close() error
}

// Consumer polls one topic under one consumer group. Every independent
// consumer group sees the full stream of messages from the configured reset
// point (earliest), which is how every shard follower, and not just one of
// a load-balanced set, ends up replaying every replication message.
type Consumer interface {
	// Poll blocks until at least one message is available, ctx is
	// cancelled, or an error occurs. It never returns an empty, nil-error
	// batch.
	Poll(ctx context.Context) ([]Message, error)
	Close() error
}

// Bus opens producers and consumers against a shared set of topics. A
// Producer and Consumer created from the same Bus observe each other's
// writes; this is the seam membus and franzbus both satisfy.
type Bus interface {
	Producer(topic string) (Producer, error)
	// Consumer subscribes group to topic, resetting to the earliest offset
	// the first time that group is seen.
	Consumer(topic, group string) (Consumer, error)
	Close() error
}
