// Package franzbus backs internal/bus with a real Kafka-compatible broker
// via github.com/twmb/franz-go. It is the production Bus implementation;
// internal/bus/membus stands in for it in tests that don't bring up a
// broker.
package franzbus

import (
	"context"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/dreamware/torua/internal/bus"
)

// Bus opens franz-go clients against a fixed set of seed brokers. One
// client per Producer/Consumer call; franz-go clients are safe for
// concurrent use but a topic-scoped producer and a group-scoped consumer
// have different enough option sets that sharing one client buys little.
type Bus struct {
	seeds []string
}

// New creates a Bus that dials seedBrokers lazily, the first time a
// Producer or Consumer is requested.
func New(seedBrokers []string) *Bus {
	return &Bus{seeds: seedBrokers}
}

// Producer opens a client that publishes to topic.
func (b *Bus) Producer(topic string) (bus.Producer, error) {
	cl, err := kgo.NewClient(
		kgo.SeedBrokers(b.seeds...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.NoCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("franzbus: opening producer for topic %q: %w", topic, err)
	}
	return &producer{client: cl}, nil
}

// Consumer opens a client consuming topic under group. The group is reset
// to the earliest offset the first time the broker sees it, so a shard
// follower started fresh replays the full replication history rather than
// only messages produced after it joins.
func (b *Bus) Consumer(topic, group string) (bus.Consumer, error) {
	cl, err := kgo.NewClient(
		kgo.SeedBrokers(b.seeds...),
		kgo.ConsumerGroup(group),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	if err != nil {
		return nil, fmt.Errorf("franzbus: opening consumer for topic %q group %q: %w", topic, group, err)
	}
	return &consumer{client: cl}, nil
}

// Close is a no-op: franzbus hands out one client per Producer/Consumer
// call and each is closed independently via its own Close method.
func (b *Bus) Close() error { return nil }

type producer struct {
	client *kgo.Client
}

// ProduceSync publishes msg and blocks until the broker has acknowledged
// it, matching the synchronous write-then-ack contract the shard
// replication path and the saga outbox relay both need: neither considers
// a message durable until this call returns nil.
func (p *producer) ProduceSync(ctx context.Context, msg bus.Message) error {
	record := &kgo.Record{
		Topic: msg.Topic,
		Key:   msg.Key,
		Value: msg.Value,
	}
	results := p.client.ProduceSync(ctx, record)
	if err := results.FirstErr(); err != nil {
		return fmt.Errorf("franzbus: produce to %q: %w", msg.Topic, err)
	}
	return nil
}

func (p *producer) Close() error {
	p.client.Close()
	return nil
}

type consumer struct {
	client *kgo.Client
}

// Poll fetches the next batch of records, surfacing the first fetch-level
// error (if any) once all records from non-errored partitions have been
// collected.
func (c *consumer) Poll(ctx context.Context) ([]bus.Message, error) {
	fetches := c.client.PollFetches(ctx)
	if err := ctx.Err(); err != nil && fetches.IsClientClosed() {
		return nil, err
	}

	var firstErr error
	fetches.EachError(func(topic string, partition int32, err error) {
		if firstErr == nil {
			firstErr = fmt.Errorf("franzbus: fetch %s[%d]: %w", topic, partition, err)
		}
	})

	var out []bus.Message
	fetches.EachRecord(func(r *kgo.Record) {
		out = append(out, bus.Message{Topic: r.Topic, Key: r.Key, Value: r.Value})
	})

	if len(out) == 0 && firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

func (c *consumer) Close() error {
	c.client.Close()
	return nil
}
