// Package membus is an in-process fake of internal/bus used by unit and
// integration tests. It reproduces the one behavior those tests depend on:
// every consumer group subscribed to a topic receives every message
// published to that topic from the moment it first subscribes, independent
// of any other group, matching the fan-out semantics a Kafka-style broker
// gives a set of distinct consumer groups.
package membus

import (
	"context"
	"sync"

	"github.com/dreamware/torua/internal/bus"
)

// Bus is a shared, in-memory message bus. The zero value is not usable; use
// New.
type Bus struct {
	mu     sync.Mutex
	topics map[string]*topic
}

type topic struct {
	mu     sync.Mutex
	groups map[string]*groupQueue
}

type groupQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	buf    []bus.Message
	closed bool
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{topics: make(map[string]*topic)}
}

func (b *Bus) topicFor(name string) *topic {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[name]
	if !ok {
		t = &topic{groups: make(map[string]*groupQueue)}
		b.topics[name] = t
	}
	return t
}

// Producer returns a producer bound to topicName. Distinct producers on the
// same topic are interchangeable; there is no partition affinity to
// preserve beyond per-key ordering, which this fake does not reproduce.
func (b *Bus) Producer(topicName string) (bus.Producer, error) {
	return &producer{topic: b.topicFor(topicName)}, nil
}

// Consumer subscribes group to topicName. If group has not been seen on
// this topic before, it is created now and will see every message published
// from this point forward. Tests always create consumers before producers
// start publishing, so this stands in for the earliest-offset reset a real
// broker gives a brand new consumer group.
func (b *Bus) Consumer(topicName, group string) (bus.Consumer, error) {
	t := b.topicFor(topicName)

	t.mu.Lock()
	defer t.mu.Unlock()

	gq, ok := t.groups[group]
	if !ok {
		gq = &groupQueue{}
		gq.cond = sync.NewCond(&gq.mu)
		t.groups[group] = gq
	}
	return &consumer{queue: gq}, nil
}

// Close releases no resources; membus holds nothing outside process memory.
func (b *Bus) Close() error { return nil }

type producer struct {
	topic *topic
}

// ProduceSync fans msg out to every consumer group currently subscribed to
// the topic, then returns. There is no asynchronous buffering to wait on,
// so this always "waits" zero time; that's the fake's equivalent of a
// broker ack.
func (p *producer) ProduceSync(ctx context.Context, msg bus.Message) error {
	p.topic.mu.Lock()
	defer p.topic.mu.Unlock()

	for _, gq := range p.topic.groups {
		gq.mu.Lock()
		gq.buf = append(gq.buf, msg)
		gq.cond.Signal()
		gq.mu.Unlock()
	}
	return ctx.Err()
}

// Close is a no-op; a membus producer owns no resources of its own.
func (p *producer) Close() error { return nil }

type consumer struct {
	queue *groupQueue
}

// Poll blocks until at least one message has been produced to the
// consumer's group since the last Poll, or ctx is cancelled.
func (c *consumer) Poll(ctx context.Context) ([]bus.Message, error) {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			c.queue.mu.Lock()
			c.queue.closed = true
			c.queue.cond.Broadcast()
			c.queue.mu.Unlock()
		case <-done:
		}
	}()
	defer close(done)

	c.queue.mu.Lock()
	defer c.queue.mu.Unlock()

	for len(c.queue.buf) == 0 && !c.queue.closed {
		c.queue.cond.Wait()
	}
	if len(c.queue.buf) == 0 {
		return nil, ctx.Err()
	}

	out := c.queue.buf
	c.queue.buf = nil
	return out, nil
}

// Close is a no-op; the group queue persists on the bus for any later
// consumer that resubscribes to the same group.
func (c *consumer) Close() error { return nil }
