package saga

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/dreamware/torua/internal/bus"
)

// updatesTopic is where confirmed tag additions are relayed for the
// filter service to consume.
const updatesTopic = "collection-updates"

// compensationsTopic is where the filter service reports a failed
// downstream step, asking the collections service to roll one back.
const compensationsTopic = "collection-compensations"

// compensationGroup is the consumer group the compensation listener
// subscribes under.
const compensationGroup = "collections_saga_group"

type outboxEntry struct {
	ItemID string
	Tag    string
}

// Service owns the item store, its transactional outbox, and the two
// background loops (relay, compensation listener) that connect it to the
// rest of the saga.
type Service struct {
	validator TagValidator

	mu     sync.Mutex
	items  map[string]*Item
	outbox []outboxEntry

	producer bus.Producer
	consumer bus.Consumer
}

// NewService creates a collections service seeded with a couple of demo
// items, publishing confirmed updates via producer and listening for
// compensations via consumer.
func NewService(validator TagValidator, producer bus.Producer, consumer bus.Consumer) *Service {
	return &Service{
		validator: validator,
		items:     seedItems(),
		producer:  producer,
		consumer:  consumer,
	}
}

// Tags returns the current tags for itemID.
func (s *Service) Tags(itemID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[itemID]
	if !ok {
		return nil, &ErrItemNotFound{ItemID: itemID}
	}
	return append([]string(nil), item.Tags...), nil
}

// AddTag validates tag against the external tags service, then appends it
// to itemID's tag list and the outbox in a single critical section so the
// outbox entry can never be lost relative to the in-memory update. The
// validation call itself runs with no lock held, per the rule that I/O
// never happens while the lock is held.
func (s *Service) AddTag(ctx context.Context, itemID, tag string) error {
	if err := s.checkAddable(itemID, tag); err != nil {
		return err
	}

	if err := s.validator.Validate(ctx, tag); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[itemID]
	if !ok {
		return &ErrItemNotFound{ItemID: itemID}
	}
	if hasTag(item.Tags, tag) {
		return &ErrTagExists{ItemID: itemID, Tag: tag}
	}

	item.Tags = append(item.Tags, tag)
	s.outbox = append(s.outbox, outboxEntry{ItemID: itemID, Tag: tag})
	log.Printf("saga: added tag %q to item %s, queued in outbox", tag, itemID)
	return nil
}

func (s *Service) checkAddable(itemID, tag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[itemID]
	if !ok {
		return &ErrItemNotFound{ItemID: itemID}
	}
	if hasTag(item.Tags, tag) {
		return &ErrTagExists{ItemID: itemID, Tag: tag}
	}
	return nil
}

// RunOutboxRelay polls the outbox every two seconds and publishes each
// pending entry to updatesTopic, removing it from the outbox only once
// the publish has been acknowledged. It returns when ctx is cancelled,
// letting callers shut it down in step with the rest of the process.
func (s *Service) RunOutboxRelay(ctx context.Context) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	log.Print("saga: starting outbox relay")
	for {
		select {
		case <-ctx.Done():
			log.Print("saga: outbox relay stopped")
			return
		case <-ticker.C:
			s.drainOutbox(ctx)
		}
	}
}

func (s *Service) drainOutbox(ctx context.Context) {
	s.mu.Lock()
	pending := append([]outboxEntry(nil), s.outbox...)
	s.mu.Unlock()

	var sent []outboxEntry
	for _, entry := range pending {
		payload, err := json.Marshal(map[string]string{"item_id": entry.ItemID, "action": "tag_added", "tag": entry.Tag})
		if err != nil {
			log.Printf("saga: encoding outbox entry for item %s: %v", entry.ItemID, err)
			continue
		}
		if err := s.producer.ProduceSync(ctx, bus.Message{Topic: updatesTopic, Key: []byte(entry.ItemID), Value: payload}); err != nil {
			log.Printf("saga: failed to relay outbox entry for item %s: %v", entry.ItemID, err)
			continue
		}
		log.Printf("saga: outbox relay sent item=%s tag=%s", entry.ItemID, entry.Tag)
		sent = append(sent, entry)
	}

	if len(sent) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outbox = subtractEntries(s.outbox, sent)
}

func subtractEntries(all, sent []outboxEntry) []outboxEntry {
	sentSet := make(map[outboxEntry]bool, len(sent))
	for _, e := range sent {
		sentSet[e] = true
	}
	out := all[:0]
	for _, e := range all {
		if !sentSet[e] {
			out = append(out, e)
		} else {
			sentSet[e] = false // only drop the first match for this entry
		}
	}
	return out
}

// RunCompensationListener consumes compensationsTopic and rolls back any
// TAG_ADD_FAILED event it sees. It returns when ctx is cancelled.
func (s *Service) RunCompensationListener(ctx context.Context) {
	log.Print("saga: starting compensation listener")
	for {
		msgs, err := s.consumer.Poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Print("saga: compensation listener stopped")
				return
			}
			log.Printf("saga: compensation poll error: %v", err)
			continue
		}
		for _, m := range msgs {
			s.handleCompensation(m.Value)
		}
	}
}

func (s *Service) handleCompensation(payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("saga: compensation handler panicked: %v", r)
		}
	}()

	var event struct {
		ItemID string `json:"item_id"`
		Tag    string `json:"tag"`
		Action string `json:"action"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		log.Printf("saga: decoding compensation message: %v", err)
		return
	}
	log.Printf("saga: received compensation request: %+v", event)

	if event.Action != "TAG_ADD_FAILED" {
		return
	}
	s.compensateAddTag(event.ItemID, event.Tag)
}

func (s *Service) compensateAddTag(itemID, tag string) {
	if itemID == "" || tag == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[itemID]
	if !ok || !hasTag(item.Tags, tag) {
		log.Printf("saga: [SAGA] tag %q not found on item %s, skipping rollback", tag, itemID)
		return
	}
	item.Tags = removeTag(item.Tags, tag)
	log.Printf("saga: [SAGA] compensating transaction executed: removed tag %q from item %s", tag, itemID)
}
