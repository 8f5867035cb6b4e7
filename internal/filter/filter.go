package filter

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/dreamware/torua/internal/bus"
)

const (
	updatesTopic       = "collection-updates"
	compensationsTopic = "collection-compensations"
)

// errorTag is the sentinel value that simulates a downstream validation
// failure. It exists purely to exercise the compensation path end to end
// without needing a real business rule that can fail.
const errorTag = "error"

// Update is one accepted collection-updates event, recorded against the
// item it updated.
type Update struct {
	Action string          `json:"action"`
	Detail json.RawMessage `json:"details"`
}

// ErrNoUpdates is returned by UpdatesForItem when itemID has never
// received an accepted update.
type ErrNoUpdates struct{ ItemID string }

func (e *ErrNoUpdates) Error() string { return fmt.Sprintf("no updates found for item %s", e.ItemID) }

// Service consumes collection-updates and serves the accumulated history
// back out over GET /filter/updates/{item_id}.
type Service struct {
	consumer bus.Consumer
	producer bus.Producer

	mu      sync.RWMutex
	updates map[string][]Update
}

// NewService creates a filter service that reads from consumer and
// publishes compensations via producer.
func NewService(consumer bus.Consumer, producer bus.Producer) *Service {
	return &Service{
		consumer: consumer,
		producer: producer,
		updates:  make(map[string][]Update),
	}
}

// Run consumes collection-updates until ctx is cancelled.
func (s *Service) Run(ctx context.Context) {
	log.Print("filter: starting consumer")
	for {
		msgs, err := s.consumer.Poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Print("filter: consumer stopped")
				return
			}
			log.Printf("filter: poll error: %v", err)
			continue
		}
		for _, m := range msgs {
			s.handleUpdate(ctx, m.Value)
		}
	}
}

func (s *Service) handleUpdate(ctx context.Context, payload []byte) {
	var event struct {
		ItemID string `json:"item_id"`
		Action string `json:"action"`
		Tag    string `json:"tag"`
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		log.Printf("filter: decoding update: %v", err)
		return
	}

	if event.Tag == errorTag {
		log.Printf("filter: business logic error: simulated failure for tag %q", event.Tag)
		s.sendCompensation(ctx, payload, event.ItemID, event.Tag, "simulated failure: invalid tag 'error'")
		return
	}

	if event.ItemID == "" {
		return
	}

	log.Printf("filter: received update for item %s: %+v", event.ItemID, event)
	s.mu.Lock()
	s.updates[event.ItemID] = append(s.updates[event.ItemID], Update{Action: event.Action, Detail: payload})
	s.mu.Unlock()
}

func (s *Service) sendCompensation(ctx context.Context, original []byte, itemID, tag, reason string) {
	msg := struct {
		ItemID string `json:"item_id"`
		Tag    string `json:"tag"`
		Action string `json:"action"`
		Reason string `json:"reason"`
	}{ItemID: itemID, Tag: tag, Action: "TAG_ADD_FAILED", Reason: reason}

	encoded, err := json.Marshal(msg)
	if err != nil {
		log.Printf("filter: encoding compensation event: %v", err)
		return
	}
	if err := s.producer.ProduceSync(ctx, bus.Message{Topic: compensationsTopic, Value: encoded}); err != nil {
		log.Printf("filter: failed to send compensation event: %v", err)
		return
	}
	log.Printf("filter: sent compensation event for item %s tag %s", itemID, tag)
}

// UpdatesForItem returns every accepted update recorded for itemID.
func (s *Service) UpdatesForItem(itemID string) ([]Update, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	updates, ok := s.updates[itemID]
	if !ok {
		return nil, &ErrNoUpdates{ItemID: itemID}
	}
	return append([]Update(nil), updates...), nil
}
