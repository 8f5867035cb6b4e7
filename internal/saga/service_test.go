package saga

import (
	"context"
	"testing"
	"time"

	"github.com/dreamware/torua/internal/bus"
	"github.com/dreamware/torua/internal/bus/membus"
)

type fakeValidator struct {
	reject map[string]bool
}

func (f *fakeValidator) Validate(ctx context.Context, tag string) error {
	if f.reject[tag] {
		return &ValidationError{Status: 400, Message: "rejected"}
	}
	return nil
}

func newTestService(t *testing.T) (*Service, *membus.Bus) {
	t.Helper()
	b := membus.New()
	producer, err := b.Producer(updatesTopic)
	if err != nil {
		t.Fatalf("Producer: %v", err)
	}
	consumer, err := b.Consumer(compensationsTopic, compensationGroup)
	if err != nil {
		t.Fatalf("Consumer: %v", err)
	}
	return NewService(&fakeValidator{}, producer, consumer), b
}

func TestAddTagHappyPath(t *testing.T) {
	svc, _ := newTestService(t)

	if err := svc.AddTag(context.Background(), "123", "noir"); err != nil {
		t.Fatalf("AddTag: %v", err)
	}

	tags, err := svc.Tags("123")
	if err != nil {
		t.Fatalf("Tags: %v", err)
	}
	if !hasTag(tags, "noir") {
		t.Fatalf("tags = %v, want noir included", tags)
	}
}

func TestAddTagDuplicateFails(t *testing.T) {
	svc, _ := newTestService(t)

	if err := svc.AddTag(context.Background(), "123", "classic"); err == nil {
		t.Fatal("expected ErrTagExists for a tag the item already has")
	}
}

func TestAddTagUnknownItemFails(t *testing.T) {
	svc, _ := newTestService(t)

	err := svc.AddTag(context.Background(), "does-not-exist", "noir")
	if _, ok := err.(*ErrItemNotFound); !ok {
		t.Fatalf("err = %v (%T), want *ErrItemNotFound", err, err)
	}
}

func TestOutboxRelaySendsAndDrains(t *testing.T) {
	svc, b := newTestService(t)

	updatesConsumer, err := b.Consumer(updatesTopic, "test-reader")
	if err != nil {
		t.Fatalf("Consumer: %v", err)
	}

	if err := svc.AddTag(context.Background(), "123", "noir"); err != nil {
		t.Fatalf("AddTag: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.RunOutboxRelay(ctx)

	msgs := pollWithTimeout(t, updatesConsumer, 3*time.Second)
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		svc.mu.Lock()
		drained := len(svc.outbox) == 0
		svc.mu.Unlock()
		if drained {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expected outbox to drain once the relay published the entry")
}

func TestCompensationListenerRemovesTag(t *testing.T) {
	svc, b := newTestService(t)

	if err := svc.AddTag(context.Background(), "123", "noir"); err != nil {
		t.Fatalf("AddTag: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.RunCompensationListener(ctx)

	compProducer, err := b.Producer(compensationsTopic)
	if err != nil {
		t.Fatalf("Producer: %v", err)
	}
	if err := compProducer.ProduceSync(ctx, bus.Message{
		Value: []byte(`{"item_id":"123","tag":"noir","action":"TAG_ADD_FAILED","reason":"simulated"}`),
	}); err != nil {
		t.Fatalf("ProduceSync: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		tags, err := svc.Tags("123")
		if err != nil {
			t.Fatalf("Tags: %v", err)
		}
		if !hasTag(tags, "noir") {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expected compensation to remove the tag")
}

func pollWithTimeout(t *testing.T, c bus.Consumer, timeout time.Duration) []bus.Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	msgs, err := c.Poll(ctx)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	return msgs
}
