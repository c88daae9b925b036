package messaging

import (
	"context"
	"errors"
	"testing"
	"time"

	contractsv1 "commonpool/contracts/gen/events/v1"
)

func claimPaid(id string) contractsv1.Envelope {
	return contractsv1.Envelope{
		EventID:       id,
		EventType:     contractsv1.EventClaimPaid,
		SchemaVersion: contractsv1.CurrentSchemaVersion,
		PartitionKey:  "claim-1",
	}
}

func TestBusDeliversToSubscribers(t *testing.T) {
	bus := NewBus(nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan contractsv1.Envelope, 1)
	bus.Subscribe(ctx, contractsv1.EventClaimPaid, "test-cg", func(_ context.Context, event contractsv1.Envelope) error {
		received <- event
		return nil
	})

	if err := bus.Publish(ctx, contractsv1.EventClaimPaid, claimPaid("evt-1")); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	select {
	case event := <-received:
		if event.EventID != "evt-1" {
			t.Fatalf("unexpected event: %+v", event)
		}
	case <-time.After(time.Second):
		t.Fatal("expected event delivery")
	}
}

func TestBusPublishWithoutSubscribers(t *testing.T) {
	bus := NewBus([]string{"localhost:9092"}, nil)
	if err := bus.Publish(context.Background(), "nobody", claimPaid("evt-2")); err != nil {
		t.Fatalf("publish without subscribers failed: %v", err)
	}
}

func TestBusRejectsInvalidEnvelope(t *testing.T) {
	bus := NewBus(nil, nil)
	event := claimPaid("evt-3")
	event.SchemaVersion = 0
	err := bus.Publish(context.Background(), contractsv1.EventClaimPaid, event)
	if !errors.Is(err, contractsv1.ErrInvalidEnvelope) {
		t.Fatalf("expected ErrInvalidEnvelope, got %v", err)
	}
}
