package messaging

import (
	"context"
	"log/slog"
	"sync"

	contractsv1 "commonpool/contracts/gen/events/v1"
)

const moduleName = "internal/platform/messaging"

// Bus is the event bus adapter used by the outbox relay.
// Delivery is in-process publish/subscribe; configured brokers are recorded
// for the log line only until an external broker adapter is wired.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]chan contractsv1.Envelope
	brokers     []string
	logger      *slog.Logger
}

func NewBus(brokers []string, logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("event bus ready",
		"event", "bus_ready",
		"module", moduleName,
		"layer", "platform",
		"brokers", brokers,
	)
	return &Bus{
		subscribers: make(map[string][]chan contractsv1.Envelope),
		brokers:     append([]string(nil), brokers...),
		logger:      logger,
	}
}

// Publish validates event and fans it out to current subscribers of topic.
// A subscriber whose buffer is full misses the event.
func (b *Bus) Publish(ctx context.Context, topic string, event contractsv1.Envelope) error {
	if err := event.Validate(); err != nil {
		b.logger.Error("rejecting invalid envelope",
			"event", "bus_publish_invalid",
			"module", moduleName,
			"layer", "platform",
			"topic", topic,
			"event_id", event.EventID,
			"error", err.Error(),
		)
		return err
	}

	b.mu.RLock()
	subs := append([]chan contractsv1.Envelope(nil), b.subscribers[topic]...)
	b.mu.RUnlock()

	for _, sub := range subs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sub <- event:
		default:
			b.logger.Warn("dropping event for slow subscriber",
				"event", "bus_publish_drop",
				"module", moduleName,
				"layer", "platform",
				"topic", topic,
				"event_id", event.EventID,
			)
		}
	}

	b.logger.Debug("event published",
		"event", "bus_publish",
		"module", moduleName,
		"layer", "platform",
		"topic", topic,
		"event_id", event.EventID,
		"event_type", event.EventType,
		"subscribers", len(subs),
	)
	return nil
}

// Subscribe runs handler for each event on topic until ctx is done.
func (b *Bus) Subscribe(
	ctx context.Context,
	topic string,
	consumerGroup string,
	handler func(context.Context, contractsv1.Envelope) error,
) {
	ch := make(chan contractsv1.Envelope, 128)

	b.mu.Lock()
	b.subscribers[topic] = append(b.subscribers[topic], ch)
	b.mu.Unlock()

	go func() {
		for {
			select {
			case <-ctx.Done():
				b.removeSubscriber(topic, ch)
				return
			case event := <-ch:
				if err := handler(ctx, event); err != nil {
					b.logger.Error("consumer handler failed",
						"event", "bus_consume_failed",
						"module", moduleName,
						"layer", "platform",
						"topic", topic,
						"consumer_group", consumerGroup,
						"event_id", event.EventID,
						"event_type", event.EventType,
						"error", err.Error(),
					)
				}
			}
		}
	}()
}

func (b *Bus) removeSubscriber(topic string, target chan contractsv1.Envelope) {
	b.mu.Lock()
	defer b.mu.Unlock()

	items := b.subscribers[topic]
	if len(items) == 0 {
		return
	}
	filtered := make([]chan contractsv1.Envelope, 0, len(items))
	for _, item := range items {
		if item != target {
			filtered = append(filtered, item)
		}
	}
	b.subscribers[topic] = filtered
}
