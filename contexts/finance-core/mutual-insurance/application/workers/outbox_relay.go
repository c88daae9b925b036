package workers

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	application "commonpool/contexts/finance-core/mutual-insurance/application"
	"commonpool/contexts/finance-core/mutual-insurance/ports"
)

const moduleName = "finance-core/mutual-insurance"

// OutboxRelay publishes persisted insurance notifications to the event bus.
type OutboxRelay struct {
	Outbox    ports.OutboxRepository
	Publisher ports.EventPublisher
	Clock     ports.Clock
	BatchSize int
	Logger    *slog.Logger
}

// RunOnce publishes a bounded batch of pending rows in creation order and
// marks each row only after the publish succeeded. It stops at the first
// failure; the next cycle resumes from that row.
func (r OutboxRelay) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(r.Logger)
	limit := r.BatchSize
	if limit <= 0 {
		limit = 100
	}

	pending, err := r.Outbox.ListPendingOutbox(ctx, limit)
	if err != nil {
		logger.Error("insurance outbox list failed",
			"event", "insurance_outbox_list_failed",
			"module", moduleName,
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}
	if len(pending) == 0 {
		logger.Debug("insurance outbox relay found no pending rows",
			"event", "insurance_outbox_relay_noop",
			"module", moduleName,
			"layer", "worker",
			"batch_size", limit,
		)
		return nil
	}

	now := time.Now().UTC()
	if r.Clock != nil {
		now = r.Clock.Now().UTC()
	}

	for _, row := range pending {
		var event ports.EventEnvelope
		if err := json.Unmarshal(row.Payload, &event); err != nil {
			logger.Error("insurance outbox decode failed",
				"event", "insurance_outbox_decode_failed",
				"module", moduleName,
				"layer", "worker",
				"outbox_id", row.OutboxID,
				"error", err.Error(),
			)
			return err
		}
		topic := event.EventType
		if topic == "" {
			topic = row.EventType
		}
		if err := r.Publisher.Publish(ctx, topic, event); err != nil {
			logger.Error("insurance outbox publish failed",
				"event", "insurance_outbox_publish_failed",
				"module", moduleName,
				"layer", "worker",
				"outbox_id", row.OutboxID,
				"event_type", event.EventType,
				"error", err.Error(),
			)
			return err
		}
		if err := r.Outbox.MarkOutboxPublished(ctx, row.OutboxID, now); err != nil {
			logger.Error("insurance outbox mark published failed",
				"event", "insurance_outbox_mark_published_failed",
				"module", moduleName,
				"layer", "worker",
				"outbox_id", row.OutboxID,
				"error", err.Error(),
			)
			return err
		}
	}

	logger.Info("insurance outbox relay cycle completed",
		"event", "insurance_outbox_relay_completed",
		"module", moduleName,
		"layer", "worker",
		"published_count", len(pending),
	)
	return nil
}
