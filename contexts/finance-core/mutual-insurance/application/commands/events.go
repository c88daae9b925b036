package commands

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"commonpool/contexts/finance-core/mutual-insurance/ports"
	contractsv1 "commonpool/contracts/gen/events/v1"
)

const (
	moduleName    = "finance-core/mutual-insurance"
	sourceService = "mutual-insurance"
)

// notifier appends post-commit notifications. Emission is best effort: a
// failed append is logged and never fails the operation that produced it.
type notifier struct {
	outbox ports.OutboxWriter
	idGen  ports.IDGenerator
	logger *slog.Logger
}

func (n notifier) emit(
	ctx context.Context,
	eventType string,
	partitionKeyPath string,
	partitionKey string,
	occurredAt time.Time,
	data map[string]any,
) {
	if n.outbox == nil || n.idGen == nil {
		return
	}
	envelope, err := n.envelope(ctx, eventType, partitionKeyPath, partitionKey, occurredAt, data)
	if err == nil {
		err = n.outbox.AppendOutbox(ctx, envelope)
	}
	if err != nil {
		n.logger.Error("insurance notification append failed",
			"event", "insurance_notification_append_failed",
			"module", moduleName,
			"layer", "application",
			"event_type", eventType,
			"partition_key", partitionKey,
			"error", err.Error(),
		)
	}
}

func (n notifier) envelope(
	ctx context.Context,
	eventType string,
	partitionKeyPath string,
	partitionKey string,
	occurredAt time.Time,
	data map[string]any,
) (ports.EventEnvelope, error) {
	eventID, err := n.idGen.NewID(ctx)
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	eventID = strings.TrimSpace(eventID)
	return ports.EventEnvelope{
		EventID:          eventID,
		EventType:        eventType,
		OccurredAt:       occurredAt.UTC(),
		SourceService:    sourceService,
		CorrelationID:    contractsv1.CorrelationIDFrom(ctx),
		SchemaVersion:    contractsv1.CurrentSchemaVersion,
		PartitionKeyPath: partitionKeyPath,
		PartitionKey:     partitionKey,
		Data:             payload,
	}, nil
}
