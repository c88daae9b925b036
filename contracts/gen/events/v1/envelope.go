package v1

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// CurrentSchemaVersion is the envelope layout this package writes.
const CurrentSchemaVersion = 1

var ErrInvalidEnvelope = errors.New("invalid event envelope")

// Envelope wraps every insurance event written to the outbox and relayed to
// the bus. Data is the event-specific JSON object; PartitionKey orders events
// of one aggregate.
type Envelope struct {
	EventID          string          `json:"event_id"`
	EventType        string          `json:"event_type"`
	OccurredAt       time.Time       `json:"occurred_at"`
	SourceService    string          `json:"source_service"`
	CorrelationID    string          `json:"correlation_id,omitempty"`
	SchemaVersion    int             `json:"schema_version"`
	PartitionKeyPath string          `json:"partition_key_path"`
	PartitionKey     string          `json:"partition_key"`
	Data             json.RawMessage `json:"data"`
}

// Validate checks the fields consumers rely on for routing and ordering.
func (e Envelope) Validate() error {
	switch {
	case e.EventID == "":
		return fmt.Errorf("%w: event_id is required", ErrInvalidEnvelope)
	case !IsKnownEventType(e.EventType):
		return fmt.Errorf("%w: unknown event_type %q", ErrInvalidEnvelope, e.EventType)
	case e.SchemaVersion != CurrentSchemaVersion:
		return fmt.Errorf("%w: schema_version %d", ErrInvalidEnvelope, e.SchemaVersion)
	case e.PartitionKey == "":
		return fmt.Errorf("%w: partition_key is required", ErrInvalidEnvelope)
	case len(e.Data) > 0 && !json.Valid(e.Data):
		return fmt.Errorf("%w: data is not valid json", ErrInvalidEnvelope)
	}
	return nil
}

type correlationKey struct{}

// WithCorrelationID tags ctx so events emitted while serving it carry id.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, correlationKey{}, id)
}

func CorrelationIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}
