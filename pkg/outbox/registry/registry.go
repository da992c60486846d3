package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hyeonlabs/guideport-backend/pkg/config"
	"github.com/hyeonlabs/guideport-backend/pkg/db/models"
	"github.com/hyeonlabs/guideport-backend/pkg/enums"
	"github.com/hyeonlabs/guideport-backend/pkg/outbox"
)

// EventDescriptor links an event type to its aggregate and destination topic.
type EventDescriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
}

// ResolvedEvent is the result of validating an outbox row for publishing.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
}

// EventRegistry maps each supported event type to its descriptor.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NonRetryableError signals the dispatcher should stop retrying a row.
type NonRetryableError struct {
	Err error
}

// Error implements error.
func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

// Unwrap exposes the wrapped error.
func (e NonRetryableError) Unwrap() error {
	return e.Err
}

// NewNonRetryableError wraps an error to signal no retries.
func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

// NewEventRegistry builds the registry with the configured topic names.
// All ledger events flow through the single domain topic; consumers fan
// out by the event_type message attribute.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	topic := strings.TrimSpace(cfg.DomainTopic)
	if topic == "" {
		return nil, fmt.Errorf("domain topic is required")
	}

	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor)}
	for _, desc := range []EventDescriptor{
		{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			Topic:         topic,
		},
		{
			EventType:     enums.EventOrderConfirmed,
			AggregateType: enums.AggregateOrder,
			Topic:         topic,
		},
		{
			EventType:     enums.EventOrderCanceled,
			AggregateType: enums.AggregateOrder,
			Topic:         topic,
		},
		{
			EventType:     enums.EventSettlementLocked,
			AggregateType: enums.AggregateSettlementRun,
			Topic:         topic,
		},
		{
			EventType:     enums.EventSettlementResumed,
			AggregateType: enums.AggregateSettlementRun,
			Topic:         topic,
		},
		{
			EventType:     enums.EventSettlementPayoutPaid,
			AggregateType: enums.AggregateGuideSettlement,
			Topic:         topic,
		},
	} {
		reg.entries[desc.EventType] = desc
	}

	return reg, nil
}

// Resolve validates the row and decodes its payload envelope.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event type %s", event.EventType))
	}
	if desc.AggregateType != event.AggregateType {
		return nil, NewNonRetryableError(fmt.Errorf("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType))
	}
	if strings.TrimSpace(event.AggregateID) == "" {
		return nil, NewNonRetryableError(fmt.Errorf("missing aggregate_id"))
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode envelope: %w", err))
	}

	trimmed := bytes.TrimSpace(envelope.Data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, NewNonRetryableError(fmt.Errorf("payload missing for %s", event.EventType))
	}

	return &ResolvedEvent{
		Descriptor: desc,
		Envelope:   envelope,
	}, nil
}
