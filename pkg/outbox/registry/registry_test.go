package registry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hyeonlabs/guideport-backend/pkg/config"
	"github.com/hyeonlabs/guideport-backend/pkg/db/models"
	"github.com/hyeonlabs/guideport-backend/pkg/enums"
	"github.com/hyeonlabs/guideport-backend/pkg/outbox"
)

func newRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry(config.PubSubConfig{DomainTopic: "gp-domain-events"})
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	return reg
}

func envelopePayload(t *testing.T) json.RawMessage {
	t.Helper()
	env := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now(),
		Data:       json.RawMessage(`{"periodKey":"2026-07"}`),
	}
	payload, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return payload
}

func TestRegistryRequiresDomainTopic(t *testing.T) {
	if _, err := NewEventRegistry(config.PubSubConfig{}); err == nil {
		t.Fatal("expected error for empty domain topic")
	}
}

func TestResolveRoutesToDomainTopic(t *testing.T) {
	reg := newRegistry(t)
	resolved, err := reg.Resolve(models.OutboxEvent{
		EventType:     enums.EventSettlementLocked,
		AggregateType: enums.AggregateSettlementRun,
		AggregateID:   "2026-07",
		Payload:       envelopePayload(t),
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.Descriptor.Topic != "gp-domain-events" {
		t.Fatalf("unexpected topic %q", resolved.Descriptor.Topic)
	}
	if resolved.Envelope.EventID == "" {
		t.Fatal("expected envelope event id")
	}
}

func TestResolveRejectsUnknownEventType(t *testing.T) {
	reg := newRegistry(t)
	_, err := reg.Resolve(models.OutboxEvent{
		EventType:     enums.OutboxEventType("order_shipped"),
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.NewString(),
		Payload:       envelopePayload(t),
	})
	var nonRetry NonRetryableError
	if !errors.As(err, &nonRetry) {
		t.Fatalf("expected non-retryable error, got %v", err)
	}
}

func TestResolveRejectsAggregateMismatch(t *testing.T) {
	reg := newRegistry(t)
	_, err := reg.Resolve(models.OutboxEvent{
		EventType:     enums.EventOrderConfirmed,
		AggregateType: enums.AggregateSettlementRun,
		AggregateID:   uuid.NewString(),
		Payload:       envelopePayload(t),
	})
	var nonRetry NonRetryableError
	if !errors.As(err, &nonRetry) {
		t.Fatalf("expected non-retryable error, got %v", err)
	}
}

func TestResolveRejectsEmptyData(t *testing.T) {
	reg := newRegistry(t)
	env, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now(),
		Data:       json.RawMessage(`null`),
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	_, err = reg.Resolve(models.OutboxEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.NewString(),
		Payload:       env,
	})
	var nonRetry NonRetryableError
	if !errors.As(err, &nonRetry) {
		t.Fatalf("expected non-retryable error, got %v", err)
	}
}
