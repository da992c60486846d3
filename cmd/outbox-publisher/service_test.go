package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hyeonlabs/guideport-backend/pkg/config"
	"github.com/hyeonlabs/guideport-backend/pkg/db/models"
	"github.com/hyeonlabs/guideport-backend/pkg/enums"
	"github.com/hyeonlabs/guideport-backend/pkg/logger"
	"github.com/hyeonlabs/guideport-backend/pkg/outbox"
	"github.com/hyeonlabs/guideport-backend/pkg/outbox/registry"
)

type fakeDB struct{}

func (fakeDB) Ping(context.Context) error { return nil }

func (fakeDB) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakePubSub struct{}

func (fakePubSub) Ping(context.Context) error            { return nil }
func (fakePubSub) Publisher(string) *gcppubsub.Publisher { return nil }

type fakeRepo struct {
	pending   []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
	terminal  []uuid.UUID
}

func (f *fakeRepo) FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	events := f.pending
	f.pending = nil
	return events, nil
}

func (f *fakeRepo) MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error {
	f.published = append(f.published, id)
	return nil
}

func (f *fakeRepo) MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeRepo) MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error {
	f.terminal = append(f.terminal, id)
	return nil
}

type fakeDLQ struct {
	entries []models.OutboxDLQ
}

func (f *fakeDLQ) InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error {
	f.entries = append(f.entries, entry)
	return nil
}

type fakeResolver struct {
	err error
}

func (f *fakeResolver) Resolve(event models.OutboxEvent) (*registry.ResolvedEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, registry.NewNonRetryableError(err)
	}
	return &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{
			EventType:     event.EventType,
			AggregateType: event.AggregateType,
			Topic:         "gp-domain-events",
		},
		Envelope: envelope,
	}, nil
}

// scriptedPublisher pops one error per Publish call; nil means success.
type scriptedPublisher struct {
	script []error
	calls  int
}

func (p *scriptedPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) pendingPublish {
	var err error
	if p.calls < len(p.script) {
		err = p.script[p.calls]
	}
	p.calls++
	return scriptedResult{err: err}
}

type scriptedResult struct {
	err error
}

func (r scriptedResult) Get(context.Context) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	return "server-id", nil
}

func outboxRow(eventType enums.OutboxEventType, aggregateType enums.OutboxAggregateType, aggregateID string, attempts int) models.OutboxEvent {
	payload, _ := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       json.RawMessage(`{"ok":true}`),
	})
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     eventType,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Payload:       payload,
		AttemptCount:  attempts,
		CreatedAt:     time.Now().UTC(),
	}
}

func newDrainService(t *testing.T, repo *fakeRepo, dlq *fakeDLQ, resolver registryResolver, pub messagePublisher, maxAttempts int) *Service {
	t.Helper()
	cfg := &config.Config{}
	cfg.Outbox.BatchSize = 10
	cfg.Outbox.PollIntervalMS = 1
	cfg.Outbox.MaxAttempts = maxAttempts

	svc, err := NewService(ServiceParams{
		Config:        cfg,
		Logger:        logger.New(logger.Options{ServiceName: "outbox-test", Output: io.Discard}),
		DB:            fakeDB{},
		PubSub:        fakePubSub{},
		Repository:    repo,
		Registry:      resolver,
		DLQRepository: dlq,
		PublisherFactory: func(topic string) messagePublisher {
			return pub
		},
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestDrainOnceContinuesPastTransientFailure(t *testing.T) {
	first := outboxRow(enums.EventOrderCreated, enums.AggregateOrder, uuid.NewString(), 0)
	second := outboxRow(enums.EventOrderConfirmed, enums.AggregateOrder, uuid.NewString(), 0)
	repo := &fakeRepo{pending: []models.OutboxEvent{first, second}}
	dlq := &fakeDLQ{}
	pub := &scriptedPublisher{script: []error{errors.New("broker unavailable"), nil}}

	svc := newDrainService(t, repo, dlq, &fakeResolver{}, pub, 10)

	drained, err := svc.drainOnce(context.Background())
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if drained != 2 {
		t.Fatalf("expected 2 drained rows, got %d", drained)
	}
	if len(repo.failed) != 1 || repo.failed[0] != first.ID {
		t.Fatalf("expected first event marked failed, got %v", repo.failed)
	}
	if len(repo.published) != 1 || repo.published[0] != second.ID {
		t.Fatalf("expected second event published, got %v", repo.published)
	}
	if len(dlq.entries) != 0 {
		t.Fatalf("transient failure must not dead-letter, got %d entries", len(dlq.entries))
	}
}

func TestDrainOnceDeadLettersNonRetryable(t *testing.T) {
	event := outboxRow(enums.EventOrderCanceled, enums.AggregateOrder, uuid.NewString(), 0)
	repo := &fakeRepo{pending: []models.OutboxEvent{event}}
	dlq := &fakeDLQ{}
	resolver := &fakeResolver{err: registry.NewNonRetryableError(errors.New("unknown event type"))}

	svc := newDrainService(t, repo, dlq, resolver, &scriptedPublisher{}, 10)

	if _, err := svc.drainOnce(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(dlq.entries) != 1 {
		t.Fatalf("expected one dlq entry, got %d", len(dlq.entries))
	}
	entry := dlq.entries[0]
	if entry.ErrorReason != enums.OutboxDLQReasonNonRetryable {
		t.Fatalf("expected non_retryable reason, got %s", entry.ErrorReason)
	}
	if entry.EventID != event.ID {
		t.Fatalf("dlq entry should reference the event, got %s", entry.EventID)
	}
	if len(repo.terminal) != 1 || repo.terminal[0] != event.ID {
		t.Fatalf("expected event pinned terminal, got %v", repo.terminal)
	}
	if len(repo.failed) != 0 {
		t.Fatalf("non-retryable must skip the retry path, got %v", repo.failed)
	}
}

func TestDrainOnceDeadLettersAfterMaxAttempts(t *testing.T) {
	// One prior failure with MaxAttempts 2: the next failure is terminal.
	event := outboxRow(enums.EventSettlementLocked, enums.AggregateSettlementRun, "2026-07", 1)
	repo := &fakeRepo{pending: []models.OutboxEvent{event}}
	dlq := &fakeDLQ{}
	pub := &scriptedPublisher{script: []error{errors.New("broker unavailable")}}

	svc := newDrainService(t, repo, dlq, &fakeResolver{}, pub, 2)

	if _, err := svc.drainOnce(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(dlq.entries) != 1 {
		t.Fatalf("expected one dlq entry, got %d", len(dlq.entries))
	}
	if dlq.entries[0].ErrorReason != enums.OutboxDLQReasonMaxAttempts {
		t.Fatalf("expected max_attempts reason, got %s", dlq.entries[0].ErrorReason)
	}
	if dlq.entries[0].AggregateID != "2026-07" {
		t.Fatalf("expected period-key aggregate id, got %s", dlq.entries[0].AggregateID)
	}
	if len(repo.failed) != 0 {
		t.Fatalf("terminal failure must not take the retry path, got %v", repo.failed)
	}
}

func TestIdleBackoffDoublesToCeilingAndResets(t *testing.T) {
	b := newIdleBackoff(100*time.Millisecond, 350*time.Millisecond)

	steps := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 350 * time.Millisecond, 350 * time.Millisecond}
	for i, base := range steps {
		got := b.next()
		if got < base || got >= base+idleBackoffJitterSpan {
			t.Fatalf("step %d: delay %v outside [%v, %v)", i, got, base, base+idleBackoffJitterSpan)
		}
	}

	b.reset()
	if got := b.next(); got < 100*time.Millisecond || got >= 100*time.Millisecond+idleBackoffJitterSpan {
		t.Fatalf("reset should return to base, got %v", got)
	}
}
