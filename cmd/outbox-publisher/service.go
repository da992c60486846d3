package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hyeonlabs/guideport-backend/pkg/config"
	"github.com/hyeonlabs/guideport-backend/pkg/db/models"
	"github.com/hyeonlabs/guideport-backend/pkg/enums"
	"github.com/hyeonlabs/guideport-backend/pkg/logger"
	"github.com/hyeonlabs/guideport-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize      = 50
	defaultPollMs         = 500
	defaultMaxAttempts    = 10
	publishTimeout        = 15 * time.Second
	idleBackoffCeiling    = 10 * time.Second
	idleBackoffJitterSpan = 250 * time.Millisecond
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type pubSubClient interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type dlqRepository interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

// messagePublisher abstracts the per-topic Pub/Sub publisher so the drain
// loop can be exercised without a broker.
type messagePublisher interface {
	Publish(context.Context, *gcppubsub.Message) pendingPublish
}

type pendingPublish interface {
	Get(context.Context) (string, error)
}

type publisherFor func(topic string) messagePublisher

type ServiceParams struct {
	Config           *config.Config
	Logger           *logger.Logger
	DB               dbClient
	PubSub           pubSubClient
	Repository       outboxRepository
	Registry         registryResolver
	PublisherFactory publisherFor
	DLQRepository    dlqRepository
}

// Service drains the outbox table into Pub/Sub. Rows that cannot ever
// publish move to the DLQ; transient failures retry with counted attempts.
type Service struct {
	logg        *logger.Logger
	db          dbClient
	pubsub      pubSubClient
	repo        outboxRepository
	registry    registryResolver
	dlq         dlqRepository
	publisherOf publisherFor
	batchSize   int
	maxAttempts int
	poll        time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Config == nil:
		return nil, errors.New("config is required")
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.PubSub == nil:
		return nil, errors.New("pubsub client is required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository is required")
	case params.Registry == nil:
		return nil, errors.New("event registry is required")
	case params.DLQRepository == nil:
		return nil, errors.New("dlq repository is required")
	}

	svc := &Service{
		logg:        params.Logger,
		db:          params.DB,
		pubsub:      params.PubSub,
		repo:        params.Repository,
		registry:    params.Registry,
		dlq:         params.DLQRepository,
		publisherOf: params.PublisherFactory,
		batchSize:   params.Config.Outbox.BatchSize,
		maxAttempts: params.Config.Outbox.MaxAttempts,
		poll:        time.Duration(params.Config.Outbox.PollIntervalMS) * time.Millisecond,
	}
	if svc.batchSize <= 0 {
		svc.batchSize = defaultBatchSize
	}
	if svc.maxAttempts <= 0 {
		svc.maxAttempts = defaultMaxAttempts
	}
	if svc.poll <= 0 {
		svc.poll = defaultPollMs * time.Millisecond
	}
	if svc.publisherOf == nil {
		svc.publisherOf = func(topic string) messagePublisher {
			return wrapPublisher(params.PubSub.Publisher(topic))
		}
	}
	return svc, nil
}

// Run polls until the context is canceled. Batch errors back the loop off
// exponentially; an empty fetch sleeps one poll interval.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	for _, dep := range []struct {
		name string
		ping func(context.Context) error
	}{
		{"database", s.db.Ping},
		{"pubsub", s.pubsub.Ping},
	} {
		if err := dep.ping(ctx); err != nil {
			s.logg.Error(ctx, fmt.Sprintf("%s ping failed", dep.name), err)
			return fmt.Errorf("%s ping failed: %w", dep.name, err)
		}
	}

	delay := newIdleBackoff(s.poll, idleBackoffCeiling)
	for {
		if err := ctx.Err(); err != nil {
			s.logg.Info(ctx, "outbox publisher context canceled")
			return err
		}

		drained, err := s.drainOnce(ctx)
		if err != nil {
			s.logg.Error(ctx, "outbox drain failed", err)
			if err := sleepCtx(ctx, delay.next()); err != nil {
				return err
			}
			continue
		}
		delay.reset()

		if drained > 0 {
			continue
		}
		if err := sleepCtx(ctx, delay.idle()); err != nil {
			return err
		}
	}
}

// drainOnce claims one batch under a transaction and dispatches every row.
// Per-row publish failures do not abort the batch; only bookkeeping errors do.
func (s *Service) drainOnce(ctx context.Context) (int, error) {
	drained := 0
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return err
		}
		drained = len(events)
		for _, event := range events {
			if err := s.dispatch(ctx, tx, event); err != nil {
				return err
			}
		}
		return nil
	})
	return drained, err
}

func (s *Service) dispatch(ctx context.Context, tx *gorm.DB, event models.OutboxEvent) error {
	resolved, err := s.registry.Resolve(event)
	if err != nil {
		return s.deadLetter(ctx, tx, event, enums.OutboxDLQReasonNonRetryable, err, "")
	}
	topic := resolved.Descriptor.Topic

	if err := s.publish(ctx, event, resolved); err != nil {
		var nonRetry registry.NonRetryableError
		if errors.As(err, &nonRetry) {
			return s.deadLetter(ctx, tx, event, enums.OutboxDLQReasonNonRetryable, err, topic)
		}

		nextAttempt := event.AttemptCount + 1
		if nextAttempt >= s.maxAttempts {
			terminal := fmt.Errorf("max publish attempts reached: %w", err)
			return s.deadLetter(ctx, tx, event, enums.OutboxDLQReasonMaxAttempts, terminal, topic)
		}

		logCtx := s.logg.WithFields(ctx, s.logFields(event, topic))
		logCtx = s.logg.WithField(logCtx, "attempt_count", nextAttempt)
		logCtx = s.logg.WithField(logCtx, "error", err.Error())
		s.logg.Warn(logCtx, "outbox publish failed, will retry")
		if markErr := s.repo.MarkFailedTx(tx, event.ID, err); markErr != nil {
			return fmt.Errorf("mark failure %s: %w", event.ID, markErr)
		}
		return nil
	}

	if err := s.repo.MarkPublishedTx(tx, event.ID); err != nil {
		return fmt.Errorf("mark published %s: %w", event.ID, err)
	}
	s.logg.Info(s.logg.WithFields(ctx, s.logFields(event, topic)), "outbox event published")
	return nil
}

// deadLetter copies the row into outbox_dlq and pins its attempt count so
// the fetch query never returns it again.
func (s *Service) deadLetter(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error, topic string) error {
	logCtx := s.logg.WithFields(ctx, s.logFields(event, topic))
	logCtx = s.logg.WithField(logCtx, "error_reason", string(reason))
	logCtx = s.logg.WithField(logCtx, "error", cause.Error())
	s.logg.Warn(logCtx, "outbox event moved to dlq")

	msg := cause.Error()
	entry := models.OutboxDLQ{
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &msg,
		AttemptCount:  event.AttemptCount,
		FailedAt:      time.Now().UTC(),
	}
	if err := s.dlq.InsertTx(tx, entry); err != nil {
		return fmt.Errorf("insert dlq %s: %w", event.ID, err)
	}
	if err := s.repo.MarkTerminalTx(tx, event.ID, cause, s.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, err)
	}
	return nil
}

func (s *Service) publish(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	topic := resolved.Descriptor.Topic
	pub := s.publisherOf(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher not configured for topic %s", topic))
	}

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	pending := pub.Publish(publishCtx, &gcppubsub.Message{
		Data: event.Payload,
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   event.AggregateID,
			"created_at":     event.CreatedAt.Format(time.RFC3339Nano),
		},
	})
	if pending == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher returned nil for topic %s", topic))
	}
	_, err := pending.Get(publishCtx)
	return err
}

func (s *Service) logFields(event models.OutboxEvent, topic string) map[string]any {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID,
		"attempt_count":  event.AttemptCount,
	}
	if topic != "" {
		fields["topic"] = topic
	}
	if event.LastError != nil {
		fields["last_error"] = *event.LastError
	}
	return fields
}

// idleBackoff doubles the retry delay per consecutive failure up to a
// ceiling and adds jitter so parallel publishers drift apart.
type idleBackoff struct {
	base    time.Duration
	ceiling time.Duration
	current time.Duration
	rng     *rand.Rand
}

func newIdleBackoff(base, ceiling time.Duration) *idleBackoff {
	return &idleBackoff{
		base:    base,
		ceiling: ceiling,
		current: base,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (b *idleBackoff) next() time.Duration {
	delay := b.jittered(b.current)
	b.current *= 2
	if b.current > b.ceiling {
		b.current = b.ceiling
	}
	return delay
}

func (b *idleBackoff) idle() time.Duration {
	return b.jittered(b.base)
}

func (b *idleBackoff) reset() {
	b.current = b.base
}

func (b *idleBackoff) jittered(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + time.Duration(b.rng.Int63n(int64(idleBackoffJitterSpan)))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func wrapPublisher(p *gcppubsub.Publisher) messagePublisher {
	if p == nil {
		return nil
	}
	return &gcpPublisher{inner: p}
}

type gcpPublisher struct {
	inner *gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) pendingPublish {
	if p == nil || p.inner == nil {
		return nil
	}
	return p.inner.Publish(ctx, msg)
}
