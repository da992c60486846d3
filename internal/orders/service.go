package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hyeonlabs/guideport-backend/pkg/db"
	"github.com/hyeonlabs/guideport-backend/pkg/db/models"
	"github.com/hyeonlabs/guideport-backend/pkg/enums"
	pkgerrors "github.com/hyeonlabs/guideport-backend/pkg/errors"
	"github.com/hyeonlabs/guideport-backend/pkg/outbox"
	"github.com/hyeonlabs/guideport-backend/pkg/pagination"
	"github.com/hyeonlabs/guideport-backend/pkg/period"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// orderNumberAttempts bounds re-allocation when concurrent checkouts collide
// on the order_number unique index.
const orderNumberAttempts = 3

var errOrderNumberTaken = errors.New("order number already taken")

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service defines order lifecycle operations up to the settlement boundary.
// Flipping an order to settled is owned by the settlement ledger, not here.
type Service interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error)
	ConfirmOrder(ctx context.Context, input ConfirmOrderInput) (*models.Order, error)
	CancelOrder(ctx context.Context, input CancelOrderInput) error
	GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	ListAdminOrders(ctx context.Context, params pagination.Params, filters AdminOrderFilters) (*AdminOrderList, error)
	ListGuideOrders(ctx context.Context, guideID uuid.UUID, params pagination.Params, filters GuideOrderFilters) (*GuideOrderList, error)
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
	now    func() time.Time
}

// CreateOrderInput captures a paid booking entering the ledger.
type CreateOrderInput struct {
	TravelerID      uuid.UUID
	GuideID         uuid.UUID
	TourTitle       string
	Amount          int64
	Currency        enums.Currency
	SettlementMonth *period.Key
}

// ConfirmOrderInput captures an admin confirming payment for an order.
type ConfirmOrderInput struct {
	OrderID         uuid.UUID
	SettlementMonth *period.Key
	ActorID         uuid.UUID
	ActorRole       string
}

// CancelOrderInput captures an admin voiding an order before settlement.
type CancelOrderInput struct {
	OrderID   uuid.UUID
	ActorID   uuid.UUID
	ActorRole string
}

// OrderCreatedEvent is emitted when a paid booking is recorded.
type OrderCreatedEvent struct {
	OrderID         uuid.UUID         `json:"order_id"`
	OrderNumber     int64             `json:"order_number"`
	TravelerID      uuid.UUID         `json:"traveler_id"`
	GuideID         uuid.UUID         `json:"guide_id"`
	Amount          int64             `json:"amount"`
	Currency        enums.Currency    `json:"currency"`
	Status          enums.OrderStatus `json:"status"`
	SettlementMonth string            `json:"settlement_month"`
}

// OrderConfirmedEvent is emitted when payment is confirmed.
type OrderConfirmedEvent struct {
	OrderID         uuid.UUID `json:"order_id"`
	GuideID         uuid.UUID `json:"guide_id"`
	Amount          int64     `json:"amount"`
	SettlementMonth string    `json:"settlement_month"`
	ConfirmedAt     time.Time `json:"confirmed_at"`
}

// OrderCanceledEvent is emitted when an order is voided.
type OrderCanceledEvent struct {
	OrderID    uuid.UUID         `json:"order_id"`
	GuideID    uuid.UUID         `json:"guide_id"`
	PriorState enums.OrderStatus `json:"prior_state"`
}

// NewService builds an order service with the required dependencies.
func NewService(repo Repository, tx txRunner, outboxSvc outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:   repo,
		tx:     tx,
		outbox: outboxSvc,
		now:    time.Now,
	}, nil
}

func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	if input.TravelerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "traveler id required")
	}
	if strings.TrimSpace(input.TourTitle) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tour title required")
	}
	if input.Amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	currency := input.Currency
	if currency == "" {
		currency = enums.CurrencyKRW
	}
	if !currency.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported currency %q", currency))
	}
	if input.SettlementMonth != nil && !input.SettlementMonth.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid settlement month %q", *input.SettlementMonth))
	}

	now := s.now()
	month := period.FromTime(now)
	if input.SettlementMonth != nil {
		month = *input.SettlementMonth
	}
	monthStr := month.String()

	// Numbers come from MAX+1, so two orders landing together can race to
	// the same value. The unique index catches the loser; retry with a
	// fresh transaction instead of surfacing a dependency failure.
	var created *models.Order
	var err error
	for attempt := 0; attempt < orderNumberAttempts; attempt++ {
		created = nil
		err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)

			number, err := repo.NextOrderNumber(ctx)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "allocate order number")
			}

			order := &models.Order{
				OrderNumber:     number,
				TravelerID:      input.TravelerID,
				GuideID:         input.GuideID,
				TourTitle:       strings.TrimSpace(input.TourTitle),
				Amount:          input.Amount,
				Currency:        currency,
				Status:          enums.OrderStatusPaid,
				SettlementMonth: &monthStr,
			}
			created, err = repo.Create(ctx, order)
			if err != nil {
				if db.IsUniqueViolation(err, "ux_orders_order_number") {
					return errOrderNumberTaken
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
			}

			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventOrderCreated,
				AggregateType: enums.AggregateOrder,
				AggregateID:   created.ID.String(),
				Version:       1,
				Data: OrderCreatedEvent{
					OrderID:         created.ID,
					OrderNumber:     created.OrderNumber,
					TravelerID:      created.TravelerID,
					GuideID:         created.GuideID,
					Amount:          created.Amount,
					Currency:        created.Currency,
					Status:          created.Status,
					SettlementMonth: monthStr,
				},
			})
		})
		if !errors.Is(err, errOrderNumberTaken) {
			break
		}
	}
	if errors.Is(err, errOrderNumberTaken) {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "order number contention, retry the request")
	}
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *service) ConfirmOrder(ctx context.Context, input ConfirmOrderInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}
	if input.SettlementMonth != nil && !input.SettlementMonth.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid settlement month %q", *input.SettlementMonth))
	}

	var confirmed *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindByID(ctx, input.OrderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("order %s not found", input.OrderID))
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.GuideID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeMissingGuide, fmt.Sprintf("order %s has no guide reference", order.ID))
		}
		if order.Status != enums.OrderStatusPaid {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("order %s cannot be confirmed from status %s", order.ID, order.Status))
		}

		now := s.now()
		month := resolveSettlementMonth(input.SettlementMonth, order.SettlementMonth, now)

		updates := map[string]any{
			"status":           enums.OrderStatusConfirmed,
			"confirmed_at":     now,
			"settlement_month": month,
		}
		// Conditional update: a concurrent confirm or cancel loses the race
		// here rather than silently double-applying.
		affected, err := repo.UpdateWhereStatus(ctx, order.ID, []string{enums.OrderStatusPaid.String()}, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "confirm order")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("order %s was updated concurrently", order.ID))
		}

		mirror := &models.GuideOrder{
			GuideID:         order.GuideID,
			OrderID:         order.ID,
			TourTitle:       order.TourTitle,
			Amount:          order.Amount,
			Status:          enums.OrderStatusConfirmed,
			SettlementMonth: month,
			ConfirmedAt:     now,
		}
		if err := repo.UpsertGuideOrder(ctx, mirror); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mirror guide order")
		}

		order.Status = enums.OrderStatusConfirmed
		order.ConfirmedAt = &now
		order.SettlementMonth = &month
		confirmed = order

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderConfirmed,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID.String(),
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.ActorID, Role: input.ActorRole},
			Data: OrderConfirmedEvent{
				OrderID:         order.ID,
				GuideID:         order.GuideID,
				Amount:          order.Amount,
				SettlementMonth: month,
				ConfirmedAt:     now,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return confirmed, nil
}

func (s *service) CancelOrder(ctx context.Context, input CancelOrderInput) error {
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.ActorID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindByID(ctx, input.OrderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("order %s not found", input.OrderID))
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.Status == enums.OrderStatusSettled {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("order %s is settled and cannot be canceled", order.ID))
		}
		if order.Status == enums.OrderStatusCanceled {
			return nil
		}

		now := s.now()
		updates := map[string]any{
			"status":      enums.OrderStatusCanceled,
			"canceled_at": now,
		}
		cancelable := []string{enums.OrderStatusPaid.String(), enums.OrderStatusConfirmed.String()}
		affected, err := repo.UpdateWhereStatus(ctx, order.ID, cancelable, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("order %s was updated concurrently", order.ID))
		}

		if order.Status == enums.OrderStatusConfirmed {
			mirrorUpdates := map[string]any{"status": enums.OrderStatusCanceled}
			if err := repo.UpdateGuideOrder(ctx, order.GuideID, order.ID, mirrorUpdates); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update guide order mirror")
			}
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCanceled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID.String(),
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.ActorID, Role: input.ActorRole},
			Data: OrderCanceledEvent{
				OrderID:    order.ID,
				GuideID:    order.GuideID,
				PriorState: order.Status,
			},
		})
	})
}

func (s *service) GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("order %s not found", orderID))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) ListAdminOrders(ctx context.Context, params pagination.Params, filters AdminOrderFilters) (*AdminOrderList, error) {
	list, err := s.repo.ListAdminOrders(ctx, params, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return list, nil
}

func (s *service) ListGuideOrders(ctx context.Context, guideID uuid.UUID, params pagination.Params, filters GuideOrderFilters) (*GuideOrderList, error) {
	if guideID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "guide id required")
	}
	list, err := s.repo.ListGuideOrders(ctx, guideID, params, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list guide orders")
	}
	return list, nil
}

func resolveSettlementMonth(requested *period.Key, existing *string, now time.Time) string {
	if requested != nil {
		return requested.String()
	}
	if existing != nil && *existing != "" {
		return *existing
	}
	return period.FromTime(now).String()
}
