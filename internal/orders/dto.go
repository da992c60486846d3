package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/hyeonlabs/guideport-backend/pkg/enums"
	"github.com/hyeonlabs/guideport-backend/pkg/period"
)

// AdminOrderFilters describe the inputs supported by the admin orders list.
type AdminOrderFilters struct {
	Status    *enums.OrderStatus
	PeriodKey *period.Key
	GuideID   *uuid.UUID
	DateFrom  *time.Time
	DateTo    *time.Time
}

// GuideOrderFilters describe the inputs supported by the guide orders list.
type GuideOrderFilters struct {
	Status    *enums.OrderStatus
	PeriodKey *period.Key
}

// OrderSummary exposes the aggregated fields returned in order lists.
type OrderSummary struct {
	ID              uuid.UUID         `json:"id"`
	OrderNumber     int64             `json:"order_number"`
	TravelerID      uuid.UUID         `json:"traveler_id"`
	GuideID         uuid.UUID         `json:"guide_id"`
	TourTitle       string            `json:"tour_title"`
	Amount          int64             `json:"amount"`
	Currency        enums.Currency    `json:"currency"`
	Status          enums.OrderStatus `json:"status"`
	SettlementMonth *string           `json:"settlement_month,omitempty"`
	ConfirmedAt     *time.Time        `json:"confirmed_at,omitempty"`
	SettledAt       *time.Time        `json:"settled_at,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
}

// AdminOrderList wraps the paginated orders plus the next page cursor.
type AdminOrderList struct {
	Orders     []OrderSummary `json:"orders"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// GuideOrderSummary exposes the mirror fields returned to guide callers.
type GuideOrderSummary struct {
	OrderID         uuid.UUID         `json:"order_id"`
	TourTitle       string            `json:"tour_title"`
	Amount          int64             `json:"amount"`
	Status          enums.OrderStatus `json:"status"`
	SettlementMonth string            `json:"settlement_month"`
	ConfirmedAt     time.Time         `json:"confirmed_at"`
}

// GuideOrderList wraps paginated guide orders plus the next cursor.
type GuideOrderList struct {
	Orders     []GuideOrderSummary `json:"orders"`
	NextCursor string              `json:"next_cursor,omitempty"`
}
