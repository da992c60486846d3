package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/hyeonlabs/guideport-backend/pkg/enums"
)

// GuideOrder mirrors an order into the owning guide's read view. Rows are
// written when an order is confirmed and updated in lockstep with the
// source order afterwards.
type GuideOrder struct {
	GuideID         uuid.UUID         `gorm:"column:guide_id;type:uuid;primaryKey"`
	OrderID         uuid.UUID         `gorm:"column:order_id;type:uuid;primaryKey"`
	TourTitle       string            `gorm:"column:tour_title;not null"`
	Amount          int64             `gorm:"column:amount;not null"`
	Status          enums.OrderStatus `gorm:"column:status;type:text;not null"`
	SettlementMonth string            `gorm:"column:settlement_month;type:text;not null"`
	ConfirmedAt     time.Time         `gorm:"column:confirmed_at;not null"`
	CreatedAt       time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
