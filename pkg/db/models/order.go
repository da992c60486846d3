package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/hyeonlabs/guideport-backend/pkg/enums"
)

// Order represents a traveler's tour booking as seen by settlement. Amounts
// are whole currency units (KRW has no minor unit).
type Order struct {
	ID              uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber     int64             `gorm:"column:order_number;not null"`
	TravelerID      uuid.UUID         `gorm:"column:traveler_id;type:uuid;not null"`
	GuideID         uuid.UUID         `gorm:"column:guide_id;type:uuid;not null"`
	TourTitle       string            `gorm:"column:tour_title;not null"`
	Amount          int64             `gorm:"column:amount;not null"`
	Currency        enums.Currency    `gorm:"column:currency;type:text;not null;default:'KRW'"`
	Status          enums.OrderStatus `gorm:"column:status;type:text;not null;default:'paid'"`
	SettlementMonth *string           `gorm:"column:settlement_month;type:text"`
	ConfirmedAt     *time.Time        `gorm:"column:confirmed_at"`
	SettledAt       *time.Time        `gorm:"column:settled_at"`
	CanceledAt      *time.Time        `gorm:"column:canceled_at"`
	CreatedAt       time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
