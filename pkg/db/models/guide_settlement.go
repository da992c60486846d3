package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/hyeonlabs/guideport-backend/pkg/enums"
	"github.com/hyeonlabs/guideport-backend/pkg/types"
)

// GuideSettlement is one guide's locked share of a settlement run. The
// monetary columns are snapshots from lock time; only the payout columns
// change afterwards.
type GuideSettlement struct {
	PeriodKey       string                     `gorm:"column:period_key;type:text;primaryKey"`
	GuideID         uuid.UUID                  `gorm:"column:guide_id;type:uuid;primaryKey"`
	GuideName       string                     `gorm:"column:guide_name;not null"`
	Gross           int64                      `gorm:"column:gross;not null"`
	Fee             int64                      `gorm:"column:fee;not null"`
	Net             int64                      `gorm:"column:net;not null"`
	OrderCount      int                        `gorm:"column:order_count;not null"`
	OrderLines      types.SettlementOrderLines `gorm:"column:order_lines;type:jsonb;serializer:json"`
	PayoutStatus    enums.PayoutStatus         `gorm:"column:payout_status;type:text;not null;default:'unpaid'"`
	PayoutMethod    *string                    `gorm:"column:payout_method"`
	PayoutReference *string                    `gorm:"column:payout_reference"`
	PaidAt          *time.Time                 `gorm:"column:paid_at"`
	PaidBy          *uuid.UUID                 `gorm:"column:paid_by;type:uuid"`
	CreatedAt       time.Time                  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time                  `gorm:"column:updated_at;autoUpdateTime"`
}
