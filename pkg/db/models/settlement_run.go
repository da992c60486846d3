package models

import (
	"time"

	"github.com/google/uuid"
)

// SettlementRun is the immutable lock record for a settlement period. The
// period key is the primary key, so creating the row doubles as the lock
// acquisition: a second lock attempt hits the unique constraint.
type SettlementRun struct {
	PeriodKey     string     `gorm:"column:period_key;type:text;primaryKey"`
	CommissionPct int        `gorm:"column:commission_pct;not null"`
	TotalGross    int64      `gorm:"column:total_gross;not null"`
	TotalFee      int64      `gorm:"column:total_fee;not null"`
	TotalNet      int64      `gorm:"column:total_net;not null"`
	OrderCount    int        `gorm:"column:order_count;not null"`
	GuideCount    int        `gorm:"column:guide_count;not null"`
	LockedBy      uuid.UUID  `gorm:"column:locked_by;type:uuid;not null"`
	LockedAt      time.Time  `gorm:"column:locked_at;not null"`
	CompletedAt   *time.Time `gorm:"column:completed_at"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
