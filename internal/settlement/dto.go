package settlement

import (
	"time"

	"github.com/google/uuid"

	"github.com/hyeonlabs/guideport-backend/pkg/db/models"
	"github.com/hyeonlabs/guideport-backend/pkg/period"
)

// PreviewInput requests a dry-run aggregation for a period.
type PreviewInput struct {
	PeriodKey     period.Key
	CommissionPct *int
}

// GuidePreview is one guide's would-be settlement in a preview.
type GuidePreview struct {
	GuideID    uuid.UUID `json:"guide_id"`
	GuideName  string    `json:"guide_name"`
	OrderCount int       `json:"order_count"`
	Gross      int64     `json:"gross"`
	Fee        int64     `json:"fee"`
	Net        int64     `json:"net"`
}

// PreviewResult is a read-only projection of what a lock would commit.
type PreviewResult struct {
	PeriodKey     string         `json:"period_key"`
	CommissionPct int            `json:"commission_pct"`
	Locked        bool           `json:"locked"`
	Totals        Totals         `json:"totals"`
	Guides        []GuidePreview `json:"guides"`
}

// LockInput captures an admin locking a period for settlement.
type LockInput struct {
	PeriodKey     period.Key
	CommissionPct *int
	ActorID       uuid.UUID
	ActorRole     string
}

// LockResult reports the committed run and its guide rows.
type LockResult struct {
	Run    *models.SettlementRun
	Guides []models.GuideSettlement
}

// ResumeInput captures an admin retrying a partially committed run.
type ResumeInput struct {
	PeriodKey period.Key
	ActorID   uuid.UUID
	ActorRole string
}

// ResumeResult reports how much work the resume finished.
type ResumeResult struct {
	Run           *models.SettlementRun
	OrdersSettled int
}

// MarkPaidInput captures an admin recording a payout against a guide row.
// Re-marking is allowed; method and reference are last-write-wins.
type MarkPaidInput struct {
	PeriodKey period.Key
	GuideID   uuid.UUID
	Method    string
	Reference string
	ActorID   uuid.UUID
	ActorRole string
}

// RunDetail bundles a settlement run with its guide rows.
type RunDetail struct {
	Run    *models.SettlementRun
	Guides []models.GuideSettlement
}

// SettlementLockedEvent is emitted once when a period commit completes.
type SettlementLockedEvent struct {
	PeriodKey     string    `json:"period_key"`
	CommissionPct int       `json:"commission_pct"`
	OrderCount    int       `json:"order_count"`
	GuideCount    int       `json:"guide_count"`
	TotalGross    int64     `json:"total_gross"`
	TotalFee      int64     `json:"total_fee"`
	TotalNet      int64     `json:"total_net"`
	LockedAt      time.Time `json:"locked_at"`
}

// SettlementResumedEvent is emitted when a partial run is brought to
// completion.
type SettlementResumedEvent struct {
	PeriodKey     string `json:"period_key"`
	OrdersSettled int    `json:"orders_settled"`
}

// SettlementPayoutPaidEvent is emitted the first time a guide row is marked
// paid for a period.
type SettlementPayoutPaidEvent struct {
	PeriodKey string    `json:"period_key"`
	GuideID   uuid.UUID `json:"guide_id"`
	Method    string    `json:"method"`
	Reference string    `json:"reference"`
	PaidAt    time.Time `json:"paid_at"`
}
