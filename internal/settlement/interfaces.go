package settlement

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hyeonlabs/guideport-backend/pkg/db/models"
)

// Repository defines persistence operations for settlement runs and the
// per-guide rows they own. The run row doubles as the period lock: creating
// it is conditional on the primary key, so a second locker fails there.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateRun(ctx context.Context, run *models.SettlementRun) error
	FindRun(ctx context.Context, periodKey string) (*models.SettlementRun, error)
	CompleteRun(ctx context.Context, periodKey string, at time.Time) error
	ListRuns(ctx context.Context, limit int) ([]models.SettlementRun, error)
	// CollectConfirmedOrders returns every confirmed order assigned to the
	// period, ordered by creation time for deterministic batching.
	CollectConfirmedOrders(ctx context.Context, periodKey string) ([]models.Order, error)
	CreateGuideSettlements(ctx context.Context, rows []models.GuideSettlement) error
	// MarkOrdersSettled flips confirmed orders to settled and reports how
	// many rows actually changed. Orders canceled between collection and
	// commit simply fall out of the count.
	MarkOrdersSettled(ctx context.Context, orderIDs []uuid.UUID, at time.Time) (int64, error)
	MarkGuideOrdersSettled(ctx context.Context, orderIDs []uuid.UUID) error
	FindGuideRows(ctx context.Context, periodKey string) ([]models.GuideSettlement, error)
	FindGuideRow(ctx context.Context, periodKey string, guideID uuid.UUID) (*models.GuideSettlement, error)
	UpdateGuideRowPayout(ctx context.Context, periodKey string, guideID uuid.UUID, updates map[string]any) (int64, error)
	ListGuideRowsForGuide(ctx context.Context, guideID uuid.UUID, limit int) ([]models.GuideSettlement, error)
}
