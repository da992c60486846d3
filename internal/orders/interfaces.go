package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hyeonlabs/guideport-backend/pkg/db/models"
	"github.com/hyeonlabs/guideport-backend/pkg/pagination"
)

// Repository defines persistence operations for the order tables. Writes to
// the status column are guarded so settlement remains the only writer that
// can flip an order to settled.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	NextOrderNumber(ctx context.Context) (int64, error)
	// UpdateWhereStatus applies updates only when the order currently holds
	// one of the expected statuses and reports how many rows changed.
	UpdateWhereStatus(ctx context.Context, orderID uuid.UUID, expected []string, updates map[string]any) (int64, error)
	UpsertGuideOrder(ctx context.Context, mirror *models.GuideOrder) error
	UpdateGuideOrder(ctx context.Context, guideID, orderID uuid.UUID, updates map[string]any) error
	ListAdminOrders(ctx context.Context, params pagination.Params, filters AdminOrderFilters) (*AdminOrderList, error)
	ListGuideOrders(ctx context.Context, guideID uuid.UUID, params pagination.Params, filters GuideOrderFilters) (*GuideOrderList, error)
}
