package settlement

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hyeonlabs/guideport-backend/pkg/db/models"
	"github.com/hyeonlabs/guideport-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a settlement repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateRun(ctx context.Context, run *models.SettlementRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

func (r *repository) FindRun(ctx context.Context, periodKey string) (*models.SettlementRun, error) {
	var run models.SettlementRun
	err := r.db.WithContext(ctx).
		Where("period_key = ?", periodKey).
		First(&run).Error
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *repository) CompleteRun(ctx context.Context, periodKey string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.SettlementRun{}).
		Where("period_key = ?", periodKey).
		Updates(map[string]any{"completed_at": at}).Error
}

func (r *repository) ListRuns(ctx context.Context, limit int) ([]models.SettlementRun, error) {
	var runs []models.SettlementRun
	query := r.db.WithContext(ctx).Order("period_key DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

func (r *repository) CollectConfirmedOrders(ctx context.Context, periodKey string) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Where("status = ? AND settlement_month = ?", enums.OrderStatusConfirmed, periodKey).
		Order("created_at ASC").
		Order("id ASC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repository) CreateGuideSettlements(ctx context.Context, rows []models.GuideSettlement) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&rows).Error
}

func (r *repository) MarkOrdersSettled(ctx context.Context, orderIDs []uuid.UUID, at time.Time) (int64, error) {
	if len(orderIDs) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id IN ? AND status = ?", orderIDs, enums.OrderStatusConfirmed).
		Updates(map[string]any{
			"status":     enums.OrderStatusSettled,
			"settled_at": at,
		})
	return res.RowsAffected, res.Error
}

func (r *repository) MarkGuideOrdersSettled(ctx context.Context, orderIDs []uuid.UUID) error {
	if len(orderIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.GuideOrder{}).
		Where("order_id IN ? AND status = ?", orderIDs, enums.OrderStatusConfirmed).
		Updates(map[string]any{"status": enums.OrderStatusSettled}).Error
}

func (r *repository) FindGuideRows(ctx context.Context, periodKey string) ([]models.GuideSettlement, error) {
	var rows []models.GuideSettlement
	err := r.db.WithContext(ctx).
		Where("period_key = ?", periodKey).
		Order("guide_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) FindGuideRow(ctx context.Context, periodKey string, guideID uuid.UUID) (*models.GuideSettlement, error) {
	var row models.GuideSettlement
	err := r.db.WithContext(ctx).
		Where("period_key = ? AND guide_id = ?", periodKey, guideID).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) UpdateGuideRowPayout(ctx context.Context, periodKey string, guideID uuid.UUID, updates map[string]any) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.GuideSettlement{}).
		Where("period_key = ? AND guide_id = ?", periodKey, guideID).
		Updates(updates)
	return res.RowsAffected, res.Error
}

func (r *repository) ListGuideRowsForGuide(ctx context.Context, guideID uuid.UUID, limit int) ([]models.GuideSettlement, error) {
	var rows []models.GuideSettlement
	query := r.db.WithContext(ctx).
		Where("guide_id = ?", guideID).
		Order("period_key DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
