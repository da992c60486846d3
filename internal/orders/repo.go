package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/hyeonlabs/guideport-backend/pkg/db/models"
	"github.com/hyeonlabs/guideport-backend/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) NextOrderNumber(ctx context.Context) (int64, error) {
	var max int64
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Select("COALESCE(MAX(order_number), 0)").
		Scan(&max).Error
	if err != nil {
		return 0, err
	}
	return max + 1, nil
}

func (r *repository) UpdateWhereStatus(ctx context.Context, orderID uuid.UUID, expected []string, updates map[string]any) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status IN ?", orderID, expected).
		Updates(updates)
	return res.RowsAffected, res.Error
}

func (r *repository) UpsertGuideOrder(ctx context.Context, mirror *models.GuideOrder) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "guide_id"}, {Name: "order_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"tour_title", "amount", "status", "settlement_month", "confirmed_at", "updated_at",
			}),
		}).
		Create(mirror).Error
}

func (r *repository) UpdateGuideOrder(ctx context.Context, guideID, orderID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.GuideOrder{}).
		Where("guide_id = ? AND order_id = ?", guideID, orderID).
		Updates(updates).Error
}

func (r *repository) ListAdminOrders(ctx context.Context, params pagination.Params, filters AdminOrderFilters) (*AdminOrderList, error) {
	limit := pagination.NormalizeLimit(params.Limit)
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}

	query := r.db.WithContext(ctx).Model(&models.Order{})
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.PeriodKey != nil {
		query = query.Where("settlement_month = ?", filters.PeriodKey.String())
	}
	if filters.GuideID != nil {
		query = query.Where("guide_id = ?", *filters.GuideID)
	}
	if filters.DateFrom != nil {
		query = query.Where("created_at >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("created_at < ?", *filters.DateTo)
	}
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Order
	err = query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit + 1).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	list := &AdminOrderList{Orders: make([]OrderSummary, 0, len(rows))}
	if len(rows) > limit {
		last := rows[limit-1]
		list.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
		rows = rows[:limit]
	}
	for _, row := range rows {
		list.Orders = append(list.Orders, toOrderSummary(row))
	}
	return list, nil
}

func (r *repository) ListGuideOrders(ctx context.Context, guideID uuid.UUID, params pagination.Params, filters GuideOrderFilters) (*GuideOrderList, error) {
	limit := pagination.NormalizeLimit(params.Limit)
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}

	query := r.db.WithContext(ctx).
		Model(&models.GuideOrder{}).
		Where("guide_id = ?", guideID)
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.PeriodKey != nil {
		query = query.Where("settlement_month = ?", filters.PeriodKey.String())
	}
	if cursor != nil {
		query = query.Where("(created_at, order_id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var rows []models.GuideOrder
	err = query.
		Order("created_at DESC").
		Order("order_id DESC").
		Limit(limit + 1).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	list := &GuideOrderList{Orders: make([]GuideOrderSummary, 0, len(rows))}
	if len(rows) > limit {
		last := rows[limit-1]
		list.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.OrderID})
		rows = rows[:limit]
	}
	for _, row := range rows {
		list.Orders = append(list.Orders, GuideOrderSummary{
			OrderID:         row.OrderID,
			TourTitle:       row.TourTitle,
			Amount:          row.Amount,
			Status:          row.Status,
			SettlementMonth: row.SettlementMonth,
			ConfirmedAt:     row.ConfirmedAt,
		})
	}
	return list, nil
}

func toOrderSummary(order models.Order) OrderSummary {
	return OrderSummary{
		ID:              order.ID,
		OrderNumber:     order.OrderNumber,
		TravelerID:      order.TravelerID,
		GuideID:         order.GuideID,
		TourTitle:       order.TourTitle,
		Amount:          order.Amount,
		Currency:        order.Currency,
		Status:          order.Status,
		SettlementMonth: order.SettlementMonth,
		ConfirmedAt:     order.ConfirmedAt,
		SettledAt:       order.SettledAt,
		CreatedAt:       order.CreatedAt,
	}
}
