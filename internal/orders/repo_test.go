package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/hyeonlabs/guideport-backend/pkg/db/models"
	"github.com/hyeonlabs/guideport-backend/pkg/enums"
	"github.com/hyeonlabs/guideport-backend/pkg/pagination"
	"github.com/hyeonlabs/guideport-backend/pkg/period"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	ordersTable := `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  order_number INTEGER NOT NULL,
  traveler_id TEXT NOT NULL,
  guide_id TEXT NOT NULL,
  tour_title TEXT NOT NULL,
  amount INTEGER NOT NULL,
  currency TEXT NOT NULL,
  status TEXT NOT NULL,
  settlement_month TEXT,
  confirmed_at DATETIME,
  settled_at DATETIME,
  canceled_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	guideOrdersTable := `
CREATE TABLE IF NOT EXISTS guide_orders (
  guide_id TEXT NOT NULL,
  order_id TEXT NOT NULL,
  tour_title TEXT NOT NULL,
  amount INTEGER NOT NULL,
  status TEXT NOT NULL,
  settlement_month TEXT NOT NULL,
  confirmed_at DATETIME NOT NULL,
  created_at DATETIME,
  updated_at DATETIME,
  PRIMARY KEY (guide_id, order_id)
);`
	require.NoError(t, db.Exec(ordersTable).Error)
	require.NoError(t, db.Exec(guideOrdersTable).Error)
	return db
}

func newOrder(t *testing.T, db *gorm.DB, guideID uuid.UUID, month string, status enums.OrderStatus, amount int64) *models.Order {
	t.Helper()

	order := &models.Order{
		ID:              uuid.New(),
		OrderNumber:     time.Now().UnixNano(),
		TravelerID:      uuid.New(),
		GuideID:         guideID,
		TourTitle:       "Gyeongbokgung walking tour",
		Amount:          amount,
		Currency:        enums.CurrencyKRW,
		Status:          status,
		SettlementMonth: &month,
	}
	require.NoError(t, db.Create(order).Error)
	return order
}

func TestUpdateWhereStatusGuardsTransitions(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	guideID := uuid.New()
	order := newOrder(t, db, guideID, "2026-05", enums.OrderStatusPaid, 50000)

	affected, err := repo.UpdateWhereStatus(ctx, order.ID,
		[]string{enums.OrderStatusPaid.String()},
		map[string]any{"status": enums.OrderStatusConfirmed, "confirmed_at": time.Now()})
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	// Second confirm loses the guard.
	affected, err = repo.UpdateWhereStatus(ctx, order.ID,
		[]string{enums.OrderStatusPaid.String()},
		map[string]any{"status": enums.OrderStatusConfirmed})
	require.NoError(t, err)
	assert.Equal(t, int64(0), affected)

	reloaded, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusConfirmed, reloaded.Status)
}

func TestUpsertGuideOrderIsIdempotent(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	guideID := uuid.New()
	orderID := uuid.New()
	now := time.Now()

	mirror := &models.GuideOrder{
		GuideID:         guideID,
		OrderID:         orderID,
		TourTitle:       "DMZ tour",
		Amount:          70000,
		Status:          enums.OrderStatusConfirmed,
		SettlementMonth: "2026-05",
		ConfirmedAt:     now,
	}
	require.NoError(t, repo.UpsertGuideOrder(ctx, mirror))

	updated := *mirror
	updated.SettlementMonth = "2026-06"
	require.NoError(t, repo.UpsertGuideOrder(ctx, &updated))

	var count int64
	require.NoError(t, db.Model(&models.GuideOrder{}).
		Where("guide_id = ? AND order_id = ?", guideID, orderID).
		Count(&count).Error)
	assert.Equal(t, int64(1), count)

	var row models.GuideOrder
	require.NoError(t, db.Where("guide_id = ? AND order_id = ?", guideID, orderID).First(&row).Error)
	assert.Equal(t, "2026-06", row.SettlementMonth)
}

func TestListAdminOrdersFilters(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	guideID := uuid.New()
	month := "2031-04"
	confirmed := newOrder(t, db, guideID, month, enums.OrderStatusConfirmed, 10000)
	newOrder(t, db, guideID, month, enums.OrderStatusPaid, 20000)
	newOrder(t, db, uuid.New(), month, enums.OrderStatusConfirmed, 30000)

	status := enums.OrderStatusConfirmed
	key := period.Key(month)
	list, err := repo.ListAdminOrders(ctx, pagination.Params{}, AdminOrderFilters{
		Status:    &status,
		PeriodKey: &key,
		GuideID:   &guideID,
	})
	require.NoError(t, err)
	require.Len(t, list.Orders, 1)
	assert.Equal(t, confirmed.ID, list.Orders[0].ID)
	assert.Empty(t, list.NextCursor)
}

func TestListGuideOrdersPagination(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	guideID := uuid.New()
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		mirror := &models.GuideOrder{
			GuideID:         guideID,
			OrderID:         uuid.New(),
			TourTitle:       "Han river cruise",
			Amount:          int64(10000 * (i + 1)),
			Status:          enums.OrderStatusConfirmed,
			SettlementMonth: "2031-05",
			ConfirmedAt:     base.Add(time.Duration(i) * time.Minute),
			CreatedAt:       base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, db.Create(mirror).Error)
	}

	first, err := repo.ListGuideOrders(ctx, guideID, pagination.Params{Limit: 2}, GuideOrderFilters{})
	require.NoError(t, err)
	require.Len(t, first.Orders, 2)
	require.NotEmpty(t, first.NextCursor)

	second, err := repo.ListGuideOrders(ctx, guideID, pagination.Params{Limit: 2, Cursor: first.NextCursor}, GuideOrderFilters{})
	require.NoError(t, err)
	require.Len(t, second.Orders, 1)
	assert.Empty(t, second.NextCursor)

	seen := map[uuid.UUID]bool{}
	for _, row := range append(first.Orders, second.Orders...) {
		seen[row.OrderID] = true
	}
	assert.Len(t, seen, 3)
}
