package guides

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hyeonlabs/guideport-backend/pkg/db/models"
)

// Repository defines persistence operations for the guide directory.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, guide *models.Guide) (*models.Guide, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Guide, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Guide, error)
	List(ctx context.Context) ([]models.Guide, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a guide repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, guide *models.Guide) (*models.Guide, error) {
	if err := r.db.WithContext(ctx).Create(guide).Error; err != nil {
		return nil, err
	}
	return guide, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Guide, error) {
	var guide models.Guide
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&guide).Error
	if err != nil {
		return nil, err
	}
	return &guide, nil
}

func (r *repository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Guide, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.Guide
	err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) List(ctx context.Context) ([]models.Guide, error) {
	var rows []models.Guide
	err := r.db.WithContext(ctx).
		Order("display_name ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
