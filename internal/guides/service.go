package guides

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hyeonlabs/guideport-backend/pkg/db/models"
	pkgerrors "github.com/hyeonlabs/guideport-backend/pkg/errors"
	"github.com/hyeonlabs/guideport-backend/pkg/logger"
)

// NameResolver resolves guide ids to display names. Lookups are best-effort:
// unknown ids are simply absent from the result and failures degrade to an
// empty map, never an error.
type NameResolver interface {
	ResolveNames(ctx context.Context, ids []uuid.UUID) map[uuid.UUID]string
}

// CreateGuideInput captures the fields needed to register a guide.
type CreateGuideInput struct {
	DisplayName string
	Email       *string
}

// Service exposes guide directory operations.
type Service interface {
	NameResolver
	CreateGuide(ctx context.Context, input CreateGuideInput) (*models.Guide, error)
	GetGuide(ctx context.Context, id uuid.UUID) (*models.Guide, error)
	ListGuides(ctx context.Context) ([]models.Guide, error)
}

type service struct {
	repo Repository
	logg *logger.Logger
}

// NewService builds the guide directory service.
func NewService(repo Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("guides repository required")
	}
	return &service{repo: repo, logg: logg}, nil
}

func (s *service) CreateGuide(ctx context.Context, input CreateGuideInput) (*models.Guide, error) {
	name := strings.TrimSpace(input.DisplayName)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "display name required")
	}
	guide := &models.Guide{
		DisplayName: name,
		Email:       input.Email,
		Active:      true,
	}
	created, err := s.repo.Create(ctx, guide)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create guide")
	}
	return created, nil
}

func (s *service) GetGuide(ctx context.Context, id uuid.UUID) (*models.Guide, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "guide id required")
	}
	guide, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "guide not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load guide")
	}
	return guide, nil
}

func (s *service) ListGuides(ctx context.Context) ([]models.Guide, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list guides")
	}
	return rows, nil
}

// ResolveNames swallows lookup failures so settlement locking can proceed
// with blank names in the audit rows.
func (s *service) ResolveNames(ctx context.Context, ids []uuid.UUID) map[uuid.UUID]string {
	names := make(map[uuid.UUID]string, len(ids))
	if len(ids) == 0 {
		return names
	}
	rows, err := s.repo.FindByIDs(ctx, ids)
	if err != nil {
		if s.logg != nil {
			s.logg.Warn(s.logg.WithField(ctx, "guide_count", len(ids)), "guide name lookup failed, continuing with blank names")
		}
		return names
	}
	for _, row := range rows {
		names[row.ID] = row.DisplayName
	}
	return names
}
