package capabilities

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/franchisepos-backend/pkg/db/models"
)

// Repository persists the per-tenant offline capability gate.
type Repository interface {
	Find(ctx context.Context, tenantID uuid.UUID) (*models.TenantOfflineCapability, error)
	Upsert(ctx context.Context, capability *models.TenantOfflineCapability) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Find(ctx context.Context, tenantID uuid.UUID) (*models.TenantOfflineCapability, error) {
	var capability models.TenantOfflineCapability
	if err := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).First(&capability).Error; err != nil {
		return nil, err
	}
	return &capability, nil
}

func (r *repository) Upsert(ctx context.Context, capability *models.TenantOfflineCapability) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"terms_accepted_at", "risk_acknowledged_at", "accepted_by", "updated_at"}),
		}).
		Create(capability).Error
}
