package shifts

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/franchisepos-backend/pkg/db"
	"github.com/angelmondragon/franchisepos-backend/pkg/db/models"
)

const openSessionConstraint = "ux_cash_drawer_sessions_open_location"

// Repository persists cash drawer sessions and drawer events.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateSession(ctx context.Context, session *models.CashDrawerSession) error
	FindSession(ctx context.Context, id uuid.UUID, forUpdate bool) (*models.CashDrawerSession, error)
	FindOpenByLocation(ctx context.Context, tenantID, locationID uuid.UUID) (*models.CashDrawerSession, error)
	SaveSession(ctx context.Context, session *models.CashDrawerSession) error
	CreateDrawerEvent(ctx context.Context, event *models.DrawerEvent) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository binds the shift repository to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateSession(ctx context.Context, session *models.CashDrawerSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *repository) FindSession(ctx context.Context, id uuid.UUID, forUpdate bool) (*models.CashDrawerSession, error) {
	q := r.db.WithContext(ctx)
	if forUpdate {
		q = db.ForUpdate(q)
	}
	var session models.CashDrawerSession
	if err := q.Where("id = ?", id).First(&session).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *repository) FindOpenByLocation(ctx context.Context, tenantID, locationID uuid.UUID) (*models.CashDrawerSession, error) {
	var session models.CashDrawerSession
	if err := db.ForUpdate(r.db.WithContext(ctx)).
		Where("tenant_id = ? AND location_id = ? AND end_time IS NULL", tenantID, locationID).
		Order("start_time DESC").
		First(&session).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *repository) SaveSession(ctx context.Context, session *models.CashDrawerSession) error {
	return r.db.WithContext(ctx).Save(session).Error
}

func (r *repository) CreateDrawerEvent(ctx context.Context, event *models.DrawerEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}
