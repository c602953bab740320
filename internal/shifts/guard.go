package shifts

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/franchisepos-backend/pkg/db"
	"github.com/angelmondragon/franchisepos-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/franchisepos-backend/pkg/errors"
)

// Guard gates monetary writes on an open cash drawer session. Callers run it
// as the first statement of the same transaction as the write it protects.
type Guard interface {
	Require(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, sessionID *uuid.UUID) (*models.CashDrawerSession, error)
}

type guard struct{}

// NewGuard returns the session guard.
func NewGuard() Guard {
	return guard{}
}

func (guard) Require(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, sessionID *uuid.UUID) (*models.CashDrawerSession, error) {
	if sessionID == nil || *sessionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeNoOpenShift, "cash drawer session id is required")
	}
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "session guard requires a transaction")
	}

	var session models.CashDrawerSession
	err := db.ForShare(tx.WithContext(ctx)).
		Where("id = ?", *sessionID).
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, closed(*sessionID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cash drawer session")
	}
	// A session from another tenant is indistinguishable from a missing one.
	if session.TenantID != tenantID || !session.IsOpen() {
		return nil, closed(*sessionID)
	}
	return &session, nil
}

func closed(id uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeShiftClosed, "cash drawer session is not open").
		WithDetails(map[string]any{"cashDrawerSessionId": id.String()})
}
