package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/franchisepos-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/franchisepos-backend/pkg/errors"
)

// Service exposes read access to committed transactions.
type Service interface {
	Get(ctx context.Context, tenantID, id uuid.UUID) (*models.Transaction, error)
	Refundable(ctx context.Context, tenantID, id uuid.UUID) ([]LineAvailability, error)
}

type service struct {
	repo Repository
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Get(ctx context.Context, tenantID, id uuid.UUID) (*models.Transaction, error) {
	txn, err := s.repo.FindByID(ctx, id, false)
	if err != nil {
		return nil, LookupError(err)
	}
	if txn.TenantID != tenantID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "transaction belongs to another tenant")
	}
	return txn, nil
}

func (s *service) Refundable(ctx context.Context, tenantID, id uuid.UUID) ([]LineAvailability, error) {
	txn, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	refunds, err := s.repo.ListRefundsFor(ctx, txn.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load prior refunds")
	}
	return NewTally(txn, refunds).Availability(txn), nil
}

// LookupError maps a transaction lookup failure to the caller-facing code.
func LookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load transaction")
}
