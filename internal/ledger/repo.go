package ledger

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/franchisepos-backend/pkg/db"
	"github.com/angelmondragon/franchisepos-backend/pkg/db/models"
	"github.com/angelmondragon/franchisepos-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/franchisepos-backend/pkg/errors"
)

// IdempotencyConstraint is the unique index backing client idempotency keys.
const IdempotencyConstraint = "ux_transactions_idempotency"

// Repository persists transactions, their line items and product stock.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateTransaction(ctx context.Context, txn *models.Transaction) error
	FindByID(ctx context.Context, id uuid.UUID, forUpdate bool) (*models.Transaction, error)
	FindByIdempotencyKey(ctx context.Context, tenantID uuid.UUID, key string) (*models.Transaction, error)
	ListRefundsFor(ctx context.Context, originalID uuid.UUID) ([]models.Transaction, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.TransactionStatus) error
	AdjustStock(ctx context.Context, tenantID, productID uuid.UUID, delta int) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// CreateTransaction inserts the transaction and its line items in order.
func (r *repository) CreateTransaction(ctx context.Context, txn *models.Transaction) error {
	for i := range txn.LineItems {
		txn.LineItems[i].Position = i + 1
	}
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID, forUpdate bool) (*models.Transaction, error) {
	q := r.db.WithContext(ctx)
	if forUpdate {
		q = db.ForUpdate(q)
	}
	var txn models.Transaction
	if err := q.Where("id = ?", id).First(&txn).Error; err != nil {
		return nil, err
	}
	if err := r.loadLines(ctx, &txn); err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *repository) FindByIdempotencyKey(ctx context.Context, tenantID uuid.UUID, key string) (*models.Transaction, error) {
	var txn models.Transaction
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND idempotency_key = ?", tenantID, key).
		First(&txn).Error; err != nil {
		return nil, err
	}
	if err := r.loadLines(ctx, &txn); err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *repository) ListRefundsFor(ctx context.Context, originalID uuid.UUID) ([]models.Transaction, error) {
	var refunds []models.Transaction
	if err := r.db.WithContext(ctx).
		Where("original_transaction_id = ? AND status = ?", originalID, enums.TransactionStatusRefunded).
		Order("created_at ASC").
		Find(&refunds).Error; err != nil {
		return nil, err
	}
	for i := range refunds {
		if err := r.loadLines(ctx, &refunds[i]); err != nil {
			return nil, err
		}
	}
	return refunds, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.TransactionStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("id = ?", id).
		Update("status", status).Error
}

// AdjustStock adds delta to the product's stock. Stock may go negative on
// oversell; a missing product aborts the surrounding commit.
func (r *repository) AdjustStock(ctx context.Context, tenantID, productID uuid.UUID, delta int) error {
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND tenant_id = ?", productID, tenantID).
		Update("stock", gorm.Expr("stock + ?", delta))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
			WithDetails(map[string]any{"productId": productID.String()})
	}
	return nil
}

func (r *repository) loadLines(ctx context.Context, txn *models.Transaction) error {
	return r.db.WithContext(ctx).
		Where("transaction_id = ?", txn.ID).
		Order("position ASC").
		Find(&txn.LineItems).Error
}
