package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/franchisepos-backend/pkg/enums"
)

// Transaction is an immutable-once-completed financial record. Refunds are new
// rows pointing back at the sale through OriginalTransactionID.
type Transaction struct {
	ID                    uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	TenantID              uuid.UUID               `gorm:"column:tenant_id;type:uuid;not null;index:ix_transactions_tenant_created,priority:1;uniqueIndex:ux_transactions_idempotency,priority:1"`
	LocationID            *uuid.UUID              `gorm:"column:location_id;type:uuid"`
	ClientID              *uuid.UUID              `gorm:"column:client_id;type:uuid"`
	EmployeeID            uuid.UUID               `gorm:"column:employee_id;type:uuid;not null"`
	Status                enums.TransactionStatus `gorm:"column:status;type:text;not null"`
	PaymentMethod         enums.PaymentMethod     `gorm:"column:payment_method;type:text;not null"`
	Subtotal              decimal.Decimal         `gorm:"column:subtotal;type:numeric(12,2);not null"`
	Tax                   decimal.Decimal         `gorm:"column:tax;type:numeric(12,2);not null"`
	Tip                   decimal.Decimal         `gorm:"column:tip;type:numeric(12,2);not null"`
	Total                 decimal.Decimal         `gorm:"column:total;type:numeric(12,2);not null"`
	OriginalTransactionID *uuid.UUID              `gorm:"column:original_transaction_id;type:uuid;index"`
	RefundType            *enums.RefundType       `gorm:"column:refund_type;type:text"`
	Reason                *string                 `gorm:"column:reason"`
	CashDrawerSessionID   uuid.UUID               `gorm:"column:cash_drawer_session_id;type:uuid;not null;index"`
	IdempotencyKey        *string                 `gorm:"column:idempotency_key;uniqueIndex:ux_transactions_idempotency,priority:2"`
	Offline               bool                    `gorm:"column:offline;not null;default:false"`
	CapturedAt            *time.Time              `gorm:"column:captured_at"`
	CreatedAt             time.Time               `gorm:"column:created_at;autoCreateTime;index:ix_transactions_tenant_created,priority:2"`
	LineItems             []LineItem              `gorm:"foreignKey:TransactionID"`
}

func (t *Transaction) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
