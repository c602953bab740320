package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/franchisepos-backend/pkg/enums"
)

// DrawerEvent records a drawer open or count that is not tied to a sale.
type DrawerEvent struct {
	ID                  uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	TenantID            uuid.UUID             `gorm:"column:tenant_id;type:uuid;not null"`
	CashDrawerSessionID uuid.UUID             `gorm:"column:cash_drawer_session_id;type:uuid;not null;index"`
	EmployeeID          uuid.UUID             `gorm:"column:employee_id;type:uuid;not null"`
	Type                enums.DrawerEventType `gorm:"column:type;type:text;not null"`
	CountedAmount       *decimal.Decimal      `gorm:"column:counted_amount;type:numeric(12,2)"`
	Reason              *string               `gorm:"column:reason"`
	CreatedAt           time.Time             `gorm:"column:created_at;autoCreateTime"`
}

func (e *DrawerEvent) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
