package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CashDrawerSession is one shift on a physical drawer. EndTime stays nil while open.
type CashDrawerSession struct {
	ID           uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	TenantID     uuid.UUID        `gorm:"column:tenant_id;type:uuid;not null"`
	LocationID   uuid.UUID        `gorm:"column:location_id;type:uuid;not null;index"`
	OpenedBy     uuid.UUID        `gorm:"column:opened_by;type:uuid;not null"`
	ClosedBy     *uuid.UUID       `gorm:"column:closed_by;type:uuid"`
	OpeningFloat decimal.Decimal  `gorm:"column:opening_float;type:numeric(12,2);not null"`
	ClosingCount *decimal.Decimal `gorm:"column:closing_count;type:numeric(12,2)"`
	StartTime    time.Time        `gorm:"column:start_time;not null"`
	EndTime      *time.Time       `gorm:"column:end_time"`
}

func (s *CashDrawerSession) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// IsOpen reports whether the shift has not been closed yet.
func (s CashDrawerSession) IsOpen() bool {
	return s.EndTime == nil
}
