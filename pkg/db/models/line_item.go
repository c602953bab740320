package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/franchisepos-backend/pkg/enums"
)

// LineItem is one sold or refunded unit-group. Refund lines carry a negative
// quantity and total and point at the sale line they return.
type LineItem struct {
	ID                uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	TransactionID     uuid.UUID          `gorm:"column:transaction_id;type:uuid;not null;index"`
	Position          int                `gorm:"column:position;not null;default:0"`
	Type              enums.LineItemType `gorm:"column:type;type:text;not null"`
	ProductID         *uuid.UUID         `gorm:"column:product_id;type:uuid"`
	ServiceID         *uuid.UUID         `gorm:"column:service_id;type:uuid"`
	Name              string             `gorm:"column:name;not null;default:''"`
	Quantity          int                `gorm:"column:quantity;not null"`
	Price             decimal.Decimal    `gorm:"column:price;type:numeric(12,2);not null"`
	DiscountPercent   decimal.Decimal    `gorm:"column:discount_percent;type:numeric(5,2);not null"`
	Total             decimal.Decimal    `gorm:"column:total;type:numeric(12,2);not null"`
	StaffID           *uuid.UUID         `gorm:"column:staff_id;type:uuid"`
	RefundsLineItemID *uuid.UUID         `gorm:"column:refunds_line_item_id;type:uuid;index"`
}

func (l *LineItem) BeforeCreate(*gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

// ItemIdentity returns the catalog reference a line sells, product first.
func (l LineItem) ItemIdentity() (uuid.UUID, bool) {
	if l.ProductID != nil && *l.ProductID != uuid.Nil {
		return *l.ProductID, true
	}
	if l.ServiceID != nil && *l.ServiceID != uuid.Nil {
		return *l.ServiceID, true
	}
	return uuid.Nil, false
}
