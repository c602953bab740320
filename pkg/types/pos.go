package types

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/franchisepos-backend/pkg/enums"
)

// SaleLine is one cart line submitted at tender time.
type SaleLine struct {
	Type            enums.LineItemType `json:"type"`
	ProductID       *uuid.UUID         `json:"productId,omitempty"`
	ServiceID       *uuid.UUID         `json:"serviceId,omitempty"`
	Name            string             `json:"name,omitempty"`
	Quantity        int                `json:"quantity"`
	Price           decimal.Decimal    `json:"price"`
	DiscountPercent decimal.Decimal    `json:"discountPercent"`
	StaffID         *uuid.UUID         `json:"staffId,omitempty"`
}

// SaleRequest commits a completed sale. IdempotencyKey is generated by the
// terminal and survives offline replay.
type SaleRequest struct {
	IdempotencyKey      string              `json:"idempotencyKey"`
	CashDrawerSessionID *uuid.UUID          `json:"cashDrawerSessionId,omitempty"`
	LocationID          *uuid.UUID          `json:"locationId,omitempty"`
	ClientID            *uuid.UUID          `json:"clientId,omitempty"`
	PaymentMethod       enums.PaymentMethod `json:"paymentMethod"`
	TaxRatePercent      decimal.Decimal     `json:"taxRatePercent"`
	Tip                 decimal.Decimal     `json:"tip"`
	Items               []SaleLine          `json:"items"`
	Offline             bool                `json:"offline,omitempty"`
	CapturedAt          *time.Time          `json:"capturedAt,omitempty"`
}

// RefundItem selects a quantity of one original line item.
type RefundItem struct {
	LineItemID uuid.UUID `json:"lineItemId"`
	Quantity   int       `json:"quantity"`
}

// RefundRequest refunds part or all of a completed transaction.
type RefundRequest struct {
	OriginalTransactionID uuid.UUID           `json:"originalTransactionId"`
	RefundType            enums.RefundType    `json:"refundType"`
	Items                 []RefundItem        `json:"items"`
	Reason                string              `json:"reason"`
	RefundMethod          enums.PaymentMethod `json:"refundMethod"`
	CashDrawerSessionID   *uuid.UUID          `json:"cashDrawerSessionId,omitempty"`
	IdempotencyKey        string              `json:"idempotencyKey,omitempty"`
	Offline               bool                `json:"offline,omitempty"`
	CapturedAt            *time.Time          `json:"capturedAt,omitempty"`
}

// LineItemView is the API shape of a persisted line item.
type LineItemView struct {
	ID                uuid.UUID          `json:"id"`
	Type              enums.LineItemType `json:"type"`
	ProductID         *uuid.UUID         `json:"productId,omitempty"`
	ServiceID         *uuid.UUID         `json:"serviceId,omitempty"`
	Name              string             `json:"name,omitempty"`
	Quantity          int                `json:"quantity"`
	Price             decimal.Decimal    `json:"price"`
	DiscountPercent   decimal.Decimal    `json:"discountPercent"`
	Total             decimal.Decimal    `json:"total"`
	StaffID           *uuid.UUID         `json:"staffId,omitempty"`
	RefundsLineItemID *uuid.UUID         `json:"refundsLineItemId,omitempty"`
}

// TransactionView is the API shape of a persisted transaction.
type TransactionView struct {
	ID                    uuid.UUID               `json:"id"`
	TenantID              uuid.UUID               `json:"tenantId"`
	LocationID            *uuid.UUID              `json:"locationId,omitempty"`
	ClientID              *uuid.UUID              `json:"clientId,omitempty"`
	EmployeeID            uuid.UUID               `json:"employeeId"`
	Status                enums.TransactionStatus `json:"status"`
	PaymentMethod         enums.PaymentMethod     `json:"paymentMethod"`
	Subtotal              decimal.Decimal         `json:"subtotal"`
	Tax                   decimal.Decimal         `json:"tax"`
	Tip                   decimal.Decimal         `json:"tip"`
	Total                 decimal.Decimal         `json:"total"`
	OriginalTransactionID *uuid.UUID              `json:"originalTransactionId,omitempty"`
	RefundType            *enums.RefundType       `json:"refundType,omitempty"`
	Reason                *string                 `json:"reason,omitempty"`
	CashDrawerSessionID   uuid.UUID               `json:"cashDrawerSessionId"`
	IdempotencyKey        *string                 `json:"idempotencyKey,omitempty"`
	Offline               bool                    `json:"offline"`
	CapturedAt            *time.Time              `json:"capturedAt,omitempty"`
	CreatedAt             time.Time               `json:"createdAt"`
	LineItems             []LineItemView          `json:"lineItems"`
}

// ProductSummary is one universal search hit.
type ProductSummary struct {
	ID      uuid.UUID       `json:"id"`
	Name    string          `json:"name"`
	SKU     string          `json:"sku"`
	Barcode *string         `json:"barcode,omitempty"`
	Price   decimal.Decimal `json:"price"`
	Stock   int             `json:"stock"`
}

// DisplayItem is a cart line as mirrored on the customer display.
type DisplayItem struct {
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Total    decimal.Decimal `json:"total"`
}

// DisplayState is the cart broadcast for one station or location.
type DisplayState struct {
	Status        enums.DisplayStatus `json:"status"`
	Items         []DisplayItem       `json:"items"`
	Subtotal      decimal.Decimal     `json:"subtotal"`
	Tax           decimal.Decimal     `json:"tax"`
	Total         decimal.Decimal     `json:"total"`
	Tip           *decimal.Decimal    `json:"tip,omitempty"`
	ShowTipPrompt bool                `json:"showTipPrompt"`
	TipSelected   bool                `json:"tipSelected"`
}

// IdleDisplayState is what a station shows before any cart was written.
func IdleDisplayState() DisplayState {
	return DisplayState{Status: enums.DisplayStatusIdle, Items: []DisplayItem{}}
}

// DisplaySnapshot is a versioned read of a display channel.
type DisplaySnapshot struct {
	Key       string       `json:"key"`
	Version   int64        `json:"version"`
	State     DisplayState `json:"cart"`
	UpdatedAt *time.Time   `json:"updatedAt,omitempty"`
}

// DisplayWriteRequest overwrites a display channel. Exactly one of StationID
// or LocationID addresses the channel.
type DisplayWriteRequest struct {
	StationID  string       `json:"stationId,omitempty" validate:"max=64"`
	LocationID string       `json:"locationId,omitempty" validate:"max=64"`
	Cart       DisplayState `json:"cart"`
}

// OfflineCapabilityView reports the tenant gate for offline card payments.
type OfflineCapabilityView struct {
	Enabled            bool       `json:"enabled"`
	TermsAcceptedAt    *time.Time `json:"termsAcceptedAt,omitempty"`
	RiskAcknowledgedAt *time.Time `json:"riskAcknowledgedAt,omitempty"`
	AcceptedBy         *uuid.UUID `json:"acceptedBy,omitempty"`
}

// OfflineCapabilityRequest records one or both acknowledgments.
type OfflineCapabilityRequest struct {
	AcceptTerms     bool `json:"acceptTerms"`
	AcknowledgeRisk bool `json:"acknowledgeRisk"`
}

// RefundableLine reports how much of an original line can still be refunded.
type RefundableLine struct {
	LineItemID      uuid.UUID          `json:"lineItemId"`
	Type            enums.LineItemType `json:"type"`
	ProductID       *uuid.UUID         `json:"productId,omitempty"`
	ServiceID       *uuid.UUID         `json:"serviceId,omitempty"`
	Name            string             `json:"name,omitempty"`
	Price           decimal.Decimal    `json:"price"`
	DiscountPercent decimal.Decimal    `json:"discountPercent"`
	Sold            int                `json:"sold"`
	AlreadyRefunded int                `json:"alreadyRefunded"`
	Remaining       int                `json:"remaining"`
}

// ShiftView is the API shape of a cash drawer session.
type ShiftView struct {
	ID           uuid.UUID        `json:"id"`
	LocationID   uuid.UUID        `json:"locationId"`
	OpenedBy     uuid.UUID        `json:"openedBy"`
	ClosedBy     *uuid.UUID       `json:"closedBy,omitempty"`
	OpeningFloat decimal.Decimal  `json:"openingFloat"`
	ClosingCount *decimal.Decimal `json:"closingCount,omitempty"`
	StartTime    time.Time        `json:"startTime"`
	EndTime      *time.Time       `json:"endTime,omitempty"`
}

// DrawerEventView is the API shape of a no-sale open or recount.
type DrawerEventView struct {
	ID                  uuid.UUID             `json:"id"`
	CashDrawerSessionID uuid.UUID             `json:"cashDrawerSessionId"`
	EmployeeID          uuid.UUID             `json:"employeeId"`
	Type                enums.DrawerEventType `json:"type"`
	CountedAmount       *decimal.Decimal      `json:"countedAmount,omitempty"`
	Reason              *string               `json:"reason,omitempty"`
	CreatedAt           time.Time             `json:"createdAt"`
}

// AuditEventView is the API shape of an audit record.
type AuditEventView struct {
	ID          uuid.UUID            `json:"id"`
	Type        enums.AuditEventType `json:"type"`
	ActorID     uuid.UUID            `json:"actorId"`
	EntityID    uuid.UUID            `json:"entityId"`
	Payload     json.RawMessage      `json:"payload"`
	CreatedAt   time.Time            `json:"createdAt"`
	PublishedAt *time.Time           `json:"publishedAt,omitempty"`
}
