package models

import (
	"time"

	"github.com/google/uuid"
)

// TenantOfflineCapability persists the offline card-payment gate per tenant.
type TenantOfflineCapability struct {
	TenantID           uuid.UUID  `gorm:"column:tenant_id;type:uuid;primaryKey"`
	TermsAcceptedAt    *time.Time `gorm:"column:terms_accepted_at"`
	RiskAcknowledgedAt *time.Time `gorm:"column:risk_acknowledged_at"`
	AcceptedBy         *uuid.UUID `gorm:"column:accepted_by;type:uuid"`
	UpdatedAt          time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// Enabled reports whether both acknowledgments are on record.
func (c TenantOfflineCapability) Enabled() bool {
	return c.TermsAcceptedAt != nil && c.RiskAcknowledgedAt != nil
}
