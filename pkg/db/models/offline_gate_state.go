package models

import "time"

// OfflineGateState is the terminal-local record of the operator accepting
// offline terms. A single row with ID 1.
type OfflineGateState struct {
	ID                 int        `gorm:"column:id;primaryKey"`
	TermsAcceptedAt    *time.Time `gorm:"column:terms_accepted_at"`
	RiskAcknowledgedAt *time.Time `gorm:"column:risk_acknowledged_at"`
	UpdatedAt          time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
