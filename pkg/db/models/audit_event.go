package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/franchisepos-backend/pkg/enums"
)

// AuditEvent is an append-only record relayed to Pub/Sub by the audit publisher.
type AuditEvent struct {
	ID           uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	TenantID     uuid.UUID            `gorm:"column:tenant_id;type:uuid;not null;index"`
	ActorID      uuid.UUID            `gorm:"column:actor_id;type:uuid;not null"`
	Type         enums.AuditEventType `gorm:"column:type;type:text;not null"`
	EntityID     uuid.UUID            `gorm:"column:entity_id;type:uuid;not null"`
	DedupeKey    string               `gorm:"column:dedupe_key;not null;uniqueIndex:ux_audit_events_dedupe"`
	Payload      json.RawMessage      `gorm:"column:payload;type:jsonb;not null"`
	CreatedAt    time.Time            `gorm:"column:created_at;autoCreateTime"`
	PublishedAt  *time.Time           `gorm:"column:published_at"`
	AttemptCount int                  `gorm:"column:attempt_count;not null;default:0"`
	LastError    *string              `gorm:"column:last_error"`
}

func (e *AuditEvent) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
