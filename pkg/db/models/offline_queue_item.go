package models

import (
	"encoding/json"
	"time"

	"github.com/angelmondragon/franchisepos-backend/pkg/enums"
)

// OfflineQueueItem is a terminal-local mutation captured while disconnected.
// Seq preserves capture order.
type OfflineQueueItem struct {
	Seq            int64                 `gorm:"column:seq;primaryKey;autoIncrement"`
	IdempotencyKey string                `gorm:"column:idempotency_key;not null;uniqueIndex"`
	Operation      enums.QueuedOperation `gorm:"column:operation;not null"`
	Status         enums.QueueItemStatus `gorm:"column:status;not null;index"`
	Payload        json.RawMessage       `gorm:"column:payload;not null"`
	CapturedAt     time.Time             `gorm:"column:captured_at;not null"`
	Attempts       int                   `gorm:"column:attempts;not null;default:0"`
	LastError      *string               `gorm:"column:last_error"`
	ErrorCode      *string               `gorm:"column:error_code"`
	RejectedAt     *time.Time            `gorm:"column:rejected_at"`
}
