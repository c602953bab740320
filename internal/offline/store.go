package offline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/franchisepos-backend/pkg/db"
	"github.com/angelmondragon/franchisepos-backend/pkg/db/models"
	"github.com/angelmondragon/franchisepos-backend/pkg/enums"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const gateRowID = 1

// OpenLocal opens (or creates) the terminal's queue database file.
func OpenLocal(path string) (*gorm.DB, error) {
	if path == "" {
		return nil, errors.New("offline queue path is required")
	}
	conn, err := db.Open(sqlite.Open(path))
	if err != nil {
		return nil, err
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("queue sql handle: %w", err)
	}
	// sqlite allows one writer; the queue is single-device anyway.
	sqlDB.SetMaxOpenConns(1)
	if err := Migrate(conn); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return conn, nil
}

// Migrate creates the local queue tables.
func Migrate(conn *gorm.DB) error {
	if err := conn.AutoMigrate(&models.OfflineQueueItem{}, &models.OfflineGateState{}); err != nil {
		return fmt.Errorf("migrate offline queue: %w", err)
	}
	return nil
}

type store struct {
	db *gorm.DB
}

func (s *store) append(ctx context.Context, item *models.OfflineQueueItem) error {
	return s.db.WithContext(ctx).Create(item).Error
}

// next returns the oldest pending item, or nil when the queue is empty.
func (s *store) next(ctx context.Context) (*models.OfflineQueueItem, error) {
	var item models.OfflineQueueItem
	err := s.db.WithContext(ctx).
		Where("status = ?", enums.QueueItemPending).
		Order("seq ASC").
		Limit(1).
		Take(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *store) list(ctx context.Context, status enums.QueueItemStatus) ([]models.OfflineQueueItem, error) {
	var items []models.OfflineQueueItem
	err := s.db.WithContext(ctx).
		Where("status = ?", status).
		Order("seq ASC").
		Find(&items).Error
	return items, err
}

func (s *store) count(ctx context.Context, status enums.QueueItemStatus) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.OfflineQueueItem{}).Where("status = ?", status).Count(&n).Error
	return n, err
}

func (s *store) remove(ctx context.Context, seq int64) error {
	return s.db.WithContext(ctx).Delete(&models.OfflineQueueItem{}, "seq = ?", seq).Error
}

func (s *store) removeRejected(ctx context.Context, seq int64) (bool, error) {
	res := s.db.WithContext(ctx).
		Where("seq = ? AND status = ?", seq, enums.QueueItemRejected).
		Delete(&models.OfflineQueueItem{})
	return res.RowsAffected > 0, res.Error
}

func (s *store) deferItem(ctx context.Context, seq int64, lastErr string) error {
	return s.db.WithContext(ctx).Model(&models.OfflineQueueItem{}).
		Where("seq = ?", seq).
		Updates(map[string]any{
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": truncate(lastErr),
		}).Error
}

func (s *store) reject(ctx context.Context, seq int64, code, lastErr string, at time.Time) error {
	return s.db.WithContext(ctx).Model(&models.OfflineQueueItem{}).
		Where("seq = ?", seq).
		Updates(map[string]any{
			"status":      enums.QueueItemRejected,
			"attempts":    gorm.Expr("attempts + 1"),
			"error_code":  code,
			"last_error":  truncate(lastErr),
			"rejected_at": at,
		}).Error
}

func (s *store) gate(ctx context.Context) (models.OfflineGateState, error) {
	var row models.OfflineGateState
	err := s.db.WithContext(ctx).Where("id = ?", gateRowID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.OfflineGateState{ID: gateRowID}, nil
	}
	return row, err
}

func (s *store) saveGate(ctx context.Context, row models.OfflineGateState) error {
	row.ID = gateRowID
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"terms_accepted_at", "risk_acknowledged_at", "updated_at"}),
	}).Create(&row).Error
}

func truncate(msg string) string {
	const max = 1000
	if len(msg) > max {
		return msg[:max]
	}
	return msg
}
