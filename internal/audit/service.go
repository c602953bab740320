package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/franchisepos-backend/pkg/db/models"
	"github.com/angelmondragon/franchisepos-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/franchisepos-backend/pkg/errors"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// Entry describes one audit record before it is persisted.
type Entry struct {
	TenantID  uuid.UUID
	ActorID   uuid.UUID
	Type      enums.AuditEventType
	EntityID  uuid.UUID
	DedupeKey string
	Payload   any
}

// Recorder is the narrow sink the monetary services write to after commit.
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
}

// Service records and lists audit events.
type Service interface {
	Recorder
	List(ctx context.Context, tenantID uuid.UUID, limit int) ([]models.AuditEvent, error)
}

type service struct {
	repo Repository
}

// NewService wires the audit service with its repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("audit repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Record(ctx context.Context, entry Entry) error {
	if entry.TenantID == uuid.Nil {
		return fmt.Errorf("tenant id is required")
	}
	if entry.EntityID == uuid.Nil {
		return fmt.Errorf("entity id is required")
	}
	if !entry.Type.IsValid() {
		return fmt.Errorf("invalid audit event type %q", entry.Type)
	}

	payload := []byte("{}")
	if entry.Payload != nil {
		raw, err := json.Marshal(entry.Payload)
		if err != nil {
			return fmt.Errorf("marshal audit payload: %w", err)
		}
		payload = raw
	}

	dedupe := entry.DedupeKey
	if dedupe == "" {
		dedupe = fmt.Sprintf("%s:%s", entry.Type, entry.EntityID)
	}

	event := &models.AuditEvent{
		TenantID:  entry.TenantID,
		ActorID:   entry.ActorID,
		Type:      entry.Type,
		EntityID:  entry.EntityID,
		DedupeKey: dedupe,
		Payload:   payload,
	}
	if _, err := s.repo.Create(ctx, event); err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func (s *service) List(ctx context.Context, tenantID uuid.UUID, limit int) ([]models.AuditEvent, error) {
	if tenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id is required")
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	events, err := s.repo.ListByTenant(ctx, tenantID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list audit events")
	}
	return events, nil
}
