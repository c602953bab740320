package capabilities

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/franchisepos-backend/internal/audit"
	"github.com/angelmondragon/franchisepos-backend/pkg/db/models"
	"github.com/angelmondragon/franchisepos-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/franchisepos-backend/pkg/errors"
	"github.com/angelmondragon/franchisepos-backend/pkg/logger"
	"github.com/angelmondragon/franchisepos-backend/pkg/types"
)

// Service manages the offline card-payment gate. The gate opens only once
// both the terms and the financial risk acknowledgment are on record.
type Service interface {
	Get(ctx context.Context, tenantID uuid.UUID) (types.OfflineCapabilityView, error)
	Accept(ctx context.Context, tenantID, actorID uuid.UUID, req types.OfflineCapabilityRequest) (types.OfflineCapabilityView, error)
	IsOfflineEnabled(ctx context.Context, tenantID uuid.UUID) (bool, error)
}

type service struct {
	repo  Repository
	audit audit.Recorder
	logg  *logger.Logger
	now   func() time.Time
}

func NewService(repo Repository, recorder audit.Recorder, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("capability repository required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		repo:  repo,
		audit: recorder,
		logg:  logg,
		now:   func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) load(ctx context.Context, tenantID uuid.UUID) (*models.TenantOfflineCapability, error) {
	capability, err := s.repo.Find(ctx, tenantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &models.TenantOfflineCapability{TenantID: tenantID}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load offline capability")
	}
	return capability, nil
}

func (s *service) Get(ctx context.Context, tenantID uuid.UUID) (types.OfflineCapabilityView, error) {
	if tenantID == uuid.Nil {
		return types.OfflineCapabilityView{}, pkgerrors.New(pkgerrors.CodeValidation, "tenant id is required")
	}
	capability, err := s.load(ctx, tenantID)
	if err != nil {
		return types.OfflineCapabilityView{}, err
	}
	return toView(capability), nil
}

func (s *service) Accept(ctx context.Context, tenantID, actorID uuid.UUID, req types.OfflineCapabilityRequest) (types.OfflineCapabilityView, error) {
	if tenantID == uuid.Nil || actorID == uuid.Nil {
		return types.OfflineCapabilityView{}, pkgerrors.New(pkgerrors.CodeValidation, "tenant and actor are required")
	}
	if !req.AcceptTerms && !req.AcknowledgeRisk {
		return types.OfflineCapabilityView{}, pkgerrors.New(pkgerrors.CodeValidation, "nothing to acknowledge")
	}
	capability, err := s.load(ctx, tenantID)
	if err != nil {
		return types.OfflineCapabilityView{}, err
	}
	wasEnabled := capability.Enabled()

	now := s.now()
	if req.AcceptTerms && capability.TermsAcceptedAt == nil {
		capability.TermsAcceptedAt = &now
	}
	if req.AcknowledgeRisk && capability.RiskAcknowledgedAt == nil {
		capability.RiskAcknowledgedAt = &now
	}
	actor := actorID
	capability.AcceptedBy = &actor
	capability.UpdatedAt = now

	if err := s.repo.Upsert(ctx, capability); err != nil {
		return types.OfflineCapabilityView{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save offline capability")
	}

	if capability.Enabled() && !wasEnabled {
		s.logg.Info(s.logg.WithField(ctx, "tenant_id", tenantID.String()), "offline card payments enabled")
		if s.audit != nil {
			entry := audit.Entry{
				TenantID: tenantID,
				ActorID:  actorID,
				Type:     enums.AuditOfflineCapabilityAccepted,
				EntityID: tenantID,
				Payload: map[string]any{
					"termsAcceptedAt":    capability.TermsAcceptedAt,
					"riskAcknowledgedAt": capability.RiskAcknowledgedAt,
				},
			}
			if err := s.audit.Record(ctx, entry); err != nil {
				s.logg.Error(ctx, "failed to record capability audit event", err)
			}
		}
	}
	return toView(capability), nil
}

func (s *service) IsOfflineEnabled(ctx context.Context, tenantID uuid.UUID) (bool, error) {
	capability, err := s.load(ctx, tenantID)
	if err != nil {
		return false, err
	}
	return capability.Enabled(), nil
}

func toView(c *models.TenantOfflineCapability) types.OfflineCapabilityView {
	return types.OfflineCapabilityView{
		Enabled:            c.Enabled(),
		TermsAcceptedAt:    c.TermsAcceptedAt,
		RiskAcknowledgedAt: c.RiskAcknowledgedAt,
		AcceptedBy:         c.AcceptedBy,
	}
}
