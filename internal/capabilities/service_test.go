package capabilities

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/franchisepos-backend/internal/audit"
	"github.com/angelmondragon/franchisepos-backend/pkg/db/dbtest"
	"github.com/angelmondragon/franchisepos-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/franchisepos-backend/pkg/errors"
	"github.com/angelmondragon/franchisepos-backend/pkg/logger"
	"github.com/angelmondragon/franchisepos-backend/pkg/types"
)

type stubAudit struct{ entries []audit.Entry }

func (s *stubAudit) Record(_ context.Context, e audit.Entry) error {
	s.entries = append(s.entries, e)
	return nil
}

func TestGateNeedsBothAcknowledgments(t *testing.T) {
	rec := &stubAudit{}
	svc, err := NewService(NewRepository(dbtest.Open(t)), rec, logger.Nop())
	require.NoError(t, err)
	ctx := context.Background()
	tenant, actor := uuid.New(), uuid.New()

	view, err := svc.Get(ctx, tenant)
	require.NoError(t, err)
	assert.False(t, view.Enabled)

	view, err = svc.Accept(ctx, tenant, actor, types.OfflineCapabilityRequest{AcceptTerms: true})
	require.NoError(t, err)
	assert.False(t, view.Enabled)
	assert.NotNil(t, view.TermsAcceptedAt)
	assert.Empty(t, rec.entries)

	view, err = svc.Accept(ctx, tenant, actor, types.OfflineCapabilityRequest{AcknowledgeRisk: true})
	require.NoError(t, err)
	assert.True(t, view.Enabled)
	require.Len(t, rec.entries, 1)
	assert.Equal(t, enums.AuditOfflineCapabilityAccepted, rec.entries[0].Type)

	enabled, err := svc.IsOfflineEnabled(ctx, tenant)
	require.NoError(t, err)
	assert.True(t, enabled)

	enabled, err = svc.IsOfflineEnabled(ctx, uuid.New())
	require.NoError(t, err)
	assert.False(t, enabled)
}

func TestAcceptRejectsEmptyRequest(t *testing.T) {
	svc, err := NewService(NewRepository(dbtest.Open(t)), nil, nil)
	require.NoError(t, err)
	_, err = svc.Accept(context.Background(), uuid.New(), uuid.New(), types.OfflineCapabilityRequest{})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}
