package audit

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/franchisepos-backend/pkg/db/dbtest"
	"github.com/angelmondragon/franchisepos-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/franchisepos-backend/pkg/errors"
)

func TestRecordDedupesOnKey(t *testing.T) {
	conn := dbtest.Open(t)
	svc, err := NewService(NewRepository(conn))
	require.NoError(t, err)

	tenant := uuid.New()
	refundID := uuid.New()
	entry := Entry{
		TenantID: tenant,
		ActorID:  uuid.New(),
		Type:     enums.AuditRefundCompleted,
		EntityID: refundID,
		Payload:  map[string]any{"total": "-21.60"},
	}
	require.NoError(t, svc.Record(context.Background(), entry))
	require.NoError(t, svc.Record(context.Background(), entry))

	events, err := svc.List(context.Background(), tenant, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "refund.completed:"+refundID.String(), events[0].DedupeKey)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(events[0].Payload, &payload))
	assert.Equal(t, "-21.60", payload["total"])
}

func TestRecordValidation(t *testing.T) {
	svc, err := NewService(NewRepository(dbtest.Open(t)))
	require.NoError(t, err)

	cases := map[string]Entry{
		"missing tenant": {EntityID: uuid.New(), Type: enums.AuditSaleCompleted},
		"missing entity": {TenantID: uuid.New(), Type: enums.AuditSaleCompleted},
		"bad type":       {TenantID: uuid.New(), EntityID: uuid.New(), Type: "nope"},
	}
	for name, entry := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, svc.Record(context.Background(), entry))
		})
	}
}

func TestListScopesToTenant(t *testing.T) {
	svc, err := NewService(NewRepository(dbtest.Open(t)))
	require.NoError(t, err)

	mine, other := uuid.New(), uuid.New()
	for i := 0; i < 3; i++ {
		require.NoError(t, svc.Record(context.Background(), Entry{TenantID: mine, Type: enums.AuditSaleCompleted, EntityID: uuid.New()}))
	}
	require.NoError(t, svc.Record(context.Background(), Entry{TenantID: other, Type: enums.AuditSaleCompleted, EntityID: uuid.New()}))

	events, err := svc.List(context.Background(), mine, 2)
	require.NoError(t, err)
	assert.Len(t, events, 2)
	for _, e := range events {
		assert.Equal(t, mine, e.TenantID)
	}

	_, err = svc.List(context.Background(), uuid.Nil, 10)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}
