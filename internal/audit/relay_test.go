package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/franchisepos-backend/pkg/db/dbtest"
	"github.com/angelmondragon/franchisepos-backend/pkg/db/models"
	"github.com/angelmondragon/franchisepos-backend/pkg/enums"
)

type stubLock struct {
	held     bool
	refuse   bool
	released int
}

func (l *stubLock) Acquire(context.Context) (bool, error) {
	if l.refuse {
		return false, nil
	}
	l.held = true
	return true, nil
}

func (l *stubLock) Release(context.Context) error {
	l.held = false
	l.released++
	return nil
}

type stubPublisher struct {
	fail  map[uuid.UUID]bool
	calls []map[string]string
}

func (p *stubPublisher) Publish(_ context.Context, _ []byte, attrs map[string]string) (string, error) {
	p.calls = append(p.calls, attrs)
	id, _ := uuid.Parse(attrs["event_id"])
	if p.fail[id] {
		return "", errors.New("unavailable")
	}
	return "msg-" + attrs["event_id"], nil
}

func TestRelayPublishesAndMarksFailures(t *testing.T) {
	client := dbtest.Client(t)
	repo := NewRepository(client.DB())
	svc, err := NewService(repo)
	require.NoError(t, err)

	tenant := uuid.New()
	ok, bad := uuid.New(), uuid.New()
	require.NoError(t, svc.Record(context.Background(), Entry{TenantID: tenant, Type: enums.AuditSaleCompleted, EntityID: ok}))
	require.NoError(t, svc.Record(context.Background(), Entry{TenantID: tenant, Type: enums.AuditSaleCompleted, EntityID: bad}))

	var badEvent models.AuditEvent
	require.NoError(t, client.DB().Where("entity_id = ?", bad).First(&badEvent).Error)

	pub := &stubPublisher{fail: map[uuid.UUID]bool{badEvent.ID: true}}
	lock := &stubLock{}
	relay, err := NewRelay(RelayParams{DB: client, Repository: repo, Publisher: pub, Lock: lock})
	require.NoError(t, err)

	processed, err := relay.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)
	assert.Len(t, pub.calls, 2)
	assert.Equal(t, 1, lock.released)

	var rows []models.AuditEvent
	require.NoError(t, client.DB().Order("created_at").Find(&rows).Error)
	for _, row := range rows {
		if row.EntityID == ok {
			assert.NotNil(t, row.PublishedAt)
			assert.Equal(t, 0, row.AttemptCount)
		} else {
			assert.Nil(t, row.PublishedAt)
			assert.Equal(t, 1, row.AttemptCount)
			require.NotNil(t, row.LastError)
			assert.Equal(t, "unavailable", *row.LastError)
		}
	}
}

func TestRelaySkipsWhenLockHeldElsewhere(t *testing.T) {
	client := dbtest.Client(t)
	pub := &stubPublisher{}
	relay, err := NewRelay(RelayParams{
		DB:         client,
		Repository: NewRepository(client.DB()),
		Publisher:  pub,
		Lock:       &stubLock{refuse: true},
	})
	require.NoError(t, err)

	processed, err := relay.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.False(t, processed)
	assert.Empty(t, pub.calls)
}

func TestRelayStopsRetryingAfterMaxAttempts(t *testing.T) {
	client := dbtest.Client(t)
	repo := NewRepository(client.DB())
	event := &models.AuditEvent{
		TenantID:     uuid.New(),
		Type:         enums.AuditRefundCompleted,
		EntityID:     uuid.New(),
		DedupeKey:    "exhausted",
		Payload:      []byte(`{}`),
		AttemptCount: 3,
	}
	_, err := repo.Create(context.Background(), event)
	require.NoError(t, err)

	pub := &stubPublisher{}
	relay, err := NewRelay(RelayParams{DB: client, Repository: repo, Publisher: pub, Lock: &stubLock{}, MaxAttempts: 3})
	require.NoError(t, err)

	processed, err := relay.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.False(t, processed)
	assert.Empty(t, pub.calls)
}

func TestNewRelayValidation(t *testing.T) {
	_, err := NewRelay(RelayParams{})
	assert.Error(t, err)
}
