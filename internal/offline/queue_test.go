package offline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/franchisepos-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/franchisepos-backend/pkg/errors"
	"github.com/angelmondragon/franchisepos-backend/pkg/types"
)

type submission struct {
	op  enums.QueuedOperation
	key string
}

type stubSubmitter struct {
	calls []submission
	// results are consumed per call; a missing entry means success
	results []error
}

func (s *stubSubmitter) next(op enums.QueuedOperation, key string) error {
	s.calls = append(s.calls, submission{op: op, key: key})
	if len(s.results) == 0 {
		return nil
	}
	err := s.results[0]
	s.results = s.results[1:]
	return err
}

func (s *stubSubmitter) SubmitSale(_ context.Context, req types.SaleRequest) (*types.TransactionView, error) {
	if !req.Offline || req.CapturedAt == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "not an offline replay")
	}
	if err := s.next(enums.QueuedOperationSale, req.IdempotencyKey); err != nil {
		return nil, err
	}
	return &types.TransactionView{}, nil
}

func (s *stubSubmitter) SubmitRefund(_ context.Context, req types.RefundRequest) (*types.TransactionView, error) {
	if err := s.next(enums.QueuedOperationRefund, req.IdempotencyKey); err != nil {
		return nil, err
	}
	return &types.TransactionView{}, nil
}

func newQueue(t *testing.T, sub Submitter) *Queue {
	t.Helper()
	conn, err := OpenLocal(filepath.Join(t.TempDir(), "queue.db"))
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	q, err := NewQueue(Params{DB: conn, Submitter: sub})
	require.NoError(t, err)
	return q
}

func cashSale() types.SaleRequest {
	return types.SaleRequest{
		PaymentMethod: enums.PaymentMethodCash,
		Items: []types.SaleLine{{
			Type:     enums.LineItemTypeProduct,
			Quantity: 1,
			Price:    decimal.NewFromInt(10),
		}},
	}
}

func TestCardCaptureRequiresBothAcknowledgments(t *testing.T) {
	q := newQueue(t, &stubSubmitter{})
	ctx := context.Background()

	card := cashSale()
	card.PaymentMethod = enums.PaymentMethodCard

	_, err := q.CaptureSale(ctx, card)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeForbidden))

	_, err = q.CaptureSale(ctx, cashSale())
	require.NoError(t, err, "cash is always allowed")

	gate, err := q.AcceptTerms(ctx)
	require.NoError(t, err)
	assert.False(t, gate.Enabled())
	_, err = q.CaptureSale(ctx, card)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeForbidden))

	gate, err = q.AcknowledgeRisk(ctx)
	require.NoError(t, err)
	assert.True(t, gate.Enabled())
	receipt, err := q.CaptureSale(ctx, card)
	require.NoError(t, err)
	assert.NotEmpty(t, receipt.IdempotencyKey)
	assert.False(t, receipt.Synced)
}

func TestCaptureAssignsKeysAndKeepsOrder(t *testing.T) {
	q := newQueue(t, &stubSubmitter{})
	ctx := context.Background()

	first, err := q.CaptureSale(ctx, cashSale())
	require.NoError(t, err)
	second, err := q.CaptureRefund(ctx, types.RefundRequest{
		OriginalTransactionID: uuid.New(),
		RefundType:            enums.RefundTypeFull,
		RefundMethod:          enums.PaymentMethodCash,
	})
	require.NoError(t, err)
	assert.NotEqual(t, first.IdempotencyKey, second.IdempotencyKey)
	assert.Greater(t, second.Seq, first.Seq)

	pending, err := q.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, enums.QueuedOperationSale, pending[0].Operation)
	assert.Equal(t, enums.QueuedOperationRefund, pending[1].Operation)
}

func TestDrainInCaptureOrderWithSameKeys(t *testing.T) {
	sub := &stubSubmitter{}
	q := newQueue(t, sub)
	ctx := context.Background()

	var keys []string
	for i := 0; i < 3; i++ {
		r, err := q.CaptureSale(ctx, cashSale())
		require.NoError(t, err)
		keys = append(keys, r.IdempotencyKey)
	}

	report, err := q.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Synced)
	assert.Zero(t, report.Remaining)
	require.Len(t, sub.calls, 3)
	for i, call := range sub.calls {
		assert.Equal(t, keys[i], call.key)
	}
}

func TestDrainStopsOnTransientAndKeepsOrder(t *testing.T) {
	unavailable := pkgerrors.New(pkgerrors.CodeDependency, "ledger unavailable")
	sub := &stubSubmitter{results: []error{nil, unavailable}}
	q := newQueue(t, sub)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := q.CaptureSale(ctx, cashSale())
		require.NoError(t, err)
	}

	report, err := q.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Synced)
	assert.ErrorIs(t, report.Deferred, unavailable)
	assert.EqualValues(t, 2, report.Remaining)
	assert.Len(t, sub.calls, 2, "the third item must not be tried past a transient failure")

	pending, err := q.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, 1, pending[0].Attempts)
	assert.Equal(t, sub.calls[1].key, pending[0].IdempotencyKey)

	// next reconnect retries the same head item first
	report, err = q.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Synced)
	assert.Equal(t, sub.calls[1].key, sub.calls[2].key)
}

func TestDrainParksPermanentRejections(t *testing.T) {
	closed := pkgerrors.New(pkgerrors.CodeShiftClosed, "cash drawer session is closed")
	sub := &stubSubmitter{results: []error{closed, nil}}
	q := newQueue(t, sub)
	ctx := context.Background()

	rejected, err := q.CaptureSale(ctx, cashSale())
	require.NoError(t, err)
	_, err = q.CaptureSale(ctx, cashSale())
	require.NoError(t, err)

	report, err := q.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Synced)
	require.Len(t, report.Rejected, 1)
	assert.Equal(t, pkgerrors.CodeShiftClosed, report.Rejected[0].Code)
	assert.ErrorIs(t, report.Errors(), closed)

	review, err := q.ReviewList(ctx)
	require.NoError(t, err)
	require.Len(t, review, 1)
	assert.Equal(t, rejected.IdempotencyKey, review[0].IdempotencyKey)
	require.NotNil(t, review[0].ErrorCode)
	assert.Equal(t, string(pkgerrors.CodeShiftClosed), *review[0].ErrorCode)
	require.NotNil(t, review[0].LastError)

	require.NoError(t, q.Dismiss(ctx, review[0].Seq))
	assert.True(t, pkgerrors.HasCode(q.Dismiss(ctx, review[0].Seq), pkgerrors.CodeNotFound))
}

func TestDrainTreatsNetworkErrorsAsTransient(t *testing.T) {
	netErr := fmt.Errorf("submit: %w", context.DeadlineExceeded)
	sub := &stubSubmitter{results: []error{netErr}}
	q := newQueue(t, sub)
	ctx := context.Background()
	_, err := q.CaptureSale(ctx, cashSale())
	require.NoError(t, err)

	report, err := q.Drain(ctx)
	require.NoError(t, err)
	assert.True(t, errors.Is(report.Deferred, context.DeadlineExceeded))
	assert.EqualValues(t, 1, report.Remaining)
}

func TestDrainDefersKeyConflict(t *testing.T) {
	conflict := pkgerrors.New(pkgerrors.CodeConflict, "idempotency key is being processed")
	sub := &stubSubmitter{results: []error{conflict}}
	q := newQueue(t, sub)
	ctx := context.Background()
	captured, err := q.CaptureRefund(ctx, types.RefundRequest{
		OriginalTransactionID: uuid.New(),
		RefundType:            enums.RefundTypeFull,
		RefundMethod:          enums.PaymentMethodCash,
	})
	require.NoError(t, err)

	report, err := q.Drain(ctx)
	require.NoError(t, err)
	assert.ErrorIs(t, report.Deferred, conflict)
	assert.Empty(t, report.Rejected)
	assert.EqualValues(t, 1, report.Remaining)

	review, err := q.ReviewList(ctx)
	require.NoError(t, err)
	assert.Empty(t, review)

	// the retry replays under the same key
	report, err = q.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Synced)
	require.Len(t, sub.calls, 2)
	assert.Equal(t, captured.IdempotencyKey, sub.calls[1].key)
	assert.Equal(t, enums.QueuedOperationRefund, sub.calls[1].op)
}
