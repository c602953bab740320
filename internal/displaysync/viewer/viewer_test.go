package viewer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/franchisepos-backend/pkg/enums"
	"github.com/angelmondragon/franchisepos-backend/pkg/types"
)

type fakeTimer struct {
	fn      func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	t.stopped = true
	return true
}

type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
	waits  []time.Duration
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{fn: f}
	c.timers = append(c.timers, t)
	c.waits = append(c.waits, d)
	return t
}

func (c *fakeClock) last() *fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.timers) == 0 {
		return nil
	}
	return c.timers[len(c.timers)-1]
}

type stubChannel struct {
	mu        sync.Mutex
	writes    []types.DisplayState
	writeErrs []error
	snaps     []types.DisplaySnapshot
	fetchErrs []error
	sinces    []int64
}

func (s *stubChannel) Write(_ context.Context, state types.DisplayState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, state)
	if len(s.writeErrs) > 0 {
		err := s.writeErrs[0]
		s.writeErrs = s.writeErrs[1:]
		return err
	}
	return nil
}

func (s *stubChannel) Fetch(_ context.Context, since int64) (types.DisplaySnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sinces = append(s.sinces, since)
	if len(s.fetchErrs) > 0 {
		err := s.fetchErrs[0]
		s.fetchErrs = s.fetchErrs[1:]
		if err != nil {
			return types.DisplaySnapshot{}, err
		}
	}
	if len(s.snaps) == 0 {
		return types.DisplaySnapshot{State: types.IdleDisplayState()}, nil
	}
	snap := s.snaps[0]
	if len(s.snaps) > 1 {
		s.snaps = s.snaps[1:]
	}
	return snap, nil
}

func cart(names ...string) types.DisplayState {
	items := make([]types.DisplayItem, 0, len(names))
	for _, n := range names {
		items = append(items, types.DisplayItem{Name: n, Quantity: 1, Price: decimal.NewFromInt(5), Total: decimal.NewFromInt(5)})
	}
	return types.DisplayState{Status: enums.DisplayStatusActive, Items: items}
}

func newViewer(ch Channel, clock *fakeClock) (*Viewer, *[]types.DisplayState) {
	var rendered []types.DisplayState
	v := New(Options{
		Channel:       ch,
		AfterFunc:     clock.AfterFunc,
		TipRetryDelay: time.Millisecond,
		OnChange:      func(s types.DisplayState) { rendered = append(rendered, s) },
	})
	return v, &rendered
}

func TestSelectTipWritesBeforeProcessing(t *testing.T) {
	ch := &stubChannel{}
	clock := &fakeClock{}
	v, _ := newViewer(ch, clock)
	require.True(t, v.Apply(cart("Haircut")))

	require.NoError(t, v.SelectTip(context.Background(), decimal.Zero))

	require.Len(t, ch.writes, 1)
	assert.Equal(t, enums.DisplayStatusTipSelected, ch.writes[0].Status)
	require.NotNil(t, ch.writes[0].Tip)
	assert.True(t, ch.writes[0].Tip.IsZero())
	assert.True(t, v.Processing())
	require.Len(t, clock.waits, 1)
	assert.Equal(t, DefaultProcessingTimeout, clock.waits[0])
}

func TestSelectTipEntersProcessingWhenWritesFail(t *testing.T) {
	boom := errors.New("offline")
	ch := &stubChannel{writeErrs: []error{boom, boom, boom}}
	v, _ := newViewer(ch, &fakeClock{})
	v.Apply(cart("Color"))

	err := v.SelectTip(context.Background(), decimal.NewFromInt(3))
	assert.ErrorIs(t, err, boom)
	assert.Len(t, ch.writes, defaultTipAttempts)
	assert.True(t, v.Processing())
	assert.True(t, v.State().Tip.Equal(decimal.NewFromInt(3)))
}

func TestSelectTipRetriesUntilWritten(t *testing.T) {
	ch := &stubChannel{writeErrs: []error{errors.New("blip")}}
	v, _ := newViewer(ch, &fakeClock{})
	v.Apply(cart("Color"))

	require.NoError(t, v.SelectTip(context.Background(), decimal.NewFromInt(2)))
	assert.Len(t, ch.writes, 2)
}

func TestProcessingIgnoresIntermediateStates(t *testing.T) {
	clock := &fakeClock{}
	v, _ := newViewer(&stubChannel{}, clock)
	v.Apply(cart("Cut"))
	require.NoError(t, v.SelectTip(context.Background(), decimal.NewFromInt(1)))

	ignored := []types.DisplayState{
		{Status: enums.DisplayStatusAwaitingTip, ShowTipPrompt: true},
		{Status: enums.DisplayStatusReview},
		{Status: enums.DisplayStatusActive, Items: []types.DisplayItem{}},
	}
	for _, s := range ignored {
		assert.False(t, v.Apply(s), "state %s should be ignored", s.Status)
		assert.True(t, v.Processing())
	}
	assert.False(t, clock.last().stopped)

	assert.True(t, v.Apply(cart("Next customer")))
	assert.Equal(t, enums.DisplayStatusActive, v.State().Status)
	assert.True(t, clock.last().stopped)
}

func TestProcessingReleasedByCompletionAndCancel(t *testing.T) {
	t.Run("completed", func(t *testing.T) {
		clock := &fakeClock{}
		v, _ := newViewer(&stubChannel{}, clock)
		v.Apply(cart("Cut"))
		require.NoError(t, v.SelectTip(context.Background(), decimal.Zero))

		assert.True(t, v.Apply(types.DisplayState{Status: enums.DisplayStatusCompleted}))
		assert.Equal(t, enums.DisplayStatusCompleted, v.State().Status)
		assert.True(t, clock.last().stopped)

		v.AcknowledgeCompletion()
		assert.Equal(t, enums.DisplayStatusIdle, v.State().Status)
	})
	t.Run("cancelled clears to idle", func(t *testing.T) {
		v, rendered := newViewer(&stubChannel{}, &fakeClock{})
		v.Apply(cart("Cut"))
		require.NoError(t, v.SelectTip(context.Background(), decimal.Zero))

		assert.True(t, v.Apply(types.DisplayState{Status: enums.DisplayStatusCancelled}))
		assert.Equal(t, enums.DisplayStatusIdle, v.State().Status)
		last := (*rendered)[len(*rendered)-1]
		assert.Equal(t, enums.DisplayStatusIdle, last.Status)
	})
}

func TestProcessingTimeoutResetsToIdle(t *testing.T) {
	clock := &fakeClock{}
	v, rendered := newViewer(&stubChannel{}, clock)
	v.Apply(cart("Cut"))
	require.NoError(t, v.SelectTip(context.Background(), decimal.Zero))

	clock.last().fn()
	assert.Equal(t, enums.DisplayStatusIdle, v.State().Status)
	assert.Equal(t, enums.DisplayStatusIdle, (*rendered)[len(*rendered)-1].Status)
}

func TestStaleTimeoutDoesNotResetNewVisit(t *testing.T) {
	clock := &fakeClock{}
	v, _ := newViewer(&stubChannel{}, clock)
	v.Apply(cart("Cut"))
	require.NoError(t, v.SelectTip(context.Background(), decimal.Zero))
	stale := clock.last()

	v.Apply(types.DisplayState{Status: enums.DisplayStatusCompleted})
	v.Apply(cart("Second visit"))
	require.NoError(t, v.SelectTip(context.Background(), decimal.Zero))

	stale.fn()
	assert.True(t, v.Processing())
}

func TestAcknowledgeOnlyAffectsCompleted(t *testing.T) {
	v, _ := newViewer(&stubChannel{}, &fakeClock{})
	v.Apply(cart("Cut"))
	v.AcknowledgeCompletion()
	assert.Equal(t, enums.DisplayStatusActive, v.State().Status)
}
