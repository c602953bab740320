// Package viewer drives the customer-facing display: it mirrors the cashier's
// cart from the shared display channel and collects the tip selection.
package viewer

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/franchisepos-backend/pkg/enums"
	"github.com/angelmondragon/franchisepos-backend/pkg/logger"
	"github.com/angelmondragon/franchisepos-backend/pkg/types"
)

const (
	DefaultProcessingTimeout = 2 * time.Minute
	defaultTipAttempts       = 3
	defaultTipRetryDelay     = 250 * time.Millisecond
)

// Channel is the shared display state for one station or location.
type Channel interface {
	Fetch(ctx context.Context, since int64) (types.DisplaySnapshot, error)
	Write(ctx context.Context, state types.DisplayState) error
}

// Timer is the subset of *time.Timer the viewer needs.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

type Options struct {
	Channel           Channel
	ProcessingTimeout time.Duration
	TipAttempts       int
	TipRetryDelay     time.Duration
	AfterFunc         AfterFunc
	// OnChange receives every state the display renders.
	OnChange func(types.DisplayState)
	Logger   *logger.Logger
}

// Viewer holds the locally rendered display state.
type Viewer struct {
	channel   Channel
	timeout   time.Duration
	attempts  int
	delay     time.Duration
	afterFunc AfterFunc
	onChange  func(types.DisplayState)
	logg      *logger.Logger

	mu         sync.Mutex
	state      types.DisplayState
	timer      Timer
	generation uint64
}

func New(opts Options) *Viewer {
	v := &Viewer{
		channel:   opts.Channel,
		timeout:   opts.ProcessingTimeout,
		attempts:  opts.TipAttempts,
		delay:     opts.TipRetryDelay,
		afterFunc: opts.AfterFunc,
		onChange:  opts.OnChange,
		logg:      opts.Logger,
		state:     types.IdleDisplayState(),
	}
	if v.timeout <= 0 {
		v.timeout = DefaultProcessingTimeout
	}
	if v.attempts <= 0 {
		v.attempts = defaultTipAttempts
	}
	if v.delay <= 0 {
		v.delay = defaultTipRetryDelay
	}
	if v.afterFunc == nil {
		v.afterFunc = realAfterFunc
	}
	if v.logg == nil {
		v.logg = logger.Nop()
	}
	return v
}

// State returns the currently rendered state.
func (v *Viewer) State() types.DisplayState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Processing reports whether the display shows the payment holding screen.
func (v *Viewer) Processing() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state.Status == enums.DisplayStatusTipSelected
}

// Apply renders a state read from the channel. It returns false when the
// state was ignored.
func (v *Viewer) Apply(incoming types.DisplayState) bool {
	v.mu.Lock()
	if v.state.Status == enums.DisplayStatusTipSelected && !releasesProcessing(incoming) {
		v.mu.Unlock()
		return false
	}
	if incoming.Status == enums.DisplayStatusCancelled {
		incoming = types.IdleDisplayState()
	}
	v.setLocked(incoming)
	rendered := v.state
	v.mu.Unlock()

	v.notify(rendered)
	return true
}

// SelectTip records the customer's tip (zero included). The choice is
// written to the channel first; the display enters processing even when
// every write attempt failed.
func (v *Viewer) SelectTip(ctx context.Context, amount decimal.Decimal) error {
	v.mu.Lock()
	next := v.state
	v.mu.Unlock()

	tip := amount
	next.Tip = &tip
	next.TipSelected = true
	next.ShowTipPrompt = false
	next.Status = enums.DisplayStatusTipSelected

	err := v.writeTip(ctx, next)
	if err != nil {
		v.logg.Warn(v.logg.WithFields(ctx, map[string]any{
			"tip":   amount.StringFixed(2),
			"error": err.Error(),
		}), "tip write failed, continuing to processing")
	}

	v.mu.Lock()
	v.setLocked(next)
	rendered := v.state
	v.mu.Unlock()

	v.notify(rendered)
	return err
}

// AcknowledgeCompletion returns a thank-you screen to idle.
func (v *Viewer) AcknowledgeCompletion() {
	v.mu.Lock()
	if v.state.Status != enums.DisplayStatusCompleted {
		v.mu.Unlock()
		return
	}
	v.setLocked(types.IdleDisplayState())
	rendered := v.state
	v.mu.Unlock()

	v.notify(rendered)
}

func (v *Viewer) writeTip(ctx context.Context, state types.DisplayState) error {
	if v.channel == nil {
		return nil
	}
	var err error
	for attempt := 1; attempt <= v.attempts; attempt++ {
		if err = v.channel.Write(ctx, state); err == nil {
			return nil
		}
		if attempt == v.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(v.delay):
		}
	}
	return err
}

// setLocked swaps the rendered state and keeps the processing timer in step.
func (v *Viewer) setLocked(next types.DisplayState) {
	if next.Items == nil {
		next.Items = []types.DisplayItem{}
	}
	wasProcessing := v.state.Status == enums.DisplayStatusTipSelected
	isProcessing := next.Status == enums.DisplayStatusTipSelected
	v.state = next

	if wasProcessing && isProcessing {
		return
	}
	v.stopTimerLocked()
	if isProcessing {
		gen := v.generation
		v.timer = v.afterFunc(v.timeout, func() { v.abandon(gen) })
	}
}

func (v *Viewer) stopTimerLocked() {
	v.generation++
	if v.timer != nil {
		v.timer.Stop()
		v.timer = nil
	}
}

// abandon resets a processing screen nobody completed.
func (v *Viewer) abandon(gen uint64) {
	v.mu.Lock()
	if gen != v.generation || v.state.Status != enums.DisplayStatusTipSelected {
		v.mu.Unlock()
		return
	}
	v.timer = nil
	v.generation++
	v.state = types.IdleDisplayState()
	rendered := v.state
	v.mu.Unlock()

	v.logg.Info(context.Background(), "processing screen timed out, display reset to idle")
	v.notify(rendered)
}

func (v *Viewer) notify(state types.DisplayState) {
	if v.onChange != nil {
		v.onChange(state)
	}
}

func releasesProcessing(s types.DisplayState) bool {
	switch s.Status {
	case enums.DisplayStatusCompleted, enums.DisplayStatusIdle, enums.DisplayStatusCancelled:
		return true
	case enums.DisplayStatusActive:
		return len(s.Items) > 0
	default:
		return false
	}
}
