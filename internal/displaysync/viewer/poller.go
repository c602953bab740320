package viewer

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/angelmondragon/franchisepos-backend/pkg/logger"
)

const (
	DefaultPollInterval     = 500 * time.Millisecond
	DefaultFailureThreshold = 3
)

type PollerOptions struct {
	Interval         time.Duration
	FailureThreshold int
	Logger           *logger.Logger
}

// Poller reads the channel with one request in flight at a time and feeds
// changed payloads to the viewer.
type Poller struct {
	channel   Channel
	viewer    *Viewer
	interval  time.Duration
	threshold int
	logg      *logger.Logger

	since       int64
	lastPayload string
	failures    int
	lost        atomic.Bool
}

func NewPoller(channel Channel, v *Viewer, opts PollerOptions) *Poller {
	p := &Poller{
		channel:   channel,
		viewer:    v,
		interval:  opts.Interval,
		threshold: opts.FailureThreshold,
		logg:      opts.Logger,
	}
	if p.interval <= 0 {
		p.interval = DefaultPollInterval
	}
	if p.threshold <= 0 {
		p.threshold = DefaultFailureThreshold
	}
	if p.logg == nil {
		p.logg = logger.Nop()
	}
	return p
}

// ConnectionLost is set after consecutive failed polls and cleared by the
// next successful one.
func (p *Poller) ConnectionLost() bool {
	return p.lost.Load()
}

// Run polls until ctx is done. The next poll is scheduled only after the
// previous one returned.
func (p *Poller) Run(ctx context.Context) error {
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
		p.PollOnce(ctx)
		timer.Reset(p.interval)
	}
}

// PollOnce performs one read and reports whether the viewer rendered it.
func (p *Poller) PollOnce(ctx context.Context) bool {
	snap, err := p.channel.Fetch(ctx, p.since)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.failures++
		if p.failures >= p.threshold && !p.lost.Swap(true) {
			p.logg.Warn(p.logg.WithFields(ctx, map[string]any{
				"failures": p.failures,
				"error":    err.Error(),
			}), "display connection lost")
		}
		return false
	}
	if p.failures > 0 || p.lost.Load() {
		p.failures = 0
		if p.lost.Swap(false) {
			p.logg.Info(ctx, "display connection restored")
		}
	}
	p.since = snap.Version

	raw, err := json.Marshal(snap.State)
	if err != nil {
		p.logg.Error(ctx, "encode display state", err)
		return false
	}
	payload := string(raw)
	// Dedupe on the last payload seen, so a state the viewer chose to ignore
	// is not offered again on every poll.
	if payload == p.lastPayload {
		return false
	}
	p.lastPayload = payload
	return p.viewer.Apply(snap.State)
}
