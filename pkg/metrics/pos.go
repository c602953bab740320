package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics tracks monetary commits on the API side.
type LedgerMetrics struct {
	commits  *prometheus.CounterVec
	rejected *prometheus.CounterVec
	amount   *prometheus.CounterVec
	replays  *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewLedgerMetrics registers sale/refund metrics on the provided registerer.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	commits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_ledger_commits_total",
		Help: "Committed sales and refunds.",
	}, []string{"operation"})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_ledger_rejections_total",
		Help: "Sales and refunds rejected before commit, by error code.",
	}, []string{"operation", "code"})
	amount := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_ledger_amount_total",
		Help: "Absolute committed amount in currency units.",
	}, []string{"operation"})
	replays := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_ledger_idempotent_replays_total",
		Help: "Commits answered from an existing idempotency key.",
	}, []string{"operation"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pos_ledger_commit_duration_seconds",
		Help:    "Duration of the guarded commit transaction.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	reg.MustRegister(commits, rejected, amount, replays, duration)
	return &LedgerMetrics{
		commits:  commits,
		rejected: rejected,
		amount:   amount,
		replays:  replays,
		duration: duration,
	}
}

// ObserveCommit records a successful commit and its absolute amount.
func (m *LedgerMetrics) ObserveCommit(operation string, amount float64, took time.Duration) {
	if m == nil || m.commits == nil {
		return
	}
	op := normalizeLabel(operation)
	m.commits.WithLabelValues(op).Inc()
	if amount < 0 {
		amount = -amount
	}
	m.amount.WithLabelValues(op).Add(amount)
	m.duration.WithLabelValues(op).Observe(took.Seconds())
}

// IncRejected counts a rejected commit.
func (m *LedgerMetrics) IncRejected(operation, code string) {
	if m == nil || m.rejected == nil {
		return
	}
	m.rejected.WithLabelValues(normalizeLabel(operation), normalizeLabel(code)).Inc()
}

// IncReplay counts an idempotent replay.
func (m *LedgerMetrics) IncReplay(operation string) {
	if m == nil || m.replays == nil {
		return
	}
	m.replays.WithLabelValues(normalizeLabel(operation)).Inc()
}

// DisplayMetrics tracks the customer display channel.
type DisplayMetrics struct {
	writes    prometheus.Counter
	throttled prometheus.Counter
	waits     *prometheus.CounterVec
}

// NewDisplayMetrics registers display-sync metrics.
func NewDisplayMetrics(reg prometheus.Registerer) *DisplayMetrics {
	if reg == nil {
		return &DisplayMetrics{}
	}
	writes := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pos_display_writes_total",
		Help: "Display state overwrites.",
	})
	throttled := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pos_display_writes_throttled_total",
		Help: "Display writes rejected by the per-station limiter.",
	})
	waits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_display_polls_total",
		Help: "Display reads by outcome (immediate, changed, timeout).",
	}, []string{"outcome"})
	reg.MustRegister(writes, throttled, waits)
	return &DisplayMetrics{writes: writes, throttled: throttled, waits: waits}
}

func (m *DisplayMetrics) IncWrite() {
	if m == nil || m.writes == nil {
		return
	}
	m.writes.Inc()
}

func (m *DisplayMetrics) IncThrottled() {
	if m == nil || m.throttled == nil {
		return
	}
	m.throttled.Inc()
}

func (m *DisplayMetrics) IncPoll(outcome string) {
	if m == nil || m.waits == nil {
		return
	}
	m.waits.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// RelayMetrics tracks the audit publisher loop.
type RelayMetrics struct {
	published prometheus.Counter
	failed    prometheus.Counter
	backlog   prometheus.Gauge
}

// NewRelayMetrics registers audit relay metrics.
func NewRelayMetrics(reg prometheus.Registerer) *RelayMetrics {
	if reg == nil {
		return &RelayMetrics{}
	}
	published := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pos_audit_published_total",
		Help: "Audit events published to Pub/Sub.",
	})
	failed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pos_audit_publish_failures_total",
		Help: "Audit events that failed to publish.",
	})
	backlog := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pos_audit_batch_size",
		Help: "Unpublished audit events fetched in the last batch.",
	})
	reg.MustRegister(published, failed, backlog)
	return &RelayMetrics{published: published, failed: failed, backlog: backlog}
}

func (m *RelayMetrics) IncPublished() {
	if m == nil || m.published == nil {
		return
	}
	m.published.Inc()
}

func (m *RelayMetrics) IncFailed() {
	if m == nil || m.failed == nil {
		return
	}
	m.failed.Inc()
}

func (m *RelayMetrics) SetBatch(n int) {
	if m == nil || m.backlog == nil {
		return
	}
	m.backlog.Set(float64(n))
}

// OfflineMetrics tracks the terminal-side offline queue.
type OfflineMetrics struct {
	depth   prometheus.Gauge
	replays *prometheus.CounterVec
}

// NewOfflineMetrics registers offline queue metrics.
func NewOfflineMetrics(reg prometheus.Registerer) *OfflineMetrics {
	if reg == nil {
		return &OfflineMetrics{}
	}
	depth := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pos_offline_queue_depth",
		Help: "Captured mutations waiting for replay.",
	})
	replays := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_offline_replays_total",
		Help: "Offline replays by outcome (synced, rejected, deferred).",
	}, []string{"outcome"})
	reg.MustRegister(depth, replays)
	return &OfflineMetrics{depth: depth, replays: replays}
}

func (m *OfflineMetrics) SetDepth(n int64) {
	if m == nil || m.depth == nil {
		return
	}
	m.depth.Set(float64(n))
}

func (m *OfflineMetrics) IncReplay(outcome string) {
	if m == nil || m.replays == nil {
		return
	}
	m.replays.WithLabelValues(normalizeLabel(outcome)).Inc()
}
