// Package search runs the register's type-ahead product lookup.
package search

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/angelmondragon/franchisepos-backend/pkg/logger"
	"github.com/angelmondragon/franchisepos-backend/pkg/types"
)

const (
	DefaultDebounce = 250 * time.Millisecond
	DefaultLimit    = 10
	minQueryLength  = 2
)

// Searcher queries the catalog.
type Searcher interface {
	SearchProducts(ctx context.Context, query string, limit int) ([]types.ProductSummary, error)
}

type Timer interface {
	Stop() bool
}

type AfterFunc func(d time.Duration, f func()) Timer

type Options struct {
	Debounce  time.Duration
	Limit     int
	AfterFunc AfterFunc
	// OnResults fires whenever the visible results or cursor change.
	OnResults func(query string, results []types.ProductSummary, cursor int)
	// OnSelect fires when Enter commits a result.
	OnSelect func(types.ProductSummary)
	Logger   *logger.Logger
}

// Session is one search box. Keystrokes debounce; a newer query cancels the
// request for an older one and its response is dropped.
type Session struct {
	searcher  Searcher
	debounce  time.Duration
	limit     int
	afterFunc AfterFunc
	onResults func(string, []types.ProductSummary, int)
	onSelect  func(types.ProductSummary)
	logg      *logger.Logger

	mu       sync.Mutex
	ctx      context.Context
	stop     context.CancelFunc
	query    string
	results  []types.ProductSummary
	cursor   int
	seq      uint64
	timer    Timer
	inflight context.CancelFunc
	closed   bool
}

func NewSession(ctx context.Context, searcher Searcher, opts Options) *Session {
	s := &Session{
		searcher:  searcher,
		debounce:  opts.Debounce,
		limit:     opts.Limit,
		afterFunc: opts.AfterFunc,
		onResults: opts.OnResults,
		onSelect:  opts.OnSelect,
		logg:      opts.Logger,
		results:   []types.ProductSummary{},
	}
	if s.debounce <= 0 {
		s.debounce = DefaultDebounce
	}
	if s.limit <= 0 {
		s.limit = DefaultLimit
	}
	if s.afterFunc == nil {
		s.afterFunc = func(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
	}
	if s.logg == nil {
		s.logg = logger.Nop()
	}
	s.ctx, s.stop = context.WithCancel(ctx)
	return s
}

// Type replaces the query with the full text of the search box.
func (s *Session) Type(query string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.supersedeLocked()
	s.query = query
	seq := s.seq

	trimmed := strings.TrimSpace(query)
	if utf8.RuneCountInString(trimmed) < minQueryLength {
		s.results = []types.ProductSummary{}
		s.cursor = 0
		s.mu.Unlock()
		s.emit()
		return
	}
	s.timer = s.afterFunc(s.debounce, func() { s.fire(seq, trimmed) })
	s.mu.Unlock()
}

func (s *Session) fire(seq uint64, query string) {
	s.mu.Lock()
	if s.closed || seq != s.seq {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(s.ctx)
	s.inflight = cancel
	s.mu.Unlock()
	defer cancel()

	results, err := s.searcher.SearchProducts(ctx, query, s.limit)

	s.mu.Lock()
	if s.closed || seq != s.seq {
		s.mu.Unlock()
		return
	}
	s.inflight = nil
	if err != nil {
		s.mu.Unlock()
		if ctx.Err() == nil {
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{"query": query, "error": err.Error()}), "product search failed")
		}
		return
	}
	if results == nil {
		results = []types.ProductSummary{}
	}
	s.results = results
	s.cursor = 0
	s.mu.Unlock()
	s.emit()
}

// KeyUp moves the cursor up, stopping at the first result.
func (s *Session) KeyUp() { s.move(-1) }

// KeyDown moves the cursor down, stopping at the last result.
func (s *Session) KeyDown() { s.move(1) }

func (s *Session) move(delta int) {
	s.mu.Lock()
	next := clamp(s.cursor+delta, len(s.results))
	changed := next != s.cursor
	s.cursor = next
	s.mu.Unlock()
	if changed {
		s.emit()
	}
}

// Enter commits the highlighted result.
func (s *Session) Enter() (types.ProductSummary, bool) {
	s.mu.Lock()
	if s.closed || len(s.results) == 0 {
		s.mu.Unlock()
		return types.ProductSummary{}, false
	}
	picked := s.results[s.cursor]
	s.mu.Unlock()
	if s.onSelect != nil {
		s.onSelect(picked)
	}
	return picked, true
}

// Escape abandons the session including any pending or in-flight search.
func (s *Session) Escape() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.supersedeLocked()
	s.closed = true
	s.query = ""
	s.results = []types.ProductSummary{}
	s.cursor = 0
	s.mu.Unlock()
	s.stop()
	s.emit()
}

func (s *Session) Results() []types.ProductSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.ProductSummary(nil), s.results...)
}

func (s *Session) Cursor() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// supersedeLocked invalidates the pending timer and the in-flight request.
func (s *Session) supersedeLocked() {
	s.seq++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.inflight != nil {
		s.inflight()
		s.inflight = nil
	}
}

func (s *Session) emit() {
	if s.onResults == nil {
		return
	}
	s.mu.Lock()
	query, results, cursor := s.query, append([]types.ProductSummary(nil), s.results...), s.cursor
	s.mu.Unlock()
	s.onResults(query, results, cursor)
}

func clamp(i, n int) int {
	if n == 0 || i < 0 {
		return 0
	}
	if i > n-1 {
		return n - 1
	}
	return i
}
