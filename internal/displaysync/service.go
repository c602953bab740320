package displaysync

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/angelmondragon/franchisepos-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/franchisepos-backend/pkg/errors"
	"github.com/angelmondragon/franchisepos-backend/pkg/logger"
	"github.com/angelmondragon/franchisepos-backend/pkg/metrics"
	"github.com/angelmondragon/franchisepos-backend/pkg/types"
)

const (
	pollImmediate = "immediate"
	pollChanged   = "changed"
	pollTimeout   = "timeout"
)

// Address names one display channel. Exactly one field is set.
type Address struct {
	StationID  string
	LocationID string
}

// Key scopes the address to the tenant.
func (a Address) Key(tenantID uuid.UUID) (string, error) {
	station := strings.TrimSpace(a.StationID)
	location := strings.TrimSpace(a.LocationID)
	switch {
	case station != "" && location != "":
		return "", pkgerrors.New(pkgerrors.CodeValidation, "provide stationId or locationId, not both")
	case station != "":
		return fmt.Sprintf("%s:station:%s", tenantID, station), nil
	case location != "":
		return fmt.Sprintf("%s:location:%s", tenantID, location), nil
	default:
		return "", pkgerrors.New(pkgerrors.CodeValidation, "stationId or locationId is required")
	}
}

// Service is the shared cart channel between a register and its customer display.
// Writes overwrite the channel; reads may wait for the next write.
type Service interface {
	Get(ctx context.Context, tenantID uuid.UUID, addr Address, since int64, wait time.Duration) (types.DisplaySnapshot, error)
	Write(ctx context.Context, tenantID uuid.UUID, addr Address, state types.DisplayState) (types.DisplaySnapshot, error)
}

type storedState struct {
	State     types.DisplayState `json:"cart"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

type service struct {
	store   Store
	cfg     config.DisplaySyncConfig
	metrics *metrics.DisplayMetrics
	logg    *logger.Logger
	now     func() time.Time

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewService(store Store, cfg config.DisplaySyncConfig, m *metrics.DisplayMetrics, logg *logger.Logger) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("display store required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		store:    store,
		cfg:      cfg,
		metrics:  m,
		logg:     logg,
		now:      func() time.Time { return time.Now().UTC() },
		limiters: map[string]*rate.Limiter{},
	}, nil
}

func (s *service) Get(ctx context.Context, tenantID uuid.UUID, addr Address, since int64, wait time.Duration) (types.DisplaySnapshot, error) {
	key, err := addr.Key(tenantID)
	if err != nil {
		return types.DisplaySnapshot{}, err
	}
	if s.cfg.MaxWait > 0 && wait > s.cfg.MaxWait {
		wait = s.cfg.MaxWait
	}

	snap, err := s.load(ctx, key)
	if err != nil {
		return types.DisplaySnapshot{}, err
	}
	// Any version other than the caller's is news, including a counter that went backwards.
	if snap.Version != since || wait <= 0 {
		s.metrics.IncPoll(pollImmediate)
		return snap, nil
	}

	sub, err := s.store.Subscribe(ctx, key)
	if err != nil {
		// Without a subscription the caller falls back to plain polling.
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "display subscribe failed")
		s.metrics.IncPoll(pollImmediate)
		return snap, nil
	}
	defer func() { _ = sub.Close() }()

	// A write may have landed between the first read and the subscription.
	if snap, err = s.load(ctx, key); err != nil {
		return types.DisplaySnapshot{}, err
	}
	if snap.Version != since {
		s.metrics.IncPoll(pollChanged)
		return snap, nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	for {
		select {
		case <-sub.Changes():
			next, err := s.load(ctx, key)
			if err != nil {
				return types.DisplaySnapshot{}, err
			}
			if next.Version != since {
				s.metrics.IncPoll(pollChanged)
				return next, nil
			}
			snap = next
		case <-timer.C:
			s.metrics.IncPoll(pollTimeout)
			return s.load(ctx, key)
		case <-ctx.Done():
			return snap, nil
		}
	}
}

func (s *service) Write(ctx context.Context, tenantID uuid.UUID, addr Address, state types.DisplayState) (types.DisplaySnapshot, error) {
	key, err := addr.Key(tenantID)
	if err != nil {
		return types.DisplaySnapshot{}, err
	}
	if !state.Status.IsValid() {
		return types.DisplaySnapshot{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid display status").
			WithDetails(map[string]any{"status": string(state.Status)})
	}
	if state.Items == nil {
		state.Items = []types.DisplayItem{}
	}
	if !s.limiter(key).Allow() {
		s.metrics.IncThrottled()
		return types.DisplaySnapshot{}, pkgerrors.New(pkgerrors.CodeRateLimit, "display writes are too frequent")
	}

	stored := storedState{State: state, UpdatedAt: s.now()}
	payload, err := json.Marshal(stored)
	if err != nil {
		return types.DisplaySnapshot{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode display state")
	}
	version, err := s.store.Save(ctx, key, payload)
	if err != nil {
		return types.DisplaySnapshot{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save display state")
	}
	s.metrics.IncWrite()
	s.logg.Debug(s.logg.WithFields(s.logg.WithStationID(ctx, key), map[string]any{
		"version": version,
		"status":  state.Status.String(),
	}), "display state written")

	updated := stored.UpdatedAt
	return types.DisplaySnapshot{Key: key, Version: version, State: state, UpdatedAt: &updated}, nil
}

func (s *service) load(ctx context.Context, key string) (types.DisplaySnapshot, error) {
	payload, version, found, err := s.store.Load(ctx, key)
	if err != nil {
		return types.DisplaySnapshot{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load display state")
	}
	if !found {
		return types.DisplaySnapshot{Key: key, Version: version, State: types.IdleDisplayState()}, nil
	}
	var stored storedState
	if err := json.Unmarshal(payload, &stored); err != nil {
		return types.DisplaySnapshot{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode display state")
	}
	if stored.State.Items == nil {
		stored.State.Items = []types.DisplayItem{}
	}
	updated := stored.UpdatedAt
	return types.DisplaySnapshot{Key: key, Version: version, State: stored.State, UpdatedAt: &updated}, nil
}

func (s *service) limiter(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.limiters[key]
	if !ok {
		limit := rate.Inf
		if s.cfg.WritesPerSecond > 0 {
			limit = rate.Limit(s.cfg.WritesPerSecond)
		}
		burst := s.cfg.WriteBurst
		if burst <= 0 {
			burst = 1
		}
		l = rate.NewLimiter(limit, burst)
		s.limiters[key] = l
	}
	return l
}
