package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"cogscreen-go/internal/database"
	"cogscreen-go/internal/layout"
	"cogscreen-go/internal/metrics"
	"cogscreen-go/internal/pointer"
	"cogscreen-go/internal/repository"
	"cogscreen-go/internal/results"
	"cogscreen-go/internal/timer"
	"cogscreen-go/internal/tmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	// ErrRateLimited is returned when a session receives events faster than
	// its limiter allows. Retrying later succeeds.
	ErrRateLimited = errors.New("too many pointer events")
	// ErrBatchTooLarge is returned for batches the limiter could never
	// admit. The client has to split them.
	ErrBatchTooLarge = errors.New("pointer event batch too large")
)

// SessionConfig tunes the registry.
type SessionConfig struct {
	EventRate  float64
	EventBurst int
	// PersistDB also writes completed runs to postgres.
	PersistDB bool
	Clock     timer.Clock
}

type sessionKey struct {
	owner   string
	variant string
}

// TMTSession is one participant's run of one variant. Events are serialised
// by its mutex; lastSeen is read and written without it.
type TMTSession struct {
	mu         sync.Mutex
	controller *tmt.Controller
	limiter    *rate.Limiter
	lastSeen   atomic.Int64 // unix nanoseconds
}

// SessionRegistry owns the live trail making sessions of every participant.
type SessionRegistry struct {
	log     *zap.Logger
	catalog tmt.Catalog
	store   results.Store
	cfg     SessionConfig

	mu       sync.Mutex
	sessions map[sessionKey]*TMTSession
}

func NewSessionRegistry(log *zap.Logger, catalog tmt.Catalog, store results.Store, cfg SessionConfig) *SessionRegistry {
	if cfg.Clock == nil {
		cfg.Clock = timer.Real{}
	}
	if cfg.EventRate <= 0 {
		cfg.EventRate = float64(rate.Inf)
	}
	if cfg.EventBurst <= 0 {
		cfg.EventBurst = 1
	}
	return &SessionRegistry{
		log:      log,
		catalog:  catalog,
		store:    store,
		cfg:      cfg,
		sessions: make(map[sessionKey]*TMTSession),
	}
}

// Catalog returns the configured variants.
func (r *SessionRegistry) Catalog() tmt.Catalog { return r.catalog }

// MaxBatch is the largest event batch Dispatch accepts, or 0 when events are
// not rate limited.
func (r *SessionRegistry) MaxBatch() int {
	if rate.Limit(r.cfg.EventRate) == rate.Inf {
		return 0
	}
	return r.cfg.EventBurst
}

// Session returns the participant's session for a variant, creating an idle
// one with a fresh layout when none exists.
func (r *SessionRegistry) Session(owner, variantID string) (*TMTSession, error) {
	v, err := r.catalog.Get(variantID)
	if err != nil {
		return nil, err
	}
	key := sessionKey{owner: owner, variant: v.ID}

	now := r.cfg.Clock.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[key]; ok {
		s.touch(now)
		return s, nil
	}

	engine, err := tmt.New(r.log.With(zap.String("owner", owner)), v, tmt.Options{
		Clock: r.cfg.Clock,
		Sink:  r.sink(owner, v),
	})
	if err != nil {
		return nil, err
	}
	s := &TMTSession{
		controller: tmt.NewController(engine),
		limiter:    rate.NewLimiter(rate.Limit(r.cfg.EventRate), r.cfg.EventBurst),
	}
	s.touch(now)
	r.sessions[key] = s
	return s, nil
}

// Start arms the session. The stored result of the variant is removed, so a
// run in progress never reports the previous one.
func (r *SessionRegistry) Start(ctx context.Context, owner, variantID string) (tmt.Snapshot, error) {
	s, err := r.Session(owner, variantID)
	if err != nil {
		return tmt.Snapshot{}, err
	}
	v, _ := r.catalog.Get(variantID)
	if err := results.NewSlot[tmt.Result](r.store, owner, v.StorageKey).Clear(ctx); err != nil {
		return tmt.Snapshot{}, fmt.Errorf("clear %s: %w", v.StorageKey, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.controller.Engine.Start(); err != nil {
		return tmt.Snapshot{}, err
	}
	return s.controller.Engine.Snapshot(), nil
}

// Reset returns the session to Idle with a new layout.
func (r *SessionRegistry) Reset(owner, variantID string) (tmt.Snapshot, error) {
	s, err := r.Session(owner, variantID)
	if err != nil {
		return tmt.Snapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.controller.Engine.Reset(); err != nil {
		return tmt.Snapshot{}, err
	}
	return s.controller.Engine.Snapshot(), nil
}

// Snapshot returns the current view of the session.
func (r *SessionRegistry) Snapshot(owner, variantID string) (tmt.Snapshot, error) {
	s, err := r.Session(owner, variantID)
	if err != nil {
		return tmt.Snapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.controller.Engine.Snapshot(), nil
}

// PointerEvent is one raw browser event addressed to a session.
type PointerEvent struct {
	Phase  tmt.Phase        `json:"phase"`
	Event  pointer.RawEvent `json:"event"`
	Origin layout.Point     `json:"origin"`
}

// Dispatch applies events in order and returns the outcome of each plus the
// final snapshot. Batches over MaxBatch are refused whole with
// ErrBatchTooLarge. A sink failure stops the batch; the run stays complete.
func (r *SessionRegistry) Dispatch(owner, variantID string, events []PointerEvent) ([]tmt.Outcome, tmt.Snapshot, error) {
	if limit := r.MaxBatch(); limit > 0 && len(events) > limit {
		return nil, tmt.Snapshot{}, fmt.Errorf("%w: %d events, at most %d per batch", ErrBatchTooLarge, len(events), limit)
	}
	s, err := r.Session(owner, variantID)
	if err != nil {
		return nil, tmt.Snapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.limiter.AllowN(r.cfg.Clock.Now(), len(events)) {
		return nil, s.controller.Engine.Snapshot(), ErrRateLimited
	}
	outcomes := make([]tmt.Outcome, 0, len(events))
	for _, ev := range events {
		out, err := s.controller.Handle(ev.Phase, ev.Event, ev.Origin)
		outcomes = append(outcomes, out)
		if err != nil {
			return outcomes, s.controller.Engine.Snapshot(), err
		}
	}
	return outcomes, s.controller.Engine.Snapshot(), nil
}

// Remove drops every session of an owner.
func (r *SessionRegistry) Remove(owner string) {
	r.detach(func(key sessionKey, _ *TMTSession) bool { return key.owner == owner })
}

// EvictIdle drops sessions not touched for longer than idle and returns how
// many were removed.
func (r *SessionRegistry) EvictIdle(idle time.Duration) int {
	cutoff := r.cfg.Clock.Now().Add(-idle)
	return r.detach(func(_ sessionKey, s *TMTSession) bool { return s.idleSince().Before(cutoff) })
}

// detach unregisters the matching sessions, then closes them once the
// registry lock is released; closing waits for any event in flight.
func (r *SessionRegistry) detach(match func(sessionKey, *TMTSession) bool) int {
	r.mu.Lock()
	var detached []*TMTSession
	for key, s := range r.sessions {
		if match(key, s) {
			detached = append(detached, s)
			delete(r.sessions, key)
		}
	}
	r.mu.Unlock()

	for _, s := range detached {
		s.close()
	}
	return len(detached)
}

// Len is the number of live sessions.
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (s *TMTSession) touch(now time.Time) {
	s.lastSeen.Store(now.UnixNano())
}

func (s *TMTSession) close() {
	s.mu.Lock()
	s.controller.Engine.Close()
	s.mu.Unlock()
}

func (s *TMTSession) idleSince() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

// RecordResult stores a result computed by the browser.
func (r *SessionRegistry) RecordResult(ctx context.Context, owner, variantID string, res tmt.Result) error {
	v, err := r.catalog.Get(variantID)
	if err != nil {
		return err
	}
	if err := results.NewSlot[tmt.Result](r.store, owner, v.StorageKey).Write(ctx, res); err != nil {
		return err
	}
	if !r.dbEnabled() {
		return nil
	}
	now := r.cfg.Clock.Now()
	row := metrics.BuildTMTResult(owner, tmt.Completion{
		Variant:     v.ID,
		Radius:      v.Radius,
		Result:      res,
		StartedAt:   now.Add(-time.Duration(res.Duration * float64(time.Second))),
		CompletedAt: now,
	})
	if err := repository.SaveTMTResult(ctx, row); err != nil {
		r.log.Warn("Failed to save trail making result to database", zap.String("variant", v.ID), zap.Error(err))
	}
	return nil
}

// LatestResult reads the stored result of a variant.
func (r *SessionRegistry) LatestResult(ctx context.Context, owner, variantID string) (tmt.Result, bool, error) {
	v, err := r.catalog.Get(variantID)
	if err != nil {
		return tmt.Result{}, false, err
	}
	return results.NewSlot[tmt.Result](r.store, owner, v.StorageKey).Read(ctx)
}

func (r *SessionRegistry) dbEnabled() bool {
	return r.cfg.PersistDB && database.DB != nil
}

// sink writes a completed run to the results store and, when enabled, to
// the database. Only the store write decides success.
func (r *SessionRegistry) sink(owner string, v tmt.Variant) tmt.Sink {
	slot := results.NewSlot[tmt.Result](r.store, owner, v.StorageKey)
	return tmt.SinkFunc(func(c tmt.Completion) error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := slot.Write(ctx, c.Result); err != nil {
			return fmt.Errorf("store %s: %w", v.StorageKey, err)
		}
		if r.dbEnabled() {
			if err := repository.SaveTMTResult(ctx, metrics.BuildTMTResult(owner, c)); err != nil {
				r.log.Warn("Failed to save trail making result to database",
					zap.String("owner", owner), zap.String("variant", v.ID), zap.Error(err))
			}
		}
		return nil
	})
}
