// Package memory implements the tiered memory manager: classification into
// five retention tiers, relevance-ranked retrieval, background consolidation
// and forgetting, and snapshot persistence of the durable tiers.
//
// A Manager owns every tier store. Foreground operations (Store, Retrieve,
// Update, Forget, Search) and the two background sweeps all reach tier state
// through it. Each tier serializes access with its own mutex; moves between
// tiers (working overflow, promotion, restore) additionally hold the
// manager's topology lock so that readers never observe an item in two
// tiers, or in none, mid-move.
package memory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/rcliao/tiered-memory/internal/analyzer"
	"github.com/rcliao/tiered-memory/internal/metrics"
	"github.com/rcliao/tiered-memory/internal/model"
	"github.com/rcliao/tiered-memory/internal/store"
	"github.com/rcliao/tiered-memory/internal/tier"
)

type state int

const (
	stateNew state = iota
	stateRunning
	stateClosed
)

// Manager is the lifecycle object that owns the tier stores and the
// background sweeps.
type Manager struct {
	cfg     Config
	backend store.Backend
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	rngMu sync.Mutex
	rng   *rand.Rand

	idMu    sync.Mutex
	entropy io.Reader

	topo      sync.RWMutex
	working   *tier.Working
	shortTerm *tier.ShortTerm
	longTerm  *tier.LongTerm
	episodic  *tier.Episodic
	semantic  *tier.Semantic
	sources   map[model.Tier]Source

	stateMu   sync.Mutex
	state     state
	scheduler *cron.Cron
	schedule  bool

	stats counters
}

// Option customizes a Manager.
type Option func(*Manager)

// WithClock replaces time.Now, for simulated time in tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithRand injects the random source used by the forgetting sweep.
func WithRand(r *rand.Rand) Option {
	return func(m *Manager) { m.rng = r }
}

// WithMetrics mirrors stats into Prometheus collectors.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// WithoutScheduler disables the background timers; sweeps then run only
// when Consolidate or ApplyForgetting is called.
func WithoutScheduler() Option {
	return func(m *Manager) { m.schedule = false }
}

// New creates a manager. backend may be nil, which disables persistence
// regardless of cfg.PersistenceEnabled.
func New(cfg Config, backend store.Backend, logger *zap.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		cfg:      cfg,
		backend:  backend,
		logger:   logger.With(zap.String("component", "memory_manager")),
		now:      time.Now,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		entropy:  ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
		schedule: true,
	}
	for _, opt := range opts {
		opt(m)
	}

	m.shortTerm = tier.NewShortTerm()
	m.longTerm = tier.NewLongTerm()
	m.working = tier.NewWorking(cfg.WorkingMemoryCapacity, m.shortTerm)
	m.working.OnEvict(func(it *model.Item) {
		m.stats.add(func(c *counters) { c.WorkingEvictions++ })
		m.metrics.ObserveEviction(string(model.TierWorking))
		m.logger.Debug("working set full, moved to short-term", zap.String("id", it.ID))
	})
	m.episodic = tier.NewEpisodic(cfg.EpisodicRetention)
	m.episodic.OnEvict(func(it *model.Item) {
		m.stats.add(func(c *counters) { c.EpisodicEvictions++ })
		m.metrics.ObserveEviction(string(model.TierEpisodic))
	})
	m.semantic = tier.NewSemantic(semanticKey)

	m.sources = make(map[model.Tier]Source, len(model.AllTiers))
	for _, t := range model.AllTiers {
		m.sources[t] = storeSource{m.tierStore(t)}
	}
	return m
}

func semanticKey(it *model.Item) string {
	return analyzer.DerivedKey(it.Content.String())
}

// Config returns the active configuration.
func (m *Manager) Config() Config { return m.cfg }

// Initialize restores the durable tiers from the backend and starts the
// background sweeps. A missing snapshot starts empty; a corrupt one is
// logged and also starts empty. Backend I/O failures are returned.
func (m *Manager) Initialize(ctx context.Context) error {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()

	switch m.state {
	case stateRunning:
		return nil
	case stateClosed:
		return fmt.Errorf("initialize: %w", ErrNotInitialized)
	}

	if m.persistenceEnabled() {
		data, err := m.backend.Load(ctx)
		if err != nil {
			return fmt.Errorf("load snapshot: %w", err)
		}
		if data != nil {
			if err := m.Restore(data); err != nil {
				m.logger.Error("snapshot unreadable, starting with empty durable tiers", zap.Error(err))
			}
		}
	}

	if m.schedule {
		if err := m.startScheduler(); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
	}

	m.state = stateRunning
	m.logger.Info("memory manager initialized",
		zap.Int("long_term", m.longTerm.Size()),
		zap.Int("semantic", m.semantic.Size()),
		zap.Int("episodic", m.episodic.Size()),
		zap.Bool("persistence", m.persistenceEnabled()),
	)
	return nil
}

// Shutdown stops the sweeps, letting a running sweep finish, and then
// persists the durable tiers.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()

	if m.state != stateRunning {
		return nil
	}
	m.state = stateClosed

	if m.scheduler != nil {
		stopped := m.scheduler.Stop()
		select {
		case <-stopped.Done():
		case <-ctx.Done():
			return fmt.Errorf("waiting for running sweep: %w", ctx.Err())
		}
	}

	var errs []error
	if m.persistenceEnabled() {
		if err := m.Persist(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if m.backend != nil {
		if err := m.backend.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close backend: %w", err))
		}
	}
	m.logger.Info("memory manager stopped")
	return errors.Join(errs...)
}

func (m *Manager) persistenceEnabled() bool {
	return m.cfg.PersistenceEnabled && m.backend != nil
}

func (m *Manager) ready() error {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	if m.state != stateRunning {
		return ErrNotInitialized
	}
	return nil
}

func (m *Manager) newID(t time.Time) string {
	m.idMu.Lock()
	defer m.idMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), m.entropy).String()
}

// draw returns the next value of the injected source, in [0,1).
func (m *Manager) draw() float64 {
	m.rngMu.Lock()
	defer m.rngMu.Unlock()
	return m.rng.Float64()
}

func (m *Manager) tierStore(t model.Tier) tier.Store {
	switch t {
	case model.TierWorking:
		return m.working
	case model.TierShortTerm:
		return m.shortTerm
	case model.TierLongTerm:
		return m.longTerm
	case model.TierEpisodic:
		return m.episodic
	case model.TierSemantic:
		return m.semantic
	}
	return nil
}

// locate returns the tier holding id. Callers hold topo.
func (m *Manager) locate(id string) (*model.Item, tier.Store, bool) {
	for _, t := range model.AllTiers {
		s := m.tierStore(t)
		if it, ok := s.Get(id); ok {
			return it, s, true
		}
	}
	return nil, nil, false
}

func (m *Manager) refreshTierGauges() {
	if m.metrics == nil {
		return
	}
	for _, t := range model.AllTiers {
		m.metrics.SetTierItems(string(t), m.tierStore(t).Size())
	}
}
