package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"budgetbuddy/internal/aggregate"
	"budgetbuddy/internal/cache"
	"budgetbuddy/internal/core"
	"budgetbuddy/internal/log"
	"budgetbuddy/internal/metrics"
	"budgetbuddy/internal/notify"
	"budgetbuddy/internal/recordstore"
)

// Source tells where a dashboard snapshot came from.
type Source string

const (
	SourceCache  Source = "cache"
	SourceRemote Source = "remote"
	SourceStale  Source = "stale"
	SourceEmpty  Source = "empty"
)

// Connectivity reports whether remote calls should be attempted.
type Connectivity interface {
	Online() bool
}

// DashboardConfig controls caching and the snapshot shape.
type DashboardConfig struct {
	TTLMinutes        int
	Options           aggregate.Options
	BackgroundTimeout time.Duration
}

// DefaultDashboardConfig returns sensible defaults
func DefaultDashboardConfig() DashboardConfig {
	return DashboardConfig{
		TTLMinutes: 5,
		Options: aggregate.Options{
			Window:   aggregate.DefaultWindow,
			TopLimit: aggregate.DefaultTopLimit,
		},
		BackgroundTimeout: 30 * time.Second,
	}
}

// DashboardService serves dashboard snapshots cache-first.
type DashboardService struct {
	store   recordstore.Store
	cache   *cache.Local
	events  *notify.Broadcaster
	logger  *log.Logger
	metrics *metrics.Metrics
	config  DashboardConfig
	now     func() time.Time

	mu           sync.RWMutex
	connectivity Connectivity

	flight singleflight.Group
	wg     sync.WaitGroup

	// Shared fetches run under flightCtx, detached from their callers and
	// cancelled by Interrupt.
	flightMu     sync.Mutex
	flightCtx    context.Context
	flightCancel context.CancelFunc
}

func NewDashboardService(
	store recordstore.Store,
	c *cache.Local,
	events *notify.Broadcaster,
	logger *log.Logger,
	m *metrics.Metrics,
	config DashboardConfig,
) *DashboardService {
	if logger == nil {
		logger = log.Default(log.ComponentDashboard)
	}
	if config.BackgroundTimeout <= 0 {
		config.BackgroundTimeout = DefaultDashboardConfig().BackgroundTimeout
	}
	return &DashboardService{
		store:   store,
		cache:   c,
		events:  events,
		logger:  logger,
		metrics: m,
		config:  config,
		now:     time.Now,
	}
}

// SetConnectivity wires the online/offline source. Until it is set the
// service assumes it is online.
func (s *DashboardService) SetConnectivity(c Connectivity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connectivity = c
}

func (s *DashboardService) online() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connectivity == nil || s.connectivity.Online()
}

// Cached returns the cached snapshot. Stale entries are accepted only while
// offline.
func (s *DashboardService) Cached(ctx context.Context, userID string) (core.Snapshot, Source, bool) {
	var snap core.Snapshot
	key := cache.DashboardKey(userID)
	if s.cache.Get(ctx, key, &snap) {
		return snap, SourceCache, true
	}
	if !s.online() && s.cache.GetStale(ctx, key, &snap) {
		return snap, SourceStale, true
	}
	return core.Snapshot{}, SourceEmpty, false
}

// Refresh refetches the user's records, recomputes the snapshot and
// overwrites the cache. Concurrent refreshes for one user share a fetch. The
// shared fetch does not inherit any caller's cancellation: a caller whose ctx
// ends gets ctx.Err() while the fetch finishes for the others, unless
// Interrupt stops it.
func (s *DashboardService) Refresh(ctx context.Context, userID string) (core.Snapshot, error) {
	base := s.flightContext()

	s.wg.Add(1)
	ch := s.flight.DoChan(userID, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.BackgroundTimeout)
		defer cancel()
		stop := context.AfterFunc(base, cancel)
		defer stop()
		return s.refresh(fctx, userID)
	})

	select {
	case res := <-ch:
		s.wg.Done()
		if res.Err != nil {
			return core.Snapshot{}, res.Err
		}
		return res.Val.(core.Snapshot), nil
	case <-ctx.Done():
		go func() {
			<-ch
			s.wg.Done()
		}()
		return core.Snapshot{}, ctx.Err()
	}
}

func (s *DashboardService) flightContext() context.Context {
	s.flightMu.Lock()
	defer s.flightMu.Unlock()
	if s.flightCtx == nil {
		s.flightCtx, s.flightCancel = context.WithCancel(context.Background())
	}
	return s.flightCtx
}

// Interrupt cancels every refresh in flight. Later refreshes start normally.
func (s *DashboardService) Interrupt() {
	s.flightMu.Lock()
	defer s.flightMu.Unlock()
	if s.flightCancel != nil {
		s.flightCancel()
		s.flightCtx, s.flightCancel = nil, nil
	}
}

func (s *DashboardService) refresh(ctx context.Context, userID string) (core.Snapshot, error) {
	var (
		txs  []core.Transaction
		cats []core.Category
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		txs, err = s.store.TransactionsByUser(gctx, userID)
		if err != nil {
			return fmt.Errorf("fetch transactions: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		cats, err = s.store.Categories(gctx, userID)
		if err != nil {
			return fmt.Errorf("fetch categories: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		s.metrics.Refresh(false)
		return core.Snapshot{}, err
	}

	snap := aggregate.Build(userID, txs, cats, s.config.Options, s.now())
	s.cache.Set(ctx, cache.DashboardKey(userID), snap, s.config.TTLMinutes)
	s.metrics.Refresh(true)

	s.logger.DebugContext(ctx, "Dashboard recomputed",
		log.FieldUserID, userID,
		"transactions", snap.TransactionCount)
	s.events.Publish(ctx, notify.Event{Kind: notify.KindSummaryChanged, UserID: userID})
	return snap, nil
}

// Load returns the best snapshot available without failing. Offline it
// serves the cache regardless of age. Online a cache hit is returned at once
// and refreshed in the background; a miss is fetched synchronously, falling
// back to stale data or an empty snapshot.
func (s *DashboardService) Load(ctx context.Context, userID string) (core.Snapshot, Source) {
	key := cache.DashboardKey(userID)
	var snap core.Snapshot

	if !s.online() {
		if s.cache.Get(ctx, key, &snap) {
			return snap, SourceCache
		}
		if s.cache.GetStale(ctx, key, &snap) {
			return snap, SourceStale
		}
		return aggregate.Empty(userID, s.config.Options, s.now()), SourceEmpty
	}

	if s.cache.Get(ctx, key, &snap) {
		s.RefreshAsync(ctx, userID)
		return snap, SourceCache
	}

	fresh, err := s.Refresh(ctx, userID)
	if err == nil {
		return fresh, SourceRemote
	}
	s.logger.WarnContext(ctx, "Dashboard refresh failed, falling back to cache",
		log.FieldUserID, userID, log.FieldError, err)

	if s.cache.GetStale(ctx, key, &snap) {
		return snap, SourceStale
	}
	return aggregate.Empty(userID, s.config.Options, s.now()), SourceEmpty
}

// RefreshAsync refreshes in the background, detached from ctx's cancellation.
func (s *DashboardService) RefreshAsync(ctx context.Context, userID string) {
	if !s.online() {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.BackgroundTimeout)
		defer cancel()
		if _, err := s.Refresh(bg, userID); err != nil {
			s.logger.WarnContext(bg, "Background refresh failed",
				log.FieldUserID, userID, log.FieldError, err)
		}
	}()
}

// Wait blocks until background refreshes have finished.
func (s *DashboardService) Wait() {
	s.wg.Wait()
}
