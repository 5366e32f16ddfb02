package services

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"budgetbuddy/internal/cache"
	"budgetbuddy/internal/log"
	"budgetbuddy/internal/notify"
	"budgetbuddy/internal/offline"
	"budgetbuddy/internal/recordstore/memory"
	"budgetbuddy/internal/session"
)

// switchable is a Connectivity controlled by the test.
type switchable struct{ on atomic.Bool }

func (s *switchable) Online() bool { return s.on.Load() }

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type eventLog struct {
	mu     sync.Mutex
	events []notify.Event
}

func (l *eventLog) add(e notify.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) kinds() []notify.Kind {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]notify.Kind, len(l.events))
	for i, e := range l.events {
		out[i] = e.Kind
	}
	return out
}

func (l *eventLog) states() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, e := range l.events {
		if e.Kind == notify.KindSyncState {
			out = append(out, e.State)
		}
	}
	return out
}

type harness struct {
	store      *memory.Store
	backing    *cache.MemoryStore
	clock      *testClock
	dashCache  *cache.Local
	queue      *offline.Queue
	session    *session.Session
	events     *notify.Broadcaster
	log        *eventLog
	dashboard  *DashboardService
	reconciler *Reconciler
	mutations  *MutationService
}

func newHarness(t *testing.T, seed memory.Seed) *harness {
	t.Helper()
	h := &harness{
		store: memory.New(seed),
		clock: &testClock{now: time.Now()},
		log:   &eventLog{},
	}
	logger := log.Discard()
	backing := cache.NewMemoryStore(0)
	h.backing = backing

	h.dashCache = cache.NewLocal(backing,
		cache.WithNamespace("cache:"),
		cache.WithClock(h.clock.Now),
		cache.WithLogger(logger))
	syncCache := cache.NewLocal(backing,
		cache.WithNamespace("sync:"),
		cache.WithClock(h.clock.Now),
		cache.WithLogger(logger))

	h.queue = offline.NewQueue(syncCache, nil)
	h.session = session.New()
	if err := h.session.Init("u1", session.Preferences{}); err != nil {
		t.Fatalf("session init: %v", err)
	}
	h.events = notify.NewBroadcaster(logger, nil)
	h.events.Subscribe(h.log.add)

	h.dashboard = NewDashboardService(h.store, h.dashCache, h.events, logger, nil, DefaultDashboardConfig())
	h.dashboard.now = h.clock.Now
	h.reconciler = NewReconciler(ReconcilerDeps{
		Queue:     h.queue,
		Store:     h.store,
		Refresher: h.dashboard,
		Session:   h.session,
		Meta:      syncCache,
		Events:    h.events,
		Logger:    logger,
	})
	h.reconciler.now = h.clock.Now
	h.dashboard.SetConnectivity(h.reconciler)
	h.mutations = NewMutationService(h.store, h.queue, h.dashboard, h.reconciler, h.events, logger)

	t.Cleanup(h.dashboard.Wait)
	return h
}

func (h *harness) pending(t *testing.T) []offline.Mutation {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	ms, err := h.queue.Pending(ctx)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	return ms
}
