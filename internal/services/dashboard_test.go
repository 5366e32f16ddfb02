package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"budgetbuddy/internal/cache"
	"budgetbuddy/internal/core"
	"budgetbuddy/internal/log"
	"budgetbuddy/internal/notify"
	"budgetbuddy/internal/recordstore/memory"
)

func seedSpendings() memory.Seed {
	today := time.Now().Format(core.DateLayout)
	return memory.Seed{
		Categories: []core.Category{
			{ID: "food", Name: "Food", Type: core.Expense},
			{ID: "transport", Name: "Transport", Type: core.Expense},
		},
		Transactions: []core.Transaction{
			{ID: "1", UserID: "u1", Amount: core.AmountOf("100"), Type: core.Income, Date: today},
			{ID: "2", UserID: "u1", Amount: core.AmountOf("40"), Type: core.Expense, CategoryID: "food", Date: today},
			{ID: "3", UserID: "u1", Amount: core.AmountOf("20"), Type: core.Expense, CategoryID: "food", Date: today},
			{ID: "4", UserID: "u1", Amount: core.AmountOf("15"), Type: core.Expense, CategoryID: "transport", Date: today},
		},
	}
}

func goOnline(t *testing.T, h *harness) {
	t.Helper()
	if _, err := h.reconciler.GoOnline(context.Background()); err != nil {
		t.Fatalf("GoOnline: %v", err)
	}
	if err := h.dashCache.Clear(context.Background()); err != nil {
		t.Fatalf("clear: %v", err)
	}
}

func TestDashboardRefresh(t *testing.T) {
	h := newHarness(t, seedSpendings())

	snap, err := h.dashboard.Refresh(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if snap.Summary.Balance().String() != "25" {
		t.Errorf("balance = %s, want 25", snap.Summary.Balance())
	}
	if len(snap.ExpenseBreakdown) != 2 || snap.ExpenseBreakdown[0].CategoryName != "Food" {
		t.Fatalf("unexpected breakdown: %+v", snap.ExpenseBreakdown)
	}
	if len(snap.TopCategories) != 2 || snap.TopCategories[0].TransactionCount != 2 {
		t.Fatalf("unexpected top categories: %+v", snap.TopCategories)
	}
	if len(snap.Monthly) != DefaultDashboardConfig().Options.Window {
		t.Fatalf("monthly buckets = %d", len(snap.Monthly))
	}

	var cached core.Snapshot
	if !h.dashCache.Get(context.Background(), cache.DashboardKey("u1"), &cached) {
		t.Fatal("expected Refresh to overwrite the cache")
	}
	if kinds := h.log.kinds(); len(kinds) == 0 || kinds[len(kinds)-1] != notify.KindSummaryChanged {
		t.Errorf("expected a summary.changed event, got %v", kinds)
	}
}

func TestDashboardRefreshFailure(t *testing.T) {
	h := newHarness(t, seedSpendings())
	h.store.SetFault(func(op, _ string) error {
		if op == memory.OpCategories {
			return errors.New("denied")
		}
		return nil
	})
	if _, err := h.dashboard.Refresh(context.Background(), "u1"); err == nil {
		t.Fatal("expected an error when categories cannot be fetched")
	}
	if _, _, ok := h.dashboard.Cached(context.Background(), "u1"); ok {
		t.Fatal("a failed refresh must not write the cache")
	}
}

func TestDashboardLoadOnline(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, seedSpendings())
	goOnline(t, h)

	snap, source := h.dashboard.Load(ctx, "u1")
	if source != SourceRemote {
		t.Fatalf("first load source = %s, want remote", source)
	}
	if snap.TransactionCount != 4 {
		t.Fatalf("transactions = %d", snap.TransactionCount)
	}

	_, source = h.dashboard.Load(ctx, "u1")
	if source != SourceCache {
		t.Fatalf("second load source = %s, want cache", source)
	}
	h.dashboard.Wait()
}

func TestDashboardLoadFallsBackToStale(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, seedSpendings())
	goOnline(t, h)

	if _, source := h.dashboard.Load(ctx, "u1"); source != SourceRemote {
		t.Fatalf("source = %s", source)
	}
	h.clock.Advance(10 * time.Minute)
	h.store.SetOffline(true)

	snap, source := h.dashboard.Load(ctx, "u1")
	if source != SourceStale {
		t.Fatalf("source = %s, want stale", source)
	}
	if snap.TransactionCount != 4 {
		t.Fatalf("stale snapshot lost data: %+v", snap)
	}
}

func TestDashboardLoadEmpty(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, seedSpendings())
	goOnline(t, h)
	h.store.SetOffline(true)

	snap, source := h.dashboard.Load(ctx, "u1")
	if source != SourceEmpty {
		t.Fatalf("source = %s, want empty", source)
	}
	if snap.TransactionCount != 0 || len(snap.Monthly) != DefaultDashboardConfig().Options.Window {
		t.Fatalf("unexpected empty snapshot: %+v", snap)
	}
	if snap.ExpenseBreakdown == nil || snap.TopCategories == nil {
		t.Fatal("empty snapshot should carry empty, non-nil slices")
	}
}

func TestDashboardLoadOffline(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, seedSpendings())

	// Offline from the start: nothing cached, no remote calls.
	h.store.SetFault(func(op, _ string) error {
		t.Errorf("unexpected remote call %s while offline", op)
		return nil
	})
	if _, source := h.dashboard.Load(ctx, "u1"); source != SourceEmpty {
		t.Fatalf("source = %s, want empty", source)
	}

	h.store.SetFault(nil)
	if _, err := h.dashboard.Refresh(ctx, "u1"); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	h.clock.Advance(time.Hour)

	_, source, ok := h.dashboard.Cached(ctx, "u1")
	if !ok || source != SourceStale {
		t.Fatalf("Cached offline = %v %s, want stale hit", ok, source)
	}
	if _, source := h.dashboard.Load(ctx, "u1"); source != SourceStale {
		t.Fatalf("Load offline source = %s, want stale", source)
	}
}

// gatedStore blocks transaction listing until release is closed or the
// call's context ends.
type gatedStore struct {
	*memory.Store
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedStore(seed memory.Seed) *gatedStore {
	return &gatedStore{
		Store:   memory.New(seed),
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (g *gatedStore) TransactionsByUser(ctx context.Context, userID string) ([]core.Transaction, error) {
	g.once.Do(func() { close(g.started) })
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return g.Store.TransactionsByUser(ctx, userID)
}

func newGatedDashboard(t *testing.T, store *gatedStore) (*DashboardService, *cache.Local) {
	t.Helper()
	c := cache.NewLocal(cache.NewMemoryStore(0), cache.WithLogger(log.Discard()))
	d := NewDashboardService(store, c, notify.NewBroadcaster(log.Discard(), nil), log.Discard(), nil, DefaultDashboardConfig())
	t.Cleanup(d.Wait)
	return d, c
}

func waitFor(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func TestRefreshSurvivesCallerCancel(t *testing.T) {
	store := newGatedStore(seedSpendings())
	d, c := newGatedDashboard(t, store)

	ctx, cancel := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := d.Refresh(ctx, "u1")
		errA <- err
	}()
	waitFor(t, store.started, "fetch to start")

	cancel()
	select {
	case err := <-errA:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("cancelled caller got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled caller did not return")
	}

	errB := make(chan error, 1)
	go func() {
		_, err := d.Refresh(context.Background(), "u1")
		errB <- err
	}()
	close(store.release)

	select {
	case err := <-errB:
		if err != nil {
			t.Fatalf("second caller: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("second caller did not return")
	}

	d.Wait()
	var snap core.Snapshot
	if !c.Get(context.Background(), cache.DashboardKey("u1"), &snap) || snap.TransactionCount != 4 {
		t.Fatalf("shared fetch did not complete after the first caller left: %+v", snap)
	}
}

func TestGoOfflineInterruptsRefresh(t *testing.T) {
	store := newGatedStore(seedSpendings())
	d, _ := newGatedDashboard(t, store)
	h := newHarness(t, memory.Seed{})
	r := NewReconciler(ReconcilerDeps{
		Queue:     h.queue,
		Store:     store,
		Refresher: d,
		Session:   h.session,
		Events:    h.events,
		Logger:    log.Discard(),
	})

	errs := make(chan error, 1)
	go func() {
		// A refresh started by someone other than the reconciler.
		_, err := d.Refresh(context.Background(), "u1")
		errs <- err
	}()
	waitFor(t, store.started, "fetch to start")

	r.GoOffline(context.Background())

	select {
	case err := <-errs:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected the fetch to be cancelled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("refresh kept running after going offline")
	}

	// Later refreshes are not affected.
	close(store.release)
	if _, err := d.Refresh(context.Background(), "u1"); err != nil {
		t.Fatalf("refresh after interrupt: %v", err)
	}
}
