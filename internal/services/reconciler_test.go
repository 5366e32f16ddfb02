package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"budgetbuddy/internal/cache"
	"budgetbuddy/internal/core"
	"budgetbuddy/internal/offline"
	"budgetbuddy/internal/recordstore/memory"
)

func queueTx(t *testing.T, h *harness, id, amount string) offline.Mutation {
	t.Helper()
	m, err := offline.TransactionMutation(offline.OpCreateTransaction, core.Transaction{
		ID:     id,
		UserID: "u1",
		Amount: core.AmountOf(amount),
		Type:   core.Expense,
		Date:   "2025-03-01",
	})
	if err != nil {
		t.Fatalf("mutation: %v", err)
	}
	if err := h.queue.Enqueue(context.Background(), m); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	return m
}

func TestReconcilerStartsOffline(t *testing.T) {
	h := newHarness(t, memory.Seed{})
	if h.reconciler.State() != StateOffline {
		t.Fatalf("initial state = %s", h.reconciler.State())
	}
	if _, err := h.reconciler.Reconcile(context.Background()); !errors.Is(err, ErrOffline) {
		t.Fatalf("expected ErrOffline, got %v", err)
	}
}

func TestGoOnlineKeepsOnlyFailedMutation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, memory.Seed{})

	failing := queueTx(t, h, "t-fail", "10")
	queueTx(t, h, "t-ok", "20")

	h.store.SetFault(func(op, id string) error {
		if op == memory.OpCreateTransaction && id == "t-fail" {
			return errors.New("denied")
		}
		return nil
	})

	report, err := h.reconciler.GoOnline(ctx)
	if err != nil {
		t.Fatalf("GoOnline: %v", err)
	}

	pending := h.pending(t)
	if len(pending) != 1 || pending[0].ID != failing.ID {
		t.Fatalf("expected only the failed mutation to remain, got %+v", pending)
	}
	if report.Attempted != 2 || report.Replayed != 1 || len(report.Failed) != 1 || report.Remaining != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if report.Failed[0].MutationID != failing.ID {
		t.Errorf("failed mutation = %s, want %s", report.Failed[0].MutationID, failing.ID)
	}
	if h.reconciler.State() != StateOnlineSynced {
		t.Errorf("state = %s, want %s", h.reconciler.State(), StateOnlineSynced)
	}

	txs, _ := h.store.TransactionsByUser(ctx, "u1")
	if len(txs) != 1 || txs[0].ID != "t-ok" {
		t.Fatalf("expected only t-ok in the store, got %+v", txs)
	}

	// A later pass replays the remaining entry once the store accepts it.
	h.store.SetFault(nil)
	if _, err := h.reconciler.Reconcile(ctx); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if n := len(h.pending(t)); n != 0 {
		t.Fatalf("expected empty queue, got %d", n)
	}
}

func TestGoOnlineRefreshesDashboard(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, memory.Seed{})
	queueTx(t, h, "t1", "60")

	if _, err := h.reconciler.GoOnline(ctx); err != nil {
		t.Fatalf("GoOnline: %v", err)
	}

	snap, source, ok := h.dashboard.Cached(ctx, "u1")
	if !ok || source != SourceCache {
		t.Fatalf("expected a cached snapshot, got ok=%v source=%s", ok, source)
	}
	if snap.TransactionCount != 1 || snap.Summary.TotalExpense.String() != "60" {
		t.Fatalf("unexpected snapshot: %+v", snap.Summary)
	}

	last, ok := h.reconciler.LastSync(ctx)
	if !ok || !last.Equal(h.clock.Now().Truncate(time.Millisecond)) {
		t.Errorf("LastSync = %v %v, want %v", last, ok, h.clock.Now())
	}

	want := []string{string(StateOnlineSyncing), string(StateOnlineSynced)}
	got := h.log.states()
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("state events = %v, want %v", got, want)
	}
}

func TestRefreshFailureReturnsOffline(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, memory.Seed{})

	h.store.SetFault(func(op, _ string) error {
		if op == memory.OpList {
			return errors.New("unreachable")
		}
		return nil
	})

	if _, err := h.reconciler.GoOnline(ctx); err == nil {
		t.Fatal("expected refresh failure to surface")
	}
	if h.reconciler.State() != StateOffline {
		t.Fatalf("state = %s, want offline", h.reconciler.State())
	}
	if _, ok := h.reconciler.LastSync(ctx); ok {
		t.Error("LastSync should not be written on failure")
	}
}

func TestGoOfflineStopsPass(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, memory.Seed{})

	queueTx(t, h, "t1", "1")
	queueTx(t, h, "t2", "2")

	calls := 0
	h.store.SetFault(func(op, _ string) error {
		if op != memory.OpCreateTransaction {
			return nil
		}
		calls++
		// Connectivity drops while the first replay is in flight.
		h.reconciler.GoOffline(ctx)
		return errors.New("connection reset")
	})

	report, err := h.reconciler.GoOnline(ctx)
	if err != nil {
		t.Fatalf("GoOnline: %v", err)
	}
	if !report.Aborted {
		t.Fatalf("expected an aborted pass, got %+v", report)
	}
	if calls != 1 {
		t.Fatalf("expected no remote calls after going offline, got %d", calls)
	}
	if len(h.pending(t)) != 2 {
		t.Fatalf("expected both mutations to stay queued")
	}
	if h.reconciler.State() != StateOffline {
		t.Fatalf("state = %s", h.reconciler.State())
	}
}

func TestCallerCancelEndsPassOffline(t *testing.T) {
	h := newHarness(t, memory.Seed{})

	queueTx(t, h, "t-a", "1")
	queueTx(t, h, "t-b", "2")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.store.SetFault(func(op, _ string) error {
		if op == memory.OpCreateTransaction {
			// The caller gives up while the first replay is in flight.
			cancel()
		}
		return nil
	})

	report, err := h.reconciler.GoOnline(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if !report.Aborted || report.Replayed != 1 || report.Refreshed {
		t.Fatalf("unexpected report %+v", report)
	}
	if h.reconciler.State() != StateOffline {
		t.Fatalf("state = %s, want %s", h.reconciler.State(), StateOffline)
	}
	if got := h.pending(t); len(got) != 1 {
		t.Fatalf("expected one mutation left, got %d", len(got))
	}

	h.store.SetFault(nil)
	report, err = h.reconciler.GoOnline(context.Background())
	if err != nil {
		t.Fatalf("second GoOnline: %v", err)
	}
	if report.Replayed != 1 || !report.Refreshed || h.reconciler.State() != StateOnlineSynced {
		t.Fatalf("second pass did not complete: %+v state=%s", report, h.reconciler.State())
	}
}

func TestReplayTreatsMissingDeleteAsApplied(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, memory.Seed{})

	m, _ := offline.DeleteMutation(offline.OpDeleteTransaction, "u1", "gone")
	_ = h.queue.Enqueue(ctx, m)

	report, err := h.reconciler.GoOnline(ctx)
	if err != nil {
		t.Fatalf("GoOnline: %v", err)
	}
	if report.Replayed != 1 || len(h.pending(t)) != 0 {
		t.Fatalf("expected delete of a missing record to be dropped, got %+v", report)
	}
}

// newCorruptQueue stores an undecodable queue and returns a reader for the raw value.
func newCorruptQueue(t *testing.T, h *harness) func() ([]byte, error) {
	t.Helper()
	key := "sync:" + cache.KeyMutationQueue
	if err := h.backing.Put(context.Background(), key, []byte("{broken")); err != nil {
		t.Fatalf("put: %v", err)
	}
	return func() ([]byte, error) { return h.backing.Get(context.Background(), key) }
}

func TestReplayCorruptQueueStillRefreshes(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, memory.Seed{})

	corrupt := newCorruptQueue(t, h)
	report, err := h.reconciler.GoOnline(ctx)
	if err != nil {
		t.Fatalf("GoOnline: %v", err)
	}
	if report.QueueError == "" || !report.Refreshed {
		t.Fatalf("unexpected report: %+v", report)
	}
	raw, _ := corrupt()
	if string(raw) != "{broken" {
		t.Fatalf("corrupt queue was overwritten: %q", raw)
	}
}
