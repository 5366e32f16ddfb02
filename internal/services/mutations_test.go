package services

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"budgetbuddy/internal/core"
	"budgetbuddy/internal/notify"
	"budgetbuddy/internal/offline"
	"budgetbuddy/internal/recordstore"
	"budgetbuddy/internal/recordstore/memory"
)

func expense(amount string) core.Transaction {
	return core.Transaction{
		UserID: "u1",
		Amount: core.AmountOf(amount),
		Type:   core.Expense,
		Date:   "2025-03-01",
	}
}

func TestCreateTransactionOnline(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, memory.Seed{})
	goOnline(t, h)

	res, err := h.mutations.CreateTransaction(ctx, expense("12.50"))
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	if res.Queued || res.Transaction == nil || res.Transaction.ID == "" {
		t.Fatalf("unexpected result: %+v", res)
	}
	h.dashboard.Wait()

	txs, _ := h.store.TransactionsByUser(ctx, "u1")
	if len(txs) != 1 {
		t.Fatalf("expected the write to reach the store, got %d", len(txs))
	}
	if len(h.pending(t)) != 0 {
		t.Fatal("online writes must not be queued")
	}
}

func TestCreateTransactionOfflineQueues(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, memory.Seed{})

	res, err := h.mutations.CreateTransaction(ctx, expense("5"))
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	if !res.Queued || res.MutationID == "" {
		t.Fatalf("expected a queued result, got %+v", res)
	}

	txs, _ := h.store.TransactionsByUser(ctx, "u1")
	if len(txs) != 0 {
		t.Fatal("offline writes must not reach the store")
	}
	pending := h.pending(t)
	if len(pending) != 1 || pending[0].Op != offline.OpCreateTransaction {
		t.Fatalf("unexpected queue: %+v", pending)
	}

	kinds := h.log.kinds()
	if len(kinds) == 0 || kinds[len(kinds)-1] != notify.KindMutationQueued {
		t.Errorf("expected a mutation.queued event, got %v", kinds)
	}

	// The queued create keeps its id so the replay creates the same record.
	if _, err := h.reconciler.GoOnline(ctx); err != nil {
		t.Fatalf("GoOnline: %v", err)
	}
	txs, _ = h.store.TransactionsByUser(ctx, "u1")
	if len(txs) != 1 || txs[0].ID != res.Transaction.ID {
		t.Fatalf("replay did not create the queued record: %+v", txs)
	}
}

func TestRemoteFailureQueues(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, memory.Seed{})
	goOnline(t, h)

	h.store.SetFault(func(op, _ string) error {
		if op == memory.OpCreateBudget {
			return recordstore.ErrUnavailable
		}
		return nil
	})

	res, err := h.mutations.CreateBudget(ctx, core.Budget{
		UserID:     "u1",
		CategoryID: "cat-1",
		Amount:     decimal.NewFromInt(200),
		Period:     core.Monthly,
		StartDate:  "2025-01-01",
	})
	if err != nil {
		t.Fatalf("CreateBudget: %v", err)
	}
	if !res.Queued || res.Budget == nil {
		t.Fatalf("expected the budget to be queued, got %+v", res)
	}
	if h.reconciler.State() != StateOnlineSynced {
		t.Errorf("a single failed write should not change the sync state, got %s", h.reconciler.State())
	}
}

func TestMutationValidation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, memory.Seed{})

	tests := []struct {
		name string
		run  func() (Result, error)
		want error
	}{
		{"zero amount", func() (Result, error) { return h.mutations.CreateTransaction(ctx, expense("0")) }, core.ErrInvalidAmount},
		{"update without id", func() (Result, error) { return h.mutations.UpdateTransaction(ctx, expense("1")) }, core.ErrEmptyID},
		{"delete without user", func() (Result, error) { return h.mutations.DeleteTransaction(ctx, "", "t1") }, core.ErrEmptyUser},
		{"delete budget without id", func() (Result, error) { return h.mutations.DeleteBudget(ctx, "u1", "") }, core.ErrEmptyID},
		{"budget without category", func() (Result, error) {
			return h.mutations.CreateBudget(ctx, core.Budget{UserID: "u1", Amount: decimal.NewFromInt(1), Period: core.Monthly, StartDate: "2025-01-01"})
		}, core.ErrEmptyCategory},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.run(); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
	if len(h.pending(t)) != 0 {
		t.Fatal("invalid mutations must not be queued")
	}
}

func TestUpdateMissingRecordIsNotQueued(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, memory.Seed{})
	goOnline(t, h)

	tx := expense("3")
	tx.ID = "missing"
	if _, err := h.mutations.UpdateTransaction(ctx, tx); !errors.Is(err, recordstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if len(h.pending(t)) != 0 {
		t.Fatal("not-found updates must not be queued")
	}
}

func TestDeleteOfflineQueues(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, memory.Seed{Transactions: []core.Transaction{
		{ID: "t1", UserID: "u1", Amount: core.AmountOf("4"), Type: core.Expense, Date: "2025-03-01"},
	}})

	res, err := h.mutations.DeleteTransaction(ctx, "u1", "t1")
	if err != nil || !res.Queued {
		t.Fatalf("expected queued delete, got %+v %v", res, err)
	}
	if _, err := h.reconciler.GoOnline(ctx); err != nil {
		t.Fatalf("GoOnline: %v", err)
	}
	txs, _ := h.store.TransactionsByUser(ctx, "u1")
	if len(txs) != 0 {
		t.Fatalf("expected the replayed delete to remove t1, got %+v", txs)
	}
}
