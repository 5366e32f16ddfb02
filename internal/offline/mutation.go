// Package offline holds record-store writes made while disconnected until
// they can be replayed.
package offline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"budgetbuddy/internal/core"
	"budgetbuddy/internal/recordstore"
)

type Op string

const (
	OpCreateTransaction Op = "transaction.create"
	OpUpdateTransaction Op = "transaction.update"
	OpDeleteTransaction Op = "transaction.delete"
	OpCreateBudget      Op = "budget.create"
	OpUpdateBudget      Op = "budget.update"
	OpDeleteBudget      Op = "budget.delete"
)

func (o Op) Valid() bool {
	switch o {
	case OpCreateTransaction, OpUpdateTransaction, OpDeleteTransaction,
		OpCreateBudget, OpUpdateBudget, OpDeleteBudget:
		return true
	}
	return false
}

// Mutation is one pending write.
type Mutation struct {
	ID         string          `json:"id"`
	Op         Op              `json:"op"`
	UserID     string          `json:"userId"`
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt time.Time       `json:"enqueuedAt"`
}

// DeleteTarget is the payload of delete mutations.
type DeleteTarget struct {
	UserID string `json:"userId"`
	ID     string `json:"id"`
}

func newMutation(op Op, userID string, payload any) (Mutation, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Mutation{}, fmt.Errorf("encode %s payload: %w", op, err)
	}
	return Mutation{
		ID:         uuid.NewString(),
		Op:         op,
		UserID:     userID,
		Payload:    raw,
		EnqueuedAt: time.Now().UTC(),
	}, nil
}

// TransactionMutation wraps a create or update of tx.
func TransactionMutation(op Op, tx core.Transaction) (Mutation, error) {
	if op != OpCreateTransaction && op != OpUpdateTransaction {
		return Mutation{}, fmt.Errorf("op %q does not carry a transaction", op)
	}
	return newMutation(op, tx.UserID, tx)
}

// BudgetMutation wraps a create or update of b.
func BudgetMutation(op Op, b core.Budget) (Mutation, error) {
	if op != OpCreateBudget && op != OpUpdateBudget {
		return Mutation{}, fmt.Errorf("op %q does not carry a budget", op)
	}
	return newMutation(op, b.UserID, b)
}

// DeleteMutation wraps the deletion of a transaction or budget.
func DeleteMutation(op Op, userID, id string) (Mutation, error) {
	if op != OpDeleteTransaction && op != OpDeleteBudget {
		return Mutation{}, fmt.Errorf("op %q is not a delete", op)
	}
	return newMutation(op, userID, DeleteTarget{UserID: userID, ID: id})
}

// Apply replays m against the record store.
func Apply(ctx context.Context, store recordstore.Store, m Mutation) error {
	switch m.Op {
	case OpCreateTransaction, OpUpdateTransaction:
		var tx core.Transaction
		if err := json.Unmarshal(m.Payload, &tx); err != nil {
			return fmt.Errorf("decode transaction: %w", err)
		}
		var err error
		if m.Op == OpCreateTransaction {
			_, err = store.CreateTransaction(ctx, tx)
		} else {
			_, err = store.UpdateTransaction(ctx, tx)
		}
		return err

	case OpCreateBudget, OpUpdateBudget:
		var b core.Budget
		if err := json.Unmarshal(m.Payload, &b); err != nil {
			return fmt.Errorf("decode budget: %w", err)
		}
		var err error
		if m.Op == OpCreateBudget {
			_, err = store.CreateBudget(ctx, b)
		} else {
			_, err = store.UpdateBudget(ctx, b)
		}
		return err

	case OpDeleteTransaction, OpDeleteBudget:
		var target DeleteTarget
		if err := json.Unmarshal(m.Payload, &target); err != nil {
			return fmt.Errorf("decode delete target: %w", err)
		}
		if m.Op == OpDeleteTransaction {
			return store.DeleteTransaction(ctx, target.UserID, target.ID)
		}
		return store.DeleteBudget(ctx, target.UserID, target.ID)
	}
	return fmt.Errorf("unknown mutation op %q", m.Op)
}
