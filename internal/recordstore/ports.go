// Package recordstore defines the contract of the remote record store that
// owns transactions, categories and budgets.
package recordstore

import (
	"context"
	"errors"

	"budgetbuddy/internal/core"
)

var (
	// ErrNotFound is returned when an update or delete targets an unknown record.
	ErrNotFound = errors.New("record not found")
	// ErrUnavailable signals that the store cannot be reached.
	ErrUnavailable = errors.New("record store unavailable")
)

// Ports for the record store. Any error from a Store means the caller should
// treat itself as offline for that operation.
type (
	TransactionReader interface {
		// TransactionsByUser returns every transaction owned by the user.
		TransactionsByUser(ctx context.Context, userID string) ([]core.Transaction, error)
	}

	CategoryReader interface {
		// Categories returns global categories plus the user's own.
		Categories(ctx context.Context, userID string) ([]core.Category, error)
	}

	TransactionWriter interface {
		CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error)
		UpdateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error)
		DeleteTransaction(ctx context.Context, userID, id string) error
	}

	BudgetWriter interface {
		CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error)
		UpdateBudget(ctx context.Context, b core.Budget) (core.Budget, error)
		DeleteBudget(ctx context.Context, userID, id string) error
	}

	Pinger interface {
		Ping(ctx context.Context) error
	}

	// Store is everything the services need from the record store.
	Store interface {
		TransactionReader
		CategoryReader
		TransactionWriter
		BudgetWriter
		Pinger
	}
)
