// Package memory is an in-process record store used for local runs and tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"budgetbuddy/internal/core"
	"budgetbuddy/internal/recordstore"
)

// Op names passed to a Fault hook.
const (
	OpList              = "transactions.list"
	OpCategories        = "categories.list"
	OpCreateTransaction = "transaction.create"
	OpUpdateTransaction = "transaction.update"
	OpDeleteTransaction = "transaction.delete"
	OpCreateBudget      = "budget.create"
	OpUpdateBudget      = "budget.update"
	OpDeleteBudget      = "budget.delete"
	OpPing              = "ping"
)

// Fault decides whether an operation fails. id is the record id when the
// operation targets one.
type Fault func(op, id string) error

// Seed is the JSON document accepted by NewFromFile.
type Seed struct {
	Categories   []core.Category    `json:"categories"`
	Transactions []core.Transaction `json:"transactions"`
	Budgets      []core.Budget      `json:"budgets"`
}

type Store struct {
	mu      sync.Mutex
	cats    []core.Category
	txs     []core.Transaction
	budgets []core.Budget
	fault   Fault
	now     func() time.Time
}

var _ recordstore.Store = (*Store)(nil)

func New(seed Seed) *Store {
	s := &Store{
		cats:    dedupeCategories(seed.Categories),
		txs:     append([]core.Transaction(nil), seed.Transactions...),
		budgets: append([]core.Budget(nil), seed.Budgets...),
		now:     time.Now,
	}
	if len(s.cats) == 0 {
		s.cats = DefaultCategories()
	}
	return s
}

// NewFromFile seeds the store from a JSON file. A missing path yields the
// default categories and no records.
func NewFromFile(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return New(Seed{}), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(Seed{}), nil
		}
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var seed Seed
	if err := json.Unmarshal(b, &seed); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	return New(seed), nil
}

// DefaultCategories are the global categories available to every user.
func DefaultCategories() []core.Category {
	defs := []struct {
		name string
		typ  core.TransactionType
	}{
		{"Groceries", core.Expense},
		{"Rent", core.Expense},
		{"Utilities", core.Expense},
		{"Transportation", core.Expense},
		{"Entertainment", core.Expense},
		{"Salary", core.Income},
		{"Freelance", core.Income},
	}
	out := make([]core.Category, len(defs))
	for i, d := range defs {
		out[i] = core.Category{
			ID:       fmt.Sprintf("cat-%d", i+1),
			Name:     d.name,
			Type:     d.typ,
			IsActive: true,
		}
	}
	return out
}

// SetFault installs a hook consulted before every operation. nil clears it.
func (s *Store) SetFault(f Fault) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fault = f
}

// SetOffline makes every operation fail with recordstore.ErrUnavailable.
func (s *Store) SetOffline(offline bool) {
	if !offline {
		s.SetFault(nil)
		return
	}
	s.SetFault(func(string, string) error { return recordstore.ErrUnavailable })
}

// check must be called with mu held.
func (s *Store) check(op, id string) error {
	if s.fault == nil {
		return nil
	}
	return s.fault(op, id)
}

func (s *Store) Ping(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.check(OpPing, "")
}

func (s *Store) TransactionsByUser(_ context.Context, userID string) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(OpList, ""); err != nil {
		return nil, err
	}
	var out []core.Transaction
	for _, tx := range s.txs {
		if tx.UserID == userID {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (s *Store) Categories(_ context.Context, userID string) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(OpCategories, ""); err != nil {
		return nil, err
	}
	var out []core.Category
	for _, c := range s.cats {
		if c.UserID == nil || *c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

// Budgets returns the user's budgets.
func (s *Store) Budgets(userID string) []core.Budget {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Budget
	for _, b := range s.budgets {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	return out
}

func (s *Store) CreateTransaction(_ context.Context, tx core.Transaction) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(OpCreateTransaction, tx.ID); err != nil {
		return core.Transaction{}, err
	}
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	for _, existing := range s.txs {
		if existing.ID == tx.ID {
			return existing, nil
		}
	}
	now := s.now().UTC()
	tx.CategoryName = ""
	tx.CreatedAt, tx.UpdatedAt = now, now
	s.txs = append(s.txs, tx)
	return tx, nil
}

func (s *Store) UpdateTransaction(_ context.Context, tx core.Transaction) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(OpUpdateTransaction, tx.ID); err != nil {
		return core.Transaction{}, err
	}
	for i, existing := range s.txs {
		if existing.ID != tx.ID || existing.UserID != tx.UserID {
			continue
		}
		tx.CategoryName = ""
		tx.CreatedAt = existing.CreatedAt
		tx.UpdatedAt = s.now().UTC()
		s.txs[i] = tx
		return tx, nil
	}
	return core.Transaction{}, recordstore.ErrNotFound
}

func (s *Store) DeleteTransaction(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(OpDeleteTransaction, id); err != nil {
		return err
	}
	for i, existing := range s.txs {
		if existing.ID == id && existing.UserID == userID {
			s.txs = append(s.txs[:i], s.txs[i+1:]...)
			return nil
		}
	}
	return recordstore.ErrNotFound
}

func (s *Store) CreateBudget(_ context.Context, b core.Budget) (core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(OpCreateBudget, b.ID); err != nil {
		return core.Budget{}, err
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	for _, existing := range s.budgets {
		if existing.ID == b.ID {
			return existing, nil
		}
	}
	now := s.now().UTC()
	b.CreatedAt, b.UpdatedAt = now, now
	s.budgets = append(s.budgets, b)
	return b, nil
}

func (s *Store) UpdateBudget(_ context.Context, b core.Budget) (core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(OpUpdateBudget, b.ID); err != nil {
		return core.Budget{}, err
	}
	for i, existing := range s.budgets {
		if existing.ID != b.ID || existing.UserID != b.UserID {
			continue
		}
		b.CreatedAt = existing.CreatedAt
		b.UpdatedAt = s.now().UTC()
		s.budgets[i] = b
		return b, nil
	}
	return core.Budget{}, recordstore.ErrNotFound
}

func (s *Store) DeleteBudget(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(OpDeleteBudget, id); err != nil {
		return err
	}
	for i, existing := range s.budgets {
		if existing.ID == id && existing.UserID == userID {
			s.budgets = append(s.budgets[:i], s.budgets[i+1:]...)
			return nil
		}
	}
	return recordstore.ErrNotFound
}

// dedupeCategories drops blank names and repeated ids, preserving input order.
func dedupeCategories(in []core.Category) []core.Category {
	seen := map[string]struct{}{}
	out := make([]core.Category, 0, len(in))
	for _, c := range in {
		c.Name = strings.TrimSpace(c.Name)
		if c.Name == "" || c.ID == "" {
			continue
		}
		if _, ok := seen[c.ID]; ok {
			continue
		}
		seen[c.ID] = struct{}{}
		out = append(out, c)
	}
	return out
}
