package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"budgetbuddy/internal/core"
	"budgetbuddy/internal/log"
	"budgetbuddy/internal/notify"
	"budgetbuddy/internal/offline"
	"budgetbuddy/internal/recordstore"
)

// Result reports how a write was handled.
type Result struct {
	Queued      bool              `json:"queued"`
	MutationID  string            `json:"mutationId,omitempty"`
	Transaction *core.Transaction `json:"transaction,omitempty"`
	Budget      *core.Budget      `json:"budget,omitempty"`
}

// MutationService writes records through to the store, or queues them for
// replay when that is not possible.
type MutationService struct {
	store        recordstore.Store
	queue        *offline.Queue
	dashboard    *DashboardService
	connectivity Connectivity
	events       *notify.Broadcaster
	logger       *log.Logger
}

func NewMutationService(
	store recordstore.Store,
	queue *offline.Queue,
	dashboard *DashboardService,
	connectivity Connectivity,
	events *notify.Broadcaster,
	logger *log.Logger,
) *MutationService {
	if logger == nil {
		logger = log.Default(log.ComponentMutations)
	}
	return &MutationService{
		store:        store,
		queue:        queue,
		dashboard:    dashboard,
		connectivity: connectivity,
		events:       events,
		logger:       logger,
	}
}

func (s *MutationService) online() bool {
	return s.connectivity == nil || s.connectivity.Online()
}

// CreateTransaction validates tx, assigns an id and writes it.
func (s *MutationService) CreateTransaction(ctx context.Context, tx core.Transaction) (Result, error) {
	if err := tx.Validate(); err != nil {
		return Result{}, err
	}
	if strings.TrimSpace(tx.ID) == "" {
		tx.ID = uuid.NewString()
	}
	tx.CategoryName = ""

	return s.write(ctx, tx.UserID,
		func() (offline.Mutation, error) { return offline.TransactionMutation(offline.OpCreateTransaction, tx) },
		func() (Result, error) {
			created, err := s.store.CreateTransaction(ctx, tx)
			return Result{Transaction: &created}, err
		},
		Result{Transaction: &tx},
	)
}

func (s *MutationService) UpdateTransaction(ctx context.Context, tx core.Transaction) (Result, error) {
	if strings.TrimSpace(tx.ID) == "" {
		return Result{}, core.ErrEmptyID
	}
	if err := tx.Validate(); err != nil {
		return Result{}, err
	}
	tx.CategoryName = ""

	return s.write(ctx, tx.UserID,
		func() (offline.Mutation, error) { return offline.TransactionMutation(offline.OpUpdateTransaction, tx) },
		func() (Result, error) {
			updated, err := s.store.UpdateTransaction(ctx, tx)
			return Result{Transaction: &updated}, err
		},
		Result{Transaction: &tx},
	)
}

func (s *MutationService) DeleteTransaction(ctx context.Context, userID, id string) (Result, error) {
	if err := checkTarget(userID, id); err != nil {
		return Result{}, err
	}
	return s.write(ctx, userID,
		func() (offline.Mutation, error) {
			return offline.DeleteMutation(offline.OpDeleteTransaction, userID, id)
		},
		func() (Result, error) { return Result{}, s.store.DeleteTransaction(ctx, userID, id) },
		Result{},
	)
}

func (s *MutationService) CreateBudget(ctx context.Context, b core.Budget) (Result, error) {
	if err := b.Validate(); err != nil {
		return Result{}, err
	}
	if strings.TrimSpace(b.ID) == "" {
		b.ID = uuid.NewString()
	}

	return s.write(ctx, b.UserID,
		func() (offline.Mutation, error) { return offline.BudgetMutation(offline.OpCreateBudget, b) },
		func() (Result, error) {
			created, err := s.store.CreateBudget(ctx, b)
			return Result{Budget: &created}, err
		},
		Result{Budget: &b},
	)
}

func (s *MutationService) UpdateBudget(ctx context.Context, b core.Budget) (Result, error) {
	if strings.TrimSpace(b.ID) == "" {
		return Result{}, core.ErrEmptyID
	}
	if err := b.Validate(); err != nil {
		return Result{}, err
	}

	return s.write(ctx, b.UserID,
		func() (offline.Mutation, error) { return offline.BudgetMutation(offline.OpUpdateBudget, b) },
		func() (Result, error) {
			updated, err := s.store.UpdateBudget(ctx, b)
			return Result{Budget: &updated}, err
		},
		Result{Budget: &b},
	)
}

func (s *MutationService) DeleteBudget(ctx context.Context, userID, id string) (Result, error) {
	if err := checkTarget(userID, id); err != nil {
		return Result{}, err
	}
	return s.write(ctx, userID,
		func() (offline.Mutation, error) { return offline.DeleteMutation(offline.OpDeleteBudget, userID, id) },
		func() (Result, error) { return Result{}, s.store.DeleteBudget(ctx, userID, id) },
		Result{},
	)
}

// write tries remote first when online. recordstore.ErrNotFound is returned
// as is; any other remote failure queues the mutation.
func (s *MutationService) write(
	ctx context.Context,
	userID string,
	mutation func() (offline.Mutation, error),
	remote func() (Result, error),
	queued Result,
) (Result, error) {
	if s.online() {
		res, err := remote()
		if err == nil {
			s.dashboard.RefreshAsync(ctx, userID)
			return res, nil
		}
		if errors.Is(err, recordstore.ErrNotFound) {
			return Result{}, err
		}
		s.logger.WarnContext(ctx, "Remote write failed, queueing for replay",
			log.FieldUserID, userID, log.FieldError, err)
	}

	m, err := mutation()
	if err != nil {
		return Result{}, err
	}
	if err := s.queue.Enqueue(ctx, m); err != nil {
		return Result{}, fmt.Errorf("queue mutation: %w", err)
	}

	pending, _ := s.queue.Len(ctx)
	s.logger.InfoContext(ctx, "Mutation queued",
		log.FieldMutationID, m.ID,
		log.FieldMutationOp, m.Op,
		log.FieldQueueLength, pending)
	s.events.Publish(ctx, notify.Event{
		Kind:       notify.KindMutationQueued,
		UserID:     userID,
		MutationID: m.ID,
		Pending:    pending,
	})

	queued.Queued = true
	queued.MutationID = m.ID
	return queued, nil
}

func checkTarget(userID, id string) error {
	if strings.TrimSpace(userID) == "" {
		return core.ErrEmptyUser
	}
	if strings.TrimSpace(id) == "" {
		return core.ErrEmptyID
	}
	return nil
}
