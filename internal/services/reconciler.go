package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"budgetbuddy/internal/cache"
	"budgetbuddy/internal/core"
	"budgetbuddy/internal/log"
	"budgetbuddy/internal/metrics"
	"budgetbuddy/internal/notify"
	"budgetbuddy/internal/offline"
	"budgetbuddy/internal/recordstore"
	"budgetbuddy/internal/session"
)

// SyncState is the connectivity state of the reconciler.
type SyncState string

const (
	StateOffline       SyncState = "offline"
	StateOnlineSyncing SyncState = "online_syncing"
	StateOnlineSynced  SyncState = "online_synced"
)

var allSyncStates = []string{string(StateOffline), string(StateOnlineSyncing), string(StateOnlineSynced)}

// Online reports whether s is one of the online states.
func (s SyncState) Online() bool {
	return s == StateOnlineSyncing || s == StateOnlineSynced
}

// ErrOffline is returned by operations that need connectivity.
var ErrOffline = errors.New("offline")

// Refresher recomputes and caches a user's dashboard from the record store.
// Interrupt stops refreshes in flight, including ones started by other
// callers.
type Refresher interface {
	Refresh(ctx context.Context, userID string) (core.Snapshot, error)
	Interrupt()
}

// ReplayFailure describes a mutation left in the queue.
type ReplayFailure struct {
	MutationID string `json:"mutationId"`
	Op         string `json:"op"`
	Error      string `json:"error"`
}

// ReplayReport summarises one reconciliation pass.
type ReplayReport struct {
	Attempted  int             `json:"attempted"`
	Replayed   int             `json:"replayed"`
	Failed     []ReplayFailure `json:"failed,omitempty"`
	Remaining  int             `json:"remaining"`
	Aborted    bool            `json:"aborted"`
	Refreshed  bool            `json:"refreshed"`
	QueueError string          `json:"queueError,omitempty"`
}

// Reconciler replays queued mutations when connectivity returns and
// refreshes the dashboard afterwards.
//
// Passes are serialised. GoOffline never waits for a pass: it flips the
// state and cancels the pass's context so no further remote calls are made.
type Reconciler struct {
	queue     *offline.Queue
	store     recordstore.Store
	refresher Refresher
	session   *session.Session
	meta      *cache.Local
	events    *notify.Broadcaster
	logger    *log.Logger
	metrics   *metrics.Metrics
	now       func() time.Time

	passMu sync.Mutex

	mu         sync.Mutex
	state      SyncState
	generation uint64
	cancelPass context.CancelFunc
}

// ReconcilerDeps are the collaborators of a Reconciler. Meta receives the
// last-sync timestamp and may be nil.
type ReconcilerDeps struct {
	Queue     *offline.Queue
	Store     recordstore.Store
	Refresher Refresher
	Session   *session.Session
	Meta      *cache.Local
	Events    *notify.Broadcaster
	Logger    *log.Logger
	Metrics   *metrics.Metrics
}

// NewReconciler starts in StateOffline.
func NewReconciler(deps ReconcilerDeps) *Reconciler {
	logger := deps.Logger
	if logger == nil {
		logger = log.Default(log.ComponentReconciler)
	}
	r := &Reconciler{
		queue:     deps.Queue,
		store:     deps.Store,
		refresher: deps.Refresher,
		session:   deps.Session,
		meta:      deps.Meta,
		events:    deps.Events,
		logger:    logger,
		metrics:   deps.Metrics,
		now:       time.Now,
		state:     StateOffline,
	}
	r.metrics.SyncState(string(StateOffline), allSyncStates)
	return r
}

// State returns the current state.
func (r *Reconciler) State() SyncState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Online reports whether the reconciler is in an online state.
func (r *Reconciler) Online() bool {
	return r.State().Online()
}

// LastSync returns the time of the last completed pass.
func (r *Reconciler) LastSync(ctx context.Context) (time.Time, bool) {
	if r.meta == nil {
		return time.Time{}, false
	}
	var ms int64
	if !r.meta.GetStale(ctx, cache.KeyLastSync, &ms) {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

// GoOffline moves to StateOffline from any state.
func (r *Reconciler) GoOffline(ctx context.Context) {
	r.mu.Lock()
	r.generation++
	if r.cancelPass != nil {
		r.cancelPass()
		r.cancelPass = nil
	}
	changed := r.state != StateOffline
	r.state = StateOffline
	r.mu.Unlock()

	if r.refresher != nil {
		r.refresher.Interrupt()
	}

	if changed {
		r.logger.InfoContext(ctx, "Connectivity lost, serving cached data")
		r.stateChanged(ctx, StateOffline)
	}
}

// GoOnline handles a connectivity-restored signal: one replay pass over the
// queue followed by a full refresh. A failed refresh returns to StateOffline.
func (r *Reconciler) GoOnline(ctx context.Context) (ReplayReport, error) {
	r.passMu.Lock()
	defer r.passMu.Unlock()

	passCtx, gen := r.beginPass(ctx)
	return r.runPass(ctx, passCtx, gen)
}

// Reconcile runs one pass while already online.
func (r *Reconciler) Reconcile(ctx context.Context) (ReplayReport, error) {
	r.passMu.Lock()
	defer r.passMu.Unlock()

	if !r.Online() {
		return ReplayReport{}, ErrOffline
	}
	passCtx, gen := r.beginPass(ctx)
	return r.runPass(ctx, passCtx, gen)
}

func (r *Reconciler) beginPass(ctx context.Context) (context.Context, uint64) {
	passCtx, cancel := context.WithCancel(ctx)

	r.mu.Lock()
	r.generation++
	gen := r.generation
	r.cancelPass = cancel
	r.state = StateOnlineSyncing
	r.mu.Unlock()

	r.stateChanged(ctx, StateOnlineSyncing)
	return passCtx, gen
}

// current reports whether gen is still the active pass.
func (r *Reconciler) current(gen uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.generation == gen && r.state != StateOffline
}

// finish moves to next if gen is still active.
func (r *Reconciler) finish(ctx context.Context, gen uint64, next SyncState) bool {
	r.mu.Lock()
	if r.generation != gen || r.state == StateOffline {
		r.mu.Unlock()
		return false
	}
	r.state = next
	if r.cancelPass != nil {
		r.cancelPass()
		r.cancelPass = nil
	}
	r.mu.Unlock()

	r.stateChanged(ctx, next)
	return true
}

// runPass issues remote calls with passCtx, which GoOffline and the caller
// cancel. Queue and state bookkeeping use ctx without its cancellation, so a
// caller that gives up still leaves the pass in a final state.
func (r *Reconciler) runPass(ctx, passCtx context.Context, gen uint64) (ReplayReport, error) {
	ctx = context.WithoutCancel(ctx)

	report := r.replay(ctx, passCtx, gen)
	if report.Aborted {
		if !r.current(gen) {
			return report, nil
		}
		// The caller's context ended the pass, not GoOffline.
		err := context.Cause(passCtx)
		r.logger.WarnContext(ctx, "Replay interrupted, going offline", log.FieldError, err)
		r.finish(ctx, gen, StateOffline)
		return report, fmt.Errorf("replay interrupted: %w", err)
	}

	if err := r.refresh(passCtx); err != nil {
		if !r.current(gen) {
			report.Aborted = true
			return report, nil
		}
		r.logger.WarnContext(ctx, "Refresh after replay failed, going offline", log.FieldError, err)
		r.finish(ctx, gen, StateOffline)
		return report, fmt.Errorf("refresh: %w", err)
	}
	report.Refreshed = true

	if !r.finish(ctx, gen, StateOnlineSynced) {
		report.Aborted = true
		return report, nil
	}
	if r.meta != nil {
		r.meta.Set(ctx, cache.KeyLastSync, r.now().UnixMilli(), 0)
	}
	return report, nil
}

// replay attempts every queued mutation once, oldest first.
func (r *Reconciler) replay(ctx, passCtx context.Context, gen uint64) ReplayReport {
	var report ReplayReport

	pending, err := r.queue.Pending(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "Cannot read offline queue", log.FieldError, err)
		report.QueueError = err.Error()
		return report
	}

	for _, m := range pending {
		if !r.current(gen) || passCtx.Err() != nil {
			report.Aborted = true
			break
		}
		report.Attempted++

		err := offline.Apply(passCtx, r.store, m)
		if err != nil && isDelete(m.Op) && errors.Is(err, recordstore.ErrNotFound) {
			err = nil
		}
		if err != nil {
			r.metrics.Replay(false)
			report.Failed = append(report.Failed, ReplayFailure{MutationID: m.ID, Op: string(m.Op), Error: err.Error()})
			r.logger.WarnContext(ctx, "Replay failed, will retry later",
				log.FieldMutationID, m.ID,
				log.FieldMutationOp, m.Op,
				log.FieldError, err)
			continue
		}

		r.metrics.Replay(true)
		report.Replayed++
		if err := r.queue.Remove(ctx, m.ID); err != nil {
			r.logger.ErrorContext(ctx, "Replayed mutation could not be removed from the queue",
				log.FieldMutationID, m.ID, log.FieldError, err)
		}
	}

	if n, err := r.queue.Len(ctx); err == nil {
		report.Remaining = n
	}
	if report.Attempted > 0 {
		r.logger.InfoContext(ctx, "Replay pass finished",
			"attempted", report.Attempted,
			"replayed", report.Replayed,
			"failed", len(report.Failed),
			log.FieldQueueLength, report.Remaining,
			"aborted", report.Aborted)
	}
	return report
}

func (r *Reconciler) refresh(ctx context.Context) error {
	if r.refresher == nil || r.session == nil {
		return nil
	}
	userID, err := r.session.UserID()
	if err != nil {
		// Nobody signed in: nothing to refetch.
		return nil
	}
	_, err = r.refresher.Refresh(ctx, userID)
	return err
}

func (r *Reconciler) stateChanged(ctx context.Context, s SyncState) {
	r.metrics.SyncState(string(s), allSyncStates)
	r.logger.DebugContext(ctx, "Sync state changed", log.FieldSyncState, s)

	e := notify.Event{Kind: notify.KindSyncState, State: string(s)}
	if r.session != nil {
		e.UserID, _ = r.session.UserID()
	}
	if n, err := r.queue.Len(ctx); err == nil {
		e.Pending = n
	}
	r.events.Publish(ctx, e)
}

func isDelete(op offline.Op) bool {
	return op == offline.OpDeleteTransaction || op == offline.OpDeleteBudget
}
