package offline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"budgetbuddy/internal/cache"
	"budgetbuddy/internal/metrics"
)

// ErrCorruptQueue means the persisted queue could not be decoded. The stored
// value is left untouched so no pending write is lost.
var ErrCorruptQueue = errors.New("offline queue is corrupt")

// Queue is the persisted FIFO of pending mutations. Entries leave the queue
// only through Remove after a successful replay, or through Clear.
type Queue struct {
	mu      sync.Mutex
	cache   *cache.Local
	metrics *metrics.Metrics
}

// NewQueue persists the queue in c under cache.KeyMutationQueue.
func NewQueue(c *cache.Local, m *metrics.Metrics) *Queue {
	return &Queue{cache: c, metrics: m}
}

// load must be called with mu held.
func (q *Queue) load(ctx context.Context) ([]Mutation, error) {
	e, err := q.cache.Entry(ctx, cache.KeyMutationQueue)
	if errors.Is(err, cache.ErrNotFound) {
		return nil, nil
	}
	if errors.Is(err, cache.ErrCorrupt) {
		return nil, fmt.Errorf("%w: %v", ErrCorruptQueue, err)
	}
	if err != nil {
		return nil, fmt.Errorf("read offline queue: %w", err)
	}
	var ms []Mutation
	if err := json.Unmarshal(e.Payload, &ms); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptQueue, err)
	}
	return ms, nil
}

// save must be called with mu held.
func (q *Queue) save(ctx context.Context, ms []Mutation) error {
	if ms == nil {
		ms = []Mutation{}
	}
	if err := q.cache.Put(ctx, cache.KeyMutationQueue, ms, 0); err != nil {
		return fmt.Errorf("write offline queue: %w", err)
	}
	q.metrics.QueueDepth(len(ms))
	return nil
}

// Enqueue appends m. Mutations with an id already in the queue are ignored.
func (q *Queue) Enqueue(ctx context.Context, m Mutation) error {
	if !m.Op.Valid() {
		return fmt.Errorf("enqueue: unknown op %q", m.Op)
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	ms, err := q.load(ctx)
	if err != nil {
		return err
	}
	for _, existing := range ms {
		if existing.ID == m.ID {
			return nil
		}
	}
	if err := q.save(ctx, append(ms, m)); err != nil {
		return err
	}
	q.metrics.MutationQueued()
	return nil
}

// Pending returns the queued mutations, oldest first.
func (q *Queue) Pending(ctx context.Context) ([]Mutation, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.load(ctx)
}

// Remove deletes the mutation with the given id. Unknown ids are ignored.
func (q *Queue) Remove(ctx context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	ms, err := q.load(ctx)
	if err != nil {
		return err
	}
	kept := ms[:0]
	found := false
	for _, m := range ms {
		if m.ID == id {
			found = true
			continue
		}
		kept = append(kept, m)
	}
	if !found {
		return nil
	}
	return q.save(ctx, kept)
}

// Clear drops every pending mutation, including a corrupt queue.
func (q *Queue) Clear(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.cache.Delete(ctx, cache.KeyMutationQueue); err != nil {
		return fmt.Errorf("clear offline queue: %w", err)
	}
	q.metrics.QueueDepth(0)
	return nil
}

// Len returns the number of pending mutations.
func (q *Queue) Len(ctx context.Context) (int, error) {
	ms, err := q.Pending(ctx)
	return len(ms), err
}
