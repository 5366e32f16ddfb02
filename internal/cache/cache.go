// Package cache implements the local, TTL-bounded key-value cache used to
// serve dashboard data before (or instead of) the record store.
//
// Caching is advisory. Reads never fail: a missing, expired, corrupt or
// unreadable entry is simply absent. Writes through Set are best effort and
// only logged when they fail.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"budgetbuddy/internal/log"
	"budgetbuddy/internal/metrics"
)

var (
	// ErrNotFound is returned by stores for unknown keys.
	ErrNotFound = errors.New("cache: key not found")
	// ErrCorrupt is returned when a stored entry cannot be decoded.
	ErrCorrupt = errors.New("cache: corrupt entry")
	// ErrUnavailable is returned when no store is configured.
	ErrUnavailable = errors.New("cache: store unavailable")
)

// Store persists raw cache entries.
type Store interface {
	// Get returns the stored bytes or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put overwrites the value stored under key.
	Put(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// DeletePrefix removes every key starting with prefix.
	DeletePrefix(ctx context.Context, prefix string) error
}

// Entry is the persisted envelope around a cached payload.
type Entry struct {
	Key        string          `json:"key"`
	Payload    json.RawMessage `json:"payload"`
	StoredAt   int64           `json:"storedAt"` // epoch milliseconds
	TTLMinutes int             `json:"ttlMinutes"`
}

// Expired reports whether now is past StoredAt + TTL. Entries without a
// positive TTL never expire.
func (e Entry) Expired(now time.Time) bool {
	if e.TTLMinutes <= 0 {
		return false
	}
	expiresAt := time.UnixMilli(e.StoredAt).Add(time.Duration(e.TTLMinutes) * time.Minute)
	return now.After(expiresAt)
}

// Local is the cache used by the services. Keys are stored under an optional
// namespace so that Clear only touches this cache's entries.
type Local struct {
	store     Store
	namespace string
	now       func() time.Time
	logger    *log.Logger
	metrics   *metrics.Metrics
}

// Option configures a Local cache.
type Option func(*Local)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Local) { l.now = now }
}

// WithNamespace prefixes every key.
func WithNamespace(ns string) Option {
	return func(l *Local) { l.namespace = ns }
}

func WithLogger(logger *log.Logger) Option {
	return func(l *Local) { l.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Local) { l.metrics = m }
}

// NewLocal wraps store. A nil store yields a cache where every read misses
// and every write is dropped.
func NewLocal(store Store, opts ...Option) *Local {
	l := &Local{store: store, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = log.Default(log.ComponentCache)
	}
	return l
}

func (l *Local) key(k string) string {
	return l.namespace + k
}

// Entry returns the raw entry for key regardless of its age.
func (l *Local) Entry(ctx context.Context, key string) (Entry, error) {
	if l.store == nil {
		return Entry{}, ErrUnavailable
	}
	raw, err := l.store.Get(ctx, l.key(key))
	if err != nil {
		return Entry{}, err
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return Entry{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return e, nil
}

// Get decodes the fresh entry for key into dst and reports whether it did.
// dst is left in an unspecified state when Get returns false.
func (l *Local) Get(ctx context.Context, key string, dst any) bool {
	return l.read(ctx, key, dst, false)
}

// GetStale is Get without the TTL check. Used while offline, when old data
// is better than none.
func (l *Local) GetStale(ctx context.Context, key string, dst any) bool {
	return l.read(ctx, key, dst, true)
}

func (l *Local) read(ctx context.Context, key string, dst any, allowStale bool) bool {
	e, err := l.Entry(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrUnavailable) {
			l.metrics.CacheLookup("miss")
		} else {
			l.metrics.CacheLookup("corrupt")
			l.logger.DebugContext(ctx, "Cache entry unreadable", log.FieldCacheKey, key, log.FieldError, err)
		}
		return false
	}
	if !allowStale && e.Expired(l.now()) {
		l.metrics.CacheLookup("stale")
		return false
	}
	if err := json.Unmarshal(e.Payload, dst); err != nil {
		l.metrics.CacheLookup("corrupt")
		l.logger.DebugContext(ctx, "Cache payload undecodable", log.FieldCacheKey, key, log.FieldError, err)
		return false
	}
	l.metrics.CacheLookup("hit")
	return true
}

// Set stores v under key, stamped with the current time. Failures are logged
// and otherwise ignored.
func (l *Local) Set(ctx context.Context, key string, v any, ttlMinutes int) {
	if err := l.Put(ctx, key, v, ttlMinutes); err != nil {
		l.logger.WarnContext(ctx, "Cache write failed", log.FieldCacheKey, key, log.FieldError, err)
	}
}

// Put is Set reporting failures to the caller.
func (l *Local) Put(ctx context.Context, key string, v any, ttlMinutes int) error {
	if l.store == nil {
		return ErrUnavailable
	}
	payload, err := json.Marshal(v)
	if err != nil {
		l.metrics.CacheWrite(false)
		return fmt.Errorf("encode payload: %w", err)
	}
	raw, err := json.Marshal(Entry{
		Key:        key,
		Payload:    payload,
		StoredAt:   l.now().UnixMilli(),
		TTLMinutes: ttlMinutes,
	})
	if err != nil {
		l.metrics.CacheWrite(false)
		return fmt.Errorf("encode entry: %w", err)
	}
	if err := l.store.Put(ctx, l.key(key), raw); err != nil {
		l.metrics.CacheWrite(false)
		return fmt.Errorf("store entry: %w", err)
	}
	l.metrics.CacheWrite(true)
	return nil
}

// Delete removes key.
func (l *Local) Delete(ctx context.Context, key string) error {
	if l.store == nil {
		return nil
	}
	return l.store.Delete(ctx, l.key(key))
}

// Clear removes every entry in this cache's namespace.
func (l *Local) Clear(ctx context.Context) error {
	if l.store == nil {
		return nil
	}
	return l.store.DeletePrefix(ctx, l.namespace)
}
