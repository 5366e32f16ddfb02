package backend

import (
	"context"

	"budgetbuddy/internal/cache"
	"budgetbuddy/internal/notify"
	"budgetbuddy/internal/recordstore"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Result contains everything the services need from the outside world.
type Result struct {
	// Records is the remote record store.
	Records recordstore.Store

	// DashboardStore backs the TTL-bounded dashboard cache.
	DashboardStore cache.Store

	// SyncStore backs the offline queue and sync metadata. It is never an
	// evicting store; for the memory backend it is a separate unbounded map.
	SyncStore cache.Store

	// Sinks receive every published event.
	Sinks []notify.Sink

	// Cleanup releases connections in reverse order of creation.
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	// Create builds every backend named by config.
	Create(ctx context.Context, config Config) (*Result, error)
}

// RecordType selects the record store implementation.
type RecordType string

// CacheType selects the local cache store implementation.
type CacheType string

// NotifyType selects the external event sink.
type NotifyType string

const (
	MemoryRecords   RecordType = "memory"
	PostgresRecords RecordType = "postgres"

	MemoryCache CacheType = "memory"
	SQLiteCache CacheType = "sqlite"
	RedisCache  CacheType = "redis"

	NoNotify   NotifyType = "none"
	AMQPNotify NotifyType = "amqp"
	NATSNotify NotifyType = "nats"
)

// String implements fmt.Stringer
func (t RecordType) String() string { return string(t) }

// IsValid returns true if the record store type is known
func (t RecordType) IsValid() bool {
	switch t {
	case MemoryRecords, PostgresRecords:
		return true
	default:
		return false
	}
}

func (t CacheType) String() string { return string(t) }

func (t CacheType) IsValid() bool {
	switch t {
	case MemoryCache, SQLiteCache, RedisCache:
		return true
	default:
		return false
	}
}

func (t NotifyType) String() string { return string(t) }

// IsValid accepts the empty string as NoNotify.
func (t NotifyType) IsValid() bool {
	switch t {
	case "", NoNotify, AMQPNotify, NATSNotify:
		return true
	default:
		return false
	}
}
