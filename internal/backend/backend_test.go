package backend

import (
	"context"
	"path/filepath"
	"testing"

	"budgetbuddy/internal/cache"
	"budgetbuddy/internal/config"
	"budgetbuddy/internal/log"
	"budgetbuddy/internal/recordstore/memory"
	"budgetbuddy/internal/storage"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:    "memory everything",
			config:  Config{Records: MemoryRecords, Cache: MemoryCache},
			wantErr: false,
		},
		{
			name:    "unknown record backend",
			config:  Config{Records: "sheets", Cache: MemoryCache},
			wantErr: true,
		},
		{
			name:    "unknown cache backend",
			config:  Config{Records: MemoryRecords, Cache: "disk"},
			wantErr: true,
		},
		{
			name:    "postgres without url",
			config:  Config{Records: PostgresRecords, Cache: MemoryCache},
			wantErr: true,
		},
		{
			name:    "sqlite without path",
			config:  Config{Records: MemoryRecords, Cache: SQLiteCache},
			wantErr: true,
		},
		{
			name:    "redis without url",
			config:  Config{Records: MemoryRecords, Cache: RedisCache},
			wantErr: true,
		},
		{
			name:    "amqp without queue",
			config:  Config{Records: MemoryRecords, Cache: MemoryCache, Notify: AMQPNotify, AMQPURL: "amqp://localhost", AMQPExchange: "x"},
			wantErr: true,
		},
		{
			name:    "nats without url",
			config:  Config{Records: MemoryRecords, Cache: MemoryCache, Notify: NATSNotify},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Error("expected error for nil config")
	}

	app := config.Defaults()
	app.CacheBackend = config.CacheSQLite
	app.SQLiteDBPath = "/tmp/bb.db"

	cfg, err := FromAppConfig(app)
	if err != nil {
		t.Fatalf("FromAppConfig() error = %v", err)
	}
	if cfg.Cache != SQLiteCache {
		t.Errorf("Cache = %v, want sqlite", cfg.Cache)
	}
	if cfg.Records != MemoryRecords {
		t.Errorf("Records = %v, want memory", cfg.Records)
	}
	if cfg.SQLiteDBPath != "/tmp/bb.db" {
		t.Errorf("SQLiteDBPath = %v", cfg.SQLiteDBPath)
	}
}

func TestFactory_CreateMemory(t *testing.T) {
	f := NewFactory(log.Discard())
	res, err := f.Create(context.Background(), Config{Records: MemoryRecords, Cache: MemoryCache, CacheMaxEntries: 10})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	defer res.Cleanup()

	if _, ok := res.Records.(*memory.Store); !ok {
		t.Errorf("Records = %T, want *memory.Store", res.Records)
	}
	if res.DashboardStore == res.SyncStore {
		t.Error("memory backend must keep the sync store apart from the evicting dashboard store")
	}
	if len(res.Sinks) != 0 {
		t.Errorf("expected no sinks, got %d", len(res.Sinks))
	}

	// The sync store must not evict.
	ctx := context.Background()
	for i := 0; i < 50; i++ {
		if err := res.SyncStore.Put(ctx, string(rune('a'+i)), []byte("x")); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
	}
	if _, err := res.SyncStore.Get(ctx, "a"); err != nil {
		t.Errorf("first key evicted from sync store: %v", err)
	}
}

func TestFactory_CreateSQLite(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cache.db")
	f := NewFactory(log.Discard())
	res, err := f.Create(context.Background(), Config{Records: MemoryRecords, Cache: SQLiteCache, SQLiteDBPath: dbPath})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if _, ok := res.DashboardStore.(*storage.SQLiteRepository); !ok {
		t.Errorf("DashboardStore = %T, want *storage.SQLiteRepository", res.DashboardStore)
	}

	local := cache.NewLocal(res.SyncStore, cache.WithNamespace("sync:"))
	if err := local.Put(context.Background(), cache.KeyLastSync, 42, 0); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := res.Cleanup(); err != nil {
		t.Errorf("Cleanup() error = %v", err)
	}
}

func TestFactory_CreateInvalid(t *testing.T) {
	f := NewFactory(nil)
	if _, err := f.Create(context.Background(), Config{Records: "nope", Cache: MemoryCache}); err == nil {
		t.Error("expected error")
	}
}

func TestFactory_CreateMissingSeedFails(t *testing.T) {
	dir := t.TempDir()
	f := NewFactory(log.Discard())
	// A directory cannot be read as a seed file.
	if _, err := f.Create(context.Background(), Config{Records: MemoryRecords, Cache: MemoryCache, SeedFile: dir}); err == nil {
		t.Error("expected error for unreadable seed file")
	}
}

func TestListen_NoBroker(t *testing.T) {
	err := Listen(context.Background(), Config{Notify: NoNotify}, log.Discard(), nil)
	if err == nil {
		t.Error("expected error without a broker")
	}
}
