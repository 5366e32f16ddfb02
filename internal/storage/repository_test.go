package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"budgetbuddy/internal/cache"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "cache.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestRepositoryPutGet(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	if _, err := repo.Get(ctx, "missing"); !errors.Is(err, cache.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := repo.Put(ctx, "k", []byte("one")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := repo.Put(ctx, "k", []byte("two")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, err := repo.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "two" {
		t.Errorf("got %q, want %q", got, "two")
	}

	if err := repo.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.Delete(ctx, "k"); err != nil {
		t.Fatalf("second delete should be a no-op: %v", err)
	}
	if _, err := repo.Get(ctx, "k"); !errors.Is(err, cache.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestRepositoryDeletePrefix(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	for _, k := range []string{"cache:a", "cache:b", "cache_x", "sync:queue"} {
		if err := repo.Put(ctx, k, []byte(k)); err != nil {
			t.Fatalf("put %s: %v", k, err)
		}
	}

	if err := repo.DeletePrefix(ctx, "cache:"); err != nil {
		t.Fatalf("delete prefix: %v", err)
	}

	keys, err := repo.Keys(ctx, "")
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	want := []string{"cache_x", "sync:queue"}
	if len(keys) != len(want) {
		t.Fatalf("keys = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("keys[%d] = %q, want %q", i, keys[i], want[i])
		}
	}
}

func TestRepositorySurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")

	repo, err := NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := repo.Put(ctx, "last_sync_at", []byte("123")); err != nil {
		t.Fatalf("put: %v", err)
	}
	repo.Close()

	repo, err = NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer repo.Close()

	got, err := repo.Get(ctx, "last_sync_at")
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if string(got) != "123" {
		t.Errorf("got %q, want 123", got)
	}
}

func TestRepositoryBacksLocalCache(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	local := cache.NewLocal(repo, cache.WithClock(func() time.Time { return now }))

	if err := local.Put(ctx, "dashboard_summary:u1", map[string]int{"n": 3}, 5); err != nil {
		t.Fatalf("put: %v", err)
	}
	var got map[string]int
	if !local.Get(ctx, "dashboard_summary:u1", &got) {
		t.Fatal("expected a fresh hit")
	}
	if got["n"] != 3 {
		t.Errorf("n = %d, want 3", got["n"])
	}
}
