package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"prediction-poll-service/internal/domain"
)

func TestRecordStoreRoundTrip(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewRecordStore(newClient(mr), time.Hour)
	ctx := context.Background()

	if err := store.Create(ctx, "doc-1", []byte(`{"a":1}`)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Create(ctx, "doc-1", []byte(`{}`)); !errors.Is(err, domain.ErrRecordExists) {
		t.Fatalf("expected exists error, got %v", err)
	}

	rec, err := store.Get(ctx, "doc-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Version != 1 || string(rec.Data) != `{"a":1}` {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestRecordStoreConditionalUpdateConflict(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewRecordStore(newClient(mr), 0)
	ctx := context.Background()

	if err := store.Create(ctx, "doc-1", []byte(`{"a":1}`)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.ConditionalUpdate(ctx, "doc-1", 1, []byte(`{"a":2}`)); err != nil {
		t.Fatalf("conditional update: %v", err)
	}

	err = store.ConditionalUpdate(ctx, "doc-1", 1, []byte(`{"a":3}`))
	if !errors.Is(err, domain.ErrConcurrentModification) {
		t.Fatalf("expected conflict, got %v", err)
	}

	rec, err := store.Get(ctx, "doc-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Version != 2 || string(rec.Data) != `{"a":2}` {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestRecordStoreMissingAndDelete(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewRecordStore(newClient(mr), 0)
	ctx := context.Background()

	if _, err := store.Get(ctx, "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := store.ConditionalUpdate(ctx, "nope", 1, nil); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := store.Delete(ctx, "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	if err := store.Create(ctx, "doc-1", []byte(`{}`)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Delete(ctx, "doc-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if mr.Exists("record:doc-1") {
		t.Fatalf("expected redis key removed")
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}
