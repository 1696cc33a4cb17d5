package kvbolt

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/chroniclehq/chronicle/projection"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chronicle.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatal("expected error for blank path")
	}
}

func TestPutGetDelete(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	if err := store.Put(ctx, "deck:1", []byte(`{"title":"intro"}`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	data, err := store.Get(ctx, "deck:1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(data) != `{"title":"intro"}` {
		t.Fatalf("unexpected value %q", data)
	}

	if err := store.Delete(ctx, "deck:1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, "deck:1"); !errors.Is(err, projection.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.Delete(ctx, "deck:1"); err != nil {
		t.Fatalf("delete missing: %v", err)
	}
}

func TestBatchOperations(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	entries := []projection.Entry{
		{Key: "card:1", Value: []byte("a")},
		{Key: "card:2", Value: []byte("b")},
		{Key: "deck:1", Value: []byte("c")},
	}
	if err := store.PutMany(ctx, entries); err != nil {
		t.Fatalf("put many: %v", err)
	}

	got, err := store.GetMany(ctx, []string{"card:1", "card:404", "deck:1"})
	if err != nil {
		t.Fatalf("get many: %v", err)
	}
	if len(got) != 2 || string(got["card:1"]) != "a" || string(got["deck:1"]) != "c" {
		t.Fatalf("unexpected result %v", got)
	}
}

func TestScanPrefix(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	for _, key := range []string{"card:3", "deck:1", "card:1", "card:2"} {
		if err := store.Put(ctx, key, []byte(key)); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}

	entries, err := store.Scan(ctx, "card:", 0)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for i, want := range []string{"card:1", "card:2", "card:3"} {
		if entries[i].Key != want {
			t.Fatalf("entry %d = %q, want %q", i, entries[i].Key, want)
		}
	}

	limited, err := store.Scan(ctx, "card:", 2)
	if err != nil {
		t.Fatalf("scan limited: %v", err)
	}
	if len(limited) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(limited))
	}
}

func TestValuesSurviveReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "chronicle.db")

	store, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := store.Put(ctx, "deck:1", []byte("persisted")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	data, err := reopened.Get(ctx, "deck:1")
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if string(data) != "persisted" {
		t.Fatalf("unexpected value %q", data)
	}
}
