package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/chroniclehq/chronicle/projection"
)

func TestSpaceKVIsolatesSpaces(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	one := store.ForSpace(1)
	two := store.ForSpace(2)

	if err := one.Put(ctx, "deck:1", []byte("one")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := two.Put(ctx, "deck:1", []byte("two")); err != nil {
		t.Fatalf("put: %v", err)
	}

	data, err := one.Get(ctx, "deck:1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(data) != "one" {
		t.Fatalf("unexpected value %q", data)
	}

	if err := one.Delete(ctx, "deck:1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := one.Get(ctx, "deck:1"); !errors.Is(err, projection.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := two.Get(ctx, "deck:1"); err != nil {
		t.Fatalf("expected other space untouched, got %v", err)
	}
}

func TestSpaceKVBatchAndScan(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	kv := store.ForSpace(1)

	entries := []projection.Entry{
		{Key: "card:2", Value: []byte("b")},
		{Key: "card:1", Value: []byte("a")},
		{Key: "deck:1", Value: []byte("d")},
	}
	if err := kv.PutMany(ctx, entries); err != nil {
		t.Fatalf("put many: %v", err)
	}

	got, err := kv.GetMany(ctx, []string{"card:1", "card:404", "deck:1"})
	if err != nil {
		t.Fatalf("get many: %v", err)
	}
	if len(got) != 2 || string(got["card:1"]) != "a" {
		t.Fatalf("unexpected result %v", got)
	}

	scanned, err := kv.Scan(ctx, "card:", 0)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(scanned) != 2 || scanned[0].Key != "card:1" || scanned[1].Key != "card:2" {
		t.Fatalf("unexpected scan %v", scanned)
	}

	limited, err := kv.Scan(ctx, "card:", 1)
	if err != nil {
		t.Fatalf("scan limited: %v", err)
	}
	if len(limited) != 1 || limited[0].Key != "card:1" {
		t.Fatalf("unexpected limited scan %v", limited)
	}
}

func TestSpaceKVUpsertReplaces(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	kv := store.ForSpace(1)

	if err := kv.Put(ctx, "deck:1", []byte("first")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := kv.Put(ctx, "deck:1", []byte("second")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	data, err := kv.Get(ctx, "deck:1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(data) != "second" {
		t.Fatalf("unexpected value %q", data)
	}
}
