package writer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/chroniclehq/chronicle/projection"
)

type batchKV struct {
	mu      sync.Mutex
	data    map[string][]byte
	batches [][]projection.Entry
	fail    error
}

func newBatchKV() *batchKV {
	return &batchKV{data: make(map[string][]byte)}
}

func (f *batchKV) setFail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = err
}

func (f *batchKV) batchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

func (f *batchKV) value(key string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.data[key]
}

func (f *batchKV) Get(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.data[key]
	if !ok {
		return nil, projection.ErrNotFound
	}
	return data, nil
}

func (f *batchKV) Put(ctx context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value
	return nil
}

func (f *batchKV) Delete(ctx context.Context, key string) error { return nil }

func (f *batchKV) GetMany(ctx context.Context, keys []string) (map[string][]byte, error) {
	return nil, nil
}

func (f *batchKV) PutMany(ctx context.Context, entries []projection.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.batches = append(f.batches, entries)
	for _, e := range entries {
		f.data[e.Key] = e.Value
	}
	return nil
}

func (f *batchKV) Scan(ctx context.Context, prefix string, limit int) ([]projection.Entry, error) {
	return nil, nil
}

func (f *batchKV) Close() error { return nil }

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestManualFlushWritesInOrder(t *testing.T) {
	kv := newBatchKV()
	w := New(kv, Config{BatchSize: 100, FlushInterval: time.Hour})
	defer w.Close(context.Background())

	w.Enqueue("deck:1", map[string]any{"title": "one"})
	w.Enqueue("deck:2", map[string]any{"title": "two"})

	if err := w.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if kv.batchCount() != 1 {
		t.Fatalf("expected 1 batch, got %d", kv.batchCount())
	}
	kv.mu.Lock()
	batch := kv.batches[0]
	kv.mu.Unlock()
	if len(batch) != 2 || batch[0].Key != "deck:1" || batch[1].Key != "deck:2" {
		t.Fatalf("unexpected batch %v", batch)
	}
}

func TestAutoFlushAtBatchSize(t *testing.T) {
	kv := newBatchKV()
	w := New(kv, Config{BatchSize: 3, FlushInterval: time.Hour})
	defer w.Close(context.Background())

	w.Enqueue("deck:1", map[string]any{"n": 1})
	w.Enqueue("deck:2", map[string]any{"n": 2})
	w.Enqueue("deck:3", map[string]any{"n": 3})
	waitFor(t, func() bool { return kv.batchCount() == 1 })

	kv.mu.Lock()
	first := len(kv.batches[0])
	kv.mu.Unlock()
	if first != 3 {
		t.Fatalf("expected batch of 3, got %d", first)
	}

	// A fourth entry waits for the next trigger.
	w.Enqueue("deck:4", map[string]any{"n": 4})
	time.Sleep(20 * time.Millisecond)
	if kv.batchCount() != 1 {
		t.Fatalf("expected 4th entry to stay queued, got %d batches", kv.batchCount())
	}
	if err := w.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if kv.value("deck:4") == nil {
		t.Fatal("expected 4th entry persisted after manual flush")
	}
}

func TestIntervalFlush(t *testing.T) {
	kv := newBatchKV()
	w := New(kv, Config{BatchSize: 100, FlushInterval: 20 * time.Millisecond})
	defer w.Close(context.Background())

	w.Enqueue("deck:1", map[string]any{"title": "one"})
	waitFor(t, func() bool { return kv.value("deck:1") != nil })
}

func TestFailedFlushRetries(t *testing.T) {
	kv := newBatchKV()
	kv.setFail(errors.New("adapter down"))
	w := New(kv, Config{BatchSize: 100, FlushInterval: time.Hour})
	defer w.Close(context.Background())

	w.Enqueue("deck:1", map[string]any{"title": "one"})
	if err := w.Flush(context.Background()); err == nil {
		t.Fatal("expected flush error")
	}

	kv.setFail(nil)
	if err := w.Flush(context.Background()); err != nil {
		t.Fatalf("retry flush: %v", err)
	}
	if kv.value("deck:1") == nil {
		t.Fatal("expected entry persisted after retry")
	}
}

func TestCloseFlushesAndStops(t *testing.T) {
	kv := newBatchKV()
	w := New(kv, Config{BatchSize: 100, FlushInterval: time.Hour})

	w.Enqueue("deck:1", map[string]any{"title": "one"})
	if err := w.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if kv.value("deck:1") == nil {
		t.Fatal("expected close to flush the queue")
	}

	// Enqueue after close is dropped, not a deadlock.
	w.Enqueue("deck:2", map[string]any{"title": "two"})
	if err := w.Close(context.Background()); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if kv.value("deck:2") != nil {
		t.Fatal("expected post-close enqueue to be dropped")
	}
}
