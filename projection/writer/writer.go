// Package writer persists migrated projection values in the background. A
// single goroutine owns the queue, so flushes never race and entries reach the
// adapter in enqueue order.
package writer

import (
	"context"
	"sync"
	"time"

	"github.com/chroniclehq/chronicle/internal/platform/config"
	"github.com/chroniclehq/chronicle/projection"
)

// Config controls writer batching.
type Config struct {
	// BatchSize is the queue depth that triggers an automatic flush.
	BatchSize int `env:"CHRONICLE_WRITER_BATCH_SIZE" envDefault:"100"`
	// FlushInterval is how often a non-empty queue is flushed regardless of
	// depth.
	FlushInterval time.Duration `env:"CHRONICLE_WRITER_FLUSH_INTERVAL" envDefault:"5s"`
}

// ConfigFromEnv loads writer settings from the environment.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type item struct {
	key   string
	value map[string]any
}

// Writer is the background migration writer. It implements
// projection.WriteBack.
//
// Delivery is at least once: a failed flush keeps the batch at the queue
// front and retries on the next trigger. Writes are full-value overwrites,
// so replays are harmless.
type Writer struct {
	kv  projection.KV
	cfg Config

	enqueueCh chan item
	flushCh   chan chan error
	stopCh    chan struct{}
	stopOnce  sync.Once
	done      chan struct{}
}

var _ projection.WriteBack = (*Writer)(nil)

// New starts a writer over the given KV adapter.
func New(kv projection.KV, cfg Config) *Writer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}
	w := &Writer{
		kv:        kv,
		cfg:       cfg,
		enqueueCh: make(chan item, cfg.BatchSize),
		flushCh:   make(chan chan error),
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
	}
	go w.run()
	return w
}

// Enqueue queues a migrated value for persistence. Safe to call from any
// goroutine; calls after Close are dropped.
func (w *Writer) Enqueue(key string, value map[string]any) {
	select {
	case w.enqueueCh <- item{key: key, value: value}:
	case <-w.done:
	}
}

// Flush forces a synchronous flush of the queued entries and reports the
// adapter error, if any.
func (w *Writer) Flush(ctx context.Context) error {
	reply := make(chan error, 1)
	select {
	case w.flushCh <- reply:
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close flushes the remaining queue and stops the writer.
func (w *Writer) Close(ctx context.Context) error {
	err := w.Flush(ctx)
	w.stopOnce.Do(func() { close(w.stopCh) })
	select {
	case <-w.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return err
}

func (w *Writer) run() {
	defer close(w.done)

	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()

	var queue []item
	for {
		select {
		case it := <-w.enqueueCh:
			queue = append(queue, it)
			if len(queue) >= w.cfg.BatchSize {
				queue, _ = w.flush(queue)
			}
		case <-ticker.C:
			queue, _ = w.flush(queue)
		case reply := <-w.flushCh:
			queue = w.drainInto(queue)
			var err error
			queue, err = w.flush(queue)
			reply <- err
		case <-w.stopCh:
			queue = w.drainInto(queue)
			_, _ = w.flush(queue)
			return
		}
	}
}

// drainInto appends anything already buffered on the enqueue channel, so a
// flush covers every Enqueue that happened before it.
func (w *Writer) drainInto(queue []item) []item {
	for {
		select {
		case it := <-w.enqueueCh:
			queue = append(queue, it)
		default:
			return queue
		}
	}
}

// flush writes the queue as one batch. On failure the queue is returned
// intact so the entries retry in order on the next trigger.
func (w *Writer) flush(queue []item) ([]item, error) {
	if len(queue) == 0 {
		return queue, nil
	}

	entries := make([]projection.Entry, 0, len(queue))
	for _, it := range queue {
		data, err := projection.Encode(it.value)
		if err != nil {
			return queue, err
		}
		entries = append(entries, projection.Entry{Key: it.key, Value: data})
	}
	if err := w.kv.PutMany(context.Background(), entries); err != nil {
		return queue, err
	}
	return queue[:0], nil
}
