// Package memory provides an ephemeral in-memory event-log adapter, used for
// development and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chroniclehq/chronicle/event"
	"github.com/chroniclehq/chronicle/eventlog"
)

// Store is an in-memory event-log adapter.
//
// The global event-id counter and each per-space sequence counter are
// independent atomic integers so latest-sequence reads never take the lock.
// Space counters are created lazily on first append via LoadOrStore, so two
// first-writers racing on a brand-new space cannot both create its counter.
// The event table and its ordered indexes are guarded by one RWMutex; holding
// it across counter allocation and index insert is what keeps space sequences
// and event ids co-ordered within a space.
type Store struct {
	globalSeq   atomic.Int64
	spaceSeqs   sync.Map // space id -> *atomic.Int64
	nextSpaceID atomic.Int64

	mu           sync.RWMutex
	events       map[int64]event.Event
	allIDs       []int64            // ascending event ids
	byEntity     map[string][]int64 // entity id -> ascending event ids
	bySpace      map[int64][]int64  // space id -> event ids in sequence order
	spaces       map[int64]event.Space
	spacesByName map[string]int64
	checkpoints  map[int64]event.Checkpoint
}

var _ eventlog.Adapter = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		events:       make(map[int64]event.Event),
		byEntity:     make(map[string][]int64),
		bySpace:      make(map[int64][]int64),
		spaces:       make(map[int64]event.Space),
		spacesByName: make(map[string]int64),
		checkpoints:  make(map[int64]event.Checkpoint),
	}
}

// Close is a no-op; the store holds no external resources.
func (s *Store) Close() error {
	return nil
}

func (s *Store) spaceCounter(spaceID int64) *atomic.Int64 {
	if ctr, ok := s.spaceSeqs.Load(spaceID); ok {
		return ctr.(*atomic.Int64)
	}
	ctr, _ := s.spaceSeqs.LoadOrStore(spaceID, new(atomic.Int64))
	return ctr.(*atomic.Int64)
}

// Append atomically appends an event and returns it with sequences assigned.
func (s *Store) Append(ctx context.Context, spaceID int64, entityID string, typ event.Type, payload map[string]any, opts event.AppendOptions) (event.Event, error) {
	if err := ctx.Err(); err != nil {
		return event.Event{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(spaceID, entityID, typ, payload, opts), nil
}

// AppendBatch appends several events of one space under a single lock hold,
// so their sequence values are contiguous.
func (s *Store) AppendBatch(ctx context.Context, spaceID int64, batch []eventlog.AppendInput) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(batch) == 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]event.Event, 0, len(batch))
	for _, in := range batch {
		out = append(out, s.appendLocked(spaceID, in.EntityID, in.Type, in.Payload, in.Options))
	}
	return out, nil
}

func (s *Store) appendLocked(spaceID int64, entityID string, typ event.Type, payload map[string]any, opts event.AppendOptions) event.Event {
	id := s.globalSeq.Add(1)
	seq := s.spaceCounter(spaceID).Add(1)

	ts := opts.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC().Truncate(time.Millisecond)
	}

	evt := event.Event{
		ID:            id,
		SpaceID:       spaceID,
		SpaceSequence: seq,
		EntityID:      entityID,
		Type:          typ,
		Payload:       payload,
		Timestamp:     ts,
		CausationID:   opts.CausationID,
		CorrelationID: opts.CorrelationID,
	}

	s.events[id] = evt
	s.allIDs = append(s.allIDs, id)
	s.byEntity[entityID] = append(s.byEntity[entityID], id)
	s.bySpace[spaceID] = append(s.bySpace[spaceID], id)
	return evt
}

// Event retrieves a single event by its global id.
func (s *Store) Event(ctx context.Context, eventID int64) (event.Event, error) {
	if err := ctx.Err(); err != nil {
		return event.Event{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	evt, ok := s.events[eventID]
	if !ok {
		return event.Event{}, eventlog.ErrNotFound
	}
	return evt, nil
}

// EntityEvents returns the events for one entity ordered by event id ascending.
func (s *Store) EntityEvents(ctx context.Context, entityID string, opts eventlog.RangeOptions) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byEntity[entityID]
	start := sort.Search(len(ids), func(i int) bool { return ids[i] > opts.FromEventID })

	out := make([]event.Event, 0)
	for _, id := range ids[start:] {
		if opts.Limit > 0 && len(out) >= opts.Limit {
			break
		}
		out = append(out, s.events[id])
	}
	return out, nil
}

// ListEvents returns up to limit events with id > afterEventID.
func (s *Store) ListEvents(ctx context.Context, afterEventID int64, limit int) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	start := sort.Search(len(s.allIDs), func(i int) bool { return s.allIDs[i] > afterEventID })

	out := make([]event.Event, 0)
	for _, id := range s.allIDs[start:] {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, s.events[id])
	}
	return out, nil
}

// ListSpaceEvents returns up to limit events of one space with sequence >
// afterSequence, ordered by space sequence ascending.
func (s *Store) ListSpaceEvents(ctx context.Context, spaceID, afterSequence int64, limit int) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.bySpace[spaceID]
	start := sort.Search(len(ids), func(i int) bool {
		return s.events[ids[i]].SpaceSequence > afterSequence
	})

	out := make([]event.Event, 0)
	for _, id := range ids[start:] {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, s.events[id])
	}
	return out, nil
}

// LatestEventID returns the highest assigned event id, 0 when empty.
func (s *Store) LatestEventID(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return s.globalSeq.Load(), nil
}

// SpaceLatestSequence returns the highest sequence assigned in a space.
func (s *Store) SpaceLatestSequence(ctx context.Context, spaceID int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if ctr, ok := s.spaceSeqs.Load(spaceID); ok {
		return ctr.(*atomic.Int64).Load(), nil
	}
	return 0, nil
}
