package eventlog

import (
	"context"
	"fmt"

	"github.com/chroniclehq/chronicle/event"
	apperrors "github.com/chroniclehq/chronicle/internal/platform/errors"
	"github.com/chroniclehq/chronicle/internal/storage/cursor"
)

// DefaultStreamBatchSize is the backend fetch size used when StreamOptions
// leaves BatchSize unset.
const DefaultStreamBatchSize = 1000

// StreamOptions controls where a stream starts and how it paces backend reads.
type StreamOptions struct {
	// After excludes events at or before this position: the global event id
	// for StreamAll, the space sequence for StreamSpace. Zero starts at the
	// beginning.
	After int64
	// BatchSize bounds how many events one backend fetch loads. Memory use
	// of a stream is proportional to BatchSize, not to log size.
	BatchSize int
	// Token resumes from a previously issued Stream.Token(), overriding
	// After. Tokens are scope-checked: a token issued for one space (or for
	// the global stream) is rejected elsewhere.
	Token string
}

// Stream is a lazy, pull-based iterator over events, fetched from the backend
// in batches. Iterate in database/sql.Rows style:
//
//	for stream.Next() {
//	    evt := stream.Event()
//	    ...
//	}
//	if err := stream.Err(); err != nil { ... }
//
// Abandoning a Stream stops further backend fetches; there is nothing to
// close.
type Stream struct {
	fetch     func(after int64, limit int) ([]event.Event, error)
	pos       func(event.Event) int64
	scope     string
	batchSize int

	after int64
	buf   []event.Event
	idx   int
	done  bool
	err   error
	cur   event.Event
}

// StreamAll streams every event in the log ordered by event id ascending.
func (l *Log) StreamAll(ctx context.Context, opts StreamOptions) (*Stream, error) {
	return l.newStream(
		func(after int64, limit int) ([]event.Event, error) {
			return l.adapter.ListEvents(ctx, after, limit)
		},
		func(e event.Event) int64 { return e.ID },
		"",
		opts,
	)
}

// StreamSpace streams one space's events ordered by space sequence ascending.
func (l *Log) StreamSpace(ctx context.Context, spaceID int64, opts StreamOptions) (*Stream, error) {
	if spaceID <= 0 {
		return nil, apperrors.New(apperrors.CodeSpaceIDInvalid, "space id must be positive")
	}
	return l.newStream(
		func(after int64, limit int) ([]event.Event, error) {
			return l.adapter.ListSpaceEvents(ctx, spaceID, after, limit)
		},
		func(e event.Event) int64 { return e.SpaceSequence },
		fmt.Sprintf("space:%d", spaceID),
		opts,
	)
}

func (l *Log) newStream(fetch func(int64, int) ([]event.Event, error), pos func(event.Event) int64, scope string, opts StreamOptions) (*Stream, error) {
	after := opts.After
	if opts.Token != "" {
		c, err := cursor.Decode(opts.Token)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeStreamTokenInvalid, "decode stream token", err)
		}
		if err := cursor.ValidateScope(c, scope); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeStreamTokenInvalid, "stream token scope mismatch", err)
		}
		after = c.Seq
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultStreamBatchSize
	}
	return &Stream{
		fetch:     fetch,
		pos:       pos,
		scope:     scope,
		batchSize: batchSize,
		after:     after,
	}, nil
}

// Next advances the stream, fetching the next backend batch when the current
// one is exhausted. It returns false at the end of the log or on error.
func (s *Stream) Next() bool {
	if s.err != nil {
		return false
	}
	for s.idx >= len(s.buf) {
		if s.done {
			return false
		}
		batch, err := s.fetch(s.after, s.batchSize)
		if err != nil {
			s.err = err
			return false
		}
		if len(batch) < s.batchSize {
			s.done = true
		}
		if len(batch) == 0 {
			return false
		}
		s.buf = batch
		s.idx = 0
	}
	s.cur = s.buf[s.idx]
	s.idx++
	s.after = s.pos(s.cur)
	return true
}

// Event returns the event most recently yielded by Next.
func (s *Stream) Event() event.Event {
	return s.cur
}

// Err returns the first backend error the stream encountered, if any.
func (s *Stream) Err() error {
	return s.err
}

// Token returns an opaque resume token for the current position. Feeding it
// to StreamOptions.Token continues the stream after the last yielded event.
func (s *Stream) Token() (string, error) {
	return cursor.Encode(cursor.New(s.after, s.scope))
}
