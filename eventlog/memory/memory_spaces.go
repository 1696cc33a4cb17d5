package memory

import (
	"context"
	"strings"
	"time"

	"github.com/chroniclehq/chronicle/event"
	"github.com/chroniclehq/chronicle/eventlog"
	apperrors "github.com/chroniclehq/chronicle/internal/platform/errors"
)

// EnsureSpace registers a space on first use of a name and returns the
// existing record on subsequent calls.
func (s *Store) EnsureSpace(ctx context.Context, name string, metadata map[string]string) (event.Space, error) {
	if err := ctx.Err(); err != nil {
		return event.Space{}, err
	}
	if strings.TrimSpace(name) == "" {
		return event.Space{}, apperrors.New(apperrors.CodeSpaceNameEmpty, "space name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.spacesByName[name]; ok {
		return s.spaces[id], nil
	}

	sp := event.Space{
		ID:        s.nextSpaceID.Add(1),
		Name:      name,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	s.spaces[sp.ID] = sp
	s.spacesByName[name] = sp.ID
	return sp, nil
}

// SpaceByName looks a space up by its unique name.
func (s *Store) SpaceByName(ctx context.Context, name string) (event.Space, error) {
	if err := ctx.Err(); err != nil {
		return event.Space{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.spacesByName[name]
	if !ok {
		return event.Space{}, eventlog.ErrNotFound
	}
	return s.spaces[id], nil
}

// SpaceByID looks a space up by id.
func (s *Store) SpaceByID(ctx context.Context, spaceID int64) (event.Space, error) {
	if err := ctx.Err(); err != nil {
		return event.Space{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	sp, ok := s.spaces[spaceID]
	if !ok {
		return event.Space{}, eventlog.ErrNotFound
	}
	return sp, nil
}

// DeleteSpace removes a space, cascading to its events, sequence counter,
// and checkpoint. Other spaces are untouched.
func (s *Store) DeleteSpace(ctx context.Context, spaceID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doomed := make(map[int64]bool, len(s.bySpace[spaceID]))
	for _, id := range s.bySpace[spaceID] {
		doomed[id] = true
		evt := s.events[id]
		s.byEntity[evt.EntityID] = removeIDs(s.byEntity[evt.EntityID], doomed)
		if len(s.byEntity[evt.EntityID]) == 0 {
			delete(s.byEntity, evt.EntityID)
		}
		delete(s.events, id)
	}
	s.allIDs = removeIDs(s.allIDs, doomed)
	delete(s.bySpace, spaceID)
	delete(s.checkpoints, spaceID)
	s.spaceSeqs.Delete(spaceID)

	if sp, ok := s.spaces[spaceID]; ok {
		delete(s.spacesByName, sp.Name)
		delete(s.spaces, spaceID)
	}
	return nil
}

// SaveCheckpoint upserts the projection checkpoint for a space.
func (s *Store) SaveCheckpoint(ctx context.Context, cp event.Checkpoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)
	s.checkpoints[cp.SpaceID] = cp
	return nil
}

// Checkpoint loads the projection checkpoint for a space.
func (s *Store) Checkpoint(ctx context.Context, spaceID int64) (event.Checkpoint, error) {
	if err := ctx.Err(); err != nil {
		return event.Checkpoint{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	cp, ok := s.checkpoints[spaceID]
	if !ok {
		return event.Checkpoint{}, eventlog.ErrNotFound
	}
	return cp, nil
}

func removeIDs(ids []int64, doomed map[int64]bool) []int64 {
	out := ids[:0]
	for _, id := range ids {
		if !doomed[id] {
			out = append(out, id)
		}
	}
	return out
}
