package projection

import (
	"context"
	"errors"
)

// Paths declares which referenced fields to warm ahead of time. Keys are field
// names on the current entity; a nil value is a leaf, a nested Paths descends
// into the referenced entities' own fields.
type Paths map[string]Paths

// FlatPaths builds a single-level Paths from field names.
func FlatPaths(fields ...string) Paths {
	p := make(Paths, len(fields))
	for _, f := range fields {
		p[f] = nil
	}
	return p
}

// Preload warms the cache with the entities referenced from key along the
// given paths, batching each level through GetMany. Values are cached raw;
// references stay unresolved, so a later Resolve hits only the cache. Missing
// referenced entries are skipped rather than reported, since preloading is an
// optimization and Resolve surfaces dangling references itself.
func (s *Store) Preload(ctx context.Context, key string, paths Paths) error {
	root, err := s.Fetch(ctx, key)
	if err != nil {
		return err
	}
	return s.preloadLevel(ctx, []any{root}, paths)
}

// preloadLevel fetches one breadth-first level: for every value at this level,
// the references under the path fields are gathered, batch fetched, cached,
// and then descended into along each field's sub-paths.
func (s *Store) preloadLevel(ctx context.Context, values []any, paths Paths) error {
	if len(paths) == 0 {
		return nil
	}

	// Gather the wanted keys per field across all values at this level.
	byField := make(map[string][]Reference, len(paths))
	var missing []string
	seen := make(map[string]bool)
	for field := range paths {
		for _, value := range values {
			m, ok := value.(map[string]any)
			if !ok {
				continue
			}
			refs := collectRefs(m[field], nil)
			byField[field] = append(byField[field], refs...)
			for _, ref := range refs {
				if _, cached := s.cache[ref.Key]; cached || seen[ref.Key] {
					continue
				}
				seen[ref.Key] = true
				missing = append(missing, ref.Key)
			}
		}
	}

	if len(missing) > 0 {
		fetched, err := s.kv.GetMany(ctx, missing)
		if err != nil {
			return err
		}
		for k, data := range fetched {
			value, err := Decode(data)
			if err != nil {
				return err
			}
			s.cache[k] = s.migrateValue(k, value)
		}
	}

	for field, sub := range paths {
		if len(sub) == 0 {
			continue
		}
		var next []any
		for _, ref := range byField[field] {
			v, err := s.Fetch(ctx, ref.Key)
			if err != nil {
				if errors.Is(err, ErrNotFound) {
					continue
				}
				return err
			}
			next = append(next, v)
		}
		if err := s.preloadLevel(ctx, next, sub); err != nil {
			return err
		}
	}
	return nil
}
