// Package projection provides the lazily-materialized read model: a
// read-through cache over a key/value adapter, reference resolution, and
// on-read schema migration.
package projection

import (
	"context"
	"errors"
	"strings"

	apperrors "github.com/chroniclehq/chronicle/internal/platform/errors"
	"github.com/chroniclehq/chronicle/migrate"
)

// Options configures a Store.
type Options struct {
	// Specs maps entity types (the part of a key before ':') to their field
	// specifications. Entity types without specs bypass migration entirely,
	// which keeps reads forward-compatible with newer writers.
	Specs map[string][]migrate.FieldSpec
	// WriteBack receives migrated values for asynchronous persistence.
	// Nil disables write-back; migration still applies on every read.
	WriteBack WriteBack
}

// Store is the projection read model over one KV adapter.
//
// The local caches are not synchronized: callers sharing one Store across
// goroutines must serialize access, the same way they would around any other
// non-concurrent handle.
type Store struct {
	kv   KV
	opts Options

	// cache holds decoded, migrated, unresolved values by key.
	cache map[string]any
	// resolved memoizes fully resolved values; invalidated wholesale on any
	// write, since a write to one key can change another key's resolved view.
	resolved map[string]any
}

// New creates a Store over the given KV adapter.
func New(kv KV, opts Options) *Store {
	return &Store{
		kv:       kv,
		opts:     opts,
		cache:    make(map[string]any),
		resolved: make(map[string]any),
	}
}

// Close releases the underlying adapter's resources.
func (s *Store) Close() error {
	if s == nil || s.kv == nil {
		return nil
	}
	return s.kv.Close()
}

// EntityType returns the entity-type prefix of a projection key
// ("deck:1" -> "deck"). Keys without a separator are their own type.
func EntityType(key string) string {
	if i := strings.IndexByte(key, ':'); i >= 0 {
		return key[:i]
	}
	return key
}

// Fetch returns the value stored at key: from the local cache when present,
// otherwise read through the adapter, decoded, and migrated. References are
// not resolved; use Resolve for that.
func (s *Store) Fetch(ctx context.Context, key string) (any, error) {
	if v, ok := s.cache[key]; ok {
		return v, nil
	}

	data, err := s.kv.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	value, err := Decode(data)
	if err != nil {
		return nil, err
	}

	value = s.migrateValue(key, value)
	s.cache[key] = value
	return value, nil
}

// migrateValue applies the entity type's field specs to a map value and hands
// changed values to the write-back sink. Non-map values and unknown entity
// types pass through unchanged.
func (s *Store) migrateValue(key string, value any) any {
	data, ok := value.(map[string]any)
	if !ok {
		return value
	}
	specs, ok := s.opts.Specs[EntityType(key)]
	if !ok || len(specs) == 0 {
		return value
	}

	migrated, changed := migrate.Entity(data, specs)
	if changed && s.opts.WriteBack != nil {
		s.opts.WriteBack.Enqueue(key, migrated)
	}
	return migrated
}

// Put encodes and stores value under key, updates the local cache with the
// unencoded value, and invalidates the resolved cache.
func (s *Store) Put(ctx context.Context, key string, value any) error {
	data, err := Encode(value)
	if err != nil {
		return err
	}
	if err := s.kv.Put(ctx, key, data); err != nil {
		return err
	}
	s.cache[key] = value
	s.resolved = make(map[string]any)
	return nil
}

// Delete removes key from the adapter and the local caches.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.kv.Delete(ctx, key); err != nil {
		return err
	}
	delete(s.cache, key)
	s.resolved = make(map[string]any)
	return nil
}

// Resolve fetches key and dereferences every reachable Reference.
//
// A Reference back to key found while walking key's own value is a
// data-integrity bug and raises a CIRCULAR_REFERENCE error. A Reference back
// to an already-visited key found inside a nested entity (a legitimate
// bidirectional link) is left in place unresolved instead of recursing.
func (s *Store) Resolve(ctx context.Context, key string) (any, error) {
	if v, ok := s.resolved[key]; ok {
		return v, nil
	}

	raw, err := s.Fetch(ctx, key)
	if err != nil {
		return nil, err
	}

	visited := map[string]bool{key: true}
	value, err := s.resolveValue(ctx, raw, key, key, visited)
	if err != nil {
		return nil, err
	}
	s.resolved[key] = value
	return value, nil
}

// resolveValue walks a value owned by entity owner, resolving References.
// root is the top-level Resolve key; visited spans the whole Resolve call.
func (s *Store) resolveValue(ctx context.Context, value any, root, owner string, visited map[string]bool) (any, error) {
	switch v := value.(type) {
	case Reference:
		if v.Key == root && owner == root {
			return nil, apperrors.WithMetadata(apperrors.CodeCircularReference,
				"projection entry references itself", map[string]string{"key": root})
		}
		if visited[v.Key] {
			// Bidirectional link reached through a nested entity; leave the
			// reference unresolved rather than recursing forever.
			return v, nil
		}
		visited[v.Key] = true
		target, err := s.Fetch(ctx, v.Key)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, apperrors.WithMetadata(apperrors.CodeInvalidReference,
					"reference target does not exist", map[string]string{"key": v.Key})
			}
			return nil, err
		}
		return s.resolveValue(ctx, target, root, v.Key, visited)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			resolved, err := s.resolveValue(ctx, item, root, owner, visited)
			if err != nil {
				return nil, err
			}
			out[k] = resolved
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			resolved, err := s.resolveValue(ctx, item, root, owner, visited)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	default:
		return value, nil
	}
}
