package projection

import (
	"encoding/json"
	"fmt"
)

// refField marks a Reference in the encoded JSON form: {"$ref": "<key>"}.
const refField = "$ref"

// Reference is a typed pointer to another projection entry by key.
type Reference struct {
	Key string
}

// ReferenceKey returns the key the reference points at. It also satisfies the
// migrate package's reference check without coupling it to this package.
func (r Reference) ReferenceKey() string {
	return r.Key
}

// Ref is shorthand for constructing a Reference.
func Ref(key string) Reference {
	return Reference{Key: key}
}

// Encode serializes a projection value to its stored JSON form. Reference
// values encode as {"$ref": key}; maps and lists encode recursively; scalars
// pass through.
func Encode(value any) ([]byte, error) {
	data, err := json.Marshal(encodeValue(value))
	if err != nil {
		return nil, fmt.Errorf("encode projection value: %w", err)
	}
	return data, nil
}

func encodeValue(value any) any {
	switch v := value.(type) {
	case Reference:
		return map[string]any{refField: v.Key}
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = encodeValue(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = encodeValue(item)
		}
		return out
	default:
		return v
	}
}

// Decode parses a stored JSON blob back into a projection value, converting
// {"$ref": key} maps into Reference values at any nesting depth.
func Decode(data []byte) (any, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode projection value: %w", err)
	}
	return decodeValue(raw), nil
}

func decodeValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		if key, ok := refKey(v); ok {
			return Reference{Key: key}
		}
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = decodeValue(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = decodeValue(item)
		}
		return out
	default:
		return v
	}
}

func refKey(m map[string]any) (string, bool) {
	if len(m) != 1 {
		return "", false
	}
	key, ok := m[refField].(string)
	return key, ok
}

// collectRefs gathers every Reference reachable in a value with a plain tree
// walk, without resolving anything.
func collectRefs(value any, out []Reference) []Reference {
	switch v := value.(type) {
	case Reference:
		return append(out, v)
	case map[string]any:
		for _, item := range v {
			out = collectRefs(item, out)
		}
		return out
	case []any:
		for _, item := range v {
			out = collectRefs(item, out)
		}
		return out
	default:
		return out
	}
}
