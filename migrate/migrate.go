// Package migrate applies per-field, on-read schema migrations to projection
// entities. Field specifications are plain data built by ordinary code; the
// engine is pure and holds no state of its own.
package migrate

import "math"

// FieldType declares the expected shape of a field's value.
type FieldType int

const (
	// TypeString expects a string value.
	TypeString FieldType = iota + 1
	// TypeInteger expects an integral numeric value.
	TypeInteger
	// TypeMap expects a structured map value.
	TypeMap
	// TypeList expects a list value.
	TypeList
	// TypeReference expects a reference to another entity.
	TypeReference
	// TypeReferenceList expects a collection of references. The container
	// check always passes; element-level correctness is enforced by each
	// element's own migration.
	TypeReferenceList
)

// Referencer identifies reference values without coupling this package to
// their concrete type.
type Referencer interface {
	ReferenceKey() string
}

// FieldSpec describes one field of an entity type.
//
// Transform must be pure and idempotent, must handle a nil value, and must
// not drop unrelated data. A transform that panics is not caught here and
// propagates as a fetch failure.
type FieldSpec struct {
	// Name is the field key inside the entity map.
	Name string
	// Type is the field's declared shape.
	Type FieldType
	// Transform reconciles an old stored value with the declared shape.
	// Nil means the field is never migrated.
	Transform func(any) any
	// Validate overrides the type check for deciding whether migration is
	// needed: migration runs exactly when Validate rejects the value.
	Validate func(any) bool
}

// TypeMatches reports whether a value structurally matches the declared type.
// A nil value matches every type.
func TypeMatches(value any, t FieldType) bool {
	if value == nil {
		return true
	}
	switch t {
	case TypeString:
		_, ok := value.(string)
		return ok
	case TypeInteger:
		return isInteger(value)
	case TypeMap:
		_, ok := value.(map[string]any)
		return ok
	case TypeList:
		_, ok := value.([]any)
		return ok
	case TypeReference:
		_, ok := value.(Referencer)
		return ok
	case TypeReferenceList:
		return true
	default:
		return false
	}
}

// isInteger accepts native integer types and the integral float64 values that
// JSON decoding produces for whole numbers.
func isInteger(value any) bool {
	switch v := value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	case float64:
		return v == math.Trunc(v) && !math.IsInf(v, 0) && !math.IsNaN(v)
	default:
		return false
	}
}

// NeedsMigration reports whether a field value must be transformed: never
// without a transform; per the custom validator when one is registered;
// otherwise per the structural type check.
func NeedsMigration(value any, spec FieldSpec) bool {
	if spec.Transform == nil {
		return false
	}
	if spec.Validate != nil {
		return !spec.Validate(value)
	}
	return !TypeMatches(value, spec.Type)
}

// Entity applies the field specs to an entity map, replacing each field that
// needs migration with its transformed value. It returns the possibly-updated
// entity and whether anything changed. The input map is never mutated.
func Entity(data map[string]any, specs []FieldSpec) (map[string]any, bool) {
	changed := false
	out := data
	for _, spec := range specs {
		value := out[spec.Name]
		if !NeedsMigration(value, spec) {
			continue
		}
		if !changed {
			out = cloneMap(data)
			changed = true
		}
		out[spec.Name] = spec.Transform(value)
	}
	return out, changed
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
