package projection

import (
	"reflect"
	"testing"
)

func TestCodecRoundTripsReferences(t *testing.T) {
	value := map[string]any{
		"title": "intro",
		"cards": []any{Ref("card:1"), Ref("card:2")},
		"meta":  map[string]any{"owner": Ref("user:7")},
	}

	data, err := Encode(value)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(decoded, value) {
		t.Fatalf("round trip mismatch:\n got %v\nwant %v", decoded, value)
	}
}

func TestDecodeKeepsOrdinaryMaps(t *testing.T) {
	// A map with $ref plus other fields is data, not a reference.
	decoded, err := Decode([]byte(`{"$ref": "card:1", "extra": 1}`))
	if err != nil {
		t.Fatal(err)
	}
	m, ok := decoded.(map[string]any)
	if !ok || !reflect.DeepEqual(m["$ref"], "card:1") {
		t.Fatalf("expected plain map, got %v", decoded)
	}
}

func TestCollectRefs(t *testing.T) {
	value := map[string]any{
		"a": Ref("x:1"),
		"b": []any{Ref("x:2"), map[string]any{"c": Ref("x:3")}},
		"d": "scalar",
	}
	refs := collectRefs(value, nil)
	if len(refs) != 3 {
		t.Fatalf("expected 3 refs, got %v", refs)
	}
}
