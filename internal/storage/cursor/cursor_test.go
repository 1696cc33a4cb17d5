package cursor

import (
	"strings"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	c := New(42, "space:7")

	token, err := Encode(c)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	got, err := Decode(token)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Seq != 42 {
		t.Fatalf("expected seq 42, got %d", got.Seq)
	}
	if err := ValidateScope(got, "space:7"); err != nil {
		t.Fatalf("validate scope: %v", err)
	}
}

func TestDecodeRejectsEmptyToken(t *testing.T) {
	if _, err := Decode(""); err == nil {
		t.Fatal("expected error for empty token")
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := Decode("not-base64!!"); err == nil {
		t.Fatal("expected error for malformed token")
	}
}

func TestValidateScopeRejectsRescopedToken(t *testing.T) {
	c := New(10, "space:1")
	err := ValidateScope(c, "space:2")
	if err == nil {
		t.Fatal("expected scope mismatch error")
	}
	if !strings.Contains(err.Error(), "scope changed") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGlobalScopeHashIsEmpty(t *testing.T) {
	c := New(5, "")
	if c.ScopeHash != "" {
		t.Fatalf("expected empty scope hash, got %q", c.ScopeHash)
	}
	if err := ValidateScope(c, ""); err != nil {
		t.Fatalf("validate global scope: %v", err)
	}
}
