package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	base := New(CodeNotFound, "record not found")
	wrapped := fmt.Errorf("fetch deck: %w", Wrap(CodeNotFound, "projection entry missing", errors.New("sql: no rows")))

	if !errors.Is(wrapped, base) {
		t.Fatalf("expected wrapped error to match %v by code", base.Code)
	}
}

func TestErrorIsRejectsDifferentCode(t *testing.T) {
	busy := New(CodeAdapterBusy, "database is locked")
	notFound := New(CodeNotFound, "record not found")

	if errors.Is(busy, notFound) {
		t.Fatal("expected codes to be distinct")
	}
}

func TestUnwrapExposesCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(CodeAdapterError, "append event", cause)

	if !errors.Is(err, cause) {
		t.Fatal("expected cause to be reachable via errors.Is")
	}
}

func TestRetryable(t *testing.T) {
	if !CodeAdapterBusy.Retryable() {
		t.Fatal("expected busy to be retryable")
	}
	if CodeAdapterError.Retryable() {
		t.Fatal("expected generic adapter error to not be retryable")
	}
	if CodeCircularReference.Retryable() {
		t.Fatal("expected circular reference to not be retryable")
	}
}

func TestWithMetadata(t *testing.T) {
	err := WithMetadata(CodeCircularReference, "self reference", map[string]string{"key": "deck:1"})
	if err.Metadata["key"] != "deck:1" {
		t.Fatalf("expected metadata key, got %v", err.Metadata)
	}
}
