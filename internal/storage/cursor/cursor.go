// Package cursor provides opaque resume-token encoding for event streams.
package cursor

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Cursor captures a stream position so a consumer can resume after a restart.
type Cursor struct {
	// Seq is the last sequence value the consumer observed. Resuming yields
	// events with sequence > Seq.
	Seq int64 `json:"seq"`
	// ScopeHash invalidates tokens replayed against a different stream scope
	// (global vs a specific space).
	ScopeHash string `json:"scope,omitempty"`
}

// Encode encodes a cursor to an opaque base64 string.
func Encode(c Cursor) (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal cursor: %w", err)
	}
	return base64.URLEncoding.EncodeToString(data), nil
}

// Decode decodes an opaque base64 string to a cursor.
// Returns an error if the token is invalid or malformed.
func Decode(token string) (Cursor, error) {
	if token == "" {
		return Cursor{}, fmt.Errorf("empty token")
	}

	data, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("decode base64: %w", err)
	}

	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return Cursor{}, fmt.Errorf("unmarshal cursor: %w", err)
	}
	if c.Seq < 0 {
		return Cursor{}, fmt.Errorf("negative cursor sequence: %d", c.Seq)
	}

	return c, nil
}

// HashScope computes a short hash of the scope string for token validation.
// Returns empty string for empty scope.
func HashScope(scope string) string {
	if scope == "" {
		return ""
	}
	h := sha256.Sum256([]byte(scope))
	// 64-bit hash is sufficient for validation
	return hex.EncodeToString(h[:8])
}

// ValidateScope checks that the cursor was issued for the given scope.
func ValidateScope(c Cursor, scope string) error {
	if c.ScopeHash != HashScope(scope) {
		return fmt.Errorf("scope changed since cursor was created")
	}
	return nil
}

// New creates a cursor for the given position and scope.
func New(seq int64, scope string) Cursor {
	return Cursor{
		Seq:       seq,
		ScopeHash: HashScope(scope),
	}
}
