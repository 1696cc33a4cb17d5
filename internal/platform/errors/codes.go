// Package errors provides structured error handling with machine-readable codes.
package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Adapter errors
	CodeAdapterInitFailed Code = "ADAPTER_INIT_FAILED"
	CodeAdapterError      Code = "ADAPTER_ERROR"
	CodeAdapterBusy       Code = "ADAPTER_BUSY"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"

	// Event validation errors
	CodeEventTypeEmpty Code = "EVENT_TYPE_EMPTY"
	CodeEntityIDEmpty  Code = "ENTITY_ID_EMPTY"
	CodeSpaceIDInvalid Code = "SPACE_ID_INVALID"

	// Space errors
	CodeSpaceNameEmpty Code = "SPACE_NAME_EMPTY"

	// Projection errors
	CodeCircularReference Code = "CIRCULAR_REFERENCE"
	CodeInvalidReference  Code = "INVALID_REFERENCE"
	CodeMissingField      Code = "MISSING_FIELD"

	// Stream errors
	CodeStreamTokenInvalid Code = "STREAM_TOKEN_INVALID"
)

// Retryable reports whether an operation that failed with this code may
// succeed if retried. Retry policy itself belongs to the caller.
func (c Code) Retryable() bool {
	return c == CodeAdapterBusy
}
