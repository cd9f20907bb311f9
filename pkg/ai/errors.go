package ai

import (
	"errors"
	"fmt"
)

// ErrMissingCredential indicates a provider API key was not configured.
var ErrMissingCredential = errors.New("missing provider credential")

// ErrUnsupportedMedia indicates a backend cannot accept the supplied modality.
var ErrUnsupportedMedia = errors.New("unsupported media for backend")

// ErrPayloadTooLarge indicates a peer report exceeds the backend size limit.
// Reports are never truncated to fit; the call fails instead.
var ErrPayloadTooLarge = errors.New("payload exceeds backend limit")

// BackendError wraps a transport, authentication, or malformed-response
// failure from a specific provider. The original cause is preserved.
type BackendError struct {
	Provider string
	Err      error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend %s: %v", e.Provider, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// GradeParseError is returned when the grade-extraction model answers with
// something that is not a bare integer.
type GradeParseError struct {
	Raw string
}

func (e *GradeParseError) Error() string {
	return fmt.Sprintf("grade extraction returned non-integer response: %q", e.Raw)
}

// MalformedResponseError is returned when a model response expected to be
// JSON does not decode after fence stripping.
type MalformedResponseError struct {
	Raw string
	Err error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed model response: %v", e.Err)
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}
