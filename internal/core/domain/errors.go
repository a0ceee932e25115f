package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// Policy Errors.

	// ErrInvalidExpiry indicates an unknown expiry token, or one the
	// owner's tier may not select.
	ErrInvalidExpiry = errors.New("invalid expiry")

	// ErrInvalidPrivacy indicates a privacy value outside the known set.
	ErrInvalidPrivacy = errors.New("invalid privacy")

	// ErrMissingScopeReference indicates guild or moderators privacy
	// was requested without a guild reference.
	ErrMissingScopeReference = errors.New("missing scope reference")

	// Pipeline Errors.

	// ErrUnsupportedType indicates the declared type matches no parser.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrMalformedContent indicates content does not match the structure
	// expected for its declared type.
	ErrMalformedContent = errors.New("malformed content")

	// ErrSchemaViolation indicates a message is missing a required field.
	ErrSchemaViolation = errors.New("schema violation")

	// ErrPipelineTimeout indicates the pipeline deadline passed before
	// all stages completed. Nothing was stored; the caller should retry later.
	ErrPipelineTimeout = errors.New("pipeline timed out, retry later")

	// ErrDuplicateRace indicates create-if-absent lost to a concurrent
	// submission of the same content. Never returned to callers.
	ErrDuplicateRace = errors.New("duplicate race")
)

// StageError reports which pipeline stage failed.
type StageError struct {
	Stage StageName
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// FetchError is returned when externally referenced content cannot be fetched.
type FetchError struct {
	// URL is the location that was requested.
	URL string

	// StatusCode is the HTTP status, or 0 for transport failures.
	StatusCode int

	// Temporary marks failures worth retrying (timeouts, 429, 5xx).
	Temporary bool

	// Err is the underlying cause.
	Err error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Transient reports whether the fetch may succeed if retried.
func (e *FetchError) Transient() bool {
	return e.Temporary
}

// IsTransient reports whether err, or any error it wraps, is a transient
// failure. Validation errors are never transient.
func IsTransient(err error) bool {
	var t interface{ Transient() bool }
	if errors.As(err, &t) {
		return t.Transient()
	}
	return false
}
