package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain operations
var (
	// ErrTitleNotFound indicates the requested title does not exist
	ErrTitleNotFound = errors.New("title not found")

	// ErrServerOffline indicates the remote catalog is unreachable
	ErrServerOffline = errors.New("catalog server is unreachable")

	// ErrUnauthorized indicates the remote side (or a known-guest check) rejected the caller
	ErrUnauthorized = errors.New("not authorized")

	// ErrValidation indicates input rejected on the client before any network call
	ErrValidation = errors.New("validation failed")

	// ErrFileTooLarge indicates a payload above the configured ceiling
	ErrFileTooLarge = errors.New("file too large")

	// ErrUnsupportedFormat indicates a payload whose detected type is not accepted
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrUploadFailed indicates a chunk transfer failed mid-upload
	ErrUploadFailed = errors.New("upload failed")

	// ErrHandleUnusable indicates a handle whose transfer failed or was already consumed
	ErrHandleUnusable = errors.New("content handle is no longer usable")

	// ErrNotTransferred indicates a by-bytes handle that has no remote URL yet
	ErrNotTransferred = errors.New("content has not been transferred")

	// ErrInvalidTransition indicates an illegal session state change
	ErrInvalidTransition = errors.New("invalid session transition")

	// ErrNotAuthenticated indicates an operation requiring an identity was attempted anonymously
	ErrNotAuthenticated = errors.New("no identity present")
)

// ValidationError is a client-detected input problem. Never retried.
type ValidationError struct {
	Field  string
	Reason string
	Err    error // optional more specific sentinel (ErrFileTooLarge, ErrUnsupportedFormat)
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Is matches ErrValidation and the wrapped sentinel
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func (e *ValidationError) Unwrap() error { return e.Err }

// NewValidationError creates a ValidationError for field
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// UploadError reports the chunk at which a transfer halted
type UploadError struct {
	Chunk  int
	Offset int64
	Err    error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload failed at chunk %d (offset %d): %v", e.Chunk, e.Offset, e.Err)
}

func (e *UploadError) Is(target error) bool {
	return target == ErrUploadFailed
}

func (e *UploadError) Unwrap() error { return e.Err }

// AuthorizationError is an application error the caller must treat as authoritative.
// Local is true when the call was never issued because no identity was present.
type AuthorizationError struct {
	Op    string
	Local bool
	Err   error
}

func (e *AuthorizationError) Error() string {
	if e.Local {
		return fmt.Sprintf("%s: login required", e.Op)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, ErrUnauthorized)
}

func (e *AuthorizationError) Is(target error) bool {
	return target == ErrUnauthorized
}

func (e *AuthorizationError) Unwrap() error { return e.Err }
