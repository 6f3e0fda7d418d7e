// Package services defines the business logic for owner-scoped upload sets.
// This file centralizes the service-level error taxonomy so that callers can
// classify failures with errors.As / errors.Is.
//
// Translation into HTTP status codes and user-facing messages is performed
// at the handler layer: validation failures become 400 responses carrying
// the machine-readable Code, storage failures become generic 500 responses
// while the wrapped cause is only logged.
package services

import (
	"errors"
	"fmt"
)

// Machine-readable validation reasons.
const (
	CodeOwnerRequired   = "owner_required"
	CodeUploadsNotList  = "uploads_not_list"
	CodeInvalidCategory = "invalid_category"
	CodeInvalidPayload  = "invalid_payload"
	CodeIDRequired      = "id_required"
	CodeTooManyUploads  = "too_many_uploads"
)

// ErrPartialApply is reported by stores without transactions when the
// create/update phase of a plan was committed but the delete phase failed.
// Rows scheduled for deletion may still exist; re-running the same
// reconciliation converges the set.
var ErrPartialApply = errors.New("partial apply: upserts committed, deletes failed")

// ValidationError reports malformed or missing input. It is always raised
// before any storage I/O.
type ValidationError struct {
	Code    string
	Message string
	// Index is the offending element position in the target list, or -1.
	Index int
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("%s: uploads[%d]: %s", e.Code, e.Index, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(code, msg string) *ValidationError {
	return &ValidationError{Code: code, Message: msg, Index: -1}
}

// StorageError wraps any failure returned by an AttachmentStore.
type StorageError struct {
	Op  string // list | reconcile | delete | ping
	Err error
}

func (e *StorageError) Error() string { return "storage " + e.Op + ": " + e.Err.Error() }

func (e *StorageError) Unwrap() error { return e.Err }

// InvalidCategoryError is returned by NormalizeCategory for unknown input.
type InvalidCategoryError struct {
	Raw string
}

func (e *InvalidCategoryError) Error() string {
	return fmt.Sprintf("invalid category %q (want video, certificate or achievement)", e.Raw)
}

// IsValidation reports whether err is (or wraps) a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
