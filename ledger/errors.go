/*
errors.go - Centralized error types for the ledger engine

ERROR CATEGORIES:
  1. Validation errors - Bad input, rejected before any state change
  2. Not-found errors  - Edit/delete of an unknown id, no state change
  3. Persistence errors - Backing-store write failed AFTER the in-memory
     change was applied. In-memory state is NOT rolled back.
  4. Import partial failure - importData stopped between clearing and
     rewriting collections. The backing store is left inconsistent.

Dangling references (a transaction pointing at a deleted account or event)
are NOT errors. Read paths resolve them to "Unknown" or nothing.

USAGE:
  if errors.Is(err, ledger.ErrValidation) { ... 400 ... }

  var perr *ledger.PersistenceError
  if errors.As(err, &perr) { log.Printf("retry %s %s", perr.Op, perr.ID) }
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned for bad input. Nothing was recorded.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when an id does not resolve.
	ErrNotFound = errors.New("not found")

	// ErrPersistence is returned, via the mirror's error channel, when a
	// backing-store write fails.
	ErrPersistence = errors.New("persistence failed")

	// ErrImportPartialFailure is returned when importData fails partway.
	// Take a backup immediately before importing.
	ErrImportPartialFailure = errors.New("import partially applied")

	// ErrMandateSettled is returned when skipping a mandate that already ran this month.
	ErrMandateSettled = errors.New("mandate already settled for this month")

	// ErrDocumentNotFound is returned by Store implementations when
	// updating a record that does not exist.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrMirrorClosed is returned when flushing a closed mirror.
	ErrMirrorClosed = errors.New("persistence mirror closed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

type NotFoundError struct {
	Kind string // "account", "transaction", "mandate", ...
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

func notFound(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

// PersistenceError describes one mirrored write that failed.
type PersistenceError struct {
	Op         string // add, update, delete, delete_where, bulk_replace, clear
	Collection Collection
	ID         string
	Err        error
}

func (e *PersistenceError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("persist %s %s: %v", e.Op, e.Collection, e.Err)
	}
	return fmt.Sprintf("persist %s %s/%s: %v", e.Op, e.Collection, e.ID, e.Err)
}

func (e *PersistenceError) Unwrap() []error { return []error{ErrPersistence, e.Err} }

// ImportPartialFailureError reports where importData stopped.
type ImportPartialFailureError struct {
	Stage      string // "clear" or "write"
	Collection Collection
	Cleared    []Collection // collections already emptied when the failure hit
	Err        error
}

func (e *ImportPartialFailureError) Error() string {
	return fmt.Sprintf("import failed during %s of %s (%d collections cleared): %v",
		e.Stage, e.Collection, len(e.Cleared), e.Err)
}

func (e *ImportPartialFailureError) Unwrap() []error {
	return []error{ErrImportPartialFailure, e.Err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrMandateSettled)
}

// IsNotFound returns true if the error indicates a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
