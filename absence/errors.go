/*
errors.go - Error taxonomy for the accounting engine

PURPOSE:
  All engine errors fold into four sentinel kinds so callers (and the API
  layer) can distinguish them programmatically with errors.Is:

    ErrNotFound     referenced employee or request absent
    ErrForbidden    role or team scope insufficient
    ErrInvalidInput malformed action/status/kind, bad hours, bad range
    ErrConflict     duplicate identity on creation

  Validation and authorization failures are raised synchronously and never
  swallowed. Notification failures are NOT part of this taxonomy: they are
  logged and dropped (see service.go).

SEE ALSO:
  - api/handlers.go: maps these kinds to HTTP status codes
*/
package absence

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a referenced employee or request does
	// not exist.
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned when the acting identity lacks the role or
	// team scope an operation requires.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidInput is returned for malformed or out-of-range input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConflict is returned on duplicate identity at creation time.
	ErrConflict = errors.New("conflict")
)

// =============================================================================
// CONSTRUCTORS
// =============================================================================

func notFoundf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrNotFound)...)
}

func forbiddenf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrForbidden)...)
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrInvalidInput)...)
}

func conflictf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrConflict)...)
}

// =============================================================================
// PREDICATES
// =============================================================================

func IsNotFound(err error) bool     { return errors.Is(err, ErrNotFound) }
func IsForbidden(err error) bool    { return errors.Is(err, ErrForbidden) }
func IsInvalidInput(err error) bool { return errors.Is(err, ErrInvalidInput) }
func IsConflict(err error) bool     { return errors.Is(err, ErrConflict) }
