/*
errors.go - Façade-level error types

PURPOSE:
  Validation failures and duplicate detection live here; everything the
  lower layers can raise (stale ids, backup and rename failures, evaluator
  errors) passes through unwrapped so outcome.go can classify it.

SEE ALSO:
  - validate.go: returns ValidationError
  - commodity.go: returns ErrDuplicateCommodity
  - outcome.go: maps all of these onto the user-facing taxonomy
*/
package ledger

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is the sentinel every ValidationError unwraps to.
	ErrValidation = errors.New("validation failed")

	// ErrDuplicateCommodity is returned when a commodity declaration for
	// the symbol already exists in the file.
	ErrDuplicateCommodity = errors.New("commodity already declared")

	// ErrQueriesUnavailable is returned for query operations when no
	// evaluator session was started. The UI shows install guidance.
	ErrQueriesUnavailable = errors.New("query evaluator unavailable")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// ValidationError collects field-level problems with one record.
type ValidationError struct {
	Kind     string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Kind, strings.Join(e.Problems, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// IsValidation reports whether err is a record validation failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}
