/*
errors.go - Evaluator error taxonomy

PURPOSE:
  Classifies everything that can go wrong while talking to the external
  query evaluator. Callers branch on three situations:

    - the evaluator is missing entirely (fatal, fix the environment)
    - a query was rejected or timed out (recoverable, fix the query or retry)
    - a query returned nothing (not an error at all; empty result sets are
      normal and never reach this file)

SEE ALSO:
  - session.go: returns ErrEvaluatorNotFound from detection
  - query.go: wraps evaluator rejections in QueryError
*/
package beanquery

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for errors.Is checks.
var (
	// ErrEvaluatorNotFound means no candidate evaluator command answered
	// the version probe. Fatal: queries cannot work until the tool is
	// installed or configured.
	ErrEvaluatorNotFound = errors.New("query evaluator not found")

	// ErrQueryFailed means the evaluator rejected a query (non-zero exit).
	// Recoverable: the query or the ledger content needs fixing.
	ErrQueryFailed = errors.New("query failed")

	// ErrQueryTimeout means the evaluator did not finish within the
	// configured timeout and was killed. Recoverable and retryable.
	ErrQueryTimeout = errors.New("query timed out")

	// ErrSessionStopped means the session was stopped and can no longer
	// run queries.
	ErrSessionStopped = errors.New("evaluator session stopped")
)

// InstallGuidance is the actionable message surfaced when no evaluator is
// found.
const InstallGuidance = "bean-query was not found on this system. Install beancount " +
	"(pip install beancount) or set evaluator_command in the configuration " +
	"to the full path of the bean-query executable."

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// DetectError reports a failed evaluator detection with every candidate
// that was probed.
type DetectError struct {
	Candidates []string
}

func (e *DetectError) Error() string {
	return fmt.Sprintf("no query evaluator found (probed: %s)", strings.Join(e.Candidates, ", "))
}

func (e *DetectError) Unwrap() error {
	return ErrEvaluatorNotFound
}

// QueryError reports a query the evaluator rejected or failed to finish.
type QueryError struct {
	Query    string
	ExitCode int
	Stderr   string
	TimedOut bool
}

func (e *QueryError) Error() string {
	if e.TimedOut {
		return fmt.Sprintf("query timed out: %s", compactQuery(e.Query))
	}
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		msg = fmt.Sprintf("evaluator exited with code %d", e.ExitCode)
	}
	return fmt.Sprintf("invalid query: %s", msg)
}

func (e *QueryError) Unwrap() error {
	if e.TimedOut {
		return ErrQueryTimeout
	}
	return ErrQueryFailed
}

// compactQuery trims a query for error messages.
func compactQuery(q string) string {
	q = strings.Join(strings.Fields(q), " ")
	if len(q) > 120 {
		return q[:117] + "..."
	}
	return q
}

// =============================================================================
// CLASSIFICATION HELPERS
// =============================================================================

// IsFatal reports whether the error requires fixing the environment before
// any query can succeed.
func IsFatal(err error) bool {
	return errors.Is(err, ErrEvaluatorNotFound)
}

// IsRecoverable reports whether the caller may retry after adjusting the
// query or waiting.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrQueryFailed) || errors.Is(err, ErrQueryTimeout)
}
