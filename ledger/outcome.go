/*
outcome.go - Error classification crossing into the UI layer

PURPOSE:
  Every façade operation ends in a structured Outcome before it reaches a
  client. The taxonomy has exactly three branches:

    Fatal       - the environment is broken (evaluator missing, backup or
                  rename failed); nothing was applied, the user must fix
                  the setup before retrying
    Recoverable - the operation aborted cleanly (stale id, bad input,
                  rejected query, timeout); refresh or adjust and retry
    None        - success; an empty query result is also success

  No failure path is silent: anything unclassified becomes Fatal with its
  message, never a dropped error.

SEE ALSO:
  - journal/errors.go, beanquery/errors.go: the errors classified here
  - api/handlers.go: maps outcomes onto HTTP statuses
*/
package ledger

import (
	"errors"

	"github.com/draftmark/journal-engine/beanquery"
	"github.com/draftmark/journal-engine/journal"
)

// OutcomeKind is the user-facing failure classification.
type OutcomeKind string

const (
	OutcomeNone        OutcomeKind = "none"
	OutcomeFatal       OutcomeKind = "fatal"
	OutcomeRecoverable OutcomeKind = "recoverable"
)

// Outcome is the structured result every operation produces before
// crossing into the UI layer.
type Outcome struct {
	Success bool
	Message string
	Kind    OutcomeKind
}

// OK is the successful outcome.
func OK() Outcome {
	return Outcome{Success: true, Kind: OutcomeNone}
}

// Classify maps an operation error onto the taxonomy. A nil error is
// success.
func Classify(err error) Outcome {
	if err == nil {
		return OK()
	}

	switch {
	case errors.Is(err, beanquery.ErrEvaluatorNotFound),
		errors.Is(err, ErrQueriesUnavailable):
		return Outcome{Kind: OutcomeFatal, Message: beanquery.InstallGuidance}

	case journal.IsFatalWrite(err):
		return Outcome{Kind: OutcomeFatal, Message: err.Error()}

	case journal.IsNotFound(err):
		return Outcome{Kind: OutcomeRecoverable, Message: "entry no longer found, please refresh"}

	case IsValidation(err),
		errors.Is(err, ErrDuplicateCommodity),
		errors.Is(err, beanquery.ErrQueryFailed),
		errors.Is(err, beanquery.ErrQueryTimeout):
		return Outcome{Kind: OutcomeRecoverable, Message: err.Error()}

	default:
		return Outcome{Kind: OutcomeFatal, Message: err.Error()}
	}
}

// Retryable reports whether the outcome invites a retry without operator
// intervention.
func (o Outcome) Retryable() bool {
	return o.Kind == OutcomeRecoverable
}
