/*
Package ledger is the mutation façade over the journal file subsystem.

PURPOSE:
  Callers (the REST layer, tests) speak plain-data records and entry ids;
  this package turns them into validated directives, drives the journal
  writer with fresh snapshots, and classifies every outcome into the
  fatal/recoverable taxonomy the UI needs.

KEY CONCEPTS IN THIS FILE (records.go):
  - *Record: plain-data inputs, one per directive kind. All fields are
    strings as they arrive from the wire; validate.go turns them into
    typed directives or rejects them with field-level messages.

DESIGN PRINCIPLES:
  1. No stateful handles cross the boundary: inputs and outputs are data
  2. Every mutating path re-reads the file immediately before writing
  3. A stale id fails resolution (NotFound); it is never guessed around

SEE ALSO:
  - validate.go: record to directive conversion
  - ledger.go: the façade operations
  - outcome.go: the error taxonomy crossing into the UI layer
*/
package ledger

// TransactionRecord is the plain-data input for creating or updating a
// transaction directive.
type TransactionRecord struct {
	Date      string
	Flag      string // defaults to "*"
	Payee     string
	Narration string
	Tags      []string
	Links     []string
	Metadata  map[string]string
	Postings  []PostingRecord
}

// PostingRecord is one account leg of a transaction record. Amount and
// Currency may both be empty for the inferred leg; they must otherwise be
// set together.
type PostingRecord struct {
	Flag     string
	Account  string
	Amount   string
	Currency string
	Comment  string
}

// BalanceRecord is the plain-data input for a balance assertion.
type BalanceRecord struct {
	Date      string
	Account   string
	Amount    string
	Currency  string
	Tolerance string // optional
	Metadata  map[string]string
}

// NoteRecord is the plain-data input for a note directive.
type NoteRecord struct {
	Date     string
	Account  string
	Comment  string
	Metadata map[string]string
}

// PadRecord is the plain-data input for a pad directive.
type PadRecord struct {
	Date          string
	Account       string
	SourceAccount string
	Metadata      map[string]string
}

// OpenRecord is the plain-data input for an account open directive.
type OpenRecord struct {
	Date       string
	Account    string
	Currencies []string
	Booking    string
	Metadata   map[string]string
}

// CloseRecord is the plain-data input for an account close directive.
type CloseRecord struct {
	Date     string
	Account  string
	Metadata map[string]string
}
