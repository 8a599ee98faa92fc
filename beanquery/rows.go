/*
rows.go - Typed result rows per query template

PURPOSE:
  Each record kind queries a different projection and therefore yields a
  different column set. Rows are modeled as one concrete type per template
  behind the small Row interface, never as bare string arrays, so callers
  pattern-match on the type instead of remembering column positions.

  The template registry pairs each kind with its projection columns and a
  decoder from delimited fields to the typed row.

SEE ALSO:
  - query.go: composes the queries these templates describe
  - parse.go: splits raw evaluator output into the fields decoded here
*/
package beanquery

import (
	"fmt"
	"strings"
	"time"

	"github.com/draftmark/journal-engine/journal"
)

// Row is one typed query result row.
type Row interface {
	// RowKind names the template that produced the row.
	RowKind() journal.Kind
	// RowDate is the directive date, the primary merge key.
	RowDate() time.Time
	// RowKey breaks date ties deterministically within a kind.
	RowKey() string
}

// =============================================================================
// ROW VARIANTS
// =============================================================================

// TransactionRow is one posting of a matching transaction.
type TransactionRow struct {
	Date      time.Time
	Flag      string
	Payee     string
	Narration string
	Tags      []string
	Links     []string
	Account   string
	Amount    *journal.Amount
}

func (r TransactionRow) RowKind() journal.Kind { return journal.KindTransaction }
func (r TransactionRow) RowDate() time.Time    { return r.Date }
func (r TransactionRow) RowKey() string {
	return r.Payee + "\x00" + r.Narration + "\x00" + r.Account
}

// BalanceRow is one matching balance assertion.
type BalanceRow struct {
	Date    time.Time
	Account string
	Amount  *journal.Amount
}

func (r BalanceRow) RowKind() journal.Kind { return journal.KindBalance }
func (r BalanceRow) RowDate() time.Time    { return r.Date }
func (r BalanceRow) RowKey() string {
	key := r.Account
	if r.Amount != nil {
		key += "\x00" + r.Amount.String()
	}
	return key
}

// NoteRow is one matching note.
type NoteRow struct {
	Date    time.Time
	Account string
	Comment string
}

func (r NoteRow) RowKind() journal.Kind { return journal.KindNote }
func (r NoteRow) RowDate() time.Time    { return r.Date }
func (r NoteRow) RowKey() string        { return r.Account + "\x00" + r.Comment }

// PadRow is one matching pad directive.
type PadRow struct {
	Date          time.Time
	Account       string
	SourceAccount string
}

func (r PadRow) RowKind() journal.Kind { return journal.KindPad }
func (r PadRow) RowDate() time.Time    { return r.Date }
func (r PadRow) RowKey() string        { return r.Account + "\x00" + r.SourceAccount }

// =============================================================================
// TEMPLATES
// =============================================================================

// template binds a record kind to its projection and row decoder.
type template struct {
	kind    journal.Kind
	table   string // FROM table; empty means the evaluator's default
	columns []string
	decode  func(fields []string) (Row, error)
}

func templateFor(kind journal.Kind) (template, bool) {
	switch kind {
	case journal.KindTransaction:
		return template{
			kind:    kind,
			columns: []string{"date", "flag", "payee", "narration", "tags", "links", "account", "position"},
			decode:  decodeTransactionRow,
		}, true
	case journal.KindBalance:
		return template{
			kind:    kind,
			table:   "balances",
			columns: []string{"date", "account", "amount"},
			decode:  decodeBalanceRow,
		}, true
	case journal.KindNote:
		return template{
			kind:    kind,
			table:   "notes",
			columns: []string{"date", "account", "comment"},
			decode:  decodeNoteRow,
		}, true
	case journal.KindPad:
		return template{
			kind:    kind,
			table:   "pads",
			columns: []string{"date", "account", "source_account"},
			decode:  decodePadRow,
		}, true
	}
	return template{}, false
}

// =============================================================================
// DECODERS
// =============================================================================

func decodeTransactionRow(fields []string) (Row, error) {
	if len(fields) < 8 {
		return nil, fmt.Errorf("transaction row needs 8 fields, got %d", len(fields))
	}
	date, err := journal.ParseDate(strings.TrimSpace(fields[0]))
	if err != nil {
		return nil, fmt.Errorf("bad row date %q: %w", fields[0], err)
	}
	return TransactionRow{
		Date:      date,
		Flag:      strings.TrimSpace(fields[1]),
		Payee:     fields[2],
		Narration: fields[3],
		Tags:      splitSet(fields[4]),
		Links:     splitSet(fields[5]),
		Account:   strings.TrimSpace(fields[6]),
		Amount:    parseRowAmount(fields[7]),
	}, nil
}

func decodeBalanceRow(fields []string) (Row, error) {
	if len(fields) < 3 {
		return nil, fmt.Errorf("balance row needs 3 fields, got %d", len(fields))
	}
	date, err := journal.ParseDate(strings.TrimSpace(fields[0]))
	if err != nil {
		return nil, fmt.Errorf("bad row date %q: %w", fields[0], err)
	}
	return BalanceRow{
		Date:    date,
		Account: strings.TrimSpace(fields[1]),
		Amount:  parseRowAmount(fields[2]),
	}, nil
}

func decodeNoteRow(fields []string) (Row, error) {
	if len(fields) < 3 {
		return nil, fmt.Errorf("note row needs 3 fields, got %d", len(fields))
	}
	date, err := journal.ParseDate(strings.TrimSpace(fields[0]))
	if err != nil {
		return nil, fmt.Errorf("bad row date %q: %w", fields[0], err)
	}
	return NoteRow{
		Date:    date,
		Account: strings.TrimSpace(fields[1]),
		Comment: fields[2],
	}, nil
}

func decodePadRow(fields []string) (Row, error) {
	if len(fields) < 3 {
		return nil, fmt.Errorf("pad row needs 3 fields, got %d", len(fields))
	}
	date, err := journal.ParseDate(strings.TrimSpace(fields[0]))
	if err != nil {
		return nil, fmt.Errorf("bad row date %q: %w", fields[0], err)
	}
	return PadRow{
		Date:          date,
		Account:       strings.TrimSpace(fields[1]),
		SourceAccount: strings.TrimSpace(fields[2]),
	}, nil
}

// splitSet decodes a set column, tolerating brace or comma renderings.
func splitSet(s string) []string {
	s = strings.Trim(strings.TrimSpace(s), "{}")
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.Trim(strings.TrimSpace(part), `'"`)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseRowAmount decodes "85.30 USD"-shaped position columns. Anything
// unparseable (multi-lot positions, empty legs) becomes nil rather than
// dropping the whole row.
func parseRowAmount(s string) *journal.Amount {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return nil
	}
	amt, err := journal.NewAmount(strings.ReplaceAll(fields[0], ",", ""), fields[1])
	if err != nil {
		return nil
	}
	return &amt
}
