/*
Package journal implements the plain-text ledger file subsystem.

PURPOSE:
  This package contains everything that touches the ledger file directly:
  the directive data model, the line-oriented parser and renderer, the
  directive locator (line spans), the snapshot index (stable ids to spans),
  and the atomic mutation writer (backup, temp-write, rename).

KEY CONCEPTS IN THIS FILE (types.go):
  - Directive: a tagged variant over the record kinds the file can hold
    (transaction, balance, note, pad, open, close, commodity)
  - LineSpan: the inclusive line range one directive occupies
  - EntryID: a stable, content-derived identifier for a directive
  - Amount: a decimal quantity with an arbitrary commodity symbol

DESIGN PRINCIPLES:
  1. Disk is the source of truth: spans are valid only for the snapshot
     that produced them and are re-resolved before every write
  2. Precision: decimal.Decimal for amounts, never float
  3. Plain data: directives carry no behavior beyond accessors; all file
     I/O lives in the writer and index

USAGE:
  snap, err := journal.BuildSnapshot("/home/me/main.ledger")
  d, ok := snap.Get(id)
  if ok && d.Kind == journal.KindTransaction {
      fmt.Println(d.Txn.Payee, d.Span)
  }

SEE ALSO:
  - parse.go: text to directives
  - render.go: directives to text
  - locate.go: span verification and continuation scanning
  - index.go: snapshot construction and id assignment
  - writer.go: atomic mutations and backups
*/
package journal

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// KINDS - The record kinds a ledger file can hold
// =============================================================================

type Kind string

const (
	KindTransaction Kind = "transaction"
	KindBalance     Kind = "balance"
	KindNote        Kind = "note"
	KindPad         Kind = "pad"
	KindOpen        Kind = "open"
	KindClose       Kind = "close"
	KindCommodity   Kind = "commodity"
)

// DefaultKinds are the kinds returned by listings when the caller does not
// ask for specific ones.
func DefaultKinds() []Kind {
	return []Kind{KindTransaction, KindBalance, KindPad, KindNote}
}

// ParseKind maps an external kind name to a Kind. Returns false for
// anything this subsystem does not index.
func ParseKind(s string) (Kind, bool) {
	switch Kind(s) {
	case KindTransaction, KindBalance, KindNote, KindPad, KindOpen, KindClose, KindCommodity:
		return Kind(s), true
	}
	return "", false
}

// =============================================================================
// IDENTIFIERS AND SPANS
// =============================================================================

// EntryID identifies a directive across snapshots. It derives from the
// directive's content (see index.go), so an id held across an external edit
// of that directive simply stops resolving instead of pointing at the wrong
// lines.
type EntryID string

// LineSpan is an inclusive, 0-based line range covering exactly one
// directive's serialization, continuation lines included.
//
// Spans never overlap within one snapshot, and they are meaningless outside
// the snapshot that produced them.
type LineSpan struct {
	Start int
	End   int
}

func (s LineSpan) Len() int      { return s.End - s.Start + 1 }
func (s LineSpan) IsValid() bool { return s.Start >= 0 && s.End >= s.Start }

// =============================================================================
// DATES - The file speaks civil dates only
// =============================================================================

const DateLayout = "2006-01-02"

func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// =============================================================================
// AMOUNT - Decimal quantity with a commodity symbol
// =============================================================================

// Amount pairs a decimal number with a commodity symbol. Symbols are
// arbitrary uppercase identifiers (USD, EUR, VACHF, AAPL), not restricted to
// ISO currencies.
type Amount struct {
	Number   decimal.Decimal
	Currency string
}

func NewAmount(number, currency string) (Amount, error) {
	n, err := decimal.NewFromString(number)
	if err != nil {
		return Amount{}, err
	}
	return Amount{Number: n, Currency: currency}, nil
}

// String renders the amount the way the file does: "100.00 USD".
func (a Amount) String() string {
	return FormatNumber(a.Number) + " " + a.Currency
}

func (a Amount) IsZero() bool { return a.Number.IsZero() }

// FormatNumber renders a decimal at the scale it carries, so a "100.00"
// read from the file or the user writes back as "100.00", not "100".
// Decimal's own String trims trailing zeros, which would silently reformat
// hand-written amounts.
func FormatNumber(d decimal.Decimal) string {
	places := -d.Exponent()
	if places < 0 {
		places = 0
	}
	return d.StringFixed(places)
}

// =============================================================================
// METADATA - Ordered key/value attachments
// =============================================================================

// Metadata preserves file order; rendering a parsed directive must not
// shuffle its `key: "value"` lines.
type Metadata []MetaPair

type MetaPair struct {
	Key   string
	Value string
}

// Get returns the value for key and whether it was present.
func (m Metadata) Get(key string) (string, bool) {
	for _, p := range m {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

// Set overwrites key in place or appends it, preserving existing order.
func (m Metadata) Set(key, value string) Metadata {
	for i, p := range m {
		if p.Key == key {
			m[i].Value = value
			return m
		}
	}
	return append(m, MetaPair{Key: key, Value: value})
}

// Map copies the pairs into a plain map for JSON serialization.
func (m Metadata) Map() map[string]string {
	if len(m) == 0 {
		return map[string]string{}
	}
	out := make(map[string]string, len(m))
	for _, p := range m {
		out[p.Key] = p.Value
	}
	return out
}

// MetadataFromMap builds Metadata with deterministic (sorted) key order.
// Use for caller-supplied maps; parsed metadata keeps file order instead.
func MetadataFromMap(m map[string]string) Metadata {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make(Metadata, 0, len(keys))
	for _, k := range keys {
		out = append(out, MetaPair{Key: k, Value: m[k]})
	}
	return out
}

// =============================================================================
// DIRECTIVE - Tagged variant over record kinds
// =============================================================================

// Directive is one structured record in the ledger file. Common fields are
// always set; exactly one of the kind pointers is non-nil, matching Kind.
type Directive struct {
	ID       EntryID
	Kind     Kind
	Date     time.Time
	Span     LineSpan
	Lines    []string // raw text lines as found in the file
	Metadata Metadata // directive-level `key: "value"` lines

	Txn       *Transaction
	Balance   *Balance
	Note      *Note
	Pad       *Pad
	Open      *Open
	Close     *Close
	Commodity *Commodity
}

// Accounts returns every account the directive touches, postings included.
func (d *Directive) Accounts() []string {
	switch d.Kind {
	case KindTransaction:
		seen := make(map[string]bool, len(d.Txn.Postings))
		out := make([]string, 0, len(d.Txn.Postings))
		for _, p := range d.Txn.Postings {
			if !seen[p.Account] {
				seen[p.Account] = true
				out = append(out, p.Account)
			}
		}
		return out
	case KindBalance:
		return []string{d.Balance.Account}
	case KindNote:
		return []string{d.Note.Account}
	case KindPad:
		return []string{d.Pad.Account, d.Pad.SourceAccount}
	case KindOpen:
		return []string{d.Open.Account}
	case KindClose:
		return []string{d.Close.Account}
	}
	return nil
}

// Transaction records a dated movement between accounts. The flag marks
// status ('*' cleared, '!' pending). Payee is optional; narration may be
// empty but is always rendered.
type Transaction struct {
	Flag      string
	Payee     string
	Narration string
	Tags      []string
	Links     []string
	Postings  []Posting
}

// Posting is one account leg of a transaction. Amount may be nil for the
// inferred leg.
type Posting struct {
	Flag     string
	Account  string
	Amount   *Amount
	Cost     *Cost
	Price    *Price
	Comment  string
	Metadata Metadata
}

// Cost is an acquisition-cost annotation: {100.00 USD, 2024-01-15, "lot-1"}.
// Number may be nil for lot-matching-only forms like {2024-01-15} or
// {"lot-1"}. Total marks the double-brace {{...}} form.
type Cost struct {
	Number   *decimal.Decimal
	Currency string
	Date     string
	Label    string
	Total    bool
}

// Price is a conversion annotation: @ 1.35 USD, or @@ 1000.00 USD when Total.
type Price struct {
	Number   decimal.Decimal
	Currency string
	Total    bool
}

// Balance asserts an account's balance on a date, with optional tolerance:
// 2024-03-01 balance Assets:Checking 100.00 USD ~ 0.01 USD.
type Balance struct {
	Account   string
	Amount    Amount
	Tolerance *decimal.Decimal
}

// Note attaches a dated free-text comment to an account.
type Note struct {
	Account string
	Comment string
}

// Pad inserts an automatic balancing transaction from a source account.
type Pad struct {
	Account       string
	SourceAccount string
}

// Open declares an account, optionally constraining its commodities and
// booking method.
type Open struct {
	Account    string
	Currencies []string
	Booking    string
}

// Close marks an account closed from its date onward.
type Close struct {
	Account string
}

// Commodity declares a commodity symbol; its attributes live in the
// directive-level metadata.
type Commodity struct {
	Symbol string
}
