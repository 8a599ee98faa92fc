/*
validate.go - Record validation and conversion

PURPOSE:
  Turns plain-data records into typed journal directives, rejecting
  anything that could not render to well-formed ledger text. The rules
  mirror what the file format itself requires:

    - dates are YYYY-MM-DD
    - accounts are Root:Sub[:Sub...] with a known root
    - amounts parse as decimals and always carry a currency
    - a transaction needs a narration and at least two postings

  Every failure is a ValidationError listing each problem, so the UI can
  show all of them at once instead of one per round trip.

SEE ALSO:
  - records.go: the input shapes
  - journal/render.go: the text these directives become
*/
package ledger

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/draftmark/journal-engine/journal"
)

// accountPattern matches Root:Sub[:Sub...] account names. Segments start
// with an uppercase letter or digit, as the file format requires.
var accountPattern = regexp.MustCompile(`^[A-Z][A-Za-z0-9-]*(:[A-Z0-9][A-Za-z0-9-]*)+$`)

// accountRoots are the five top-level account categories the file format
// recognizes.
var accountRoots = map[string]bool{
	"Assets":      true,
	"Liabilities": true,
	"Equity":      true,
	"Income":      true,
	"Expenses":    true,
}

// commodityPattern matches commodity symbols: uppercase, digits, and a
// few separator characters, starting with a letter.
var commodityPattern = regexp.MustCompile(`^[A-Z][A-Z0-9'._-]*$`)

// =============================================================================
// PER-KIND CONVERSION
// =============================================================================

func directiveForTransaction(rec TransactionRecord) (*journal.Directive, error) {
	var probs []string

	date, dateErr := journal.ParseDate(rec.Date)
	if dateErr != nil {
		probs = append(probs, fmt.Sprintf("date %q is not YYYY-MM-DD", rec.Date))
	}
	flag := rec.Flag
	if flag == "" {
		flag = "*"
	}
	if flag != "*" && flag != "!" {
		probs = append(probs, fmt.Sprintf("flag %q is not '*' or '!'", rec.Flag))
	}
	if strings.TrimSpace(rec.Narration) == "" {
		probs = append(probs, "narration is required")
	}
	if len(rec.Postings) < 2 {
		probs = append(probs, fmt.Sprintf("a transaction needs at least 2 postings, got %d", len(rec.Postings)))
	}

	postings := make([]journal.Posting, 0, len(rec.Postings))
	for i, p := range rec.Postings {
		posting, perrs := convertPosting(i, p)
		probs = append(probs, perrs...)
		postings = append(postings, posting)
	}

	if len(probs) > 0 {
		return nil, &ValidationError{Kind: "transaction", Problems: probs}
	}
	return &journal.Directive{
		Kind:     journal.KindTransaction,
		Date:     date,
		Metadata: journal.MetadataFromMap(rec.Metadata),
		Txn: &journal.Transaction{
			Flag:      flag,
			Payee:     strings.TrimSpace(rec.Payee),
			Narration: strings.TrimSpace(rec.Narration),
			Tags:      cleanTokens(rec.Tags, "#"),
			Links:     cleanTokens(rec.Links, "^"),
			Postings:  postings,
		},
	}, nil
}

func convertPosting(i int, p PostingRecord) (journal.Posting, []string) {
	var probs []string
	if p.Account == "" {
		probs = append(probs, fmt.Sprintf("posting %d: account is required", i+1))
	} else if msg := checkAccount(p.Account); msg != "" {
		probs = append(probs, fmt.Sprintf("posting %d: %s", i+1, msg))
	}
	if p.Flag != "" && p.Flag != "*" && p.Flag != "!" {
		probs = append(probs, fmt.Sprintf("posting %d: flag %q is not '*' or '!'", i+1, p.Flag))
	}

	posting := journal.Posting{
		Flag:    p.Flag,
		Account: p.Account,
		Comment: strings.TrimSpace(p.Comment),
	}
	switch {
	case p.Amount == "" && p.Currency == "":
		// the inferred leg
	case p.Amount == "" || p.Currency == "":
		probs = append(probs, fmt.Sprintf("posting %d: amount and currency must be set together", i+1))
	default:
		amt, err := journal.NewAmount(p.Amount, p.Currency)
		if err != nil {
			probs = append(probs, fmt.Sprintf("posting %d: amount %q is not a number", i+1, p.Amount))
		} else {
			posting.Amount = &amt
		}
	}
	return posting, probs
}

func directiveForBalance(rec BalanceRecord) (*journal.Directive, error) {
	var probs []string

	date, dateErr := journal.ParseDate(rec.Date)
	if dateErr != nil {
		probs = append(probs, fmt.Sprintf("date %q is not YYYY-MM-DD", rec.Date))
	}
	probs = appendAccountProblem(probs, rec.Account)
	if rec.Amount == "" || rec.Currency == "" {
		probs = append(probs, "amount and currency are required")
	}
	amt, amtErr := journal.NewAmount(rec.Amount, rec.Currency)
	if rec.Amount != "" && amtErr != nil {
		probs = append(probs, fmt.Sprintf("amount %q is not a number", rec.Amount))
	}

	var tolerance *decimal.Decimal
	if rec.Tolerance != "" {
		tol, err := decimal.NewFromString(rec.Tolerance)
		if err != nil {
			probs = append(probs, fmt.Sprintf("tolerance %q is not a number", rec.Tolerance))
		} else {
			tolerance = &tol
		}
	}

	if len(probs) > 0 {
		return nil, &ValidationError{Kind: "balance", Problems: probs}
	}
	return &journal.Directive{
		Kind:     journal.KindBalance,
		Date:     date,
		Metadata: journal.MetadataFromMap(rec.Metadata),
		Balance: &journal.Balance{
			Account:   rec.Account,
			Amount:    amt,
			Tolerance: tolerance,
		},
	}, nil
}

func directiveForNote(rec NoteRecord) (*journal.Directive, error) {
	var probs []string

	date, dateErr := journal.ParseDate(rec.Date)
	if dateErr != nil {
		probs = append(probs, fmt.Sprintf("date %q is not YYYY-MM-DD", rec.Date))
	}
	probs = appendAccountProblem(probs, rec.Account)
	if strings.TrimSpace(rec.Comment) == "" {
		probs = append(probs, "comment is required")
	}

	if len(probs) > 0 {
		return nil, &ValidationError{Kind: "note", Problems: probs}
	}
	return &journal.Directive{
		Kind:     journal.KindNote,
		Date:     date,
		Metadata: journal.MetadataFromMap(rec.Metadata),
		Note: &journal.Note{
			Account: rec.Account,
			Comment: strings.TrimSpace(rec.Comment),
		},
	}, nil
}

func directiveForPad(rec PadRecord) (*journal.Directive, error) {
	var probs []string

	date, dateErr := journal.ParseDate(rec.Date)
	if dateErr != nil {
		probs = append(probs, fmt.Sprintf("date %q is not YYYY-MM-DD", rec.Date))
	}
	probs = appendAccountProblem(probs, rec.Account)
	if rec.SourceAccount == "" {
		probs = append(probs, "source account is required")
	} else if msg := checkAccount(rec.SourceAccount); msg != "" {
		probs = append(probs, "source "+msg)
	}

	if len(probs) > 0 {
		return nil, &ValidationError{Kind: "pad", Problems: probs}
	}
	return &journal.Directive{
		Kind:     journal.KindPad,
		Date:     date,
		Metadata: journal.MetadataFromMap(rec.Metadata),
		Pad: &journal.Pad{
			Account:       rec.Account,
			SourceAccount: rec.SourceAccount,
		},
	}, nil
}

func directiveForOpen(rec OpenRecord) (*journal.Directive, error) {
	var probs []string

	date, dateErr := journal.ParseDate(rec.Date)
	if dateErr != nil {
		probs = append(probs, fmt.Sprintf("date %q is not YYYY-MM-DD", rec.Date))
	}
	probs = appendAccountProblem(probs, rec.Account)
	for _, ccy := range rec.Currencies {
		if !commodityPattern.MatchString(ccy) {
			probs = append(probs, fmt.Sprintf("currency %q is not a commodity symbol", ccy))
		}
	}

	if len(probs) > 0 {
		return nil, &ValidationError{Kind: "open", Problems: probs}
	}
	return &journal.Directive{
		Kind:     journal.KindOpen,
		Date:     date,
		Metadata: journal.MetadataFromMap(rec.Metadata),
		Open: &journal.Open{
			Account:    rec.Account,
			Currencies: rec.Currencies,
			Booking:    rec.Booking,
		},
	}, nil
}

func directiveForClose(rec CloseRecord) (*journal.Directive, error) {
	var probs []string

	date, dateErr := journal.ParseDate(rec.Date)
	if dateErr != nil {
		probs = append(probs, fmt.Sprintf("date %q is not YYYY-MM-DD", rec.Date))
	}
	probs = appendAccountProblem(probs, rec.Account)

	if len(probs) > 0 {
		return nil, &ValidationError{Kind: "close", Problems: probs}
	}
	return &journal.Directive{
		Kind:     journal.KindClose,
		Date:     date,
		Metadata: journal.MetadataFromMap(rec.Metadata),
		Close:    &journal.Close{Account: rec.Account},
	}, nil
}

// =============================================================================
// SHARED CHECKS
// =============================================================================

// checkAccount returns a problem message for a malformed account name, or
// "" when the name is acceptable.
func checkAccount(account string) string {
	if !accountPattern.MatchString(account) {
		return fmt.Sprintf("account %q is not of the form Root:Sub", account)
	}
	root := account[:strings.Index(account, ":")]
	if !accountRoots[root] {
		return fmt.Sprintf("account root %q is not one of Assets, Liabilities, Equity, Income, Expenses", root)
	}
	return ""
}

func appendAccountProblem(probs []string, account string) []string {
	if account == "" {
		return append(probs, "account is required")
	}
	if msg := checkAccount(account); msg != "" {
		return append(probs, msg)
	}
	return probs
}

// cleanTokens strips a leading sigil and drops empty entries, so tags and
// links arrive in canonical bare form regardless of how the caller wrote
// them.
func cleanTokens(tokens []string, sigil string) []string {
	var out []string
	for _, tok := range tokens {
		tok = strings.TrimSpace(strings.TrimPrefix(tok, sigil))
		if tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

// checkDate is a small helper for operations that take an optional date.
func checkDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return journal.ParseDate(s)
}
