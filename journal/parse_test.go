package journal

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// TEST HELPERS
// =============================================================================
// Shared by index_test.go and writer_test.go as well.

func parseOne(t *testing.T, text string) *Directive {
	t.Helper()
	lines, _ := SplitLines([]byte(text))
	d, _, ok := parseAt(lines, 0)
	if !ok {
		t.Fatalf("parseAt did not recognize a directive in:\n%s", text)
	}
	return d
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := ParseDate(s)
	if err != nil {
		t.Fatalf("bad test date %s: %v", s, err)
	}
	return d
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	n, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad test decimal %s: %v", s, err)
	}
	return n
}

func decPtr(t *testing.T, s string) *decimal.Decimal {
	t.Helper()
	n := dec(t, s)
	return &n
}

// =============================================================================
// TRANSACTION PARSING
// =============================================================================

func TestParse_Transaction_FullHeader(t *testing.T) {
	// GIVEN: A transaction with payee, narration, tags, and links
	// WHEN: Parsing it
	// THEN: All header parts land in their fields

	d := parseOne(t, `2024-01-15 * "Grocery Store" "Weekly shopping" #food #weekly ^receipt-42
  Expenses:Food  85.30 USD
  Assets:Checking`)

	if d.Kind != KindTransaction {
		t.Fatalf("expected transaction, got %s", d.Kind)
	}
	txn := d.Txn
	if txn.Flag != "*" {
		t.Errorf("expected flag *, got %q", txn.Flag)
	}
	if txn.Payee != "Grocery Store" {
		t.Errorf("expected payee, got %q", txn.Payee)
	}
	if txn.Narration != "Weekly shopping" {
		t.Errorf("expected narration, got %q", txn.Narration)
	}
	if len(txn.Tags) != 2 || txn.Tags[0] != "food" || txn.Tags[1] != "weekly" {
		t.Errorf("expected tags [food weekly], got %v", txn.Tags)
	}
	if len(txn.Links) != 1 || txn.Links[0] != "receipt-42" {
		t.Errorf("expected links [receipt-42], got %v", txn.Links)
	}
	if len(txn.Postings) != 2 {
		t.Fatalf("expected 2 postings, got %d", len(txn.Postings))
	}
}

func TestParse_Transaction_SingleQuotedString_IsNarration(t *testing.T) {
	// GIVEN: A header with one quoted string
	// WHEN: Parsing it
	// THEN: The string is the narration and the payee is empty

	d := parseOne(t, `2024-01-15 * "Weekly shopping"
  Expenses:Food  85.30 USD
  Assets:Checking`)

	if d.Txn.Payee != "" {
		t.Errorf("expected empty payee, got %q", d.Txn.Payee)
	}
	if d.Txn.Narration != "Weekly shopping" {
		t.Errorf("expected narration, got %q", d.Txn.Narration)
	}
}

func TestParse_Transaction_TxnKeyword_NormalizedToStar(t *testing.T) {
	d := parseOne(t, `2024-01-15 txn "Dinner"
  Expenses:Food  40.00 USD
  Assets:Checking`)

	if d.Txn.Flag != "*" {
		t.Errorf("expected txn keyword to normalize to *, got %q", d.Txn.Flag)
	}
}

func TestParse_Transaction_EscapedQuotesInHeader(t *testing.T) {
	d := parseOne(t, `2024-03-01 * "Joe's \"Famous\" Deli" "Lunch"
  Expenses:Food  12.00 USD
  Assets:Checking`)

	if d.Txn.Payee != `Joe's "Famous" Deli` {
		t.Errorf("expected escaped quotes unescaped, got %q", d.Txn.Payee)
	}
}

func TestParse_Transaction_MetadataPlacement(t *testing.T) {
	// GIVEN: Metadata lines before the first posting and after a posting
	// WHEN: Parsing
	// THEN: The first attaches to the directive, the second to the posting

	d := parseOne(t, `2024-01-15 * "Store" "Shopping"
  category: "household"
  Expenses:Food  85.30 USD
    receipt: "scan-001"
  Assets:Checking`)

	if got, _ := d.Metadata.Get("category"); got != "household" {
		t.Errorf("expected directive metadata category=household, got %q", got)
	}
	if len(d.Txn.Postings) != 2 {
		t.Fatalf("expected 2 postings, got %d", len(d.Txn.Postings))
	}
	if got, _ := d.Txn.Postings[0].Metadata.Get("receipt"); got != "scan-001" {
		t.Errorf("expected posting metadata receipt=scan-001, got %q", got)
	}
	if len(d.Txn.Postings[1].Metadata) != 0 {
		t.Errorf("second posting should have no metadata, got %v", d.Txn.Postings[1].Metadata)
	}
}

func TestParse_Posting_InferredAmount(t *testing.T) {
	d := parseOne(t, `2024-01-15 * "Store" ""
  Expenses:Food  85.30 USD
  Assets:Checking`)

	p := d.Txn.Postings[1]
	if p.Account != "Assets:Checking" {
		t.Errorf("expected account, got %q", p.Account)
	}
	if p.Amount != nil {
		t.Errorf("inferred leg should have nil amount, got %v", p.Amount)
	}
}

func TestParse_Posting_CostAndPrice(t *testing.T) {
	d := parseOne(t, `2024-01-15 * "Broker" "Buy shares"
  Assets:Brokerage  10 AAPL {150.00 USD, 2024-01-15, "lot-a"} @ 155.00 USD
  Assets:Checking  -1550.00 USD`)

	p := d.Txn.Postings[0]
	if p.Amount == nil || p.Amount.Number.String() != "10" || p.Amount.Currency != "AAPL" {
		t.Fatalf("expected 10 AAPL, got %v", p.Amount)
	}
	if p.Cost == nil {
		t.Fatal("expected a cost annotation")
	}
	if p.Cost.Number == nil || FormatNumber(*p.Cost.Number) != "150.00" || p.Cost.Currency != "USD" {
		t.Errorf("expected cost 150.00 USD, got %+v", p.Cost)
	}
	if p.Cost.Date != "2024-01-15" || p.Cost.Label != "lot-a" {
		t.Errorf("expected cost date and label, got %+v", p.Cost)
	}
	if p.Cost.Total {
		t.Error("single-brace cost should not be total")
	}
	if p.Price == nil || FormatNumber(p.Price.Number) != "155.00" || p.Price.Total {
		t.Errorf("expected per-unit price 155.00 USD, got %+v", p.Price)
	}
}

func TestParse_Posting_TotalCostAndTotalPrice(t *testing.T) {
	d := parseOne(t, `2024-01-15 * "Broker" "Buy shares"
  Assets:Brokerage  10 AAPL {{1500.00 USD}} @@ 1550.00 USD
  Assets:Checking  -1550.00 USD`)

	p := d.Txn.Postings[0]
	if p.Cost == nil || !p.Cost.Total {
		t.Fatalf("expected total cost, got %+v", p.Cost)
	}
	if FormatNumber(*p.Cost.Number) != "1500.00" {
		t.Errorf("expected cost 1500.00, got %s", FormatNumber(*p.Cost.Number))
	}
	if p.Price == nil || !p.Price.Total || FormatNumber(p.Price.Number) != "1550.00" {
		t.Errorf("expected total price 1550.00 USD, got %+v", p.Price)
	}
}

func TestParse_Posting_DateOnlyCost(t *testing.T) {
	d := parseOne(t, `2024-06-01 * "Broker" "Sell lot"
  Assets:Brokerage  -5 AAPL {2024-01-15} @ 160.00 USD
  Assets:Checking  800.00 USD`)

	p := d.Txn.Postings[0]
	if p.Cost == nil || p.Cost.Number != nil || p.Cost.Date != "2024-01-15" {
		t.Errorf("expected date-only lot cost, got %+v", p.Cost)
	}
}

func TestParse_Posting_FlagAndComment(t *testing.T) {
	d := parseOne(t, `2024-01-15 * "Store" ""
  ! Expenses:Food  85.30 USD  ; needs review
  Assets:Checking`)

	p := d.Txn.Postings[0]
	if p.Flag != "!" {
		t.Errorf("expected posting flag !, got %q", p.Flag)
	}
	if p.Comment != "needs review" {
		t.Errorf("expected inline comment, got %q", p.Comment)
	}
	if p.Amount == nil || p.Amount.String() != "85.30 USD" {
		t.Errorf("comment should not disturb the amount, got %v", p.Amount)
	}
}

func TestParse_Posting_CommaSeparatedThousands(t *testing.T) {
	d := parseOne(t, `2024-01-15 * "Employer" "Salary"
  Assets:Checking  1,234.56 USD
  Income:Salary  -1,234.56 USD`)

	p := d.Txn.Postings[0]
	if p.Amount == nil || p.Amount.Number.String() != "1234.56" {
		t.Errorf("expected commas stripped from amount, got %v", p.Amount)
	}
}

func TestParse_Transaction_BadPostingLine_RecordsProblem(t *testing.T) {
	// GIVEN: A continuation line that is neither metadata nor a posting
	// WHEN: Parsing
	// THEN: A problem is recorded and the rest still parses

	lines, _ := SplitLines([]byte(`2024-01-15 * "Store" ""
  not an account line at all
  Assets:Checking  -5.00 USD`))
	d, probs, ok := parseAt(lines, 0)
	if !ok {
		t.Fatal("directive should still parse")
	}
	if len(probs) != 1 {
		t.Fatalf("expected 1 problem, got %d: %v", len(probs), probs)
	}
	if probs[0].Line != 2 {
		t.Errorf("problem should point at line 2, got %d", probs[0].Line)
	}
	if len(d.Txn.Postings) != 1 {
		t.Errorf("valid posting should survive, got %d postings", len(d.Txn.Postings))
	}
}

// =============================================================================
// OTHER DIRECTIVE KINDS
// =============================================================================

func TestParse_Balance_WithTolerance(t *testing.T) {
	d := parseOne(t, "2024-02-01 balance Assets:Checking 1250.00 USD ~ 0.01 USD")

	if d.Kind != KindBalance {
		t.Fatalf("expected balance, got %s", d.Kind)
	}
	b := d.Balance
	if b.Account != "Assets:Checking" {
		t.Errorf("expected account, got %q", b.Account)
	}
	if b.Amount.String() != "1250.00 USD" {
		t.Errorf("expected 1250.00 USD, got %v", b.Amount)
	}
	if b.Tolerance == nil || FormatNumber(*b.Tolerance) != "0.01" {
		t.Errorf("expected tolerance 0.01, got %v", b.Tolerance)
	}
}

func TestParse_Note_QuotedComment(t *testing.T) {
	d := parseOne(t, `2024-02-10 note Assets:Checking "Called bank about the fee"`)

	if d.Kind != KindNote {
		t.Fatalf("expected note, got %s", d.Kind)
	}
	if d.Note.Account != "Assets:Checking" {
		t.Errorf("expected account, got %q", d.Note.Account)
	}
	if d.Note.Comment != "Called bank about the fee" {
		t.Errorf("expected comment, got %q", d.Note.Comment)
	}
}

func TestParse_Pad(t *testing.T) {
	d := parseOne(t, "2024-02-11 pad Assets:Checking Equity:Opening-Balances")

	if d.Kind != KindPad {
		t.Fatalf("expected pad, got %s", d.Kind)
	}
	if d.Pad.Account != "Assets:Checking" || d.Pad.SourceAccount != "Equity:Opening-Balances" {
		t.Errorf("unexpected pad payload: %+v", d.Pad)
	}
}

func TestParse_Open_CurrenciesAndBooking(t *testing.T) {
	d := parseOne(t, `2024-01-01 open Assets:Brokerage USD,AAPL "STRICT"`)

	o := d.Open
	if o.Account != "Assets:Brokerage" {
		t.Errorf("expected account, got %q", o.Account)
	}
	if len(o.Currencies) != 2 || o.Currencies[0] != "USD" || o.Currencies[1] != "AAPL" {
		t.Errorf("expected currencies [USD AAPL], got %v", o.Currencies)
	}
	if o.Booking != "STRICT" {
		t.Errorf("expected booking STRICT, got %q", o.Booking)
	}
}

func TestParse_Commodity_WithMetadata(t *testing.T) {
	d := parseOne(t, `2024-01-01 commodity AAPL
  name: "Apple Inc."
  asset-class: "stock"`)

	if d.Kind != KindCommodity || d.Commodity.Symbol != "AAPL" {
		t.Fatalf("expected commodity AAPL, got %+v", d)
	}
	if got, _ := d.Metadata.Get("name"); got != "Apple Inc." {
		t.Errorf("expected commodity metadata, got %v", d.Metadata)
	}
}

func TestParse_UnrecognizedHeader_Skipped(t *testing.T) {
	lines, _ := SplitLines([]byte("2024-01-01 price AAPL 150.00 USD"))
	if _, _, ok := parseAt(lines, 0); ok {
		t.Error("price directives are not indexed and should not parse")
	}
}

// =============================================================================
// RENDER / ROUND TRIP
// =============================================================================

func TestRender_Transaction_CanonicalForm(t *testing.T) {
	d := &Directive{
		Kind: KindTransaction,
		Date: mustDate(t, "2024-01-15"),
		Metadata: Metadata{
			{Key: "category", Value: "household"},
		},
		Txn: &Transaction{
			Flag:      "*",
			Payee:     "Grocery Store",
			Narration: "Weekly shopping",
			Tags:      []string{"food"},
			Postings: []Posting{
				{Account: "Expenses:Food", Amount: &Amount{Number: dec(t, "85.30"), Currency: "USD"}},
				{Account: "Assets:Checking"},
			},
		},
	}

	lines, err := Render(d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{
		`2024-01-15 * "Grocery Store" "Weekly shopping" #food`,
		`  category: "household"`,
		`  Expenses:Food  85.30 USD`,
		`  Assets:Checking`,
	}
	if strings.Join(lines, "\n") != strings.Join(want, "\n") {
		t.Errorf("rendered form mismatch:\ngot:\n%s\nwant:\n%s",
			strings.Join(lines, "\n"), strings.Join(want, "\n"))
	}
}

func TestRender_Transaction_PayeeWithoutNarration_KeepsEmptySlot(t *testing.T) {
	d := &Directive{
		Kind: KindTransaction,
		Date: mustDate(t, "2024-01-15"),
		Txn: &Transaction{
			Flag:  "*",
			Payee: "Landlord",
			Postings: []Posting{
				{Account: "Expenses:Rent", Amount: &Amount{Number: dec(t, "900"), Currency: "USD"}},
				{Account: "Assets:Checking"},
			},
		},
	}

	lines, err := Render(d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lines[0] != `2024-01-15 * "Landlord" ""` {
		t.Errorf("payee without narration should keep the empty slot, got %q", lines[0])
	}
}

func TestRender_Balance_WithTolerance(t *testing.T) {
	tol := dec(t, "0.01")
	d := &Directive{
		Kind: KindBalance,
		Date: mustDate(t, "2024-02-01"),
		Balance: &Balance{
			Account:   "Assets:Checking",
			Amount:    Amount{Number: dec(t, "1250.00"), Currency: "USD"},
			Tolerance: &tol,
		},
	}

	lines, err := Render(d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lines[0] != "2024-02-01 balance Assets:Checking 1250.00 USD ~ 0.01 USD" {
		t.Errorf("unexpected balance line: %q", lines[0])
	}
}

func TestRender_Note_EscapesQuotes(t *testing.T) {
	d := &Directive{
		Kind: KindNote,
		Date: mustDate(t, "2024-02-10"),
		Note: &Note{Account: "Assets:Checking", Comment: `the "big" fee`},
	}

	lines, err := Render(d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lines[0] != `2024-02-10 note Assets:Checking "the \"big\" fee"` {
		t.Errorf("unexpected note line: %q", lines[0])
	}

	// And it round-trips.
	back := parseOne(t, lines[0])
	if back.Note.Comment != `the "big" fee` {
		t.Errorf("round trip lost escaping, got %q", back.Note.Comment)
	}
}

func TestRender_ParseRoundTrip_Stable(t *testing.T) {
	// GIVEN: A rendered transaction
	// WHEN: Parsing it and rendering again
	// THEN: The second rendering is identical to the first

	d := &Directive{
		Kind: KindTransaction,
		Date: mustDate(t, "2024-03-20"),
		Txn: &Transaction{
			Flag:      "!",
			Payee:     "Broker",
			Narration: "Buy shares",
			Links:     []string{"trade-9"},
			Postings: []Posting{
				{
					Account: "Assets:Brokerage",
					Amount:  &Amount{Number: dec(t, "10"), Currency: "AAPL"},
					Cost:    &Cost{Number: decPtr(t, "150.00"), Currency: "USD", Label: "lot-a"},
					Price:   &Price{Number: dec(t, "155.00"), Currency: "USD"},
				},
				{Account: "Assets:Checking", Amount: &Amount{Number: dec(t, "-1550.00"), Currency: "USD"}},
			},
		},
	}

	first, err := Render(d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	reparsed, _, ok := parseAt(first, 0)
	if !ok {
		t.Fatalf("rendered output did not parse:\n%s", strings.Join(first, "\n"))
	}
	second, err := Render(reparsed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Join(first, "\n") != strings.Join(second, "\n") {
		t.Errorf("round trip not stable:\nfirst:\n%s\nsecond:\n%s",
			strings.Join(first, "\n"), strings.Join(second, "\n"))
	}
}
