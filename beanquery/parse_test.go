package beanquery

import (
	"testing"

	"github.com/draftmark/journal-engine/journal"
)

// =============================================================================
// RECORD SPLITTING
// =============================================================================

func TestParseRows_DropsHeaderRow(t *testing.T) {
	raw := "date,account,amount\n2024-01-15,Assets:Checking,100.00 USD\n"
	records := ParseRows(raw, []string{"date", "account", "amount"})
	if len(records) != 1 {
		t.Fatalf("expected 1 data record, got %d: %v", len(records), records)
	}
	if records[0][0] != "2024-01-15" {
		t.Errorf("expected data row first, got %v", records[0])
	}
}

func TestParseRows_HeaderIsCaseInsensitive(t *testing.T) {
	raw := "Date,Account,Amount\n2024-01-15,Assets:Checking,100.00 USD\n"
	records := ParseRows(raw, []string{"date", "account", "amount"})
	if len(records) != 1 {
		t.Fatalf("expected header to be dropped, got %d records", len(records))
	}
}

func TestParseRows_SingleRowWithoutHeader(t *testing.T) {
	// Output that is one bare data row still parses as one row.
	raw := "2024-01-15,Assets:Checking,100.00 USD"
	records := ParseRows(raw, []string{"date", "account", "amount"})
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
}

func TestParseRows_EmptyOutput(t *testing.T) {
	for _, raw := range []string{"", "   \n\n  "} {
		if records := ParseRows(raw, []string{"date"}); len(records) != 0 {
			t.Errorf("ParseRows(%q) = %v, want no records", raw, records)
		}
	}
}

func TestParseRows_QuotedFieldWithCommaAndQuote(t *testing.T) {
	raw := "date,payee\n2024-01-15,\"Trader Joe's, \"\"Inc.\"\"\"\n"
	records := ParseRows(raw, []string{"date", "payee"})
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0][1] != `Trader Joe's, "Inc."` {
		t.Errorf("quoted field mangled: %q", records[0][1])
	}
}

func TestParseRows_BlankLinesBetweenRecordsSkipped(t *testing.T) {
	raw := "2024-01-15,Assets:A,1.00 USD\n\n2024-01-16,Assets:B,2.00 USD\n"
	records := ParseRows(raw, []string{"date", "account", "amount"})
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
}

// =============================================================================
// TYPED DECODING
// =============================================================================

func TestDecodeRows_TransactionProjection(t *testing.T) {
	tpl, _ := templateFor(journal.KindTransaction)
	raw := "date,flag,payee,narration,tags,links,account,position\n" +
		"2024-03-15,*,Corner Store,Weekly groceries,\"{trip, food}\",{},Expenses:Food,85.30 USD\n"

	rows := decodeRows(raw, tpl)
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	row, ok := rows[0].(TransactionRow)
	if !ok {
		t.Fatalf("expected TransactionRow, got %T", rows[0])
	}
	if row.Payee != "Corner Store" || row.Narration != "Weekly groceries" {
		t.Errorf("header fields mangled: %+v", row)
	}
	if len(row.Tags) != 2 || row.Tags[0] != "trip" || row.Tags[1] != "food" {
		t.Errorf("expected tags [trip food], got %v", row.Tags)
	}
	if len(row.Links) != 0 {
		t.Errorf("expected no links, got %v", row.Links)
	}
	if row.Amount == nil || row.Amount.String() != "85.30 USD" {
		t.Errorf("amount mangled: %+v", row.Amount)
	}
	if row.RowKind() != journal.KindTransaction {
		t.Errorf("expected transaction kind, got %q", row.RowKind())
	}
}

func TestDecodeRows_MalformedRowDropped(t *testing.T) {
	tpl, _ := templateFor(journal.KindBalance)
	raw := "2024-01-15,Assets:Checking,100.00 USD\nnot-a-date,Assets:Checking,1.00 USD\n"

	rows := decodeRows(raw, tpl)
	if len(rows) != 1 {
		t.Fatalf("expected malformed row dropped, got %d rows", len(rows))
	}
}

func TestDecodeRows_EmptyOutputYieldsZeroRows(t *testing.T) {
	tpl, _ := templateFor(journal.KindNote)
	if rows := decodeRows("", tpl); len(rows) != 0 {
		t.Errorf("expected zero rows for empty output, got %d", len(rows))
	}
}

func TestDecodeRows_UnparseablePositionKeepsRow(t *testing.T) {
	// A held-at-cost position does not fit "number currency"; the row
	// survives with a nil amount rather than vanishing.
	tpl, _ := templateFor(journal.KindTransaction)
	raw := "2024-03-15,*,Broker,Buy,{},{},Assets:Brokerage,\"2 AAPL {500.00 USD}\"\n"

	rows := decodeRows(raw, tpl)
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].(TransactionRow).Amount != nil {
		t.Errorf("expected nil amount for cost position, got %+v", rows[0].(TransactionRow).Amount)
	}
}

func TestSplitSet_Renderings(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"{trip, food}", []string{"trip", "food"}},
		{"trip,food", []string{"trip", "food"}},
		{"{'trip'}", []string{"trip"}},
		{"{}", nil},
		{"", nil},
	}
	for _, tc := range cases {
		got := splitSet(tc.in)
		if len(got) != len(tc.want) {
			t.Errorf("splitSet(%q) = %v, want %v", tc.in, got, tc.want)
			continue
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Errorf("splitSet(%q)[%d] = %q, want %q", tc.in, i, got[i], tc.want[i])
			}
		}
	}
}
