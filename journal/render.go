/*
render.go - Canonical directive text

PURPOSE:
  Produces the ledger text for a typed Directive: the exact lines the
  writer splices into the file. Formatting is deliberately rigid so that
  created and updated entries always look the same:

    2024-01-15 * "Grocery Store" "Weekly shopping" #food
      category: "household"
      Expenses:Food  85.30 USD
      Assets:Checking

  Two spaces separate an account from its amount, directive metadata is
  indented two spaces, posting metadata four. Quoted strings escape any
  embedded quotes so the output always re-parses to the same values.

SEE ALSO:
  - parse.go: the inverse direction
  - writer.go: splices these lines into the file
*/
package journal

import (
	"fmt"
	"strings"
)

// Render returns the canonical lines for a directive. The directive's Span
// and Lines fields are ignored; only the typed payload matters.
func Render(d *Directive) ([]string, error) {
	switch d.Kind {
	case KindTransaction:
		if d.Txn == nil {
			return nil, fmt.Errorf("render: transaction directive has no payload")
		}
		return renderTransaction(d), nil
	case KindBalance:
		if d.Balance == nil {
			return nil, fmt.Errorf("render: balance directive has no payload")
		}
		return renderBalance(d), nil
	case KindNote:
		if d.Note == nil {
			return nil, fmt.Errorf("render: note directive has no payload")
		}
		return renderNote(d), nil
	case KindPad:
		if d.Pad == nil {
			return nil, fmt.Errorf("render: pad directive has no payload")
		}
		return renderPad(d), nil
	case KindOpen:
		if d.Open == nil {
			return nil, fmt.Errorf("render: open directive has no payload")
		}
		return renderOpen(d), nil
	case KindClose:
		if d.Close == nil {
			return nil, fmt.Errorf("render: close directive has no payload")
		}
		return renderClose(d), nil
	case KindCommodity:
		if d.Commodity == nil {
			return nil, fmt.Errorf("render: commodity directive has no payload")
		}
		return renderCommodity(d), nil
	default:
		return nil, fmt.Errorf("render: unsupported directive kind %q", d.Kind)
	}
}

// =============================================================================
// TRANSACTION
// =============================================================================

func renderTransaction(d *Directive) []string {
	txn := d.Txn
	flag := txn.Flag
	if flag == "" {
		flag = "*"
	}

	// Narration is always quoted, even when empty, so the line re-parses
	// unambiguously. A payee without narration keeps the empty narration
	// slot.
	parts := []string{FormatDate(d.Date), flag, quotedHeader(txn.Payee, txn.Narration)}
	for _, tag := range txn.Tags {
		if clean := strings.TrimLeft(tag, "#"); clean != "" {
			parts = append(parts, "#"+clean)
		}
	}
	for _, link := range txn.Links {
		if clean := strings.TrimLeft(link, "^"); clean != "" {
			parts = append(parts, "^"+clean)
		}
	}

	lines := []string{strings.Join(parts, " ")}
	lines = append(lines, renderMetadata(d.Metadata, "  ")...)

	for i := range txn.Postings {
		p := &txn.Postings[i]
		line := "  "
		if p.Flag != "" {
			line += p.Flag + " "
		}
		line += p.Account
		if p.Amount != nil && p.Amount.Currency != "" {
			line += "  " + FormatNumber(p.Amount.Number) + " " + p.Amount.Currency
			if p.Cost != nil {
				line += " " + renderCost(p.Cost)
			}
			if p.Price != nil {
				sym := "@"
				if p.Price.Total {
					sym = "@@"
				}
				line += fmt.Sprintf(" %s %s %s", sym, FormatNumber(p.Price.Number), p.Price.Currency)
			}
		}
		if p.Comment != "" {
			line += "  ; " + p.Comment
		}
		lines = append(lines, line)
		lines = append(lines, renderMetadata(p.Metadata, "    ")...)
	}
	return lines
}

// quotedHeader renders the payee/narration slot of a transaction header.
func quotedHeader(payee, narration string) string {
	switch {
	case payee != "" && narration != "":
		return `"` + escapeQuotes(payee) + `" "` + escapeQuotes(narration) + `"`
	case payee != "":
		return `"` + escapeQuotes(payee) + `" ""`
	default:
		return `"` + escapeQuotes(narration) + `"`
	}
}

// renderCost formats a cost annotation. Costs with a number use the full
// form; date-only and label-only forms exist for lot matching.
func renderCost(c *Cost) string {
	lb, rb := "{", "}"
	if c.Total {
		lb, rb = "{{", "}}"
	}
	switch {
	case c.Number != nil && c.Currency != "":
		s := lb + FormatNumber(*c.Number) + " " + c.Currency
		if c.Date != "" {
			s += ", " + c.Date
		}
		if c.Label != "" {
			s += `, "` + escapeQuotes(c.Label) + `"`
		}
		return s + rb
	case c.Date != "":
		return "{" + c.Date + "}"
	case c.Label != "":
		return `{"` + escapeQuotes(c.Label) + `"}`
	default:
		return "{}"
	}
}

// =============================================================================
// SINGLE-HEADER KINDS
// =============================================================================

func renderBalance(d *Directive) []string {
	b := d.Balance
	line := fmt.Sprintf("%s balance %s %s %s",
		FormatDate(d.Date), b.Account, FormatNumber(b.Amount.Number), b.Amount.Currency)
	if b.Tolerance != nil {
		line += fmt.Sprintf(" ~ %s %s", FormatNumber(*b.Tolerance), b.Amount.Currency)
	}
	return withMetadata(line, d.Metadata)
}

func renderNote(d *Directive) []string {
	line := fmt.Sprintf("%s note %s \"%s\"",
		FormatDate(d.Date), d.Note.Account, escapeQuotes(d.Note.Comment))
	return withMetadata(line, d.Metadata)
}

func renderPad(d *Directive) []string {
	line := fmt.Sprintf("%s pad %s %s",
		FormatDate(d.Date), d.Pad.Account, d.Pad.SourceAccount)
	return withMetadata(line, d.Metadata)
}

func renderOpen(d *Directive) []string {
	parts := []string{FormatDate(d.Date), "open", d.Open.Account}
	if len(d.Open.Currencies) > 0 {
		parts = append(parts, strings.Join(d.Open.Currencies, ","))
	}
	if d.Open.Booking != "" {
		parts = append(parts, `"`+escapeQuotes(d.Open.Booking)+`"`)
	}
	return withMetadata(strings.Join(parts, " "), d.Metadata)
}

func renderClose(d *Directive) []string {
	line := fmt.Sprintf("%s close %s", FormatDate(d.Date), d.Close.Account)
	return withMetadata(line, d.Metadata)
}

func renderCommodity(d *Directive) []string {
	line := fmt.Sprintf("%s commodity %s", FormatDate(d.Date), d.Commodity.Symbol)
	return withMetadata(line, d.Metadata)
}

// =============================================================================
// SMALL HELPERS
// =============================================================================

func withMetadata(header string, meta Metadata) []string {
	return append([]string{header}, renderMetadata(meta, "  ")...)
}

func renderMetadata(meta Metadata, indent string) []string {
	lines := make([]string, 0, len(meta))
	for _, pair := range meta {
		lines = append(lines, fmt.Sprintf("%s%s: \"%s\"", indent, pair.Key, escapeQuotes(pair.Value)))
	}
	return lines
}

// escapeQuotes protects embedded quotes (and backslashes) so rendered
// strings survive a round trip through the parser.
func escapeQuotes(s string) string {
	if !strings.ContainsAny(s, `"\`) {
		return s
	}
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}
