/*
parse.go - Line-oriented directive parsing

PURPOSE:
  Turns the raw lines of one directive span into a typed Directive. The
  parser is deliberately line-oriented, mirroring how the file is treated
  everywhere else in this package: a header line plus indented continuation
  lines, never a full grammar.

LENIENCY:
  Hand-edited files contain oddities. The parser keeps going where it can
  (an unparseable posting amount becomes a nil amount, an unknown header
  keyword is simply not indexed) and records anything suspicious as a
  Problem so validate-only mode can report it. Raw lines are always kept
  verbatim, so a directive that parses imperfectly still round-trips
  untouched unless the caller rewrites it.

SEE ALSO:
  - locate.go: header detection and continuation rules shared with this file
  - render.go: the inverse direction
*/
package journal

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Problem is a non-fatal parsing complaint, reported with 1-based line
// numbers for operator messages.
type Problem struct {
	Line    int
	Message string
}

func (p Problem) String() string {
	return fmt.Sprintf("line %d: %s", p.Line, p.Message)
}

// =============================================================================
// SPAN PARSING
// =============================================================================

var (
	// metadata continuation: lowercase key, colon, optional value
	metaPattern = regexp.MustCompile(`^([a-z][A-Za-z0-9_\-]*):(?:\s+(.*))?$`)
	// account names: capitalized root, colon-separated capitalized segments
	accountPattern = regexp.MustCompile(`^[A-Z][A-Za-z0-9\-]*(?::[A-Z0-9][A-Za-z0-9\-]*)+$`)
	// amount: signed decimal (commas tolerated) followed by a commodity symbol
	amountPattern = regexp.MustCompile(`^(-?[0-9][0-9,]*(?:\.[0-9]+)?)\s+([A-Z][A-Z0-9'._\-]*)`)
	// cost annotation: {{...}} total form first so the single-brace form
	// does not swallow its braces
	costPattern = regexp.MustCompile(`\{\{([^}]*)\}\}|\{([^}]*)\}`)
	// price annotation: @@ total form first for the same reason
	pricePattern = regexp.MustCompile(`@@\s*(-?[0-9][0-9,]*(?:\.[0-9]+)?)\s+([A-Z][A-Z0-9'._\-]*)|@\s*(-?[0-9][0-9,]*(?:\.[0-9]+)?)\s+([A-Z][A-Z0-9'._\-]*)`)
	datePattern  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// parseAt decodes the directive starting at lines[start]. ok is false when
// the line is not a header of an indexed kind; the caller skips it.
func parseAt(lines []string, start int) (d *Directive, probs []Problem, ok bool) {
	h, ok := headerAt(lines, start)
	if !ok {
		return nil, nil, false
	}
	span := LineSpan{Start: start, End: scanContinuations(lines, start)}
	raw := make([]string, span.Len())
	copy(raw, lines[span.Start:span.End+1])

	d = &Directive{
		Kind:  h.kind,
		Date:  h.date,
		Span:  span,
		Lines: raw,
	}

	switch h.kind {
	case KindTransaction:
		probs = parseTransaction(d, h, raw)
	case KindBalance:
		probs = parseBalance(d, h, raw)
	case KindNote:
		probs = parseNote(d, h, raw)
	case KindPad:
		probs = parsePad(d, h, raw)
	case KindOpen:
		probs = parseOpen(d, h, raw)
	case KindClose:
		probs = parseClose(d, h, raw)
	case KindCommodity:
		probs = parseCommodity(d, h, raw)
	}
	return d, probs, true
}

// =============================================================================
// TRANSACTION
// =============================================================================

func parseTransaction(d *Directive, h header, raw []string) []Problem {
	var probs []Problem

	txn := &Transaction{Flag: h.marker}
	if txn.Flag == "txn" {
		txn.Flag = "*"
	}
	txn.Payee, txn.Narration, txn.Tags, txn.Links = parseTransactionHeader(h.rest)

	// Continuations: directive metadata before the first posting, postings,
	// posting metadata after a posting, indented comments ignored.
	for i := 1; i < len(raw); i++ {
		line := raw[i]
		trimmed := strings.TrimSpace(line)
		fileLine := d.Span.Start + i + 1 // 1-based for messages

		if strings.HasPrefix(trimmed, ";") {
			continue
		}
		if m := metaPattern.FindStringSubmatch(trimmed); m != nil {
			pair := MetaPair{Key: m[1], Value: unquote(strings.TrimSpace(m[2]))}
			if len(txn.Postings) == 0 {
				d.Metadata = append(d.Metadata, pair)
			} else {
				p := &txn.Postings[len(txn.Postings)-1]
				p.Metadata = append(p.Metadata, pair)
			}
			continue
		}
		posting, err := parsePosting(trimmed)
		if err != nil {
			probs = append(probs, Problem{Line: fileLine, Message: err.Error()})
			continue
		}
		txn.Postings = append(txn.Postings, posting)
	}

	d.Txn = txn
	return probs
}

// parseTransactionHeader splits `"payee" "narration" #tag ^link` into its
// parts. One quoted string means narration only; two mean payee then
// narration. Tags and links may appear in any order after them.
func parseTransactionHeader(rest string) (payee, narration string, tags, links []string) {
	var quoted []string
	i := 0
	for i < len(rest) {
		switch rest[i] {
		case '"':
			s, next := scanQuoted(rest, i)
			quoted = append(quoted, s)
			i = next
		case '#':
			tag, next := scanBareToken(rest, i+1)
			if tag != "" {
				tags = append(tags, tag)
			}
			i = next
		case '^':
			link, next := scanBareToken(rest, i+1)
			if link != "" {
				links = append(links, link)
			}
			i = next
		case ';':
			return finishHeader(quoted, tags, links)
		default:
			i++
		}
	}
	return finishHeader(quoted, tags, links)
}

func finishHeader(quoted, tags, links []string) (string, string, []string, []string) {
	switch len(quoted) {
	case 0:
		return "", "", tags, links
	case 1:
		return "", quoted[0], tags, links
	default:
		return quoted[0], quoted[1], tags, links
	}
}

// scanQuoted reads a double-quoted string starting at rest[start] == '"',
// honoring backslash escapes, and returns the unescaped content and the
// index just past the closing quote.
func scanQuoted(rest string, start int) (string, int) {
	var b strings.Builder
	i := start + 1
	for i < len(rest) {
		c := rest[i]
		if c == '\\' && i+1 < len(rest) {
			b.WriteByte(rest[i+1])
			i += 2
			continue
		}
		if c == '"' {
			return b.String(), i + 1
		}
		b.WriteByte(c)
		i++
	}
	return b.String(), i
}

func scanBareToken(rest string, start int) (string, int) {
	i := start
	for i < len(rest) && rest[i] != ' ' && rest[i] != '\t' {
		i++
	}
	return rest[start:i], i
}

// parsePosting decodes one (already trimmed) posting line:
//
//	[flag] Account [amount currency [cost] [price]] [; comment]
func parsePosting(trimmed string) (Posting, error) {
	var p Posting

	// Inline comment first so its text never confuses the amount scanner.
	if idx := unquotedIndex(trimmed, ';'); idx >= 0 {
		p.Comment = strings.TrimSpace(trimmed[idx+1:])
		trimmed = strings.TrimSpace(trimmed[:idx])
	}

	fields := strings.Fields(trimmed)
	if len(fields) == 0 {
		return p, fmt.Errorf("empty posting line")
	}
	if fields[0] == "*" || fields[0] == "!" {
		p.Flag = fields[0]
		fields = fields[1:]
	}
	if len(fields) == 0 {
		return p, fmt.Errorf("posting has a flag but no account")
	}
	if !accountPattern.MatchString(fields[0]) {
		return p, fmt.Errorf("unrecognized posting line %q", trimmed)
	}
	p.Account = fields[0]

	rest := strings.TrimSpace(strings.Join(fields[1:], " "))
	if rest == "" {
		return p, nil // inferred leg
	}

	if m := amountPattern.FindStringSubmatch(rest); m != nil {
		n, err := parseDecimal(m[1])
		if err != nil {
			return p, fmt.Errorf("bad posting amount %q", m[1])
		}
		p.Amount = &Amount{Number: n, Currency: m[2]}
	}
	if m := costPattern.FindStringSubmatch(rest); m != nil {
		inner, total := m[2], false
		if m[1] != "" || strings.Contains(rest, "{{") {
			inner, total = m[1], true
		}
		cost := parseCost(inner, total)
		p.Cost = &cost
	}
	if m := pricePattern.FindStringSubmatch(rest); m != nil {
		num, ccy, total := m[3], m[4], false
		if m[1] != "" {
			num, ccy, total = m[1], m[2], true
		}
		if n, err := parseDecimal(num); err == nil {
			p.Price = &Price{Number: n, Currency: ccy, Total: total}
		}
	}
	return p, nil
}

// parseCost decodes the inside of a {...} annotation: comma-separated
// number+currency, date, and "label" components in any order.
func parseCost(inner string, total bool) Cost {
	c := Cost{Total: total}
	for _, part := range strings.Split(inner, ",") {
		part = strings.TrimSpace(part)
		switch {
		case part == "":
		case strings.HasPrefix(part, `"`):
			c.Label = unquote(part)
		case datePattern.MatchString(part):
			c.Date = part
		default:
			if m := amountPattern.FindStringSubmatch(part); m != nil {
				if n, err := parseDecimal(m[1]); err == nil {
					num := n
					c.Number = &num
					c.Currency = m[2]
				}
			}
		}
	}
	return c
}

// =============================================================================
// SINGLE-HEADER KINDS
// =============================================================================

func parseBalance(d *Directive, h header, raw []string) []Problem {
	var probs []Problem
	b := &Balance{}
	fields := strings.Fields(h.rest)
	if len(fields) >= 1 {
		b.Account = fields[0]
	}
	if len(fields) >= 3 {
		if n, err := parseDecimal(fields[1]); err == nil {
			b.Amount = Amount{Number: n, Currency: fields[2]}
		} else {
			probs = append(probs, Problem{Line: d.Span.Start + 1, Message: fmt.Sprintf("bad balance amount %q", fields[1])})
		}
	} else {
		probs = append(probs, Problem{Line: d.Span.Start + 1, Message: "balance directive missing amount"})
	}
	// Optional tolerance: ... ~ 0.01 USD
	if len(fields) >= 5 && fields[3] == "~" {
		if n, err := parseDecimal(fields[4]); err == nil {
			b.Tolerance = &n
		}
	}
	d.Balance = b
	d.Metadata = parseTrailingMetadata(raw)
	return probs
}

func parseNote(d *Directive, h header, raw []string) []Problem {
	n := &Note{}
	fields := strings.SplitN(h.rest, " ", 2)
	if len(fields) >= 1 {
		n.Account = strings.TrimSpace(fields[0])
	}
	if len(fields) == 2 {
		n.Comment = unquote(strings.TrimSpace(fields[1]))
	}
	d.Note = n
	d.Metadata = parseTrailingMetadata(raw)
	return nil
}

func parsePad(d *Directive, h header, raw []string) []Problem {
	var probs []Problem
	p := &Pad{}
	fields := strings.Fields(h.rest)
	if len(fields) >= 1 {
		p.Account = fields[0]
	}
	if len(fields) >= 2 {
		p.SourceAccount = fields[1]
	} else {
		probs = append(probs, Problem{Line: d.Span.Start + 1, Message: "pad directive missing source account"})
	}
	d.Pad = p
	d.Metadata = parseTrailingMetadata(raw)
	return probs
}

func parseOpen(d *Directive, h header, raw []string) []Problem {
	o := &Open{}
	fields := strings.Fields(h.rest)
	if len(fields) == 0 {
		d.Open = o
		d.Metadata = parseTrailingMetadata(raw)
		return nil
	}
	o.Account = fields[0]
	for _, f := range fields[1:] {
		if strings.HasPrefix(f, `"`) {
			o.Booking = unquote(f)
			continue
		}
		for _, ccy := range strings.Split(f, ",") {
			if ccy = strings.TrimSpace(ccy); ccy != "" {
				o.Currencies = append(o.Currencies, ccy)
			}
		}
	}
	d.Open = o
	d.Metadata = parseTrailingMetadata(raw)
	return nil
}

func parseClose(d *Directive, h header, raw []string) []Problem {
	c := &Close{}
	if fields := strings.Fields(h.rest); len(fields) >= 1 {
		c.Account = fields[0]
	}
	d.Close = c
	d.Metadata = parseTrailingMetadata(raw)
	return nil
}

func parseCommodity(d *Directive, h header, raw []string) []Problem {
	c := &Commodity{}
	if fields := strings.Fields(h.rest); len(fields) >= 1 {
		c.Symbol = fields[0]
	}
	d.Commodity = c
	d.Metadata = parseTrailingMetadata(raw)
	return nil
}

// parseTrailingMetadata collects `key: "value"` continuation lines for
// directives without postings.
func parseTrailingMetadata(raw []string) Metadata {
	var meta Metadata
	for _, line := range raw[1:] {
		trimmed := strings.TrimSpace(line)
		if m := metaPattern.FindStringSubmatch(trimmed); m != nil {
			meta = append(meta, MetaPair{Key: m[1], Value: unquote(strings.TrimSpace(m[2]))})
		}
	}
	return meta
}

// =============================================================================
// SMALL HELPERS
// =============================================================================

// parseDecimal parses a file number, tolerating thousands separators.
func parseDecimal(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
}

// unquote strips surrounding double quotes and unescapes the content; bare
// strings pass through unchanged.
func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		inner, _ := scanQuoted(s, 0)
		return inner
	}
	return s
}

// unquotedIndex finds the first occurrence of c outside double quotes.
func unquotedIndex(s string, c byte) int {
	inQuote := false
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == '\\' && inQuote:
			i++
		case s[i] == '"':
			inQuote = !inQuote
		case s[i] == c && !inQuote:
			return i
		}
	}
	return -1
}
