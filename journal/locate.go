/*
locate.go - Directive locator: line hints to verified spans

PURPOSE:
  Given a hinted line number and an expected record kind, verify the hint
  still points at a matching directive header and scan forward over its
  continuation lines (postings, metadata, indented comments) to produce the
  inclusive LineSpan.

CONTRACT:
  A hint that does not match the expected header fails with NotFoundError.
  The locator never guesses: if the file was edited externally since the
  hint was produced, the caller re-resolves against a fresh snapshot.

CONTINUATION RULES:
  A line continues the directive above it when it starts with a space or a
  tab and is not blank. Blank lines, whitespace-only lines, and lines
  starting at column 0 end the span. The last directive in the file simply
  ends at end-of-file; adjacent directives with no blank separator are
  split by the column-0 rule.

SEE ALSO:
  - index.go: walks whole files with the same header/continuation rules
  - writer.go: consumes verified spans
*/
package journal

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// =============================================================================
// HEADER DETECTION
// =============================================================================

// headerPattern matches a directive header: a civil date at column 0
// followed by a flag or keyword and the rest of the line.
var headerPattern = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})\s+(\S+)\s*(.*)$`)

// header is a decoded directive header line.
type header struct {
	date   time.Time
	kind   Kind
	marker string // the flag or keyword token as written
	rest   string // text after the marker
}

// headerAt inspects lines[i] and, when it is a directive header of a kind
// this subsystem indexes, decodes it.
func headerAt(lines []string, i int) (header, bool) {
	m := headerPattern.FindStringSubmatch(lines[i])
	if m == nil {
		return header{}, false
	}
	date, err := ParseDate(m[1])
	if err != nil {
		return header{}, false
	}
	kind, ok := kindForMarker(m[2])
	if !ok {
		return header{}, false
	}
	return header{date: date, kind: kind, marker: m[2], rest: m[3]}, true
}

// kindForMarker maps the token after the date to a record kind. Directive
// keywords this subsystem does not manage (price, event, document, ...)
// report false and their lines are left untouched by every operation.
func kindForMarker(marker string) (Kind, bool) {
	switch marker {
	case "*", "!", "txn":
		return KindTransaction, true
	case "balance":
		return KindBalance, true
	case "note":
		return KindNote, true
	case "pad":
		return KindPad, true
	case "open":
		return KindOpen, true
	case "close":
		return KindClose, true
	case "commodity":
		return KindCommodity, true
	}
	return "", false
}

// isContinuation reports whether line extends the directive above it.
func isContinuation(line string) bool {
	if line == "" || (line[0] != ' ' && line[0] != '\t') {
		return false
	}
	return strings.TrimSpace(line) != ""
}

// =============================================================================
// LOCATOR
// =============================================================================

// Locate verifies that lines[hint] is a directive header with the expected
// date and kind and returns the full span including continuation lines. A
// zero date skips the date check.
//
// A mismatch means the file changed since the hint was produced; the error
// unwraps to ErrNotFound so callers can re-resolve and retry.
func Locate(lines []string, hint int, date time.Time, kind Kind) (LineSpan, error) {
	if hint < 0 || hint >= len(lines) {
		return LineSpan{}, &NotFoundError{Kind: kind, Line: hint, Reason: "hinted line is out of range"}
	}
	h, ok := headerAt(lines, hint)
	if !ok {
		return LineSpan{}, &NotFoundError{Kind: kind, Line: hint, Reason: "hinted line is not a directive header"}
	}
	if h.kind != kind {
		return LineSpan{}, &NotFoundError{Kind: kind, Line: hint, Reason: fmt.Sprintf("hinted line holds a %s directive", h.kind)}
	}
	if !date.IsZero() && !h.date.Equal(date) {
		return LineSpan{}, &NotFoundError{Kind: kind, Line: hint,
			Reason: fmt.Sprintf("hinted line is dated %s, expected %s", FormatDate(h.date), FormatDate(date))}
	}
	return LineSpan{Start: hint, End: scanContinuations(lines, hint)}, nil
}

// scanContinuations returns the index of the last continuation line of the
// directive starting at start, or start itself for single-line directives.
func scanContinuations(lines []string, start int) int {
	end := start
	for end+1 < len(lines) && isContinuation(lines[end+1]) {
		end++
	}
	return end
}
