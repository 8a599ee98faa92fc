/*
index.go - Snapshot arena and directive index

PURPOSE:
  Reads the ledger file into an immutable snapshot: the raw lines (the
  arena), every recognized directive with its line span, and an index from
  stable entry IDs to directives. Nothing here mutates the file.

ID STABILITY:
  An entry ID is derived from the directive's own text, not its position,
  so editing an unrelated part of the file never invalidates IDs handed to
  clients. The flip side is intentional: changing a directive changes its
  ID, so a stale ID simply stops resolving instead of silently pointing at
  the wrong lines. Identical directives are disambiguated with an ordinal
  suffix in file order.

REBUILD SEMANTICS:
  Snapshots are cheap and rebuilt whenever the file may have changed.
  Callers never patch a snapshot in place after a mutation; they re-read.

SEE ALSO:
  - parse.go: per-directive decoding used by the walker
  - writer.go: splices lines and leaves re-reading to the caller
*/
package journal

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"
)

// Snapshot is one consistent read of the ledger file.
type Snapshot struct {
	Path     string
	ModTime  time.Time
	Size     int64
	Lines    []string // LF-normalized, no trailing element for the final newline
	Trailing bool     // file ended with a newline
	Problems []Problem

	Directives []*Directive // file order
	byID       map[EntryID]*Directive
}

// =============================================================================
// SNAPSHOT CONSTRUCTION
// =============================================================================

// BuildSnapshot reads and indexes the ledger file at path.
func BuildSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ledger %s: %w", path, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat ledger %s: %w", path, err)
	}
	snap := buildSnapshot(path, data)
	snap.ModTime = info.ModTime()
	snap.Size = info.Size()
	return snap, nil
}

// buildSnapshot indexes raw file content. Split out so tests can feed
// content directly.
func buildSnapshot(path string, data []byte) *Snapshot {
	lines, trailing := SplitLines(data)
	snap := &Snapshot{
		Path:     path,
		Lines:    lines,
		Trailing: trailing,
		byID:     make(map[EntryID]*Directive),
	}

	seen := make(map[EntryID]int)
	i := 0
	for i < len(lines) {
		d, probs, ok := parseAt(lines, i)
		if !ok {
			i++
			continue
		}
		snap.Problems = append(snap.Problems, probs...)

		base := ComputeID(d.Lines)
		seen[base]++
		d.ID = base
		if n := seen[base]; n > 1 {
			d.ID = EntryID(fmt.Sprintf("%s-%d", base, n))
		}
		snap.byID[d.ID] = d
		snap.Directives = append(snap.Directives, d)
		i = d.Span.End + 1
	}
	return snap
}

// SplitLines normalizes CRLF to LF and splits content into lines, reporting
// whether the content ended with a newline. Join the lines with "\n" (plus
// a final "\n" when trailing) to reconstruct the content.
func SplitLines(data []byte) ([]string, bool) {
	raw := strings.ReplaceAll(string(data), "\r\n", "\n")
	trailing := strings.HasSuffix(raw, "\n")
	raw = strings.TrimSuffix(raw, "\n")
	if raw == "" {
		if trailing {
			return []string{""}, true
		}
		return nil, false
	}
	return strings.Split(raw, "\n"), trailing
}

// JoinLines is the inverse of SplitLines.
func JoinLines(lines []string, trailing bool) []byte {
	if len(lines) == 0 {
		return []byte{}
	}
	joined := strings.Join(lines, "\n")
	if trailing {
		joined += "\n"
	}
	return []byte(joined)
}

// ComputeID hashes a directive's raw lines into its base entry ID.
func ComputeID(lines []string) EntryID {
	sum := sha256.Sum256([]byte(strings.Join(lines, "\n")))
	return EntryID(hex.EncodeToString(sum[:])[:16])
}

// =============================================================================
// LOOKUPS
// =============================================================================

// Get returns the directive for an entry ID.
func (s *Snapshot) Get(id EntryID) (*Directive, bool) {
	d, ok := s.byID[id]
	return d, ok
}

// Resolve looks up an entry ID and checks it against the expected kind,
// re-validating the header at the recorded span before anyone writes near
// it. A miss or mismatch is a NotFoundError, never a guess.
func (s *Snapshot) Resolve(id EntryID, kind Kind) (*Directive, error) {
	d, ok := s.byID[id]
	if !ok {
		return nil, &NotFoundError{ID: id, Kind: kind, Reason: "no entry with this id in the current file"}
	}
	if kind != "" && d.Kind != kind {
		return nil, &NotFoundError{ID: id, Kind: kind, Line: d.Span.Start + 1,
			Reason: fmt.Sprintf("entry is a %s, not a %s", d.Kind, kind)}
	}
	if _, err := Locate(s.Lines, d.Span.Start, d.Date, d.Kind); err != nil {
		return nil, err
	}
	return d, nil
}

// ByKind returns directives of one kind in file order.
func (s *Snapshot) ByKind(kind Kind) []*Directive {
	var out []*Directive
	for _, d := range s.Directives {
		if d.Kind == kind {
			out = append(out, d)
		}
	}
	return out
}

// FirstDirectiveDate returns the earliest directive date in the file, used
// as the default date for commodity declarations.
func (s *Snapshot) FirstDirectiveDate() (time.Time, bool) {
	var first time.Time
	found := false
	for _, d := range s.Directives {
		if !found || d.Date.Before(first) {
			first = d.Date
			found = true
		}
	}
	return first, found
}

// CommodityFor finds the commodity declaration for a symbol, if any.
func (s *Snapshot) CommodityFor(symbol string) (*Directive, bool) {
	for _, d := range s.Directives {
		if d.Kind == KindCommodity && d.Commodity != nil && d.Commodity.Symbol == symbol {
			return d, true
		}
	}
	return nil, false
}

// Changed reports whether the file on disk no longer matches this snapshot,
// by modtime and size.
func (s *Snapshot) Changed() bool {
	info, err := os.Stat(s.Path)
	if err != nil {
		return true
	}
	return !info.ModTime().Equal(s.ModTime) || info.Size() != s.Size
}
