/*
commodity.go - Commodity declaration operations

PURPOSE:
  Create and maintain `commodity` directives. Declarations carry their
  attributes (name, logo, precision, ...) as metadata lines, and the UI
  edits those attributes by key, so updates merge rather than replace:
  existing keys are overwritten in place, new keys appended, keys not
  mentioned are left alone.

DATE DEFAULTING:
  A declaration created without a date is dated to the earliest directive
  in the file, so it never post-dates the entries that use the symbol.
  An empty file falls back to today.
*/
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/draftmark/journal-engine/journal"
)

// CreateCommodity appends a commodity declaration with the given metadata
// attributes. Date is optional (YYYY-MM-DD); see the defaulting rule
// above. Rejects symbols already declared.
func (l *Ledger) CreateCommodity(ctx context.Context, symbol string, metadata map[string]string, date string) (journal.EntryID, error) {
	if !commodityPattern.MatchString(symbol) {
		return "", &ValidationError{Kind: "commodity", Problems: []string{
			fmt.Sprintf("symbol %q is not a commodity symbol", symbol)}}
	}
	when, err := checkDate(date)
	if err != nil {
		return "", &ValidationError{Kind: "commodity", Problems: []string{
			fmt.Sprintf("date %q is not YYYY-MM-DD", date)}}
	}

	snap, err := l.Snapshot()
	if err != nil {
		return "", err
	}
	if _, exists := snap.CommodityFor(symbol); exists {
		return "", fmt.Errorf("commodity %s: %w", symbol, ErrDuplicateCommodity)
	}
	if when.IsZero() {
		if first, ok := snap.FirstDirectiveDate(); ok {
			when = first
		} else {
			when = time.Now().UTC().Truncate(24 * time.Hour)
		}
	}

	return l.create(ctx, &journal.Directive{
		Kind:      journal.KindCommodity,
		Date:      when,
		Metadata:  journal.MetadataFromMap(metadata),
		Commodity: &journal.Commodity{Symbol: symbol},
	})
}

// UpdateCommodityMetadata merges metadata keys into an existing
// declaration and replaces its span. Returns the declaration's new id.
func (l *Ledger) UpdateCommodityMetadata(ctx context.Context, symbol string, metadata map[string]string) (journal.EntryID, error) {
	snap, err := l.Snapshot()
	if err != nil {
		return "", err
	}
	cur, ok := snap.CommodityFor(symbol)
	if !ok {
		return "", &journal.NotFoundError{Kind: journal.KindCommodity, Line: -1,
			Reason: fmt.Sprintf("no commodity declaration for %s", symbol)}
	}

	merged := append(journal.Metadata(nil), cur.Metadata...)
	for _, pair := range journal.MetadataFromMap(metadata) {
		merged = merged.Set(pair.Key, pair.Value)
	}

	return l.update(ctx, cur.ID, &journal.Directive{
		Kind:      journal.KindCommodity,
		Date:      cur.Date,
		Metadata:  merged,
		Commodity: &journal.Commodity{Symbol: symbol},
	})
}
