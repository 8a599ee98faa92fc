/*
entries.go - Index-backed entry listing

PURPOSE:
  Filtered, paginated listing straight off the directive index, used by
  the REST layer for the journal view. This path never shells out to the
  evaluator: it is the cheap read for "show me my entries", while
  beanquery handles analytical queries.

FILTER SEMANTICS:
  - date bounds are inclusive on both ends
  - account matches as a substring: across postings for transactions,
    against the account field otherwise
  - payee and tag filters apply to transactions only; other kinds cannot
    match them
  - search scans payee, narration, and accounts, plus a note's comment

SEE ALSO:
  - journal/index.go: the snapshot these listings read
  - beanquery/query.go: the evaluator-backed counterpart
*/
package ledger

import (
	"sort"
	"strings"
	"time"

	"github.com/draftmark/journal-engine/journal"
)

// DefaultLimit is the page size when a filter does not set one.
const DefaultLimit = 100

// EntriesFilter selects and paginates directives from the index.
type EntriesFilter struct {
	// Kinds selects which record kinds to list. Empty means the default
	// set (transaction, balance, pad, note).
	Kinds []journal.Kind

	// StartDate and EndDate bound the directive date, inclusive. Zero
	// values leave that side unbounded.
	StartDate time.Time
	EndDate   time.Time

	// Account is a substring match over the entry's accounts.
	Account string

	// Payee is a substring match on the payee (transactions only).
	Payee string

	// Tag requires tag membership (transactions only).
	Tag string

	// Search is a free substring match over the entry's text fields.
	Search string

	// Limit and Offset paginate the filtered sequence. Limit <= 0 means
	// DefaultLimit.
	Limit  int
	Offset int
}

// EntriesPage is one page of directives plus pagination bookkeeping.
type EntriesPage struct {
	Entries       []*journal.Directive
	TotalCount    int
	ReturnedCount int
	Offset        int
	Limit         int
	HasMore       bool
}

// Entries lists directives matching the filter, newest first.
func (l *Ledger) Entries(filter EntriesFilter) (*EntriesPage, error) {
	snap, err := l.Snapshot()
	if err != nil {
		return nil, err
	}

	kinds := filter.Kinds
	if len(kinds) == 0 {
		kinds = journal.DefaultKinds()
	}
	wanted := make(map[journal.Kind]bool, len(kinds))
	for _, k := range kinds {
		wanted[k] = true
	}

	var matched []*journal.Directive
	for _, d := range snap.Directives {
		if wanted[d.Kind] && filter.matches(d) {
			matched = append(matched, d)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Date.After(matched[j].Date)
	})

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	total := len(matched)
	page := matched[min(offset, total):min(offset+limit, total)]
	return &EntriesPage{
		Entries:       page,
		TotalCount:    total,
		ReturnedCount: len(page),
		Offset:        offset,
		Limit:         limit,
		HasMore:       offset+len(page) < total,
	}, nil
}

func (f EntriesFilter) matches(d *journal.Directive) bool {
	if !f.StartDate.IsZero() && d.Date.Before(f.StartDate) {
		return false
	}
	if !f.EndDate.IsZero() && d.Date.After(f.EndDate) {
		return false
	}
	if f.Account != "" && !matchAccount(d, f.Account) {
		return false
	}
	if f.Payee != "" {
		if d.Kind != journal.KindTransaction ||
			!containsFold(d.Txn.Payee, f.Payee) {
			return false
		}
	}
	if f.Tag != "" {
		if d.Kind != journal.KindTransaction || !hasTag(d.Txn.Tags, f.Tag) {
			return false
		}
	}
	if f.Search != "" && !matchSearch(d, f.Search) {
		return false
	}
	return true
}

func matchAccount(d *journal.Directive, account string) bool {
	for _, a := range d.Accounts() {
		if containsFold(a, account) {
			return true
		}
	}
	return false
}

func matchSearch(d *journal.Directive, term string) bool {
	if matchAccount(d, term) {
		return true
	}
	switch d.Kind {
	case journal.KindTransaction:
		return containsFold(d.Txn.Payee, term) || containsFold(d.Txn.Narration, term)
	case journal.KindNote:
		return containsFold(d.Note.Comment, term)
	}
	return false
}

func hasTag(tags []string, tag string) bool {
	tag = strings.TrimPrefix(tag, "#")
	for _, t := range tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
