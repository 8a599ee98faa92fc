/*
statistics.go - Ledger statistics for the dashboard header

PURPOSE:
  Cheap aggregate facts about the current file: how many entries of each
  kind, the date range they cover, how many distinct accounts appear, and
  when the index last loaded. Everything comes from the snapshot; the
  evaluator is never involved.
*/
package ledger

import (
	"time"

	"github.com/draftmark/journal-engine/journal"
)

// Statistics summarizes the current ledger file.
type Statistics struct {
	FilePath     string
	TotalEntries int
	ByKind       map[journal.Kind]int
	FirstDate    time.Time // zero when the file has no directives
	LastDate     time.Time
	AccountCount int
	LastLoaded   time.Time
}

// Statistics computes aggregates over the current snapshot.
func (l *Ledger) Statistics() (*Statistics, error) {
	snap, err := l.Snapshot()
	if err != nil {
		return nil, err
	}

	stats := &Statistics{
		FilePath:   l.path,
		ByKind:     make(map[journal.Kind]int),
		LastLoaded: l.LastLoaded(),
	}
	accounts := make(map[string]bool)
	for _, d := range snap.Directives {
		stats.TotalEntries++
		stats.ByKind[d.Kind]++
		for _, a := range d.Accounts() {
			accounts[a] = true
		}
		if stats.FirstDate.IsZero() || d.Date.Before(stats.FirstDate) {
			stats.FirstDate = d.Date
		}
		if d.Date.After(stats.LastDate) {
			stats.LastDate = d.Date
		}
	}
	stats.AccountCount = len(accounts)
	return stats, nil
}
