/*
query.go - Query composition and execution

PURPOSE:
  Turns a structured QuerySpec into evaluator query strings, runs them, and
  returns typed, paginated results.

  A single requested kind pushes LIMIT/OFFSET down to the evaluator and
  runs a COUNT companion query concurrently for exact totals. Several kinds
  requested together issue one unbounded query per kind concurrently (the
  evaluator cannot union heterogeneous projections itself), merge the rows
  newest-first, and paginate the merged sequence, so callers see one
  consistent result set either way.

ORDERING:
  Rows sort by date descending. Ties break by kind name, then by the row's
  own key, so pagination is stable across calls.

FAILURE MODES:
  - evaluator rejected the query: QueryError with the tool's own message
  - evaluator exceeded the timeout: QueryError marked timed out, retryable
  - empty or unrecognized output: zero rows, which is not an error

SEE ALSO:
  - rows.go: the per-kind templates and typed rows
  - session.go: the QueryRunner implementation used in production
*/
package beanquery

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/draftmark/journal-engine/journal"
)

// DefaultLimit is the page size when a spec does not set one.
const DefaultLimit = 100

// QuerySpec is a structured filter over ledger records.
type QuerySpec struct {
	// Kinds selects which record kinds to query. Empty means transactions.
	Kinds []journal.Kind

	// StartDate and EndDate bound the directive date, inclusive on both
	// ends. Zero values leave that side unbounded.
	StartDate time.Time
	EndDate   time.Time

	// Account matches against the row's account (evaluator match
	// semantics, so both prefixes and regular expressions work).
	Account string

	// Payee is a substring match on the payee. Only transactions carry a
	// payee; other kinds cannot match and are skipped.
	Payee string

	// Search is a substring match across the kind's text fields: payee or
	// narration for transactions, the comment for notes, the account
	// otherwise.
	Search string

	// Tag requires tag membership. Only transactions carry tags.
	Tag string

	// Limit and Offset paginate the (merged) result. Limit <= 0 means
	// DefaultLimit.
	Limit  int
	Offset int
}

// QueryResult is one page of typed rows plus pagination bookkeeping.
type QueryResult struct {
	Rows          []Row
	TotalCount    int
	ReturnedCount int
	Offset        int
	Limit         int
	HasMore       bool
}

// QueryRunner executes one query string against the ledger. *Session is
// the production implementation; tests substitute their own.
type QueryRunner interface {
	RunQuery(ctx context.Context, query string) (Execution, error)
}

// Engine composes and runs structured queries.
type Engine struct {
	runner QueryRunner
}

// NewEngine returns an engine driving the given runner.
func NewEngine(runner QueryRunner) *Engine {
	return &Engine{runner: runner}
}

// =============================================================================
// COMPOSITION
// =============================================================================

// Compose builds the query string for one kind. With bounded set, LIMIT
// and OFFSET are appended from the spec; the engine's merge path always
// composes unbounded and paginates after merging.
func Compose(kind journal.Kind, spec QuerySpec, bounded bool) (string, error) {
	tpl, ok := templateFor(kind)
	if !ok {
		return "", fmt.Errorf("record kind %q has no query template", kind)
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(tpl.columns, ", "))
	if tpl.table != "" {
		b.WriteString(" FROM ")
		b.WriteString(tpl.table)
	}
	if conds := conditionsFor(kind, spec); len(conds) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conds, " AND "))
	}
	b.WriteString(" ORDER BY date DESC")
	if bounded {
		if spec.Limit > 0 {
			fmt.Fprintf(&b, " LIMIT %d", spec.Limit)
		}
		if spec.Offset > 0 {
			fmt.Fprintf(&b, " OFFSET %d", spec.Offset)
		}
	}
	return b.String(), nil
}

// conditionsFor renders the WHERE clauses a kind can satisfy.
func conditionsFor(kind journal.Kind, spec QuerySpec) []string {
	var conds []string
	if !spec.StartDate.IsZero() {
		conds = append(conds, "date >= "+journal.FormatDate(spec.StartDate))
	}
	if !spec.EndDate.IsZero() {
		conds = append(conds, "date <= "+journal.FormatDate(spec.EndDate))
	}
	if spec.Account != "" {
		conds = append(conds, `account ~ "`+escapeString(spec.Account)+`"`)
	}
	if spec.Payee != "" && kind == journal.KindTransaction {
		conds = append(conds, `payee ~ "`+escapeString(spec.Payee)+`"`)
	}
	if spec.Search != "" {
		esc := escapeString(spec.Search)
		switch kind {
		case journal.KindTransaction:
			conds = append(conds, `(payee ~ "`+esc+`" OR narration ~ "`+esc+`")`)
		case journal.KindNote:
			conds = append(conds, `comment ~ "`+esc+`"`)
		default:
			conds = append(conds, `account ~ "`+esc+`"`)
		}
	}
	if spec.Tag != "" && kind == journal.KindTransaction {
		conds = append(conds, `"`+escapeString(spec.Tag)+`" IN tags`)
	}
	return conds
}

// composeCount builds the row-count companion for a kind and spec: same
// FROM and WHERE, no ordering, no bounds.
func composeCount(kind journal.Kind, spec QuerySpec) string {
	tpl, _ := templateFor(kind)
	var b strings.Builder
	b.WriteString("SELECT COUNT(date)")
	if tpl.table != "" {
		b.WriteString(" FROM ")
		b.WriteString(tpl.table)
	}
	if conds := conditionsFor(kind, spec); len(conds) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conds, " AND "))
	}
	return b.String()
}

// parseCount extracts the single integer a COUNT query prints, skipping a
// header line if present. Returns -1 when no integer is found.
func parseCount(raw string) int {
	count := -1
	for _, line := range strings.Split(raw, "\n") {
		line = strings.Trim(strings.TrimSpace(line), `"`)
		if line == "" {
			continue
		}
		if n, err := strconv.Atoi(line); err == nil {
			count = n
		}
	}
	return count
}

// escapeString protects quotes and backslashes inside query string
// literals so user text cannot break out of them.
func escapeString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}

// effectiveKinds resolves, deduplicates, and filters the requested kinds.
// Kinds that cannot satisfy a present transaction-only filter (payee, tag)
// are dropped rather than queried for rows they can never produce.
func (spec QuerySpec) effectiveKinds() []journal.Kind {
	kinds := spec.Kinds
	if len(kinds) == 0 {
		kinds = []journal.Kind{journal.KindTransaction}
	}
	seen := make(map[journal.Kind]bool, len(kinds))
	out := make([]journal.Kind, 0, len(kinds))
	for _, k := range kinds {
		if seen[k] {
			continue
		}
		seen[k] = true
		if _, ok := templateFor(k); !ok {
			continue
		}
		if (spec.Tag != "" || spec.Payee != "") && k != journal.KindTransaction {
			continue
		}
		out = append(out, k)
	}
	return out
}

// =============================================================================
// EXECUTION
// =============================================================================

// Query runs the spec and returns one paginated page.
func (e *Engine) Query(ctx context.Context, spec QuerySpec) (*QueryResult, error) {
	limit := spec.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	offset := spec.Offset
	if offset < 0 {
		offset = 0
	}

	kinds := spec.effectiveKinds()
	if len(kinds) == 0 {
		return &QueryResult{Rows: []Row{}, Offset: offset, Limit: limit}, nil
	}
	if len(kinds) == 1 {
		return e.querySingle(ctx, kinds[0], spec, limit, offset)
	}
	return e.queryMerged(ctx, kinds, spec, limit, offset)
}

// querySingle pushes pagination down to the evaluator and runs the COUNT
// companion concurrently for the exact total.
func (e *Engine) querySingle(ctx context.Context, kind journal.Kind, spec QuerySpec, limit, offset int) (*QueryResult, error) {
	tpl, _ := templateFor(kind)
	bounded := spec
	bounded.Limit, bounded.Offset = limit, offset
	pageQuery, err := Compose(kind, bounded, true)
	if err != nil {
		return nil, err
	}
	countQuery := composeCount(kind, spec)

	var rows []Row
	total := -1
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		out, err := e.run(gctx, pageQuery)
		if err != nil {
			return err
		}
		rows = decodeRows(out.Stdout, tpl)
		return nil
	})
	g.Go(func() error {
		out, err := e.run(gctx, countQuery)
		if err != nil {
			return err
		}
		total = parseCount(out.Stdout)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// An unreadable count degrades to page-derived bounds rather than
	// failing a query whose rows arrived fine.
	if total < offset+len(rows) {
		total = offset + len(rows)
	}
	return &QueryResult{
		Rows:          rows,
		TotalCount:    total,
		ReturnedCount: len(rows),
		Offset:        offset,
		Limit:         limit,
		HasMore:       offset+len(rows) < total,
	}, nil
}

// queryMerged issues one unbounded query per kind, merges newest-first,
// and paginates the merged sequence.
func (e *Engine) queryMerged(ctx context.Context, kinds []journal.Kind, spec QuerySpec, limit, offset int) (*QueryResult, error) {
	perKind := make([][]Row, len(kinds))
	g, gctx := errgroup.WithContext(ctx)
	for i, kind := range kinds {
		i, kind := i, kind
		g.Go(func() error {
			tpl, _ := templateFor(kind)
			query, err := Compose(kind, spec, false)
			if err != nil {
				return err
			}
			out, err := e.run(gctx, query)
			if err != nil {
				return err
			}
			perKind[i] = decodeRows(out.Stdout, tpl)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var merged []Row
	for _, rows := range perKind {
		merged = append(merged, rows...)
	}
	sortRows(merged)

	total := len(merged)
	page := paginate(merged, offset, limit)
	return &QueryResult{
		Rows:          page,
		TotalCount:    total,
		ReturnedCount: len(page),
		Offset:        offset,
		Limit:         limit,
		HasMore:       offset+len(page) < total,
	}, nil
}

// RunRaw executes a caller-written query string and returns the raw
// delimited output for direct display.
func (e *Engine) RunRaw(ctx context.Context, query string) (string, error) {
	out, err := e.run(ctx, query)
	if err != nil {
		return "", err
	}
	return out.Stdout, nil
}

// run executes one query and classifies the outcome.
func (e *Engine) run(ctx context.Context, query string) (Execution, error) {
	out, err := e.runner.RunQuery(ctx, query)
	if out.TimedOut {
		return out, &QueryError{Query: query, TimedOut: true}
	}
	if err != nil {
		return out, err
	}
	if out.ExitCode != 0 {
		return out, &QueryError{Query: query, ExitCode: out.ExitCode, Stderr: out.Stderr}
	}
	return out, nil
}

// sortRows orders rows date-descending with a deterministic tie-break by
// kind name, then row key.
func sortRows(rows []Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		di, dj := rows[i].RowDate(), rows[j].RowDate()
		if !di.Equal(dj) {
			return di.After(dj)
		}
		ki, kj := rows[i].RowKind(), rows[j].RowKind()
		if ki != kj {
			return ki < kj
		}
		return rows[i].RowKey() < rows[j].RowKey()
	})
}

func paginate(rows []Row, offset, limit int) []Row {
	if offset >= len(rows) {
		return []Row{}
	}
	end := offset + limit
	if end > len(rows) {
		end = len(rows)
	}
	return rows[offset:end]
}
