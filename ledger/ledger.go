/*
ledger.go - The mutation façade

PURPOSE:
  One Ledger per journal file. Mutations (create, update, delete) are
  serialized internally and always follow the same discipline:

    1. build a fresh snapshot from disk (never trust a cached one)
    2. resolve the entry id and re-verify its header at the indexed span
    3. render the replacement text and hand the writer a verified span
    4. rebuild the snapshot and report the entry's new content-derived id

  A stale id fails step 2 with NotFound; the façade re-resolves once
  against another fresh snapshot before giving up, covering the window
  where our own watcher callback has not fired yet.

READS:
  Read paths share a cached snapshot guarded by an RWMutex and rebuilt
  when marked stale (watcher callback) or when the file's modtime/size
  changed. Queries may observe pre- or post-write state; no snapshot
  isolation is promised.

AUDIT:
  Every successful mutation is appended to the audit store. Audit failure
  never fails the mutation; it logs a warning.

SEE ALSO:
  - journal/writer.go: the atomic splice underneath
  - beanquery/query.go: the evaluator-backed query path
  - outcome.go: classification of everything that can go wrong here
*/
package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/draftmark/journal-engine/beanquery"
	"github.com/draftmark/journal-engine/journal"
)

// =============================================================================
// AUDIT CONTRACT
// =============================================================================

// Mutation is one audit record of a successful file mutation.
type Mutation struct {
	ID         string
	EntryID    string
	Kind       string
	Op         string // create, update, delete
	SpanStart  int
	SpanEnd    int
	BackupPath string
	FileHash   string // content hash of the file after the write
	Message    string
	CreatedAt  time.Time
}

// AuditStore persists mutation records append-only. store/sqlite is the
// production implementation; tests may pass nil to skip auditing.
type AuditStore interface {
	RecordMutation(ctx context.Context, m Mutation) error
}

// =============================================================================
// LEDGER
// =============================================================================

// Options configures a Ledger beyond its file path.
type Options struct {
	// DisableBackup skips the pre-mutation backup copy.
	DisableBackup bool

	// MaxBackups keeps only the newest N backups; 0 keeps all.
	MaxBackups int

	// Engine is the evaluator-backed query engine. Nil disables query
	// operations (they fail with ErrQueriesUnavailable).
	Engine *beanquery.Engine

	// Audit receives a record per successful mutation. Nil disables
	// auditing.
	Audit AuditStore
}

// Ledger orchestrates the journal subsystem into per-kind create, update,
// and delete operations plus index- and evaluator-backed reads.
type Ledger struct {
	path   string
	writer *journal.Writer
	engine *beanquery.Engine
	audit  AuditStore

	mu       sync.RWMutex
	snap     *journal.Snapshot
	stale    bool
	loadedAt time.Time
}

// New returns a façade for the journal file at path.
func New(path string, opts Options) *Ledger {
	w := journal.NewWriter(path)
	w.DisableBackup = opts.DisableBackup
	w.MaxBackups = opts.MaxBackups
	return &Ledger{
		path:   path,
		writer: w,
		engine: opts.Engine,
		audit:  opts.Audit,
	}
}

// Path returns the journal file path this façade mutates.
func (l *Ledger) Path() string { return l.path }

// =============================================================================
// SNAPSHOT CACHE
// =============================================================================

// Snapshot returns the current snapshot, rebuilding it when the cache is
// stale or the file changed on disk.
func (l *Ledger) Snapshot() (*journal.Snapshot, error) {
	l.mu.RLock()
	snap, stale := l.snap, l.stale
	l.mu.RUnlock()
	if snap != nil && !stale && !snap.Changed() {
		return snap, nil
	}
	return l.Reload()
}

// Reload drops the cached snapshot and rebuilds from disk.
func (l *Ledger) Reload() (*journal.Snapshot, error) {
	snap, err := journal.BuildSnapshot(l.path)
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.snap = snap
	l.stale = false
	l.loadedAt = time.Now()
	l.mu.Unlock()
	return snap, nil
}

// MarkStale flags the cached snapshot for rebuild on the next read. The
// file watcher calls this on external edits.
func (l *Ledger) MarkStale() {
	l.mu.Lock()
	l.stale = true
	l.mu.Unlock()
}

// LastLoaded reports when the cached snapshot was built.
func (l *Ledger) LastLoaded() time.Time {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.loadedAt
}

// Entry returns one directive by id from the current snapshot.
func (l *Ledger) Entry(id journal.EntryID) (*journal.Directive, error) {
	snap, err := l.Snapshot()
	if err != nil {
		return nil, err
	}
	d, ok := snap.Get(id)
	if !ok {
		return nil, &journal.NotFoundError{ID: id, Line: -1, Reason: "no entry with this id in the current file"}
	}
	return d, nil
}

// =============================================================================
// CREATE
// =============================================================================

// CreateTransaction validates, renders, and appends a transaction.
// Returns the new entry's content-derived id.
func (l *Ledger) CreateTransaction(ctx context.Context, rec TransactionRecord) (journal.EntryID, error) {
	d, err := directiveForTransaction(rec)
	if err != nil {
		return "", err
	}
	return l.create(ctx, d)
}

// CreateBalance validates, renders, and appends a balance assertion.
func (l *Ledger) CreateBalance(ctx context.Context, rec BalanceRecord) (journal.EntryID, error) {
	d, err := directiveForBalance(rec)
	if err != nil {
		return "", err
	}
	return l.create(ctx, d)
}

// CreateNote validates, renders, and appends a note.
func (l *Ledger) CreateNote(ctx context.Context, rec NoteRecord) (journal.EntryID, error) {
	d, err := directiveForNote(rec)
	if err != nil {
		return "", err
	}
	return l.create(ctx, d)
}

// CreatePad validates, renders, and appends a pad directive.
func (l *Ledger) CreatePad(ctx context.Context, rec PadRecord) (journal.EntryID, error) {
	d, err := directiveForPad(rec)
	if err != nil {
		return "", err
	}
	return l.create(ctx, d)
}

// CreateOpen validates, renders, and appends an account open directive.
func (l *Ledger) CreateOpen(ctx context.Context, rec OpenRecord) (journal.EntryID, error) {
	d, err := directiveForOpen(rec)
	if err != nil {
		return "", err
	}
	return l.create(ctx, d)
}

// CreateClose validates, renders, and appends an account close directive.
func (l *Ledger) CreateClose(ctx context.Context, rec CloseRecord) (journal.EntryID, error) {
	d, err := directiveForClose(rec)
	if err != nil {
		return "", err
	}
	return l.create(ctx, d)
}

// create appends a rendered directive at end-of-file, one blank line away
// from existing content.
func (l *Ledger) create(ctx context.Context, d *journal.Directive) (journal.EntryID, error) {
	lines, err := journal.Render(d)
	if err != nil {
		return "", err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	snap, err := journal.BuildSnapshot(l.path)
	if err != nil {
		return "", err
	}
	start := len(snap.Lines)
	if start > 0 && snap.Trailing {
		start++ // the writer's blank separator line
	}

	backupPath, err := l.writer.Append(snap, lines)
	if err != nil {
		return "", err
	}

	after, err := l.refreshLocked()
	if err != nil {
		return "", err
	}
	id, ok := directiveIDAt(after, start)
	if !ok {
		// The appended entry did not index where expected; fall back to
		// the rendered content's own hash.
		id = journal.ComputeID(lines)
	}
	span := journal.LineSpan{Start: start, End: start + len(lines) - 1}
	l.recordMutation(ctx, id, d.Kind, "create", span, backupPath, after)
	return id, nil
}

// =============================================================================
// UPDATE
// =============================================================================

// UpdateTransaction replaces the transaction identified by id. Returns
// the entry's new id (content changed, so the id did too).
func (l *Ledger) UpdateTransaction(ctx context.Context, id journal.EntryID, rec TransactionRecord) (journal.EntryID, error) {
	d, err := directiveForTransaction(rec)
	if err != nil {
		return "", err
	}
	return l.update(ctx, id, d)
}

// UpdateBalance replaces the balance assertion identified by id.
func (l *Ledger) UpdateBalance(ctx context.Context, id journal.EntryID, rec BalanceRecord) (journal.EntryID, error) {
	d, err := directiveForBalance(rec)
	if err != nil {
		return "", err
	}
	return l.update(ctx, id, d)
}

// UpdateNote replaces the note identified by id.
func (l *Ledger) UpdateNote(ctx context.Context, id journal.EntryID, rec NoteRecord) (journal.EntryID, error) {
	d, err := directiveForNote(rec)
	if err != nil {
		return "", err
	}
	return l.update(ctx, id, d)
}

// UpdatePad replaces the pad directive identified by id.
func (l *Ledger) UpdatePad(ctx context.Context, id journal.EntryID, rec PadRecord) (journal.EntryID, error) {
	d, err := directiveForPad(rec)
	if err != nil {
		return "", err
	}
	return l.update(ctx, id, d)
}

// update resolves id against a fresh snapshot (retrying once on a stale
// miss), verifies the span, and replaces it with the rendered directive.
func (l *Ledger) update(ctx context.Context, id journal.EntryID, d *journal.Directive) (journal.EntryID, error) {
	lines, err := journal.Render(d)
	if err != nil {
		return "", err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	snap, cur, err := l.resolveFresh(id, d.Kind)
	if err != nil {
		return "", err
	}

	backupPath, err := l.writer.Replace(snap, cur.Span, lines)
	if err != nil {
		return "", err
	}

	after, err := l.refreshLocked()
	if err != nil {
		return "", err
	}
	newID, ok := directiveIDAt(after, cur.Span.Start)
	if !ok {
		newID = journal.ComputeID(lines)
	}
	span := journal.LineSpan{Start: cur.Span.Start, End: cur.Span.Start + len(lines) - 1}
	l.recordMutation(ctx, newID, d.Kind, "update", span, backupPath, after)
	return newID, nil
}

// =============================================================================
// DELETE
// =============================================================================

// DeleteEntry removes the directive identified by id, whatever its kind.
// A second delete of the same id reports NotFound, never silent success.
func (l *Ledger) DeleteEntry(ctx context.Context, id journal.EntryID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	snap, cur, err := l.resolveFresh(id, "")
	if err != nil {
		return err
	}

	backupPath, err := l.writer.Delete(snap, cur.Span)
	if err != nil {
		return err
	}

	after, err := l.refreshLocked()
	if err != nil {
		return err
	}
	l.recordMutation(ctx, id, cur.Kind, "delete", cur.Span, backupPath, after)
	return nil
}

// =============================================================================
// QUERY DELEGATION
// =============================================================================

// Query runs a structured query through the evaluator engine.
func (l *Ledger) Query(ctx context.Context, spec beanquery.QuerySpec) (*beanquery.QueryResult, error) {
	if l.engine == nil {
		return nil, ErrQueriesUnavailable
	}
	return l.engine.Query(ctx, spec)
}

// RunRaw executes a caller-written query string and returns the raw
// delimited evaluator output.
func (l *Ledger) RunRaw(ctx context.Context, query string) (string, error) {
	if l.engine == nil {
		return "", ErrQueriesUnavailable
	}
	return l.engine.RunRaw(ctx, query)
}

// QueriesEnabled reports whether an evaluator engine is wired in.
func (l *Ledger) QueriesEnabled() bool { return l.engine != nil }

// =============================================================================
// INTERNALS
// =============================================================================

// resolveFresh builds a fresh snapshot and resolves id against it,
// retrying once on a stale miss. Also refreshes the read cache as a side
// effect; both paths run under the write lock.
func (l *Ledger) resolveFresh(id journal.EntryID, kind journal.Kind) (*journal.Snapshot, *journal.Directive, error) {
	snap, err := l.refreshLocked()
	if err != nil {
		return nil, nil, err
	}
	cur, err := snap.Resolve(id, kind)
	if journal.IsNotFound(err) {
		if snap, err = l.refreshLocked(); err != nil {
			return nil, nil, err
		}
		cur, err = snap.Resolve(id, kind)
	}
	if err != nil {
		return nil, nil, err
	}
	return snap, cur, nil
}

// refreshLocked rebuilds the cached snapshot. Caller holds the write
// lock.
func (l *Ledger) refreshLocked() (*journal.Snapshot, error) {
	snap, err := journal.BuildSnapshot(l.path)
	if err != nil {
		return nil, err
	}
	l.snap = snap
	l.stale = false
	l.loadedAt = time.Now()
	return snap, nil
}

// directiveIDAt finds the directive starting at a line in the snapshot.
func directiveIDAt(snap *journal.Snapshot, start int) (journal.EntryID, bool) {
	for _, d := range snap.Directives {
		if d.Span.Start == start {
			return d.ID, true
		}
	}
	return "", false
}

// recordMutation appends an audit record. Never fails the mutation.
func (l *Ledger) recordMutation(ctx context.Context, id journal.EntryID, kind journal.Kind, op string, span journal.LineSpan, backupPath string, after *journal.Snapshot) {
	if l.audit == nil {
		return
	}
	m := Mutation{
		ID:         uuid.NewString(),
		EntryID:    string(id),
		Kind:       string(kind),
		Op:         op,
		SpanStart:  span.Start,
		SpanEnd:    span.End,
		BackupPath: backupPath,
		FileHash:   contentHash(after),
		Message:    fmt.Sprintf("%s %s at lines %d-%d", op, kind, span.Start+1, span.End+1),
		CreatedAt:  time.Now().UTC(),
	}
	if err := l.audit.RecordMutation(ctx, m); err != nil {
		log.Printf("Warning: audit record for %s %s failed: %v", op, id, err)
	}
}

// contentHash is a short hex digest of the snapshot's file content.
func contentHash(snap *journal.Snapshot) string {
	sum := sha256.Sum256(journal.JoinLines(snap.Lines, snap.Trailing))
	return hex.EncodeToString(sum[:])[:16]
}
