/*
Package sqlite provides the SQLite-backed mutation audit log.

PURPOSE:
  Every successful ledger-file mutation leaves one immutable record here:
  what changed, where it sat in the file, which backup protects it, and
  the file's content hash afterward. The journal file itself stays the
  source of truth; the audit log answers "who wrote what, when".

APPEND-ONLY ENFORCEMENT:
  - No UPDATE statements on the mutations table
  - No DELETE statements on the mutations table
  - A bad entry is corrected by the next mutation, not by editing history

CONCURRENCY:
  Uses sync.RWMutex for thread-safety alongside SQLite's own WAL mode
  (multiple readers, single writer, better crash recovery).

USAGE:
  store, err := sqlite.New("./journal.db")   // ":memory:" for tests
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  lgr := ledger.New(path, ledger.Options{Audit: store})

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - ledger/ledger.go: the façade that appends records here
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/draftmark/journal-engine/ledger"
)

// Store implements ledger.AuditStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Mutations (append-only audit of ledger file writes)
	CREATE TABLE IF NOT EXISTS mutations (
		id TEXT PRIMARY KEY,
		entry_id TEXT NOT NULL,
		entry_kind TEXT NOT NULL,
		operation TEXT NOT NULL,
		span_start INTEGER NOT NULL,
		span_end INTEGER NOT NULL,
		backup_path TEXT,
		file_hash TEXT NOT NULL,
		message TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_mutations_entry
		ON mutations(entry_id);
	CREATE INDEX IF NOT EXISTS idx_mutations_created_at
		ON mutations(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_mutations_operation
		ON mutations(operation);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// AUDIT STORE (ledger.AuditStore interface)
// =============================================================================

// RecordMutation appends one mutation record.
func (s *Store) RecordMutation(ctx context.Context, m ledger.Mutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO mutations
		(id, entry_id, entry_kind, operation, span_start, span_end,
		 backup_path, file_hash, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	created := m.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, query,
		m.ID,
		m.EntryID,
		m.Kind,
		m.Op,
		m.SpanStart,
		m.SpanEnd,
		nullString(m.BackupPath),
		m.FileHash,
		nullString(m.Message),
		created.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to append mutation: %w", err)
	}
	return nil
}

// ListMutations returns the most recent mutations, newest first.
func (s *Store) ListMutations(ctx context.Context, limit int) ([]ledger.Mutation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, entry_id, entry_kind, operation, span_start, span_end,
		       backup_path, file_hash, message, created_at
		FROM mutations
		ORDER BY created_at DESC, id
		LIMIT ?
	`

	return s.queryMutations(ctx, query, limit)
}

// MutationsForEntry returns every recorded mutation of one entry id,
// oldest first.
func (s *Store) MutationsForEntry(ctx context.Context, entryID string) ([]ledger.Mutation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, entry_id, entry_kind, operation, span_start, span_end,
		       backup_path, file_hash, message, created_at
		FROM mutations
		WHERE entry_id = ?
		ORDER BY created_at ASC, id
	`

	return s.queryMutations(ctx, query, entryID)
}

func (s *Store) queryMutations(ctx context.Context, query string, args ...any) ([]ledger.Mutation, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query mutations: %w", err)
	}
	defer rows.Close()

	var mutations []ledger.Mutation
	for rows.Next() {
		m, err := scanMutation(rows)
		if err != nil {
			return nil, err
		}
		mutations = append(mutations, m)
	}

	return mutations, rows.Err()
}

func scanMutation(rows *sql.Rows) (ledger.Mutation, error) {
	var (
		m          ledger.Mutation
		backupPath sql.NullString
		message    sql.NullString
		createdAt  string
	)

	err := rows.Scan(
		&m.ID, &m.EntryID, &m.Kind, &m.Op, &m.SpanStart, &m.SpanEnd,
		&backupPath, &m.FileHash, &message, &createdAt,
	)
	if err != nil {
		return m, fmt.Errorf("failed to scan mutation: %w", err)
	}

	m.BackupPath = backupPath.String
	m.Message = message.String
	m.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)

	return m, nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
