/*
writer.go - Atomic ledger mutations

PURPOSE:
  Applies line-level edits (replace, insert, delete, append) to the ledger
  file. Every mutation follows the same sequence:

    1. back up the current file bytes (failure aborts the mutation)
    2. splice the new lines into the snapshot's arena
    3. write the result to a temp file in the same directory and fsync
    4. rename the temp file over the original

  The rename is the commit point. If it fails the original file is intact
  and the temp file is kept on disk for manual recovery; the error says so.

BACKUPS:
  Named <file>.backup.<YYYYMMDD_HHMMSS>, raw byte copies of the pre-mutation
  file. Backups are never removed unless a retention limit is configured,
  in which case only the most recent ones are kept.

SEE ALSO:
  - index.go: the snapshot arena these edits splice into
  - errors.go: BackupError and RenameError returned from here
*/
package journal

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const backupStamp = "20060102_150405"

// Writer applies atomic mutations to one ledger file.
type Writer struct {
	Path          string
	DisableBackup bool
	MaxBackups    int // keep the newest N backups; 0 keeps all

	now    func() time.Time
	rename func(oldpath, newpath string) error
}

// NewWriter returns a writer for the ledger at path with backups enabled
// and unlimited retention.
func NewWriter(path string) *Writer {
	return &Writer{
		Path:   path,
		now:    time.Now,
		rename: os.Rename,
	}
}

// =============================================================================
// MUTATIONS
// =============================================================================

// Replace swaps the lines of span for the given lines. Returns the backup
// path, empty when backups are disabled.
func (w *Writer) Replace(snap *Snapshot, span LineSpan, lines []string) (string, error) {
	if err := w.checkSpan(snap, span); err != nil {
		return "", err
	}
	backupPath, err := w.backup()
	if err != nil {
		return "", err
	}
	out := make([]string, 0, len(snap.Lines)-span.Len()+len(lines))
	out = append(out, snap.Lines[:span.Start]...)
	out = append(out, lines...)
	out = append(out, snap.Lines[span.End+1:]...)
	return backupPath, w.commit(out, snap.Trailing)
}

// Insert places lines before index at (so at == len appends without a
// separator).
func (w *Writer) Insert(snap *Snapshot, at int, lines []string) (string, error) {
	if at < 0 || at > len(snap.Lines) {
		return "", fmt.Errorf("insert at line %d of %d: %w", at+1, len(snap.Lines), ErrInvalidSpan)
	}
	backupPath, err := w.backup()
	if err != nil {
		return "", err
	}
	out := make([]string, 0, len(snap.Lines)+len(lines))
	out = append(out, snap.Lines[:at]...)
	out = append(out, lines...)
	out = append(out, snap.Lines[at:]...)
	return backupPath, w.commit(out, snap.Trailing)
}

// Delete removes the lines of span. A blank separator line orphaned by the
// removal is collapsed, and blank lines left dangling at the end of the
// file are trimmed, so deleting the last entry never leaves stray
// whitespace behind.
func (w *Writer) Delete(snap *Snapshot, span LineSpan) (string, error) {
	if err := w.checkSpan(snap, span); err != nil {
		return "", err
	}
	backupPath, err := w.backup()
	if err != nil {
		return "", err
	}
	out := make([]string, 0, len(snap.Lines)-span.Len())
	out = append(out, snap.Lines[:span.Start]...)
	out = append(out, snap.Lines[span.End+1:]...)

	at := span.Start
	if at > 0 && at < len(out) && isBlank(out[at-1]) && isBlank(out[at]) {
		out = append(out[:at], out[at+1:]...)
	}
	for len(out) > 0 && isBlank(out[len(out)-1]) {
		out = out[:len(out)-1]
	}

	trailing := snap.Trailing
	if len(out) == 0 {
		trailing = false
	}
	return backupPath, w.commit(out, trailing)
}

// Append adds an entry at the end of the file, separated from existing
// content by one blank line. The file always ends with a newline afterward.
func (w *Writer) Append(snap *Snapshot, lines []string) (string, error) {
	backupPath, err := w.backup()
	if err != nil {
		return "", err
	}
	out := make([]string, 0, len(snap.Lines)+len(lines)+1)
	out = append(out, snap.Lines...)
	if len(out) > 0 && snap.Trailing {
		out = append(out, "")
	}
	out = append(out, lines...)
	return backupPath, w.commit(out, true)
}

func (w *Writer) checkSpan(snap *Snapshot, span LineSpan) error {
	if !span.IsValid() || span.End >= len(snap.Lines) {
		return fmt.Errorf("span %d-%d of %d lines: %w", span.Start+1, span.End+1, len(snap.Lines), ErrInvalidSpan)
	}
	return nil
}

func isBlank(line string) bool {
	return strings.TrimSpace(line) == ""
}

// =============================================================================
// BACKUP
// =============================================================================

// backup copies the current file bytes aside before a mutation touches
// anything. Two mutations in the same second get distinct names.
func (w *Writer) backup() (string, error) {
	if w.DisableBackup {
		return "", nil
	}
	data, err := os.ReadFile(w.Path)
	if err != nil {
		return "", &BackupError{Path: w.Path, Err: err}
	}
	mode := os.FileMode(0o644)
	if info, err := os.Stat(w.Path); err == nil {
		mode = info.Mode().Perm()
	}

	base := fmt.Sprintf("%s.backup.%s", w.Path, w.now().UTC().Format(backupStamp))
	path := base
	for n := 2; fileExists(path); n++ {
		path = fmt.Sprintf("%s_%d", base, n)
	}
	if err := os.WriteFile(path, data, mode); err != nil {
		return "", &BackupError{Path: path, Err: err}
	}
	if w.MaxBackups > 0 {
		w.pruneBackups()
	}
	return path, nil
}

// pruneBackups enforces the retention limit, newest kept. Removal errors
// are ignored; the next mutation retries.
func (w *Writer) pruneBackups() {
	matches, err := filepath.Glob(w.Path + ".backup.*")
	if err != nil || len(matches) <= w.MaxBackups {
		return
	}
	sort.Slice(matches, func(i, j int) bool {
		return backupModTime(matches[i]).Before(backupModTime(matches[j]))
	})
	for _, old := range matches[:len(matches)-w.MaxBackups] {
		_ = os.Remove(old)
	}
}

func backupModTime(path string) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// =============================================================================
// COMMIT
// =============================================================================

// commit writes the new content to a temp file beside the ledger and
// renames it into place. The temp file survives a failed rename.
func (w *Writer) commit(lines []string, trailing bool) error {
	mode := os.FileMode(0o644)
	if info, err := os.Stat(w.Path); err == nil {
		mode = info.Mode().Perm()
	}

	dir := filepath.Dir(w.Path)
	tmp, err := os.CreateTemp(dir, filepath.Base(w.Path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(JoinLines(lines, trailing)); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file %s: %w", tmpPath, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync temp file %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file %s: %w", tmpPath, err)
	}
	if err := os.Chmod(tmpPath, mode); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("chmod temp file %s: %w", tmpPath, err)
	}
	if err := w.rename(tmpPath, w.Path); err != nil {
		return &RenameError{TempPath: tmpPath, Path: w.Path, Err: err}
	}
	return nil
}
