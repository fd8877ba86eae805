// Package fts implements the two-tier full-text search layer: the FTS
// Index Manager (C2), which keeps the notes_fts/attributes_fts trigram
// virtual tables in sync with the source tables, and the FTS Query
// Layer (C3), which translates token/operator pairs into MATCH/LIKE
// queries, extracts snippets, and runs the protected-notes fallback.
package fts

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/kittclouds/gokitt/pkg/gknlog"
)

// EligibleTypes is the single source of truth for which note types are
// indexed. The triggers in internal/store's schema must mirror this
// exactly; SyncMissingNotes adds rows for eligible notes they missed.
var EligibleTypes = map[string]bool{
	"text": true, "code": true, "mermaid": true, "canvas": true, "mindMap": true,
}

// Eligible reports whether a note with the given type/deleted/protected
// flags should have an FTS row.
func Eligible(noteType string, isDeleted, isProtected bool) bool {
	return !isDeleted && !isProtected && EligibleTypes[noteType]
}

// IndexStats summarizes the current state of the FTS indexes.
type IndexStats struct {
	TotalDocuments  int
	TotalAttributes int
	IsComplete      bool
}

// Manager owns the two FTS5 virtual tables and keeps them synchronized
// with the notes/blobs/attributes source tables.
type Manager struct {
	db *sql.DB

	mu        sync.Mutex
	available *bool // cached ensure_available result
}

// NewManager wraps db (shared with internal/store.Store, per the
// engine's single-connection concurrency model).
func NewManager(db *sql.DB) *Manager {
	return &Manager{db: db}
}

// EnsureAvailable checks that both FTS virtual tables exist and are
// queryable; the result is cached after the first check.
func (m *Manager) EnsureAvailable() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.available != nil {
		if *m.available {
			return nil
		}
		return &ErrUnavailable{Reason: "cached: notes_fts/attributes_fts not usable"}
	}

	ok := true
	for _, tbl := range []string{"notes_fts", "attributes_fts"} {
		if _, err := m.db.Exec(fmt.Sprintf("SELECT count(*) FROM %s WHERE %s MATCH 'zzz_probe_zzz'", tbl, tbl)); err != nil {
			ok = false
			break
		}
	}
	m.available = &ok
	if !ok {
		return &ErrUnavailable{Reason: "notes_fts/attributes_fts missing or unusable"}
	}
	return nil
}

// SyncMissingNotes inserts rows for every eligible note absent from
// notes_fts, returning the count added. It is idempotent: a second call
// with no intervening writes returns 0 (P2).
func (m *Manager) SyncMissingNotes() (int, error) {
	res, err := m.db.Exec(`
		INSERT INTO notes_fts(note_id, title, content)
		SELECT n.note_id, n.title, COALESCE(b.content, '')
		FROM notes n
		LEFT JOIN blobs b ON b.blob_id = n.blob_id
		WHERE n.is_deleted = 0 AND n.is_protected = 0
		  AND n.type IN ('text','code','mermaid','canvas','mindMap')
		  AND n.note_id NOT IN (SELECT note_id FROM notes_fts)
	`)
	if err != nil {
		return 0, &QueryError{Op: "sync_missing_notes", Recoverable: false, Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	gknlog.Debugf("fts: sync_missing_notes added %d rows", n)
	return int(n), nil
}

// RebuildIndex drops and re-populates notes_fts from scratch using
// bulk-insert tuning (automerge=0, crisismerge=64) followed by optimize.
func (m *Manager) RebuildIndex() error {
	tx, err := m.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM notes_fts`); err != nil {
		return &QueryError{Op: "rebuild_index", Recoverable: false, Err: err}
	}
	if _, err := tx.Exec(`INSERT INTO notes_fts(notes_fts) VALUES('automerge=0')`); err != nil {
		return &QueryError{Op: "rebuild_index", Recoverable: false, Err: err}
	}
	if _, err := tx.Exec(`INSERT INTO notes_fts(notes_fts) VALUES('crisismerge=64')`); err != nil {
		return &QueryError{Op: "rebuild_index", Recoverable: false, Err: err}
	}
	if _, err := tx.Exec(`
		INSERT INTO notes_fts(note_id, title, content)
		SELECT n.note_id, n.title, COALESCE(b.content, '')
		FROM notes n LEFT JOIN blobs b ON b.blob_id = n.blob_id
		WHERE n.is_deleted = 0 AND n.is_protected = 0
		  AND n.type IN ('text','code','mermaid','canvas','mindMap')
	`); err != nil {
		return &QueryError{Op: "rebuild_index", Recoverable: false, Err: err}
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	if _, err := m.db.Exec(`INSERT INTO notes_fts(notes_fts) VALUES('optimize')`); err != nil {
		return &QueryError{Op: "rebuild_index", Recoverable: true, Err: err}
	}
	return nil
}

// UpdateNote re-syncs a single note's FTS row (used when the triggers
// can't express the change, e.g. a bulk import).
func (m *Manager) UpdateNote(noteID string) error {
	if _, err := m.db.Exec(`DELETE FROM notes_fts WHERE note_id = ?`, noteID); err != nil {
		return &QueryError{Op: "update_note", Recoverable: true, Err: err}
	}
	_, err := m.db.Exec(`
		INSERT INTO notes_fts(note_id, title, content)
		SELECT n.note_id, n.title, COALESCE(b.content, '')
		FROM notes n LEFT JOIN blobs b ON b.blob_id = n.blob_id
		WHERE n.note_id = ? AND n.is_deleted = 0 AND n.is_protected = 0
		  AND n.type IN ('text','code','mermaid','canvas','mindMap')
	`, noteID)
	if err != nil {
		return &QueryError{Op: "update_note", Recoverable: true, Err: err}
	}
	return nil
}

// RemoveNote removes a note's FTS row.
func (m *Manager) RemoveNote(noteID string) error {
	_, err := m.db.Exec(`DELETE FROM notes_fts WHERE note_id = ?`, noteID)
	if err != nil {
		return &QueryError{Op: "remove_note", Recoverable: true, Err: err}
	}
	return nil
}

// IndexStats reports document/attribute counts and whether every
// eligible note currently has an FTS row.
func (m *Manager) IndexStats() (IndexStats, error) {
	var stats IndexStats
	if err := m.db.QueryRow(`SELECT count(*) FROM notes_fts`).Scan(&stats.TotalDocuments); err != nil {
		return stats, err
	}
	if err := m.db.QueryRow(`SELECT count(*) FROM attributes_fts`).Scan(&stats.TotalAttributes); err != nil {
		return stats, err
	}
	var missing int
	err := m.db.QueryRow(`
		SELECT count(*) FROM notes n
		WHERE n.is_deleted = 0 AND n.is_protected = 0
		  AND n.type IN ('text','code','mermaid','canvas','mindMap')
		  AND n.note_id NOT IN (SELECT note_id FROM notes_fts)
	`).Scan(&missing)
	if err != nil {
		return stats, err
	}
	stats.IsComplete = missing == 0
	return stats, nil
}
