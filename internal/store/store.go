package store

import (
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/kittclouds/gokitt/pkg/fts"
	"github.com/kittclouds/gokitt/pkg/graph"
)

// Store is the SQLite-backed persistence layer. It owns the only
// *sql.DB handle; writers serialize through mu, matching the teacher's
// SQLiteStore idiom. The FTS layer shares this same handle so triggers
// run inside the same transaction as the source-row write.
type Store struct {
	mu sync.RWMutex
	db *sql.DB
}

// Open creates a Store backed by dsn (":memory:" for an ephemeral
// store, or a file path for a persistent one).
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", dsn, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// DB returns the underlying handle for the FTS layer, which issues its
// own MATCH/LIKE queries and FTS5 config commands against the same
// database and transaction boundary.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// --- Blobs ---

// PutBlob inserts or replaces a blob's content.
func (s *Store) PutBlob(id string, content []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`INSERT INTO blobs(blob_id, content) VALUES (?, ?)
		ON CONFLICT(blob_id) DO UPDATE SET content = excluded.content`, id, content)
	return err
}

// GetBlobContent returns the raw (possibly encrypted) content for blobID.
func (s *Store) GetBlobContent(blobID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var content []byte
	err := s.db.QueryRow(`SELECT content FROM blobs WHERE blob_id = ?`, blobID).Scan(&content)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return content, err
}

// --- Notes ---

// UpsertNote inserts or replaces a note row.
func (s *Store) UpsertNote(n *graph.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`
		INSERT INTO notes(note_id, title, type, mime, is_protected, is_deleted, blob_id,
			date_created, date_modified, utc_date_created, utc_date_modified)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(note_id) DO UPDATE SET
			title = excluded.title, type = excluded.type, mime = excluded.mime,
			is_protected = excluded.is_protected, is_deleted = excluded.is_deleted,
			blob_id = excluded.blob_id, date_created = excluded.date_created,
			date_modified = excluded.date_modified, utc_date_created = excluded.utc_date_created,
			utc_date_modified = excluded.utc_date_modified
	`, n.ID, n.Title, string(n.Type), n.Mime, boolToInt(n.IsProtected), boolToInt(n.IsDeleted),
		n.BlobID, n.DateCreated, n.DateModified, n.UTCDateCreated, n.UTCDateModified)
	return err
}

// DeleteNote removes a note row permanently (hard delete, distinct from
// soft-delete via IsDeleted).
func (s *Store) DeleteNote(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`DELETE FROM notes WHERE note_id = ?`, id)
	return err
}

// --- Branches ---

// UpsertBranch inserts or replaces a branch row.
func (s *Store) UpsertBranch(b *graph.Branch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`
		INSERT INTO branches(branch_id, child_note_id, parent_note_id, note_position, prefix, is_deleted)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(branch_id) DO UPDATE SET
			child_note_id = excluded.child_note_id, parent_note_id = excluded.parent_note_id,
			note_position = excluded.note_position, prefix = excluded.prefix, is_deleted = excluded.is_deleted
	`, b.ID, b.ChildNoteID, b.ParentNoteID, b.NotePosition, b.Prefix, boolToInt(b.IsDeleted))
	return err
}

// --- Attributes ---

// UpsertAttribute inserts or replaces an attribute row.
func (s *Store) UpsertAttribute(a *graph.Attribute) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`
		INSERT INTO attributes(attribute_id, note_id, type, name, value, position, is_inheritable, is_deleted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(attribute_id) DO UPDATE SET
			note_id = excluded.note_id, type = excluded.type, name = excluded.name,
			value = excluded.value, position = excluded.position,
			is_inheritable = excluded.is_inheritable, is_deleted = excluded.is_deleted
	`, a.ID, a.NoteID, string(a.Type), a.Name, a.Value, a.Position, boolToInt(a.IsInheritable), boolToInt(a.IsDeleted))
	return err
}

// ListProtectedNotes returns the still-encrypted title envelope (base64)
// and backing blob id for every protected, non-deleted note. It
// satisfies fts.ProtectedStore for the synchronous protected-notes
// fallback scan; store may import fts since fts only depends on the
// shared *sql.DB handle, not on store itself.
func (s *Store) ListProtectedNotes() ([]fts.ProtectedNoteRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.Query(`
		SELECT note_id, title, blob_id FROM notes
		WHERE is_protected = 1 AND is_deleted = 0
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []fts.ProtectedNoteRecord
	for rows.Next() {
		var rec fts.ProtectedNoteRecord
		if err := rows.Scan(&rec.NoteID, &rec.TitleEnvelopeB64, &rec.BlobID); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// --- Bulk load for Graph Cache hydration ---

// LoadAll returns every note, branch, and attribute row, for the Graph
// Cache's startup bulk load.
func (s *Store) LoadAll() ([]*graph.Note, []*graph.Branch, []*graph.Attribute, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	notes, err := s.loadNotesLocked()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("store: load notes: %w", err)
	}
	branches, err := s.loadBranchesLocked()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("store: load branches: %w", err)
	}
	attrs, err := s.loadAttributesLocked()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("store: load attributes: %w", err)
	}
	return notes, branches, attrs, nil
}

func (s *Store) loadNotesLocked() ([]*graph.Note, error) {
	rows, err := s.db.Query(`
		SELECT note_id, title, type, mime, is_protected, is_deleted, blob_id,
			date_created, date_modified, utc_date_created, utc_date_modified
		FROM notes
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*graph.Note
	for rows.Next() {
		var n graph.Note
		var typ string
		var isProtected, isDeleted int
		if err := rows.Scan(&n.ID, &n.Title, &typ, &n.Mime, &isProtected, &isDeleted, &n.BlobID,
			&n.DateCreated, &n.DateModified, &n.UTCDateCreated, &n.UTCDateModified); err != nil {
			return nil, err
		}
		n.Type = graph.NoteType(typ)
		n.IsProtected = isProtected != 0
		n.IsDeleted = isDeleted != 0
		out = append(out, &n)
	}
	return out, rows.Err()
}

func (s *Store) loadBranchesLocked() ([]*graph.Branch, error) {
	rows, err := s.db.Query(`SELECT branch_id, child_note_id, parent_note_id, note_position, prefix, is_deleted FROM branches`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*graph.Branch
	for rows.Next() {
		var b graph.Branch
		var isDeleted int
		if err := rows.Scan(&b.ID, &b.ChildNoteID, &b.ParentNoteID, &b.NotePosition, &b.Prefix, &isDeleted); err != nil {
			return nil, err
		}
		b.IsDeleted = isDeleted != 0
		out = append(out, &b)
	}
	return out, rows.Err()
}

func (s *Store) loadAttributesLocked() ([]*graph.Attribute, error) {
	rows, err := s.db.Query(`SELECT attribute_id, note_id, type, name, value, position, is_inheritable, is_deleted FROM attributes`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*graph.Attribute
	for rows.Next() {
		var a graph.Attribute
		var typ string
		var isInheritable, isDeleted int
		if err := rows.Scan(&a.ID, &a.NoteID, &typ, &a.Name, &a.Value, &a.Position, &isInheritable, &isDeleted); err != nil {
			return nil, err
		}
		a.Type = graph.AttributeType(typ)
		a.IsInheritable = isInheritable != 0
		a.IsDeleted = isDeleted != 0
		out = append(out, &a)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
