// Package store provides SQLite-backed persistence for the note search
// engine: notes, blobs, branches, and attributes, plus the two FTS5
// trigram virtual indexes the FTS layer (C2/C3) consults. Adapted from
// the teacher's temporal-note SQLiteStore to this engine's schema.
package store

// schema defines the source tables, the FTS5 trigram virtual tables,
// and the triggers that keep them in sync with the source tables. A
// successful write to notes/blobs/attributes implies the corresponding
// FTS row is updated in the same transaction, before the next query can
// observe the write through the Graph Cache (see spec §5 ordering
// guarantees).
const schema = `
CREATE TABLE IF NOT EXISTS blobs (
    blob_id TEXT PRIMARY KEY,
    content BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS notes (
    note_id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    type TEXT NOT NULL,
    mime TEXT NOT NULL DEFAULT '',
    is_protected INTEGER NOT NULL DEFAULT 0,
    is_deleted INTEGER NOT NULL DEFAULT 0,
    blob_id TEXT NOT NULL,
    date_created TEXT NOT NULL DEFAULT '',
    date_modified TEXT NOT NULL DEFAULT '',
    utc_date_created TEXT NOT NULL DEFAULT '',
    utc_date_modified TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS branches (
    branch_id TEXT PRIMARY KEY,
    child_note_id TEXT NOT NULL,
    parent_note_id TEXT NOT NULL,
    note_position INTEGER NOT NULL DEFAULT 0,
    prefix TEXT NOT NULL DEFAULT '',
    is_deleted INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_branches_child ON branches(child_note_id);
CREATE INDEX IF NOT EXISTS idx_branches_parent ON branches(parent_note_id);

CREATE TABLE IF NOT EXISTS attributes (
    attribute_id TEXT PRIMARY KEY,
    note_id TEXT NOT NULL,
    type TEXT NOT NULL,
    name TEXT NOT NULL,
    value TEXT NOT NULL DEFAULT '',
    position INTEGER NOT NULL DEFAULT 0,
    is_inheritable INTEGER NOT NULL DEFAULT 0,
    is_deleted INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_attributes_note ON attributes(note_id);
CREATE INDEX IF NOT EXISTS idx_attributes_type_name ON attributes(type, name);

-- Trigram full-text indexes. detail=full enables phrase queries, which
-- the FTS query layer needs for the '=' / '!=' operators.
CREATE VIRTUAL TABLE IF NOT EXISTS notes_fts USING fts5(
    note_id UNINDEXED, title, content, tokenize='trigram', detail=full
);

CREATE VIRTUAL TABLE IF NOT EXISTS attributes_fts USING fts5(
    attribute_id UNINDEXED, note_id UNINDEXED, name, value,
    tokenize='trigram', detail=full
);

-- Eligibility mirrors fts.Eligible exactly: type IN (text, code, mermaid,
-- canvas, mindMap), is_deleted=0, is_protected=0. SyncMissingNotes adds
-- rows for eligible notes these triggers missed; it does not remove rows.
CREATE TRIGGER IF NOT EXISTS notes_fts_after_insert AFTER INSERT ON notes
WHEN NEW.is_deleted = 0 AND NEW.is_protected = 0
  AND NEW.type IN ('text','code','mermaid','canvas','mindMap')
BEGIN
  INSERT INTO notes_fts(note_id, title, content)
  SELECT NEW.note_id, NEW.title, COALESCE((SELECT content FROM blobs WHERE blob_id = NEW.blob_id), '');
END;

CREATE TRIGGER IF NOT EXISTS notes_fts_after_update AFTER UPDATE ON notes
BEGIN
  DELETE FROM notes_fts WHERE note_id = OLD.note_id;
  INSERT INTO notes_fts(note_id, title, content)
  SELECT NEW.note_id, NEW.title, COALESCE((SELECT content FROM blobs WHERE blob_id = NEW.blob_id), '')
  WHERE NEW.is_deleted = 0 AND NEW.is_protected = 0
    AND NEW.type IN ('text','code','mermaid','canvas','mindMap');
END;

CREATE TRIGGER IF NOT EXISTS notes_fts_after_delete AFTER DELETE ON notes
BEGIN
  DELETE FROM notes_fts WHERE note_id = OLD.note_id;
END;

-- A blob write can change content for any note referencing it.
CREATE TRIGGER IF NOT EXISTS notes_fts_blob_after_insert AFTER INSERT ON blobs
BEGIN
  DELETE FROM notes_fts WHERE note_id IN (SELECT note_id FROM notes WHERE blob_id = NEW.blob_id);
  INSERT INTO notes_fts(note_id, title, content)
  SELECT note_id, title, NEW.content FROM notes
  WHERE blob_id = NEW.blob_id AND is_deleted = 0 AND is_protected = 0
    AND type IN ('text','code','mermaid','canvas','mindMap');
END;

CREATE TRIGGER IF NOT EXISTS notes_fts_blob_after_update AFTER UPDATE ON blobs
BEGIN
  DELETE FROM notes_fts WHERE note_id IN (SELECT note_id FROM notes WHERE blob_id = NEW.blob_id);
  INSERT INTO notes_fts(note_id, title, content)
  SELECT note_id, title, NEW.content FROM notes
  WHERE blob_id = NEW.blob_id AND is_deleted = 0 AND is_protected = 0
    AND type IN ('text','code','mermaid','canvas','mindMap');
END;

CREATE TRIGGER IF NOT EXISTS attributes_fts_after_insert AFTER INSERT ON attributes
WHEN NEW.is_deleted = 0
BEGIN
  INSERT INTO attributes_fts(attribute_id, note_id, name, value) VALUES (NEW.attribute_id, NEW.note_id, NEW.name, NEW.value);
END;

CREATE TRIGGER IF NOT EXISTS attributes_fts_after_update AFTER UPDATE ON attributes
BEGIN
  DELETE FROM attributes_fts WHERE attribute_id = OLD.attribute_id;
  INSERT INTO attributes_fts(attribute_id, note_id, name, value)
  SELECT NEW.attribute_id, NEW.note_id, NEW.name, NEW.value WHERE NEW.is_deleted = 0;
END;

CREATE TRIGGER IF NOT EXISTS attributes_fts_after_delete AFTER DELETE ON attributes
BEGIN
  DELETE FROM attributes_fts WHERE attribute_id = OLD.attribute_id;
END;
`
