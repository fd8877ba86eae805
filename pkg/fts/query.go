package fts

import (
	"database/sql"
	"encoding/base64"
	"regexp"
	"strings"
	"unicode"

	"github.com/coregx/ahocorasick"

	"github.com/kittclouds/gokitt/pkg/gknlog"
	"github.com/kittclouds/gokitt/pkg/session"
)

// Op identifies a recognized fulltext/attribute comparison operator.
type Op string

const (
	OpEq           Op = "="
	OpNotEq        Op = "!="
	OpContainsAll  Op = "*=*"
	OpStartsWith   Op = "=*"
	OpEndsWith     Op = "*="
	OpRegex        Op = "%="
)

// MinFTSTokenLength is the trigram tokenizer's minimum useful token
// length; shorter tokens skip FTS entirely.
const MinFTSTokenLength = 3

// DefaultCandidateThreshold is the candidate-set size above which the
// IN filter is skipped and the query relies on the index alone (which
// already excludes protected notes).
const DefaultCandidateThreshold = 5000

// DefaultChunkSize is the max bound-parameter count per IN-filter query.
const DefaultChunkSize = 900

// DefaultSnippetMaxTokens is the default max snippet length.
const DefaultSnippetMaxTokens = 30

// DefaultSnippetTag wraps matched snippet terms.
var DefaultSnippetTag = [2]string{"<b>", "</b>"}

// Highlight locates one matched span within a result column.
type Highlight struct {
	Column string
	Start  int
	Length int
}

// Hit is a single FTS match.
type Hit struct {
	NoteID     string
	Snippet    string
	Highlights []Highlight
}

// SearchOpts configures a single query-layer call.
type SearchOpts struct {
	CandidateNoteIDs []string // empty/nil means "all eligible notes"
	WantSnippet      bool
	SnippetTag       [2]string
	SnippetMaxTokens int
	CandidateThreshold int
	ChunkSize          int
}

func (o SearchOpts) threshold() int {
	if o.CandidateThreshold > 0 {
		return o.CandidateThreshold
	}
	return DefaultCandidateThreshold
}

func (o SearchOpts) chunkSize() int {
	if o.ChunkSize > 0 {
		return o.ChunkSize
	}
	return DefaultChunkSize
}

func (o SearchOpts) snippetMax() int {
	if o.SnippetMaxTokens > 0 {
		return o.SnippetMaxTokens
	}
	return DefaultSnippetMaxTokens
}

func (o SearchOpts) snippetTag() [2]string {
	if o.SnippetTag[0] != "" {
		return o.SnippetTag
	}
	return DefaultSnippetTag
}

// QueryLayer translates token/operator pairs into MATCH/LIKE queries
// over the shared SQLite handle. It is the FTS Query Layer (C3).
type QueryLayer struct {
	db *sql.DB
}

// NewQueryLayer wraps db, shared with Manager and internal/store.Store.
func NewQueryLayer(db *sql.DB) *QueryLayer {
	return &QueryLayer{db: db}
}

// ftsMetaStripper removes FTS query syntax characters that would
// otherwise be interpreted by SQLite's query parser.
var ftsMetaStripper = strings.NewReplacer(`"`, "", "(", "", ")", "", ":", "", "*", "")

// SanitizeToken lowercases tok and strips FTS-meta characters, for use
// outside phrase construction (LIKE patterns, bare MATCH terms).
func SanitizeToken(tok string) string {
	return strings.TrimSpace(ftsMetaStripper.Replace(strings.ToLower(tok)))
}

// likeEscaper escapes LIKE wildcards in a user-supplied token so a
// literal '%', '_', or '\' in the token cannot be misread as a wildcard.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// EscapeLike prepares tok for use inside a LIKE pattern with ESCAPE '\'.
func EscapeLike(tok string) string {
	return likeEscaper.Replace(strings.ToLower(tok))
}

// SearchNotesLike runs a LIKE-based search (operators *=*, =*, *=)
// against notes.title/content, honoring the candidate-set filtering
// rules: skip the IN filter above the threshold, else chunk it.
func (q *QueryLayer) SearchNotesLike(op Op, token string, opts SearchOpts) ([]Hit, error) {
	escaped := EscapeLike(token)
	var pattern string
	switch op {
	case OpStartsWith:
		pattern = escaped + "%"
	case OpEndsWith:
		pattern = "%" + escaped
	default: // OpContainsAll and anything else substring-shaped
		pattern = "%" + escaped + "%"
	}

	base := `SELECT n.note_id FROM notes n
		LEFT JOIN blobs b ON b.blob_id = n.blob_id
		WHERE n.is_deleted = 0 AND n.is_protected = 0
		  AND (LOWER(n.title) LIKE ? ESCAPE '\' OR LOWER(COALESCE(b.content,'')) LIKE ? ESCAPE '\')`

	return q.runChunkedIDQuery(base, []any{pattern, pattern}, opts)
}

func (q *QueryLayer) runChunkedIDQuery(base string, args []any, opts SearchOpts) ([]Hit, error) {
	ids := opts.CandidateNoteIDs
	if len(ids) == 0 || len(ids) > opts.threshold() {
		rows, err := q.db.Query(base, args...)
		if err != nil {
			return nil, &QueryError{Op: "like", Recoverable: true, Err: err}
		}
		defer rows.Close()
		var out []Hit
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return nil, err
			}
			out = append(out, Hit{NoteID: id})
		}
		return out, rows.Err()
	}

	var out []Hit
	chunkSize := opts.chunkSize()
	for start := 0; start < len(ids); start += chunkSize {
		end := start + chunkSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",")
		sqlText := base + " AND n.note_id IN (" + placeholders + ")"
		chunkArgs := append(append([]any(nil), args...), toAnySlice(chunk)...)
		rows, err := q.db.Query(sqlText, chunkArgs...)
		if err != nil {
			return nil, &QueryError{Op: "like-chunk", Recoverable: true, Err: err}
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, err
			}
			out = append(out, Hit{NoteID: id})
		}
		rows.Close()
	}
	return out, nil
}

func toAnySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// wordBoundaryPattern compiles a case-insensitive whole-phrase matcher
// with word boundaries, used to post-filter MATCH false positives from
// the trigram tokenizer (e.g. "test123" matching a "test1234" phrase
// query).
func wordBoundaryPattern(phrase string) (*regexp.Regexp, error) {
	return regexp.Compile(`(?i)\b` + regexp.QuoteMeta(phrase) + `\b`)
}

// SearchNotesPhrase runs a phrase MATCH query for '=' / '!=' and
// post-filters hits by scanning title/content for the phrase with word
// boundaries. tokens shorter than MinFTSTokenLength are the caller's
// responsibility to detect before calling this (eval's
// evalContentFulltext does so).
func (q *QueryLayer) SearchNotesPhrase(phrase string, negate bool, opts SearchOpts) ([]Hit, error) {
	matchQuery := `"` + strings.ReplaceAll(phrase, `"`, `""`) + `"`

	base := `SELECT n.note_id, n.title, COALESCE(b.content,'') FROM notes_fts f
		JOIN notes n ON n.note_id = f.note_id
		LEFT JOIN blobs b ON b.blob_id = n.blob_id
		WHERE f.notes_fts MATCH ?`
	args := []any{matchQuery}

	ids := opts.CandidateNoteIDs
	withIN := len(ids) > 0 && len(ids) <= opts.threshold()
	if withIN {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
		base += " AND n.note_id IN (" + placeholders + ")"
		args = append(args, toAnySlice(ids)...)
	}

	rows, err := q.db.Query(base, args...)
	if err != nil {
		return nil, &QueryError{Op: string(OpEq), Recoverable: true, Err: err}
	}
	defer rows.Close()

	re, err := wordBoundaryPattern(phrase)
	if err != nil {
		return nil, &QueryError{Op: string(OpEq), Recoverable: true, Err: err}
	}

	var out []Hit
	for rows.Next() {
		var id, title, content string
		if err := rows.Scan(&id, &title, &content); err != nil {
			return nil, err
		}
		matched := re.MatchString(title) || re.MatchString(content)
		if negate {
			// '!=' is "no content match": a trigram-confirmed hit here
			// means the note DOES contain the phrase, so it's excluded.
			if !matched {
				out = append(out, Hit{NoteID: id})
			}
			continue
		}
		if !matched {
			continue
		}
		h := Hit{NoteID: id}
		if opts.WantSnippet {
			h.Snippet, h.Highlights = extractSnippet(content, phrase, opts.snippetTag(), opts.snippetMax())
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// extractSnippet scans content for the first case-insensitive
// occurrence of phrase and returns a tag-wrapped excerpt with at most
// maxTokens words of context around it, without cutting mid-HTML-tag.
func extractSnippet(content, phrase string, tag [2]string, maxTokens int) (string, []Highlight) {
	lowerContent := strings.ToLower(content)
	lowerPhrase := strings.ToLower(phrase)
	idx := strings.Index(lowerContent, lowerPhrase)
	if idx < 0 {
		return "", nil
	}

	start := idx
	words := 0
	for start > 0 && words < maxTokens/2 {
		prev := start - 1
		for prev > 0 && !unicode.IsSpace(rune(content[prev])) {
			prev--
		}
		start = prev
		words++
	}
	start = skipIntoTagSafe(content, start, -1)

	end := idx + len(phrase)
	words = 0
	for end < len(content) && words < maxTokens-maxTokens/2 {
		next := end
		for next < len(content) && unicode.IsSpace(rune(content[next])) {
			next++
		}
		for next < len(content) && !unicode.IsSpace(rune(content[next])) {
			next++
		}
		if next == end {
			break
		}
		end = next
		words++
	}
	end = skipIntoTagSafe(content, end, 1)

	if start < 0 {
		start = 0
	}
	if end > len(content) {
		end = len(content)
	}
	excerpt := content[start:end]

	relIdx := idx - start
	highlighted := excerpt[:relIdx] + tag[0] + excerpt[relIdx:relIdx+len(phrase)] + tag[1] + excerpt[relIdx+len(phrase):]
	return strings.TrimSpace(highlighted), []Highlight{{Column: "content", Start: idx, Length: len(phrase)}}
}

// skipIntoTagSafe nudges pos to the nearest boundary outside an HTML
// tag, so a snippet cut never lands inside "<...>".
func skipIntoTagSafe(content string, pos, dir int) int {
	if pos < 0 || pos >= len(content) {
		return pos
	}
	if open := strings.LastIndexByte(content[:pos], '<'); open > strings.LastIndexByte(content[:pos], '>') {
		if dir < 0 {
			return open
		}
		if closeAt := strings.IndexByte(content[pos:], '>'); closeAt >= 0 {
			return pos + closeAt + 1
		}
	}
	depth := 0
	for i := pos; i >= 0 && i < len(content); i += dir {
		switch content[i] {
		case '<':
			if dir < 0 {
				return i
			}
			depth++
		case '>':
			if dir > 0 {
				return i + 1
			}
			depth--
		}
		if depth == 0 && i != pos {
			break
		}
	}
	return pos
}

// ContainsAllTokens builds a single Aho-Corasick automaton over tokens
// and reports whether every token occurs in text, scanning text once
// instead of once per token. This is the query layer's equivalent of
// the teacher's implicit-matcher dictionary scanner, generalized from
// entity labels to query tokens.
func ContainsAllTokens(text string, tokens []string) bool {
	if len(tokens) == 0 {
		return true
	}
	builder := ahocorasick.NewTrieBuilder()
	for _, t := range tokens {
		builder.AddString(strings.ToLower(t))
	}
	trie := builder.Build()
	found := make(map[string]bool, len(tokens))
	for _, m := range trie.MatchString(strings.ToLower(text)) {
		found[strings.ToLower(m.MatchString())] = true
	}
	for _, t := range tokens {
		if !found[strings.ToLower(t)] {
			return false
		}
	}
	return true
}

// --- Protected-notes fallback ---

// ProtectedNoteRecord is a single protected, non-deleted note's raw
// (still-encrypted) title envelope and backing blob id.
type ProtectedNoteRecord struct {
	NoteID           string
	TitleEnvelopeB64 string
	BlobID           string
}

// ProtectedStore is the minimal persistence surface the fallback scan
// needs; internal/store.Store implements it.
type ProtectedStore interface {
	ListProtectedNotes() ([]ProtectedNoteRecord, error)
	GetBlobContent(blobID string) ([]byte, error)
}

// SearchProtectedNotesSync scans protected notes in-process, decrypting
// each with snap and applying a substring/phrase check. It returns an
// empty set (not an error) when no session is active, and silently
// skips individual notes whose decryption fails, logging each skip.
func SearchProtectedNotesSync(ps ProtectedStore, snap *session.Snapshot, tokens []string, op Op) ([]Hit, error) {
	if snap == nil || !snap.Active() {
		return nil, nil
	}
	records, err := ps.ListProtectedNotes()
	if err != nil {
		return nil, &QueryError{Op: "protected_scan", Recoverable: false, Err: err}
	}

	var out []Hit
	for _, rec := range records {
		title, ok := decryptB64(snap, rec.TitleEnvelopeB64)
		if !ok {
			gknlog.Warnf("fts: skipping protected note %s: title decryption failed", rec.NoteID)
			continue
		}
		raw, err := ps.GetBlobContent(rec.BlobID)
		if err != nil {
			gknlog.Warnf("fts: skipping protected note %s: blob read failed: %v", rec.NoteID, err)
			continue
		}
		content, err := snap.Decrypt(raw)
		if err != nil {
			gknlog.Warnf("fts: skipping protected note %s: content decryption failed", rec.NoteID)
			continue
		}

		matched := matchProtected(title, string(content), tokens, op)
		if matched {
			out = append(out, Hit{NoteID: rec.NoteID})
		}
	}
	return out, nil
}

func decryptB64(snap *session.Snapshot, b64 string) (string, bool) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return "", false
	}
	plain, err := snap.Decrypt(raw)
	if err != nil {
		return "", false
	}
	return string(plain), true
}

func matchProtected(title, content string, tokens []string, op Op) bool {
	haystack := strings.ToLower(title + " " + content)
	switch op {
	case OpEq:
		return strings.Contains(haystack, strings.ToLower(strings.Join(tokens, " ")))
	case OpNotEq:
		return !strings.Contains(haystack, strings.ToLower(strings.Join(tokens, " ")))
	default:
		return ContainsAllTokens(haystack, tokens)
	}
}
