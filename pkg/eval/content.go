package eval

import (
	"regexp"
	"strings"

	"github.com/kittclouds/gokitt/pkg/fts"
	"github.com/kittclouds/gokitt/pkg/graph"
	"github.com/kittclouds/gokitt/pkg/query"
	"github.com/kittclouds/gokitt/pkg/searchctx"
)

func (e *Evaluator) evalPropertyComparison(n query.PropertyComparisonExpr, input graph.NoteSet, ctx *searchctx.Context) graph.NoteSet {
	out := graph.NewNoteSet()

	if countFn, ok := numericProperties[n.Property]; ok {
		target, okNum := parseFloat(n.Value)
		for _, id := range input.IDs() {
			if !okNum {
				continue
			}
			if numericCompare(float64(countFn(e.Cache, id)), n.Op, target) {
				out.Add(id, input.Score(id))
			}
		}
		return out
	}

	for _, id := range input.IDs() {
		note := e.Cache.GetNote(id)
		if note == nil {
			// Dangling reference: invariant 3 says treat as non-matching,
			// never crash.
			continue
		}

		var field string
		switch n.Property {
		case "title":
			field = note.Title
		case "type":
			field = string(note.Type)
		case "mime":
			field = note.Mime
		case "dateCreated":
			field = note.DateCreated
		case "dateModified":
			field = note.UTCDateModified
		case "content":
			field = e.blobText(note)
		default:
			continue
		}

		if !matchString(field, n.Op, n.Value, ctx) {
			continue
		}

		score := input.Score(id)
		switch n.Property {
		case "title":
			score += titleScore(field, strings.Fields(n.Value))
		case "content":
			score += contentTokenScore(field, strings.Fields(n.Value))
		default:
			score += attrMatchScore
		}
		out.Add(id, score)
	}
	return out
}

// htmlTagPattern drives blobText's lightweight HTML-stripping, used
// only on text/html blobs under the 20KB bound §4.5 names.
var htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

const htmlStripSizeLimit = 20 * 1024

// blobText resolves a note's decoded content for in-memory scanning:
// decrypts via the session snapshot when protected, strips HTML tags
// for small text/html blobs, and returns "" (not an error) on any
// failure, since a dangling/unreadable blob must not crash evaluation.
func (e *Evaluator) blobText(note *graph.Note) string {
	if e.Blobs == nil || note.BlobID == "" {
		return ""
	}
	raw, err := e.Blobs.GetBlobContent(note.BlobID)
	if err != nil || raw == nil {
		return ""
	}

	if note.IsProtected {
		if e.Session == nil || !e.Session.Active() {
			return ""
		}
		plain, err := e.Session.Decrypt(raw)
		if err != nil {
			return ""
		}
		raw = plain
	}

	text := string(raw)
	if note.Mime == "text/html" && len(text) < htmlStripSizeLimit {
		text = htmlTagPattern.ReplaceAllString(text, " ")
	}
	return text
}

func contentTokenScore(content string, tokens []string) float64 {
	score := 0.0
	lower := strings.ToLower(content)
	for _, t := range tokens {
		if !isScorableToken(t) {
			continue
		}
		occ := strings.Count(lower, strings.ToLower(t))
		if occ == 0 {
			continue
		}
		score += 10.0
		extra := 5.0 * float64(occ-1)
		if extra > 25.0 {
			extra = 25.0
		}
		score += extra
	}
	return score
}

// toFTSOp maps the fulltext-relevant subset of query.Op onto fts.Op.
func toFTSOp(op query.Op) (fts.Op, bool) {
	switch op {
	case query.OpEq:
		return fts.OpEq, true
	case query.OpNotEq:
		return fts.OpNotEq, true
	case query.OpContainsAll:
		return fts.OpContainsAll, true
	case query.OpStartsWith:
		return fts.OpStartsWith, true
	case query.OpEndsWith:
		return fts.OpEndsWith, true
	case query.OpRegex:
		return fts.OpRegex, true
	}
	return "", false
}

// evalContentFulltext delegates to the FTS Query Layer, falling back
// to the non-indexed flat-text + blob scan on FtsUnavailable, a
// too-short token, or an unsupported operator (§4.5).
func (e *Evaluator) evalContentFulltext(n query.NoteContentFulltextExpr, input graph.NoteSet, ctx *searchctx.Context) graph.NoteSet {
	if ctx.FastSearch {
		return input
	}

	minLen := ctx.Config.MinFTSTokenLength
	if minLen <= 0 {
		minLen = fts.MinFTSTokenLength
	}
	for _, t := range n.Tokens {
		if len(t) < minLen {
			return e.contentFallbackScan(n.Tokens, input)
		}
	}

	ftsOp, ok := toFTSOp(n.Op)
	if !ok || ftsOp == fts.OpRegex {
		return e.contentFallbackScan(n.Tokens, input)
	}
	if e.Manager != nil {
		if err := e.Manager.EnsureAvailable(); err != nil {
			ctx.AddError(searchctx.ErrKindFtsUnavailable, err.Error())
			return e.contentFallbackScan(n.Tokens, input)
		}
	}
	if e.FTS == nil {
		return e.contentFallbackScan(n.Tokens, input)
	}

	opts := fts.SearchOpts{
		CandidateNoteIDs:   input.IDs(),
		CandidateThreshold: ctx.Config.CandidateSetCutoff,
		ChunkSize:          ctx.Config.ChunkSize,
		WantSnippet:        true,
		SnippetMaxTokens:   ctx.Config.SnippetMaxTokens,
		SnippetTag:         [2]string{ctx.Config.SnippetTagOpen, ctx.Config.SnippetTagClose},
	}

	var hits []fts.Hit
	var err error
	if ftsOp == fts.OpEq || ftsOp == fts.OpNotEq {
		hits, err = e.FTS.SearchNotesPhrase(strings.Join(n.Tokens, " "), ftsOp == fts.OpNotEq, opts)
	} else {
		candidateIDs := input.IDs()
		for _, tok := range n.Tokens {
			opts.CandidateNoteIDs = candidateIDs
			hits, err = e.FTS.SearchNotesLike(ftsOp, tok, opts)
			if err != nil {
				break
			}
			candidateIDs = hitIDs(hits)
			if len(candidateIDs) == 0 {
				break
			}
		}
	}
	if err != nil {
		if qerr, ok := err.(*fts.QueryError); ok && qerr.Recoverable {
			ctx.AddError(searchctx.ErrKindFtsQuery, qerr.Error())
			return e.contentFallbackScan(n.Tokens, input)
		}
		ctx.AddError(searchctx.ErrKindFtsQuery, err.Error())
		return graph.NewNoteSet()
	}

	protectedHits, _ := fts.SearchProtectedNotesSync(e.Protected, e.Session, n.Tokens, ftsOp)

	out := graph.NewNoteSet()
	for _, h := range append(hits, protectedHits...) {
		if !input.Has(h.NoteID) {
			continue
		}
		note := e.Cache.GetNote(h.NoteID)
		score := input.Score(h.NoteID) + contentTokenScore(contentOf(note, e), n.Tokens)
		if note != nil {
			score += titleScore(note.Title, n.Tokens)
		}
		out.Add(h.NoteID, score)
	}
	return out
}

func contentOf(note *graph.Note, e *Evaluator) string {
	if note == nil {
		return ""
	}
	return e.blobText(note)
}

func hitIDs(hits []fts.Hit) []string {
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.NoteID
	}
	return out
}

// contentFallbackScan is the non-indexed path, used when FTS is
// unavailable, tokens are too short, or the operator has no FTS
// translation: flat_text(noteId) via evalFlatText, plus a direct blob
// scan for notes the flat-text pass doesn't already match.
func (e *Evaluator) contentFallbackScan(tokens []string, input graph.NoteSet) graph.NoteSet {
	out := e.evalFlatText(query.NoteFlatTextExpr{Tokens: tokens}, input)
	for _, id := range out.IDs() {
		if note := e.Cache.GetNote(id); note != nil {
			out.Add(id, titleScore(note.Title, tokens))
		}
	}

	for _, id := range input.IDs() {
		if out.Has(id) {
			continue
		}
		note := e.Cache.GetNote(id)
		content := e.blobText(note)
		if !fts.ContainsAllTokens(content, tokens) {
			continue
		}
		score := input.Score(id) + contentTokenScore(content, tokens)
		if note != nil {
			score += titleScore(note.Title, tokens)
		}
		out.Add(id, score)
	}
	return out
}
