// Package search wires the Graph Cache (C1), FTS layer (C2/C3), Query
// Lexer/Parser (C4), Expression Evaluator (C5), and Search Context
// (C6) into the single "query string + context in, SearchResult[] out"
// call the rest of the application treats as an external collaborator
// boundary (§1/§2/§6).
package search

import (
	"sort"

	"github.com/kittclouds/gokitt/internal/config"
	"github.com/kittclouds/gokitt/pkg/eval"
	"github.com/kittclouds/gokitt/pkg/fts"
	"github.com/kittclouds/gokitt/pkg/graph"
	"github.com/kittclouds/gokitt/pkg/gknlog"
	"github.com/kittclouds/gokitt/pkg/query"
	"github.com/kittclouds/gokitt/pkg/searchctx"
	"github.com/kittclouds/gokitt/pkg/session"
)

// Result is the caller-facing shape described in §6.
type Result struct {
	NoteID     string
	Score      float64
	NotePath   []string
	Snippet    string
	Highlights []fts.Highlight
}

// Engine bundles everything a Run call needs: the loaded cache, the
// FTS layer (may be nil to force the non-indexed path, e.g. in tests),
// the blob source, and the session manager for protected notes.
type Engine struct {
	Cache     *graph.Cache
	FTS       *fts.QueryLayer
	Manager   *fts.Manager
	Protected fts.ProtectedStore
	Blobs     eval.BlobSource
	Sessions  *session.Manager
	Config    config.Config
}

// Run parses queryString, evaluates it, and returns ranked results
// honoring ctx's options. A malformed structured query degrades to a
// plain fulltext search over queryString rather than failing the call
// (§4.4, §7).
func (e *Engine) Run(queryString string, ctx *searchctx.Context) ([]Result, error) {
	if ctx == nil {
		ctx = searchctx.NewFromConfig(e.Config)
	}

	expr, perr := query.Parse(queryString)
	if perr != nil {
		ctx.AddError(searchctx.ErrKindParse, perr.Error())
		expr = query.Fallback(queryString)
	}

	var snap *session.Snapshot
	if e.Sessions != nil {
		snap = e.Sessions.Snapshot()
	}

	ev := &eval.Evaluator{
		Cache:     e.Cache,
		FTS:       e.FTS,
		Manager:   e.Manager,
		Protected: e.Protected,
		Blobs:     e.Blobs,
		Session:   snap,
	}

	input := e.initialInput(ctx)
	resultSet := ev.Evaluate(expr, input, ctx)

	// When the query carries its own orderBy/limit clause, applyOrderAndLimit
	// (pkg/eval) has already sorted resultSet and applied ctx.Offset/Limit
	// combined with the clause's own limit; resultSet.IDs() reflects that
	// final order and must not be re-sorted or re-paginated here.
	_, ordered := expr.(query.OrderByAndLimitExpr)

	ids := resultSet.IDs()
	if !ordered {
		sort.SliceStable(ids, func(i, j int) bool {
			si, sj := resultSet.Score(ids[i]), resultSet.Score(ids[j])
			if si != sj {
				return si > sj
			}
			ni, nj := e.Cache.GetNote(ids[i]), e.Cache.GetNote(ids[j])
			if ni != nil && nj != nil && ni.UTCDateModified != nj.UTCDateModified {
				return ni.UTCDateModified > nj.UTCDateModified
			}
			return ids[i] < ids[j]
		})

		if ctx.Offset > 0 {
			if ctx.Offset >= len(ids) {
				ids = nil
			} else {
				ids = ids[ctx.Offset:]
			}
		}
		if ctx.Limit > 0 && ctx.Limit < len(ids) {
			ids = ids[:ctx.Limit]
		}
	}

	results := make([]Result, 0, len(ids))
	for _, id := range ids {
		results = append(results, Result{
			NoteID:   id,
			Score:    resultSet.Score(id),
			NotePath: e.notePath(id),
		})
	}

	if ctx.Debug {
		gknlog.Debugf("search: query=%q candidates=%d elapsed=%s errors=%d",
			queryString, len(ids), ctx.Elapsed(), len(ctx.Errors()))
	}

	return results, nil
}

// initialInput builds the root NoteSet per §4.6: the subtree of
// AncestorNoteID when set, otherwise every note; archived notes are
// excluded unless IncludeArchivedNotes is set.
func (e *Engine) initialInput(ctx *searchctx.Context) graph.NoteSet {
	var ids []string
	if ctx.AncestorNoteID != "" {
		ids = e.Cache.SubtreeIDs(ctx.AncestorNoteID, false)
	} else {
		ids = e.Cache.AllNoteIDs()
	}

	if ctx.IncludeArchivedNotes {
		return graph.NoteSetFromIDs(ids)
	}

	filtered := make([]string, 0, len(ids))
	for _, id := range ids {
		if !e.Cache.HasEffectiveLabel(id, "archived") {
			filtered = append(filtered, id)
		}
	}
	return graph.NoteSetFromIDs(filtered)
}

// notePath returns the ancestor chain from root to noteId, picking
// the first (non-archived-preferred, per the Graph Cache's parent sort
// policy) parent at each level.
func (e *Engine) notePath(noteID string) []string {
	var path []string
	seen := map[string]bool{}
	cur := noteID
	for cur != "" && cur != graph.RootNoteID && !seen[cur] {
		seen[cur] = true
		path = append([]string{cur}, path...)
		parents := e.Cache.Parents(cur)
		if len(parents) == 0 {
			break
		}
		cur = parents[0].ID
	}
	return append([]string{graph.RootNoteID}, path...)
}
