// Package eval implements the Expression Evaluator (C5): it walks a
// query.Expr tree over a graph.Cache, producing a graph.NoteSet with
// per-note accumulated scores. Node dispatch is a type switch over the
// query.Expr sum type rather than virtual methods, matching §9's
// "tagged sum type with an evaluate method" guidance and the
// teacher's pkg/scanner/discovery.Registry tagged-kind-dispatch idiom.
package eval

import (
	"sort"
	"strconv"
	"strings"

	"github.com/kittclouds/gokitt/pkg/fts"
	"github.com/kittclouds/gokitt/pkg/graph"
	"github.com/kittclouds/gokitt/pkg/pool"
	"github.com/kittclouds/gokitt/pkg/query"
	"github.com/kittclouds/gokitt/pkg/searchctx"
	"github.com/kittclouds/gokitt/pkg/session"
)

// BlobSource resolves a note's raw (possibly encrypted) content,
// needed by note.content property comparisons and the flat-text
// content fallback. internal/store.Store implements this.
type BlobSource interface {
	GetBlobContent(blobID string) ([]byte, error)
}

// Evaluator wires the Graph Cache, the FTS layer, and the protected-
// notes session snapshot together for one or more search calls.
type Evaluator struct {
	Cache     *graph.Cache
	FTS       *fts.QueryLayer
	Manager   *fts.Manager
	Protected fts.ProtectedStore
	Blobs     BlobSource
	Session   *session.Snapshot
}

// Evaluate dispatches expr against input, returning the resulting
// NoteSet. ctx carries per-call options and the error buffer.
func (e *Evaluator) Evaluate(expr query.Expr, input graph.NoteSet, ctx *searchctx.Context) graph.NoteSet {
	if ctx.Config.DedupScoreCap > 0 {
		graph.MaxScore = ctx.Config.DedupScoreCap
	}

	if ctx.DeadlineExceeded() {
		ctx.AddError(searchctx.ErrKindTimeout, "deadline exceeded before node evaluation")
		return input
	}

	switch n := expr.(type) {
	case query.TrueExpr:
		return input

	case query.AndExpr:
		return e.evalAnd(n, input, ctx)

	case query.OrExpr:
		return e.evalOr(n, input, ctx)

	case query.NotExpr:
		matched := e.Evaluate(n.Child, input, ctx)
		return input.Subtract(matched)

	case query.PropertyComparisonExpr:
		return e.evalPropertyComparison(n, input, ctx)

	case query.AttributeExistsExpr:
		return e.evalAttributeExists(n, input)

	case query.LabelComparisonExpr:
		return e.evalLabelComparison(n, input, ctx)

	case query.ScopeExpr:
		return e.evalScope(n, input, ctx)

	case query.NoteFlatTextExpr:
		return e.evalFlatText(n, input)

	case query.NoteContentFulltextExpr:
		return e.evalContentFulltext(n, input, ctx)

	case query.OrderByAndLimitExpr:
		result := e.Evaluate(n.Child, input, ctx)
		return e.applyOrderAndLimit(result, n.OrderSpecs, n.Limit, ctx)
	}

	ctx.AddError(searchctx.ErrKindDanglingReference, "unrecognized expression node")
	return graph.NewNoteSet()
}

// selectivityRank orders AndExp children cheapest-first: attribute-
// index-backed atoms, then property comparisons, then fulltext scans,
// then ancestry/relation walks, per §4.5/§9.
func selectivityRank(e query.Expr) int {
	switch n := e.(type) {
	case query.AttributeExistsExpr, query.LabelComparisonExpr:
		return 0
	case query.PropertyComparisonExpr:
		return 1
	case query.NoteFlatTextExpr, query.NoteContentFulltextExpr:
		return 2
	case query.ScopeExpr:
		return 3
	case query.NotExpr:
		return selectivityRank(n.Child) + 1
	default:
		return 4
	}
}

func (e *Evaluator) evalAnd(n query.AndExpr, input graph.NoteSet, ctx *searchctx.Context) graph.NoteSet {
	children := append([]query.Expr(nil), n.Children...)
	sort.SliceStable(children, func(i, j int) bool {
		return selectivityRank(children[i]) < selectivityRank(children[j])
	})

	result := input
	for _, child := range children {
		result = e.Evaluate(child, result, ctx)
		ctx.RecordCandidates("and_child", result.Len())
		if result.Len() == 0 {
			break
		}
	}
	return result
}

func (e *Evaluator) evalOr(n query.OrExpr, input graph.NoteSet, ctx *searchctx.Context) graph.NoteSet {
	out := graph.NewNoteSet()
	for _, child := range n.Children {
		res := e.Evaluate(child, input, ctx)
		out = out.Union(res)
	}
	return out
}

func (e *Evaluator) evalAttributeExists(n query.AttributeExistsExpr, input graph.NoteSet) graph.NoteSet {
	typ := graph.AttrLabel
	if n.AttrType == "relation" {
		typ = graph.AttrRelation
	}
	out := graph.NewNoteSet()
	for _, id := range input.IDs() {
		has := len(e.Cache.EffectiveAttributesByTypeName(id, typ, n.Name)) > 0
		if has != n.Negated {
			score := 0.0
			if !n.Negated {
				score = attrMatchScore
			}
			out.Add(id, input.Score(id)+score)
		}
	}
	return out
}

func (e *Evaluator) evalLabelComparison(n query.LabelComparisonExpr, input graph.NoteSet, ctx *searchctx.Context) graph.NoteSet {
	out := graph.NewNoteSet()
	for _, id := range input.IDs() {
		attrs := e.Cache.EffectiveAttributesByTypeName(id, graph.AttrLabel, n.Name)
		matched := false
		for _, a := range attrs {
			op := n.Op
			if ctx.FuzzyAttributeSearch && op == query.OpEq {
				op = query.OpContainsAll
			}
			if matchString(a.Value, op, n.Value, ctx) {
				matched = true
				break
			}
		}
		if matched {
			out.Add(id, input.Score(id)+attrMatchScore)
		}
	}
	return out
}

const attrMatchScore = 30.0

func (e *Evaluator) evalScope(n query.ScopeExpr, input graph.NoteSet, ctx *searchctx.Context) graph.NoteSet {
	out := graph.NewNoteSet()
	for _, id := range input.IDs() {
		related := e.relatedNoteIDs(n, id)
		if len(related) == 0 {
			pool.PutStringSlice(related)
			continue
		}
		subInput := graph.NoteSetFromIDs(related)
		subResult := e.Evaluate(n.Sub, subInput, ctx)
		matched := subResult.Len() > 0
		if matched == n.Negated {
			pool.PutStringSlice(related)
			continue
		}
		bonus := 0.0
		if !n.Negated {
			best := 0.0
			for _, rid := range related {
				if s := subResult.Score(rid); s > best {
					best = s
				}
			}
			bonus = best * ancestorInheritFactor
		}
		out.Add(id, input.Score(id)+bonus)
		pool.PutStringSlice(related)
	}
	return out
}

const ancestorInheritFactor = 0.8

// relatedNoteIDs gathers noteIds reachable via n.Scope from noteID. The
// returned slice is pool-backed; callers return it with
// pool.PutStringSlice once done (NoteSetFromIDs copies ids into its own
// map, so the slice is safe to recycle right after that call).
func (e *Evaluator) relatedNoteIDs(n query.ScopeExpr, noteID string) []string {
	ids := pool.GetStringSlice()
	switch n.Scope {
	case query.ScopeParents:
		for _, p := range e.Cache.Parents(noteID) {
			ids = append(ids, p.ID)
		}
	case query.ScopeChildren:
		for _, c := range e.Cache.Children(noteID) {
			ids = append(ids, c.ID)
		}
	case query.ScopeAncestors:
		for _, a := range e.Cache.Ancestors(noteID) {
			ids = append(ids, a.ID)
		}
	case query.ScopeRelation:
		for _, a := range e.Cache.EffectiveAttributesByTypeName(noteID, graph.AttrRelation, n.RelationName) {
			if a.Value != "" {
				ids = append(ids, a.Value)
			}
		}
	}
	return ids
}

func (e *Evaluator) evalFlatText(n query.NoteFlatTextExpr, input graph.NoteSet) graph.NoteSet {
	out := graph.NewNoteSet()
	for _, id := range input.IDs() {
		text := e.Cache.FlatText(id)
		if fts.ContainsAllTokens(text, n.Tokens) {
			out.Add(id, input.Score(id)+flatTextScore(text, n.Tokens))
		}
	}
	return out
}

func flatTextScore(text string, tokens []string) float64 {
	score := 0.0
	lower := strings.ToLower(text)
	for _, t := range tokens {
		if !isScorableToken(t) {
			continue
		}
		occurrences := strings.Count(lower, strings.ToLower(t))
		if occurrences == 0 {
			continue
		}
		score += 10.0
		if occurrences > 1 {
			bonus := 5.0 * float64(occurrences-1)
			if bonus > 25.0 {
				bonus = 25.0
			}
			score += bonus
		}
	}
	return score
}

// applyOrderAndLimit sorts result by specs (falling back to score
// desc, then UTCDateModified desc, then noteId) and truncates to
// limit (0 means "all").
func (e *Evaluator) applyOrderAndLimit(result graph.NoteSet, specs []query.OrderSpec, limit int, ctx *searchctx.Context) graph.NoteSet {
	ids := result.IDs()
	sort.SliceStable(ids, func(i, j int) bool {
		a, b := ids[i], ids[j]
		for _, spec := range specs {
			av, bv := e.orderValue(a, spec.Property), e.orderValue(b, spec.Property)
			if av == bv {
				continue
			}
			if spec.Desc {
				return av > bv
			}
			return av < bv
		}
		if result.Score(a) != result.Score(b) {
			return result.Score(a) > result.Score(b)
		}
		an, bn := e.Cache.GetNote(a), e.Cache.GetNote(b)
		if an != nil && bn != nil && an.UTCDateModified != bn.UTCDateModified {
			return an.UTCDateModified > bn.UTCDateModified
		}
		return a < b
	})

	if ctx.Offset > 0 {
		if ctx.Offset >= len(ids) {
			ids = nil
		} else {
			ids = ids[ctx.Offset:]
		}
	}

	effectiveLimit := limit
	if ctx.Limit > 0 && (effectiveLimit == 0 || ctx.Limit < effectiveLimit) {
		effectiveLimit = ctx.Limit
	}
	if effectiveLimit > 0 && effectiveLimit < len(ids) {
		ids = ids[:effectiveLimit]
	}

	out := graph.NewNoteSet()
	for _, id := range ids {
		out.Add(id, result.Score(id))
	}
	return out
}

func (e *Evaluator) orderValue(noteID, property string) string {
	note := e.Cache.GetNote(noteID)
	if note == nil {
		return ""
	}
	switch strings.TrimPrefix(property, "note.") {
	case "title":
		return note.Title
	case "type":
		return string(note.Type)
	case "dateCreated":
		return note.DateCreated
	case "dateModified", "utcDateModified":
		return note.UTCDateModified
	default:
		return ""
	}
}

func parseFloat(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
