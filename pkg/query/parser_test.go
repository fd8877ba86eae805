package query

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLabelComparison(t *testing.T) {
	expr, perr := Parse("#author = Tolkien")
	require.Nil(t, perr)
	lc, ok := expr.(LabelComparisonExpr)
	require.True(t, ok)
	require.Equal(t, "author", lc.Name)
	require.Equal(t, OpEq, lc.Op)
	require.Equal(t, "Tolkien", lc.Value)
}

func TestParseLabelExists(t *testing.T) {
	expr, perr := Parse("#archived")
	require.Nil(t, perr)
	_, ok := expr.(AttributeExistsExpr)
	require.True(t, ok)
}

func TestParseNegatedLabel(t *testing.T) {
	expr, perr := Parse("#!archived")
	require.Nil(t, perr)
	ae, ok := expr.(AttributeExistsExpr)
	require.True(t, ok)
	require.True(t, ae.Negated)
}

func TestParseRelationChain(t *testing.T) {
	expr, perr := Parse("~author.relations.son.title = 'Christopher Tolkien'")
	require.Nil(t, perr)
	outer, ok := expr.(ScopeExpr)
	require.True(t, ok)
	require.Equal(t, ScopeRelation, outer.Scope)
	require.Equal(t, "author", outer.RelationName)

	inner, ok := outer.Sub.(ScopeExpr)
	require.True(t, ok)
	require.Equal(t, ScopeRelation, inner.Scope)
	require.Equal(t, "son", inner.RelationName)

	prop, ok := inner.Sub.(PropertyComparisonExpr)
	require.True(t, ok)
	require.Equal(t, "title", prop.Property)
	require.Equal(t, "Christopher Tolkien", prop.Value)
}

func TestParseAndOr(t *testing.T) {
	expr, perr := Parse("#author = Tolkien AND #genre = fantasy")
	require.Nil(t, perr)
	and, ok := expr.(AndExpr)
	require.True(t, ok)
	require.Len(t, and.Children, 2)
}

func TestParseNot(t *testing.T) {
	expr, perr := Parse("not(#archived)")
	require.Nil(t, perr)
	_, ok := expr.(NotExpr)
	require.True(t, ok)
}

func TestParseOrderByAndLimit(t *testing.T) {
	expr, perr := Parse("#author = Tolkien orderBy note.title desc limit 10")
	require.Nil(t, perr)
	wrapped, ok := expr.(OrderByAndLimitExpr)
	require.True(t, ok)
	require.Equal(t, 10, wrapped.Limit)
	require.Len(t, wrapped.OrderSpecs, 1)
	require.True(t, wrapped.OrderSpecs[0].Desc)
}

func TestParseBareWordsFulltext(t *testing.T) {
	expr, perr := Parse("search term")
	require.Nil(t, perr)
	ft, ok := expr.(NoteContentFulltextExpr)
	require.True(t, ok)
	require.Equal(t, []string{"search", "term"}, ft.Tokens)
}

func TestParseNotePropertyAtom(t *testing.T) {
	expr, perr := Parse("note.type = text")
	require.Nil(t, perr)
	pc, ok := expr.(PropertyComparisonExpr)
	require.True(t, ok)
	require.Equal(t, "type", pc.Property)
	require.Equal(t, "text", pc.Value)
}

func TestParseAncestorsScope(t *testing.T) {
	expr, perr := Parse("note.ancestors.title = 'Fantasy'")
	require.Nil(t, perr)
	scope, ok := expr.(ScopeExpr)
	require.True(t, ok)
	require.Equal(t, ScopeAncestors, scope.Scope)
}

func TestFallbackOnMalformedQuery(t *testing.T) {
	_, perr := Parse("#author =")
	require.NotNil(t, perr)
	fb := Fallback("#author =")
	_, ok := fb.(NoteContentFulltextExpr)
	require.True(t, ok)
}

func TestParseStructuredModeRejectsBareWords(t *testing.T) {
	_, perr := Parse("# foo bar")
	require.NotNil(t, perr)
}

func TestParseStructuredModeStillAcceptsStructuredAtoms(t *testing.T) {
	expr, perr := Parse("# #author = Tolkien")
	require.Nil(t, perr)
	_, ok := expr.(LabelComparisonExpr)
	require.True(t, ok)
}

func TestParseParens(t *testing.T) {
	expr, perr := Parse("(#author = Tolkien OR #author = Herbert) AND #genre = fantasy")
	require.Nil(t, perr)
	and, ok := expr.(AndExpr)
	require.True(t, ok)
	_, ok = and.Children[0].(OrExpr)
	require.True(t, ok)
}
