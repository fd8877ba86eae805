package fts

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSanitizeToken(t *testing.T) {
	require.Equal(t, "hello world", SanitizeToken(`"Hello World"`))
	require.Equal(t, "foobar", SanitizeToken("foo(bar)"))
	require.Equal(t, "wildcard", SanitizeToken("wild*card:"))
}

func TestEscapeLike(t *testing.T) {
	require.Equal(t, `50\%`, EscapeLike("50%"))
	require.Equal(t, `a\_b`, EscapeLike("a_b"))
	require.Equal(t, `c\\d`, EscapeLike(`c\d`))
}

func TestWordBoundaryPattern(t *testing.T) {
	re, err := wordBoundaryPattern("test")
	require.NoError(t, err)
	require.True(t, re.MatchString("this is a test case"))
	require.False(t, re.MatchString("testing one two"))
}

func TestContainsAllTokens(t *testing.T) {
	require.True(t, ContainsAllTokens("The quick brown fox", []string{"quick", "fox"}))
	require.False(t, ContainsAllTokens("The quick brown fox", []string{"quick", "dog"}))
	require.True(t, ContainsAllTokens("Case INSENSITIVE match", []string{"insensitive"}))
}

func TestSearchOptsDefaults(t *testing.T) {
	var opts SearchOpts
	require.Equal(t, DefaultCandidateThreshold, opts.threshold())
	require.Equal(t, DefaultChunkSize, opts.chunkSize())
	require.Equal(t, DefaultSnippetMaxTokens, opts.snippetMax())
	require.Equal(t, DefaultSnippetTag, opts.snippetTag())

	opts = SearchOpts{CandidateThreshold: 10, ChunkSize: 5, SnippetMaxTokens: 3}
	require.Equal(t, 10, opts.threshold())
	require.Equal(t, 5, opts.chunkSize())
	require.Equal(t, 3, opts.snippetMax())
}
