package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultMatchesSpecValues(t *testing.T) {
	cfg := Default()
	require.Equal(t, 5000, cfg.CandidateSetCutoff)
	require.Equal(t, 900, cfg.ChunkSize)
	require.Equal(t, 30, cfg.SnippetMaxTokens)
	require.Equal(t, "<b>", cfg.SnippetTagOpen)
	require.Equal(t, "</b>", cfg.SnippetTagClose)
	require.Equal(t, 100*time.Millisecond, cfg.RegexMatchBudget)
	require.Equal(t, 3, cfg.MinFTSTokenLength)
	require.Equal(t, 500.0, cfg.DedupScoreCap)
}

func TestLoadWithoutConfigFileReturnsDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoadHonorsEnvOverride(t *testing.T) {
	t.Setenv("GKNOTES_CHUNK_SIZE", "123")
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 123, cfg.ChunkSize)
}
