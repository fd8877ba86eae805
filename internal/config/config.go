// Package config loads the engine's tunable constants through a
// viper singleton, adapted from the teacher's internal/config: same
// env-prefix/file-then-env precedence, trimmed from BeadsLog's issue-
// tracker settings down to the search engine's knobs (§4.6 "NEW:
// Engine configuration").
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every tunable named across §4.2-§4.5.
type Config struct {
	CandidateSetCutoff int           // C3: skip the IN filter above this many candidates
	ChunkSize          int           // C3: max bound params per chunked IN query
	SnippetMaxTokens   int           // C3: max snippet length
	SnippetTagOpen     string        // C3
	SnippetTagClose    string        // C3
	RegexMatchBudget   time.Duration // C5: per-match budget for '%='
	MinFTSTokenLength  int           // C2/C3: trigram tokenizer floor
	DedupScoreCap      float64       // C5: NoteSet score cap
}

// Default returns compiled-in defaults, used when no config file or
// environment variable overrides them — the engine always runs with
// zero configuration present.
func Default() Config {
	return Config{
		CandidateSetCutoff: 5000,
		ChunkSize:          900,
		SnippetMaxTokens:   30,
		SnippetTagOpen:     "<b>",
		SnippetTagClose:    "</b>",
		RegexMatchBudget:   100 * time.Millisecond,
		MinFTSTokenLength:  3,
		DedupScoreCap:      500.0,
	}
}

// Load builds a viper instance over the defaults, a discovered
// gknotes.yaml (walking up from the cwd), else gknotes/config.yaml
// under the user config dir (e.g. ~/.config/gknotes/config.yaml), and
// GKNOTES_-prefixed environment variables, in that precedence order
// (env wins, matching the teacher's AutomaticEnv-over-file rule).
func Load() (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("GKNOTES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("candidate_set_cutoff", cfg.CandidateSetCutoff)
	v.SetDefault("chunk_size", cfg.ChunkSize)
	v.SetDefault("snippet_max_tokens", cfg.SnippetMaxTokens)
	v.SetDefault("snippet_tag_open", cfg.SnippetTagOpen)
	v.SetDefault("snippet_tag_close", cfg.SnippetTagClose)
	v.SetDefault("regex_match_budget_ms", int(cfg.RegexMatchBudget/time.Millisecond))
	v.SetDefault("min_fts_token_length", cfg.MinFTSTokenLength)
	v.SetDefault("dedup_score_cap", cfg.DedupScoreCap)

	if path, ok := findConfigFile(); ok {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return cfg, err
		}
	}

	cfg.CandidateSetCutoff = v.GetInt("candidate_set_cutoff")
	cfg.ChunkSize = v.GetInt("chunk_size")
	cfg.SnippetMaxTokens = v.GetInt("snippet_max_tokens")
	cfg.SnippetTagOpen = v.GetString("snippet_tag_open")
	cfg.SnippetTagClose = v.GetString("snippet_tag_close")
	cfg.RegexMatchBudget = time.Duration(v.GetInt("regex_match_budget_ms")) * time.Millisecond
	cfg.MinFTSTokenLength = v.GetInt("min_fts_token_length")
	cfg.DedupScoreCap = v.GetFloat64("dedup_score_cap")
	return cfg, nil
}

func findConfigFile() (string, bool) {
	if cwd, err := os.Getwd(); err == nil {
		for dir := cwd; dir != filepath.Dir(dir); dir = filepath.Dir(dir) {
			p := filepath.Join(dir, "gknotes.yaml")
			if _, err := os.Stat(p); err == nil {
				return p, true
			}
		}
	}
	if configDir, err := os.UserConfigDir(); err == nil {
		p := filepath.Join(configDir, "gknotes", "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p, true
		}
	}
	return "", false
}
