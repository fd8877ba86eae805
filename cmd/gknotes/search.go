package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kittclouds/gokitt/internal/store"
	"github.com/kittclouds/gokitt/pkg/graph"
	"github.com/kittclouds/gokitt/pkg/search"
	"github.com/kittclouds/gokitt/pkg/searchctx"
	"github.com/kittclouds/gokitt/pkg/session"
)

var searchCmd = &cobra.Command{
	Use:   "search [query...]",
	Short: "Run a structured or fulltext query against the notes database",
	Long: `search evaluates QUERY (joined from all positional args with spaces)
and prints ranked results. A malformed structured query falls back to a
plain fulltext search rather than erroring.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().String("ancestor", "", "restrict the search to the subtree rooted at this note id")
	searchCmd.Flags().Bool("fast", false, "skip the fulltext content scan; structured filters only")
	searchCmd.Flags().Bool("include-archived", false, "include notes carrying the archived label")
	searchCmd.Flags().Bool("fuzzy-attr", false, "treat attribute value equality as contains-all")
	searchCmd.Flags().Int("limit", 0, "cap the number of results returned (0 = engine default)")
	searchCmd.Flags().Int("offset", 0, "skip this many top-ranked results before returning")
	searchCmd.Flags().Bool("debug", false, "log the query, result count, elapsed time and error count (shown with --log-level debug)")
	searchCmd.Flags().Duration("timeout", 0, "abort evaluation once this much time has elapsed (0 = no deadline)")
}

func runSearch(cmd *cobra.Command, args []string) error {
	dbPath, _ := cmd.Flags().GetString("db")
	ancestor, _ := cmd.Flags().GetString("ancestor")
	fast, _ := cmd.Flags().GetBool("fast")
	includeArchived, _ := cmd.Flags().GetBool("include-archived")
	fuzzyAttr, _ := cmd.Flags().GetBool("fuzzy-attr")
	limit, _ := cmd.Flags().GetInt("limit")
	offset, _ := cmd.Flags().GetInt("offset")
	debug, _ := cmd.Flags().GetBool("debug")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	st, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	notes, branches, attrs, err := st.LoadAll()
	if err != nil {
		return fmt.Errorf("load notes: %w", err)
	}
	cache := graph.NewCache()
	cache.Load(notes, branches, attrs)

	cfg := loadConfig()
	engine := &search.Engine{
		Cache:     cache,
		Protected: st,
		Blobs:     st,
		Sessions:  session.NewManager(),
		Config:    cfg,
	}

	ctx := searchctx.NewFromConfig(cfg)
	ctx.AncestorNoteID = ancestor
	ctx.FastSearch = fast
	ctx.IncludeArchivedNotes = includeArchived
	ctx.FuzzyAttributeSearch = fuzzyAttr
	ctx.Limit = limit
	ctx.Offset = offset
	ctx.Debug = debug
	if timeout > 0 {
		ctx.Deadline = time.Now().Add(timeout)
	}

	query := strings.Join(args, " ")
	results, err := engine.Run(query, ctx)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	if len(results) == 0 {
		fmt.Println("No results.")
		return nil
	}

	for i, r := range results {
		fmt.Printf("%3d. %-8s score=%-7.1f %s\n", i+1, r.NoteID, r.Score, strings.Join(r.NotePath, "/"))
		if r.Snippet != "" {
			fmt.Printf("     %s\n", r.Snippet)
		}
	}

	for _, e := range ctx.Errors() {
		fmt.Printf("note: %s: %s\n", e.Kind, e.Message)
	}

	return nil
}
