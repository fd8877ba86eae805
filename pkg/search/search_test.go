package search

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kittclouds/gokitt/pkg/graph"
	"github.com/kittclouds/gokitt/pkg/searchctx"
)

type memBlobs map[string][]byte

func (m memBlobs) GetBlobContent(id string) ([]byte, error) { return m[id], nil }

func note(id, title string, blobID string) *graph.Note {
	return &graph.Note{ID: id, Title: title, Type: graph.TypeText, BlobID: blobID, UTCDateModified: "2026-01-01T00:00:00Z"}
}

func branch(id, child, parent string) *graph.Branch {
	return &graph.Branch{ID: id, ChildNoteID: child, ParentNoteID: parent}
}

func label(id, noteID, name, value string) *graph.Attribute {
	return &graph.Attribute{ID: id, NoteID: noteID, Type: graph.AttrLabel, Name: name, Value: value}
}

// buildLibraryScenario is the literal scenario 2 from the spec: two
// Tolkien books and one Herbert book under root, label author=<name>.
func buildLibraryScenario() *graph.Cache {
	c := graph.NewCache()
	c.Load(
		[]*graph.Note{
			note(graph.RootNoteID, "root", ""),
			note("lotr", "Lord of the Rings", "b1"),
			note("hobbit", "The Hobbit", "b2"),
			note("dune", "Dune", "b3"),
		},
		[]*graph.Branch{
			branch("br1", "lotr", graph.RootNoteID),
			branch("br2", "hobbit", graph.RootNoteID),
			branch("br3", "dune", graph.RootNoteID),
		},
		[]*graph.Attribute{
			label("a1", "lotr", "author", "Tolkien"),
			label("a2", "hobbit", "author", "Tolkien"),
			label("a3", "dune", "author", "Herbert"),
		},
	)
	return c
}

func TestEngineRunLabelQuery(t *testing.T) {
	c := buildLibraryScenario()
	e := &Engine{Cache: c}

	results, err := e.Run("#author = Tolkien", nil)
	require.NoError(t, err)
	require.Len(t, results, 2)

	ids := map[string]bool{}
	for _, r := range results {
		ids[r.NoteID] = true
	}
	require.True(t, ids["lotr"])
	require.True(t, ids["hobbit"])
	require.False(t, ids["dune"])
}

func TestEngineRunNotePathReconstruction(t *testing.T) {
	c := graph.NewCache()
	c.Load(
		[]*graph.Note{
			note(graph.RootNoteID, "root", ""),
			note("parent", "Parent", ""),
			note("child", "Child", ""),
		},
		[]*graph.Branch{
			branch("br1", "parent", graph.RootNoteID),
			branch("br2", "child", "parent"),
		},
		nil,
	)
	e := &Engine{Cache: c}

	results, err := e.Run("note.title = Child", nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, []string{graph.RootNoteID, "parent", "child"}, results[0].NotePath)
}

func TestEngineRunFulltextFallbackOnMalformedQuery(t *testing.T) {
	blobs := memBlobs{"b1": []byte("a malformed query about an author still finds this")}
	c := graph.NewCache()
	c.Load(
		[]*graph.Note{
			note(graph.RootNoteID, "root", ""),
			note("n1", "Note", "b1"),
		},
		[]*graph.Branch{branch("br1", "n1", graph.RootNoteID)},
		nil,
	)
	e := &Engine{Cache: c, Blobs: blobs}

	results, err := e.Run("#author = (((", nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "n1", results[0].NoteID)
}

// TestEngineRunOrderByAndLimitNotDoubleApplied guards against Run
// re-sorting by score and re-slicing ctx.Offset/ctx.Limit on top of
// what eval.applyOrderAndLimit already did for a query carrying its
// own orderBy clause.
func TestEngineRunOrderByAndLimitNotDoubleApplied(t *testing.T) {
	c := graph.NewCache()
	c.Load(
		[]*graph.Note{
			note(graph.RootNoteID, "root", ""),
			note("n1", "Beta", ""),
			note("n2", "Gamma", ""),
			note("n3", "Alpha", ""),
		},
		[]*graph.Branch{
			branch("br1", "n1", graph.RootNoteID),
			branch("br2", "n2", graph.RootNoteID),
			branch("br3", "n3", graph.RootNoteID),
		},
		[]*graph.Attribute{
			label("a1", "n1", "tag", ""),
			label("a2", "n2", "tag", ""),
			label("a3", "n3", "tag", ""),
		},
	)
	e := &Engine{Cache: c}

	ctx := searchctx.New()
	ctx.Offset = 1

	results, err := e.Run("#tag orderBy note.title asc", ctx)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "n1", results[0].NoteID) // Beta
	require.Equal(t, "n2", results[1].NoteID) // Gamma
}

func TestEngineRunIncludeArchived(t *testing.T) {
	c := graph.NewCache()
	c.Load(
		[]*graph.Note{
			note(graph.RootNoteID, "root", ""),
			note("visible", "Visible", ""),
			note("hidden", "Hidden", ""),
		},
		[]*graph.Branch{
			branch("br1", "visible", graph.RootNoteID),
			branch("br2", "hidden", graph.RootNoteID),
		},
		[]*graph.Attribute{
			label("a1", "hidden", "archived", ""),
		},
	)
	e := &Engine{Cache: c}

	results, err := e.Run("note.type = text", nil)
	require.NoError(t, err)
	require.Len(t, results, 2) // root, visible; hidden excluded by default

	ctx := searchctx.New()
	ctx.IncludeArchivedNotes = true
	results, err = e.Run("note.type = text", ctx)
	require.NoError(t, err)
	require.Len(t, results, 3)
}
