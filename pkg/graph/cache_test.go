package graph

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func buildSimpleTree(t *testing.T) *Cache {
	t.Helper()
	c := NewCache()
	notes := []*Note{
		{ID: RootNoteID, Title: "root", Type: TypeText},
		{ID: "n1", Title: "Lord of the Rings", Type: TypeText},
		{ID: "n2", Title: "The Hobbit", Type: TypeText},
		{ID: "n3", Title: "Dune", Type: TypeText},
		{ID: "tolkien", Title: "Tolkien", Type: TypeText},
		{ID: "herbert", Title: "Herbert", Type: TypeText},
		{ID: "christopher", Title: "Christopher Tolkien", Type: TypeText},
	}
	branches := []*Branch{
		{ID: "b1", ChildNoteID: "n1", ParentNoteID: RootNoteID},
		{ID: "b2", ChildNoteID: "n2", ParentNoteID: RootNoteID},
		{ID: "b3", ChildNoteID: "n3", ParentNoteID: RootNoteID},
		{ID: "b4", ChildNoteID: "tolkien", ParentNoteID: RootNoteID},
		{ID: "b5", ChildNoteID: "herbert", ParentNoteID: RootNoteID},
		{ID: "b6", ChildNoteID: "christopher", ParentNoteID: RootNoteID},
	}
	attrs := []*Attribute{
		{ID: "a1", NoteID: "n1", Type: AttrLabel, Name: "author", Value: "Tolkien"},
		{ID: "a2", NoteID: "n2", Type: AttrLabel, Name: "author", Value: "Tolkien"},
		{ID: "a3", NoteID: "n3", Type: AttrLabel, Name: "author", Value: "Herbert"},
		{ID: "a4", NoteID: "n1", Type: AttrRelation, Name: "author", Value: "tolkien"},
		{ID: "a5", NoteID: "n2", Type: AttrRelation, Name: "author", Value: "tolkien"},
		{ID: "a6", NoteID: "tolkien", Type: AttrRelation, Name: "son", Value: "christopher"},
	}
	c.Load(notes, branches, attrs)
	return c
}

func TestLabelComparisonScenario(t *testing.T) {
	c := buildSimpleTree(t)
	matches := c.AttributesByTypeName(AttrLabel, "author")
	var ids []string
	for _, a := range matches {
		if a.Value == "Tolkien" {
			ids = append(ids, a.NoteID)
		}
	}
	require.ElementsMatch(t, []string{"n1", "n2"}, ids)
}

func TestRelationChainScenario(t *testing.T) {
	c := buildSimpleTree(t)
	// ~author.relations.son.title = 'Christopher Tolkien'
	var matched []string
	for _, a := range c.AttributesByTypeName(AttrRelation, "author") {
		target := c.GetNote(a.Value)
		if target == nil {
			continue
		}
		for _, son := range c.AttributesByTypeName(AttrRelation, "son") {
			if son.NoteID != target.ID {
				continue
			}
			sonNote := c.GetNote(son.Value)
			if sonNote != nil && sonNote.Title == "Christopher Tolkien" {
				matched = append(matched, a.NoteID)
			}
		}
	}
	require.ElementsMatch(t, []string{"n1", "n2"}, matched)
}

func TestEffectiveAttributesInheritance(t *testing.T) {
	c := NewCache()
	notes := []*Note{
		{ID: RootNoteID, Title: "root"},
		{ID: "parent", Title: "Parent"},
		{ID: "child", Title: "Child"},
		{ID: "grandchild", Title: "Grandchild"},
	}
	branches := []*Branch{
		{ID: "b1", ChildNoteID: "parent", ParentNoteID: RootNoteID},
		{ID: "b2", ChildNoteID: "child", ParentNoteID: "parent"},
		{ID: "b3", ChildNoteID: "grandchild", ParentNoteID: "child"},
	}
	attrs := []*Attribute{
		{ID: "a1", NoteID: "parent", Type: AttrLabel, Name: "shared", IsInheritable: true},
		{ID: "a2", NoteID: "child", Type: AttrLabel, Name: "own"},
	}
	c.Load(notes, branches, attrs)

	eff := c.EffectiveAttributes("grandchild")
	require.Len(t, eff, 1)
	require.Equal(t, "shared", eff[0].Name)

	eff = c.EffectiveAttributes("child")
	names := make([]string, len(eff))
	for i, a := range eff {
		names[i] = a.Name
	}
	require.ElementsMatch(t, []string{"own", "shared"}, names)
}

func TestTemplateExpansionDedup(t *testing.T) {
	c := NewCache()
	notes := []*Note{
		{ID: RootNoteID},
		{ID: "template1", Title: "Template"},
		{ID: "note1", Title: "Note"},
	}
	branches := []*Branch{
		{ID: "b1", ChildNoteID: "template1", ParentNoteID: RootNoteID},
		{ID: "b2", ChildNoteID: "note1", ParentNoteID: RootNoteID},
	}
	attrs := []*Attribute{
		{ID: "t1", NoteID: "template1", Type: AttrLabel, Name: "widget", Value: "1"},
		{ID: "r1", NoteID: "note1", Type: AttrRelation, Name: "template", Value: "template1"},
	}
	c.Load(notes, branches, attrs)

	eff := c.EffectiveAttributes("note1")
	require.Len(t, eff, 2) // own "template" relation + templated "widget" label

	// Applying the same change twice must not duplicate the attribute.
	err := c.ApplyEntityChange(EntityChange{Kind: EntityAttribute, Attribute: attrs[0]})
	require.NoError(t, err)
	eff = c.EffectiveAttributes("note1")
	require.Len(t, eff, 2)
}

func TestCycleSafety(t *testing.T) {
	c := NewCache()
	notes := []*Note{{ID: "a"}, {ID: "b"}}
	attrs := []*Attribute{
		{ID: "t1", NoteID: "a", Type: AttrRelation, Name: "template", Value: "b"},
		{ID: "t2", NoteID: "b", Type: AttrRelation, Name: "template", Value: "a"},
	}
	c.Load(notes, nil, attrs)

	done := make(chan []*Attribute, 1)
	go func() {
		done <- c.EffectiveAttributes("a")
	}()
	select {
	case eff := <-done:
		require.NotNil(t, eff)
	}
}

func TestDanglingRelationDoesNotCrash(t *testing.T) {
	c := NewCache()
	c.Load([]*Note{{ID: "a"}}, nil, []*Attribute{
		{ID: "r1", NoteID: "a", Type: AttrRelation, Name: "missing", Value: "ghost"},
	})
	require.Nil(t, c.GetNote("ghost"))
}

func TestParentArchivedSortsLast(t *testing.T) {
	c := NewCache()
	notes := []*Note{
		{ID: RootNoteID},
		{ID: "archivedParent", Title: "Archived"},
		{ID: "activeParent", Title: "Active"},
		{ID: "child", Title: "Child"},
	}
	branches := []*Branch{
		{ID: "b1", ChildNoteID: "archivedParent", ParentNoteID: RootNoteID},
		{ID: "b2", ChildNoteID: "activeParent", ParentNoteID: RootNoteID},
		{ID: "b3", ChildNoteID: "child", ParentNoteID: "archivedParent"},
		{ID: "b4", ChildNoteID: "child", ParentNoteID: "activeParent"},
	}
	attrs := []*Attribute{
		{ID: "a1", NoteID: "archivedParent", Type: AttrLabel, Name: "archived", IsInheritable: true},
	}
	c.Load(notes, branches, attrs)

	parents := c.ParentBranches("child")
	require.Len(t, parents, 2)
	require.Equal(t, "activeParent", parents[0].ParentNoteID)
	require.Equal(t, "archivedParent", parents[1].ParentNoteID)
}

func TestApplyEntityChangeInvalidatesSubtree(t *testing.T) {
	c := NewCache()
	notes := []*Note{{ID: RootNoteID}, {ID: "parent"}, {ID: "child"}}
	branches := []*Branch{
		{ID: "b1", ChildNoteID: "parent", ParentNoteID: RootNoteID},
		{ID: "b2", ChildNoteID: "child", ParentNoteID: "parent"},
	}
	c.Load(notes, branches, nil)
	require.Empty(t, c.EffectiveAttributes("child"))

	newAttr := &Attribute{ID: "a1", NoteID: "parent", Type: AttrLabel, Name: "inherited", IsInheritable: true}
	err := c.ApplyEntityChange(EntityChange{Kind: EntityAttribute, Attribute: newAttr})
	require.NoError(t, err)

	eff := c.EffectiveAttributes("child")
	require.Len(t, eff, 1)
	require.Equal(t, "inherited", eff[0].Name)
}

func TestFlatText(t *testing.T) {
	c := NewCache()
	c.Load([]*Note{
		{ID: RootNoteID},
		{ID: "n1", Title: "Hello World", Type: TypeText},
	}, []*Branch{
		{ID: "b1", ChildNoteID: "n1", ParentNoteID: RootNoteID},
	}, []*Attribute{
		{ID: "a1", NoteID: "n1", Type: AttrLabel, Name: "tag", Value: "x"},
	})

	ft := c.FlatText("n1")
	require.Contains(t, ft, "hello world")
	require.Contains(t, ft, "#tag=x")
}
