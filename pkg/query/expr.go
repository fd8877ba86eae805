// Package query implements the query language's lexer, recursive-
// descent parser, and the Expr sum type the parser produces. It is a
// leaf package: no dependency on pkg/graph, pkg/fts, or pkg/eval, so
// the grammar can be tested in isolation (teacher idiom: the scanner
// packages like pkg/scanner/chunker never import the layers that
// consume their tokens).
package query

import "strings"

// Op is a comparison operator recognized by the grammar's opValue
// production. The fulltext subset (Eq, NotEq, ContainsAll, StartsWith,
// EndsWith, Regex) maps onto pkg/fts.Op; the numeric subset (Gt, Gte,
// Lt, Lte) is evaluator-only.
type Op string

const (
	OpNone        Op = ""
	OpEq          Op = "="
	OpNotEq       Op = "!="
	OpContainsAll Op = "*=*"
	OpStartsWith  Op = "=*"
	OpEndsWith    Op = "*="
	OpRegex       Op = "%="
	OpGt          Op = ">"
	OpGte         Op = ">="
	OpLt          Op = "<"
	OpLte         Op = "<="
)

// Expr is any node of the parsed expression tree. It carries no
// behavior of its own (evaluate lives in pkg/eval, over in the other
// layer, matching the sum-type-plus-external-dispatch idiom §9 calls
// for instead of a class hierarchy with virtual methods).
type Expr interface {
	exprNode()
}

// TrueExpr matches every note in its input unchanged.
type TrueExpr struct{}

func (TrueExpr) exprNode() {}

// AndExpr threads input through Children left to right.
type AndExpr struct {
	Children []Expr
}

func (AndExpr) exprNode() {}

// OrExpr evaluates every child against the same original input and
// unions the results.
type OrExpr struct {
	Children []Expr
}

func (OrExpr) exprNode() {}

// NotExpr returns input minus whatever Child matches.
type NotExpr struct {
	Child Expr
}

func (NotExpr) exprNode() {}

// PropertyComparisonExpr compares a note (or scoped sub-note)
// property against Value using Op. Property is a dotted path with the
// leading "note." stripped, e.g. "title", "type", "labelCount".
type PropertyComparisonExpr struct {
	Property string
	Op       Op
	Value    string
}

func (PropertyComparisonExpr) exprNode() {}

// AttributeExistsExpr matches notes carrying (AttrType, Name) as an
// effective attribute, or lacking it when Negated.
type AttributeExistsExpr struct {
	AttrType string // "label" or "relation"
	Name     string
	Negated  bool
}

func (AttributeExistsExpr) exprNode() {}

// LabelComparisonExpr compares an effective label's value.
type LabelComparisonExpr struct {
	Name string
	Op   Op
	Value string
}

func (LabelComparisonExpr) exprNode() {}

// ScopeKind names which related-note set a ScopeExpr quantifies over.
type ScopeKind string

const (
	ScopeParents   ScopeKind = "parents"
	ScopeChildren  ScopeKind = "children"
	ScopeAncestors ScopeKind = "ancestors"
	ScopeRelation  ScopeKind = "relation"
)

// ScopeExpr generalizes note.parents.PROP, note.children.PROP,
// note.ancestors.PROP, and ~REL[.PROP] into one node: a candidate note
// matches if Sub matches at least one note in the named scope.
// RelationName is set only when Scope == ScopeRelation.
type ScopeExpr struct {
	Scope        ScopeKind
	RelationName string
	Sub          Expr
	Negated      bool
}

func (ScopeExpr) exprNode() {}

// NoteFlatTextExpr matches the non-indexed flat_text(noteId) scan.
type NoteFlatTextExpr struct {
	Tokens []string
}

func (NoteFlatTextExpr) exprNode() {}

// NoteContentFulltextExpr delegates to the FTS Query Layer (C3),
// falling back to NoteFlatTextExpr-style scanning on FtsUnavailable or
// a too-short token.
type NoteContentFulltextExpr struct {
	Tokens []string
	Op     Op
}

func (NoteContentFulltextExpr) exprNode() {}

// OrderSpec is one orderBy term.
type OrderSpec struct {
	Property string
	Desc     bool
}

// OrderByAndLimitExpr wraps the parsed root: Child is evaluated first,
// then the result is sorted by OrderSpecs and truncated to Limit (0
// means "all").
type OrderByAndLimitExpr struct {
	Child      Expr
	OrderSpecs []OrderSpec
	Limit      int
}

func (OrderByAndLimitExpr) exprNode() {}

// resolvePropPath builds the Expr for a dotted property path ending
// optionally in an opValue. It is shared by propertyAtom and the
// ~REL.propPath tail, which is why "labels"/"relations" segments are
// handled identically to note.labels.X / note.relations.X.
func resolvePropPath(parts []string, op Op, value string) Expr {
	if len(parts) == 0 {
		return TrueExpr{}
	}
	switch parts[0] {
	case "labels":
		if len(parts) < 2 {
			return TrueExpr{}
		}
		if op == OpNone {
			return AttributeExistsExpr{AttrType: "label", Name: parts[1]}
		}
		return LabelComparisonExpr{Name: parts[1], Op: op, Value: value}
	case "relations":
		if len(parts) < 2 {
			return TrueExpr{}
		}
		if len(parts) == 2 {
			if op == OpNone {
				return AttributeExistsExpr{AttrType: "relation", Name: parts[1]}
			}
			return ScopeExpr{Scope: ScopeRelation, RelationName: parts[1],
				Sub: PropertyComparisonExpr{Property: "title", Op: op, Value: value}}
		}
		return ScopeExpr{Scope: ScopeRelation, RelationName: parts[1], Sub: resolvePropPath(parts[2:], op, value)}
	case "parents", "children", "ancestors":
		scope := ScopeKind(parts[0])
		return ScopeExpr{Scope: scope, Sub: resolvePropPath(parts[1:], op, value)}
	default:
		return PropertyComparisonExpr{Property: strings.Join(parts, "."), Op: op, Value: value}
	}
}
