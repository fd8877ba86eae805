package query

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseError is returned instead of panicking on malformed input,
// matching §9's error-as-value rule. Offset is a byte offset into the
// original query string.
type ParseError struct {
	Offset  int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("query: parse error at %d: %s", e.Offset, e.Message)
}

// Parser is a hand-written recursive-descent parser over the token
// stream produced by lex, mirroring the teacher's pkg/scanner/chunker
// and pkg/scanner/discovery hand-rolled scanning style generalized
// from tag extraction to a full expression grammar.
type parser struct {
	toks []token
	pos  int
	// structured is set when the query opened with a bare '#' (§4.4):
	// bare words are no longer a valid atom and parseBareWords must
	// report a parse error instead of degrading to a fulltext clause.
	structured bool
}

// Parse tokenizes and parses input into an Expr tree. On a malformed
// structured query it returns a non-nil *ParseError; callers in
// fulltext mode should fall back to Fallback(input) rather than
// surfacing the error to the end user (§4.4).
func Parse(input string) (Expr, *ParseError) {
	p := &parser{toks: lex(input)}
	if p.peek().Kind == tModeHash {
		p.pos++
		p.structured = true
	}

	expr, err := p.parseClauses()
	if err != nil {
		return nil, err
	}

	var specs []OrderSpec
	limit := 0
	if p.peek().Kind == tOrderBy {
		p.pos++
		for {
			spec, err := p.parseOrderSpec()
			if err != nil {
				return nil, err
			}
			specs = append(specs, spec)
			if p.peek().Kind == tComma {
				p.pos++
				continue
			}
			break
		}
	}
	if p.peek().Kind == tLimit {
		p.pos++
		tok := p.peek()
		n, convErr := strconv.Atoi(tok.Literal)
		if tok.Kind != tWord || convErr != nil {
			return nil, &ParseError{Offset: tok.Offset, Message: "expected integer after limit"}
		}
		p.pos++
		limit = n
	}

	if p.peek().Kind != tEOF {
		return nil, &ParseError{Offset: p.peek().Offset, Message: "unexpected trailing input: " + p.peek().Literal}
	}

	if len(specs) > 0 || limit > 0 {
		return OrderByAndLimitExpr{Child: expr, OrderSpecs: specs, Limit: limit}, nil
	}
	return expr, nil
}

// Fallback builds the degraded bare-words fulltext expression used
// when Parse fails in fulltext mode.
func Fallback(input string) Expr {
	tokens := tokenizeBareWords(input)
	return NoteContentFulltextExpr{Tokens: tokens, Op: OpContainsAll}
}

func tokenizeBareWords(input string) []string {
	var out []string
	for _, tok := range lex(input) {
		if tok.Kind == tWord || tok.Kind == tString {
			out = append(out, tok.Literal)
		}
	}
	return out
}

func (p *parser) peek() token {
	return p.toks[p.pos]
}

func (p *parser) peekAt(off int) token {
	idx := p.pos + off
	if idx >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[idx]
}

func (p *parser) parseOrderSpec() (OrderSpec, error) {
	tok := p.peek()
	if tok.Kind != tWord {
		return OrderSpec{}, &ParseError{Offset: tok.Offset, Message: "expected property name in orderBy"}
	}
	parts := []string{tok.Literal}
	p.pos++
	for p.peek().Kind == tDot {
		p.pos++
		next := p.peek()
		if next.Kind != tWord {
			return OrderSpec{}, &ParseError{Offset: next.Offset, Message: "expected identifier after '.'"}
		}
		parts = append(parts, next.Literal)
		p.pos++
	}
	desc := false
	if p.peek().Kind == tAsc {
		p.pos++
	} else if p.peek().Kind == tDesc {
		desc = true
		p.pos++
	}
	return OrderSpec{Property: strings.Join(parts, "."), Desc: desc}, nil
}

// parseClauses handles the left-to-right AND/OR chain. Both operators
// share precedence in the grammar, so this folds strictly left to
// right rather than grouping by operator.
func (p *parser) parseClauses() (Expr, *ParseError) {
	left, err := p.parseClause()
	if err != nil {
		return nil, err
	}
	for {
		switch p.peek().Kind {
		case tAnd:
			p.pos++
			right, err := p.parseClause()
			if err != nil {
				return nil, err
			}
			left = AndExpr{Children: []Expr{left, right}}
		case tOr:
			p.pos++
			right, err := p.parseClause()
			if err != nil {
				return nil, err
			}
			left = OrExpr{Children: []Expr{left, right}}
		default:
			return left, nil
		}
	}
}

func (p *parser) parseClause() (Expr, *ParseError) {
	tok := p.peek()

	if tok.Kind == tWord && strings.EqualFold(tok.Literal, "not") && p.peekAt(1).Kind == tLParen {
		p.pos += 2
		inner, err := p.parseClauses()
		if err != nil {
			return nil, err
		}
		if p.peek().Kind != tRParen {
			return nil, &ParseError{Offset: p.peek().Offset, Message: "expected ')' to close not("}
		}
		p.pos++
		return NotExpr{Child: inner}, nil
	}

	if tok.Kind == tLParen {
		p.pos++
		inner, err := p.parseClauses()
		if err != nil {
			return nil, err
		}
		if p.peek().Kind != tRParen {
			return nil, &ParseError{Offset: p.peek().Offset, Message: "expected ')'"}
		}
		p.pos++
		return inner, nil
	}

	switch tok.Kind {
	case tHash:
		return p.parseLabelAtom()
	case tHashBang:
		p.pos++
		name := p.peek()
		if name.Kind != tWord {
			return nil, &ParseError{Offset: name.Offset, Message: "expected label name after #!"}
		}
		p.pos++
		return AttributeExistsExpr{AttrType: "label", Name: name.Literal, Negated: true}, nil
	case tTilde:
		return p.parseRelationAtom(false)
	case tTildeBang:
		return p.parseRelationAtom(true)
	}

	if tok.Kind == tWord && strings.EqualFold(tok.Literal, "note") && p.peekAt(1).Kind == tDot {
		return p.parsePropertyAtom()
	}

	return p.parseBareWords()
}

func (p *parser) parseLabelAtom() (Expr, *ParseError) {
	p.pos++ // consume '#'
	name := p.peek()
	if name.Kind != tWord {
		return nil, &ParseError{Offset: name.Offset, Message: "expected label name after #"}
	}
	p.pos++
	if p.peek().Kind == tOp {
		op := Op(p.peek().Literal)
		p.pos++
		val, err := p.parseValueToken()
		if err != nil {
			return nil, err
		}
		return LabelComparisonExpr{Name: name.Literal, Op: op, Value: val}, nil
	}
	return AttributeExistsExpr{AttrType: "label", Name: name.Literal}, nil
}

func (p *parser) parseRelationAtom(negated bool) (Expr, *ParseError) {
	p.pos++ // consume '~' or '~!'
	name := p.peek()
	if name.Kind != tWord {
		return nil, &ParseError{Offset: name.Offset, Message: "expected relation name after '~'"}
	}
	p.pos++

	if negated {
		return AttributeExistsExpr{AttrType: "relation", Name: name.Literal, Negated: true}, nil
	}

	var pathParts []string
	for p.peek().Kind == tDot {
		p.pos++
		next := p.peek()
		if next.Kind != tWord {
			return nil, &ParseError{Offset: next.Offset, Message: "expected identifier after '.'"}
		}
		pathParts = append(pathParts, next.Literal)
		p.pos++
	}

	var op Op
	var val string
	if p.peek().Kind == tOp {
		op = Op(p.peek().Literal)
		p.pos++
		v, err := p.parseValueToken()
		if err != nil {
			return nil, err
		}
		val = v
	}

	if len(pathParts) == 0 {
		if op == OpNone {
			return AttributeExistsExpr{AttrType: "relation", Name: name.Literal}, nil
		}
		return ScopeExpr{Scope: ScopeRelation, RelationName: name.Literal,
			Sub: PropertyComparisonExpr{Property: "title", Op: op, Value: val}}, nil
	}
	return ScopeExpr{Scope: ScopeRelation, RelationName: name.Literal, Sub: resolvePropPath(pathParts, op, val)}, nil
}

func (p *parser) parsePropertyAtom() (Expr, *ParseError) {
	p.pos++ // consume 'note'
	p.pos++ // consume '.'

	first := p.peek()
	if first.Kind != tWord {
		return nil, &ParseError{Offset: first.Offset, Message: "expected property name after 'note.'"}
	}
	parts := []string{first.Literal}
	p.pos++
	for p.peek().Kind == tDot {
		p.pos++
		next := p.peek()
		if next.Kind != tWord {
			return nil, &ParseError{Offset: next.Offset, Message: "expected identifier after '.'"}
		}
		parts = append(parts, next.Literal)
		p.pos++
	}

	var op Op
	var val string
	if p.peek().Kind == tOp {
		op = Op(p.peek().Literal)
		p.pos++
		v, err := p.parseValueToken()
		if err != nil {
			return nil, err
		}
		val = v
	}

	return resolvePropPath(parts, op, val), nil
}

func (p *parser) parseValueToken() (string, *ParseError) {
	tok := p.peek()
	if tok.Kind != tWord && tok.Kind != tString {
		return "", &ParseError{Offset: tok.Offset, Message: "expected value after operator"}
	}
	p.pos++
	return tok.Literal, nil
}

// parseBareWords consumes a run of plain-text tokens as a fulltext
// clause. It stops at anything that is not a plain word or string.
// Adjacency without AND/OR isn't legal in the grammar, so a mixed query
// like "foo #author=Tolkien" ends the run at '#' and Parse reports the
// trailing atom as a parse error; "foo AND #author=Tolkien" parses.
func (p *parser) parseBareWords() (Expr, *ParseError) {
	if p.structured {
		tok := p.peek()
		return nil, &ParseError{Offset: tok.Offset, Message: "expected a structured expression, found '" + tok.Literal + "'"}
	}

	var words []string
	for {
		tok := p.peek()
		if tok.Kind != tWord && tok.Kind != tString {
			break
		}
		if tok.Kind == tWord {
			lower := strings.ToLower(tok.Literal)
			if lower == "and" || lower == "or" || lower == "not" {
				break
			}
		}
		words = append(words, tok.Literal)
		p.pos++
	}
	if len(words) == 0 {
		tok := p.peek()
		return nil, &ParseError{Offset: tok.Offset, Message: "expected an expression, found '" + tok.Literal + "'"}
	}
	return NoteContentFulltextExpr{Tokens: words, Op: OpContainsAll}, nil
}
