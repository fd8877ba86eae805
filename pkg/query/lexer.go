package query

import "strings"

// tokenKind identifies what a lexeme is. The scanner is hand-written
// and rune-by-rune, matching the teacher's pkg/scanner/chunker.Tagger
// idiom rather than reaching for a parser-generator or combinator
// library the corpus never uses.
type tokenKind int

const (
	tEOF tokenKind = iota
	tWord
	tString
	tHash      // '#' immediately followed by an identifier: label-atom prefix
	tHashBang  // '#!'
	tModeHash  // standalone '#' (mode-switch marker, followed by space/EOF)
	tTilde     // '~'
	tTildeBang // '~!'
	tDot
	tLParen
	tRParen
	tComma
	tAnd
	tOr
	tNot
	tOrderBy
	tLimit
	tAsc
	tDesc
	tOp // any opValue operator lexeme; Literal holds the operator text
)

type token struct {
	Kind    tokenKind
	Literal string
	Offset  int
}

// opLexemes are tried longest-first so e.g. "*=*" isn't mis-split into
// "*=" + "*".
var opLexemes = []string{"*=*", "!=", "=*", "*=", "%=", ">=", "<=", "=", ">", "<"}

var keywords = map[string]tokenKind{
	"and":     tAnd,
	"or":      tOr,
	"orderby": tOrderBy,
	"limit":   tLimit,
	"asc":     tAsc,
	"desc":    tDesc,
}

// lex tokenizes the full input up front into a slice; the parser then
// walks it with an index, which keeps error-offset reporting simple.
func lex(input string) []token {
	var toks []token
	i := 0
	n := len(input)

	for i < n {
		c := input[i]

		if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			i++
			continue
		}

		start := i

		switch c {
		case '(':
			toks = append(toks, token{tLParen, "(", start})
			i++
			continue
		case ')':
			toks = append(toks, token{tRParen, ")", start})
			i++
			continue
		case ',':
			toks = append(toks, token{tComma, ",", start})
			i++
			continue
		case '.':
			toks = append(toks, token{tDot, ".", start})
			i++
			continue
		case '"', '\'':
			quote := c
			j := i + 1
			var sb strings.Builder
			for j < n && input[j] != quote {
				if input[j] == '\\' && j+1 < n && input[j+1] == quote {
					sb.WriteByte(quote)
					j += 2
					continue
				}
				sb.WriteByte(input[j])
				j++
			}
			toks = append(toks, token{tString, sb.String(), start})
			i = j + 1
			continue
		case '#':
			if i+1 < n && input[i+1] == '!' {
				toks = append(toks, token{tHashBang, "#!", start})
				i += 2
				continue
			}
			if i+1 >= n || input[i+1] == ' ' || input[i+1] == '\t' {
				toks = append(toks, token{tModeHash, "#", start})
				i++
				continue
			}
			toks = append(toks, token{tHash, "#", start})
			i++
			continue
		case '~':
			if i+1 < n && input[i+1] == '!' {
				toks = append(toks, token{tTildeBang, "~!", start})
				i += 2
				continue
			}
			toks = append(toks, token{tTilde, "~", start})
			i++
			continue
		}

		if lexeme, ok := matchOp(input, i); ok {
			toks = append(toks, token{tOp, lexeme, start})
			i += len(lexeme)
			continue
		}

		// word run: everything up to whitespace, a paren/comma/dot, or
		// the start of '#'/'~'/an operator.
		j := i
		for j < n {
			ch := input[j]
			if ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' ||
				ch == '(' || ch == ')' || ch == ',' || ch == '.' ||
				ch == '#' || ch == '~' {
				break
			}
			if _, ok := matchOp(input, j); ok {
				break
			}
			j++
		}
		if j == i {
			// Operator-start char with no full match (stray '*', '!',
			// '%', '<', '>', '='); consume one rune so we make
			// progress instead of looping forever.
			j = i + 1
		}
		word := input[i:j]
		if kind, ok := keywords[strings.ToLower(word)]; ok {
			toks = append(toks, token{kind, word, start})
		} else {
			toks = append(toks, token{tWord, word, start})
		}
		i = j
	}

	toks = append(toks, token{tEOF, "", n})
	return toks
}

func matchOp(input string, pos int) (string, bool) {
	for _, lex := range opLexemes {
		if strings.HasPrefix(input[pos:], lex) {
			return lex, true
		}
	}
	return "", false
}
