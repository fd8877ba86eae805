package eval

import (
	"regexp"
	"strings"
	"time"

	"github.com/orsinium-labs/stopwords"

	"github.com/kittclouds/gokitt/pkg/graph"
	"github.com/kittclouds/gokitt/pkg/query"
	"github.com/kittclouds/gokitt/pkg/searchctx"
)

// stopwordChecker filters noise tokens ("the", "a", "of", ...) out of
// contains-token scoring so a common word doesn't inflate a match's
// rank the way a distinctive one should, mirroring the teacher's
// discovery.Registry use of the same library to gate candidate keys.
var stopwordChecker = stopwords.MustGet("en")

func isScorableToken(tok string) bool {
	return tok != "" && !stopwordChecker.Contains(strings.ToLower(tok))
}

// matchString applies op case-insensitively, matching §4.5's "string
// comparisons are case-insensitive" rule. %= compiles value as a
// regex and enforces ctx.Config.RegexMatchBudget per match; an
// out-of-budget match counts as non-matching rather than blocking
// evaluation (§4.5, §9).
func matchString(field string, op query.Op, value string, ctx *searchctx.Context) bool {
	lf := strings.ToLower(field)
	lv := strings.ToLower(value)
	switch op {
	case query.OpNone:
		return lf != ""
	case query.OpEq:
		return lf == lv
	case query.OpNotEq:
		return lf != lv
	case query.OpContainsAll:
		for _, tok := range strings.Fields(lv) {
			if !strings.Contains(lf, tok) {
				return false
			}
		}
		return true
	case query.OpStartsWith:
		return strings.HasPrefix(lf, lv)
	case query.OpEndsWith:
		return strings.HasSuffix(lf, lv)
	case query.OpRegex:
		return matchRegexBudgeted(field, value, ctx)
	default:
		return strings.Contains(lf, lv)
	}
}

func matchRegexBudgeted(field, pattern string, ctx *searchctx.Context) bool {
	re, err := regexp.Compile(pattern)
	if err != nil {
		ctx.AddError(searchctx.ErrKindRegexTimeout, "invalid regex: "+pattern)
		return false
	}

	budget := ctx.Config.RegexMatchBudget
	if budget <= 0 {
		budget = 100 * time.Millisecond
	}

	done := make(chan bool, 1)
	go func() { done <- re.MatchString(field) }()

	select {
	case result := <-done:
		return result
	case <-time.After(budget):
		ctx.AddError(searchctx.ErrKindRegexTimeout, "regex match exceeded budget: "+pattern)
		return false
	}
}

// titleScore scores a title match: exact (case-insensitive) +100,
// else +50 per contained token (§4.5).
func titleScore(title string, tokens []string) float64 {
	lower := strings.ToLower(title)
	if len(tokens) == 1 && lower == strings.ToLower(tokens[0]) {
		return 100.0
	}
	score := 0.0
	for _, t := range tokens {
		if !isScorableToken(t) {
			continue
		}
		if strings.Contains(lower, strings.ToLower(t)) {
			score += 50.0
		}
	}
	return score
}

func numericCompare(field float64, op query.Op, value float64) bool {
	switch op {
	case query.OpEq, query.OpNone:
		return field == value
	case query.OpNotEq:
		return field != value
	case query.OpGt:
		return field > value
	case query.OpGte:
		return field >= value
	case query.OpLt:
		return field < value
	case query.OpLte:
		return field <= value
	default:
		return field == value
	}
}

var numericProperties = map[string]func(c *graph.Cache, noteID string) int{
	"labelCount":          (*graph.Cache).LabelCount,
	"ownedLabelCount":     (*graph.Cache).OwnedLabelCount,
	"relationCount":       (*graph.Cache).RelationCount,
	"ownedRelationCount":  (*graph.Cache).OwnedRelationCount,
	"targetRelationCount": (*graph.Cache).TargetRelationCount,
	"attributeCount":      (*graph.Cache).AttributeCount,
	"ownedAttributeCount": (*graph.Cache).OwnedAttributeCount,
	"parentCount":         (*graph.Cache).ParentCount,
	"childrenCount":       (*graph.Cache).ChildrenCount,
}
