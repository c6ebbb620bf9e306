// free-text query representation, independent of any backend.
// A raw query string is normalized into a PlainText node; richer boolean
// combinations are built from And/Or/Not. MatchAll/MatchNone are explicit
// markers so that "search everything" is never spelled as an empty string.
package query

import (
	"strings"
)

const (
	OperatorAnd = "and"
	OperatorOr  = "or" // default term-combination operator
)

type Query interface {
	query()
}

// PlainText holds literal search terms combined with Operator.
type PlainText struct {
	Terms    []string
	Operator string
}

// And requires every subquery to match.
type And struct {
	Subqueries []Query
}

// Or requires at least one subquery to match.
type Or struct {
	Subqueries []Query
}

// Not inverts its subquery.
type Not struct {
	Subquery Query
}

// MatchAll matches every indexed document.
type MatchAll struct{}

// MatchNone matches nothing.
type MatchNone struct{}

func (*PlainText) query() {}
func (*And) query()       {}
func (*Or) query()        {}
func (*Not) query()       {}
func (*MatchAll) query()  {}
func (*MatchNone) query() {}

// Text normalizes a raw query string into a PlainText query. Terms are
// separated by whitespace; quoted phrases are kept as one term. A string
// with no terms yields a PlainText with an empty term list, which the
// engine treats as an empty search.
func Text(s, operator string) *PlainText {
	switch operator {
	case OperatorAnd, OperatorOr:
	default:
		operator = OperatorOr
	}
	return &PlainText{Terms: splitTerms(s), Operator: operator}
}

// splitTerms breaks a query string on whitespace, keeping quoted phrases
// together and stripping their quotes.
func splitTerms(s string) []string {
	hasQuote := false
	var quote rune

	fields := strings.FieldsFunc(s, func(ch rune) bool {
		switch ch {
		case '"', '\'', '`':
			if hasQuote {
				if quote == ch {
					hasQuote = false
				}
				return false
			}
			quote = ch
			hasQuote = true
			return false
		default:
			if hasQuote {
				return false
			}
			return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r'
		}
	})

	terms := []string{}
	for _, f := range fields {
		f = strings.Trim(f, `"'`+"`")
		if f != "" {
			terms = append(terms, f)
		}
	}
	return terms
}
