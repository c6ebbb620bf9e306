package riotbackend

import (
	"strings"
	"unicode"

	"github.com/go-ego/riot/types"

	"model-search/query"
	"model-search/schema"
	"model-search/search"
)

// cap on the ranked output when the caller sets no upper bound
const maxOutputs = 1000000

type executor struct {
	p *provider
	x *riotIndex
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// buildReq assembles the riot search request: ancestry label scoping, the
// flattened must/should/not-in token lists and the scoring criteria
// carrying filters and ordering.
func (e *executor) buildReq(c *search.Compiler, start, stop int) (*types.SearchReq, bool, error) {
	translated, err := c.Translate(search.MatchProcessor{})
	if err != nil {
		return nil, false, err
	}
	var match search.Matcher
	if translated != nil {
		match = translated.(search.Matcher)
	}

	orderings, err := c.Ordering()
	if err != nil {
		return nil, false, err
	}

	if start < 0 {
		start = 0
	}
	rows := maxOutputs
	if stop >= 0 {
		rows = stop - start
		if rows <= 0 {
			return nil, true, nil
		}
	}

	sr := &types.SearchReq{
		Labels: []string{modelLabel + c.Model().Name},
		Logic: types.Logic{
			Expr: types.Expr{
				Must:   []string{},
				Should: []string{},
				NotIn:  []string{},
			},
		},
		RankOpts: &types.RankOpts{
			ScoringCriteria: &scorer{
				match:     match,
				orderings: orderings,
				relevance: c.OrderByRelevance() || len(orderings) == 0,
			},
			OutputOffset: start,
			MaxOutputs:   rows,
		},
	}

	matchNone, err := flatten(c.Query(), c.Fields(), &sr.Logic.Expr)
	if err != nil {
		return nil, false, err
	}
	if matchNone {
		return nil, true, nil
	}

	sr.Logic.Must = len(sr.Logic.Expr.Must) > 0
	sr.Logic.Should = len(sr.Logic.Expr.Should) > 0
	sr.Logic.NotIn = len(sr.Logic.Expr.NotIn) > 0

	// a not-in needs something to subtract from
	if sr.Logic.NotIn && !sr.Logic.Must {
		sr.Logic.Must = true
		sr.Logic.Expr.Must = []string{allDocsLabel}
	}
	// no query tokens at all means match everything
	if !sr.Logic.Must && !sr.Logic.Should {
		sr.Tokens = []string{allDocsLabel}
	}
	return sr, false, nil
}

// flatten folds the query tree into riot's must/should/not-in lists. The
// engine has no nested boolean logic, so grouped subqueries collapse into
// the nearest list; term-level semantics are preserved, group-level ones
// approximated.
func flatten(q query.Query, fields []string, expr *types.Expr) (bool, error) {
	switch node := q.(type) {
	case *query.PlainText:
		tokens := queryTokens(node.Terms, fields)
		if node.Operator == query.OperatorAnd && len(fields) <= 1 {
			expr.Must = append(expr.Must, tokens...)
		} else {
			expr.Should = append(expr.Should, tokens...)
		}
		return false, nil

	case *query.And:
		for _, sub := range node.Subqueries {
			if none, err := flatten(sub, fields, expr); none || err != nil {
				return none, err
			}
		}
		return false, nil

	case *query.Or:
		for _, sub := range node.Subqueries {
			var subExpr types.Expr
			if none, err := flatten(sub, fields, &subExpr); err != nil {
				return false, err
			} else if none {
				continue
			}
			expr.Should = append(expr.Should, subExpr.Must...)
			expr.Should = append(expr.Should, subExpr.Should...)
			expr.NotIn = append(expr.NotIn, subExpr.NotIn...)
		}
		return false, nil

	case *query.Not:
		var subExpr types.Expr
		if none, err := flatten(node.Subquery, fields, &subExpr); err != nil {
			return false, err
		} else if none {
			return false, nil
		}
		expr.NotIn = append(expr.NotIn, subExpr.Must...)
		expr.NotIn = append(expr.NotIn, subExpr.Should...)
		return false, nil

	case *query.MatchAll:
		return false, nil

	case *query.MatchNone:
		return true, nil

	default:
		return false, &search.FilterError{Reason: "unknown query node"}
	}
}

func queryTokens(terms, fields []string) []string {
	res := []string{}
	for _, term := range terms {
		for _, token := range tokenize(term) {
			if len(fields) == 0 {
				res = append(res, token)
				continue
			}
			for _, f := range fields {
				res = append(res, fieldToken+f+":"+token)
			}
		}
	}
	return res
}

// scorer implements types.ScoringCriteria: it drops docs failing the
// translated filters and scores the rest, either by BM25 relevance or by
// the requested field ordering.
type scorer struct {
	match     search.Matcher
	orderings []search.Ordering
	relevance bool
}

func (s *scorer) Score(doc types.IndexedDoc, fields interface{}) []float32 {
	stored, ok := fields.(storedFields)
	if !ok {
		return []float32{}
	}
	if s.match != nil && !s.match(map[string]interface{}(stored)) {
		return []float32{}
	}

	if s.relevance {
		return []float32{float32(doc.BM25)}
	}

	out := make([]float32, len(s.orderings))
	for i, ord := range s.orderings {
		sc := valueScore(stored[ord.Field.Name], int(doc.BM25))
		if !ord.Desc && sc != 0 {
			// riot ranks by descending score
			sc = float32(1.0) / sc
		}
		out[i] = sc
	}
	return out
}

func valueScore(v interface{}, bm25 int) float32 {
	switch val := v.(type) {
	case nil:
		return 0
	case string:
		return float32(bm25)
	case int64:
		return float32(val)
	case float64:
		return float32(val)
	case bool:
		if val {
			return 2
		}
		return 1
	default:
		return 0
	}
}

func (e *executor) DoSearch(c *search.Compiler, start, stop int, scoreField string) ([]search.Hit, error) {
	engine, err := e.x.ensure()
	if err != nil {
		return nil, err
	}
	sr, none, err := e.buildReq(c, start, stop)
	if err != nil {
		return nil, err
	}
	if none {
		return []search.Hit{}, nil
	}

	resp := engine.Search(*sr)
	if resp.Docs == nil {
		return []search.Hit{}, nil
	}
	docs, ok := resp.Docs.(types.ScoredDocs)
	if !ok {
		return []search.Hit{}, nil
	}

	hits := make([]search.Hit, 0, len(docs))
	for _, scored := range docs {
		stored, ok := scored.Fields.(storedFields)
		if !ok {
			continue
		}
		doc, ok := docFromStored(stored)
		if !ok {
			continue
		}
		score := float64(0)
		if len(scored.Scores) > 0 {
			score = float64(scored.Scores[0])
		}
		if scoreField != "" {
			doc.Fields[scoreField] = score
		}
		hits = append(hits, search.Hit{Doc: doc, Score: score})
	}
	return hits, nil
}

func (e *executor) DoCount(c *search.Compiler, start, stop int) (int, error) {
	engine, err := e.x.ensure()
	if err != nil {
		return 0, err
	}
	sr, none, err := e.buildReq(c, 0, unboundedStop)
	if err != nil {
		return 0, err
	}
	if none {
		return 0, nil
	}
	sr.RankOpts.MaxOutputs = 1

	resp := engine.Search(*sr)
	total := resp.NumDocs

	hi := total
	if stop >= 0 && stop < total {
		hi = stop
	}
	lo := start
	if lo < 0 {
		lo = 0
	}
	if lo > hi {
		lo = hi
	}
	return hi - lo, nil
}

const unboundedStop = -1

func docFromStored(stored storedFields) (schema.Document, bool) {
	model, _ := stored[metaModel].(string)
	id, _ := stored[metaID].(string)
	if model == "" || id == "" {
		return schema.Document{}, false
	}

	fields := make(map[string]interface{}, len(stored))
	for k, v := range stored {
		if k == metaModel || k == metaID {
			continue
		}
		fields[k] = v
	}
	return schema.Document{Model: model, ID: id, Fields: fields}, true
}
