package mem

import (
	"fmt"
	"sort"
	"strings"

	"model-search/query"
	"model-search/search"
)

type executor struct {
	p       *provider
	partial bool
}

func (e *executor) DoSearch(c *search.Compiler, start, stop int, scoreField string) ([]search.Hit, error) {
	hits, err := e.run(c)
	if err != nil {
		return nil, err
	}

	lo, hi := window(len(hits), start, stop)
	out := make([]search.Hit, hi-lo)
	copy(out, hits[lo:hi])

	if scoreField != "" {
		for i := range out {
			fields := make(map[string]interface{}, len(out[i].Doc.Fields)+1)
			for k, v := range out[i].Doc.Fields {
				fields[k] = v
			}
			fields[scoreField] = out[i].Score
			out[i].Doc.Fields = fields
		}
	}
	return out, nil
}

func (e *executor) DoCount(c *search.Compiler, start, stop int) (int, error) {
	hits, err := e.run(c)
	if err != nil {
		return 0, err
	}
	lo, hi := window(len(hits), start, stop)
	return hi - lo, nil
}

// DoFacet counts matched documents grouped by a filterable field's value.
func (e *executor) DoFacet(c *search.Compiler, fieldName string) (map[string]int, error) {
	field := c.Model().FilterField(fieldName)
	if field == nil {
		return nil, &search.FilterFieldError{FieldName: fieldName, Model: c.Model().Name}
	}

	hits, err := e.run(c)
	if err != nil {
		return nil, err
	}

	res := map[string]int{}
	for _, hit := range hits {
		v, ok := hit.Doc.Fields[fieldName]
		if !ok || v == nil {
			continue
		}
		res[fmt.Sprintf("%v", field.FormatValue(v))]++
	}
	return res, nil
}

func window(total, start, stop int) (int, int) {
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
	return lo, hi
}

// run executes the compiled query in full, without windowing, so that one
// cache entry serves every slice of the same query.
func (e *executor) run(c *search.Compiler) ([]search.Hit, error) {
	key := cacheKey(c, e.partial)
	if cached, ok := e.p.cache.Get(key); ok {
		return cached.([]search.Hit), nil
	}

	translated, err := c.Translate(search.MatchProcessor{})
	if err != nil {
		return nil, err
	}
	var match search.Matcher
	if translated != nil {
		match = translated.(search.Matcher)
	}

	x := e.p.idx
	x.lock.RLock()
	defer x.lock.RUnlock()

	scores, err := x.evalQuery(c.Query(), c.Fields(), e.partial)
	if err != nil {
		return nil, err
	}

	scopeModel := c.Model()
	hits := []search.Hit{}
	for dk, score := range scores {
		entry, ok := x.docs[dk]
		if !ok {
			continue
		}
		docModel := e.p.reg.Model(entry.doc.Model)
		if !e.p.reg.Descends(docModel, scopeModel) {
			continue
		}
		if match != nil && !match(entry.doc.Fields) {
			continue
		}
		hits = append(hits, search.Hit{Doc: entry.doc, Score: score})
	}

	if err := e.order(c, hits); err != nil {
		return nil, err
	}

	e.p.cache.Add(key, hits)
	return hits, nil
}

func (e *executor) order(c *search.Compiler, hits []search.Hit) error {
	orderings, err := c.Ordering()
	if err != nil {
		return err
	}

	if len(orderings) == 0 {
		// relevance order, stable tie-break on identity
		sort.Slice(hits, func(i, j int) bool {
			if hits[i].Score != hits[j].Score {
				return hits[i].Score > hits[j].Score
			}
			return docKey(hits[i].Doc) < docKey(hits[j].Doc)
		})
		return nil
	}

	sort.Slice(hits, func(i, j int) bool {
		for _, ord := range orderings {
			cmp := search.CompareValues(hits[i].Doc.Fields[ord.Field.Name], hits[j].Doc.Fields[ord.Field.Name])
			if cmp == 0 {
				continue
			}
			if ord.Desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return docKey(hits[i].Doc) < docKey(hits[j].Doc)
	})
	return nil
}

// evalQuery walks the query tree against the postings. It returns matched
// doc keys with their accumulated weights. Callers hold the read lock.
func (x *memIndex) evalQuery(q query.Query, fields []string, partial bool) (map[string]float64, error) {
	switch node := q.(type) {
	case *query.PlainText:
		var res map[string]float64
		for i, term := range node.Terms {
			termScores := x.evalTerm(term, fields, partial)
			if i == 0 {
				res = termScores
			} else if node.Operator == query.OperatorAnd {
				res = intersectScores(res, termScores)
			} else {
				res = unionScores(res, termScores)
			}
		}
		if res == nil {
			res = map[string]float64{}
		}
		return res, nil

	case *query.And:
		var res map[string]float64
		for i, sub := range node.Subqueries {
			subScores, err := x.evalQuery(sub, fields, partial)
			if err != nil {
				return nil, err
			}
			if i == 0 {
				res = subScores
			} else {
				res = intersectScores(res, subScores)
			}
		}
		if res == nil {
			res = x.allDocs()
		}
		return res, nil

	case *query.Or:
		res := map[string]float64{}
		for _, sub := range node.Subqueries {
			subScores, err := x.evalQuery(sub, fields, partial)
			if err != nil {
				return nil, err
			}
			res = unionScores(res, subScores)
		}
		return res, nil

	case *query.Not:
		subScores, err := x.evalQuery(node.Subquery, fields, partial)
		if err != nil {
			return nil, err
		}
		res := map[string]float64{}
		for dk := range x.docs {
			if _, matched := subScores[dk]; !matched {
				res[dk] = 1
			}
		}
		return res, nil

	case *query.MatchAll:
		return x.allDocs(), nil

	case *query.MatchNone:
		return map[string]float64{}, nil

	default:
		return nil, fmt.Errorf("unknown query node %T", q)
	}
}

// evalTerm matches one term, which may be a quoted phrase of several
// tokens; all of a phrase's tokens must match.
func (x *memIndex) evalTerm(term string, fields []string, partial bool) map[string]float64 {
	tokens := tokenize(term)
	var res map[string]float64
	for i, token := range tokens {
		tokenScores := x.evalToken(token, fields, partial)
		if i == 0 {
			res = tokenScores
		} else {
			res = intersectScores(res, tokenScores)
		}
	}
	if res == nil {
		res = map[string]float64{}
	}
	return res
}

func (x *memIndex) evalToken(token string, fields []string, partial bool) map[string]float64 {
	if partial {
		var prefixes []string
		if len(fields) > 0 {
			for _, f := range fields {
				prefixes = append(prefixes, fieldKey+f+":"+token)
			}
		} else {
			prefixes = []string{partialKey + token}
		}

		res := map[string]float64{}
		for pk, docsOf := range x.postings {
			for _, prefix := range prefixes {
				if strings.HasPrefix(pk, prefix) {
					for dk, w := range docsOf {
						res[dk] += w
					}
					break
				}
			}
		}
		return res
	}

	res := map[string]float64{}
	if len(fields) > 0 {
		for _, f := range fields {
			for dk, w := range x.postings[fieldKey+f+":"+token] {
				res[dk] += w
			}
		}
	} else {
		for dk, w := range x.postings[termKey+token] {
			res[dk] += w
		}
	}
	return res
}

func (x *memIndex) allDocs() map[string]float64 {
	res := make(map[string]float64, len(x.docs))
	for dk := range x.docs {
		res[dk] = 1
	}
	return res
}

func intersectScores(a, b map[string]float64) map[string]float64 {
	res := map[string]float64{}
	for dk, w := range a {
		if bw, ok := b[dk]; ok {
			res[dk] = w + bw
		}
	}
	return res
}

func unionScores(a, b map[string]float64) map[string]float64 {
	res := make(map[string]float64, len(a)+len(b))
	for dk, w := range a {
		res[dk] = w
	}
	for dk, w := range b {
		res[dk] += w
	}
	return res
}

// cacheKey fingerprints a compiled query. Two equal fingerprints always
// describe the same query, so a cache hit can never serve wrong results.
func cacheKey(c *search.Compiler, partial bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "m=%s|p=%v|f=%s|r=%v", c.Model().Name, partial, strings.Join(c.Fields(), ","), c.OrderByRelevance())

	b.WriteString("|q=")
	queryRepr(&b, c.Query())

	scope := c.Scope()
	b.WriteString("|c=")
	condRepr(&b, scope.Cond)

	b.WriteString("|o=")
	for _, term := range scope.OrderBy {
		fmt.Fprintf(&b, "%s/%s;", term.Field, term.Expr)
	}
	return b.String()
}

func queryRepr(b *strings.Builder, q query.Query) {
	switch node := q.(type) {
	case nil:
		b.WriteString("nil")
	case *query.PlainText:
		fmt.Fprintf(b, "text(%s,%q)", node.Operator, node.Terms)
	case *query.And:
		b.WriteString("and(")
		for _, sub := range node.Subqueries {
			queryRepr(b, sub)
			b.WriteByte(',')
		}
		b.WriteByte(')')
	case *query.Or:
		b.WriteString("or(")
		for _, sub := range node.Subqueries {
			queryRepr(b, sub)
			b.WriteByte(',')
		}
		b.WriteByte(')')
	case *query.Not:
		b.WriteString("not(")
		queryRepr(b, node.Subquery)
		b.WriteByte(')')
	case *query.MatchAll:
		b.WriteString("all")
	case *query.MatchNone:
		b.WriteString("none")
	default:
		fmt.Fprintf(b, "%#v", q)
	}
}

func condRepr(b *strings.Builder, cond search.Cond) {
	switch node := cond.(type) {
	case nil:
		b.WriteString("nil")
	case *search.Comparison:
		fmt.Fprintf(b, "cmp(%s,%s,%v)", node.Field, node.Op, node.Value)
	case *search.DatePart:
		fmt.Fprintf(b, "part(%s,%s,%s,%v)", node.Part, node.Field, node.Op, node.Value)
	case *search.Group:
		fmt.Fprintf(b, "group(%s,%v,", node.Conn, node.Negated)
		for _, child := range node.Children {
			condRepr(b, child)
			b.WriteByte(',')
		}
		b.WriteByte(')')
	case *search.Nothing:
		b.WriteString("nothing")
	default:
		fmt.Fprintf(b, "%#v", cond)
	}
}
