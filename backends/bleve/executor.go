package blevebackend

import (
	"fmt"
	"strings"
	"time"

	"github.com/blevesearch/bleve/v2"
	bquery "github.com/blevesearch/bleve/v2/search/query"

	"model-search/query"
	"model-search/schema"
	"model-search/search"
)

const facetLimit = 1000

type executor struct {
	p       *provider
	x       *bleveIndex
	partial bool
}

// build assembles the final bleve query: hierarchy scope AND free text AND
// the translated filter condition.
func (e *executor) build(c *search.Compiler) (bquery.Query, error) {
	scope := bleve.NewTermQuery(c.Model().Name)
	scope.SetField(modelField)

	text, err := e.textQuery(c, c.Query())
	if err != nil {
		return nil, err
	}

	parts := []bquery.Query{scope, text}

	translated, err := c.Translate(filterProcessor{})
	if err != nil {
		return nil, err
	}
	if translated != nil {
		parts = append(parts, translated.(bquery.Query))
	}
	return bleve.NewConjunctionQuery(parts...), nil
}

func (e *executor) textQuery(c *search.Compiler, q query.Query) (bquery.Query, error) {
	switch node := q.(type) {
	case *query.PlainText:
		parts := make([]bquery.Query, 0, len(node.Terms))
		for _, term := range node.Terms {
			parts = append(parts, e.termQuery(c, term))
		}
		if len(parts) == 0 {
			return bleve.NewMatchNoneQuery(), nil
		}
		if node.Operator == query.OperatorAnd {
			return bleve.NewConjunctionQuery(parts...), nil
		}
		return bleve.NewDisjunctionQuery(parts...), nil

	case *query.And:
		parts, err := e.textQueries(c, node.Subqueries)
		if err != nil {
			return nil, err
		}
		return bleve.NewConjunctionQuery(parts...), nil

	case *query.Or:
		parts, err := e.textQueries(c, node.Subqueries)
		if err != nil {
			return nil, err
		}
		return bleve.NewDisjunctionQuery(parts...), nil

	case *query.Not:
		sub, err := e.textQuery(c, node.Subquery)
		if err != nil {
			return nil, err
		}
		b := bleve.NewBooleanQuery()
		b.AddMust(bleve.NewMatchAllQuery())
		b.AddMustNot(sub)
		return b, nil

	case *query.MatchAll:
		return bleve.NewMatchAllQuery(), nil

	case *query.MatchNone:
		return bleve.NewMatchNoneQuery(), nil

	default:
		return nil, fmt.Errorf("unknown query node %T", q)
	}
}

func (e *executor) textQueries(c *search.Compiler, subs []query.Query) ([]bquery.Query, error) {
	parts := make([]bquery.Query, 0, len(subs))
	for _, sub := range subs {
		p, err := e.textQuery(c, sub)
		if err != nil {
			return nil, err
		}
		parts = append(parts, p)
	}
	return parts, nil
}

// termQuery matches one term. Partial searches use prefix queries over the
// model's partial fields; whole-word searches use match queries, phrase
// queries for quoted multi-word terms.
func (e *executor) termQuery(c *search.Compiler, term string) bquery.Query {
	fields := c.Fields()

	if e.partial {
		if len(fields) == 0 {
			for _, f := range c.Model().PartialFields() {
				fields = append(fields, f.Name)
			}
		}
		parts := make([]bquery.Query, 0, len(fields))
		for _, f := range fields {
			q := bleve.NewPrefixQuery(strings.ToLower(term))
			q.SetField(f)
			parts = append(parts, q)
		}
		if len(parts) == 0 {
			return bleve.NewMatchNoneQuery()
		}
		return bleve.NewDisjunctionQuery(parts...)
	}

	if len(fields) == 0 {
		if strings.ContainsAny(term, " \t") {
			return bleve.NewMatchPhraseQuery(term)
		}
		return bleve.NewMatchQuery(term)
	}

	parts := make([]bquery.Query, 0, len(fields))
	for _, f := range fields {
		var q bquery.Query
		if strings.ContainsAny(term, " \t") {
			pq := bleve.NewMatchPhraseQuery(term)
			pq.SetField(f)
			q = pq
		} else {
			mq := bleve.NewMatchQuery(term)
			mq.SetField(f)
			q = mq
		}
		parts = append(parts, q)
	}
	return bleve.NewDisjunctionQuery(parts...)
}

func (e *executor) DoSearch(c *search.Compiler, start, stop int, scoreField string) ([]search.Hit, error) {
	idx, err := e.x.ensure()
	if err != nil {
		return nil, err
	}
	q, err := e.build(c)
	if err != nil {
		return nil, err
	}

	if start < 0 {
		start = 0
	}
	size := 0
	if stop >= 0 {
		size = stop - start
	} else {
		total, err := e.total(idx, q)
		if err != nil {
			return nil, err
		}
		size = total - start
	}
	if size <= 0 {
		return []search.Hit{}, nil
	}

	req := bleve.NewSearchRequestOptions(q, size, start, false)
	req.Fields = []string{"*"}
	req.SortBy(e.sortOrder(c))

	res, err := idx.Search(req)
	if err != nil {
		return nil, err
	}

	hits := make([]search.Hit, 0, len(res.Hits))
	for _, hit := range res.Hits {
		doc, ok := e.docFromHit(hit.ID, hit.Fields)
		if !ok {
			continue
		}
		if scoreField != "" {
			doc.Fields[scoreField] = hit.Score
		}
		hits = append(hits, search.Hit{Doc: doc, Score: hit.Score})
	}
	return hits, nil
}

func (e *executor) DoCount(c *search.Compiler, start, stop int) (int, error) {
	idx, err := e.x.ensure()
	if err != nil {
		return 0, err
	}
	q, err := e.build(c)
	if err != nil {
		return 0, err
	}
	total, err := e.total(idx, q)
	if err != nil {
		return 0, err
	}

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

// DoFacet counts results grouped by a filterable field, using a terms
// facet on the keyword variant of the field.
func (e *executor) DoFacet(c *search.Compiler, fieldName string) (map[string]int, error) {
	field := c.Model().FilterField(fieldName)
	if field == nil {
		return nil, &search.FilterFieldError{FieldName: fieldName, Model: c.Model().Name}
	}

	idx, err := e.x.ensure()
	if err != nil {
		return nil, err
	}
	q, err := e.build(c)
	if err != nil {
		return nil, err
	}

	req := bleve.NewSearchRequestOptions(q, 0, 0, false)
	req.AddFacet(fieldName, bleve.NewFacetRequest(field.Name+filterSuffix, facetLimit))

	res, err := idx.Search(req)
	if err != nil {
		return nil, err
	}

	out := map[string]int{}
	if fr, ok := res.Facets[fieldName]; ok && fr.Terms != nil {
		for _, tf := range fr.Terms.Terms() {
			out[tf.Term] = tf.Count
		}
	}
	return out, nil
}

func (e *executor) total(idx bleve.Index, q bquery.Query) (int, error) {
	req := bleve.NewSearchRequestOptions(q, 0, 0, false)
	res, err := idx.Search(req)
	if err != nil {
		return 0, err
	}
	return int(res.Total), nil
}

func (e *executor) sortOrder(c *search.Compiler) []string {
	orderings, err := c.Ordering()
	if err != nil || len(orderings) == 0 {
		return []string{"-_score"}
	}

	order := make([]string, len(orderings))
	for i, ord := range orderings {
		name := ord.Field.Name + filterSuffix
		if ord.Desc {
			name = "-" + name
		}
		order[i] = name
	}
	return order
}

// docFromHit rebuilds a document from a hit's stored fields. The hit's id
// carries the concrete model name.
func (e *executor) docFromHit(id string, stored map[string]interface{}) (schema.Document, bool) {
	i := strings.Index(id, "/")
	if i < 0 {
		return schema.Document{}, false
	}
	modelName, docID := id[:i], id[i+1:]
	m := e.p.reg.Model(modelName)
	if m == nil {
		return schema.Document{}, false
	}

	fields := map[string]interface{}{}
	for i := range m.Fields {
		field := &m.Fields[i]
		raw, ok := stored[field.Name]
		if !ok {
			raw, ok = stored[field.Name+filterSuffix]
		}
		if !ok {
			continue
		}
		if v, err := storedValue(field, raw); err == nil {
			fields[field.Name] = v
		}
	}
	return schema.Document{Model: modelName, ID: docID, Fields: fields}, true
}

// storedValue coerces a value read back from bleve, which returns
// datetimes as RFC 3339 strings and repeated fields as slices.
func storedValue(field *schema.Field, raw interface{}) (interface{}, error) {
	if list, ok := raw.([]interface{}); ok {
		if len(list) == 0 {
			return nil, fmt.Errorf("empty stored value")
		}
		raw = list[0]
	}

	switch field.Type {
	case "date", "datetime":
		if s, ok := raw.(string); ok {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				return t.UTC(), nil
			}
		}
		return field.ToNativeValue(raw)
	default:
		return field.ToNativeValue(raw)
	}
}
