package blevebackend

import (
	"fmt"
	"time"

	"github.com/blevesearch/bleve/v2"
	bquery "github.com/blevesearch/bleve/v2/search/query"

	"model-search/schema"
	"model-search/search"
)

var incl = true

// filterProcessor translates condition trees into bleve queries against
// the keyword filter fields.
type filterProcessor struct{}

func (fp filterProcessor) ProcessMatchNone() interface{} {
	return bquery.Query(bleve.NewMatchNoneQuery())
}

func (fp filterProcessor) ConnectFilters(children []interface{}, conn string, negated bool) interface{} {
	qs := make([]bquery.Query, len(children))
	for i, c := range children {
		qs[i] = c.(bquery.Query)
	}

	var q bquery.Query
	if conn == search.ConnOr {
		q = bleve.NewDisjunctionQuery(qs...)
	} else {
		q = bleve.NewConjunctionQuery(qs...)
	}

	if negated {
		b := bleve.NewBooleanQuery()
		b.AddMust(bleve.NewMatchAllQuery())
		b.AddMustNot(q)
		q = b
	}
	return q
}

func (fp filterProcessor) ProcessLookup(field *schema.Field, op string, value interface{}) (interface{}, error) {
	switch op {
	case search.OpExact:
		return fp.exact(field, value)

	case search.OpLt, search.OpLte, search.OpGt, search.OpGte:
		v, err := field.ToNativeValue(value)
		if err != nil {
			return nil, lookupErr(field.Name, op, value, err)
		}
		return rangeQuery(field, op, v)

	case search.OpIn:
		list, ok := asList(value)
		if !ok {
			return nil, lookupErr(field.Name, op, value, fmt.Errorf("a list is expected"))
		}
		alts := make([]bquery.Query, 0, len(list))
		for _, raw := range list {
			q, err := fp.exact(field, raw)
			if err != nil {
				return nil, err
			}
			if q != nil {
				alts = append(alts, q.(bquery.Query))
			}
		}
		return bquery.Query(bleve.NewDisjunctionQuery(alts...)), nil

	case search.OpRange:
		list, ok := asList(value)
		if !ok || len(list) != 2 {
			return nil, lookupErr(field.Name, op, value, fmt.Errorf("a [lower, upper] pair is expected"))
		}
		lo, err := field.ToNativeValue(list[0])
		if err != nil {
			return nil, lookupErr(field.Name, op, value, err)
		}
		hi, err := field.ToNativeValue(list[1])
		if err != nil {
			return nil, lookupErr(field.Name, op, value, err)
		}
		return boundedRange(field, lo, hi)

	case search.OpContains:
		q := bleve.NewWildcardQuery("*" + fmt.Sprintf("%v", value) + "*")
		q.SetField(field.Name + filterSuffix)
		return bquery.Query(q), nil

	case search.OpStartsWith:
		q := bleve.NewPrefixQuery(fmt.Sprintf("%v", value))
		q.SetField(field.Name + filterSuffix)
		return bquery.Query(q), nil

	default:
		// isnull and anything else: not recognised
		return nil, nil
	}
}

func (fp filterProcessor) exact(field *schema.Field, value interface{}) (interface{}, error) {
	v, err := field.ToNativeValue(value)
	if err != nil {
		return nil, lookupErr(field.Name, search.OpExact, value, err)
	}
	bf := field.Name + filterSuffix

	switch val := v.(type) {
	case string:
		q := bleve.NewTermQuery(val)
		q.SetField(bf)
		return bquery.Query(q), nil
	case int64:
		f := float64(val)
		q := bleve.NewNumericRangeInclusiveQuery(&f, &f, &incl, &incl)
		q.SetField(bf)
		return bquery.Query(q), nil
	case float64:
		q := bleve.NewNumericRangeInclusiveQuery(&val, &val, &incl, &incl)
		q.SetField(bf)
		return bquery.Query(q), nil
	case bool:
		q := bleve.NewBoolFieldQuery(val)
		q.SetField(bf)
		return bquery.Query(q), nil
	case time.Time:
		q := bleve.NewDateRangeInclusiveQuery(val, val, &incl, &incl)
		q.SetField(bf)
		return bquery.Query(q), nil
	default:
		return nil, lookupErr(field.Name, search.OpExact, value, fmt.Errorf("unsupported value type %T", v))
	}
}

func rangeQuery(field *schema.Field, op string, v interface{}) (interface{}, error) {
	bf := field.Name + filterSuffix
	lower := op == search.OpGt || op == search.OpGte
	inclusive := op == search.OpLte || op == search.OpGte

	switch val := v.(type) {
	case int64:
		return numericRange(bf, float64(val), lower, inclusive), nil
	case float64:
		return numericRange(bf, val, lower, inclusive), nil
	case time.Time:
		var q *bquery.DateRangeQuery
		if lower {
			q = bleve.NewDateRangeInclusiveQuery(val, time.Time{}, &inclusive, nil)
		} else {
			q = bleve.NewDateRangeInclusiveQuery(time.Time{}, val, nil, &inclusive)
		}
		q.SetField(bf)
		return bquery.Query(q), nil
	case string:
		var q *bquery.TermRangeQuery
		if lower {
			q = bleve.NewTermRangeInclusiveQuery(val, "", &inclusive, nil)
		} else {
			q = bleve.NewTermRangeInclusiveQuery("", val, nil, &inclusive)
		}
		q.SetField(bf)
		return bquery.Query(q), nil
	default:
		// booleans have no meaningful order
		return nil, nil
	}
}

func numericRange(bf string, bound float64, lower, inclusive bool) bquery.Query {
	var q *bquery.NumericRangeQuery
	if lower {
		q = bleve.NewNumericRangeInclusiveQuery(&bound, nil, &inclusive, nil)
	} else {
		q = bleve.NewNumericRangeInclusiveQuery(nil, &bound, nil, &inclusive)
	}
	q.SetField(bf)
	return q
}

func boundedRange(field *schema.Field, lo, hi interface{}) (interface{}, error) {
	bf := field.Name + filterSuffix

	switch l := lo.(type) {
	case int64:
		h := float64(hi.(int64))
		f := float64(l)
		q := bleve.NewNumericRangeInclusiveQuery(&f, &h, &incl, &incl)
		q.SetField(bf)
		return bquery.Query(q), nil
	case float64:
		h := hi.(float64)
		q := bleve.NewNumericRangeInclusiveQuery(&l, &h, &incl, &incl)
		q.SetField(bf)
		return bquery.Query(q), nil
	case time.Time:
		q := bleve.NewDateRangeInclusiveQuery(l, hi.(time.Time), &incl, &incl)
		q.SetField(bf)
		return bquery.Query(q), nil
	case string:
		q := bleve.NewTermRangeInclusiveQuery(l, hi.(string), &incl, &incl)
		q.SetField(bf)
		return bquery.Query(q), nil
	default:
		return nil, lookupErr(field.Name, search.OpRange, lo, fmt.Errorf("unsupported value type %T", lo))
	}
}

func lookupErr(field, op string, value interface{}, err error) error {
	return &search.FilterError{Reason: fmt.Sprintf("%s__%s = %v: %v", field, op, value, err)}
}

func asList(v interface{}) ([]interface{}, bool) {
	switch list := v.(type) {
	case []interface{}:
		return list, true
	case []string:
		out := make([]interface{}, len(list))
		for i, s := range list {
			out[i] = s
		}
		return out, true
	default:
		return nil, false
	}
}
