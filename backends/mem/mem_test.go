package mem

import (
	"errors"
	"testing"

	"github.com/stvp/assert"

	"model-search/schema"
	"model-search/search"
)

func searchErrAs(err error, target interface{}) bool {
	return err != nil && errors.As(err, target)
}

func newTestBackend(t *testing.T) (*schema.Registry, *search.Backend) {
	t.Helper()
	reg := schema.NewRegistry()
	register := func(conf *schema.ModelConf) {
		if _, err := reg.Register(conf); err != nil {
			t.Fatalf("register %s: %v", conf.Name, err)
		}
	}
	register(&schema.ModelConf{Name: "page", Fields: []schema.Field{
		{Name: "title", Type: "string", Search: true, Partial: true, Boost: 2},
		{Name: "body", Type: "string", Search: true},
		{Name: "published", Type: "date", Filter: true},
	}})
	register(&schema.ModelConf{Name: "article", Parent: "page", Fields: []schema.Field{
		{Name: "title", Type: "string", Search: true, Partial: true, Boost: 2},
		{Name: "body", Type: "string", Search: true},
		{Name: "published", Type: "date", Filter: true},
		{Name: "author", Type: "string", Search: true, Filter: true},
	}})
	register(&schema.ModelConf{Name: "event", Fields: []schema.Field{
		{Name: "title", Type: "string", Search: true},
	}})

	b, err := New(reg, nil)
	assert.Nil(t, err)

	docs := []schema.Document{
		{Model: "page", ID: "1", Fields: map[string]interface{}{
			"title": "Golang tutorial", "published": "2020-06-01",
		}},
		{Model: "article", ID: "2", Fields: map[string]interface{}{
			"title": "Advanced Golang patterns", "author": "rob", "published": "2021-03-15",
		}},
		{Model: "article", ID: "3", Fields: map[string]interface{}{
			"title": "Python tutorial", "author": "guido", "published": "2020-01-10",
		}},
		{Model: "event", ID: "4", Fields: map[string]interface{}{
			"title": "Golang conference",
		}},
	}
	for _, doc := range docs {
		assert.Nil(t, b.Add(doc))
	}
	return reg, b
}

func ids(t *testing.T, rs *search.Results) []string {
	t.Helper()
	hits, err := rs.Items()
	assert.Nil(t, err)
	res := make([]string, len(hits))
	for i, hit := range hits {
		res[i] = hit.Doc.Model + "/" + hit.Doc.ID
	}
	return res
}

func sorted(in []string) map[string]bool {
	res := map[string]bool{}
	for _, s := range in {
		res[s] = true
	}
	return res
}

func TestSearchScoping(t *testing.T) {
	_, b := newTestBackend(t)

	// a root-model scope covers its specializations, not unrelated models
	rs, err := b.Search("golang", search.Scope{Model: "page"}, nil)
	assert.Nil(t, err)
	assert.Equal(t, sorted(ids(t, rs)), map[string]bool{"page/1": true, "article/2": true})

	rs, err = b.Search("golang", search.Scope{Model: "article"}, nil)
	assert.Nil(t, err)
	assert.Equal(t, ids(t, rs), []string{"article/2"})

	rs, err = b.Search("golang", search.Scope{Model: "event"}, nil)
	assert.Nil(t, err)
	assert.Equal(t, ids(t, rs), []string{"event/4"})

	n, err := rs.Count()
	assert.Nil(t, err)
	assert.Equal(t, n, 1)
}

func TestSearchOperators(t *testing.T) {
	_, b := newTestBackend(t)

	rs, err := b.Search("golang tutorial", search.Scope{Model: "page"}, &search.SearchOptions{
		Operator: "and", OrderByRelevance: true,
	})
	assert.Nil(t, err)
	assert.Equal(t, ids(t, rs), []string{"page/1"})

	rs, err = b.Search("golang tutorial", search.Scope{Model: "page"}, &search.SearchOptions{
		Operator: "or", OrderByRelevance: true,
	})
	assert.Nil(t, err)
	assert.Equal(t, len(ids(t, rs)), 3)
}

func TestSearchFieldRestriction(t *testing.T) {
	_, b := newTestBackend(t)

	rs, err := b.Search("rob", search.Scope{Model: "article"}, &search.SearchOptions{
		Fields: []string{"author"}, OrderByRelevance: true,
	})
	assert.Nil(t, err)
	assert.Equal(t, ids(t, rs), []string{"article/2"})

	// a non-search field cannot be a restriction
	_, err = b.Search("x", search.Scope{Model: "page"}, &search.SearchOptions{
		Fields: []string{"published"}, OrderByRelevance: true,
	})
	var sfe *search.SearchFieldError
	if !searchErrAs(err, &sfe) {
		t.Fatalf("search-field error expected, got %v", err)
	}
}

func TestSearchYearFilter(t *testing.T) {
	_, b := newTestBackend(t)

	rs, err := b.Search("tutorial", search.Scope{
		Model: "page",
		Cond:  &search.DatePart{Part: "year", Field: "published", Op: search.OpExact, Value: 2020},
	}, nil)
	assert.Nil(t, err)
	assert.Equal(t, sorted(ids(t, rs)), map[string]bool{"page/1": true, "article/3": true})

	rs, err = b.Search("tutorial", search.Scope{
		Model: "page",
		Cond:  &search.DatePart{Part: "year", Field: "published", Op: search.OpGte, Value: 2021},
	}, nil)
	assert.Nil(t, err)
	assert.Equal(t, len(ids(t, rs)), 0)
}

func TestSearchOrdering(t *testing.T) {
	_, b := newTestBackend(t)

	rs, err := b.Search(nil, search.Scope{
		Model:   "page",
		OrderBy: []search.OrderTerm{{Field: "-published"}},
	}, &search.SearchOptions{})
	assert.Nil(t, err)
	assert.Equal(t, ids(t, rs), []string{"article/2", "page/1", "article/3"})

	rs, err = b.Search(nil, search.Scope{
		Model:   "page",
		OrderBy: []search.OrderTerm{{Field: "published"}},
	}, &search.SearchOptions{})
	assert.Nil(t, err)
	assert.Equal(t, ids(t, rs), []string{"article/3", "page/1", "article/2"})
}

func TestSearchBoost(t *testing.T) {
	_, b := newTestBackend(t)

	extra := []schema.Document{
		{Model: "page", ID: "10", Fields: map[string]interface{}{
			"title": "weekly digest", "body": "all about rust",
		}},
		{Model: "page", ID: "11", Fields: map[string]interface{}{
			"title": "rust notes", "body": "nothing here",
		}},
	}
	for _, doc := range extra {
		assert.Nil(t, b.Add(doc))
	}

	// the boosted title match outranks the body match
	rs, err := b.Search("rust", search.Scope{Model: "page"}, nil)
	assert.Nil(t, err)
	assert.Equal(t, ids(t, rs), []string{"page/11", "page/10"})
}

func TestAutocomplete(t *testing.T) {
	_, b := newTestBackend(t)

	rs, err := b.Autocomplete("gol", search.Scope{Model: "page"}, nil)
	assert.Nil(t, err)
	assert.Equal(t, sorted(ids(t, rs)), map[string]bool{"page/1": true, "article/2": true})

	// whole-word search does not match prefixes
	rs, err = b.Search("gol", search.Scope{Model: "page"}, nil)
	assert.Nil(t, err)
	assert.Equal(t, len(ids(t, rs)), 0)
}

func TestFacet(t *testing.T) {
	_, b := newTestBackend(t)

	rs, err := b.Search("tutorial golang python", search.Scope{Model: "article"}, nil)
	assert.Nil(t, err)
	facets, err := rs.Facet("author")
	assert.Nil(t, err)
	assert.Equal(t, facets, map[string]int{"rob": 1, "guido": 1})

	_, err = rs.Facet("title")
	var ffe *search.FilterFieldError
	if !searchErrAs(err, &ffe) {
		t.Fatalf("filter-field error expected, got %v", err)
	}
}

func TestScoreAnnotation(t *testing.T) {
	_, b := newTestBackend(t)

	rs, err := b.Search("golang", search.Scope{Model: "article"}, nil)
	assert.Nil(t, err)
	hits, err := rs.AnnotateScore("_score").Items()
	assert.Nil(t, err)
	assert.Equal(t, len(hits), 1)
	score, ok := hits[0].Doc.Fields["_score"].(float64)
	assert.Equal(t, ok, true)
	if score <= 0 {
		t.Fatalf("positive score expected, got %v", score)
	}

	// the annotation never leaks into the unannotated result set
	hits, err = rs.Items()
	assert.Nil(t, err)
	_, ok = hits[0].Doc.Fields["_score"]
	assert.Equal(t, ok, false)
}

func TestDeleteAndReplace(t *testing.T) {
	_, b := newTestBackend(t)

	assert.Nil(t, b.Delete(schema.Document{Model: "article", ID: "2"}))
	rs, err := b.Search("golang", search.Scope{Model: "page"}, nil)
	assert.Nil(t, err)
	assert.Equal(t, ids(t, rs), []string{"page/1"})

	// re-adding a doc replaces its postings
	assert.Nil(t, b.Add(schema.Document{Model: "page", ID: "1", Fields: map[string]interface{}{
		"title": "Rust tutorial", "published": "2020-06-01",
	}}))
	rs, err = b.Search("golang", search.Scope{Model: "page"}, nil)
	assert.Nil(t, err)
	assert.Equal(t, len(ids(t, rs)), 0)
}

func TestReset(t *testing.T) {
	_, b := newTestBackend(t)

	assert.Nil(t, b.ResetAll())
	rs, err := b.Search("golang", search.Scope{Model: "page"}, nil)
	assert.Nil(t, err)
	assert.Equal(t, len(ids(t, rs)), 0)
}

func TestBadFieldValue(t *testing.T) {
	_, b := newTestBackend(t)

	err := b.Add(schema.Document{Model: "page", ID: "9", Fields: map[string]interface{}{
		"title": "x", "published": "June 2020",
	}})
	assert.NotNil(t, err)
}
