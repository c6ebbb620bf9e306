package rest

import (
	"testing"

	"github.com/stvp/assert"

	"model-search/search"
)

func TestParseF(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want search.Cond
	}{
		{"", nil},
		{"rating:4.5", &search.Comparison{Field: "rating", Op: search.OpExact, Value: "4.5"}},
		{"rating__gte:4.5", &search.Comparison{Field: "rating", Op: search.OpGte, Value: "4.5"}},
		{"pages:100~200", &search.Comparison{Field: "pages", Op: search.OpRange, Value: []interface{}{"100", "200"}}},
		{"pages:100~", &search.Comparison{Field: "pages", Op: search.OpGte, Value: "100"}},
		{"pages:~200", &search.Comparison{Field: "pages", Op: search.OpLte, Value: "200"}},
		{"author__in:rob,guido", &search.Comparison{Field: "author", Op: search.OpIn, Value: []interface{}{"rob", "guido"}}},
		{"author__isnull:true", &search.Comparison{Field: "author", Op: search.OpIsNull, Value: true}},
		{"published__year:2020", &search.DatePart{Part: "year", Field: "published", Op: search.OpExact, Value: "2020"}},
		{"published__year__gte:2020", &search.DatePart{Part: "year", Field: "published", Op: search.OpGte, Value: "2020"}},
		{
			// values of one segment are alternatives
			"author:rob,guido",
			&search.Group{Conn: search.ConnOr, Children: []search.Cond{
				&search.Comparison{Field: "author", Op: search.OpExact, Value: "rob"},
				&search.Comparison{Field: "author", Op: search.OpExact, Value: "guido"},
			}},
		},
		{
			// segments are combined with AND
			"rating__gte:4;author:rob",
			&search.Group{Conn: search.ConnAnd, Children: []search.Cond{
				&search.Comparison{Field: "rating", Op: search.OpGte, Value: "4"},
				&search.Comparison{Field: "author", Op: search.OpExact, Value: "rob"},
			}},
		},
		{
			// quoting keeps separators inside a value
			`title:"a;b,c"`,
			&search.Comparison{Field: "title", Op: search.OpExact, Value: "a;b,c"},
		},
	} {
		assert.Equal(t, parseF(tc.in), tc.want, tc.in)
	}
}

func TestParseOrder(t *testing.T) {
	assert.Equal(t, parseOrder(""), []search.OrderTerm(nil))
	assert.Equal(t, parseOrder("-rating,title"), []search.OrderTerm{
		{Field: "-rating"},
		{Field: "title"},
	})
	assert.Equal(t, parseOrder("lower(title)"), []search.OrderTerm{
		{Expr: "lower(title)"},
	})
}

func TestParseFields(t *testing.T) {
	assert.Equal(t, parseFields("title,body"), []string{"title", "body"})
	assert.Equal(t, parseFields(""), []string{})
}

func TestParsePaging(t *testing.T) {
	start, size := parsePaging("", "")
	assert.Equal(t, start, 0)
	assert.Equal(t, size, defaultPageSize)

	start, size = parsePaging("3", "10")
	assert.Equal(t, start, 20)
	assert.Equal(t, size, 10)

	// the page size is capped
	_, size = parsePaging("1", "100000")
	assert.Equal(t, size, maxPageSize)

	// nonsense falls back to the defaults
	start, size = parsePaging("x", "-5")
	assert.Equal(t, start, 0)
	assert.Equal(t, size, defaultPageSize)
}
