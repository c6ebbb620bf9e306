package search

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stvp/assert"

	"model-search/schema"
)

func bookModel(t *testing.T) *schema.Model {
	t.Helper()
	reg := schema.NewRegistry()
	m, err := reg.Register(&schema.ModelConf{
		Name: "book",
		Fields: []schema.Field{
			{Name: "title", Type: "string", Search: true, Partial: true, Boost: 2},
			{Name: "body", Type: "string", Search: true},
			{Name: "rating", Type: "float", Filter: true},
			{Name: "pages", Type: "int", Filter: true},
			{Name: "published", Type: "date", Filter: true},
			{Name: "available", Type: "bool", Filter: true},
		},
	})
	assert.Nil(t, err)
	return m
}

// reprProc records every lookup as a string, so tests can inspect the
// translated tree shape.
type reprProc struct{}

func (reprProc) ProcessLookup(field *schema.Field, op string, value interface{}) (interface{}, error) {
	if op == "bogus" {
		return nil, nil
	}
	if t, ok := value.(time.Time); ok {
		value = t.Format("2006-01-02")
	}
	return fmt.Sprintf("%s__%s=%v", field.Name, op, value), nil
}

func (reprProc) ProcessMatchNone() interface{} { return "none" }

func (reprProc) ConnectFilters(children []interface{}, conn string, negated bool) interface{} {
	parts := make([]string, len(children))
	for i, c := range children {
		parts[i] = c.(string)
	}
	s := conn + "(" + strings.Join(parts, ",") + ")"
	if negated {
		s = "not" + s
	}
	return s
}

func compile(m *schema.Model, cond Cond) *Compiler {
	return newCompiler(m, Scope{Model: m.Name, Cond: cond}, nil, compilerConf{orderByRelevance: true})
}

func TestTranslateComparison(t *testing.T) {
	m := bookModel(t)

	c := compile(m, &Comparison{Field: "rating", Op: OpGte, Value: 4.5})
	got, err := c.Translate(reprProc{})
	assert.Nil(t, err)
	assert.Equal(t, got, "rating__gte=4.5")
}

func TestTranslateGroup(t *testing.T) {
	m := bookModel(t)

	c := compile(m, &Group{
		Conn:    ConnOr,
		Negated: true,
		Children: []Cond{
			&Comparison{Field: "rating", Op: OpLt, Value: 2},
			&Comparison{Field: "available", Op: OpExact, Value: true},
		},
	})
	got, err := c.Translate(reprProc{})
	assert.Nil(t, err)
	assert.Equal(t, got, "notOR(rating__lt=2,available__exact=true)")
}

func TestTranslateNothing(t *testing.T) {
	m := bookModel(t)

	got, err := compile(m, &Nothing{}).Translate(reprProc{})
	assert.Nil(t, err)
	assert.Equal(t, got, "none")
}

func TestTranslateYearRewrite(t *testing.T) {
	m := bookModel(t)

	for _, tc := range []struct {
		op   string
		want string
	}{
		{OpGte, "published__gte=2020-01-01"},
		{OpGt, "published__gte=2021-01-01"},
		{OpLte, "published__lt=2021-01-01"},
		{OpLt, "published__lt=2020-01-01"},
		{OpExact, "AND(published__gte=2020-01-01,published__lt=2021-01-01)"},
	} {
		c := compile(m, &DatePart{Part: "year", Field: "published", Op: tc.op, Value: 2020})
		got, err := c.Translate(reprProc{})
		assert.Nil(t, err)
		assert.Equal(t, got, tc.want)
	}
}

func TestTranslateYearFromString(t *testing.T) {
	m := bookModel(t)

	c := compile(m, &DatePart{Part: "year", Field: "published", Op: OpGte, Value: "1999"})
	got, err := c.Translate(reprProc{})
	assert.Nil(t, err)
	assert.Equal(t, got, "published__gte=1999-01-01")
}

func TestTranslateUnsupportedDatePart(t *testing.T) {
	m := bookModel(t)

	_, err := compile(m, &DatePart{Part: "month", Field: "published", Op: OpExact, Value: 6}).Translate(reprProc{})
	var fe *FilterError
	if !asErr(err, &fe) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTranslatePtrFieldSkipped(t *testing.T) {
	m := bookModel(t)

	c := compile(m, &Group{
		Conn: ConnAnd,
		Children: []Cond{
			&Comparison{Field: "book_ptr_id", Op: OpExact, Value: 7},
			&Comparison{Field: "rating", Op: OpGte, Value: 4},
		},
	})
	got, err := c.Translate(reprProc{})
	assert.Nil(t, err)
	assert.Equal(t, got, "AND(rating__gte=4)")
}

func TestTranslateNonFilterField(t *testing.T) {
	m := bookModel(t)

	_, err := compile(m, &Comparison{Field: "title", Op: OpExact, Value: "x"}).Translate(reprProc{})
	var ffe *FilterFieldError
	if !asErr(err, &ffe) {
		t.Fatalf("unexpected error: %v", err)
	}

	// same failure with the validating (nil) processor
	_, err = compile(m, &Comparison{Field: "title", Op: OpExact, Value: "x"}).Translate(nil)
	if !asErr(err, &ffe) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTranslateUnknownLookup(t *testing.T) {
	m := bookModel(t)

	_, err := compile(m, &Comparison{Field: "rating", Op: "bogus", Value: 1}).Translate(reprProc{})
	var fe *FilterError
	if !asErr(err, &fe) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTranslateNilCond(t *testing.T) {
	m := bookModel(t)

	got, err := compile(m, nil).Translate(reprProc{})
	assert.Nil(t, err)
	assert.Nil(t, got)
}
