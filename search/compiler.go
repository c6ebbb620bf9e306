package search

import (
	"strings"

	"model-search/query"
	"model-search/schema"
)

// Scope names the model to search and the structured constraints that came
// with the request: an optional filter condition tree and an ordering
// specification.
type Scope struct {
	Model   string
	Cond    Cond
	OrderBy []OrderTerm
}

// OrderTerm is one entry of an ordering specification. A plain field name
// goes in Field, optionally prefixed with "-" for descending. A non-empty
// Expr marks a complex ordering expression the core cannot validate; only
// backends declaring HandlesOrderByExpressions accept those.
type OrderTerm struct {
	Field string
	Expr  string
}

// Ordering is one validated order-by entry.
type Ordering struct {
	Desc  bool
	Field *schema.Field
}

// Compiler holds one validated search request: the model scope, the
// free-text query, an optional search-field restriction and the ordering
// mode. It performs no querying itself; execution happens when the Results
// wrapping it are consumed.
type Compiler struct {
	model            *schema.Model
	scope            Scope
	query            query.Query
	fields           []string
	orderByRelevance bool

	// set from the backend's declared capability
	handlesOrderByExprs bool
}

type compilerConf struct {
	fields              []string
	orderByRelevance    bool
	handlesOrderByExprs bool
}

func newCompiler(model *schema.Model, scope Scope, q query.Query, conf compilerConf) *Compiler {
	return &Compiler{
		model:               model,
		scope:               scope,
		query:               q,
		fields:              conf.fields,
		orderByRelevance:    conf.orderByRelevance,
		handlesOrderByExprs: conf.handlesOrderByExprs,
	}
}

func (c *Compiler) Model() *schema.Model   { return c.model }
func (c *Compiler) Scope() Scope           { return c.scope }
func (c *Compiler) Query() query.Query     { return c.query }
func (c *Compiler) Fields() []string       { return c.fields }
func (c *Compiler) OrderByRelevance() bool { return c.orderByRelevance }

// Check validates the whole request and reports the first failure:
// the search-field restriction, then the filter condition tree, then the
// ordering specification. It is idempotent and performs no backend calls.
func (c *Compiler) Check() error {
	for _, fieldName := range c.fields {
		if c.model.SearchField(fieldName) == nil {
			return &SearchFieldError{FieldName: fieldName, Model: c.model.Name}
		}
	}

	if _, err := c.Translate(nil); err != nil {
		return err
	}

	if _, err := c.Ordering(); err != nil {
		return err
	}
	return nil
}

// Ordering resolves the scope's order-by terms against the model's filter
// fields. With order-by-relevance set it returns nil: relevance ordering is
// the backend's default and needs no validation.
func (c *Compiler) Ordering() ([]Ordering, error) {
	if c.orderByRelevance {
		return nil, nil
	}

	var res []Ordering
	for _, term := range c.scope.OrderBy {
		if term.Expr != "" {
			if c.handlesOrderByExprs {
				// backend-specific, skipped here
				continue
			}
			return nil, &OrderByFieldError{FieldName: term.Expr, Model: c.model.Name}
		}

		name := term.Field
		desc := false
		if strings.HasPrefix(name, "-") {
			desc = true
			name = name[1:]
		}

		field := c.model.FilterField(name)
		if field == nil {
			return nil, &OrderByFieldError{FieldName: name, Model: c.model.Name}
		}
		res = append(res, Ordering{Desc: desc, Field: field})
	}
	return res, nil
}
