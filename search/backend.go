package search

import (
	"fmt"
	"log"
	"strings"

	"model-search/query"
	"model-search/schema"
)

// Index is one physical storage partition managed by a backend. A backend
// may run a single shared index or one index per model root; either way,
// routing by document must agree with routing by the document's model.
type Index interface {
	// Key uniquely identifies this index within its backend.
	Key() string

	// AddModel performs any configuration needed before documents of the
	// model can be indexed.
	AddModel(m *schema.Model) error

	// Refresh makes every item added before the call visible to searches
	// issued after it returns.
	Refresh() error

	// Reset empties the index.
	Reset() error

	AddItem(doc schema.Document) error
	AddItems(m *schema.Model, docs []schema.Document) error
	DeleteItem(doc schema.Document) error
}

// NullIndex is the zero-cost Index for backends that keep no store of
// their own. Every operation is a no-op.
type NullIndex struct {
	key string
}

func NewNullIndex(key string) NullIndex {
	if key == "" {
		key = "default"
	}
	return NullIndex{key: key}
}

func (i NullIndex) Key() string                                     { return i.key }
func (i NullIndex) AddModel(*schema.Model) error                    { return nil }
func (i NullIndex) Refresh() error                                  { return nil }
func (i NullIndex) Reset() error                                    { return nil }
func (i NullIndex) AddItem(schema.Document) error                   { return nil }
func (i NullIndex) AddItems(*schema.Model, []schema.Document) error { return nil }
func (i NullIndex) DeleteItem(schema.Document) error                { return nil }

// Provider is what a backend implementation supplies. The generic engine
// wraps a Provider into a Backend, adding index routing, multiplexed
// maintenance operations and the search entry points with their
// empty-search short-circuits.
type Provider interface {
	Name() string

	// IndexForModel returns the index responsible for the model. It must
	// be deterministic: repeated calls for the same model return key-equal
	// indexes.
	IndexForModel(m *schema.Model) Index

	// Executor builds the execution hooks for one checked compiler.
	// partial selects autocomplete (partial word) matching; providers
	// without that capability return ErrAutocompleteNotSupported.
	Executor(c *Compiler, partial bool) (Executor, error)

	// HandlesOrderByExpressions declares whether complex order-by
	// expressions are accepted (and handled) rather than rejected.
	HandlesOrderByExpressions() bool

	// CatchIndexingErrors declares the indexing-error policy: when true,
	// indexing failures are logged and swallowed so that one index's
	// failure never blocks the others. Appropriate for backends talking
	// to an external, best-effort service.
	CatchIndexingErrors() bool
}

// SearchOptions carry the optional parameters of a search call.
type SearchOptions struct {
	// Fields restricts free-text matching to the named search fields.
	Fields []string

	// Operator combines multiple terms of a raw query string ("and"/"or",
	// default "or").
	Operator string

	// OrderByRelevance orders results by backend relevance, ignoring the
	// scope's order-by terms. This is the default for nil options.
	OrderByRelevance bool
}

func defaultSearchOptions() *SearchOptions {
	return &SearchOptions{OrderByRelevance: true}
}

// Backend is the entry point for all indexing and search operations of one
// configured backend.
type Backend struct {
	registry *schema.Registry
	provider Provider
}

func NewBackend(reg *schema.Registry, p Provider) *Backend {
	return &Backend{registry: reg, provider: p}
}

func (b *Backend) Name() string               { return b.provider.Name() }
func (b *Backend) Registry() *schema.Registry { return b.registry }

// IndexForModel returns the index responsible for the named model.
func (b *Backend) IndexForModel(m *schema.Model) Index {
	return b.provider.IndexForModel(m)
}

// IndexForDocument routes a document to the index of its declared model.
func (b *Backend) IndexForDocument(doc schema.Document) (Index, error) {
	m := b.registry.Model(doc.Model)
	if m == nil {
		return nil, fmt.Errorf("model %s is not indexed", doc.Model)
	}
	return b.provider.IndexForModel(m), nil
}

// AllIndexes enumerates the indexes of every indexed model, deduplicated
// by key.
func (b *Backend) AllIndexes() []Index {
	seen := map[string]bool{}
	res := []Index{}
	for _, m := range b.registry.Models() {
		idx := b.provider.IndexForModel(m)
		if key := idx.Key(); !seen[key] {
			seen[key] = true
			res = append(res, idx)
		}
	}
	return res
}

// RefreshAll refreshes every index of this backend.
func (b *Backend) RefreshAll() error {
	return b.eachIndex("refresh", Index.Refresh)
}

// ResetAll empties every index of this backend.
func (b *Backend) ResetAll() error {
	return b.eachIndex("reset", Index.Reset)
}

func (b *Backend) eachIndex(opName string, op func(Index) error) error {
	for _, idx := range b.AllIndexes() {
		if err := op(idx); err != nil {
			if !b.provider.CatchIndexingErrors() {
				return err
			}
			log.Printf("[error] %s of index %s failed: %v\n", opName, idx.Key(), err)
		}
	}
	return nil
}

// Add indexes a single document.
func (b *Backend) Add(doc schema.Document) error {
	idx, err := b.IndexForDocument(doc)
	if err != nil {
		return err
	}
	return b.maybeCatch(idx.AddItem(doc))
}

// AddBulk indexes multiple documents of the same model.
func (b *Backend) AddBulk(model string, docs []schema.Document) error {
	m := b.registry.Model(model)
	if m == nil {
		return fmt.Errorf("model %s is not indexed", model)
	}
	return b.maybeCatch(b.provider.IndexForModel(m).AddItems(m, docs))
}

// Delete removes a single document from its index.
func (b *Backend) Delete(doc schema.Document) error {
	idx, err := b.IndexForDocument(doc)
	if err != nil {
		return err
	}
	return b.maybeCatch(idx.DeleteItem(doc))
}

func (b *Backend) maybeCatch(err error) error {
	if err == nil || !b.provider.CatchIndexingErrors() {
		return err
	}
	log.Printf("[error] indexing via backend %s failed: %v\n", b.provider.Name(), err)
	return nil
}

// Search performs a whole-word search. q is either a raw query string or a
// query.Query. A scope naming an unindexed model, or a raw query that is
// empty or whitespace-only, yields an empty result set with no backend
// call. Validation errors surface here, before any backend I/O.
func (b *Backend) Search(q interface{}, scope Scope, opts *SearchOptions) (*Results, error) {
	return b.search(q, scope, opts, false)
}

// Autocomplete performs a partial-word search with the same contract as
// Search. Backends without the capability return
// ErrAutocompleteNotSupported.
func (b *Backend) Autocomplete(q interface{}, scope Scope, opts *SearchOptions) (*Results, error) {
	return b.search(q, scope, opts, true)
}

func (b *Backend) search(q interface{}, scope Scope, opts *SearchOptions, partial bool) (*Results, error) {
	if opts == nil {
		opts = defaultSearchOptions()
	}

	model := b.registry.Model(scope.Model)
	if model == nil {
		return EmptyResults(), nil
	}

	qq, empty := normalizeQuery(q, opts.Operator)
	if empty {
		return EmptyResults(), nil
	}

	c := newCompiler(model, scope, qq, compilerConf{
		fields:              opts.Fields,
		orderByRelevance:    opts.OrderByRelevance,
		handlesOrderByExprs: b.provider.HandlesOrderByExpressions(),
	})
	if err := c.Check(); err != nil {
		return nil, err
	}

	exec, err := b.provider.Executor(c, partial)
	if err != nil {
		return nil, err
	}
	return NewResults(c, exec), nil
}

// normalizeQuery turns the accepted query forms into a query.Query and
// reports whether the request is provably empty. Only the empty/whitespace
// string is engine-level empty; "*" is left to backend policy.
func normalizeQuery(q interface{}, operator string) (query.Query, bool) {
	switch v := q.(type) {
	case nil:
		return &query.MatchAll{}, false
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, true
		}
		return query.Text(v, operator), false
	case query.Query:
		if pt, ok := v.(*query.PlainText); ok && len(pt.Terms) == 0 {
			return nil, true
		}
		return v, false
	default:
		return query.Text(fmt.Sprintf("%v", q), operator), false
	}
}
