// Package blevebackend indexes documents into bleve, one index per model
// root hierarchy. Filterable fields are indexed a second time under a
// "<name>_filter" keyword field, so exact matching and sorting never fight
// the full-text analyzer.
package blevebackend

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"

	"model-search/schema"
	"model-search/search"
)

const (
	modelField   = "_model" // ancestry of the document's model
	filterSuffix = "_filter"
)

func init() {
	search.Register("bleve", New)
}

// New builds a bleve backend. Recognized params:
//
//	"path": directory holding one bleve index per model root;
//	        empty or absent means memory-only indexes
func New(reg *schema.Registry, params map[string]interface{}) (*search.Backend, error) {
	path, _ := params["path"].(string)
	p := &provider{reg: reg, path: path, indexes: map[string]*bleveIndex{}}
	return search.NewBackend(reg, p), nil
}

type provider struct {
	reg  *schema.Registry
	path string

	lock    sync.Mutex
	indexes map[string]*bleveIndex
}

func (p *provider) Name() string { return "bleve" }

func (p *provider) HandlesOrderByExpressions() bool { return false }

func (p *provider) CatchIndexingErrors() bool { return false }

// IndexForModel routes every model of a hierarchy to its root's index.
func (p *provider) IndexForModel(m *schema.Model) search.Index {
	key := m.Root().Name

	p.lock.Lock()
	defer p.lock.Unlock()
	if x, ok := p.indexes[key]; ok {
		return x
	}
	x := &bleveIndex{key: key, p: p}
	p.indexes[key] = x
	return x
}

func (p *provider) Executor(c *search.Compiler, partial bool) (search.Executor, error) {
	x, ok := p.IndexForModel(c.Model()).(*bleveIndex)
	if !ok {
		return nil, fmt.Errorf("no bleve index for model %s", c.Model().Name)
	}
	return &executor{p: p, x: x, partial: partial}, nil
}

// ancestry lists the model's name and the names of all its ancestors, the
// values indexed under the _model field for hierarchy scoping.
func ancestry(reg *schema.Registry, m *schema.Model) []string {
	names := []string{}
	for cur := m; cur != nil; {
		names = append(names, cur.Name)
		if cur.Parent == "" {
			break
		}
		cur = reg.Model(cur.Parent)
	}
	return names
}

type bleveIndex struct {
	key string
	p   *provider

	lock sync.Mutex
	idx  bleve.Index
}

func (x *bleveIndex) Key() string { return x.key }

// ensure opens or creates the underlying bleve index.
func (x *bleveIndex) ensure() (bleve.Index, error) {
	x.lock.Lock()
	defer x.lock.Unlock()
	if x.idx != nil {
		return x.idx, nil
	}

	if x.p.path == "" {
		idx, err := bleve.NewMemOnly(x.buildMapping())
		if err != nil {
			return nil, fmt.Errorf("create in-memory index %s: %v", x.key, err)
		}
		x.idx = idx
		return idx, nil
	}

	dir := filepath.Join(x.p.path, x.key)
	idx, err := bleve.Open(dir)
	if err == bleve.ErrorIndexPathDoesNotExist {
		idx, err = bleve.New(dir, x.buildMapping())
	}
	if err != nil {
		return nil, fmt.Errorf("open index %s: %v", x.key, err)
	}
	x.idx = idx
	return idx, nil
}

// mapping builds the index mapping: keyword _model field, one typed
// mapping per known filter field of the hierarchy, dynamic defaults for
// the rest.
func (x *bleveIndex) buildMapping() *mapping.IndexMappingImpl {
	m := bleve.NewIndexMapping()
	m.DefaultMapping.AddFieldMappingsAt(modelField, bleve.NewKeywordFieldMapping())

	root := x.p.reg.Model(x.key)
	for _, model := range x.p.reg.Models() {
		if root == nil || !x.p.reg.Descends(model, root) {
			continue
		}
		for _, field := range model.FilterFields() {
			var fm *mapping.FieldMapping
			switch field.Type {
			case "int", "float":
				fm = bleve.NewNumericFieldMapping()
			case "bool":
				fm = bleve.NewBooleanFieldMapping()
			case "date", "datetime":
				fm = bleve.NewDateTimeFieldMapping()
			default:
				fm = bleve.NewKeywordFieldMapping()
			}
			m.DefaultMapping.AddFieldMappingsAt(field.Name+filterSuffix, fm)
		}
	}
	return m
}

func (x *bleveIndex) AddModel(m *schema.Model) error {
	// mappings are fixed at creation; later models rely on dynamic typing
	return nil
}

// Refresh is a no-op: bleve batches are visible once applied.
func (x *bleveIndex) Refresh() error { return nil }

func (x *bleveIndex) Reset() error {
	x.lock.Lock()
	defer x.lock.Unlock()

	if x.idx != nil {
		if err := x.idx.Close(); err != nil {
			return err
		}
		x.idx = nil
	}
	if x.p.path != "" {
		return os.RemoveAll(filepath.Join(x.p.path, x.key))
	}
	return nil
}

func (x *bleveIndex) AddItem(doc schema.Document) error {
	m := x.p.reg.Model(doc.Model)
	if m == nil {
		return fmt.Errorf("model %s is not indexed", doc.Model)
	}
	return x.AddItems(m, []schema.Document{doc})
}

func (x *bleveIndex) AddItems(m *schema.Model, docs []schema.Document) error {
	idx, err := x.ensure()
	if err != nil {
		return err
	}

	batch := idx.NewBatch()
	for _, doc := range docs {
		if doc.ID == "" {
			return fmt.Errorf("document of model %s has no id", doc.Model)
		}
		body, err := buildBody(x.p.reg, m, doc)
		if err != nil {
			return err
		}
		if err := batch.Index(doc.Model+"/"+doc.ID, body); err != nil {
			return err
		}
	}
	return idx.Batch(batch)
}

func (x *bleveIndex) DeleteItem(doc schema.Document) error {
	idx, err := x.ensure()
	if err != nil {
		return err
	}
	return idx.Delete(doc.Model + "/" + doc.ID)
}

// buildBody coerces the document's fields and lays them out for indexing:
// search fields under their own name, filter fields under the keyword
// variant, plus the model ancestry.
func buildBody(reg *schema.Registry, m *schema.Model, doc schema.Document) (map[string]interface{}, error) {
	body := map[string]interface{}{
		modelField: ancestry(reg, m),
	}
	for name, raw := range doc.Fields {
		field := m.Field(name)
		if field == nil {
			continue
		}
		v, err := field.ToNativeValue(raw)
		if err != nil {
			return nil, fmt.Errorf("field %s of %s/%s: %v", name, doc.Model, doc.ID, err)
		}
		if field.Search {
			body[name] = v
		}
		if field.Filter {
			body[name+filterSuffix] = v
		}
	}
	return body, nil
}
