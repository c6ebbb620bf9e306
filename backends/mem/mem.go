// Package mem is the in-process search backend. It keeps one shared
// inverted index for all models and serves as the default backend when no
// external engine is configured.
package mem

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru"

	"model-search/schema"
	"model-search/search"
)

const defaultCacheSize = 128

func init() {
	search.Register("mem", New)
}

// New builds a mem backend. Recognized params:
//
//	"cache-size": number of compiled-query results kept in the LRU cache
func New(reg *schema.Registry, params map[string]interface{}) (*search.Backend, error) {
	size := defaultCacheSize
	if v, ok := params["cache-size"]; ok {
		f, ok := v.(float64)
		if !ok || int(f) <= 0 {
			return nil, fmt.Errorf("cache-size must be a positive number, got %v", v)
		}
		size = int(f)
	}

	cache, err := lru.New(size)
	if err != nil {
		return nil, err
	}

	p := &provider{reg: reg, cache: cache}
	p.idx = newMemIndex("default", p)
	return search.NewBackend(reg, p), nil
}

type provider struct {
	reg   *schema.Registry
	idx   *memIndex
	cache *lru.Cache
}

func (p *provider) Name() string { return "mem" }

func (p *provider) IndexForModel(m *schema.Model) search.Index { return p.idx }

func (p *provider) HandlesOrderByExpressions() bool { return false }

func (p *provider) CatchIndexingErrors() bool { return false }

func (p *provider) Executor(c *search.Compiler, partial bool) (search.Executor, error) {
	return &executor{p: p, partial: partial}, nil
}

// posting-map key prefixes
const (
	termKey    = "t:" // whole terms of search fields
	fieldKey   = "f:" // field-qualified terms, "f:<field>:<term>"
	partialKey = "p:" // terms of partial-matching fields
)

type docEntry struct {
	doc  schema.Document
	keys []string // posting keys this document was filed under
}

// memIndex is a single inverted index shared by every model of the
// backend. Mutations take the write lock; searches run under the read
// lock, so indexing never corrupts concurrent reads.
type memIndex struct {
	key string
	p   *provider

	lock     sync.RWMutex
	docs     map[string]*docEntry
	postings map[string]map[string]float64 // posting key -> doc key -> weight
}

func newMemIndex(key string, p *provider) *memIndex {
	return &memIndex{
		key:      key,
		p:        p,
		docs:     map[string]*docEntry{},
		postings: map[string]map[string]float64{},
	}
}

func docKey(doc schema.Document) string {
	return doc.Model + "/" + doc.ID
}

func (x *memIndex) Key() string { return x.key }

func (x *memIndex) AddModel(m *schema.Model) error { return nil }

// Refresh is a visibility no-op: writes are published under the lock as
// they happen. The result cache is dropped so post-refresh searches never
// serve a stale compiled query.
func (x *memIndex) Refresh() error {
	x.p.cache.Purge()
	return nil
}

func (x *memIndex) Reset() error {
	x.lock.Lock()
	x.docs = map[string]*docEntry{}
	x.postings = map[string]map[string]float64{}
	x.lock.Unlock()
	x.p.cache.Purge()
	return nil
}

func (x *memIndex) AddItem(doc schema.Document) error {
	m := x.p.reg.Model(doc.Model)
	if m == nil {
		return fmt.Errorf("model %s is not indexed", doc.Model)
	}
	return x.AddItems(m, []schema.Document{doc})
}

func (x *memIndex) AddItems(m *schema.Model, docs []schema.Document) error {
	entries := make([]*docEntry, 0, len(docs))
	for _, doc := range docs {
		e, err := buildEntry(m, doc)
		if err != nil {
			return err
		}
		entries = append(entries, e)
	}

	x.lock.Lock()
	for _, e := range entries {
		key := docKey(e.doc)
		if old, ok := x.docs[key]; ok {
			x.dropPostings(key, old)
		}
		x.docs[key] = e
		weights := entryWeights(m, e.doc)
		for pk, w := range weights {
			docsOf, ok := x.postings[pk]
			if !ok {
				docsOf = map[string]float64{}
				x.postings[pk] = docsOf
			}
			docsOf[key] = w
			e.keys = append(e.keys, pk)
		}
	}
	x.lock.Unlock()

	x.p.cache.Purge()
	return nil
}

func (x *memIndex) DeleteItem(doc schema.Document) error {
	key := docKey(doc)

	x.lock.Lock()
	if e, ok := x.docs[key]; ok {
		x.dropPostings(key, e)
		delete(x.docs, key)
	}
	x.lock.Unlock()

	x.p.cache.Purge()
	return nil
}

func (x *memIndex) dropPostings(key string, e *docEntry) {
	for _, pk := range e.keys {
		if docsOf, ok := x.postings[pk]; ok {
			delete(docsOf, key)
			if len(docsOf) == 0 {
				delete(x.postings, pk)
			}
		}
	}
}

// buildEntry coerces the document's fields to their declared types.
// Unknown fields are dropped; they are not part of the model.
func buildEntry(m *schema.Model, doc schema.Document) (*docEntry, error) {
	if doc.ID == "" {
		return nil, fmt.Errorf("document of model %s has no id", doc.Model)
	}

	fields := make(map[string]interface{}, len(doc.Fields))
	for name, value := range doc.Fields {
		field := m.Field(name)
		if field == nil {
			continue
		}
		v, err := field.ToNativeValue(value)
		if err != nil {
			return nil, fmt.Errorf("field %s of %s/%s: %v", name, doc.Model, doc.ID, err)
		}
		fields[name] = v
	}

	return &docEntry{doc: schema.Document{Model: doc.Model, ID: doc.ID, Fields: fields}}, nil
}

// entryWeights analyzes the document's search fields into weighted posting
// keys: whole terms, field-qualified terms, and partial-field terms.
func entryWeights(m *schema.Model, doc schema.Document) map[string]float64 {
	weights := map[string]float64{}
	add := func(key string, w float64) {
		weights[key] += w
	}

	for _, field := range m.SearchFields() {
		s, ok := doc.Fields[field.Name].(string)
		if !ok {
			continue
		}
		boost := field.Boost
		if boost == 0 {
			boost = 1
		}
		for _, token := range tokenize(s) {
			add(termKey+token, boost)
			add(fieldKey+field.Name+":"+token, boost)
			if field.Partial {
				add(partialKey+token, boost)
			}
		}
	}
	return weights
}
