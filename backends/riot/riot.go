// Package riotbackend indexes documents into riot engines, one engine per
// model root hierarchy. Indexing operations are funneled through a small
// pool of worker goroutines so that callers never block on engine writes.
package riotbackend

import (
	"encoding/gob"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/go-ego/riot"
	"github.com/go-ego/riot/types"

	"model-search/schema"
	"model-search/search"
)

const (
	allDocsLabel = "."  // carried by every doc, matches everything
	modelLabel   = "m:" // + model name, one per ancestry step
	fieldToken   = "f:" // + field name + ":" + token
)

func init() {
	gob.Register(storedFields{})
	search.Register("riot", New)
}

// storedFields is the document payload kept by the engine: the coerced
// field values plus the model name and id under reserved keys.
type storedFields map[string]interface{}

const (
	metaModel = "_model"
	metaID    = "_id"
)

// New builds a riot backend. Recognized params:
//
//	"store-path": directory for persistent engine storage; absent means
//	              memory-only engines
//	"shards":     number of storage shards per engine
func New(reg *schema.Registry, params map[string]interface{}) (*search.Backend, error) {
	storePath, _ := params["store-path"].(string)
	shards := 0
	if v, ok := params["shards"].(float64); ok {
		shards = int(v)
	}

	p := &provider{
		reg:       reg,
		storePath: storePath,
		shards:    shards,
		engines:   map[string]*riotIndex{},
	}
	return search.NewBackend(reg, p), nil
}

type provider struct {
	reg       *schema.Registry
	storePath string
	shards    int

	lock    sync.Mutex
	engines map[string]*riotIndex
}

func (p *provider) Name() string { return "riot" }

func (p *provider) HandlesOrderByExpressions() bool { return false }

// Engine writes go through the async worker pool; failures there must not
// take the caller down.
func (p *provider) CatchIndexingErrors() bool { return true }

func (p *provider) IndexForModel(m *schema.Model) search.Index {
	key := m.Root().Name

	p.lock.Lock()
	defer p.lock.Unlock()
	if x, ok := p.engines[key]; ok {
		return x
	}
	x := &riotIndex{key: key, p: p}
	p.engines[key] = x
	return x
}

func (p *provider) Executor(c *search.Compiler, partial bool) (search.Executor, error) {
	if partial {
		return nil, search.ErrAutocompleteNotSupported
	}
	x, ok := p.IndexForModel(c.Model()).(*riotIndex)
	if !ok {
		return nil, fmt.Errorf("no riot engine for model %s", c.Model().Name)
	}
	return &executor{p: p, x: x}, nil
}

type riotIndex struct {
	key string
	p   *provider

	lock   sync.Mutex
	engine *riot.Engine
}

func (x *riotIndex) Key() string { return x.key }

func (x *riotIndex) ensure() (*riot.Engine, error) {
	x.lock.Lock()
	defer x.lock.Unlock()
	if x.engine != nil {
		return x.engine, nil
	}
	if !running() {
		return nil, fmt.Errorf("the riot workers are stopped")
	}

	engine := &riot.Engine{}
	opts := types.EngineOpts{
		NotUseGse: true,
	}
	if x.p.storePath != "" {
		opts.UseStore = true
		opts.StoreEngine = "bg"
		opts.StoreFolder = filepath.Join(x.p.storePath, x.key)
		if x.p.shards > 0 {
			opts.NumShards = x.p.shards
		}
	}
	engine.Init(opts)
	engine.Flush()
	trackEngine(x.key, engine)

	x.engine = engine
	return engine, nil
}

func (x *riotIndex) AddModel(m *schema.Model) error { return nil }

// Refresh enqueues a flush and waits for the workers to apply it, making
// earlier writes visible to searches.
func (x *riotIndex) Refresh() error {
	engine, err := x.ensure()
	if err != nil {
		return err
	}
	done := make(chan struct{})
	if !enqueue(&engineOp{op: opFlush, engine: engine, done: done}) {
		return fmt.Errorf("the riot workers are stopped")
	}
	<-done
	return nil
}

func (x *riotIndex) Reset() error {
	x.lock.Lock()
	defer x.lock.Unlock()
	if x.engine != nil {
		old := x.engine
		x.engine = nil
		untrackEngine(x.key)
		go old.Close()
	}
	return nil
}

func (x *riotIndex) AddItem(doc schema.Document) error {
	m := x.p.reg.Model(doc.Model)
	if m == nil {
		return fmt.Errorf("model %s is not indexed", doc.Model)
	}
	return x.AddItems(m, []schema.Document{doc})
}

func (x *riotIndex) AddItems(m *schema.Model, docs []schema.Document) error {
	engine, err := x.ensure()
	if err != nil {
		return err
	}

	for _, doc := range docs {
		docID, data, err := buildDocData(x.p.reg, m, doc)
		if err != nil {
			return err
		}
		if !enqueue(&engineOp{op: opIndex, engine: engine, docID: docID, doc: data}) {
			return fmt.Errorf("the riot workers are stopped")
		}
	}
	return nil
}

func (x *riotIndex) DeleteItem(doc schema.Document) error {
	engine, err := x.ensure()
	if err != nil {
		return err
	}
	if !enqueue(&engineOp{op: opDelete, engine: engine, docID: doc.Model + "/" + doc.ID}) {
		return fmt.Errorf("the riot workers are stopped")
	}
	return nil
}

// buildDocData coerces the document and lays out its index tokens: bare
// tokens and field-qualified tokens for every search field, plus the
// ancestry labels used for hierarchy scoping.
func buildDocData(reg *schema.Registry, m *schema.Model, doc schema.Document) (string, *types.DocData, error) {
	if doc.ID == "" {
		return "", nil, fmt.Errorf("document of model %s has no id", doc.Model)
	}

	stored := storedFields{metaModel: doc.Model, metaID: doc.ID}
	tokens := []types.TokenData{}
	loc := 0

	for name, raw := range doc.Fields {
		field := m.Field(name)
		if field == nil {
			continue
		}
		v, err := field.ToNativeValue(raw)
		if err != nil {
			return "", nil, fmt.Errorf("field %s of %s/%s: %v", name, doc.Model, doc.ID, err)
		}
		stored[name] = v

		if !field.Search {
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		for _, token := range tokenize(s) {
			tokens = append(tokens,
				types.TokenData{Text: token, Locations: []int{loc}},
				types.TokenData{Text: fieldToken + name + ":" + token, Locations: []int{loc + 1}})
			loc += 2
		}
		// gap between fields
		loc += 10
	}

	labels := []string{allDocsLabel}
	for cur := m; cur != nil; {
		labels = append(labels, modelLabel+cur.Name)
		if cur.Parent == "" {
			break
		}
		cur = reg.Model(cur.Parent)
	}

	count := mergeTokenLocs(tokens)
	return doc.Model + "/" + doc.ID, &types.DocData{
		Tokens: tokens[:count],
		Fields: stored,
		Labels: labels,
	}, nil
}

// mergeTokenLocs folds duplicate tokens into one entry, concatenating
// their locations, and returns the number of distinct tokens.
func mergeTokenLocs(tokens []types.TokenData) int {
	pos := make(map[string]int, len(tokens))
	count := 0
	for i := range tokens {
		token := &tokens[i]
		if j, ok := pos[token.Text]; ok {
			tokens[j].Locations = append(tokens[j].Locations, token.Locations...)
			continue
		}
		pos[token.Text] = count
		if count != i {
			tokens[count] = *token
		}
		count++
	}
	return count
}
