// model schema definitions
// Format:
// {
//    "name": "book",
//    "parent": "",          // optional; names the model this one specializes
//    "fields": [
//        {
//            "name": "title",
//            "type": "string"|"int"|"float"|"bool"|"date"|"datetime",
//            "search": true,      // usable in free-text queries
//            "filter": true,      // usable in filters and order-by
//            "partial": true,     // usable in autocomplete (partial matching)
//            "boost": 2.0,        // optional relevance boost for search fields
//            "time-fmt": ""       // layout for date/datetime values
//        },
//        ...
//     ]
// }
package schema

import (
	"fmt"
	"sort"
	"sync"
)

var validTypes = map[string]bool{
	"string": true,
	"int":    true,
	"float":  true,
	"bool":   true,
	"date":   true, "datetime": true,
}

var defaultTimeLayouts = map[string]string{
	"date":     "2006-01-02",
	"datetime": "2006-01-02 15:04:05",
}

// Field declares one attribute of a model, with its capability roles.
// A field may be searchable (free-text), filterable (filters/order-by),
// both, or neither.
type Field struct {
	Name    string  `json:"name"`
	Type    string  `json:"type"`
	TimeFmt string  `json:"time-fmt,omitempty"`
	Search  bool    `json:"search"`
	Filter  bool    `json:"filter"`
	Partial bool    `json:"partial,omitempty"`
	Boost   float64 `json:"boost,omitempty"`
}

// ModelConf is the serialized form of a model definition.
type ModelConf struct {
	Name   string  `json:"name"`
	Parent string  `json:"parent,omitempty"`
	Fields []Field `json:"fields"`
}

// Model is a checked model definition bound to a registry.
type Model struct {
	*ModelConf

	fieldMap map[string]int
	root     *Model
}

// Field returns the named field, or nil.
func (m *Model) Field(name string) *Field {
	if i, ok := m.fieldMap[name]; ok {
		return &m.Fields[i]
	}
	return nil
}

// FilterField returns the named field if it is declared filterable, or nil.
func (m *Model) FilterField(name string) *Field {
	if f := m.Field(name); f != nil && f.Filter {
		return f
	}
	return nil
}

// SearchField returns the named field if it is declared searchable, or nil.
func (m *Model) SearchField(name string) *Field {
	if f := m.Field(name); f != nil && f.Search {
		return f
	}
	return nil
}

// SearchFields lists the searchable fields in declaration order.
func (m *Model) SearchFields() []*Field {
	res := []*Field{}
	for i := range m.Fields {
		if m.Fields[i].Search {
			res = append(res, &m.Fields[i])
		}
	}
	return res
}

// FilterFields lists the filterable fields in declaration order.
func (m *Model) FilterFields() []*Field {
	res := []*Field{}
	for i := range m.Fields {
		if m.Fields[i].Filter {
			res = append(res, &m.Fields[i])
		}
	}
	return res
}

// PartialFields lists the fields eligible for partial (autocomplete) matching.
func (m *Model) PartialFields() []*Field {
	res := []*Field{}
	for i := range m.Fields {
		if m.Fields[i].Partial {
			res = append(res, &m.Fields[i])
		}
	}
	return res
}

// Root returns the most general concrete ancestor of this model. A model
// with no parent is its own root.
func (m *Model) Root() *Model {
	return m.root
}

// Document is the indexable unit: one object of a model.
type Document struct {
	Model  string
	ID     string
	Fields map[string]interface{}
}

// Registry holds the set of indexed models. The root of every model is
// resolved once at registration time, so index routing stays O(1).
type Registry struct {
	lock   sync.RWMutex
	models map[string]*Model
}

func NewRegistry() *Registry {
	return &Registry{models: map[string]*Model{}}
}

// Register checks a model definition and adds it to the registry. A model
// naming a parent must be registered after its parent.
func (r *Registry) Register(conf *ModelConf) (*Model, error) {
	fm, err := checkModelConf(conf)
	if err != nil {
		return nil, err
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	if _, ok := r.models[conf.Name]; ok {
		return nil, fmt.Errorf("model %s already registered", conf.Name)
	}

	m := &Model{ModelConf: conf, fieldMap: fm}
	if conf.Parent == "" {
		m.root = m
	} else {
		parent, ok := r.models[conf.Parent]
		if !ok {
			return nil, fmt.Errorf("parent model %s of %s not registered", conf.Parent, conf.Name)
		}
		m.root = parent.root
	}

	r.models[conf.Name] = m
	return m, nil
}

// Unregister removes a model. Models that declare it as parent keep their
// already-resolved root.
func (r *Registry) Unregister(name string) {
	r.lock.Lock()
	delete(r.models, name)
	r.lock.Unlock()
}

// Model returns the registered model with the given name, or nil if the
// model is not indexed.
func (r *Registry) Model(name string) *Model {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.models[name]
}

// Models lists every indexed model, sorted by name.
func (r *Registry) Models() []*Model {
	r.lock.RLock()
	defer r.lock.RUnlock()

	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)

	res := make([]*Model, len(names))
	for i, name := range names {
		res[i] = r.models[name]
	}
	return res
}

// Descends reports whether model m is ancestor itself or one of its
// specializations.
func (r *Registry) Descends(m, ancestor *Model) bool {
	if m == nil || ancestor == nil {
		return false
	}

	r.lock.RLock()
	defer r.lock.RUnlock()

	for cur := m; cur != nil; {
		if cur.Name == ancestor.Name {
			return true
		}
		if cur.Parent == "" {
			return false
		}
		cur = r.models[cur.Parent]
	}
	return false
}

func checkModelConf(conf *ModelConf) (map[string]int, error) {
	if conf.Name == "" {
		return nil, fmt.Errorf("model name expected")
	}
	if len(conf.Fields) == 0 {
		return nil, fmt.Errorf("no fields found in model %s", conf.Name)
	}

	fm := make(map[string]int, len(conf.Fields))
	for i := range conf.Fields {
		field := &conf.Fields[i]
		if field.Name == "" {
			return nil, fmt.Errorf("no name for field #%d in model %s", i, conf.Name)
		}
		if fn, ok := fm[field.Name]; ok {
			return nil, fmt.Errorf("field name %s duplicated, field #%d,#%d are same", field.Name, fn, i)
		}

		switch field.Type {
		case "":
			field.Type = "string"
		case "date", "datetime":
			if field.TimeFmt == "" {
				field.TimeFmt = defaultTimeLayouts[field.Type]
			}
		default:
			if !validTypes[field.Type] {
				return nil, fmt.Errorf("invalid type name %s for field %s", field.Type, field.Name)
			}
		}

		if field.Partial && !field.Search {
			return nil, fmt.Errorf("field %s marked partial but not search", field.Name)
		}

		fm[field.Name] = i
	}
	return fm, nil
}
