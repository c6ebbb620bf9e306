package schema

import (
	"testing"

	"github.com/stvp/assert"
)

func pageConf() *ModelConf {
	return &ModelConf{Name: "page", Fields: []Field{
		{Name: "title", Type: "string", Search: true, Partial: true},
		{Name: "published", Type: "date", Filter: true},
	}}
}

func TestRegisterDefaults(t *testing.T) {
	reg := NewRegistry()
	m, err := reg.Register(&ModelConf{Name: "page", Fields: []Field{
		{Name: "title", Search: true},
		{Name: "published", Type: "date", Filter: true},
		{Name: "updated", Type: "datetime", Filter: true},
	}})
	assert.Nil(t, err)

	// omitted type means string; date fields get a default layout
	assert.Equal(t, m.Field("title").Type, "string")
	assert.Equal(t, m.Field("published").TimeFmt, "2006-01-02")
	assert.Equal(t, m.Field("updated").TimeFmt, "2006-01-02 15:04:05")
}

func TestRegisterRejects(t *testing.T) {
	for _, conf := range []*ModelConf{
		{Name: "", Fields: []Field{{Name: "a"}}},
		{Name: "empty"},
		{Name: "dup", Fields: []Field{{Name: "a"}, {Name: "a"}}},
		{Name: "badtype", Fields: []Field{{Name: "a", Type: "decimal"}}},
		{Name: "partial", Fields: []Field{{Name: "a", Partial: true}}},
	} {
		reg := NewRegistry()
		if _, err := reg.Register(conf); err == nil {
			t.Errorf("conf %+v should be rejected", conf)
		}
	}

	reg := NewRegistry()
	_, err := reg.Register(pageConf())
	assert.Nil(t, err)
	_, err = reg.Register(pageConf())
	assert.NotNil(t, err) // duplicate model name

	_, err = reg.Register(&ModelConf{Name: "orphan", Parent: "nosuch", Fields: []Field{{Name: "a"}}})
	assert.NotNil(t, err) // parent must be registered first
}

func TestRootAndDescends(t *testing.T) {
	reg := NewRegistry()
	page, err := reg.Register(pageConf())
	assert.Nil(t, err)
	article, err := reg.Register(&ModelConf{Name: "article", Parent: "page", Fields: []Field{
		{Name: "title", Search: true},
	}})
	assert.Nil(t, err)
	news, err := reg.Register(&ModelConf{Name: "news", Parent: "article", Fields: []Field{
		{Name: "title", Search: true},
	}})
	assert.Nil(t, err)
	event, err := reg.Register(&ModelConf{Name: "event", Fields: []Field{
		{Name: "title", Search: true},
	}})
	assert.Nil(t, err)

	assert.Equal(t, page.Root().Name, "page")
	assert.Equal(t, article.Root().Name, "page")
	assert.Equal(t, news.Root().Name, "page")
	assert.Equal(t, event.Root().Name, "event")

	assert.Equal(t, reg.Descends(news, page), true)
	assert.Equal(t, reg.Descends(news, article), true)
	assert.Equal(t, reg.Descends(page, page), true)
	assert.Equal(t, reg.Descends(page, news), false)
	assert.Equal(t, reg.Descends(event, page), false)
	assert.Equal(t, reg.Descends(nil, page), false)
}

func TestFieldRoles(t *testing.T) {
	reg := NewRegistry()
	m, err := reg.Register(&ModelConf{Name: "book", Fields: []Field{
		{Name: "title", Search: true, Partial: true},
		{Name: "body", Search: true},
		{Name: "rating", Type: "float", Filter: true},
	}})
	assert.Nil(t, err)

	assert.NotNil(t, m.SearchField("title"))
	assert.Nil(t, m.SearchField("rating"))
	assert.NotNil(t, m.FilterField("rating"))
	assert.Nil(t, m.FilterField("title"))
	assert.Nil(t, m.Field("nosuch"))

	assert.Equal(t, len(m.SearchFields()), 2)
	assert.Equal(t, len(m.FilterFields()), 1)
	assert.Equal(t, len(m.PartialFields()), 1)
}
