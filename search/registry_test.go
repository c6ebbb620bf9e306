package search

import (
	"fmt"
	"testing"

	"github.com/stvp/assert"

	"model-search/schema"
)

// the fake kind records the params each construction received
var fakeParams []map[string]interface{}

func init() {
	Register("fake", func(reg *schema.Registry, params map[string]interface{}) (*Backend, error) {
		fakeParams = append(fakeParams, params)
		return NewBackend(reg, &fakeProvider{}), nil
	})
	Register("broken", func(reg *schema.Registry, params map[string]interface{}) (*Backend, error) {
		return nil, fmt.Errorf("no dice")
	})
}

func lastParams() map[string]interface{} {
	return fakeParams[len(fakeParams)-1]
}

func TestGetConfigured(t *testing.T) {
	reg := schema.NewRegistry()
	Configure(map[string]map[string]interface{}{
		"default": {"backend": "fake", "cache-size": 64.0},
	})

	b, err := Get(reg, "", nil)
	assert.Nil(t, err)
	assert.NotNil(t, b)

	// the kind selector is stripped, the rest is passed through
	params := lastParams()
	_, hasKind := params["backend"]
	assert.Equal(t, hasKind, false)
	assert.Equal(t, params["cache-size"], 64.0)
}

func TestGetOverrides(t *testing.T) {
	reg := schema.NewRegistry()
	Configure(map[string]map[string]interface{}{
		"default": {"backend": "fake", "cache-size": 64.0},
	})

	_, err := Get(reg, "default", map[string]interface{}{"cache-size": 8.0})
	assert.Nil(t, err)
	assert.Equal(t, lastParams()["cache-size"], 8.0)
}

func TestGetByKind(t *testing.T) {
	reg := schema.NewRegistry()
	Configure(nil)

	b, err := Get(reg, "fake", nil)
	assert.Nil(t, err)
	assert.NotNil(t, b)
}

func TestGetUnknown(t *testing.T) {
	reg := schema.NewRegistry()
	Configure(nil)

	_, err := Get(reg, "nosuch", nil)
	var ibe *InvalidBackendError
	if !asErr(err, &ibe) {
		t.Fatalf("invalid-backend error expected, got %v", err)
	}
	assert.Equal(t, ibe.Name, "nosuch")
}

func TestGetCtorFailure(t *testing.T) {
	reg := schema.NewRegistry()
	Configure(nil)

	_, err := Get(reg, "broken", nil)
	var ibe *InvalidBackendError
	if !asErr(err, &ibe) {
		t.Fatalf("invalid-backend error expected, got %v", err)
	}
}

func TestGetEntryWithoutKind(t *testing.T) {
	reg := schema.NewRegistry()
	Configure(map[string]map[string]interface{}{
		"default": {"cache-size": 64.0},
	})

	_, err := Get(reg, "default", nil)
	var ibe *InvalidBackendError
	if !asErr(err, &ibe) {
		t.Fatalf("invalid-backend error expected, got %v", err)
	}
}

func TestGetCachesInstances(t *testing.T) {
	reg := schema.NewRegistry()
	Configure(map[string]map[string]interface{}{
		"default": {"backend": "fake"},
	})

	b1, err := Get(reg, "default", nil)
	assert.Nil(t, err)
	b2, err := Get(reg, "default", nil)
	assert.Nil(t, err)
	if b1 != b2 {
		t.Fatal("repeated Get should share one instance")
	}

	// overrides always build a fresh backend
	b3, err := Get(reg, "default", map[string]interface{}{"cache-size": 8.0})
	assert.Nil(t, err)
	if b1 == b3 {
		t.Fatal("overridden Get must not reuse the shared instance")
	}

	// reconfiguring drops the shared instances
	Configure(map[string]map[string]interface{}{
		"default": {"backend": "fake"},
	})
	b4, err := Get(reg, "default", nil)
	assert.Nil(t, err)
	if b1 == b4 {
		t.Fatal("Configure should reset shared instances")
	}
}

func TestWithNames(t *testing.T) {
	reg := schema.NewRegistry()
	Configure(map[string]map[string]interface{}{
		"default": {"backend": "fake"},
		"archive": {"backend": "fake", "auto-update": false},
	})

	all, err := WithNames(reg, false)
	assert.Nil(t, err)
	assert.Equal(t, len(all), 2)
	assert.Equal(t, all[0].Name, "archive")
	assert.Equal(t, all[1].Name, "default")

	auto, err := WithNames(reg, true)
	assert.Nil(t, err)
	assert.Equal(t, len(auto), 1)
	assert.Equal(t, auto[0].Name, "default")
}
