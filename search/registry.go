package search

import (
	"fmt"
	"sort"
	"sync"

	"model-search/schema"
)

// Constructor builds a backend of one kind from configuration parameters.
// Backend packages register themselves at init time, the way database/sql
// drivers do.
type Constructor func(reg *schema.Registry, params map[string]interface{}) (*Backend, error)

// backendKey selects the backend kind inside a configuration entry; it is
// stripped before the remaining parameters reach the constructor.
const backendKey = "backend"

// DefaultBackendName is used when no backend name is given.
const DefaultBackendName = "default"

var (
	ctorLock sync.RWMutex
	ctors    = map[string]Constructor{}

	confLock   sync.RWMutex
	configured = map[string]map[string]interface{}{}

	instLock  sync.Mutex
	instances = map[string]*Backend{}
)

// Register makes a backend kind available to the factory. It panics on a
// duplicate kind; registration happens once, from package init.
func Register(kind string, ctor Constructor) {
	ctorLock.Lock()
	defer ctorLock.Unlock()
	if _, ok := ctors[kind]; ok {
		panic(fmt.Sprintf("search backend kind %s registered twice", kind))
	}
	ctors[kind] = ctor
}

// Configure installs the named backend configuration, normally the
// "backends" section of the service conf. Each entry must carry a
// "backend" key naming a registered kind; the remaining keys are passed to
// the constructor.
func Configure(backends map[string]map[string]interface{}) {
	confLock.Lock()
	defer confLock.Unlock()
	configured = map[string]map[string]interface{}{}
	for name, entry := range backends {
		configured[name] = entry
	}

	instLock.Lock()
	instances = map[string]*Backend{}
	instLock.Unlock()
}

// Get resolves a backend identifier to an instantiated backend. The
// identifier is either a configured entry name or a registered kind.
// For configured entries the parameters are merged with overrides
// (overrides win) and the selector key is stripped. Failure on both paths
// is an InvalidBackendError.
// Backends built without overrides are instantiated once and shared, so
// that in-process backends keep their indexed data between calls.
func Get(reg *schema.Registry, name string, overrides map[string]interface{}) (*Backend, error) {
	if name == "" {
		name = DefaultBackendName
	}

	if len(overrides) == 0 {
		instLock.Lock()
		b, ok := instances[name]
		instLock.Unlock()
		if ok {
			return b, nil
		}
	}

	confLock.RLock()
	entry, isConfigured := configured[name]
	confLock.RUnlock()

	var kind string
	params := map[string]interface{}{}
	if isConfigured {
		for k, v := range entry {
			params[k] = v
		}
		for k, v := range overrides {
			params[k] = v
		}
		k, _ := params[backendKey].(string)
		if k == "" {
			return nil, &InvalidBackendError{Name: name, Err: fmt.Errorf("entry has no %q key", backendKey)}
		}
		delete(params, backendKey)
		kind = k
	} else {
		kind = name
		for k, v := range overrides {
			params[k] = v
		}
	}

	ctorLock.RLock()
	ctor, ok := ctors[kind]
	ctorLock.RUnlock()
	if !ok {
		return nil, &InvalidBackendError{Name: name, Err: fmt.Errorf("unknown backend kind %q", kind)}
	}

	b, err := ctor(reg, params)
	if err != nil {
		return nil, &InvalidBackendError{Name: name, Err: err}
	}

	if len(overrides) == 0 {
		instLock.Lock()
		if cached, ok := instances[name]; ok {
			b = cached
		} else {
			instances[name] = b
		}
		instLock.Unlock()
	}
	return b, nil
}

// NamedBackend pairs a configured backend with its configuration name.
type NamedBackend struct {
	Name    string
	Backend *Backend
}

// WithNames instantiates every configured backend, sorted by name. With
// autoUpdateOnly set, entries configured with "auto-update": false are
// skipped; those indexes are maintained by explicit rebuilds only.
func WithNames(reg *schema.Registry, autoUpdateOnly bool) ([]NamedBackend, error) {
	confLock.RLock()
	names := make([]string, 0, len(configured))
	for name, entry := range configured {
		if autoUpdateOnly {
			if au, ok := entry["auto-update"].(bool); ok && !au {
				continue
			}
		}
		names = append(names, name)
	}
	confLock.RUnlock()
	sort.Strings(names)

	res := make([]NamedBackend, 0, len(names))
	for _, name := range names {
		b, err := Get(reg, name, nil)
		if err != nil {
			return nil, err
		}
		res = append(res, NamedBackend{Name: name, Backend: b})
	}
	return res, nil
}
