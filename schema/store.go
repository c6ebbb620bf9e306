package schema

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
)

// LoadModel reads one model definition file from the root dir and registers it.
func (r *Registry) LoadModel(rootDir, name string) (*Model, error) {
	_, p := modelFile(rootDir, name)
	f, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	conf, err := parseModelConf(f)
	if err != nil {
		return nil, err
	}
	if conf.Name != name {
		return nil, fmt.Errorf("model file %s names model %s", p, conf.Name)
	}
	return r.Register(conf)
}

// LoadModels scans the root dir and registers every model definition found.
// Parents are registered before the models that specialize them.
func (r *Registry) LoadModels(rootDir string) error {
	entries, err := os.ReadDir(rootDir)
	if err != nil {
		return err
	}

	confs := map[string]*ModelConf{}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		p := path.Join(rootDir, e.Name(), "model.json")
		f, err := os.Open(p)
		if err != nil {
			continue
		}
		conf, err := parseModelConf(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("model file %s: %v", p, err)
		}
		confs[conf.Name] = conf
	}

	names := make([]string, 0, len(confs))
	for name := range confs {
		names = append(names, name)
	}
	sort.Strings(names)

	// register roots first, then walk down the specialization chains
	for len(names) > 0 {
		progressed := false
		rest := names[:0]
		for _, name := range names {
			conf := confs[name]
			if conf.Parent != "" && r.Model(conf.Parent) == nil {
				rest = append(rest, name)
				continue
			}
			if _, err := r.Register(conf); err != nil {
				return err
			}
			progressed = true
		}
		if !progressed {
			return fmt.Errorf("unresolvable parent chain among models %v", rest)
		}
		names = rest
	}
	return nil
}

// SaveModel validates a model definition read from in, registers it and
// persists it under the root dir.
func (r *Registry) SaveModel(rootDir string, in io.Reader) (*Model, error) {
	conf, err := parseModelConf(in)
	if err != nil {
		return nil, err
	}
	m, err := r.Register(conf)
	if err != nil {
		return nil, err
	}

	d, p := modelFile(rootDir, conf.Name)
	if err = os.MkdirAll(d, 0755); err != nil {
		r.Unregister(conf.Name)
		return nil, err
	}
	f, err := os.OpenFile(p, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		r.Unregister(conf.Name)
		return nil, err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err = enc.Encode(conf); err != nil {
		r.Unregister(conf.Name)
		return nil, err
	}
	return m, nil
}

// DeleteModel unregisters a model and removes its definition directory,
// including any backend data stored beneath it.
func (r *Registry) DeleteModel(rootDir, name string) error {
	r.Unregister(name)
	d, _ := modelFile(rootDir, name)
	if _, err := os.Stat(d); err != nil && os.IsNotExist(err) {
		return nil
	}
	return os.RemoveAll(d)
}

func parseModelConf(in io.Reader) (*ModelConf, error) {
	dec := json.NewDecoder(in)
	var conf ModelConf
	if err := dec.Decode(&conf); err != nil {
		return nil, err
	}
	return &conf, nil
}

func modelFile(rootDir, name string) (d, f string) {
	d = filepath.Join(rootDir, name)
	f = filepath.Join(d, "model.json")
	return
}
