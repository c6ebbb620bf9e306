package search

import (
	"fmt"

	"model-search/schema"
)

// Hit is one search result. Score is populated by backends that compute
// per-result relevance.
type Hit struct {
	Doc   schema.Document
	Score float64
}

// Executor runs a compiled query against a backend's storage. start/stop
// bound the result window; stop < 0 means unbounded. scoreField, when
// non-empty, asks the backend to expose each hit's relevance score under
// that field name.
type Executor interface {
	DoSearch(c *Compiler, start, stop int, scoreField string) ([]Hit, error)
	DoCount(c *Compiler, start, stop int) (int, error)
}

// Faceter is the optional faceting capability of an Executor.
type Faceter interface {
	DoFacet(c *Compiler, field string) (map[string]int, error)
}

const unbounded = -1

// resultCache is the write-once cell holding materialized results. Once
// set, the result set is materialized and Count must equal len(hits).
type resultCache struct {
	hits []Hit
	set  bool
}

// Results is a lazy view over the eventual output of a compiled query.
// It starts unmaterialized; the first call to Items (or an indexed access)
// executes the query once and caches the hits. Count prefers the cache,
// falling back to the backend's dedicated count operation. Slicing composes
// windows without re-querying.
type Results struct {
	compiler   *Compiler
	exec       Executor
	start      int
	stop       int
	scoreField string

	cache    resultCache
	count    int
	hasCount bool
}

// NewResults wraps a checked compiler and its executor. Backends call this
// from their search entry points.
func NewResults(c *Compiler, exec Executor) *Results {
	return &Results{compiler: c, exec: exec, stop: unbounded}
}

// EmptyResults is the no-backend variant: zero hits and zero count with no
// backend call, used whenever the engine can prove no match is possible.
func EmptyResults() *Results {
	return &Results{stop: unbounded}
}

// Compiler exposes the compiled query this result set will execute.
// It is nil for the empty variant.
func (r *Results) Compiler() *Compiler { return r.compiler }

func (r *Results) clone() *Results {
	return &Results{
		compiler:   r.compiler,
		exec:       r.exec,
		start:      r.start,
		stop:       r.stop,
		scoreField: r.scoreField,
	}
}

// setLimits composes a requested window onto the existing one. start/stop
// may be negative to mean "not given".
func (r *Results) setLimits(start, stop int) {
	if stop >= 0 {
		if r.stop >= 0 {
			r.stop = min(r.stop, r.start+stop)
		} else {
			r.stop = r.start + stop
		}
	}
	if start >= 0 {
		if r.stop >= 0 {
			r.start = min(r.stop, r.start+start)
		} else {
			r.start = r.start + start
		}
	}
}

// Items returns the search results, materializing them on first call. The
// returned slice is the cache itself and must be treated as read-only.
func (r *Results) Items() ([]Hit, error) {
	if r.cache.set {
		return r.cache.hits, nil
	}
	if r.exec == nil {
		r.cache = resultCache{hits: []Hit{}, set: true}
		return r.cache.hits, nil
	}

	hits, err := r.exec.DoSearch(r.compiler, r.start, r.stop, r.scoreField)
	if err != nil {
		return nil, err
	}
	if hits == nil {
		hits = []Hit{}
	}
	r.cache = resultCache{hits: hits, set: true}
	return r.cache.hits, nil
}

// Count returns the number of results. It never materializes the full
// result set: with no cache in place it uses the backend's dedicated count
// operation.
func (r *Results) Count() (int, error) {
	if r.cache.set {
		return len(r.cache.hits), nil
	}
	if r.hasCount {
		return r.count, nil
	}
	if r.exec == nil {
		return 0, nil
	}

	n, err := r.exec.DoCount(r.compiler, r.start, r.stop)
	if err != nil {
		return 0, err
	}
	r.count = n
	r.hasCount = true
	return n, nil
}

// Slice returns a new result set whose window is the requested slice of
// this one. Negative bounds mean "not given". If results are already
// cached, the new set inherits the matching sub-slice without another
// backend call.
func (r *Results) Slice(start, stop int) *Results {
	res := r.clone()
	res.setLimits(start, stop)

	if r.cache.set {
		hits := r.cache.hits
		lo, hi := start, stop
		if lo < 0 {
			lo = 0
		}
		if lo > len(hits) {
			lo = len(hits)
		}
		if hi < 0 || hi > len(hits) {
			hi = len(hits)
		}
		if hi < lo {
			hi = lo
		}
		res.cache = resultCache{hits: hits[lo:hi], set: true}
	}
	return res
}

// At returns the single result at position i within the window, fetching a
// one-element slice if nothing is cached yet.
func (r *Results) At(i int) (Hit, error) {
	if i < 0 {
		return Hit{}, fmt.Errorf("search results index %d out of range", i)
	}
	if r.cache.set {
		if i >= len(r.cache.hits) {
			return Hit{}, fmt.Errorf("search results index %d out of range", i)
		}
		return r.cache.hits[i], nil
	}

	hits, err := r.Slice(i, i+1).Items()
	if err != nil {
		return Hit{}, err
	}
	if len(hits) == 0 {
		return Hit{}, fmt.Errorf("search results index %d out of range", i)
	}
	return hits[0], nil
}

// AnnotateScore returns an otherwise-identical result set whose hits carry
// their relevance score under the given field name. The cache is not
// carried over; scores come from a fresh execution.
func (r *Results) AnnotateScore(fieldName string) *Results {
	res := r.clone()
	res.scoreField = fieldName
	return res
}

// Facet counts results grouped by the given field's value. Faceting is an
// optional backend capability.
func (r *Results) Facet(field string) (map[string]int, error) {
	if r.exec == nil {
		return map[string]int{}, nil
	}
	f, ok := r.exec.(Faceter)
	if !ok {
		return nil, ErrFacetNotSupported
	}
	return f.DoFacet(r.compiler, field)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
