package search

import (
	"testing"

	"github.com/stvp/assert"

	"model-search/schema"
)

// fakeExec records every backend call so the tests can observe when, and
// with which window, the lazy result set actually hits the backend.
type fakeExec struct {
	hits []Hit

	searches   int
	counts     int
	lastStart  int
	lastStop   int
	lastScore  string
	facetCalls int
}

func (f *fakeExec) DoSearch(c *Compiler, start, stop int, scoreField string) ([]Hit, error) {
	f.searches++
	f.lastStart, f.lastStop, f.lastScore = start, stop, scoreField

	lo, hi := start, len(f.hits)
	if stop >= 0 && stop < hi {
		hi = stop
	}
	if lo < 0 {
		lo = 0
	}
	if lo > hi {
		lo = hi
	}
	return f.hits[lo:hi], nil
}

func (f *fakeExec) DoCount(c *Compiler, start, stop int) (int, error) {
	f.counts++
	lo, hi := start, len(f.hits)
	if stop >= 0 && stop < hi {
		hi = stop
	}
	if lo > hi {
		lo = hi
	}
	return hi - lo, nil
}

func (f *fakeExec) DoFacet(c *Compiler, field string) (map[string]int, error) {
	f.facetCalls++
	return map[string]int{"x": len(f.hits)}, nil
}

func tenHits() []Hit {
	hits := make([]Hit, 10)
	for i := range hits {
		hits[i] = Hit{Doc: schema.Document{Model: "book", ID: string(rune('a' + i))}}
	}
	return hits
}

func TestResultsLazy(t *testing.T) {
	exec := &fakeExec{hits: tenHits()}
	rs := NewResults(nil, exec)
	assert.Equal(t, exec.searches, 0)

	hits, err := rs.Items()
	assert.Nil(t, err)
	assert.Equal(t, len(hits), 10)
	assert.Equal(t, exec.searches, 1)

	// second materialization is served from the cache
	_, err = rs.Items()
	assert.Nil(t, err)
	assert.Equal(t, exec.searches, 1)
}

func TestResultsCountWithoutMaterialize(t *testing.T) {
	exec := &fakeExec{hits: tenHits()}
	rs := NewResults(nil, exec)

	n, err := rs.Count()
	assert.Nil(t, err)
	assert.Equal(t, n, 10)
	assert.Equal(t, exec.searches, 0)
	assert.Equal(t, exec.counts, 1)

	// and the count itself is remembered
	_, err = rs.Count()
	assert.Nil(t, err)
	assert.Equal(t, exec.counts, 1)
}

func TestResultsCountFromCache(t *testing.T) {
	exec := &fakeExec{hits: tenHits()}
	rs := NewResults(nil, exec)

	_, err := rs.Items()
	assert.Nil(t, err)

	n, err := rs.Count()
	assert.Nil(t, err)
	assert.Equal(t, n, 10)
	assert.Equal(t, exec.counts, 0)
}

func TestResultsSliceComposition(t *testing.T) {
	exec := &fakeExec{hits: tenHits()}
	rs := NewResults(nil, exec).Slice(2, 8).Slice(1, 3)

	hits, err := rs.Items()
	assert.Nil(t, err)
	assert.Equal(t, exec.lastStart, 3)
	assert.Equal(t, exec.lastStop, 5)
	assert.Equal(t, len(hits), 2)
	assert.Equal(t, hits[0].Doc.ID, "d")
	assert.Equal(t, hits[1].Doc.ID, "e")
}

func TestResultsSliceClamped(t *testing.T) {
	exec := &fakeExec{hits: tenHits()}
	rs := NewResults(nil, exec).Slice(0, 4).Slice(2, 100)

	hits, err := rs.Items()
	assert.Nil(t, err)
	assert.Equal(t, exec.lastStart, 2)
	assert.Equal(t, exec.lastStop, 4)
	assert.Equal(t, len(hits), 2)
}

func TestResultsSliceOfCache(t *testing.T) {
	exec := &fakeExec{hits: tenHits()}
	rs := NewResults(nil, exec)

	_, err := rs.Items()
	assert.Nil(t, err)

	sub := rs.Slice(1, 3)
	hits, err := sub.Items()
	assert.Nil(t, err)
	assert.Equal(t, exec.searches, 1) // no second backend call
	assert.Equal(t, len(hits), 2)
	assert.Equal(t, hits[0].Doc.ID, "b")
}

func TestResultsAt(t *testing.T) {
	exec := &fakeExec{hits: tenHits()}
	rs := NewResults(nil, exec)

	hit, err := rs.At(4)
	assert.Nil(t, err)
	assert.Equal(t, hit.Doc.ID, "e")
	assert.Equal(t, exec.lastStart, 4)
	assert.Equal(t, exec.lastStop, 5)

	_, err = rs.At(100)
	assert.NotNil(t, err)
}

func TestResultsAnnotateScore(t *testing.T) {
	exec := &fakeExec{hits: tenHits()}
	rs := NewResults(nil, exec).AnnotateScore("_score")

	_, err := rs.Items()
	assert.Nil(t, err)
	assert.Equal(t, exec.lastScore, "_score")
}

func TestResultsFacet(t *testing.T) {
	exec := &fakeExec{hits: tenHits()}
	rs := NewResults(nil, exec)

	facets, err := rs.Facet("genre")
	assert.Nil(t, err)
	assert.Equal(t, facets["x"], 10)
}

func TestEmptyResults(t *testing.T) {
	rs := EmptyResults()

	hits, err := rs.Items()
	assert.Nil(t, err)
	assert.Equal(t, len(hits), 0)

	n, err := rs.Count()
	assert.Nil(t, err)
	assert.Equal(t, n, 0)

	facets, err := rs.Facet("genre")
	assert.Nil(t, err)
	assert.Equal(t, len(facets), 0)

	_, err = rs.Slice(0, 5).At(0)
	assert.NotNil(t, err)
}
