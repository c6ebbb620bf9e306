package search

import (
	"errors"
	"fmt"
)

var (
	// ErrAutocompleteNotSupported is returned by Autocomplete when the
	// backend declares no partial-matching support.
	ErrAutocompleteNotSupported = errors.New("this search backend does not support the autocomplete API")

	// ErrFacetNotSupported is returned by Results.Facet unless the
	// backend's executor implements the Faceter capability.
	ErrFacetNotSupported = errors.New("this search backend does not support faceting")
)

// SearchFieldError reports a free-text search restricted to a field that is
// not declared searchable on the model.
type SearchFieldError struct {
	FieldName string
	Model     string
}

func (e *SearchFieldError) Error() string {
	return fmt.Sprintf("cannot search with field %q: declare it as a search field on model %s", e.FieldName, e.Model)
}

// FilterFieldError reports a filter on a field that is not declared
// filterable on the model.
type FilterFieldError struct {
	FieldName string
	Model     string
}

func (e *FilterFieldError) Error() string {
	return fmt.Sprintf("cannot filter search results with field %q: declare it as a filter field on model %s", e.FieldName, e.Model)
}

// OrderByFieldError reports an order-by term the engine cannot honor:
// either a field that is not declared filterable, or a complex expression
// the backend does not handle.
type OrderByFieldError struct {
	FieldName string
	Model     string
}

func (e *OrderByFieldError) Error() string {
	return fmt.Sprintf("cannot sort search results with %q: declare it as a filter field on model %s", e.FieldName, e.Model)
}

// FilterError reports a condition tree the engine does not understand:
// an unsupported lookup, an unsupported date part, or an unknown node.
// It is a programming/configuration error, not a caller-input error.
type FilterError struct {
	Reason string
}

func (e *FilterError) Error() string {
	return "could not apply filter on search results: " + e.Reason
}

func filterErrorf(format string, args ...interface{}) *FilterError {
	return &FilterError{Reason: fmt.Sprintf(format, args...)}
}

// InvalidBackendError reports a backend identifier that resolved neither to
// a configured entry nor to a registered backend kind.
type InvalidBackendError struct {
	Name string
	Err  error
}

func (e *InvalidBackendError) Error() string {
	return fmt.Sprintf("could not find backend %q: %v", e.Name, e.Err)
}

func (e *InvalidBackendError) Unwrap() error {
	return e.Err
}
