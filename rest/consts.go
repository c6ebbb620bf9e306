package rest

import (
	"model-search/schema"
)

const (
	HEADER_CONTENT_TYPE = "Content-Type"
	MULTIPART_FORM      = "multipart/form-data"
	CSV_MIME            = "text/csv"
	JSON_MIME           = "application/json"
	JSONLINES_MIME      = "application/x-ndjson"
)

var reg *schema.Registry

// SetRegistry installs the model registry the handlers operate on. It must
// be called once before the service starts.
func SetRegistry(r *schema.Registry) {
	reg = r
}
