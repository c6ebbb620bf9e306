package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/rosbit/mgin"

	"model-search/search"
)

// GET /search/:model?q=xxx&fields=f1,f2&op=and&order=-f1,f2&f=f1:v1,v2;f2:a~b&facet=f1&page=1&pagesize=20&backend=name&score&pretty
//
// query arguments:
//  q:        free text query; quoted phrases are kept together
//  fields:   restrict matching to the named search fields
//  op:       "and"|"or", combination of the q terms (default or)
//  order:    sort fields, "-" prefix for descending; default is relevance
//  f:        filters, see parseF
//  facet:    count results grouped by the named filter field
//  page:     page number, starting at 1
//  pagesize: results per page, capped at 100
//  backend:  configured backend name (default "default")
//  score:    annotate each doc with its relevance under "_score"
//  pretty:   pretty-print the response
//
// The result docs carry "_model" and "_id" along with the stored fields.
func Search(c *mgin.Context) {
	doSearch(c, false)
}

// GET /autocomplete/:model
//
// same arguments as /search, matching partial words against the model's
// partial fields. Backends without the capability answer 501.
func Autocomplete(c *mgin.Context) {
	doSearch(c, true)
}

func doSearch(c *mgin.Context, partial bool) {
	log.Printf("[query] %s\n", c.Request().RequestURI)
	model := c.Param("model")

	q := c.QueryParam("q")
	op := c.QueryParam("op")
	order := parseOrder(c.QueryParam("order"))
	_, pretty := c.QueryParams()["pretty"]
	_, score := c.QueryParams()["score"]

	scope := search.Scope{
		Model:   model,
		Cond:    parseF(c.QueryParam("f")),
		OrderBy: order,
	}
	opts := &search.SearchOptions{
		Fields:           parseFields(c.QueryParam("fields")),
		Operator:         op,
		OrderByRelevance: len(order) == 0,
	}

	b, err := search.Get(reg, c.QueryParam("backend"), nil)
	if err != nil {
		c.Error(http.StatusBadRequest, err.Error())
		return
	}

	var rs *search.Results
	if partial {
		rs, err = b.Autocomplete(q, scope, opts)
	} else {
		rs, err = b.Search(q, scope, opts)
	}
	if err != nil {
		c.Error(statusForErr(err), err.Error())
		return
	}
	if score {
		rs = rs.AnnotateScore("_score")
	}

	total, err := rs.Count()
	if err != nil {
		c.Error(http.StatusInternalServerError, err.Error())
		return
	}

	var facets map[string]int
	if facetField := c.QueryParam("facet"); facetField != "" {
		if facets, err = rs.Facet(facetField); err != nil {
			c.Error(statusForErr(err), err.Error())
			return
		}
	}

	start, size := parsePaging(c.QueryParam("page"), c.QueryParam("pagesize"))
	hits, err := rs.Slice(start, start+size).Items()
	if err != nil {
		c.Error(http.StatusInternalServerError, err.Error())
		return
	}

	p := pagination{
		Total:     total,
		Pages:     (total + size - 1) / size,
		PageSize:  size,
		CurrPage:  start/size + 1,
		PageCount: len(hits),
	}

	w := c.Response()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if !pretty {
		outputJSONDocByDoc(w, &p, facets, outputDocs(hits))
	} else {
		prettyOutputJSONDocByDoc(w, &p, facets, outputDocs(hits))
	}
}

func statusForErr(err error) int {
	if errors.Is(err, search.ErrAutocompleteNotSupported) || errors.Is(err, search.ErrFacetNotSupported) {
		return http.StatusNotImplemented
	}

	var sfe *search.SearchFieldError
	var ffe *search.FilterFieldError
	var obe *search.OrderByFieldError
	var fe *search.FilterError
	if errors.As(err, &sfe) || errors.As(err, &ffe) || errors.As(err, &obe) || errors.As(err, &fe) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

type pagination struct {
	Total     int `json:"total"`
	Pages     int `json:"pages"`
	PageSize  int `json:"page-size"`
	CurrPage  int `json:"curr-page"`
	PageCount int `json:"page-count"`
}

// outputDocs renders hits one by one: stored fields formatted per the
// model's field declarations, plus the doc's model and id.
func outputDocs(hits []search.Hit) <-chan interface{} {
	docs := make(chan interface{})

	go func() {
		for _, hit := range hits {
			m := reg.Model(hit.Doc.Model)
			out := map[string]interface{}{
				"_model": hit.Doc.Model,
				"_id":    hit.Doc.ID,
			}
			for k, v := range hit.Doc.Fields {
				if m != nil {
					if field := m.Field(k); field != nil {
						out[k] = field.FormatValue(v)
						continue
					}
				}
				out[k] = v
			}
			docs <- out
		}
		close(docs)
	}()

	return docs
}

func outputJSONDocByDoc(w http.ResponseWriter, p *pagination, facets map[string]int, docs <-chan interface{}) {
	je := json.NewEncoder(w)

	fmt.Fprintf(w, `{"code":%d,"msg":"OK","result":{"pagination":`, http.StatusOK)
	je.Encode(p)
	if facets != nil {
		fmt.Fprintf(w, `,"facets":`)
		je.Encode(facets)
	}
	fmt.Fprintf(w, `,"docs":`)
	count := 0
	if docs != nil {
		for doc := range docs {
			if count == 0 {
				fmt.Fprintf(w, "[")
			} else {
				fmt.Fprintf(w, ",")
			}

			je.Encode(doc)
			count += 1
		}
	}

	if count == 0 {
		fmt.Fprintf(w, "null")
	} else {
		fmt.Fprintf(w, "]")
	}
	fmt.Fprintf(w, "}}")
}

func prettyOutputJSONDocByDoc(w http.ResponseWriter, p *pagination, facets map[string]int, docs <-chan interface{}) {
	fmt.Fprintf(w,
		`{
  "code": %d,
  "msg": "OK",
  "result": {
    "pagination": `, http.StatusOK)

	b, _ := json.MarshalIndent(p, "    ", "    ")
	w.Write(b)

	if facets != nil {
		io.WriteString(w, `,
    "facets": `)
		b, _ = json.MarshalIndent(facets, "    ", "    ")
		w.Write(b)
	}

	io.WriteString(w, `,
    "docs": `)

	count := 0
	if docs != nil {
		for doc := range docs {
			if count == 0 {
				io.WriteString(w, "[\n      ")
			} else {
				io.WriteString(w, ",\n      ")
			}

			b, _ = json.MarshalIndent(doc, "      ", "    ")
			w.Write(b)
			count += 1
		}
	}

	if count == 0 {
		io.WriteString(w, "null")
	} else {
		fmt.Fprintf(w, "\n    ]")
	}

	fmt.Fprintf(w, `
  }
}
`)
}
