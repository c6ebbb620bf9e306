package rest

import (
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/rosbit/go-wget"
	"github.com/rosbit/mgin"

	"model-search/schema"
	"model-search/search"
)

// PUT /doc/:model
//
// add or replace one document in every auto-updated backend.
//
// POST body:
// {
//   "id": "string"|integer,
//   "field-name": "xxx",
//   ...
// }
func AddDoc(c *mgin.Context) {
	model := c.Param("model")

	var body map[string]interface{}
	if code, err := c.ReadJSON(&body); err != nil {
		c.Error(code, err.Error())
		return
	}

	doc, err := buildDocument(model, body)
	if err != nil {
		c.Error(http.StatusBadRequest, err.Error())
		return
	}

	backends, err := autoUpdatedBackends(model)
	if err != nil {
		c.Error(http.StatusBadRequest, err.Error())
		return
	}
	for _, nb := range backends {
		if err := nb.Backend.Add(doc); err != nil {
			c.Error(http.StatusInternalServerError, err.Error())
			return
		}
		if err := nb.Backend.IndexForModel(reg.Model(model)).Refresh(); err != nil {
			c.Error(http.StatusInternalServerError, err.Error())
			return
		}
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"code": http.StatusOK,
		"msg":  "doc added",
		"id":   doc.ID,
	})
}

// PUT /docs/:model[?cb=url-encoded-callback-url]
//
// add 1 or more documents to every auto-updated backend.
//
// POST Head:
//   - Content-Type: multipart/form-data
//   arguments:
//   - file  file name with ext ".json"/".csv"/".jsonl" to upload
//
// ---- OR ----
//
//   - Content-Type: application/json
//   POST body:
//   [
//     {doc 1},
//     {doc 2},
//      ...
//   ]
//
// ---- OR -----
//   - Content-Type: text/csv
//   POST body:
//   id,field-name1,fn2,...
//   1,v1,v2,...
//
// ---- OR -----
//   - Content-Type: application/x-ndjson
//   POST body:
//   {json}
//   {json}
//
// with a cb argument the request returns at once and the indexing result
// is POSTed to the callback url.
func AddDocs(c *mgin.Context) {
	model := c.Param("model")

	in, contentType, ext, err := getReader(c, "file")
	if err != nil {
		c.Error(http.StatusNotAcceptable, err.Error())
		return
	}

	var docGenerator fnDocGenerator
	var ok bool
	if contentType == MULTIPART_FORM {
		if docGenerator, ok = ext2Generator[ext]; !ok {
			docGenerator = fromJSONFile
		}
	} else {
		if docGenerator, ok = contentType2Generator[contentType]; !ok {
			docGenerator = fromJSONFile
		}
	}

	backends, err := autoUpdatedBackends(model)
	if err != nil {
		in.Close()
		c.Error(http.StatusBadRequest, err.Error())
		return
	}

	cb := c.QueryParam("cb")
	if cb == "" {
		defer in.Close()

		docChan, err := docGenerator(in)
		if err != nil {
			c.Error(http.StatusNotAcceptable, err.Error())
			return
		}
		ids := ingestDocs(model, backends, docChan, "")
		c.JSON(http.StatusOK, map[string]interface{}{
			"code": http.StatusOK,
			"msg":  "docs added",
			"ids":  ids,
		})
		return
	}

	tmpName, inTmp, err := saveTmpFile(in)
	in.Close()
	if err != nil {
		c.Error(http.StatusInternalServerError, err.Error())
		return
	}

	go func() {
		defer os.Remove(tmpName)
		defer inTmp.Close()

		docChan, err := docGenerator(inTmp)
		if err != nil {
			log.Printf("[error] reading docs for %s: %v\n", model, err)
			notifyCallback(cb, model, 0, err)
			return
		}
		ingestDocs(model, backends, docChan, cb)
	}()
	c.JSON(http.StatusOK, map[string]interface{}{
		"code": http.StatusOK,
		"msg":  "indexing request accepted",
	})
}

// DELETE /doc/:model
//
// POST body:
// {
// 	  "id": "string"|integer,
// }
func DeleteDoc(c *mgin.Context) {
	model := c.Param("model")
	var body struct {
		Id interface{} `json:"id"`
	}
	if code, err := c.ReadJSON(&body); err != nil {
		c.Error(code, err.Error())
		return
	}
	if body.Id == nil {
		c.Error(http.StatusBadRequest, "doc id expected")
		return
	}

	if err := deleteByIds(model, []interface{}{body.Id}); err != nil {
		c.Error(http.StatusInternalServerError, err.Error())
		return
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"code": http.StatusOK,
		"msg":  "doc removed",
		"id":   body.Id,
	})
}

// DELETE /docs/:model
//
// POST body:
// [
// 	  docId1, docId2, ...
// ]
func DeleteDocs(c *mgin.Context) {
	model := c.Param("model")

	var docIds []interface{}
	if code, err := c.ReadJSON(&docIds); err != nil {
		c.Error(code, err.Error())
		return
	}

	if err := deleteByIds(model, docIds); err != nil {
		c.Error(http.StatusInternalServerError, err.Error())
		return
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"code": http.StatusOK,
		"msg":  "docs removed",
		"ids":  docIds,
	})
}

func buildDocument(model string, body map[string]interface{}) (schema.Document, error) {
	id, ok := body["id"]
	if !ok || id == nil {
		return schema.Document{}, fmt.Errorf("doc of model %s must carry an id field", model)
	}

	fields := make(map[string]interface{}, len(body)-1)
	for k, v := range body {
		if k == "id" {
			continue
		}
		fields[k] = v
	}
	return schema.Document{Model: model, ID: fmt.Sprintf("%v", id), Fields: fields}, nil
}

func autoUpdatedBackends(model string) ([]search.NamedBackend, error) {
	if reg.Model(model) == nil {
		return nil, fmt.Errorf("model %s not found, please create the model first", model)
	}
	return search.WithNames(reg, true)
}

// ingestDocs drains the generator, indexing each doc into all the given
// backends. Without a callback it returns one entry per doc, the doc id or
// the error text; with a callback it logs errors and POSTs a summary to
// the callback url instead.
func ingestDocs(model string, backends []search.NamedBackend, docs <-chan docLine, cb string) (ids []string) {
	hasCb := cb != ""
	var lastErr error

	count := 0
	for line := range docs {
		err := line.err
		var doc schema.Document
		if err == nil {
			doc, err = buildDocument(model, line.fields)
		}
		if err == nil {
			for _, nb := range backends {
				if err = nb.Backend.Add(doc); err != nil {
					break
				}
			}
		}

		if err != nil {
			if !hasCb {
				ids = append(ids, err.Error())
			} else {
				log.Printf("[error] indexing %s: %v\n", model, err)
			}
			lastErr = err
			continue
		}

		if !hasCb {
			ids = append(ids, doc.ID)
		}
		count += 1
	}

	if count > 0 {
		m := reg.Model(model)
		for _, nb := range backends {
			if err := nb.Backend.IndexForModel(m).Refresh(); err != nil {
				log.Printf("[error] refreshing %s on backend %s: %v\n", model, nb.Name, err)
			}
		}
	}
	log.Printf("[info] %d docs of model %s added\n", count, model)

	if hasCb {
		notifyCallback(cb, model, count, lastErr)
	}
	return
}

func notifyCallback(cb, model string, count int, lastErr error) {
	params := map[string]interface{}{
		"code":  http.StatusOK,
		"msg":   "OK",
		"model": model,
		"docs":  count,
	}
	if lastErr != nil {
		params["code"] = http.StatusInternalServerError
		params["msg"] = fmt.Sprintf("failed to index docs: %v", lastErr)
	}

	status, content, _, err := wget.PostJson(cb, "POST", params, nil)
	if err != nil {
		log.Printf("failed to send callback to %s: %d\n", cb, status)
	} else {
		log.Printf("send to callback to %s OK: %s\n", cb, string(content))
	}
}

func deleteByIds(model string, docIds []interface{}) error {
	backends, err := autoUpdatedBackends(model)
	if err != nil {
		return err
	}

	m := reg.Model(model)
	for _, nb := range backends {
		for _, docId := range docIds {
			doc := schema.Document{Model: model, ID: fmt.Sprintf("%v", docId)}
			if err := nb.Backend.Delete(doc); err != nil {
				return err
			}
		}
		if err := nb.Backend.IndexForModel(m).Refresh(); err != nil {
			return err
		}
	}
	return nil
}

var ext2Generator = map[string]fnDocGenerator{
	".csv":   fromCSVFile,
	".jsonl": fromJSONLines,
	".json":  fromJSONFile,
}

var contentType2Generator = map[string]fnDocGenerator{
	JSON_MIME:      fromJSONFile,
	CSV_MIME:       fromCSVFile,
	JSONLINES_MIME: fromJSONLines,
}
