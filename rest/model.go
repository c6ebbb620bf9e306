package rest

import (
	"fmt"
	"net/http"

	"github.com/rosbit/mgin"

	"model-search/conf"
)

// POST /model/:name
//
// register a model definition and persist it under the root dir.
//
// path parameter
//  - name  name of the model
// POST Head:
//   - Content-Type: multipart/form-data
//   arguments:
//   - file  file name and content to upload
// ---- OR ----
//   - Content-Type: application/json
//   post body:
//   {model-json-content}
func CreateModel(c *mgin.Context) {
	name := c.Param("name")
	if reg.Model(name) != nil {
		c.Error(http.StatusInternalServerError, fmt.Sprintf("model %s exists already, please remove it first", name))
		return
	}

	jsonFile, _, _, err := getReader(c, "file")
	if err != nil {
		c.Error(http.StatusBadRequest, err.Error())
		return
	}
	defer jsonFile.Close()

	m, err := reg.SaveModel(conf.ServiceConf.RootDir, jsonFile)
	if err != nil {
		c.Error(http.StatusInternalServerError, err.Error())
		return
	}
	if m.Name != name {
		reg.DeleteModel(conf.ServiceConf.RootDir, m.Name)
		c.Error(http.StatusBadRequest, fmt.Sprintf("model body names %s, path names %s", m.Name, name))
		return
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"code":  http.StatusOK,
		"msg":   "model created",
		"model": name,
	})
}

// DELETE /model/:name
//
// unregister the model and remove its definition directory together with
// any backend data stored beneath it.
func DeleteModel(c *mgin.Context) {
	name := c.Param("name")

	if err := reg.DeleteModel(conf.ServiceConf.RootDir, name); err != nil {
		c.Error(http.StatusInternalServerError, err.Error())
		return
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"code":  http.StatusOK,
		"msg":   "model deleted",
		"model": name,
	})
}

// GET /model/:name
//
// show the model definition
func ShowModel(c *mgin.Context) {
	name := c.Param("name")
	m := reg.Model(name)
	if m == nil {
		c.Error(http.StatusNotFound, fmt.Sprintf("model %s not found", name))
		return
	}
	c.JSON(http.StatusOK, m.ModelConf)
}

// GET /models
//
// list the names of all the registered models
func ListModels(c *mgin.Context) {
	models := reg.Models()
	names := make([]string, 0, len(models))
	for _, m := range models {
		names = append(names, m.Name)
	}
	c.JSON(http.StatusOK, map[string]interface{}{
		"code":   http.StatusOK,
		"msg":    "OK",
		"models": names,
	})
}
