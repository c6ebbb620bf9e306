package rest

import (
	"net/http"

	"github.com/rosbit/mgin"

	"model-search/search"
)

// POST /refresh[?backend=name]
//
// flush pending writes of one backend, or of every configured backend.
func RefreshBackends(c *mgin.Context) {
	maintainBackends(c, (*search.Backend).RefreshAll, "backends refreshed")
}

// POST /reset[?backend=name]
//
// empty the indexes of one backend, or of every configured backend.
func ResetBackends(c *mgin.Context) {
	maintainBackends(c, (*search.Backend).ResetAll, "backends reset")
}

func maintainBackends(c *mgin.Context, op func(*search.Backend) error, okStr string) {
	var names []string

	if name := c.QueryParam("backend"); name != "" {
		b, err := search.Get(reg, name, nil)
		if err != nil {
			c.Error(http.StatusBadRequest, err.Error())
			return
		}
		if err := op(b); err != nil {
			c.Error(http.StatusInternalServerError, err.Error())
			return
		}
		names = []string{name}
	} else {
		backends, err := search.WithNames(reg, false)
		if err != nil {
			c.Error(http.StatusInternalServerError, err.Error())
			return
		}
		for _, nb := range backends {
			if err := op(nb.Backend); err != nil {
				c.Error(http.StatusInternalServerError, err.Error())
				return
			}
			names = append(names, nb.Name)
		}
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"code":     http.StatusOK,
		"msg":      okStr,
		"backends": names,
	})
}
