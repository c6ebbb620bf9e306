package rest

import (
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/rosbit/mgin"
)

// getReader yields the request payload as a stream. A multipart POST gets
// the named file part opened (ext tells its file type); anything else is
// the raw body.
func getReader(c *mgin.Context, multipartFileParam string) (in io.ReadCloser, contentType, ext string, err error) {
	contentType = mimeType(c.Header(HEADER_CONTENT_TYPE))

	if contentType != MULTIPART_FORM {
		r := c.Request()
		if r.Body == nil {
			err = fmt.Errorf("post body expected")
			return
		}
		in = r.Body
		return
	}

	file, err := c.FormFile(multipartFileParam)
	if err != nil {
		err = fmt.Errorf("argument %s expected", multipartFileParam)
		return
	}
	if in, err = file.Open(); err != nil {
		return
	}
	ext = strings.ToLower(path.Ext(file.Filename))
	return
}

// mimeType strips parameters like "; charset=utf-8" from a Content-Type value.
func mimeType(header string) string {
	fields := strings.FieldsFunc(header, func(ch rune) bool {
		return ch == ' ' || ch == ';'
	})
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
