package rest

import (
	"io"
	"os"

	"model-search/conf"
)

// saveTmpFile spools the request body to a file under the root dir, so an
// async ingestion can outlive the HTTP request. The caller removes the
// file when done.
func saveTmpFile(in io.Reader) (name string, rd io.ReadCloser, err error) {
	tmpfile, err := os.CreateTemp(conf.ServiceConf.RootDir, "upload")
	if err != nil {
		return
	}
	name = tmpfile.Name()

	_, err = io.Copy(tmpfile, in)
	tmpfile.Close()
	if err != nil {
		os.Remove(name)
		return "", nil, err
	}

	if rd, err = os.Open(name); err != nil {
		os.Remove(name)
		return "", nil, err
	}
	return
}
