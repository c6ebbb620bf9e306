package rest

import (
	"encoding/csv"
	"encoding/json"
	"io"
)

type docLine struct {
	fields map[string]interface{}
	err    error
}

// 从reader中依次生成doc的函数签名
type fnDocGenerator func(io.Reader) (<-chan docLine, error)

// 从doc数组生成doc
func fromArray(docs []map[string]interface{}) (<-chan docLine, error) {
	out := make(chan docLine)
	go func() {
		defer close(out)
		for _, doc := range docs {
			out <- docLine{fields: doc}
		}
	}()
	return out, nil
}

// 从JSON数组文件生成doc
func fromJSONFile(in io.Reader) (<-chan docLine, error) {
	var docs []map[string]interface{}
	if err := json.NewDecoder(in).Decode(&docs); err != nil {
		return nil, err
	}
	return fromArray(docs)
}

// 从csv文件生成doc，第一行是字段名
func fromCSVFile(in io.Reader) (<-chan docLine, error) {
	out := make(chan docLine)

	rd := csv.NewReader(in)
	header, err := rd.Read()
	if err != nil {
		close(out)
		if err == io.EOF {
			return out, nil
		}
		return nil, err
	}

	go func() {
		defer close(out)
		for {
			rec, err := rd.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				out <- docLine{err: err}
				continue
			}
			doc := make(map[string]interface{}, len(header))
			for i, name := range header {
				doc[name] = rec[i]
			}
			out <- docLine{fields: doc}
		}
	}()
	return out, nil
}

// 从JSON Lines文件(每行一个JSON)生成doc；JSON间不能有','
func fromJSONLines(in io.Reader) (<-chan docLine, error) {
	out := make(chan docLine)
	go func() {
		defer close(out)
		dec := json.NewDecoder(in)
		for dec.More() {
			var doc map[string]interface{}
			if err := dec.Decode(&doc); err != nil {
				return
			}
			out <- docLine{fields: doc}
		}
	}()
	return out, nil
}
