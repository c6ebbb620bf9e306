package rest

import (
	"strconv"
	"strings"

	"model-search/search"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// splitQuoted breaks s on any of the separators, keeping quoted sections
// together and stripping the quotes.
func splitQuoted(s string, seps ...rune) []string {
	isSep := func(ch rune) bool {
		for _, sep := range seps {
			if ch == sep {
				return true
			}
		}
		return false
	}

	hasQuote := false
	var quote rune
	fields := strings.FieldsFunc(s, func(ch rune) bool {
		switch ch {
		case '"', '\'', '`':
			if hasQuote {
				if quote == ch {
					hasQuote = false
				}
				return false
			}
			quote = ch
			hasQuote = true
			return false
		default:
			if hasQuote {
				return false
			}
			return isSep(ch)
		}
	})

	res := []string{}
	for _, f := range fields {
		f = strings.Trim(f, `"'`+"`")
		if f != "" {
			res = append(res, f)
		}
	}
	return res
}

// parseF builds a filter condition tree from the f parameter.
//
// f: field[__lookup]:val1,val2,min~max;field2:...
//
// Segments are ANDed; the values of one segment are ORed. A lookup names
// one of exact/lt/lte/gt/gte/in/isnull/contains/startswith, or a date
// part, as in published__year__gte:2020. min~max filters on a range; an
// open side may be left empty.
func parseF(f string) search.Cond {
	segments := splitQuoted(f, ';')
	if len(segments) == 0 {
		return nil
	}

	conds := []search.Cond{}
	for _, seg := range segments {
		pos := strings.Index(seg, ":")
		if pos < 1 {
			continue
		}
		nameSpec, valueSpec := seg[:pos], seg[pos+1:]

		parts := strings.Split(nameSpec, "__")
		fieldName := parts[0]
		datePart := ""
		op := search.OpExact
		if len(parts) > 1 {
			if parts[1] == "year" {
				datePart = "year"
				if len(parts) > 2 {
					op = parts[2]
				}
			} else {
				op = parts[1]
			}
		}

		values := splitQuoted(valueSpec, ',')
		if len(values) == 0 {
			continue
		}

		var cond search.Cond
		switch {
		case datePart != "":
			cond = orGroup(dateLeaves(fieldName, datePart, op, values))
		case op == search.OpIn:
			cond = &search.Comparison{Field: fieldName, Op: op, Value: asValues(values)}
		case op == search.OpIsNull:
			want, _ := strconv.ParseBool(values[0])
			cond = &search.Comparison{Field: fieldName, Op: op, Value: want}
		default:
			cond = orGroup(valueLeaves(fieldName, op, values))
		}
		if cond != nil {
			conds = append(conds, cond)
		}
	}

	switch len(conds) {
	case 0:
		return nil
	case 1:
		return conds[0]
	default:
		return &search.Group{Conn: search.ConnAnd, Children: conds}
	}
}

func valueLeaves(fieldName, op string, values []string) []search.Cond {
	leaves := []search.Cond{}
	for _, v := range values {
		if op == search.OpExact {
			if pos := strings.Index(v, "~"); pos >= 0 {
				if leaf := rangeLeaf(fieldName, v[:pos], v[pos+1:]); leaf != nil {
					leaves = append(leaves, leaf)
				}
				continue
			}
		}
		leaves = append(leaves, &search.Comparison{Field: fieldName, Op: op, Value: v})
	}
	return leaves
}

func rangeLeaf(fieldName, lo, hi string) search.Cond {
	switch {
	case lo == "" && hi == "":
		return nil
	case lo == "":
		return &search.Comparison{Field: fieldName, Op: search.OpLte, Value: hi}
	case hi == "":
		return &search.Comparison{Field: fieldName, Op: search.OpGte, Value: lo}
	default:
		return &search.Comparison{Field: fieldName, Op: search.OpRange, Value: []interface{}{lo, hi}}
	}
}

func dateLeaves(fieldName, part, op string, values []string) []search.Cond {
	leaves := make([]search.Cond, 0, len(values))
	for _, v := range values {
		leaves = append(leaves, &search.DatePart{Part: part, Field: fieldName, Op: op, Value: v})
	}
	return leaves
}

func orGroup(leaves []search.Cond) search.Cond {
	switch len(leaves) {
	case 0:
		return nil
	case 1:
		return leaves[0]
	default:
		return &search.Group{Conn: search.ConnOr, Children: leaves}
	}
}

func asValues(values []string) []interface{} {
	res := make([]interface{}, len(values))
	for i, v := range values {
		res[i] = v
	}
	return res
}

// parseOrder turns the order parameter into order-by terms. A "-" prefix
// sorts descending; a term with parentheses is treated as a complex
// expression and left to backends that handle those.
func parseOrder(s string) []search.OrderTerm {
	fields := splitQuoted(s, ',', ';')
	if len(fields) == 0 {
		return nil
	}

	res := make([]search.OrderTerm, 0, len(fields))
	for _, f := range fields {
		if strings.ContainsAny(f, "()") {
			res = append(res, search.OrderTerm{Expr: f})
		} else {
			res = append(res, search.OrderTerm{Field: f})
		}
	}
	return res
}

func parseFields(s string) []string {
	return splitQuoted(s, ',', ' ')
}

// parsePaging returns the window of the requested page.
func parsePaging(page, pagesize string) (start, size int) {
	size = defaultPageSize
	if len(pagesize) > 0 {
		if n, err := strconv.Atoi(pagesize); err == nil && n > 0 {
			size = n
			if size > maxPageSize {
				size = maxPageSize
			}
		}
	}
	start = 0
	if len(page) > 0 {
		if n, err := strconv.Atoi(page); err == nil && n > 0 {
			start = (n - 1) * size
		}
	}
	return
}
