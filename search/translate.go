package search

import (
	"reflect"
	"strconv"
	"strings"
	"time"

	"model-search/schema"
)

// FilterProcessor supplies the backend-specific primitives the translator
// needs to turn a condition tree into a backend expression. A backend that
// cannot translate filters simply has no processor; translation support is
// a construction-time capability, not a runtime surprise.
type FilterProcessor interface {
	// ProcessLookup translates one comparison. Returning (nil, nil) means
	// the lookup operator is not recognized; filters that are present but
	// always true must be expressed as the backend's own match-all, never
	// as nil.
	ProcessLookup(field *schema.Field, op string, value interface{}) (interface{}, error)

	// ProcessMatchNone translates the always-false condition.
	ProcessMatchNone() interface{}

	// ConnectFilters combines translated children with AND/OR, optionally
	// negated. Child order is meaningful and must be kept.
	ConnectFilters(children []interface{}, conn string, negated bool) interface{}
}

// Child-table identity pointers carry this suffix; they appear in scoped
// queries over specialized models and are not user-visible filters.
const ptrFieldSuffix = "_ptr_id"

// Translate converts the compiler's condition tree into a backend
// expression using the given processor. With a nil processor it only
// validates the tree, reporting the first invalid field or lookup.
func (c *Compiler) Translate(p FilterProcessor) (interface{}, error) {
	if c.scope.Cond == nil {
		return nil, nil
	}
	return c.translateNode(c.scope.Cond, p)
}

func (c *Compiler) translateNode(node Cond, p FilterProcessor) (interface{}, error) {
	switch n := node.(type) {
	case *Comparison:
		if strings.HasSuffix(n.Field, ptrFieldSuffix) {
			// inheritance-chain artifact, no constraint
			return nil, nil
		}
		return c.processFilter(n.Field, n.Op, n.Value, p)

	case *DatePart:
		return c.translateDatePart(n, p)

	case *Nothing:
		if p == nil {
			return nil, nil
		}
		return p.ProcessMatchNone(), nil

	case *Group:
		children := make([]interface{}, 0, len(n.Children))
		for _, child := range n.Children {
			translated, err := c.translateNode(child, p)
			if err != nil {
				return nil, err
			}
			if translated != nil {
				children = append(children, translated)
			}
		}
		if p == nil {
			return nil, nil
		}
		return p.ConnectFilters(children, n.Conn, n.Negated), nil

	default:
		return nil, filterErrorf("unknown condition node %T", node)
	}
}

// translateDatePart rewrites a year-part comparison into plain date-range
// comparisons before delegating to the ordinary lookup processing. Other
// date parts are not supported.
func (c *Compiler) translateDatePart(n *DatePart, p FilterProcessor) (interface{}, error) {
	if n.Part != "year" {
		return nil, filterErrorf("%q queries are not supported", n.Part)
	}

	year, err := toYear(n.Value)
	if err != nil {
		return nil, filterErrorf("%q is not a valid year for field %s", n.Value, n.Field)
	}

	switch n.Op {
	case OpGte:
		// year(date) >= Y, i.e. date >= Jan 1st of that year
		return c.processFilter(n.Field, OpGte, yearStart(year), p)
	case OpGt:
		// year(date) > Y, i.e. date >= Jan 1st of the next year
		return c.processFilter(n.Field, OpGte, yearStart(year+1), p)
	case OpLte:
		// year(date) <= Y, i.e. date < Jan 1st of the next year
		return c.processFilter(n.Field, OpLt, yearStart(year+1), p)
	case OpLt:
		// year(date) < Y, i.e. date < Jan 1st of that year
		return c.processFilter(n.Field, OpLt, yearStart(year), p)
	case OpExact:
		// year(date) == Y, i.e. Jan 1st of that year <= date < Jan 1st of the next
		lower, err := c.processFilter(n.Field, OpGte, yearStart(year), p)
		if err != nil {
			return nil, err
		}
		upper, err := c.processFilter(n.Field, OpLt, yearStart(year+1), p)
		if err != nil {
			return nil, err
		}
		if p == nil {
			return nil, nil
		}
		return p.ConnectFilters([]interface{}{lower, upper}, ConnAnd, false), nil
	default:
		return nil, filterErrorf("%q queries are not supported on the year part", n.Op)
	}
}

func (c *Compiler) processFilter(fieldName, op string, value interface{}, p FilterProcessor) (interface{}, error) {
	field := c.model.FilterField(fieldName)
	if field == nil {
		return nil, &FilterFieldError{FieldName: fieldName, Model: c.model.Name}
	}

	if p == nil {
		return nil, nil
	}

	result, err := p.ProcessLookup(field, op, value)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, filterErrorf("%s__%s = %v: lookup %q not recognised", fieldName, op, value, op)
	}
	return result, nil
}

func yearStart(year int) time.Time {
	return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
}

func toYear(v interface{}) (int, error) {
	switch v.(type) {
	case int, int8, int16, int32, int64:
		return int(reflect.ValueOf(v).Int()), nil
	case uint, uint8, uint16, uint32, uint64:
		return int(reflect.ValueOf(v).Uint()), nil
	case float64:
		return int(v.(float64)), nil
	case string:
		return strconv.Atoi(v.(string))
	default:
		return 0, strconv.ErrSyntax
	}
}
