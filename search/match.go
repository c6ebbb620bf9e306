package search

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"model-search/schema"
)

// Matcher is the translated form of a filter condition for backends that
// evaluate filters in-process: a predicate over a document's coerced field
// values.
type Matcher func(fields map[string]interface{}) bool

// MatchProcessor is a FilterProcessor producing Matcher predicates. It
// serves any backend that stores native field values and filters results
// itself rather than pushing conditions into an engine query.
type MatchProcessor struct{}

func (MatchProcessor) ProcessMatchNone() interface{} {
	return Matcher(func(map[string]interface{}) bool { return false })
}

func (MatchProcessor) ConnectFilters(children []interface{}, conn string, negated bool) interface{} {
	ms := make([]Matcher, len(children))
	for i, c := range children {
		ms[i] = c.(Matcher)
	}

	var m Matcher
	if conn == ConnOr {
		m = func(fields map[string]interface{}) bool {
			for _, sub := range ms {
				if sub(fields) {
					return true
				}
			}
			return false
		}
	} else {
		m = func(fields map[string]interface{}) bool {
			for _, sub := range ms {
				if !sub(fields) {
					return false
				}
			}
			return true
		}
	}

	if negated {
		inner := m
		m = func(fields map[string]interface{}) bool { return !inner(fields) }
	}
	return m
}

func (MatchProcessor) ProcessLookup(field *schema.Field, op string, value interface{}) (interface{}, error) {
	name := field.Name

	switch op {
	case OpExact:
		want, err := field.ToNativeValue(value)
		if err != nil {
			return nil, lookupErr(name, op, value, err)
		}
		return Matcher(func(fields map[string]interface{}) bool {
			v, ok := fields[name]
			return ok && CompareValues(v, want) == 0
		}), nil

	case OpLt, OpLte, OpGt, OpGte:
		want, err := field.ToNativeValue(value)
		if err != nil {
			return nil, lookupErr(name, op, value, err)
		}
		return Matcher(func(fields map[string]interface{}) bool {
			v, ok := fields[name]
			if !ok {
				return false
			}
			cmp := CompareValues(v, want)
			switch op {
			case OpLt:
				return cmp < 0
			case OpLte:
				return cmp <= 0
			case OpGt:
				return cmp > 0
			default:
				return cmp >= 0
			}
		}), nil

	case OpIn:
		list, ok := valueList(value)
		if !ok {
			return nil, lookupErr(name, op, value, fmt.Errorf("a list is expected"))
		}
		wants := make([]interface{}, len(list))
		for i, raw := range list {
			w, err := field.ToNativeValue(raw)
			if err != nil {
				return nil, lookupErr(name, op, value, err)
			}
			wants[i] = w
		}
		return Matcher(func(fields map[string]interface{}) bool {
			v, ok := fields[name]
			if !ok {
				return false
			}
			for _, w := range wants {
				if CompareValues(v, w) == 0 {
					return true
				}
			}
			return false
		}), nil

	case OpRange:
		list, ok := valueList(value)
		if !ok || len(list) != 2 {
			return nil, lookupErr(name, op, value, fmt.Errorf("a [lower, upper] pair is expected"))
		}
		lo, err := field.ToNativeValue(list[0])
		if err != nil {
			return nil, lookupErr(name, op, value, err)
		}
		hi, err := field.ToNativeValue(list[1])
		if err != nil {
			return nil, lookupErr(name, op, value, err)
		}
		// both bounds inclusive
		return Matcher(func(fields map[string]interface{}) bool {
			v, ok := fields[name]
			return ok && CompareValues(v, lo) >= 0 && CompareValues(v, hi) <= 0
		}), nil

	case OpIsNull:
		want, ok := value.(bool)
		if !ok {
			return nil, lookupErr(name, op, value, fmt.Errorf("a boolean is expected"))
		}
		return Matcher(func(fields map[string]interface{}) bool {
			v, ok := fields[name]
			return (!ok || v == nil) == want
		}), nil

	case OpContains:
		want := fmt.Sprintf("%v", value)
		return Matcher(func(fields map[string]interface{}) bool {
			s, ok := fields[name].(string)
			return ok && strings.Contains(s, want)
		}), nil

	case OpStartsWith:
		want := fmt.Sprintf("%v", value)
		return Matcher(func(fields map[string]interface{}) bool {
			s, ok := fields[name].(string)
			return ok && strings.HasPrefix(s, want)
		}), nil

	default:
		// not recognised
		return nil, nil
	}
}

func lookupErr(field, op string, value interface{}, err error) error {
	return &FilterError{Reason: fmt.Sprintf("%s__%s = %v: %v", field, op, value, err)}
}

func valueList(v interface{}) ([]interface{}, bool) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]interface{}, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// CompareValues orders two values of the same native type. nil sorts
// before everything else.
func CompareValues(a, b interface{}) int {
	if a == nil || b == nil {
		if a == b {
			return 0
		}
		if a == nil {
			return -1
		}
		return 1
	}

	switch av := a.(type) {
	case int64:
		if bv, ok := b.(int64); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			}
			return 0
		}
	case float64:
		if bv, ok := b.(float64); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			}
			return 0
		}
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv)
		}
	case bool:
		if bv, ok := b.(bool); ok {
			switch {
			case !av && bv:
				return -1
			case av && !bv:
				return 1
			}
			return 0
		}
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			switch {
			case av.Before(bv):
				return -1
			case av.After(bv):
				return 1
			}
			return 0
		}
	}
	return strings.Compare(fmt.Sprintf("%v", a), fmt.Sprintf("%v", b))
}
