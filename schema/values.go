package schema

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"model-search/conf"
)

// ToNativeValue converts a raw value (typically decoded from JSON or parsed
// from a query string) into the field's declared type.
func (field *Field) ToNativeValue(value interface{}) (interface{}, error) {
	switch field.Type {
	case "string", "":
		if value == nil {
			return "", nil
		}
		return fmt.Sprintf("%v", value), nil
	case "int":
		return toInt(value)
	case "float":
		return toFloat(value)
	case "bool":
		return toBool(value)
	case "date", "datetime":
		return toTime(value, field.TimeFmt)
	default:
		return nil, fmt.Errorf("unknown data type %s", field.Type)
	}
}

// FormatValue renders a native value for output, applying the field's time
// layout to date/datetime values.
func (field *Field) FormatValue(v interface{}) interface{} {
	if v == nil {
		return nil
	}
	switch field.Type {
	case "date", "datetime":
		if t, ok := v.(time.Time); ok {
			return t.In(conf.Loc).Format(field.TimeFmt)
		}
		return nil
	default:
		return v
	}
}

func toInt(v interface{}) (int64, error) {
	if v == nil {
		return 0, nil
	}
	switch v.(type) {
	case float64:
		return int64(v.(float64)), nil
	case string:
		s := v.(string)
		if s == "" {
			return 0, nil
		}
		return strconv.ParseInt(s, 10, 64)
	case int8, int16, int32, int64, int:
		return reflect.ValueOf(v).Int(), nil
	case uint8, uint16, uint32, uint64, uint:
		return int64(reflect.ValueOf(v).Uint()), nil
	default:
		return 0, fmt.Errorf("can not convert %v to int64", v)
	}
}

func toFloat(v interface{}) (float64, error) {
	if v == nil {
		return float64(0), nil
	}
	switch v.(type) {
	case float64:
		return v.(float64), nil
	case float32:
		return float64(v.(float32)), nil
	case int8, int16, int32, int64, int:
		return float64(reflect.ValueOf(v).Int()), nil
	case string:
		s := v.(string)
		if s == "" {
			return float64(0), nil
		}
		return strconv.ParseFloat(s, 64)
	default:
		return 0.0, fmt.Errorf("can not convert %v to float64", v)
	}
}

var trueVals = map[string]bool{"yes": true, "y": true, "true": true}

func toBool(v interface{}) (bool, error) {
	if v == nil {
		return false, nil
	}
	switch v.(type) {
	case bool:
		return v.(bool), nil
	case float64:
		return int(v.(float64)) != 0, nil
	case string:
		s := v.(string)
		if s == "" {
			return false, nil
		}
		if i, err := strconv.Atoi(s); err == nil {
			return i != 0, nil
		}
		_, ok := trueVals[strings.ToLower(s)]
		return ok, nil
	default:
		return false, fmt.Errorf("can not convert %v to boolean", v)
	}
}

func toTime(v interface{}, timeFmt string) (time.Time, error) {
	if v == nil {
		return time.Time{}, nil
	}
	switch v.(type) {
	case time.Time:
		return v.(time.Time), nil
	case float64:
		return time.Unix(int64(v.(float64)), 0).In(conf.Loc), nil
	case string:
		t, err := time.ParseInLocation(timeFmt, v.(string), conf.Loc)
		if err != nil {
			return time.Time{}, err
		}
		return t, nil
	default:
		return time.Time{}, fmt.Errorf("can not convert %v to time", v)
	}
}
