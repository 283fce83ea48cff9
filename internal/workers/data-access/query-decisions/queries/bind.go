package queries

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"gov-decisions-workers/internal/engine/catalog"
	"gov-decisions-workers/internal/models"
)

var (
	ErrMissingParam = errors.New("missing required parameter")
	ErrInvalidParam = errors.New("invalid parameter value")
)

// Bind rewrites the named placeholders of sql to positional ones and returns
// the driver arguments in placeholder order. List parameters are bound as
// Postgres arrays.
func Bind(sql string, params []models.Parameter) (string, []interface{}, error) {
	byName := make(map[string]models.Parameter, len(params))
	for _, p := range params {
		byName[p.Name] = p
	}

	bound, names := catalog.BindPositional(sql)
	args := make([]interface{}, 0, len(names))
	for _, name := range names {
		p, ok := byName[name]
		if !ok {
			return "", nil, fmt.Errorf("%w: %s", ErrMissingParam, name)
		}
		v, err := driverValue(p)
		if err != nil {
			return "", nil, fmt.Errorf("%w: %s: %v", ErrInvalidParam, name, err)
		}
		args = append(args, v)
	}
	return bound, args, nil
}

func driverValue(p models.Parameter) (interface{}, error) {
	switch p.Type {
	case models.ParamTypeInteger:
		return toInt64(p.Value)
	case models.ParamTypeStringArray:
		items, err := toSlice(p.Value)
		if err != nil {
			return nil, err
		}
		out := make([]string, len(items))
		for i, it := range items {
			s, ok := it.(string)
			if !ok {
				return nil, fmt.Errorf("element %d is %T, want string", i, it)
			}
			out[i] = s
		}
		return pq.Array(out), nil
	case models.ParamTypeIntArray:
		items, err := toSlice(p.Value)
		if err != nil {
			return nil, err
		}
		out := make([]int64, len(items))
		for i, it := range items {
			n, err := toInt64(it)
			if err != nil {
				return nil, fmt.Errorf("element %d: %v", i, err)
			}
			out[i] = n
		}
		return pq.Array(out), nil
	case models.ParamTypeString, models.ParamTypeDate, "":
		if s, ok := p.Value.(string); ok {
			return s, nil
		}
		if p.Type == "" {
			return p.Value, nil
		}
		return nil, fmt.Errorf("value is %T, want string", p.Value)
	}
	return nil, fmt.Errorf("unknown parameter type %q", p.Type)
}

// toInt64 accepts the numeric shapes a job payload can carry.
func toInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		if n != float64(int64(n)) {
			return 0, fmt.Errorf("%v is not an integer", n)
		}
		return int64(n), nil
	case json.Number:
		return n.Int64()
	}
	return 0, fmt.Errorf("value is %T, want integer", v)
}

func toSlice(v interface{}) ([]interface{}, error) {
	switch s := v.(type) {
	case []interface{}:
		return s, nil
	case []string:
		out := make([]interface{}, len(s))
		for i := range s {
			out[i] = s[i]
		}
		return out, nil
	case []int:
		out := make([]interface{}, len(s))
		for i := range s {
			out[i] = s[i]
		}
		return out, nil
	}
	return nil, fmt.Errorf("value is %T, want list", v)
}

// Int converts a parameter value to int.
func Int(v interface{}) (int, error) {
	n, err := toInt64(v)
	return int(n), err
}
