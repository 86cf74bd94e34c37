package cachemod

import (
	"fmt"
	"math"
	"sort"

	"go.starlark.net/starlark"
)

// FromGo converts a value decoded from YAML or JSON to a Starlark value.
//
// Supported are nil, bool, string, signed and unsigned integers, float64,
// []any and maps keyed by string or any (keys must be strings).
func FromGo(v any) (starlark.Value, error) {
	switch v := v.(type) {
	case nil:
		return starlark.None, nil
	case bool:
		return starlark.Bool(v), nil
	case string:
		return starlark.String(v), nil
	case int:
		return starlark.MakeInt(v), nil
	case int64:
		return starlark.MakeInt64(v), nil
	case uint64:
		return starlark.MakeUint64(v), nil
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < 1<<53 {
			return starlark.MakeInt64(int64(v)), nil
		}
		return starlark.Float(v), nil
	case []any:
		list := make([]starlark.Value, 0, len(v))
		for i, item := range v {
			sv, err := FromGo(item)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			list = append(list, sv)
		}
		return starlark.NewList(list), nil
	case map[string]any:
		return dictFrom(v)
	case map[any]any:
		m := make(map[string]any, len(v))
		for k, item := range v {
			ks, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("dict key %v is %T, not a string", k, k)
			}
			m[ks] = item
		}
		return dictFrom(m)
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

func dictFrom(m map[string]any) (starlark.Value, error) {
	// Sorted so the resulting dict iterates deterministically.
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	dict := starlark.NewDict(len(m))
	for _, k := range keys {
		sv, err := FromGo(m[k])
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		if err := dict.SetKey(starlark.String(k), sv); err != nil {
			return nil, err
		}
	}
	return dict, nil
}
