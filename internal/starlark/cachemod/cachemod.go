// Package cachemod implements a Starlark module named stash over a
// [cache.Cache] of Starlark values.
package cachemod

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"regexp"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"gostash/internal/cache"
)

// Module returns a Starlark module that exposes c.
//
// The module provides these functions:
//
//   - get(selector=None) -> None | value | list: returns the values of the
//     matching entries in insertion order. None when nothing matches, the
//     value itself when one entry matches, a list otherwise.
//   - set(key: str, value, expires=None, callback=None): stores value under
//     key. expires is a number of seconds after which the entry is removed;
//     callback is then called with no arguments.
//   - remove(selector=None): removes the matching entries, or all entries
//     when selector is None.
//   - pattern(expr: str) -> pattern: compiles a regular expression, either a
//     plain one or a /body/flags literal.
//   - keys() -> list: all keys in insertion order.
//   - get_or_set(key: str, fn, expires=None) -> value: returns the value
//     stored under key, calling fn() to compute and store it on a miss.
//
// A selector is a string (exact key) or a pattern value.
//
// Values and callbacks are frozen when stored. Callbacks run on their own
// thread; errors they return are logged to logger.
func Module(c *cache.Cache[starlark.Value], logger *slog.Logger) *starlarkstruct.Module {
	m := &module{
		cache:  c,
		logger: logger,
	}
	return &starlarkstruct.Module{
		Name: "stash",
		Members: starlark.StringDict{
			"get":        starlark.NewBuiltin("stash.get", m.get),
			"set":        starlark.NewBuiltin("stash.set", m.set),
			"remove":     starlark.NewBuiltin("stash.remove", m.remove),
			"pattern":    starlark.NewBuiltin("stash.pattern", compilePattern),
			"keys":       starlark.NewBuiltin("stash.keys", m.keys),
			"get_or_set": starlark.NewBuiltin("stash.get_or_set", m.getOrSet),
		},
	}
}

type module struct {
	cache  *cache.Cache[starlark.Value]
	logger *slog.Logger
}

func (m *module) get(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var selector starlark.Value = starlark.None
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "selector?", &selector); err != nil {
		return nil, err
	}
	sel, err := toSelector(b.Name(), selector)
	if err != nil {
		return nil, err
	}

	res, err := m.cache.Get(sel)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	switch res.Kind() {
	case cache.Empty:
		return starlark.None, nil
	case cache.Single:
		v, _ := res.Value()
		return v, nil
	default:
		return starlark.NewList(res.Values()), nil
	}
}

func (m *module) set(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		key      starlark.Value
		value    starlark.Value
		expires  starlark.Value = starlark.None
		callback starlark.Value = starlark.None
	)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs,
		"key", &key,
		"value", &value,
		"expires?", &expires,
		"callback?", &callback,
	); err != nil {
		return nil, err
	}

	k, ok := key.(starlark.String)
	if !ok {
		return nil, cache.KeyTypeError(b.Name(), key.Type())
	}
	if k == "" {
		return nil, cache.KeyTypeError(b.Name(), "empty string")
	}
	opts, err := m.setOptions(b.Name(), string(k), expires, callback)
	if err != nil {
		return nil, err
	}

	value.Freeze()
	if err := m.cache.Set(string(k), value, opts...); err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	return starlark.None, nil
}

func (m *module) remove(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var selector starlark.Value = starlark.None
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "selector?", &selector); err != nil {
		return nil, err
	}
	sel, err := toSelector(b.Name(), selector)
	if err != nil {
		return nil, err
	}
	if err := m.cache.Remove(sel); err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	return starlark.None, nil
}

func (m *module) keys(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}
	keys := m.cache.Keys()
	list := make([]starlark.Value, 0, len(keys))
	for _, k := range keys {
		list = append(list, starlark.String(k))
	}
	return starlark.NewList(list), nil
}

func (m *module) getOrSet(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		key     string
		fn      starlark.Callable
		expires starlark.Value = starlark.None
	)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "key", &key, "fn", &fn, "expires?", &expires); err != nil {
		return nil, err
	}
	opts, err := m.setOptions(b.Name(), key, expires, starlark.None)
	if err != nil {
		return nil, err
	}

	v, err := m.cache.GetOrSet(key, func() (starlark.Value, []cache.SetOption, error) {
		v, err := starlark.Call(thread, fn, nil, nil)
		if err != nil {
			return nil, nil, err
		}
		v.Freeze()
		return v, opts, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	return v, nil
}

func (m *module) setOptions(fnName, key string, expires, callback starlark.Value) ([]cache.SetOption, error) {
	var opts []cache.SetOption

	if expires != starlark.None {
		secs, ok := starlark.AsFloat(expires)
		if !ok {
			return nil, fmt.Errorf("%s: expires should be a number of seconds, got %s", fnName, expires.Type())
		}
		if math.IsNaN(secs) || math.IsInf(secs, 0) {
			return nil, fmt.Errorf("%s: expires should be finite, got %s", fnName, expires)
		}
		opts = append(opts, cache.WithExpiry(cache.Seconds(secs)))
	}

	if callback != starlark.None {
		fn, ok := callback.(starlark.Callable)
		if !ok {
			return nil, fmt.Errorf("%s: callback should be callable, got %s", fnName, callback.Type())
		}
		fn.Freeze()
		opts = append(opts, cache.WithCallback(func() { m.runCallback(key, fn) }))
	}

	return opts, nil
}

func (m *module) runCallback(key string, fn starlark.Callable) {
	thread := &starlark.Thread{
		Name: "stash expiry " + key,
		Print: func(_ *starlark.Thread, msg string) {
			m.logger.Info(msg, slog.String("key", key))
		},
	}
	if _, err := starlark.Call(thread, fn, nil, nil); err != nil {
		var evalErr *starlark.EvalError
		if errors.As(err, &evalErr) {
			m.logger.Error("stash expiry callback failed", slog.String("key", key), slog.String("backtrace", evalErr.Backtrace()))
			return
		}
		m.logger.Error("stash expiry callback failed", slog.String("key", key), slog.Any("err", err))
	}
}

func toSelector(fnName string, v starlark.Value) (cache.Selector, error) {
	switch v := v.(type) {
	case starlark.NoneType:
		return cache.All(), nil
	case starlark.String:
		return cache.Key(string(v)), nil
	case *Pattern:
		return cache.Pattern(v.re), nil
	default:
		return cache.Selector{}, cache.SelectorTypeError(fnName, v.Type())
	}
}

// Pattern is a Starlark value wrapping a compiled regular expression used
// as a selector.
type Pattern struct {
	re *regexp.Regexp
}

// NewPattern wraps re, which must not be nil.
func NewPattern(re *regexp.Regexp) (*Pattern, error) {
	if re == nil {
		return nil, errors.New("cachemod: nil pattern")
	}
	return &Pattern{re: re}, nil
}

var _ starlark.Value = (*Pattern)(nil)

func (p *Pattern) String() string        { return fmt.Sprintf("pattern(%q)", p.re.String()) }
func (p *Pattern) Type() string          { return "pattern" }
func (p *Pattern) Freeze()               {} // immutable
func (p *Pattern) Truth() starlark.Bool  { return starlark.True }
func (p *Pattern) Hash() (uint32, error) { return starlark.String(p.re.String()).Hash() }

func compilePattern(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var expr string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "expr", &expr); err != nil {
		return nil, err
	}
	re, err := CompilePattern(expr)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	return NewPattern(re)
}

var literal = regexp.MustCompile(`^/.+/\w*$`)

// CompilePattern compiles expr as a /body/flags literal when it looks like
// one, and as a plain regular expression otherwise.
func CompilePattern(expr string) (*regexp.Regexp, error) {
	if literal.MatchString(expr) {
		return cache.ParsePattern(expr)
	}
	return regexp.Compile(expr)
}
