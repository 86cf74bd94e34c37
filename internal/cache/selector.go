package cache

import (
	"fmt"
	"regexp"
	"strings"
)

type selectorKind uint8

const (
	selectAll selectorKind = iota
	selectKey
	selectPattern
)

// Selector identifies which entries Get and Remove act on.
//
// The zero Selector selects every entry.
type Selector struct {
	kind selectorKind
	key  string
	re   *regexp.Regexp
}

// All selects every entry.
func All() Selector { return Selector{} }

// Key selects the entry whose key is exactly k. k is not interpreted as a
// pattern.
func Key(k string) Selector { return Selector{kind: selectKey, key: k} }

// Pattern selects every entry whose key matches re.
func Pattern(re *regexp.Regexp) Selector { return Selector{kind: selectPattern, re: re} }

// MustPattern is like Pattern but compiles expr with regexp.MustCompile.
func MustPattern(expr string) Selector { return Pattern(regexp.MustCompile(expr)) }

// Select converts a dynamically typed selector: nil selects all entries, a
// string selects by exact key, a *regexp.Regexp selects by pattern and a
// Selector is returned as is. Anything else is rejected with an error
// matching ErrInvalidSelectorType.
func Select(v any) (Selector, error) {
	switch v := v.(type) {
	case nil:
		return All(), nil
	case string:
		return Key(v), nil
	case *regexp.Regexp:
		if v == nil {
			return Selector{}, SelectorTypeError("select", "nil pattern")
		}
		return Pattern(v), nil
	case Selector:
		return v, v.validate("select")
	default:
		return Selector{}, SelectorTypeError("select", fmt.Sprintf("%T", v))
	}
}

// IsAll reports whether s selects every entry.
func (s Selector) IsAll() bool { return s.kind == selectAll }

func (s Selector) String() string {
	switch s.kind {
	case selectKey:
		return fmt.Sprintf("key(%q)", s.key)
	case selectPattern:
		if s.re == nil {
			return "pattern(<nil>)"
		}
		return fmt.Sprintf("pattern(%s)", s.re)
	default:
		return "all"
	}
}

func (s Selector) validate(op string) error {
	if s.kind == selectPattern && s.re == nil {
		return SelectorTypeError(op, "nil pattern")
	}
	return nil
}

func (s Selector) matches(key string) bool {
	switch s.kind {
	case selectKey:
		return key == s.key
	case selectPattern:
		return s.re.MatchString(key)
	default:
		return true
	}
}

var literalRe = regexp.MustCompile(`^/(.+)/(\w*)`)

// ParsePattern compiles a pattern written as a /body/flags literal. The
// flags i, m and s map to the matching Go inline flags; g, y and u are
// accepted and have no effect. A string that is not a literal yields a
// pattern matching every key.
func ParsePattern(s string) (*regexp.Regexp, error) {
	m := literalRe.FindStringSubmatch(s)
	if m == nil {
		return regexp.MustCompile(`.*`), nil
	}
	body, flags := m[1], m[2]

	var inline strings.Builder
	for _, f := range flags {
		switch f {
		case 'i', 'm', 's':
			if !strings.ContainsRune(inline.String(), f) {
				inline.WriteRune(f)
			}
		case 'g', 'y', 'u':
		default:
			return nil, fmt.Errorf("parse pattern %q: unknown flag %q", s, f)
		}
	}
	if inline.Len() > 0 {
		body = "(?" + inline.String() + ")" + body
	}
	re, err := regexp.Compile(body)
	if err != nil {
		return nil, fmt.Errorf("parse pattern %q: %w", s, err)
	}
	return re, nil
}
