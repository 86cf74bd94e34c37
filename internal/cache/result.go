package cache

import "slices"

// Kind tells how many values a Result holds.
type Kind uint8

const (
	Empty  Kind = iota // no entry matched
	Single             // exactly one entry matched
	Many               // more than one entry matched
)

func (k Kind) String() string {
	switch k {
	case Empty:
		return "empty"
	case Single:
		return "single"
	default:
		return "many"
	}
}

// Result holds the values matched by Get, in store order.
type Result[V any] struct {
	values []V
}

// Kind reports whether r is Empty, Single or Many.
func (r Result[V]) Kind() Kind {
	switch len(r.values) {
	case 0:
		return Empty
	case 1:
		return Single
	default:
		return Many
	}
}

// Len returns the number of matched values.
func (r Result[V]) Len() int { return len(r.values) }

// Values returns a copy of the matched values.
func (r Result[V]) Values() []V { return slices.Clone(r.values) }

// Value returns the matched value if exactly one entry matched.
func (r Result[V]) Value() (V, bool) {
	if len(r.values) != 1 {
		var zero V
		return zero, false
	}
	return r.values[0], true
}

// First returns the first matched value, if any.
func (r Result[V]) First() (V, bool) {
	if len(r.values) == 0 {
		var zero V
		return zero, false
	}
	return r.values[0], true
}

// Any returns nil when nothing matched, the value itself when one entry
// matched, and a []V otherwise.
func (r Result[V]) Any() any {
	switch len(r.values) {
	case 0:
		return nil
	case 1:
		return r.values[0]
	default:
		return r.Values()
	}
}
