package cache

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned when a mutation is attempted on a closed cache.
	ErrClosed = errors.New("cache is closed")

	// ErrInvalidSelectorType is matched by errors returned when a lookup
	// selector is neither absent, a string key nor a pattern.
	ErrInvalidSelectorType = errors.New("invalid selector type")

	// ErrInvalidKeyType is matched by errors returned when a key is not a
	// non-empty string.
	ErrInvalidKeyType = errors.New("invalid key type")
)

// TypeError describes an argument of the wrong type passed to a cache
// operation. It matches ErrInvalidSelectorType or ErrInvalidKeyType with
// errors.Is, depending on Kind.
type TypeError struct {
	Kind error  // ErrInvalidSelectorType or ErrInvalidKeyType
	Op   string // operation that rejected the argument, e.g. "get"
	Want string
	Got  string
}

func (e *TypeError) Error() string {
	if e.Got == "" {
		return fmt.Sprintf("%s: %s should be %s", e.Op, e.subject(), e.Want)
	}
	return fmt.Sprintf("%s: %s should be %s, got %s", e.Op, e.subject(), e.Want, e.Got)
}

func (e *TypeError) subject() string {
	if e.Kind == ErrInvalidKeyType {
		return "key"
	}
	return "lookup selector"
}

func (e *TypeError) Is(target error) bool { return target == e.Kind }

// SelectorTypeError returns an error for op rejecting a selector of type got.
func SelectorTypeError(op, got string) error {
	return &TypeError{Kind: ErrInvalidSelectorType, Op: op, Want: "a string or pattern", Got: got}
}

// KeyTypeError returns an error for op rejecting a key of type got.
func KeyTypeError(op, got string) error {
	return &TypeError{Kind: ErrInvalidKeyType, Op: op, Want: "a non-empty string", Got: got}
}
