package cache

import (
	"container/list"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Cache is an in-memory key–value store with exact or pattern lookup and
// optional per-entry expiry timers.
//
// Entries are kept in insertion order: a map gives O(1) lookup by key for
// Set and for expiring timers, and a doubly-linked list holds the order that
// Get, Remove and Keys observe.
//
// Expiry timers fire on their own goroutines, so every access goes through
// mu. Expiry callbacks run with mu released.
type Cache[V any] struct {
	mu sync.Mutex

	items map[string]*list.Element
	order *list.List // Front = oldest insertion, Back = newest

	logger *slog.Logger
	group  singleflight.Group

	// Tracks expiry callbacks that have started, so Close can wait for them.
	wg     sync.WaitGroup
	closed bool
}

// entry is the value stored in the list elements.
//
// expiry is nil when the entry never expires.
type entry[V any] struct {
	key    string
	value  V
	expiry *expiry
}

// New constructs an empty cache.
//
// New never returns a nil Cache.
func New[V any](opts ...Option) *Cache[V] {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	return &Cache[V]{
		items:  make(map[string]*list.Element),
		order:  list.New(),
		logger: o.logger,
	}
}

// Close cancels every pending expiry timer, drops all entries and waits for
// expiry callbacks that are already running. Afterwards Set and Remove
// return ErrClosed.
//
// Close is safe to call multiple times. It must not be called from an
// expiry callback.
func (c *Cache[V]) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.clearLocked()
	c.mu.Unlock()

	// Wait outside the lock: running callbacks may still call into the cache.
	c.wg.Wait()
	return nil
}

// Set stores value under key, replacing the value of an existing entry in
// place or appending a new entry after all others.
//
// Any pending expiry for key is cancelled. If WithExpiry is given a positive
// duration, a new timer removes the entry once it elapses and then calls the
// WithCallback function, if any.
func (c *Cache[V]) Set(key string, value V, opts ...SetOption) error {
	if key == "" {
		return KeyTypeError("set", "empty string")
	}

	var so setOptions
	for _, opt := range opts {
		opt(&so)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry[V])
		e.value = value
		c.disarmLocked(e)
		c.armLocked(e, so)
		return nil
	}

	e := &entry[V]{key: key, value: value}
	c.items[key] = c.order.PushBack(e)
	c.armLocked(e, so)
	return nil
}

// Get returns the values of all entries matched by sel, in store order.
// It never mutates the cache and never touches timers.
func (c *Cache[V]) Get(sel Selector) (Result[V], error) {
	if err := sel.validate("get"); err != nil {
		return Result[V]{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	matched := c.matchLocked(sel)
	if len(matched) == 0 {
		return Result[V]{}, nil
	}
	values := make([]V, 0, len(matched))
	for _, el := range matched {
		values = append(values, el.Value.(*entry[V]).value)
	}
	return Result[V]{values: values}, nil
}

// Remove deletes every entry matched by sel and cancels their pending
// expiry timers. Removing keys that are not present is a no-op.
func (c *Cache[V]) Remove(sel Selector) error {
	if err := sel.validate("remove"); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	if sel.IsAll() {
		c.clearLocked()
		return nil
	}

	// Remove from the highest position down so the snapshot stays valid.
	matched := c.matchLocked(sel)
	for i := len(matched) - 1; i >= 0; i-- {
		c.deleteLocked(matched[i])
	}
	return nil
}

// GetOrSet returns the value stored under key. On a miss it calls fn to
// compute the value and stores it with the returned options. Concurrent
// misses for the same key share a single call to fn.
//
// If fn returns an error nothing is stored and the error is returned.
func (c *Cache[V]) GetOrSet(key string, fn func() (V, []SetOption, error)) (V, error) {
	res, err := c.Get(Key(key))
	if err != nil {
		var zero V
		return zero, err
	}
	if v, ok := res.First(); ok {
		return v, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		val, opts, err := fn()
		if err != nil {
			return nil, err
		}
		if err := c.Set(key, val, opts...); err != nil {
			return nil, err
		}
		return val, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	val, _ := v.(V) // v is nil when V is an interface and fn returned nil
	return val, nil
}

// Len returns the number of stored entries.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Keys returns keys in insertion order.
func (c *Cache[V]) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]string, 0, c.order.Len())
	for el := c.order.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(*entry[V]).key)
	}
	return out
}

// matchLocked returns the elements matched by sel in store order.
// The slice is only valid until the next mutation.
func (c *Cache[V]) matchLocked(sel Selector) []*list.Element {
	var out []*list.Element
	for el := c.order.Front(); el != nil; el = el.Next() {
		if sel.matches(el.Value.(*entry[V]).key) {
			out = append(out, el)
		}
	}
	return out
}

func (c *Cache[V]) deleteLocked(el *list.Element) {
	e := el.Value.(*entry[V])
	c.disarmLocked(e)
	delete(c.items, e.key)
	c.order.Remove(el)
}

func (c *Cache[V]) clearLocked() {
	n := len(c.items)
	for el := c.order.Front(); el != nil; el = el.Next() {
		c.disarmLocked(el.Value.(*entry[V]))
	}
	c.items = make(map[string]*list.Element)
	c.order.Init()
	if n > 0 {
		c.logger.Debug("cache cleared", slog.Int("entries", n))
	}
}
