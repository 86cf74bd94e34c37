package cache

import (
	"log/slog"
	"time"
)

// expiry is the handle owned by an entry with a pending expiration.
//
// A firing timer only acts if the entry currently stored under its key still
// owns the same handle. Cancelling replaces or clears the handle under mu, so
// a timer that was already running when it got cancelled finds a different
// handle and does nothing.
type expiry struct {
	timer    *time.Timer
	after    time.Duration
	callback func()
}

// armLocked schedules removal of e if so asks for it.
func (c *Cache[V]) armLocked(e *entry[V], so setOptions) {
	if so.expires <= 0 {
		return
	}

	x := &expiry{after: so.expires, callback: so.callback}
	key := e.key
	x.timer = time.AfterFunc(so.expires, func() { c.expire(key, x) })
	e.expiry = x
}

// disarmLocked cancels e's pending expiry, if any.
func (c *Cache[V]) disarmLocked(e *entry[V]) {
	if e.expiry == nil {
		return
	}
	e.expiry.timer.Stop()
	e.expiry = nil
}

// expire runs on the timer goroutine of x.
func (c *Cache[V]) expire(key string, x *expiry) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	el, ok := c.items[key]
	if !ok || el.Value.(*entry[V]).expiry != x {
		c.mu.Unlock()
		return
	}
	c.deleteLocked(el)
	c.wg.Add(1)
	c.mu.Unlock()

	defer c.wg.Done()

	c.logger.Debug("cache entry expired", slog.String("key", key), slog.Duration("after", x.after))
	if x.callback != nil {
		x.callback()
	}
}
