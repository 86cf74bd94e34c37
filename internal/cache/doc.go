// Package cache implements a single-process, in-memory key–value cache.
//
// Entries keep their insertion order and are looked up by a [Selector]:
// every entry, one exact key, or every key matching a regular expression.
// Lookups return a [Result] that is Empty, Single or Many.
//
// An entry may carry an expiry: a one-shot timer that removes the entry once
// its duration elapses and then runs an optional callback. Overwriting or
// removing the entry cancels the timer, and a cancelled timer never removes
// anything or runs its callback.
//
//	c := cache.New[string]()
//	defer c.Close()
//
//	c.Set("x", "A")
//	c.Set("y", "B", cache.WithExpiry(time.Second))
//	res, _ := c.Get(cache.MustPattern(`^[xy]$`)) // Many: [A B]
package cache
