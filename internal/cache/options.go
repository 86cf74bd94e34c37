package cache

import (
	"log/slog"
	"math"
	"time"

	"gostash/internal/logger"
)

// Option configures a Cache.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

func defaultOptions() *options {
	return &options{
		logger: logger.NewNope(),
	}
}

// WithLogger sets the logger used for expiry and clear events.
// Default: a logger that discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// SetOption configures a single Set call.
type SetOption func(*setOptions)

type setOptions struct {
	expires  time.Duration
	callback func()
}

// WithExpiry removes the entry once d has elapsed. Zero or negative d means
// the entry never expires.
func WithExpiry(d time.Duration) SetOption {
	return func(o *setOptions) {
		o.expires = d
	}
}

// Seconds converts a number of seconds to an expiry duration. Any positive
// value yields at least one nanosecond and values beyond the range of
// time.Duration saturate. Zero, negative and NaN give zero.
func Seconds(s float64) time.Duration {
	if !(s > 0) {
		return 0
	}
	ns := s * float64(time.Second)
	if ns >= math.MaxInt64 {
		return math.MaxInt64
	}
	return max(time.Duration(ns), 1)
}

// WithCallback sets a function that is called with no arguments after the
// entry has been removed by its expiry timer. It is not called for explicit
// removals or when the entry never expires.
func WithCallback(fn func()) SetOption {
	return func(o *setOptions) {
		o.callback = fn
	}
}
