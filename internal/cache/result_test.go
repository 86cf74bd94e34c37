package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestResult(t *testing.T) {
	t.Parallel()

	t.Run("empty", func(t *testing.T) {
		var r Result[int]
		require.Equal(t, Empty, r.Kind())
		require.Zero(t, r.Len())
		_, ok := r.Value()
		require.False(t, ok)
		_, ok = r.First()
		require.False(t, ok)
		require.Nil(t, r.Any())
	})

	t.Run("single", func(t *testing.T) {
		r := Result[int]{values: []int{7}}
		require.Equal(t, Single, r.Kind())
		v, ok := r.Value()
		require.True(t, ok)
		require.Equal(t, 7, v)
		require.Equal(t, 7, r.Any())
	})

	t.Run("many", func(t *testing.T) {
		r := Result[int]{values: []int{1, 2}}
		require.Equal(t, Many, r.Kind())
		_, ok := r.Value()
		require.False(t, ok)
		first, ok := r.First()
		require.True(t, ok)
		require.Equal(t, 1, first)
		require.Equal(t, []int{1, 2}, r.Any())
	})

	t.Run("values is a copy", func(t *testing.T) {
		r := Result[int]{values: []int{1, 2}}
		vs := r.Values()
		vs[0] = 100
		require.Equal(t, []int{1, 2}, r.Values())
	})
}

func TestGetOrSet(t *testing.T) {
	t.Parallel()

	t.Run("returns cached value on hit", func(t *testing.T) {
		t.Parallel()

		c := New[string]()
		defer c.Close()
		require.NoError(t, c.Set("key", "cached"))

		val, err := c.GetOrSet("key", func() (string, []SetOption, error) {
			t.Fatal("fn should not be called on cache hit")
			return "", nil, nil
		})
		require.NoError(t, err)
		require.Equal(t, "cached", val)
	})

	t.Run("calls fn on miss and caches result", func(t *testing.T) {
		t.Parallel()

		c := New[string]()
		defer c.Close()

		val, err := c.GetOrSet("key", func() (string, []SetOption, error) {
			return "computed", []SetOption{WithExpiry(time.Minute)}, nil
		})
		require.NoError(t, err)
		require.Equal(t, "computed", val)
		require.Equal(t, "computed", mustGet(t, c, Key("key")).Any())
	})

	t.Run("returns error from fn", func(t *testing.T) {
		t.Parallel()

		c := New[string]()
		defer c.Close()

		testErr := errors.New("compute failed")
		_, err := c.GetOrSet("key", func() (string, []SetOption, error) {
			return "", nil, testErr
		})
		require.ErrorIs(t, err, testErr)
		require.Zero(t, c.Len())
	})

	t.Run("deduplicates concurrent calls", func(t *testing.T) {
		t.Parallel()

		c := New[int]()
		defer c.Close()

		var calls atomic.Int64
		var wg sync.WaitGroup
		for range 10 {
			wg.Go(func() {
				val, err := c.GetOrSet("dedup", func() (int, []SetOption, error) {
					calls.Add(1)
					time.Sleep(10 * time.Millisecond)
					return 42, nil, nil
				})
				require.NoError(t, err)
				require.Equal(t, 42, val)
			})
		}
		wg.Wait()

		require.LessOrEqual(t, calls.Load(), int64(2))
		require.Equal(t, 1, c.Len())
	})
}
