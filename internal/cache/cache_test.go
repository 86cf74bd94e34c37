package cache

import (
	"math"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func mustGet[V any](t *testing.T, c *Cache[V], sel Selector) Result[V] {
	t.Helper()
	res, err := c.Get(sel)
	require.NoError(t, err, "get %s", sel)
	return res
}

func TestSetGet(t *testing.T) {
	c := New[string]()
	defer c.Close()

	require.NoError(t, c.Set("a", "A"))
	require.NoError(t, c.Set("b", "B"))

	v, ok := mustGet(t, c, Key("a")).Value()
	require.True(t, ok)
	require.Equal(t, "A", v)

	require.Equal(t, Empty, mustGet(t, c, Key("missing")).Kind())
}

func TestSetOverwriteKeepsPositionAndCount(t *testing.T) {
	c := New[int]()
	defer c.Close()

	for i, k := range []string{"a", "b", "c"} {
		require.NoError(t, c.Set(k, i))
	}
	require.NoError(t, c.Set("b", 42))

	require.Equal(t, 3, c.Len())
	require.Equal(t, []string{"a", "b", "c"}, c.Keys())
	require.Equal(t, []int{0, 42, 2}, mustGet(t, c, All()).Values())
}

func TestGetAllShapes(t *testing.T) {
	c := New[string]()
	defer c.Close()

	require.Nil(t, mustGet(t, c, All()).Any())

	require.NoError(t, c.Set("only", "v"))
	require.Equal(t, "v", mustGet(t, c, All()).Any())

	require.NoError(t, c.Set("second", "w"))
	require.Equal(t, []string{"v", "w"}, mustGet(t, c, All()).Any())
}

func TestExactKeyIsNotAPattern(t *testing.T) {
	c := New[string]()
	defer c.Close()

	require.NoError(t, c.Set("a.c", "dot"))
	require.NoError(t, c.Set("abc", "plain"))

	v, ok := mustGet(t, c, Key("a.c")).Value()
	require.True(t, ok)
	require.Equal(t, "dot", v)

	require.Equal(t, []string{"dot", "plain"}, mustGet(t, c, MustPattern(`^a.c$`)).Values())
}

func TestRemove(t *testing.T) {
	c := New[string]()
	defer c.Close()

	for _, k := range []string{"user:1", "user:2", "session:1", "user:3"} {
		require.NoError(t, c.Set(k, k))
	}

	require.NoError(t, c.Remove(MustPattern(`^user:`)))
	require.Equal(t, []string{"session:1"}, c.Keys())

	require.NoError(t, c.Remove(Key("nope")))
	require.NoError(t, c.Remove(MustPattern(`^zzz`)))
	require.Equal(t, 1, c.Len(), "no-op removes must not change the cache")

	require.NoError(t, c.Remove(All()))
	require.Equal(t, Empty, mustGet(t, c, All()).Kind())
}

func TestScenarioInsertionOrderAndPatternRemove(t *testing.T) {
	c := New[string]()
	defer c.Close()

	require.NoError(t, c.Set("x", "A"))
	require.NoError(t, c.Set("y", "B"))
	require.NoError(t, c.Set("z", "C"))

	require.Equal(t, []string{"A", "B", "C"}, mustGet(t, c, All()).Any())

	require.NoError(t, c.Remove(Pattern(regexp.MustCompile(`^[xy]$`))))

	require.Equal(t, "C", mustGet(t, c, All()).Any())
}

func TestInvalidArgumentsLeaveCacheUnchanged(t *testing.T) {
	c := New[string]()
	defer c.Close()
	require.NoError(t, c.Set("k", "v"))

	_, err := Select(42)
	require.ErrorIs(t, err, ErrInvalidSelectorType)

	_, err = c.Get(Pattern(nil))
	require.ErrorIs(t, err, ErrInvalidSelectorType)
	require.ErrorIs(t, c.Remove(Pattern(nil)), ErrInvalidSelectorType)
	require.ErrorIs(t, c.Set("", "v"), ErrInvalidKeyType)

	require.Equal(t, []string{"k"}, c.Keys())
}

func TestClose_IdempotentAndPreventsMutation(t *testing.T) {
	c := New[string]()
	require.NoError(t, c.Set("k", "v"))

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	require.Zero(t, c.Len(), "Close must drop entries")
	require.ErrorIs(t, c.Set("k", "v"), ErrClosed)
	require.ErrorIs(t, c.Remove(Key("k")), ErrClosed)
}

func TestSeconds(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   float64
		want time.Duration
	}{
		{0, 0},
		{-1, 0},
		{math.NaN(), 0},
		{1e-10, 1},
		{1.5, 1500 * time.Millisecond},
		{1e300, math.MaxInt64},
		{math.Inf(1), math.MaxInt64},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, Seconds(tc.in), "Seconds(%v)", tc.in)
	}
}
