package util

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNextPow2(t *testing.T) {
	t.Parallel()

	cases := map[uint64]uint64{0: 1, 1: 1, 2: 2, 3: 4, 17: 32, 1024: 1024, 1025: 2048}
	for in, want := range cases {
		require.Equal(t, want, NextPow2(in), "NextPow2(%d)", in)
	}
	require.Equal(t, uint64(1)<<63, NextPow2(1<<63+1))
}

func TestStripeIndexInRange(t *testing.T) {
	t.Parallel()

	for _, stripes := range []int{1, 7, 16, ReasonableStripeCount()} {
		for _, k := range []string{"", "/", "/a", "/a/b/c", "/_default_"} {
			i := StripeIndex(Fnv64a(k), stripes)
			require.GreaterOrEqual(t, i, 0)
			require.Less(t, i, max(stripes, 1))
		}
	}
}

func TestFnv64aKnownVector(t *testing.T) {
	t.Parallel()

	// FNV-1a 64 of "a".
	require.Equal(t, uint64(0xaf63dc4c8601ec8c), Fnv64a("a"))
	require.Equal(t, uint64(fnvOffset64), Fnv64a(""))
}
