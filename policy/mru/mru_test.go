package mru

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/IvanBrykalov/pojocache/eviction"
	"github.com/IvanBrykalov/pojocache/eviction/evictiontest"
	"github.com/IvanBrykalov/pojocache/fqn"
)

// add A, B, C; visit A => eviction order A, C, B.
func TestQueue_VisitMovesToTop(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	a := eviction.NewNodeEntry(fqn.Parse("/A"))
	for _, e := range []*eviction.NodeEntry{a, eviction.NewNodeEntry(fqn.Parse("/B")), eviction.NewNodeEntry(fqn.Parse("/C"))} {
		q.AddNodeEntry(e)
	}
	q.Visit(a)

	require.Equal(t, []string{"/A", "/C", "/B"}, evictiontest.Order(q))
	require.Same(t, a, q.FirstNodeEntry())
}

func TestMRU_EvictsMostRecentlyUsed(t *testing.T) {
	t.Parallel()

	ev := evictiontest.NewEvictor()
	a := Config{MaxNodes: 2}.NewAlgorithm(evictiontest.Deps(ev, evictiontest.NewClock(time.Unix(0, 0))))
	src := evictiontest.NewSource("/r").
		Add("/r/a", "/r/b", "/r/c").
		Visit("/r/a")

	require.NoError(t, a.Process(context.Background(), src))
	require.Equal(t, []string{"/r/a"}, ev.Evicted())
	require.Equal(t, []string{"/r/c", "/r/b"}, evictiontest.Order(a.EvictionQueue()))
}
