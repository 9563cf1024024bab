package lfu

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/IvanBrykalov/pojocache/eviction"
	"github.com/IvanBrykalov/pojocache/eviction/evictiontest"
	"github.com/IvanBrykalov/pojocache/fqn"
)

func newAlgo(cfg Config) (eviction.Algorithm, *evictiontest.Evictor, *evictiontest.Clock) {
	ev := evictiontest.NewEvictor()
	clk := evictiontest.NewClock(time.Unix(100, 0))
	return cfg.NewAlgorithm(evictiontest.Deps(ev, clk)), ev, clk
}

func TestLFU_EvictsLeastVisited(t *testing.T) {
	t.Parallel()

	a, ev, _ := newAlgo(Config{MaxNodes: 3})
	src := evictiontest.NewSource("/r").
		Add("/r/a", "/r/b", "/r/c", "/r/d").
		Visit("/r/b", "/r/c", "/r/d", "/r/d")

	require.NoError(t, a.Process(context.Background(), src))
	require.Equal(t, []string{"/r/a"}, ev.Evicted())
	require.Equal(t, []string{"/r/b", "/r/c", "/r/d"}, evictiontest.Order(a.EvictionQueue()))
}

// Ties on visit count are broken by the older modification.
func TestLFU_TieBreakByModified(t *testing.T) {
	t.Parallel()

	a, ev, clk := newAlgo(Config{MaxNodes: 1})
	ctx := context.Background()
	require.NoError(t, a.Process(ctx, evictiontest.NewSource("/r").Add("/r/late")))
	clk.Advance(-time.Second)
	require.NoError(t, a.Process(ctx, evictiontest.NewSource("/r").Add("/r/early")))

	require.Equal(t, []string{"/r/early"}, ev.Evicted())
}

func TestLFU_MinNodesKeepsEvicting(t *testing.T) {
	t.Parallel()

	a, ev, _ := newAlgo(Config{MaxNodes: 4, MinNodes: 2})
	src := evictiontest.NewSource("/r").
		Add("/r/a", "/r/b", "/r/c", "/r/d", "/r/e").
		Visit("/r/e", "/r/d", "/r/d")

	require.NoError(t, a.Process(context.Background(), src))
	require.Equal(t, []string{"/r/a", "/r/b", "/r/c"}, ev.Evicted())
	require.Equal(t, 2, a.EvictionQueue().NumberOfNodes())
}

// Adding a path that is already queued counts as a visit, not a new entry.
func TestLFU_RepeatedAddIsVisit(t *testing.T) {
	t.Parallel()

	a, ev, _ := newAlgo(Config{MaxNodes: 2})
	src := evictiontest.NewSource("/r").
		Add("/r/a", "/r/b", "/r/c", "/r/a").
		Visit("/r/c")

	require.NoError(t, a.Process(context.Background(), src))
	require.Equal(t, []string{"/r/b"}, ev.Evicted())
	q := a.EvictionQueue()
	require.Equal(t, 2, q.NumberOfNodes())
	require.Equal(t, 2, q.NodeEntry(fqn.Parse("/r/a")).NumberOfNodeVisits())
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	require.NoError(t, Config{MaxNodes: 10, MinNodes: 5}.Validate())
	err := Config{MaxNodes: 2, MinNodes: 5}.Validate()
	require.True(t, eviction.IsConfigError(err))
	require.True(t, eviction.IsConfigError(Config{MinNodes: -1}.Validate()))
}

// Removals are deferred until the next resort or a head skip.
func TestQueue_DeferredRemoval(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	a := eviction.NewNodeEntry(fqn.Parse("/a"))
	b := eviction.NewNodeEntry(fqn.Parse("/b"))
	b.SetNumberOfNodeVisits(5)
	q.AddNodeEntry(b)
	q.AddNodeEntry(a)
	q.ResortEvictionQueue()
	require.Same(t, a, q.FirstNodeEntry())

	q.RemoveNodeEntry(a)
	require.Equal(t, 1, q.NumberOfNodes())
	require.Equal(t, 1, q.PendingRemovals())
	require.Nil(t, q.NodeEntry(fqn.Parse("/a")))
	require.Same(t, b, q.FirstNodeEntry())
	require.Equal(t, 0, q.PendingRemovals())

	// Re-adding a removed path must not leave a duplicate slot.
	q.RemoveNodeEntry(b)
	b2 := eviction.NewNodeEntry(fqn.Parse("/b"))
	q.AddNodeEntry(b2)
	q.ResortEvictionQueue()
	require.Equal(t, []string{"/b"}, evictiontest.Order(q))
}
