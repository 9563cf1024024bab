package lru

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/IvanBrykalov/pojocache/eviction"
	"github.com/IvanBrykalov/pojocache/eviction/evictiontest"
	"github.com/IvanBrykalov/pojocache/fqn"
)

func newAlgo(t *testing.T, cfg Config) (eviction.Algorithm, *evictiontest.Evictor, *evictiontest.Clock) {
	t.Helper()
	require.NoError(t, cfg.Validate())
	ev := evictiontest.NewEvictor()
	clk := evictiontest.NewClock(time.Unix(1_000, 0))
	return cfg.NewAlgorithm(evictiontest.Deps(ev, clk)), ev, clk
}

// Nodes idle for at least the TTL are evicted; a visit resets idleness.
func TestLRU_IdleTime(t *testing.T) {
	t.Parallel()

	a, ev, clk := newAlgo(t, Config{TimeToLive: 10 * time.Second})
	ctx := context.Background()
	require.NoError(t, a.Process(ctx, evictiontest.NewSource("/r").Add("/r/a", "/r/b")))

	clk.Advance(5 * time.Second)
	require.NoError(t, a.Process(ctx, evictiontest.NewSource("/r").Visit("/r/a")))
	require.Empty(t, ev.Evicted())

	clk.Advance(6 * time.Second)
	require.NoError(t, a.Process(ctx, evictiontest.NewSource("/r")))
	require.Equal(t, []string{"/r/b"}, ev.Evicted())
	require.Equal(t, []string{"/r/a"}, evictiontest.Order(a.EvictionQueue()))
}

// Age is measured from creation; visits do not help.
func TestLRU_MaxAge(t *testing.T) {
	t.Parallel()

	a, ev, clk := newAlgo(t, Config{MaxAge: 10 * time.Second})
	ctx := context.Background()
	require.NoError(t, a.Process(ctx, evictiontest.NewSource("/r").Add("/r/a")))
	clk.Advance(5 * time.Second)
	require.NoError(t, a.Process(ctx, evictiontest.NewSource("/r").Add("/r/b").Visit("/r/a", "/r/a")))

	clk.Advance(6 * time.Second)
	require.NoError(t, a.Process(ctx, evictiontest.NewSource("/r").Visit("/r/a")))
	require.Equal(t, []string{"/r/a"}, ev.Evicted())

	q := a.EvictionQueue().(*Queue)
	require.Equal(t, "/r/b", q.FirstMaxAgeNodeEntry().Key())
}

func TestLRU_MaxNodesEvictsLeastRecentlyUsed(t *testing.T) {
	t.Parallel()

	a, ev, _ := newAlgo(t, Config{MaxNodes: 2})
	src := evictiontest.NewSource("/r").
		Add("/r/a", "/r/b", "/r/c").
		Visit("/r/a")

	require.NoError(t, a.Process(context.Background(), src))
	require.Equal(t, []string{"/r/b"}, ev.Evicted())
	require.Equal(t, []string{"/r/c", "/r/a"}, evictiontest.Order(a.EvictionQueue()))
}

// In-use nodes are skipped without ending the pass; expired marks lapse.
func TestLRU_InUseSkipped(t *testing.T) {
	t.Parallel()

	a, ev, clk := newAlgo(t, Config{TimeToLive: time.Second})
	ctx := context.Background()
	src := evictiontest.NewSource("/r").
		Add("/r/a", "/r/b", "/r/c").
		Push(
			eviction.Event{Fqn: fqn.Parse("/r/a"), Type: eviction.MarkInUseEvent},
			eviction.Event{Fqn: fqn.Parse("/r/b"), Type: eviction.MarkInUseEvent, InUseTimeout: 5 * time.Second},
		)
	require.NoError(t, a.Process(ctx, src))

	clk.Advance(2 * time.Second)
	require.NoError(t, a.Process(ctx, evictiontest.NewSource("/r")))
	require.Equal(t, []string{"/r/c"}, ev.Evicted())

	clk.Advance(4 * time.Second)
	require.NoError(t, a.Process(ctx, evictiontest.NewSource("/r")))
	require.Equal(t, []string{"/r/c", "/r/b"}, ev.Evicted())

	unmark := evictiontest.NewSource("/r").Push(eviction.Event{Fqn: fqn.Parse("/r/a"), Type: eviction.UnmarkUseEvent})
	require.NoError(t, a.Process(ctx, unmark))
	require.Equal(t, []string{"/r/c", "/r/b", "/r/a"}, ev.Evicted())
}

func TestQueue_TwoOrders(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	a := eviction.NewNodeEntry(fqn.Parse("/a"))
	b := eviction.NewNodeEntry(fqn.Parse("/b"))
	q.AddNodeEntry(a)
	q.AddNodeEntry(b)
	q.Visit(a)

	require.Same(t, b, q.FirstNodeEntry())
	require.Same(t, a, q.FirstMaxAgeNodeEntry())

	q.RemoveNodeEntry(a)
	require.Nil(t, q.NodeEntry(fqn.Parse("/a")))
	require.Same(t, b, q.FirstMaxAgeNodeEntry())
	q.Prune()
	require.Equal(t, 1, q.NumberOfNodes())
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	require.True(t, eviction.IsConfigError(Config{}.Validate()))
	require.True(t, eviction.IsConfigError(Config{TimeToLive: -time.Second}.Validate()))
	require.NoError(t, Config{MaxAge: time.Minute}.Validate())
}
