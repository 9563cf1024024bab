package eviction_test

import (
	"context"
	"testing"
	"time"

	"github.com/jmgilman/go/errors"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/IvanBrykalov/pojocache/eviction"
	"github.com/IvanBrykalov/pojocache/eviction/evictiontest"
	"github.com/IvanBrykalov/pojocache/fqn"
	"github.com/IvanBrykalov/pojocache/policy/fifo"
	"github.com/IvanBrykalov/pojocache/policy/lru"
)

func newManager(t *testing.T, capacity int) (*eviction.RegionManager, *evictiontest.Evictor) {
	t.Helper()
	ev := evictiontest.NewEvictor()
	return eviction.NewRegionManager(evictiontest.Deps(ev, evictiontest.NewClock(time.Unix(0, 0))), capacity), ev
}

func TestCreateRegion_Conflicts(t *testing.T) {
	t.Parallel()

	m, _ := newManager(t, 0)
	_, err := m.CreateRegion(eviction.DefaultRegion, fifo.Config{MaxNodes: 10})
	require.NoError(t, err)
	_, err = m.CreateRegion(fqn.Parse("/a/b"), fifo.Config{MaxNodes: 10})
	require.NoError(t, err)

	for _, p := range []string{"/a/b", "/a", "/a/b/c"} {
		_, err = m.CreateRegion(fqn.Parse(p), fifo.Config{MaxNodes: 10})
		require.Error(t, err, p)
		require.True(t, eviction.IsRegionConflict(err), p)
	}
	require.NoError(t, m.CheckConflict(fqn.Parse("/a/c")))

	_, err = m.CreateRegion(fqn.Parse("/x"), lru.Config{})
	require.True(t, eviction.IsConfigError(err))
	require.False(t, m.HasRegion(fqn.Parse("/x")))
}

func TestGetRegion_LongestPrefix(t *testing.T) {
	t.Parallel()

	m, _ := newManager(t, 0)
	for _, p := range []string{"/org/acme/data", "/org/acme/test/data", "/_default_"} {
		_, err := m.CreateRegion(fqn.Parse(p), fifo.Config{MaxNodes: 10})
		require.NoError(t, err)
	}

	cases := map[string]string{
		"/org/acme/data/x/y":  "/org/acme/data",
		"/org/acme/data":      "/org/acme/data",
		"/org/acme/test/data": "/org/acme/test/data",
		"/org/acme/test":      "/_default_",
		"/elsewhere":           "/_default_",
	}
	for in, want := range cases {
		r, err := m.GetRegion(fqn.Parse(in))
		require.NoError(t, err, in)
		require.Equal(t, want, r.Fqn().String(), in)
	}

	require.True(t, m.RemoveRegion(fqn.Parse("/org/acme/test/data")))
	require.False(t, m.RemoveRegion(fqn.Parse("/org/acme/test/data")))
	r, err := m.GetRegion(fqn.Parse("/org/acme/test/data/z"))
	require.NoError(t, err)
	require.Equal(t, "/_default_", r.Fqn().String())

	got := make([]string, 0, 2)
	for _, r := range m.Regions() {
		got = append(got, r.Fqn().String())
	}
	require.Equal(t, []string{"/_default_", "/org/acme/data"}, got)
}

func TestGetRegion_NoDefault(t *testing.T) {
	t.Parallel()

	m, _ := newManager(t, 0)
	_, err := m.CreateRegion(fqn.Parse("/a"), fifo.Config{MaxNodes: 1})
	require.NoError(t, err)

	_, err = m.GetRegion(fqn.Parse("/b"))
	require.True(t, eviction.IsConfigError(err))
	require.ErrorContains(t, m.NodeAdded(context.Background(), fqn.Parse("/b"), 1), "default region")
}

// A full event queue blocks producers until the consumer drains it.
func TestPutNodeEvent_BlocksUntilDrained(t *testing.T) {
	t.Parallel()

	m, _ := newManager(t, 2)
	r, err := m.CreateRegion(eviction.DefaultRegion, fifo.Config{MaxNodes: 10})
	require.NoError(t, err)
	require.Equal(t, 2, r.EventQueueCapacity())

	ctx := context.Background()
	require.NoError(t, m.NodeAdded(ctx, fqn.Parse("/a"), 1))
	require.NoError(t, m.NodeAdded(ctx, fqn.Parse("/b"), 1))

	var eg errgroup.Group
	done := make(chan struct{})
	eg.Go(func() error {
		defer close(done)
		return m.NodeAdded(ctx, fqn.Parse("/c"), 1)
	})

	select {
	case <-done:
		t.Fatal("put on a full queue must block")
	case <-time.After(50 * time.Millisecond):
	}

	ev, ok := r.TakeLastEvent()
	require.True(t, ok)
	require.Equal(t, "/a", ev.Fqn.String())
	require.NoError(t, eg.Wait())
	require.Equal(t, 2, r.NodeEventQueueSize())
}

func TestPutNodeEvent_ContextTimeout(t *testing.T) {
	t.Parallel()

	m, _ := newManager(t, 1)
	r, err := m.CreateRegion(eviction.DefaultRegion, fifo.Config{MaxNodes: 10})
	require.NoError(t, err)
	require.NoError(t, r.PutNodeEvent(context.Background(), eviction.Event{Fqn: fqn.Parse("/a")}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err = r.PutNodeEvent(ctx, eviction.Event{Fqn: fqn.Parse("/b")})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, errors.CodeTimeout, errors.GetCode(err))
}

// Region processing drives the algorithm through the manager's events.
func TestRegion_ProcessEvictsThroughEvictor(t *testing.T) {
	t.Parallel()

	m, ev := newManager(t, 0)
	r, err := m.CreateRegion(fqn.Parse("/data"), fifo.Config{MaxNodes: 2})
	require.NoError(t, err)

	ctx := context.Background()
	for _, p := range []string{"/data/1", "/data/2", "/data/3"} {
		require.NoError(t, m.NodeAdded(ctx, fqn.Parse(p), 1))
	}
	require.NoError(t, m.NodeVisited(ctx, fqn.Parse("/data/1")))
	require.NoError(t, m.ElementsAdded(ctx, fqn.Parse("/data/2"), 4))
	require.NoError(t, r.Process(ctx))

	require.Equal(t, []string{"/data/1"}, ev.Evicted())
	q := r.Algorithm().EvictionQueue()
	require.Equal(t, 2, q.NumberOfNodes())
	require.Equal(t, 6, q.NumberOfElements())
	require.Equal(t, 0, r.NodeEventQueueSize())

	require.NoError(t, m.NodeRemoved(ctx, fqn.Parse("/data/2")))
	require.NoError(t, m.ElementsRemoved(ctx, fqn.Parse("/data/3"), 1))
	require.NoError(t, r.Process(ctx))
	require.Equal(t, 1, q.NumberOfNodes())
	require.Equal(t, 0, q.NumberOfElements())
}

func TestRegion_MarkInUse(t *testing.T) {
	t.Parallel()

	m, ev := newManager(t, 0)
	r, err := m.CreateRegion(fqn.Parse("/data"), fifo.Config{MaxNodes: 1})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, m.NodeAdded(ctx, fqn.Parse("/data/1"), 1))
	require.NoError(t, m.MarkNodeCurrentlyInUse(ctx, fqn.Parse("/data/1"), 0))
	require.NoError(t, m.NodeAdded(ctx, fqn.Parse("/data/2"), 1))
	require.NoError(t, r.Process(ctx))
	require.Equal(t, []string{"/data/2"}, ev.Evicted())

	require.NoError(t, m.NodeAdded(ctx, fqn.Parse("/data/3"), 1))
	require.NoError(t, m.UnmarkNodeCurrentlyInUse(ctx, fqn.Parse("/data/1")))
	require.NoError(t, r.Process(ctx))
	require.Equal(t, []string{"/data/2", "/data/1"}, ev.Evicted())
}

func TestNewRegionManager_RequiresEvictor(t *testing.T) {
	t.Parallel()
	require.Panics(t, func() { eviction.NewRegionManager(eviction.Deps{}, 0) })
}
