// Package evictiontest provides deterministic collaborators for testing
// eviction policies: a manual clock, a scripted event source and a
// recording evictor with failure injection.
package evictiontest

import (
	"context"
	"sync"
	"time"

	"github.com/jmgilman/go/errors"

	"github.com/IvanBrykalov/pojocache/eviction"
	"github.com/IvanBrykalov/pojocache/fqn"
)

// Clock is a manually advanced eviction.Clock. Its tickers only fire
// from Advance.
type Clock struct {
	mu      sync.Mutex
	t       int64
	tickers map[*ticker]struct{}
}

// NewClock returns a clock starting at start.
func NewClock(start time.Time) *Clock {
	return &Clock{t: start.UnixNano(), tickers: make(map[*ticker]struct{})}
}

func (c *Clock) NowUnixNano() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// NewTicker returns a ticker firing every d of clock time.
func (c *Clock) NewTicker(d time.Duration) (eviction.Ticker, <-chan time.Time) {
	if d <= 0 {
		panic("evictiontest: non-positive ticker period")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	tk := &ticker{c: c, period: int64(d), next: c.t + int64(d), ch: make(chan time.Time, 1)}
	c.tickers[tk] = struct{}{}
	return tk, tk.ch
}

// Tickers returns the number of running tickers.
func (c *Clock) Tickers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tickers)
}

// Advance moves the clock forward by d and fires the tickers that became
// due. Like time.Ticker, a tick is dropped while the previous one is
// still unread.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t += int64(d)
	for tk := range c.tickers {
		if tk.next > c.t {
			continue
		}
		select {
		case tk.ch <- time.Unix(0, c.t):
		default:
		}
		for tk.next <= c.t {
			tk.next += tk.period
		}
	}
}

type ticker struct {
	c      *Clock
	period int64
	next   int64
	ch     chan time.Time
}

func (tk *ticker) Stop() {
	tk.c.mu.Lock()
	delete(tk.c.tickers, tk)
	tk.c.mu.Unlock()
}

// Source is a scripted eviction.EventSource.
type Source struct {
	Root   fqn.Fqn
	events []eviction.Event
}

// NewSource returns an empty source for the region rooted at root.
func NewSource(root string) *Source { return &Source{Root: fqn.Parse(root)} }

func (s *Source) Fqn() fqn.Fqn { return s.Root }

func (s *Source) TakeLastEvent() (eviction.Event, bool) {
	if len(s.events) == 0 {
		return eviction.Event{}, false
	}
	ev := s.events[0]
	s.events = s.events[1:]
	return ev, true
}

// Push appends raw events.
func (s *Source) Push(evs ...eviction.Event) *Source {
	s.events = append(s.events, evs...)
	return s
}

// Add queues AddNodeEvents with one element for each path.
func (s *Source) Add(paths ...string) *Source {
	for _, p := range paths {
		s.events = append(s.events, eviction.Event{Fqn: fqn.Parse(p), Type: eviction.AddNodeEvent, ElementDelta: 1})
	}
	return s
}

// Visit queues VisitNodeEvents.
func (s *Source) Visit(paths ...string) *Source {
	for _, p := range paths {
		s.events = append(s.events, eviction.Event{Fqn: fqn.Parse(p), Type: eviction.VisitNodeEvent})
	}
	return s
}

// Remove queues RemoveNodeEvents.
func (s *Source) Remove(paths ...string) *Source {
	for _, p := range paths {
		s.events = append(s.events, eviction.Event{Fqn: fqn.Parse(p), Type: eviction.RemoveNodeEvent})
	}
	return s
}

// Len returns the number of queued events.
func (s *Source) Len() int { return len(s.events) }

// Evictor records evictions and fails paths on demand.
type Evictor struct {
	mu      sync.Mutex
	evicted []string
	calls   map[string]int
	failing map[string]int
}

// NewEvictor returns an evictor that succeeds until told otherwise.
func NewEvictor() *Evictor {
	return &Evictor{calls: map[string]int{}, failing: map[string]int{}}
}

// FailNext makes the next n evictions of path fail with a lock timeout.
func (e *Evictor) FailNext(path string, n int) {
	e.mu.Lock()
	e.failing[fqn.Parse(path).String()] = n
	e.mu.Unlock()
}

func (e *Evictor) Evict(_ context.Context, f fqn.Fqn) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	k := f.String()
	e.calls[k]++
	if e.failing[k] > 0 {
		e.failing[k]--
		return errors.Newf(errors.CodeTimeout, "lock timeout on %s", k)
	}
	e.evicted = append(e.evicted, k)
	return nil
}

// Evicted returns successfully evicted paths in order.
func (e *Evictor) Evicted() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.evicted...)
}

// Calls returns how many times path was passed to Evict.
func (e *Evictor) Calls(path string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls[fqn.Parse(path).String()]
}

// Deps returns eviction dependencies using e and clock.
func Deps(e eviction.Evictor, clock eviction.Clock) eviction.Deps {
	return eviction.Deps{Evictor: e, Clock: clock}
}

// Order returns the paths of q's entries in eviction order.
func Order(q eviction.Queue) []string {
	var out []string
	for e := range q.Entries() {
		out = append(out, e.Key())
	}
	return out
}
