package pojo

import (
	"sync"
	"sync/atomic"

	"github.com/jmgilman/go/errors"

	"github.com/IvanBrykalov/pojocache/fqn"
	"github.com/IvanBrykalov/pojocache/internal/util"
)

// Locks is a striped lock table keyed by path. Distinct paths may share a
// stripe, so a goroutine must not hold two guards at once.
type Locks struct {
	stripes []sync.Mutex
}

// NewLocks creates a table with n stripes, rounded up to a power of two.
// n <= 0 selects a count derived from GOMAXPROCS.
func NewLocks(n int) *Locks {
	if n <= 0 {
		n = util.ReasonableStripeCount()
	}
	return &Locks{stripes: make([]sync.Mutex, util.NextPow2(uint64(n)))}
}

// Stripes returns the number of stripes.
func (l *Locks) Stripes() int { return len(l.stripes) }

func (l *Locks) index(f fqn.Fqn) int {
	return util.StripeIndex(util.Fnv64a(f.String()), len(l.stripes))
}

// Lock blocks until f's stripe is held and returns the guard for f.
func (l *Locks) Lock(f fqn.Fqn) *Guard {
	i := l.index(f)
	l.stripes[i].Lock()
	return &Guard{locks: l, fqn: f, stripe: i}
}

// Guard proves that the lock for one path is held.
type Guard struct {
	locks    *Locks
	fqn      fqn.Fqn
	stripe   int
	released atomic.Bool
}

// Fqn returns the path the guard covers.
func (g *Guard) Fqn() fqn.Fqn { return g.fqn }

// Unlock releases the lock. Later calls are no-ops.
func (g *Guard) Unlock() {
	if g.released.CompareAndSwap(false, true) {
		g.locks.stripes[g.stripe].Unlock()
	}
}

// covers returns an error unless g is a live guard for f.
func (g *Guard) covers(f fqn.Fqn) error {
	switch {
	case g == nil:
		return errors.Newf(errors.CodeInternal, "pojo: no lock held for %s", f)
	case g.released.Load():
		return errors.Newf(errors.CodeInternal, "pojo: lock for %s already released", g.fqn)
	case !g.fqn.Equal(f):
		return errors.Newf(errors.CodeInternal, "pojo: lock held for %s, not %s", g.fqn, f)
	}
	return nil
}
