package eviction

import (
	"context"
	"log/slog"

	"github.com/IvanBrykalov/pojocache/fqn"
)

// Listener turns node lifecycle callbacks of the tree store into region
// events. Paths at or below an ignored prefix are not tracked. Evictions
// produce no event: the algorithm already dropped the entry, and callers
// evicting outside a pass report it with RegionManager.NodeRemoved.
type Listener struct {
	regions *RegionManager
	ignore  []fqn.Fqn
	log     *slog.Logger
}

// NewListener creates a listener routing into m.
func NewListener(m *RegionManager, ignore ...fqn.Fqn) *Listener {
	return &Listener{regions: m, ignore: ignore, log: m.deps.Logger}
}

func (l *Listener) tracked(f fqn.Fqn) bool {
	if f.IsRoot() {
		return false
	}
	for _, p := range l.ignore {
		if f.IsChildOrEquals(p) {
			return false
		}
	}
	return true
}

func (l *Listener) report(f fqn.Fqn, err error) {
	if err != nil {
		l.log.Error("dropping eviction event", "fqn", f.String(), "error", err)
	}
}

// NodeCreated implements the tree listener.
func (l *Listener) NodeCreated(f fqn.Fqn) {
	if l.tracked(f) {
		l.report(f, l.regions.NodeAdded(context.Background(), f, 0))
	}
}

// NodeModified implements the tree listener. delta is the change in the
// node's element count; 0 means an existing element was overwritten.
func (l *Listener) NodeModified(f fqn.Fqn, delta int) {
	if !l.tracked(f) {
		return
	}
	ctx := context.Background()
	switch {
	case delta > 0:
		l.report(f, l.regions.ElementsAdded(ctx, f, delta))
	case delta < 0:
		l.report(f, l.regions.ElementsRemoved(ctx, f, -delta))
	default:
		l.report(f, l.regions.NodeVisited(ctx, f))
	}
}

// NodeVisited implements the tree listener.
func (l *Listener) NodeVisited(f fqn.Fqn) {
	if l.tracked(f) {
		l.report(f, l.regions.NodeVisited(context.Background(), f))
	}
}

// NodeRemoved implements the tree listener.
func (l *Listener) NodeRemoved(f fqn.Fqn) {
	if l.tracked(f) {
		l.report(f, l.regions.NodeRemoved(context.Background(), f))
	}
}

// NodeEvicted implements the tree listener.
func (l *Listener) NodeEvicted(fqn.Fqn) {}
