package eviction

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/jmgilman/go/errors"

	"github.com/IvanBrykalov/pojocache/fqn"
)

// DefaultRegionName names the fallback region.
const DefaultRegionName = "_default_"

// DefaultRegion is the root of the fallback region. Every manager used for
// event routing must have it.
var DefaultRegion = fqn.New(DefaultRegionName)

// RegionManager owns the regions of one cache and routes node events to
// the region governing each path. Safe for concurrent use.
type RegionManager struct {
	mu      sync.RWMutex
	regions map[string]*Region
	// longest is the largest region root length, the starting point of
	// the ancestor walk in GetRegion.
	longest int

	deps          Deps
	queueCapacity int
}

// NewRegionManager creates an empty manager. eventQueueCapacity <= 0 selects
// DefaultEventQueueCapacity.
func NewRegionManager(d Deps, eventQueueCapacity int) *RegionManager {
	if d.Evictor == nil {
		panic("eviction: Deps.Evictor must be set")
	}
	return &RegionManager{
		regions:       make(map[string]*Region),
		deps:          d.withDefaults(),
		queueCapacity: eventQueueCapacity,
	}
}

// CreateRegion registers a region rooted at f. Region roots may not be
// ancestors or descendants of one another; the default region is exempt.
func (m *RegionManager) CreateRegion(f fqn.Fqn, cfg Config) (*Region, error) {
	if cfg == nil {
		return nil, ConfigError("eviction: region %s has no policy configuration", f)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, errors.CodeInvalidConfig, "eviction: region %s", f)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkConflictLocked(f); err != nil {
		return nil, err
	}
	r := newRegion(f, cfg, m.deps, m.queueCapacity)
	m.regions[f.String()] = r
	if f.Len() > m.longest {
		m.longest = f.Len()
	}
	m.deps.Logger.Debug("created eviction region", "region", f.String(), "policy", cfg.PolicyName())
	return r, nil
}

// CheckConflict reports whether a region rooted at f could be created.
func (m *RegionManager) CheckConflict(f fqn.Fqn) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.checkConflictLocked(f)
}

func (m *RegionManager) checkConflictLocked(f fqn.Fqn) error {
	if r, ok := m.regions[f.String()]; ok {
		return regionConflict(f, r.fqn)
	}
	if f.Equal(DefaultRegion) {
		return nil
	}
	for _, r := range m.regions {
		if r.fqn.Equal(DefaultRegion) {
			continue
		}
		if f.IsChildOf(r.fqn) || r.fqn.IsChildOf(f) {
			return regionConflict(f, r.fqn)
		}
	}
	return nil
}

// RemoveRegion drops the region rooted at f and reports whether it existed.
func (m *RegionManager) RemoveRegion(f fqn.Fqn) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.regions[f.String()]; !ok {
		return false
	}
	delete(m.regions, f.String())
	m.longest = 0
	for _, r := range m.regions {
		m.longest = max(m.longest, r.fqn.Len())
	}
	return true
}

// HasRegion reports whether a region is rooted exactly at f.
func (m *RegionManager) HasRegion(f fqn.Fqn) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.regions[f.String()]
	return ok
}

// GetRegion returns the region governing f: the region with the longest
// root that is an ancestor of (or equal to) f, else the default region.
func (m *RegionManager) GetRegion(f fqn.Fqn) (*Region, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for cur := f.Ancestor(m.longest); ; cur = cur.Parent() {
		if r, ok := m.regions[cur.String()]; ok {
			return r, nil
		}
		if cur.IsRoot() {
			break
		}
	}
	if r, ok := m.regions[DefaultRegion.String()]; ok {
		return r, nil
	}
	return nil, ConfigError("eviction: no region governs %s and the default region %s is not configured", f, DefaultRegion)
}

// Regions returns all regions ordered by root path.
func (m *RegionManager) Regions() []*Region {
	m.mu.RLock()
	out := make([]*Region, 0, len(m.regions))
	for _, r := range m.regions {
		out = append(out, r)
	}
	m.mu.RUnlock()
	slices.SortFunc(out, func(a, b *Region) int { return strings.Compare(a.fqn.String(), b.fqn.String()) })
	return out
}

func (m *RegionManager) put(ctx context.Context, ev Event) error {
	r, err := m.GetRegion(ev.Fqn)
	if err != nil {
		return err
	}
	return r.PutNodeEvent(ctx, ev)
}

// NodeAdded records the creation of f with the given element count.
func (m *RegionManager) NodeAdded(ctx context.Context, f fqn.Fqn, elements int) error {
	return m.put(ctx, Event{Fqn: f, Type: AddNodeEvent, ElementDelta: elements})
}

// NodeRemoved records the removal of f.
func (m *RegionManager) NodeRemoved(ctx context.Context, f fqn.Fqn) error {
	return m.put(ctx, Event{Fqn: f, Type: RemoveNodeEvent})
}

// NodeVisited records a read of f.
func (m *RegionManager) NodeVisited(ctx context.Context, f fqn.Fqn) error {
	return m.put(ctx, Event{Fqn: f, Type: VisitNodeEvent})
}

// ElementsAdded records n new data elements on f.
func (m *RegionManager) ElementsAdded(ctx context.Context, f fqn.Fqn, n int) error {
	return m.put(ctx, Event{Fqn: f, Type: AddElementEvent, ElementDelta: n})
}

// ElementsRemoved records n data elements removed from f.
func (m *RegionManager) ElementsRemoved(ctx context.Context, f fqn.Fqn, n int) error {
	return m.put(ctx, Event{Fqn: f, Type: RemoveElementEvent, ElementDelta: n})
}

// MarkNodeCurrentlyInUse suppresses eviction of f until unmarked or until
// timeout elapses (0 = no timeout).
func (m *RegionManager) MarkNodeCurrentlyInUse(ctx context.Context, f fqn.Fqn, timeout time.Duration) error {
	r, err := m.GetRegion(f)
	if err != nil {
		return err
	}
	return r.MarkNodeCurrentlyInUse(ctx, f, timeout)
}

// UnmarkNodeCurrentlyInUse lifts an in-use mark on f.
func (m *RegionManager) UnmarkNodeCurrentlyInUse(ctx context.Context, f fqn.Fqn) error {
	r, err := m.GetRegion(f)
	if err != nil {
		return err
	}
	return r.UnmarkNodeCurrentlyInUse(ctx, f)
}
