// Package policy maps declarative policy definitions to eviction.Config
// values. The concrete policies live in the sub-packages.
package policy

import (
	"slices"
	"strings"
	"time"

	"github.com/IvanBrykalov/pojocache/eviction"
	"github.com/IvanBrykalov/pojocache/policy/elementsize"
	"github.com/IvanBrykalov/pojocache/policy/fifo"
	"github.com/IvanBrykalov/pojocache/policy/lfu"
	"github.com/IvanBrykalov/pojocache/policy/lru"
	"github.com/IvanBrykalov/pojocache/policy/mru"
)

// Params are the numeric attributes of a region definition. A nil field
// was not given.
type Params struct {
	MaxNodes           *int
	MinNodes           *int
	MaxElementsPerNode *int
	TimeToLive         *time.Duration
	MaxAge             *time.Duration
}

// Factory builds a policy configuration from params.
type Factory func(p Params) (eviction.Config, error)

var factories = map[string]Factory{
	fifo.PolicyName:        newFIFO,
	lru.PolicyName:         newLRU,
	lfu.PolicyName:         newLFU,
	mru.PolicyName:         newMRU,
	elementsize.PolicyName: newElementSize,
}

// Names returns the known policy names, sorted.
func Names() []string {
	out := make([]string, 0, len(factories))
	for name := range factories {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// New builds and validates the configuration for the named policy.
// Names are case-insensitive.
func New(name string, p Params) (eviction.Config, error) {
	f, ok := factories[strings.ToLower(name)]
	if !ok {
		return nil, eviction.ConfigError("policy: unknown policy %q (known: %s)", name, strings.Join(Names(), ", "))
	}
	cfg, err := f(p)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func required(policy, attr string, v *int) (int, error) {
	if v == nil {
		return 0, eviction.ConfigError("policy %s: %s is required", policy, attr)
	}
	return *v, nil
}

func optional[T any](v *T) T {
	if v == nil {
		var zero T
		return zero
	}
	return *v
}

func newFIFO(p Params) (eviction.Config, error) {
	n, err := required(fifo.PolicyName, "maxNodes", p.MaxNodes)
	if err != nil {
		return nil, err
	}
	return fifo.Config{MaxNodes: n}, nil
}

func newMRU(p Params) (eviction.Config, error) {
	n, err := required(mru.PolicyName, "maxNodes", p.MaxNodes)
	if err != nil {
		return nil, err
	}
	return mru.Config{MaxNodes: n}, nil
}

func newLRU(p Params) (eviction.Config, error) {
	if p.TimeToLive == nil {
		return nil, eviction.ConfigError("policy %s: timeToLiveSeconds is required", lru.PolicyName)
	}
	return lru.Config{
		MaxNodes:   optional(p.MaxNodes),
		TimeToLive: *p.TimeToLive,
		MaxAge:     optional(p.MaxAge),
	}, nil
}

func newLFU(p Params) (eviction.Config, error) {
	return lfu.Config{
		MaxNodes: optional(p.MaxNodes),
		MinNodes: optional(p.MinNodes),
	}, nil
}

func newElementSize(p Params) (eviction.Config, error) {
	n, err := required(elementsize.PolicyName, "maxElementsPerNode", p.MaxElementsPerNode)
	if err != nil {
		return nil, err
	}
	return elementsize.Config{
		MaxNodes:           optional(p.MaxNodes),
		MaxElementsPerNode: n,
	}, nil
}
