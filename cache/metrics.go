package cache

import "github.com/IvanBrykalov/pojocache/eviction"

// NoopMetrics is a drop-in Metrics implementation that does nothing.
// It is safe for concurrent use and intended as the default when
// no observability backend is configured.
type NoopMetrics struct{ eviction.NoopMetrics }

func (NoopMetrics) Hit()  {}
func (NoopMetrics) Miss() {}

// Ensure NoopMetrics implements the Metrics interface at compile time.
var _ Metrics = NoopMetrics{}
