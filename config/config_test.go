package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmgilman/go/errors"
	"github.com/stretchr/testify/require"

	"github.com/IvanBrykalov/pojocache/eviction"
	"github.com/IvanBrykalov/pojocache/eviction/evictiontest"
	"github.com/IvanBrykalov/pojocache/fqn"
	"github.com/IvanBrykalov/pojocache/policy/fifo"
	"github.com/IvanBrykalov/pojocache/policy/lru"
)

const sample = `
wakeUpIntervalSeconds: 3
eventQueueSize: 1000
regions:
  - name: /_default_
    policy: LRU
    maxNodes: 5000
    timeToLiveSeconds: 1000
  - name: /org/acme/sessions
    policy: fifo
    maxNodes: 100
  - name: /org/acme/blobs
    policy: elementsize
    maxElementsPerNode: 8
`

func TestParse_Sample(t *testing.T) {
	t.Parallel()

	doc, err := Parse([]byte(sample))
	require.NoError(t, err)
	require.Equal(t, 3*time.Second, doc.WakeUpInterval())
	require.Equal(t, 1000, doc.EventQueueSize)
	require.Len(t, doc.Regions, 3)

	cfg, err := doc.Regions[0].Config()
	require.NoError(t, err)
	require.Equal(t, lru.Config{MaxNodes: 5000, TimeToLive: 1000 * time.Second}, cfg)

	cfg, err = doc.Regions[1].Config()
	require.NoError(t, err)
	require.Equal(t, fifo.Config{MaxNodes: 100}, cfg)
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"empty":            ``,
		"unknown field":    "regions:\n  - name: /_default_\n    policy: fifo\n    maxNodes: 1\n    color: red\n",
		"no default":       "regions:\n  - name: /a\n    policy: fifo\n    maxNodes: 1\n",
		"missing maxNodes": "regions:\n  - name: /_default_\n    policy: fifo\n",
		"missing ttl":      "regions:\n  - name: /_default_\n    policy: lru\n    maxNodes: 3\n",
		"unknown policy":   "regions:\n  - name: /_default_\n    policy: random\n",
		"no policy":        "regions:\n  - name: /_default_\n",
		"duplicate":        "regions:\n  - name: /_default_\n    policy: fifo\n    maxNodes: 1\n  - name: _default_\n    policy: fifo\n    maxNodes: 2\n",
		"negative queue":   "eventQueueSize: -1\nregions:\n  - name: /_default_\n    policy: fifo\n    maxNodes: 1\n",
		"malformed":        "regions: [",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := Parse([]byte(doc))
			require.Error(t, err)
			require.True(t, eviction.IsConfigError(err), "got %v", err)
			require.False(t, errors.IsRetryable(err))
		})
	}
}

func TestApply_CreatesRegions(t *testing.T) {
	t.Parallel()

	doc, err := Parse([]byte(sample))
	require.NoError(t, err)

	m := eviction.NewRegionManager(evictiontest.Deps(evictiontest.NewEvictor(), nil), doc.EventQueueSize)
	require.NoError(t, doc.Apply(m))
	require.Len(t, m.Regions(), 3)

	r, err := m.GetRegion(fqn.Parse("/org/acme/sessions/42"))
	require.NoError(t, err)
	require.Equal(t, fifo.PolicyName, r.Config().PolicyName())
	require.Equal(t, 1000, r.EventQueueCapacity())

	r, err = m.GetRegion(fqn.Parse("/elsewhere"))
	require.NoError(t, err)
	require.True(t, r.Fqn().Equal(eviction.DefaultRegion))
}

func TestApply_Conflict(t *testing.T) {
	t.Parallel()

	doc, err := Parse([]byte(`
regions:
  - name: /_default_
    policy: fifo
    maxNodes: 10
  - name: /org
    policy: fifo
    maxNodes: 10
  - name: /org/acme
    policy: mru
    maxNodes: 10
`))
	require.NoError(t, err)

	m := eviction.NewRegionManager(evictiontest.Deps(evictiontest.NewEvictor(), nil), 0)
	err = doc.Apply(m)
	require.True(t, eviction.IsRegionConflict(err), "got %v", err)
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "regions.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))
	doc, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, doc.Regions, 3)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Equal(t, errors.CodeNotFound, errors.GetCode(err))
}
