// Package config loads declarative region definitions from YAML.
//
// A document names the timer period, the event queue capacity and one
// entry per region:
//
//	wakeUpIntervalSeconds: 5
//	eventQueueSize: 200000
//	regions:
//	  - name: /_default_
//	    policy: lru
//	    maxNodes: 5000
//	    timeToLiveSeconds: 1000
//	  - name: /org/acme/sessions
//	    policy: fifo
//	    maxNodes: 100
//
// Every document must define the default region. Attributes a policy
// requires must be present; attributes it does not know are ignored.
package config

import (
	"bytes"
	"io"
	"os"
	"time"

	"github.com/jmgilman/go/errors"
	"gopkg.in/yaml.v3"

	"github.com/IvanBrykalov/pojocache/eviction"
	"github.com/IvanBrykalov/pojocache/fqn"
	"github.com/IvanBrykalov/pojocache/policy"
)

// Document is a parsed region configuration.
type Document struct {
	WakeUpIntervalSeconds int      `yaml:"wakeUpIntervalSeconds"`
	EventQueueSize        int      `yaml:"eventQueueSize"`
	Regions               []Region `yaml:"regions"`
}

// Region is one region definition. Numeric attributes are pointers so
// that an absent attribute can be told apart from zero.
type Region struct {
	Name               string `yaml:"name"`
	Policy             string `yaml:"policy"`
	MaxNodes           *int   `yaml:"maxNodes"`
	MinNodes           *int   `yaml:"minNodes"`
	MaxElementsPerNode *int   `yaml:"maxElementsPerNode"`
	TimeToLiveSeconds  *int   `yaml:"timeToLiveSeconds"`
	MaxAgeSeconds      *int   `yaml:"maxAgeSeconds"`
}

// Parse decodes and validates a document. Unknown fields are rejected.
func Parse(data []byte) (*Document, error) {
	return Load(bytes.NewReader(data))
}

// Load decodes and validates a document read from r.
func Load(r io.Reader) (*Document, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, errors.New(errors.CodeInvalidConfig, "config: empty document")
		}
		return nil, errors.Wrap(err, errors.CodeInvalidConfig, "config: decode")
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// LoadFile reads the document at path.
func LoadFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeNotFound, "config: open %s", path)
	}
	defer f.Close()

	doc, err := Load(f)
	if err != nil {
		return nil, errors.WithContext(err, "path", path)
	}
	return doc, nil
}

// Validate checks the document without creating any region.
func (d *Document) Validate() error {
	if d.WakeUpIntervalSeconds < 0 {
		return errors.Newf(errors.CodeInvalidConfig, "config: wakeUpIntervalSeconds must be >= 0, got %d", d.WakeUpIntervalSeconds)
	}
	if d.EventQueueSize < 0 {
		return errors.Newf(errors.CodeInvalidConfig, "config: eventQueueSize must be >= 0, got %d", d.EventQueueSize)
	}

	seen := make(map[string]bool, len(d.Regions))
	hasDefault := false
	for i, r := range d.Regions {
		if r.Name == "" {
			return errors.Newf(errors.CodeInvalidConfig, "config: region #%d has no name", i)
		}
		f := r.Fqn()
		if seen[f.String()] {
			return errors.Newf(errors.CodeInvalidConfig, "config: region %s defined twice", f)
		}
		seen[f.String()] = true
		hasDefault = hasDefault || f.Equal(eviction.DefaultRegion)

		if _, err := r.Config(); err != nil {
			return err
		}
	}
	if !hasDefault {
		return errors.Newf(errors.CodeInvalidConfig, "config: the default region %s is not defined", eviction.DefaultRegion)
	}
	return nil
}

// WakeUpInterval returns the timer period, or 0 if the document leaves it
// unset.
func (d *Document) WakeUpInterval() time.Duration {
	return time.Duration(d.WakeUpIntervalSeconds) * time.Second
}

// Apply creates every region of the document in m. Regions created before
// a failure are left in place.
func (d *Document) Apply(m *eviction.RegionManager) error {
	for _, r := range d.Regions {
		cfg, err := r.Config()
		if err != nil {
			return err
		}
		if _, err := m.CreateRegion(r.Fqn(), cfg); err != nil {
			return err
		}
	}
	return nil
}

// Fqn returns the region root.
func (r Region) Fqn() fqn.Fqn { return fqn.Parse(r.Name) }

// Config builds the region's policy configuration.
func (r Region) Config() (eviction.Config, error) {
	if r.Policy == "" {
		return nil, errors.Newf(errors.CodeInvalidConfig, "config: region %s has no policy", r.Name)
	}
	cfg, err := policy.New(r.Policy, policy.Params{
		MaxNodes:           r.MaxNodes,
		MinNodes:           r.MinNodes,
		MaxElementsPerNode: r.MaxElementsPerNode,
		TimeToLive:         seconds(r.TimeToLiveSeconds),
		MaxAge:             seconds(r.MaxAgeSeconds),
	})
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeInvalidConfig, "config: region %s", r.Name)
	}
	return cfg, nil
}

func seconds(v *int) *time.Duration {
	if v == nil {
		return nil
	}
	d := time.Duration(*v) * time.Second
	return &d
}
