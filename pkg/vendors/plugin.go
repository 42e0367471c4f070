// Package vendors holds the pluggable per-vendor configuration renderers.
// A plugin translates abstract peer/template data into one routing daemon's
// configuration syntax and knows how to syntax-check the result.
package vendors

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"autonet/pkg/errdefs"
	"autonet/pkg/model"
)

// Plugin is the capability contract every vendor implements.
// GenerateConfig and GenerateFilterSet must be pure functions of their
// inputs: no hidden global state, so validation and diffing stay meaningful.
type Plugin interface {
	Name() string
	// Initialize checks that required external tooling is present and
	// reports readiness. A plugin that fails here is registered but
	// rejected at render time.
	Initialize() error
	GenerateConfig(peer model.PeerInfo, vars model.TemplateVars) (string, error)
	// GenerateFilterSet renders one resolved prefix set in the vendor's
	// prefix-list grammar, for the staged filters/ tree.
	GenerateFilterSet(name string, set model.FilterSet) (string, error)
	// ValidateConfig runs the vendor's syntax checker against a staged file.
	ValidateConfig(path string) error
}

// TreeLayout names the files a vendor's assembled tree is built around.
// EntryFile is what the syntax checker is pointed at; Essential files must
// exist in every staged tree for the completeness stage to pass.
type TreeLayout struct {
	EntryFile string
	Essential []string
}

// TreeRenderer is the optional capability for vendors that can assemble a
// complete router tree. The assembly layer appends session stanzas to
// peerings/peers.ipv4.conf and peerings/peers.ipv6.conf, so a tree-capable
// vendor's layout must account for both. Vendors without this capability
// render single sessions and filter sets only and are excluded from fleet
// assembly with a configuration error.
type TreeRenderer interface {
	Layout() TreeLayout
	Skeleton(router model.Router, rpkiWhitelist []string, vars model.TemplateVars) map[string]string
}

// Registry resolves plugins by the vendor name found in router
// configuration. An unregistered or not-ready vendor is a hard
// configuration error, never a silent skip.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]Plugin
	ready   map[string]error // nil = ready; non-nil = Initialize failure
	log     *zap.Logger
}

func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{
		plugins: make(map[string]Plugin),
		ready:   make(map[string]error),
		log:     log,
	}
}

// Register adds a plugin under its name. Last registration wins.
func (r *Registry) Register(p Plugin) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plugins[p.Name()] = p
}

// Initialize probes every registered plugin once and records readiness.
func (r *Registry) Initialize() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, p := range r.plugins {
		err := p.Initialize()
		r.ready[name] = err
		if err != nil {
			r.log.Warn("vendor plugin not ready", zap.String("vendor", name), zap.Error(err))
		} else {
			r.log.Info("vendor plugin ready", zap.String("vendor", name))
		}
	}
}

// Resolve returns the ready plugin for a vendor name.
func (r *Registry) Resolve(vendor string) (Plugin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[vendor]
	if !ok {
		return nil, fmt.Errorf("no plugin registered for vendor %q: %w", vendor, errdefs.ErrConfiguration)
	}
	if err, probed := r.ready[vendor]; probed && err != nil {
		return nil, fmt.Errorf("vendor %q plugin is not ready: %w: %v", vendor, errdefs.ErrConfiguration, err)
	}
	return p, nil
}

// Vendors lists registered plugin names in stable order.
func (r *Registry) Vendors() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.plugins))
	for name := range r.plugins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry assembles the built-in plugin set: bird and frr fully
// implemented, the remaining vendor families as placeholders.
func DefaultRegistry(log *zap.Logger) *Registry {
	r := NewRegistry(log)
	r.Register(NewBird())
	r.Register(NewFRR())
	r.Register(placeholder{name: "openbgpd"})
	r.Register(placeholder{name: "junos"})
	return r
}
