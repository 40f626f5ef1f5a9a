// Package registry holds the in-memory catalog of installed gh-please plugins.
//
// A Registry is rebuilt from disk on every invocation by LoadPlugins. Discovery
// only reads manifests; it never starts plugin code. Activation is the job of
// the loader package.
package registry

import (
	"slices"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/jmylchreest/gh-please/internal/pathutil"
	pluginapi "github.com/jmylchreest/gh-please/pkg/plugin"
)

const (
	versionUnknown = "unknown"

	// DefaultPackagesDir is the package manager directory scanned for plugins.
	DefaultPackagesDir = "node_modules"
)

// Metadata is the optional descriptive part of a plugin.
type Metadata struct {
	Description string `json:"description,omitempty"`
	Author      string `json:"author,omitempty"`
	Premium     bool   `json:"premium,omitempty"`
}

// Plugin describes an installed plugin. It is pure data; nothing in it has
// been executed.
type Plugin struct {
	Name       string   `json:"name"`
	Version    string   `json:"version"`
	Type       string   `json:"type"`
	Metadata   Metadata `json:"metadata,omitzero"`
	Entrypoint string   `json:"entrypoint,omitempty"`
}

// Info is the listing view of a plugin.
type Info struct {
	Plugin
	Installed bool   `json:"installed"`
	Enabled   bool   `json:"enabled"`
	Path      string `json:"path,omitempty"`
}

// Registry maps plugin names to descriptors and install paths.
type Registry struct {
	plugins     map[string]Plugin
	pluginPaths map[string]string

	packagesDir string
	pluginsDir  string
	resolver    *pathutil.Resolver
	logger      hclog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithPackagesDir sets the package manager directory (default node_modules).
func WithPackagesDir(dir string) Option {
	return func(r *Registry) {
		r.packagesDir = dir
	}
}

// WithPluginsDir sets the local plugins directory (default ~/.gh-please/plugins).
func WithPluginsDir(dir string) Option {
	return func(r *Registry) {
		r.pluginsDir = dir
	}
}

// WithResolver sets the resolver used to expand the plugins directory.
func WithResolver(res *pathutil.Resolver) Option {
	return func(r *Registry) {
		r.resolver = res
	}
}

// WithLogger sets the logger for discovery warnings.
func WithLogger(logger hclog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		plugins:     make(map[string]Plugin),
		pluginPaths: make(map[string]string),
		packagesDir: DefaultPackagesDir,
		pluginsDir:  pathutil.DefaultPluginsDir,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.resolver == nil {
		r.resolver = pathutil.NewResolver("")
	}
	if r.logger == nil {
		r.logger = hclog.NewNullLogger()
	}
	return r
}

// Register adds or replaces a plugin. An empty path leaves any recorded path
// untouched.
func (r *Registry) Register(p Plugin, path string) {
	if p.Version == "" {
		p.Version = versionUnknown
	}
	if p.Type == "" {
		p.Type = pluginapi.DefaultType
	}
	r.plugins[p.Name] = p
	if path != "" {
		r.pluginPaths[p.Name] = path
	}
}

// Get retrieves a plugin by name.
func (r *Registry) Get(name string) (Plugin, bool) {
	p, ok := r.plugins[name]
	return p, ok
}

// Has reports whether a plugin is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.plugins[name]
	return ok
}

// Path returns the recorded install path of a plugin.
func (r *Registry) Path(name string) (string, bool) {
	path, ok := r.pluginPaths[name]
	return path, ok
}

// GetAll returns every registered plugin, sorted by name.
func (r *Registry) GetAll() []Plugin {
	plugins := make([]Plugin, 0, len(r.plugins))
	for _, p := range r.plugins {
		plugins = append(plugins, p)
	}
	slices.SortFunc(plugins, func(a, b Plugin) int {
		return strings.Compare(a.Name, b.Name)
	})
	return plugins
}

// ListAll returns the listing view of every plugin, sorted by name.
func (r *Registry) ListAll() []Info {
	plugins := r.GetAll()
	infos := make([]Info, 0, len(plugins))
	for _, p := range plugins {
		infos = append(infos, Info{
			Plugin:    p,
			Installed: true,
			Enabled:   true,
			Path:      r.pluginPaths[p.Name],
		})
	}
	return infos
}

// Search returns the listing view of plugins whose name or description
// contains query, ignoring case. An empty query matches everything.
func (r *Registry) Search(query string) []Info {
	q := strings.ToLower(strings.TrimSpace(query))
	all := r.ListAll()
	if q == "" {
		return all
	}
	matches := all[:0]
	for _, info := range all {
		if strings.Contains(strings.ToLower(info.Name), q) ||
			strings.Contains(strings.ToLower(info.Metadata.Description), q) {
			matches = append(matches, info)
		}
	}
	return matches
}

// Unregister removes a plugin and reports whether it was present.
func (r *Registry) Unregister(name string) bool {
	_, ok := r.plugins[name]
	delete(r.plugins, name)
	delete(r.pluginPaths, name)
	return ok
}

// Clear removes every plugin and path.
func (r *Registry) Clear() {
	clear(r.plugins)
	clear(r.pluginPaths)
}

// Len returns the number of registered plugins.
func (r *Registry) Len() int {
	return len(r.plugins)
}
