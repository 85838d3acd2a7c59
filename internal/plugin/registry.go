package plugin

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Registry manages plugin registration and discovery.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]map[string]Plugin // map[name]map[version]Plugin
}

// NewRegistry creates a new empty plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		plugins: make(map[string]map[string]Plugin),
	}
}

// Register adds a plugin to the registry.
// Returns an error if a plugin with the same name and version already exists.
func (r *Registry) Register(plugin Plugin) error {
	if plugin == nil {
		return fmt.Errorf("cannot register nil plugin")
	}

	metadata := plugin.Metadata()
	if err := metadata.Validate(); err != nil {
		return fmt.Errorf("invalid plugin metadata: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.plugins[metadata.Name] == nil {
		r.plugins[metadata.Name] = make(map[string]Plugin)
	}
	if _, exists := r.plugins[metadata.Name][metadata.Version]; exists {
		return fmt.Errorf("plugin %s@%s already registered", metadata.Name, metadata.Version)
	}

	r.plugins[metadata.Name][metadata.Version] = plugin
	return nil
}

// Get retrieves a specific plugin by name and version.
func (r *Registry) Get(name, version string) (Plugin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	versions, ok := r.plugins[name]
	if !ok {
		return nil, fmt.Errorf("plugin %s not found", name)
	}
	plugin, ok := versions[version]
	if !ok {
		return nil, fmt.Errorf("plugin %s@%s not found", name, version)
	}
	return plugin, nil
}

// GetLatest retrieves the highest registered version of a plugin by name.
func (r *Registry) GetLatest(name string) (Plugin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	versions, ok := r.plugins[name]
	if !ok || len(versions) == 0 {
		return nil, fmt.Errorf("plugin %s not found", name)
	}

	latest := ""
	for version := range versions {
		if latest == "" || compareVersions(version, latest) > 0 {
			latest = version
		}
	}
	return versions[latest], nil
}

// List returns all registered plugins ordered by name, then version.
func (r *Registry) List() []Plugin {
	return r.filter(func(Plugin) bool { return true })
}

// ListByType returns all plugins of a specific type ordered by name, then version.
func (r *Registry) ListByType(pluginType PluginType) []Plugin {
	return r.filter(func(p Plugin) bool { return p.Metadata().Type == pluginType })
}

func (r *Registry) filter(keep func(Plugin) bool) []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []Plugin
	for _, versions := range r.plugins {
		for _, plugin := range versions {
			if keep(plugin) {
				result = append(result, plugin)
			}
		}
	}

	sort.Slice(result, func(i, j int) bool {
		a, b := result[i].Metadata(), result[j].Metadata()
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return compareVersions(a.Version, b.Version) < 0
	})
	return result
}

// Has checks if a plugin with the given name exists (any version).
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.plugins[name]
	return ok
}

// Unregister removes a plugin from the registry.
func (r *Registry) Unregister(name, version string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	versions, ok := r.plugins[name]
	if !ok {
		return fmt.Errorf("plugin %s not found", name)
	}
	if _, ok := versions[version]; !ok {
		return fmt.Errorf("plugin %s@%s not found", name, version)
	}

	delete(versions, version)
	if len(versions) == 0 {
		delete(r.plugins, name)
	}
	return nil
}

// Count returns the total number of registered plugins (all versions).
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, versions := range r.plugins {
		count += len(versions)
	}
	return count
}

// compareVersions orders "vMAJOR.MINOR.PATCH" strings numerically. Components
// that are not numbers compare as strings.
func compareVersions(a, b string) int {
	pa := strings.Split(strings.TrimPrefix(a, "v"), ".")
	pb := strings.Split(strings.TrimPrefix(b, "v"), ".")
	for i := 0; i < len(pa) || i < len(pb); i++ {
		var sa, sb string
		if i < len(pa) {
			sa = pa[i]
		}
		if i < len(pb) {
			sb = pb[i]
		}
		na, errA := strconv.Atoi(sa)
		nb, errB := strconv.Atoi(sb)
		switch {
		case errA == nil && errB == nil:
			if na != nb {
				if na < nb {
					return -1
				}
				return 1
			}
		case sa != sb:
			return strings.Compare(sa, sb)
		}
	}
	return 0
}

// globalRegistry is the default plugin registry populated by plugin init functions.
var globalRegistry = NewRegistry()

// DefaultRegistry returns the global plugin registry.
func DefaultRegistry() *Registry {
	return globalRegistry
}

// Register adds a plugin to the global registry.
func Register(plugin Plugin) error {
	return globalRegistry.Register(plugin)
}
