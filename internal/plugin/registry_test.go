package plugin

import (
	"fmt"
	"sync"
	"testing"
)

// mockPluginForRegistry is a test plugin for registry tests.
type mockPluginForRegistry struct {
	BasePlugin
	metadata PluginMetadata
}

func (m *mockPluginForRegistry) Metadata() PluginMetadata {
	return m.metadata
}

func newMockPlugin(name, version string, pluginType PluginType) Plugin {
	return &mockPluginForRegistry{
		metadata: PluginMetadata{
			Name:    name,
			Version: version,
			Type:    pluginType,
		},
	}
}

// TestRegistryRegister tests plugin registration.
func TestRegistryRegister(t *testing.T) {
	registry := NewRegistry()
	plugin := newMockPlugin("test-plugin", "v1.0.0", PluginTypeTransform)

	if err := registry.Register(plugin); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}
	if !registry.Has("test-plugin") {
		t.Error("Plugin should be registered")
	}
	if err := registry.Register(plugin); err == nil {
		t.Error("Should not allow duplicate registration")
	}
}

// TestRegistryRegisterInvalid tests registering nil and malformed plugins.
func TestRegistryRegisterInvalid(t *testing.T) {
	registry := NewRegistry()

	if err := registry.Register(nil); err == nil {
		t.Error("Should not allow registering nil plugin")
	}
	if err := registry.Register(newMockPlugin("", "v1.0.0", PluginTypeTransform)); err == nil {
		t.Error("Should not allow plugin with invalid metadata")
	}
	if registry.Count() != 0 {
		t.Errorf("expected empty registry, got %d", registry.Count())
	}
}

// TestRegistryGet tests retrieving plugins.
func TestRegistryGet(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Register(newMockPlugin("test-plugin", "v1.0.0", PluginTypeTransform)); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}

	if p, err := registry.Get("test-plugin", "v1.0.0"); err != nil || p == nil {
		t.Errorf("Get() failed: %v", err)
	}
	if _, err := registry.Get("non-existent", "v1.0.0"); err == nil {
		t.Error("Should return error for non-existent plugin")
	}
	if _, err := registry.Get("test-plugin", "v2.0.0"); err == nil {
		t.Error("Should return error for wrong version")
	}
}

// TestRegistryGetLatest tests that the highest version wins.
func TestRegistryGetLatest(t *testing.T) {
	registry := NewRegistry()
	for _, v := range []string{"v1.2.0", "v1.10.0", "v1.9.3"} {
		if err := registry.Register(newMockPlugin("test-plugin", v, PluginTypeTransform)); err != nil {
			t.Fatalf("Register(%s) failed: %v", v, err)
		}
	}

	latest, err := registry.GetLatest("test-plugin")
	if err != nil {
		t.Fatalf("GetLatest() failed: %v", err)
	}
	if got := latest.Metadata().Version; got != "v1.10.0" {
		t.Errorf("expected v1.10.0, got %s", got)
	}

	if _, err := registry.GetLatest("non-existent"); err == nil {
		t.Error("Should return error for non-existent plugin")
	}
}

// TestRegistryListOrdering tests that listings are sorted by name then version.
func TestRegistryListOrdering(t *testing.T) {
	registry := NewRegistry()
	for _, p := range []Plugin{
		newMockPlugin("zeta", "v1.0.0", PluginTypeTransform),
		newMockPlugin("alpha", "v2.0.0", PluginTypeTransform),
		newMockPlugin("alpha", "v1.0.0", PluginTypeTransform),
		newMockPlugin("markdown", "v1.0.0", PluginTypeRenderer),
	} {
		if err := registry.Register(p); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
	}

	var got []string
	for _, p := range registry.List() {
		got = append(got, p.Metadata().Name+"@"+p.Metadata().Version)
	}
	want := []string{"alpha@v1.0.0", "alpha@v2.0.0", "markdown@v1.0.0", "zeta@v1.0.0"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("List() = %v, want %v", got, want)
	}

	if n := len(registry.ListByType(PluginTypeTransform)); n != 3 {
		t.Errorf("ListByType(Transform) returned %d plugins, expected 3", n)
	}
	if n := len(registry.ListByType(PluginTypeRenderer)); n != 1 {
		t.Errorf("ListByType(Renderer) returned %d plugins, expected 1", n)
	}
}

// TestRegistryUnregister tests plugin removal.
func TestRegistryUnregister(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Register(newMockPlugin("test-plugin", "v1.0.0", PluginTypeTransform)); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}

	if err := registry.Unregister("test-plugin", "v2.0.0"); err == nil {
		t.Error("Should return error for wrong version")
	}
	if err := registry.Unregister("test-plugin", "v1.0.0"); err != nil {
		t.Errorf("Unregister() failed: %v", err)
	}
	if registry.Has("test-plugin") {
		t.Error("Plugin should be removed once its last version is unregistered")
	}
	if err := registry.Unregister("test-plugin", "v1.0.0"); err == nil {
		t.Error("Should return error for non-existent plugin")
	}
}

// TestRegistryConcurrency tests concurrent registration and reads.
func TestRegistryConcurrency(t *testing.T) {
	registry := NewRegistry()
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = registry.Register(newMockPlugin(fmt.Sprintf("plugin-%d", i), "v1.0.0", PluginTypeTransform))
			_ = registry.List()
		}(i)
	}
	wg.Wait()

	if registry.Count() != 10 {
		t.Errorf("Count() = %d, expected 10", registry.Count())
	}
}

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"v1.0.0", "v1.0.0", 0},
		{"v1.2.0", "v1.10.0", -1},
		{"v2.0.0", "v1.99.99", 1},
		{"1.0.0", "v1.0.0", 0},
		{"v1.0.0-beta", "v1.0.0-alpha", 1},
	}
	for _, tt := range tests {
		if got := compareVersions(tt.a, tt.b); got != tt.want {
			t.Errorf("compareVersions(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

// TestGlobalRegistry tests the package-level default registry.
func TestGlobalRegistry(t *testing.T) {
	p := newMockPlugin("global-test-plugin", "v0.0.1", PluginTypeTransform)
	if err := Register(p); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}
	t.Cleanup(func() { _ = DefaultRegistry().Unregister("global-test-plugin", "v0.0.1") })

	if !DefaultRegistry().Has("global-test-plugin") {
		t.Error("expected plugin in default registry")
	}
}
