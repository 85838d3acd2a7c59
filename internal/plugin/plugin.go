// Package plugin provides the extension points of the docvars build.
//
// Plugins describe themselves with PluginMetadata and are collected in a
// Registry. During a build each document passes through the source-read event
// on a Hub, where connected handlers may rewrite the raw text in place before
// markup parsing.
package plugin

import (
	"fmt"

	"git.home.luguber.info/inful/docvars/internal/config"
)

// Plugin represents a docvars plugin with metadata and configuration checks.
type Plugin interface {
	// Metadata returns the plugin's metadata (name, version, type, capabilities).
	Metadata() PluginMetadata

	// Validate checks if the plugin can run with the given configuration.
	Validate(cfg *config.Config) error
}

// PluginMetadata describes a plugin's identity and capabilities.
type PluginMetadata struct {
	// Name is the unique plugin identifier (e.g., "variable-replacements").
	Name string

	// Version is the semantic version (e.g., "v1.0.0").
	Version string

	Type PluginType

	Description string

	Author string

	// Capabilities lists optional features this plugin provides.
	Capabilities []string
}

// String returns a human-readable representation of the plugin metadata.
func (m PluginMetadata) String() string {
	return fmt.Sprintf("%s@%s (%s)", m.Name, m.Version, m.Type)
}

// Validate checks if the plugin metadata is valid.
func (m PluginMetadata) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("plugin name is required")
	}
	if m.Version == "" {
		return fmt.Errorf("plugin version is required")
	}
	if !m.Type.IsValid() {
		return fmt.Errorf("invalid plugin type: %s", m.Type)
	}
	return nil
}

// BasePlugin provides a default Validate that accepts any configuration.
type BasePlugin struct{}

// Validate is a no-op default implementation.
func (b *BasePlugin) Validate(*config.Config) error {
	return nil
}
