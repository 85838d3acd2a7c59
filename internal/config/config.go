// Package config loads the docvars configuration file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/docvars/internal/foundation/errors"
	"git.home.luguber.info/inful/docvars/internal/replace"
)

// VariableReplacementsKey is the configuration option holding the replacement mapping.
const VariableReplacementsKey = "variable_replacements"

// Config represents the application configuration.
type Config struct {
	// Source is the directory holding the documentation sources.
	Source  string        `yaml:"source"`
	Output  OutputConfig  `yaml:"output"`
	Build   BuildConfig   `yaml:"build"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Notify  NotifyConfig  `yaml:"notify"`

	// VariableReplacements maps placeholder tokens to their values. Pairs are
	// applied in file order. Defaults to an empty mapping.
	VariableReplacements replace.Mapping `yaml:"variable_replacements"`
}

// OutputConfig represents output configuration.
type OutputConfig struct {
	Directory string `yaml:"directory"`
	Clean     bool   `yaml:"clean"` // Remove the output directory before building
}

// BuildConfig controls document processing.
type BuildConfig struct {
	Workers    int      `yaml:"workers"`     // Documents processed in parallel
	Extensions []string `yaml:"extensions"`  // Source file extensions, with leading dot
	UnsafeHTML bool     `yaml:"unsafe_html"` // Pass raw HTML in sources through to the output
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// MetricsConfig controls the Prometheus endpoint exposed by `watch --serve`.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// NotifyConfig publishes a JSON event to NATS after every build.
type NotifyConfig struct {
	Enabled bool          `yaml:"enabled"`
	NATSURL string        `yaml:"nats_url"`
	Subject string        `yaml:"subject"`
	Timeout time.Duration `yaml:"timeout"` // Connect and flush deadline
}

// Replacements returns the configured mapping. The returned mapping is shared
// and must not be modified.
func (c *Config) Replacements() *replace.Mapping {
	if c == nil {
		return nil
	}
	return &c.VariableReplacements
}

// ApplyReplacementOverrides merges TOKEN=VALUE overrides into the mapping.
// Existing tokens keep their position; new tokens run after the configured ones.
func (c *Config) ApplyReplacementOverrides(overrides []string) error {
	for _, raw := range overrides {
		pair, err := replace.ParsePair(raw)
		if err != nil {
			return err
		}
		c.VariableReplacements.Set(pair.Token, pair.Value)
	}
	return nil
}

// Load loads configuration from the specified file.
func Load(configPath string) (*Config, error) {
	if err := loadEnvFile(); err != nil {
		slog.Debug("No .env file loaded", "error", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ferrors.NotFoundError(fmt.Sprintf("configuration file not found: %s", configPath)).
				WithContext("path", configPath).
				Build()
		}
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to read config file").
			WithContext("path", configPath).
			Build()
	}

	return Parse(data)
}

// Parse decodes, defaults and validates configuration data.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to unmarshal config").Build()
	}

	expandEnv(&cfg)

	if err := applyDefaults(&cfg); err != nil {
		return nil, err
	}
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with all defaults applied and no replacements.
func Default() *Config {
	cfg := &Config{}
	_ = applyDefaults(cfg)
	return cfg
}

// expandEnv expands ${VAR} references in path and connection settings only.
// Replacement tokens frequently contain '$' and are left verbatim.
func expandEnv(cfg *Config) {
	cfg.Source = os.ExpandEnv(cfg.Source)
	cfg.Output.Directory = os.ExpandEnv(cfg.Output.Directory)
	cfg.Notify.NATSURL = os.ExpandEnv(cfg.Notify.NATSURL)
}

// Init creates a new configuration file with example content.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return ferrors.ValidationError(fmt.Sprintf("configuration file already exists: %s (use --force to overwrite)", configPath)).
			WithContext("path", configPath).
			Build()
	}

	example := Default()
	example.VariableReplacements = *replace.NewMapping(
		replace.Pair{Token: "{InstallationVersion}", Value: "main"},
		replace.Pair{Token: "{version}", Value: "main"},
		replace.Pair{Token: "{adminversion}", Value: "main"},
		replace.Pair{Token: "{Singularity}", Value: "SingularityCE"},
	)

	data, err := yaml.Marshal(example)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryInternal, "failed to marshal example config").Build()
	}

	header := "# docvars configuration\n# Replacements run top to bottom; later tokens see text inserted by earlier ones.\n"
	if err := os.WriteFile(configPath, append([]byte(header), data...), 0o600); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to write config file").
			WithContext("path", configPath).
			Build()
	}

	slog.Info("Configuration file created", "path", configPath)
	return nil
}

// Validate re-checks the configuration, typically after CLI overrides.
func (c *Config) Validate() error {
	return validateConfig(c)
}
