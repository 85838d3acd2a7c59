package config

import (
	"strings"
	"time"
)

const (
	defaultSourceDir   = "docs"
	defaultOutputDir   = "./site"
	defaultMetricsPath = "/metrics"
	defaultWorkers     = 1
	defaultSubject     = "docvars.builds"
	defaultTimeout     = 5 * time.Second
)

var defaultExtensions = []string{".md", ".markdown"}

// applyDefaults fills unset fields. Explicit values are preserved.
func applyDefaults(cfg *Config) error {
	if cfg.Source == "" {
		cfg.Source = defaultSourceDir
	}
	if cfg.Output.Directory == "" {
		cfg.Output.Directory = defaultOutputDir
	}
	if cfg.Build.Workers == 0 {
		cfg.Build.Workers = defaultWorkers
	}
	if len(cfg.Build.Extensions) == 0 {
		cfg.Build.Extensions = append([]string(nil), defaultExtensions...)
	}
	for i, ext := range cfg.Build.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		cfg.Build.Extensions[i] = ext
	}
	cfg.Logging.Level = NormalizeLogLevel(string(cfg.Logging.Level))
	cfg.Logging.Format = NormalizeLogFormat(string(cfg.Logging.Format))
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = defaultMetricsPath
	}
	if cfg.Notify.Subject == "" {
		cfg.Notify.Subject = defaultSubject
	}
	if cfg.Notify.Timeout == 0 {
		cfg.Notify.Timeout = defaultTimeout
	}
	return nil
}
