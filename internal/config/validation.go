package config

import (
	"path/filepath"
	"strings"

	ferrors "git.home.luguber.info/inful/docvars/internal/foundation/errors"
)

func validateConfig(cfg *Config) error {
	if cfg.Build.Workers < 1 {
		return ferrors.ConfigError("build.workers must be at least 1").
			WithContext("workers", cfg.Build.Workers).
			Build()
	}
	for _, ext := range cfg.Build.Extensions {
		if ext == "" || ext == "." {
			return ferrors.ConfigError("build.extensions entries must not be empty").Build()
		}
	}
	if sameDir(cfg.Source, cfg.Output.Directory) {
		return ferrors.ConfigError("output.directory must differ from source").
			WithContext("source", cfg.Source).
			WithContext("output", cfg.Output.Directory).
			Build()
	}
	if !strings.HasPrefix(cfg.Metrics.Path, "/") {
		return ferrors.ConfigError("metrics.path must start with '/'").
			WithContext("path", cfg.Metrics.Path).
			Build()
	}
	if cfg.Notify.Enabled && cfg.Notify.NATSURL == "" {
		return ferrors.ConfigError("notify.nats_url is required when notify is enabled").Build()
	}
	if strings.ContainsAny(cfg.Notify.Subject, " \t\r\n") {
		return ferrors.ConfigError("notify.subject must not contain whitespace").
			WithContext("subject", cfg.Notify.Subject).
			Build()
	}
	if cfg.Notify.Timeout < 0 {
		return ferrors.ConfigError("notify.timeout must not be negative").Build()
	}
	return nil
}

func sameDir(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}
