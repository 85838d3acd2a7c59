package plugin

import (
	"context"
	"log/slog"
	"maps"

	"git.home.luguber.info/inful/docvars/internal/config"
	"git.home.luguber.info/inful/docvars/internal/metrics"
)

// PluginContext is the build context handed to plugins. It is created once per
// build and shared by all documents, so plugins must treat it as read-only.
type PluginContext struct {
	// Context is the standard Go context for cancellation and deadlines.
	Context context.Context

	Logger *slog.Logger

	// Config is the loaded configuration, including the replacement mapping.
	Config *config.Config

	Metrics metrics.Recorder

	SourceDir string
	OutputDir string

	// BuildID uniquely identifies this build.
	BuildID string

	// Data lets plugins share values without direct dependencies.
	Data map[string]any
}

// NewPluginContext creates a new plugin context. A nil logger falls back to
// slog.Default and a nil recorder to metrics.NoopRecorder.
func NewPluginContext(
	ctx context.Context,
	logger *slog.Logger,
	cfg *config.Config,
	recorder metrics.Recorder,
	buildID string,
) *PluginContext {
	if logger == nil {
		logger = slog.Default()
	}
	pc := &PluginContext{
		Context: ctx,
		Logger:  logger,
		Config:  cfg,
		Metrics: metrics.OrNoop(recorder),
		BuildID: buildID,
		Data:    make(map[string]any),
	}
	if cfg != nil {
		pc.SourceDir = cfg.Source
		pc.OutputDir = cfg.Output.Directory
	}
	return pc
}

// WithValue returns a copy of the context with the given key-value pair in Data.
func (pc *PluginContext) WithValue(key string, value any) *PluginContext {
	next := *pc
	next.Data = make(map[string]any, len(pc.Data)+1)
	maps.Copy(next.Data, pc.Data)
	next.Data[key] = value
	return &next
}

// GetValue retrieves a value from the plugin data map.
func (pc *PluginContext) GetValue(key string) any {
	return pc.Data[key]
}

// GetString retrieves a string value from the plugin data map.
// Returns empty string if the key doesn't exist or is not a string.
func (pc *PluginContext) GetString(key string) string {
	if v, ok := pc.Data[key].(string); ok {
		return v
	}
	return ""
}

// Log returns the context logger, or slog.Default for a nil or bare context.
func (pc *PluginContext) Log() *slog.Logger {
	if pc == nil || pc.Logger == nil {
		return slog.Default()
	}
	return pc.Logger
}

// Recorder returns the metrics recorder, never nil.
func (pc *PluginContext) Recorder() metrics.Recorder {
	if pc == nil {
		return metrics.NoopRecorder{}
	}
	return metrics.OrNoop(pc.Metrics)
}
