package build

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/docvars/internal/config"
	ferrors "git.home.luguber.info/inful/docvars/internal/foundation/errors"
	"git.home.luguber.info/inful/docvars/internal/logfields"
	"git.home.luguber.info/inful/docvars/internal/markdown"
	"git.home.luguber.info/inful/docvars/internal/metrics"
	"git.home.luguber.info/inful/docvars/internal/plugin"
	"git.home.luguber.info/inful/docvars/internal/plugin/transforms"
)

// BuildStatus represents the outcome of a build execution.
type BuildStatus string

const (
	// BuildStatusSuccess indicates every document was written.
	BuildStatusSuccess BuildStatus = "success"

	// BuildStatusFailed indicates a document failed and the build stopped.
	BuildStatusFailed BuildStatus = "failed"

	// BuildStatusCancelled indicates the context was cancelled mid-build.
	BuildStatusCancelled BuildStatus = "cancelled"
)

// IsSuccess returns true if the build completed successfully.
func (s BuildStatus) IsSuccess() bool {
	return s == BuildStatusSuccess
}

func (s BuildStatus) outcome() metrics.BuildOutcomeLabel {
	switch s {
	case BuildStatusSuccess:
		return metrics.BuildOutcomeSuccess
	case BuildStatusCancelled:
		return metrics.BuildOutcomeCanceled
	default:
		return metrics.BuildOutcomeFailed
	}
}

// Report contains the outcome of a build execution.
type Report struct {
	BuildID string
	Status  BuildStatus

	// Documents is the number of documents written.
	Documents int

	// Replacements is the number of token replacements across all documents.
	Replacements int

	// Revision is the HEAD commit of the source tree, if it lives in a git worktree.
	Revision string

	OutputDir string
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
}

// Builder runs builds for one configuration.
type Builder struct {
	cfg        *config.Config
	logger     *slog.Logger
	recorder   metrics.Recorder
	renderer   *markdown.Renderer
	transforms *transforms.TransformRegistry
	hub        *plugin.Hub
	notifier   Notifier
}

// Notifier is told about every finished build, whatever its status.
type Notifier interface {
	Notify(ctx context.Context, report *Report) error
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) { b.logger = logger }
}

// WithRecorder sets the metrics recorder. Defaults to metrics.NoopRecorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(b *Builder) { b.recorder = r }
}

// WithRenderer replaces the default HTML renderer.
func WithRenderer(r *markdown.Renderer) Option {
	return func(b *Builder) { b.renderer = r }
}

// WithTransforms replaces the transforms collected from the default plugin registry.
func WithTransforms(tr *transforms.TransformRegistry) Option {
	return func(b *Builder) { b.transforms = tr }
}

// WithNotifier publishes each report once the build has finished. Notification
// failures are logged and do not fail the build.
func WithNotifier(n Notifier) Option {
	return func(b *Builder) { b.notifier = n }
}

// NewBuilder creates a builder and connects the preprocess transforms to the
// source-read event.
func NewBuilder(cfg *config.Config, opts ...Option) (*Builder, error) {
	if cfg == nil {
		return nil, ferrors.ConfigError("configuration is required").Build()
	}

	b := &Builder{cfg: cfg}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	b.recorder = metrics.OrNoop(b.recorder)
	if b.renderer == nil {
		b.renderer = markdown.NewRenderer(markdown.Options{UnsafeHTML: cfg.Build.UnsafeHTML})
	}
	if b.transforms == nil {
		tr, err := transforms.FromRegistry(plugin.DefaultRegistry())
		if err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryPlugin, "failed to load transforms").Build()
		}
		b.transforms = tr
	}

	b.hub = plugin.NewHub()
	if err := b.hub.Connect(plugin.EventSourceRead, transforms.SourceReadHandler(b.transforms)); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryInternal, "failed to connect transforms").Build()
	}
	return b, nil
}

// Hub returns the event hub used by the builder. Handlers connected to it run
// after the transforms.
func (b *Builder) Hub() *plugin.Hub {
	return b.hub
}

// Build processes every document once. The first document failure cancels the
// remaining work and is returned; the report is always non-nil.
func (b *Builder) Build(ctx context.Context) (*Report, error) {
	report := &Report{
		BuildID:   uuid.NewString(),
		OutputDir: b.cfg.Output.Directory,
		StartTime: time.Now(),
	}
	logger := b.logger.With(logfields.BuildID(report.BuildID))
	report.Revision = SourceRevision(b.cfg.Source, logger)

	tally := &tallyRecorder{Recorder: b.recorder}
	pc := plugin.NewPluginContext(ctx, logger, b.cfg, tally, report.BuildID)

	err := b.run(ctx, pc, report)

	report.EndTime = time.Now()
	report.Duration = report.EndTime.Sub(report.StartTime)
	report.Replacements = int(tally.replacements.Load())
	switch {
	case err == nil:
		report.Status = BuildStatusSuccess
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		report.Status = BuildStatusCancelled
	default:
		report.Status = BuildStatusFailed
	}

	b.recorder.ObserveBuildDuration(report.Duration)
	b.recorder.IncBuildOutcome(report.Status.outcome())
	b.notify(ctx, logger, report)

	if err != nil {
		logger.Error("Build failed",
			slog.String("status", string(report.Status)),
			logfields.Documents(report.Documents),
			logfields.Error(err))
		return report, err
	}
	logger.Info("Build completed",
		logfields.Documents(report.Documents),
		logfields.Replacements(report.Replacements),
		logfields.Revision(report.Revision),
		logfields.DurationMS(float64(report.Duration.Milliseconds())))
	return report, nil
}

func (b *Builder) notify(ctx context.Context, logger *slog.Logger, report *Report) {
	if b.notifier == nil {
		return
	}
	// A cancelled build is still reported.
	if err := b.notifier.Notify(context.WithoutCancel(ctx), report); err != nil {
		logger.Warn("Build notification failed", logfields.Error(err))
	}
}

func (b *Builder) run(ctx context.Context, pc *plugin.PluginContext, report *Report) error {
	if err := b.transforms.Validate(pc); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryPlugin, "transform rejected configuration").Build()
	}

	docs, err := Discover(b.cfg.Source, b.cfg.Build.Extensions)
	if err != nil {
		return err
	}
	if err := b.prepareOutput(); err != nil {
		return err
	}

	written, err := b.processAll(ctx, pc, docs)
	report.Documents = written
	return err
}

func (b *Builder) prepareOutput() error {
	dir := b.cfg.Output.Directory
	if b.cfg.Output.Clean {
		if err := os.RemoveAll(dir); err != nil {
			return ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to clean output directory").
				WithContext("path", dir).
				Build()
		}
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to create output directory").
			WithContext("path", dir).
			Build()
	}
	return nil
}

// processAll fans documents out to the configured number of workers.
func (b *Builder) processAll(ctx context.Context, pc *plugin.PluginContext, docs []Document) (int, error) {
	concurrency := b.cfg.Build.Workers
	if concurrency > len(docs) {
		concurrency = len(docs)
	}
	if concurrency < 1 {
		concurrency = 1
	}
	pc.Log().Debug("Processing documents", logfields.Documents(len(docs)), logfields.Workers(concurrency))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
		written  atomic.Int64
	)
	fail := func(err error) {
		once.Do(func() {
			firstErr = err
			cancel()
		})
	}

	tasks := make(chan Document)
	worker := func() {
		defer wg.Done()
		for doc := range tasks {
			if ctx.Err() != nil {
				continue
			}
			start := time.Now()
			err := b.processDocument(pc, doc)
			b.recorder.ObserveDocumentDuration(time.Since(start))
			if err != nil {
				b.recorder.IncDocumentResult(metrics.ResultFailed)
				fail(err)
				continue
			}
			b.recorder.IncDocumentResult(metrics.ResultSuccess)
			written.Add(1)
		}
	}

	wg.Add(concurrency)
	for range concurrency {
		go worker()
	}

dispatch:
	for _, doc := range docs {
		select {
		case <-ctx.Done():
			break dispatch
		case tasks <- doc:
		}
	}
	close(tasks)
	wg.Wait()

	if firstErr != nil {
		return int(written.Load()), firstErr
	}
	if err := ctx.Err(); err != nil {
		return int(written.Load()), ferrors.WrapError(err, ferrors.CategoryRuntime, "build cancelled").Build()
	}
	return int(written.Load()), nil
}

// processDocument reads, preprocesses, renders and writes one document.
func (b *Builder) processDocument(pc *plugin.PluginContext, doc Document) error {
	raw, err := os.ReadFile(doc.Path)
	if err != nil {
		return ferrors.WrapError(fmt.Errorf("%w: %w", ErrRead, err), ferrors.CategoryFileSystem, "failed to read document").
			WithContext("docname", doc.DocName).
			WithContext("path", doc.Path).
			Build()
	}

	src := &plugin.Source{Text: string(raw)}
	b.hub.EmitSourceRead(pc, doc.DocName, src)

	page, err := b.renderer.Page([]byte(src.Text), doc.DocName)
	if err != nil {
		return ferrors.WrapError(fmt.Errorf("%w: %w", ErrRender, err), ferrors.CategoryRender, "failed to render document").
			WithContext("docname", doc.DocName).
			Build()
	}

	out := doc.OutputPath(b.cfg.Output.Directory)
	if err := os.MkdirAll(filepath.Dir(out), 0o750); err != nil {
		return ferrors.WrapError(fmt.Errorf("%w: %w", ErrWrite, err), ferrors.CategoryFileSystem, "failed to create output directory").
			WithContext("docname", doc.DocName).
			WithContext("path", out).
			Build()
	}
	if err := os.WriteFile(out, page, 0o600); err != nil {
		return ferrors.WrapError(fmt.Errorf("%w: %w", ErrWrite, err), ferrors.CategoryFileSystem, "failed to write document").
			WithContext("docname", doc.DocName).
			WithContext("path", out).
			Build()
	}

	pc.Log().Debug("Document written", logfields.DocName(doc.DocName), logfields.Path(out))
	return nil
}

// tallyRecorder forwards to the build recorder and keeps a running replacement
// total for the report.
type tallyRecorder struct {
	metrics.Recorder
	replacements atomic.Int64
}

func (t *tallyRecorder) AddReplacements(token string, n int) {
	t.replacements.Add(int64(n))
	t.Recorder.AddReplacements(token, n)
}
