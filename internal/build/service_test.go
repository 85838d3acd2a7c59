package build

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docvars/internal/config"
	ferrors "git.home.luguber.info/inful/docvars/internal/foundation/errors"
	"git.home.luguber.info/inful/docvars/internal/metrics"
	"git.home.luguber.info/inful/docvars/internal/plugin"
	"git.home.luguber.info/inful/docvars/internal/plugin/transforms"
	_ "git.home.luguber.info/inful/docvars/internal/plugin/transforms/variables"
	"git.home.luguber.info/inful/docvars/internal/replace"
)

type recordingRecorder struct {
	metrics.NoopRecorder
	mu           sync.Mutex
	results      map[metrics.ResultLabel]int
	outcomes     []metrics.BuildOutcomeLabel
	replacements int
}

func (r *recordingRecorder) IncDocumentResult(result metrics.ResultLabel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.results == nil {
		r.results = make(map[metrics.ResultLabel]int)
	}
	r.results[result]++
}

func (r *recordingRecorder) IncBuildOutcome(outcome metrics.BuildOutcomeLabel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func (r *recordingRecorder) AddReplacements(_ string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replacements += n
}

func testConfig(t *testing.T, files map[string]string, pairs ...replace.Pair) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Source = filepath.Join(dir, "docs")
	cfg.Output.Directory = filepath.Join(dir, "site")
	cfg.VariableReplacements = *replace.NewMapping(pairs...)
	require.NoError(t, os.MkdirAll(cfg.Source, 0o750))
	writeTree(t, cfg.Source, files)
	return cfg
}

func readOutput(t *testing.T, cfg *config.Config, docname string) string {
	t.Helper()
	data, err := os.ReadFile(Document{DocName: docname}.OutputPath(cfg.Output.Directory))
	require.NoError(t, err)
	return string(data)
}

func TestBuildStatus(t *testing.T) {
	assert.True(t, BuildStatusSuccess.IsSuccess())
	assert.False(t, BuildStatusFailed.IsSuccess())
	assert.False(t, BuildStatusCancelled.IsSuccess())
	assert.Equal(t, metrics.BuildOutcomeCanceled, BuildStatusCancelled.outcome())
}

func TestNewBuilder_NilConfig(t *testing.T) {
	_, err := NewBuilder(nil)
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
}

func TestBuild_SubstitutesBeforeRendering(t *testing.T) {
	cfg := testConfig(t, map[string]string{
		"index.md":         "# {Singularity} {version} install guide\n",
		"guide/install.md": "Run `{Singularity} --version` to check {version}.\n",
	},
		replace.Pair{Token: "{InstallationVersion}", Value: "main"},
		replace.Pair{Token: "{version}", Value: "main"},
		replace.Pair{Token: "{adminversion}", Value: "main"},
		replace.Pair{Token: "{Singularity}", Value: "SingularityCE"},
	)
	rec := &recordingRecorder{}

	b, err := NewBuilder(cfg, WithRecorder(rec))
	require.NoError(t, err)
	report, err := b.Build(t.Context())
	require.NoError(t, err)

	assert.Equal(t, BuildStatusSuccess, report.Status)
	assert.Equal(t, 2, report.Documents)
	assert.Equal(t, 4, report.Replacements)
	assert.NotEmpty(t, report.BuildID)
	assert.False(t, report.EndTime.Before(report.StartTime))

	index := readOutput(t, cfg, "index")
	assert.Contains(t, index, "<title>SingularityCE main install guide</title>")
	assert.Contains(t, index, ">SingularityCE main install guide</h1>")
	assert.NotContains(t, index, "{Singularity}")

	install := readOutput(t, cfg, "guide/install")
	assert.Contains(t, install, "<code>SingularityCE --version</code>")

	assert.Equal(t, 2, rec.results[metrics.ResultSuccess])
	assert.Equal(t, []metrics.BuildOutcomeLabel{metrics.BuildOutcomeSuccess}, rec.outcomes)
	assert.Equal(t, 4, rec.replacements)
}

func TestBuild_EmptyMappingLeavesText(t *testing.T) {
	cfg := testConfig(t, map[string]string{"index.md": "Version {version}\n"})

	b, err := NewBuilder(cfg)
	require.NoError(t, err)
	report, err := b.Build(t.Context())
	require.NoError(t, err)

	assert.Zero(t, report.Replacements)
	assert.Contains(t, readOutput(t, cfg, "index"), "Version {version}")
}

func TestBuild_ParallelWorkers(t *testing.T) {
	files := make(map[string]string)
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		files["section/"+name+".md"] = "{version}\n"
	}
	cfg := testConfig(t, files, replace.Pair{Token: "{version}", Value: "3.11"})
	cfg.Build.Workers = 4

	b, err := NewBuilder(cfg)
	require.NoError(t, err)
	report, err := b.Build(t.Context())
	require.NoError(t, err)

	assert.Equal(t, 8, report.Documents)
	assert.Equal(t, 8, report.Replacements)
	assert.Contains(t, readOutput(t, cfg, "section/h"), "<p>3.11</p>")
}

func TestBuild_CleanOutput(t *testing.T) {
	cfg := testConfig(t, map[string]string{"index.md": "hi\n"})
	stale := filepath.Join(cfg.Output.Directory, "stale.html")
	require.NoError(t, os.MkdirAll(cfg.Output.Directory, 0o750))
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o600))

	cfg.Output.Clean = true
	b, err := NewBuilder(cfg)
	require.NoError(t, err)
	_, err = b.Build(t.Context())
	require.NoError(t, err)

	assert.NoFileExists(t, stale)
	assert.FileExists(t, filepath.Join(cfg.Output.Directory, "index.html"))
}

func TestBuild_MissingSource(t *testing.T) {
	cfg := testConfig(t, nil)
	cfg.Source = filepath.Join(cfg.Source, "absent")
	rec := &recordingRecorder{}

	b, err := NewBuilder(cfg, WithRecorder(rec))
	require.NoError(t, err)
	report, err := b.Build(t.Context())
	require.Error(t, err)

	assert.Equal(t, BuildStatusFailed, report.Status)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryNotFound))
	assert.Equal(t, []metrics.BuildOutcomeLabel{metrics.BuildOutcomeFailed}, rec.outcomes)
}

func TestBuild_WriteFailureIsClassified(t *testing.T) {
	cfg := testConfig(t, map[string]string{"guide/install.md": "x\n"})
	// A file where the guide/ output directory should go.
	require.NoError(t, os.MkdirAll(cfg.Output.Directory, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Output.Directory, "guide"), []byte("blocker"), 0o600))

	b, err := NewBuilder(cfg)
	require.NoError(t, err)
	report, err := b.Build(t.Context())
	require.Error(t, err)

	assert.Equal(t, BuildStatusFailed, report.Status)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryFileSystem))
	assert.True(t, errors.Is(err, ErrWrite))

	ce, ok := ferrors.AsClassified(err)
	require.True(t, ok)
	docname, _ := ce.Context().GetString("docname")
	assert.Equal(t, "guide/install", docname)
}

func TestBuild_Cancelled(t *testing.T) {
	cfg := testConfig(t, map[string]string{"index.md": "x\n"})
	rec := &recordingRecorder{}

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	b, err := NewBuilder(cfg, WithRecorder(rec))
	require.NoError(t, err)
	report, err := b.Build(ctx)
	require.Error(t, err)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, BuildStatusCancelled, report.Status)
	assert.Zero(t, report.Documents)
	assert.Equal(t, []metrics.BuildOutcomeLabel{metrics.BuildOutcomeCanceled}, rec.outcomes)
}

type upperTransform struct {
	transforms.BaseTransformPlugin
}

func (upperTransform) Metadata() plugin.PluginMetadata {
	return plugin.PluginMetadata{Name: "marker", Version: "v0.1.0", Type: plugin.PluginTypeTransform}
}

func (upperTransform) Stage() transforms.TransformStage { return transforms.StagePreProcess }

func (upperTransform) Apply(input *transforms.TransformInput) *transforms.TransformResult {
	return &transforms.TransformResult{Content: append(input.Content, []byte("\nmarker {version}\n")...)}
}

func TestBuild_CustomTransformsAndHubHandlers(t *testing.T) {
	cfg := testConfig(t, map[string]string{"index.md": "body\n"}, replace.Pair{Token: "{version}", Value: "main"})

	tr := transforms.NewTransformRegistry()
	require.NoError(t, tr.Register(&upperTransform{}))

	b, err := NewBuilder(cfg, WithTransforms(tr))
	require.NoError(t, err)

	var seen []string
	var mu sync.Mutex
	require.NoError(t, b.Hub().Connect(plugin.EventSourceRead, func(_ *plugin.PluginContext, docname string, src *plugin.Source) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, docname)
		src.Text += "\nfooter\n"
	}))

	_, err = b.Build(t.Context())
	require.NoError(t, err)

	out := readOutput(t, cfg, "index")
	assert.Contains(t, out, "marker {version}", "variables plugin is not in the custom registry")
	assert.Contains(t, out, "footer")
	assert.Equal(t, []string{"index"}, seen)
}

func TestBuild_ReportDuration(t *testing.T) {
	cfg := testConfig(t, map[string]string{"index.md": "x\n"})
	b, err := NewBuilder(cfg)
	require.NoError(t, err)

	report, err := b.Build(t.Context())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, report.Duration, time.Duration(0))
	assert.Equal(t, cfg.Output.Directory, report.OutputDir)
}

type captureNotifier struct {
	reports []*Report
	ctxErrs []error
	err     error
}

func (n *captureNotifier) Notify(ctx context.Context, report *Report) error {
	n.reports = append(n.reports, report)
	n.ctxErrs = append(n.ctxErrs, ctx.Err())
	return n.err
}

func TestBuild_NotifiesEveryOutcome(t *testing.T) {
	cfg := testConfig(t, map[string]string{"index.md": "{version}\n"}, replace.Pair{Token: "{version}", Value: "main"})
	n := &captureNotifier{}

	b, err := NewBuilder(cfg, WithNotifier(n))
	require.NoError(t, err)
	report, err := b.Build(t.Context())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	cancelled, err := b.Build(ctx)
	require.Error(t, err)

	require.Len(t, n.reports, 2)
	assert.Same(t, report, n.reports[0])
	assert.Same(t, cancelled, n.reports[1])
	assert.Equal(t, BuildStatusCancelled, n.reports[1].Status)
	assert.NoError(t, n.ctxErrs[1], "notification outlives the build context")
}

func TestBuild_NotificationFailureDoesNotFailBuild(t *testing.T) {
	cfg := testConfig(t, map[string]string{"index.md": "x\n"})
	n := &captureNotifier{err: errors.New("broker unavailable")}

	b, err := NewBuilder(cfg, WithNotifier(n))
	require.NoError(t, err)
	report, err := b.Build(t.Context())
	require.NoError(t, err)
	assert.Equal(t, BuildStatusSuccess, report.Status)
	assert.Len(t, n.reports, 1)
}
