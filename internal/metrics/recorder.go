package metrics

import "time"

// ResultLabel enumerates per-document result categories for counters.
type ResultLabel string

const (
	ResultSuccess ResultLabel = "success"
	ResultFailed  ResultLabel = "failed"
)

// BuildOutcomeLabel enumerates final build outcomes.
type BuildOutcomeLabel string

const (
	BuildOutcomeSuccess  BuildOutcomeLabel = "success"
	BuildOutcomeFailed   BuildOutcomeLabel = "failed"
	BuildOutcomeCanceled BuildOutcomeLabel = "canceled"
)

// Recorder defines observability hooks for builds and substitution.
type Recorder interface {
	ObserveDocumentDuration(d time.Duration)
	IncDocumentResult(result ResultLabel)
	AddReplacements(token string, n int)
	ObserveBuildDuration(d time.Duration)
	IncBuildOutcome(outcome BuildOutcomeLabel)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveDocumentDuration(time.Duration) {}
func (NoopRecorder) IncDocumentResult(ResultLabel)         {}
func (NoopRecorder) AddReplacements(string, int)           {}
func (NoopRecorder) ObserveBuildDuration(time.Duration)    {}
func (NoopRecorder) IncBuildOutcome(BuildOutcomeLabel)     {}

// OrNoop returns r, or a NoopRecorder when r is nil.
func OrNoop(r Recorder) Recorder {
	if r == nil {
		return NoopRecorder{}
	}
	return r
}
