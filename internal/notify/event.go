// Package notify publishes build outcomes to NATS.
package notify

import (
	"time"

	"git.home.luguber.info/inful/docvars/internal/build"
)

// BuildEvent is the JSON payload published after every build.
type BuildEvent struct {
	BuildID  string `json:"build_id"`
	Status   string `json:"status"`
	Revision string `json:"revision,omitempty"` // Source HEAD commit, when known

	Documents    int    `json:"documents"`
	Replacements int    `json:"replacements"`
	OutputDir    string `json:"output_dir"`

	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	DurationMS int64     `json:"duration_ms"`

	// Timestamp is when the event was published.
	Timestamp time.Time `json:"timestamp"`
}

// NewBuildEvent converts a build report to its wire form.
func NewBuildEvent(r *build.Report) BuildEvent {
	return BuildEvent{
		BuildID:      r.BuildID,
		Status:       string(r.Status),
		Revision:     r.Revision,
		Documents:    r.Documents,
		Replacements: r.Replacements,
		OutputDir:    r.OutputDir,
		StartTime:    r.StartTime,
		EndTime:      r.EndTime,
		DurationMS:   r.Duration.Milliseconds(),
	}
}
