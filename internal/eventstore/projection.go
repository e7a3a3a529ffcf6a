package eventstore

import (
	"cmp"
	"context"
	"encoding/json"
	"slices"
	"time"
)

const (
	BuildStatusRunning   = "running"
	BuildStatusCompleted = "completed"
	BuildStatusFailed    = "failed"
)

// BuildSummary is a read model of one pipeline run.
type BuildSummary struct {
	BuildID      string        `json:"build_id"`
	Status       string        `json:"status"`
	Mode         string        `json:"mode,omitempty"`
	Root         string        `json:"root,omitempty"`
	Output       string        `json:"output,omitempty"`
	Revision     string        `json:"revision,omitempty"`
	StartedAt    time.Time     `json:"started_at"`
	CompletedAt  *time.Time    `json:"completed_at,omitempty"`
	Duration     time.Duration `json:"duration,omitempty"`
	Modules      int           `json:"modules"`
	Emitted      int           `json:"emitted"`
	Dangling     int           `json:"dangling"`
	ErrorStage   string        `json:"error_stage,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
}

// BuildHistoryProjection folds events into build summaries, newest first.
type BuildHistoryProjection struct {
	builds  map[string]*BuildSummary
	maxSize int
}

// NewBuildHistoryProjection creates an empty projection keeping at most
// maxHistorySize builds.
func NewBuildHistoryProjection(maxHistorySize int) *BuildHistoryProjection {
	if maxHistorySize <= 0 {
		maxHistorySize = 100
	}
	return &BuildHistoryProjection{
		builds:  make(map[string]*BuildSummary),
		maxSize: maxHistorySize,
	}
}

// Load applies every event recorded in [since, now].
func (p *BuildHistoryProjection) Load(ctx context.Context, store Store, since time.Time) error {
	events, err := store.GetRange(ctx, since, time.Now().Add(time.Minute))
	if err != nil {
		return err
	}
	for _, e := range events {
		p.Apply(e)
	}
	return nil
}

// Apply processes a single event and updates the projection.
func (p *BuildHistoryProjection) Apply(event Event) {
	buildID := event.BuildID()
	if buildID == "" {
		return
	}

	summary, exists := p.builds[buildID]
	if !exists {
		summary = &BuildSummary{
			BuildID:   buildID,
			Status:    BuildStatusRunning,
			StartedAt: event.Timestamp(),
		}
		p.builds[buildID] = summary
	}

	switch event.Type() {
	case TypeBuildStarted:
		summary.StartedAt = event.Timestamp()
		var meta BuildStartedMeta
		if err := json.Unmarshal(event.Payload(), &meta); err == nil {
			summary.Mode = meta.Mode
			summary.Root = meta.Root
			summary.Output = meta.Output
			summary.Revision = meta.Revision
		}

	case TypeBuildCompleted:
		p.finish(summary, event.Timestamp(), BuildStatusCompleted)
		var meta BuildCompletedMeta
		if err := json.Unmarshal(event.Payload(), &meta); err == nil {
			summary.Modules = meta.Modules
			summary.Emitted = meta.Emitted
			summary.Dangling = meta.Dangling
			summary.Duration = time.Duration(meta.DurationMS) * time.Millisecond
		}

	case TypeBuildFailed:
		p.finish(summary, event.Timestamp(), BuildStatusFailed)
		var meta BuildFailedMeta
		if err := json.Unmarshal(event.Payload(), &meta); err == nil {
			summary.ErrorStage = meta.Stage
			summary.ErrorMessage = meta.Error
			summary.Duration = time.Duration(meta.DurationMS) * time.Millisecond
		}
	}
}

func (p *BuildHistoryProjection) finish(summary *BuildSummary, at time.Time, status string) {
	summary.CompletedAt = &at
	summary.Duration = at.Sub(summary.StartedAt)
	summary.Status = status
}

// History returns copies of the summaries, newest first, bounded by the
// projection's size.
func (p *BuildHistoryProjection) History() []BuildSummary {
	out := make([]BuildSummary, 0, len(p.builds))
	for _, s := range p.builds {
		out = append(out, *s)
	}
	slices.SortFunc(out, func(a, b BuildSummary) int {
		if c := b.StartedAt.Compare(a.StartedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.BuildID, a.BuildID)
	})
	if len(out) > p.maxSize {
		out = out[:p.maxSize]
	}
	return out
}

// Build returns the summary for a specific build.
func (p *BuildHistoryProjection) Build(buildID string) (BuildSummary, bool) {
	s, ok := p.builds[buildID]
	if !ok {
		return BuildSummary{}, false
	}
	return *s, true
}
