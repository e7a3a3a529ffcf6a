package metrics

import "time"

// ResultLabel enumerates stage result categories for counters.
type ResultLabel string

const (
	ResultSuccess ResultLabel = "success"
	ResultFailed  ResultLabel = "failed"
)

// BuildOutcomeLabel is the final status of a pipeline run.
type BuildOutcomeLabel string

const (
	OutcomeSuccess BuildOutcomeLabel = "success"
	OutcomeFailed  BuildOutcomeLabel = "failed"
)

// PollLabel describes what one rebuild tick did.
type PollLabel string

const (
	PollSkipped    PollLabel = "skipped"     // Another run in flight
	PollUnchanged  PollLabel = "unchanged"   // Snapshot equal, no run
	PollTriggered  PollLabel = "triggered"   // Pipeline run started
	PollScanFailed PollLabel = "scan_failed" // Scan error, snapshot kept
)

// Recorder defines observability hooks for build and stage metrics. Implementations
// may forward to Prometheus or similar backends.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	ObserveBuildDuration(d time.Duration)
	IncStageResult(stage string, result ResultLabel)
	IncBuildOutcome(outcome BuildOutcomeLabel)
	SetModules(scanned, emitted, dangling int)
	IncPoll(result PollLabel)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) ObserveBuildDuration(time.Duration)         {}
func (NoopRecorder) IncStageResult(string, ResultLabel)         {}
func (NoopRecorder) IncBuildOutcome(BuildOutcomeLabel)          {}
func (NoopRecorder) SetModules(int, int, int)                   {}
func (NoopRecorder) IncPoll(PollLabel)                          {}
