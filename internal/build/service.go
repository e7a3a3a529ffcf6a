package build

import (
	"context"
	"time"

	"git.home.luguber.info/inful/requireconcat/internal/scan"
)

// Pipeline stage names used in logs, metrics and build history.
const (
	StageScan     = "scan"
	StageRead     = "read"
	StageGraph    = "graph"
	StageAssemble = "assemble"
	StageCommit   = "commit"
)

// Run modes recorded with each build.
const (
	ModeOneShot = "oneshot"
	ModeWatch   = "watch"
)

// BuildService is the canonical interface for executing a bundle build.
type BuildService interface {
	// Run executes scan → read → graph → assemble → commit once.
	Run(ctx context.Context, req BuildRequest) (*BuildResult, error)
}

// BuildRequest contains all inputs required to execute a build.
type BuildRequest struct {
	// Root is the source tree to bundle.
	Root string

	// Output is the bundle file. Empty streams the bundle to the console sink.
	Output string

	// CallToken overrides the reference call name (default "require").
	CallToken string

	// Mode is ModeOneShot or ModeWatch; it only labels the run.
	Mode string

	// Records, when set, are used instead of scanning Root again.
	Records []scan.Record
}

// BuildResult contains the outcome of a build execution.
type BuildResult struct {
	BuildID string
	Status  BuildStatus

	// FailedStage names the stage that stopped a failed run.
	FailedStage string

	// OutputPath describes where the bundle went.
	OutputPath string

	// Revision is the source revision stamped into the preamble, if any.
	Revision string

	// Modules is the number of scanned modules.
	Modules int

	// Emitted lists module ids in the order their chunks were written.
	Emitted []string

	// Dangling lists referenced ids that have no source file.
	Dangling []string

	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
}

// BuildStatus represents the outcome of a build execution.
type BuildStatus string

const (
	// BuildStatusSuccess indicates the bundle was committed.
	BuildStatusSuccess BuildStatus = "success"

	// BuildStatusFailed indicates the run aborted and nothing was committed.
	BuildStatusFailed BuildStatus = "failed"

	// BuildStatusCancelled indicates the context ended the run.
	BuildStatusCancelled BuildStatus = "cancelled"
)

// IsTerminal returns true if the status represents a final state.
func (s BuildStatus) IsTerminal() bool {
	return s == BuildStatusSuccess || s == BuildStatusFailed || s == BuildStatusCancelled
}

// IsSuccess returns true if the build completed successfully.
func (s BuildStatus) IsSuccess() bool {
	return s == BuildStatusSuccess
}
