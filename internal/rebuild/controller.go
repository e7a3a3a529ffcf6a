package rebuild

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"git.home.luguber.info/inful/requireconcat/internal/build"
	ferrors "git.home.luguber.info/inful/requireconcat/internal/foundation/errors"
	"git.home.luguber.info/inful/requireconcat/internal/logfields"
	"git.home.luguber.info/inful/requireconcat/internal/metrics"
	"git.home.luguber.info/inful/requireconcat/internal/observability"
	"git.home.luguber.info/inful/requireconcat/internal/scan"
)

const (
	// DefaultInterval is the poll period when none is configured.
	DefaultInterval = time.Second

	// DefaultShutdownPollInterval is how often Stop re-checks the in-flight guard.
	DefaultShutdownPollInterval = 50 * time.Millisecond
)

// Scanner produces the current module records of a tree.
type Scanner interface {
	Scan(ctx context.Context, root string) ([]scan.Record, error)
}

// Options configures a Controller.
type Options struct {
	Root                 string
	Output               string
	CallToken            string
	Interval             time.Duration
	ShutdownPollInterval time.Duration
}

// PollResult describes one tick.
type PollResult struct {
	Outcome  metrics.PollLabel
	Added    []string           // Ids absent from the previous snapshot
	Modified []string           // Ids whose timestamp changed
	Build    *build.BuildResult // Set when a run was triggered
}

// Controller owns the rebuild snapshot and the single-flight guard.
type Controller struct {
	opts      Options
	scanner   Scanner
	runner    build.BuildService
	recorder  metrics.Recorder
	scheduler *Scheduler

	inFlight atomic.Bool

	mu       sync.RWMutex
	snapshot scan.Snapshot
}

// NewController creates a controller that triggers runner on change.
func NewController(opts Options, scanner Scanner, runner build.BuildService) *Controller {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.ShutdownPollInterval <= 0 {
		opts.ShutdownPollInterval = DefaultShutdownPollInterval
	}
	return &Controller{
		opts:     opts,
		scanner:  scanner,
		runner:   runner,
		recorder: metrics.NoopRecorder{},
		snapshot: scan.Snapshot{},
	}
}

// WithRecorder sets the metrics recorder.
func (c *Controller) WithRecorder(r metrics.Recorder) *Controller {
	c.recorder = r
	return c
}

// Poll performs one tick. A tick that finds another in flight returns
// PollSkipped without scanning.
func (c *Controller) Poll(ctx context.Context) (PollResult, error) {
	if !c.inFlight.CompareAndSwap(false, true) {
		c.recorder.IncPoll(metrics.PollSkipped)
		return PollResult{Outcome: metrics.PollSkipped}, nil
	}
	defer c.inFlight.Store(false)

	records, err := c.scanner.Scan(ctx, c.opts.Root)
	if err != nil {
		c.recorder.IncPoll(metrics.PollScanFailed)
		return PollResult{Outcome: metrics.PollScanFailed}, err
	}

	next := scan.SnapshotOf(records)
	prev := c.Snapshot()
	if !prev.Changed(next) {
		c.recorder.IncPoll(metrics.PollUnchanged)
		return PollResult{Outcome: metrics.PollUnchanged}, nil
	}

	added, modified := prev.Diff(next)
	slog.Info("Source change detected",
		logfields.Root(c.opts.Root),
		slog.Int("added", len(added)),
		slog.Int("modified", len(modified)))
	c.recorder.IncPoll(metrics.PollTriggered)

	result, runErr := c.runner.Run(ctx, build.BuildRequest{
		Root:      c.opts.Root,
		Output:    c.opts.Output,
		CallToken: c.opts.CallToken,
		Mode:      build.ModeWatch,
		Records:   records,
	})

	// Replaced even on failure, so an unchanged broken tree is not rebuilt every tick.
	c.mu.Lock()
	c.snapshot = next
	c.mu.Unlock()

	return PollResult{
		Outcome:  metrics.PollTriggered,
		Added:    added,
		Modified: modified,
		Build:    result,
	}, runErr
}

// tick is the scheduled task. Errors are logged and the loop continues.
func (c *Controller) tick(ctx context.Context) {
	res, err := c.Poll(ctx)
	if err == nil {
		return
	}
	attrs := []slog.Attr{logfields.Error(err)}
	if classified, ok := ferrors.AsClassified(err); ok {
		attrs = append(attrs, classified.LogAttrs()...)
	}
	if res.Build != nil {
		attrs = append(attrs, logfields.BuildID(res.Build.BuildID), logfields.Stage(res.Build.FailedStage))
	}
	observability.LogAtContext(ctx, ferrors.LogLevel(err), "Rebuild failed", attrs...)
}

// Start schedules polling. The first tick runs immediately. Runs are not
// cancelled when ctx ends; use Stop to wait for them.
func (c *Controller) Start(ctx context.Context) error {
	scheduler, err := NewScheduler()
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryRuntime, "failed to create rebuild scheduler").Fatal().Build()
	}
	runCtx := observability.WithMode(context.WithoutCancel(ctx), build.ModeWatch)
	if _, err := scheduler.ScheduleEvery("rebuild-poll", c.opts.Interval, func() { c.tick(runCtx) }); err != nil {
		_ = scheduler.Stop(ctx)
		return ferrors.WrapError(err, ferrors.CategoryRuntime, "failed to schedule rebuild poll").Fatal().Build()
	}
	c.scheduler = scheduler
	scheduler.Start(ctx)

	slog.Info("Watching source tree", logfields.Root(c.opts.Root), logfields.Interval(c.opts.Interval.String()))
	return nil
}

// Stop halts polling and waits until no tick is in flight or ctx ends.
func (c *Controller) Stop(ctx context.Context) error {
	if c.scheduler != nil {
		if err := c.scheduler.Stop(ctx); err != nil {
			slog.Warn("Scheduler shutdown reported an error", logfields.Error(err))
		}
		c.scheduler = nil
	}

	ticker := time.NewTicker(c.opts.ShutdownPollInterval)
	defer ticker.Stop()
	for c.inFlight.Load() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// InFlight reports whether a tick is running.
func (c *Controller) InFlight() bool {
	return c.inFlight.Load()
}

// Snapshot returns a copy of the retained id → timestamp map.
func (c *Controller) Snapshot() scan.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(scan.Snapshot, len(c.snapshot))
	for id, ts := range c.snapshot {
		out[id] = ts
	}
	return out
}
