package build

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/requireconcat/internal/assemble"
	"git.home.luguber.info/inful/requireconcat/internal/eventstore"
	"git.home.luguber.info/inful/requireconcat/internal/extract"
	ferrors "git.home.luguber.info/inful/requireconcat/internal/foundation/errors"
	"git.home.luguber.info/inful/requireconcat/internal/git"
	"git.home.luguber.info/inful/requireconcat/internal/graph"
	"git.home.luguber.info/inful/requireconcat/internal/logfields"
	"git.home.luguber.info/inful/requireconcat/internal/metrics"
	"git.home.luguber.info/inful/requireconcat/internal/notify"
	"git.home.luguber.info/inful/requireconcat/internal/observability"
	"git.home.luguber.info/inful/requireconcat/internal/scan"
	"git.home.luguber.info/inful/requireconcat/internal/sink"
)

const defaultReadConcurrency = 16

// SinkFactory opens the sink for one run. An empty output selects the console.
type SinkFactory func(output string) (sink.Sink, error)

// RevisionFunc looks up the source revision of root. It returns "" when root
// is not under version control.
type RevisionFunc func(root string) (string, error)

// DefaultBuildService is the standard implementation of BuildService.
type DefaultBuildService struct {
	scanner         *scan.Scanner
	sinkFactory     SinkFactory
	revisionFunc    RevisionFunc
	store           eventstore.Store
	publisher       notify.Publisher
	recorder        metrics.Recorder
	newID           func() string
	now             func() time.Time
	readConcurrency int
}

// NewBuildService creates a new DefaultBuildService with default factories.
func NewBuildService() *DefaultBuildService {
	return &DefaultBuildService{
		scanner:         scan.NewScanner(),
		sinkFactory:     DefaultSinkFactory,
		revisionFunc:    gitRevision,
		publisher:       notify.NoopPublisher{},
		recorder:        metrics.NoopRecorder{},
		newID:           uuid.NewString,
		now:             time.Now,
		readConcurrency: defaultReadConcurrency,
	}
}

// DefaultSinkFactory writes to a staged file, or to stdout when output is empty.
func DefaultSinkFactory(output string) (sink.Sink, error) {
	if output == "" {
		return sink.NewConsoleSink(nil), nil
	}
	return sink.NewFileSink(output)
}

func gitRevision(root string) (string, error) {
	rev, err := git.ReadHead(root)
	if err != nil || rev == nil {
		return "", err
	}
	return rev.String(), nil
}

// WithSinkFactory allows injecting a custom sink factory (for testing).
func (s *DefaultBuildService) WithSinkFactory(factory SinkFactory) *DefaultBuildService {
	s.sinkFactory = factory
	return s
}

// WithRevisionFunc replaces the git revision lookup.
func (s *DefaultBuildService) WithRevisionFunc(fn RevisionFunc) *DefaultBuildService {
	s.revisionFunc = fn
	return s
}

// WithEventStore records build history in store.
func (s *DefaultBuildService) WithEventStore(store eventstore.Store) *DefaultBuildService {
	s.store = store
	return s
}

// WithPublisher publishes a notification after every run.
func (s *DefaultBuildService) WithPublisher(p notify.Publisher) *DefaultBuildService {
	s.publisher = p
	return s
}

// WithRecorder sets the metrics recorder.
func (s *DefaultBuildService) WithRecorder(r metrics.Recorder) *DefaultBuildService {
	s.recorder = r
	return s
}

// WithIDFunc replaces the build id generator (for testing).
func (s *DefaultBuildService) WithIDFunc(fn func() string) *DefaultBuildService {
	s.newID = fn
	return s
}

// WithClock replaces the clock used for the preamble timestamp (for testing).
func (s *DefaultBuildService) WithClock(now func() time.Time) *DefaultBuildService {
	s.now = now
	return s
}

// WithScanner replaces the scanner.
func (s *DefaultBuildService) WithScanner(sc *scan.Scanner) *DefaultBuildService {
	s.scanner = sc
	return s
}

// Run executes the complete pipeline with fresh graph and module state.
func (s *DefaultBuildService) Run(ctx context.Context, req BuildRequest) (*BuildResult, error) {
	startTime := s.now()
	result := &BuildResult{
		BuildID:   s.newID(),
		StartTime: startTime,
	}
	ctx = observability.WithBuildID(ctx, result.BuildID)
	if req.Mode != "" {
		ctx = observability.WithMode(ctx, req.Mode)
	}

	if req.Root == "" {
		return s.fail(ctx, result, StageScan, ferrors.ValidationError("source root required").Build())
	}

	revision, err := s.revisionFunc(req.Root)
	if err != nil {
		observability.DebugContext(ctx, "Source revision unavailable", logfields.Root(req.Root), logfields.Error(err))
	}
	result.Revision = revision

	s.recordEvent(ctx, func() (eventstore.Event, error) {
		return eventstore.NewBuildStarted(result.BuildID, eventstore.BuildStartedMeta{
			Root:      req.Root,
			Output:    req.Output,
			Mode:      req.Mode,
			CallToken: req.CallToken,
			Revision:  revision,
		})
	})

	// Stage 1: scan (skipped when the caller already scanned)
	records := req.Records
	if records == nil {
		stageStart := time.Now()
		ctx = observability.WithStage(ctx, StageScan)
		records, err = s.scanner.Scan(ctx, req.Root)
		if err != nil {
			return s.fail(ctx, result, StageScan, err)
		}
		s.stageDone(StageScan, stageStart)
	}
	result.Modules = len(records)

	// Stage 2: read every module once
	stageStart := time.Now()
	ctx = observability.WithStage(ctx, StageRead)
	texts, err := s.readAll(ctx, records)
	if err != nil {
		return s.fail(ctx, result, StageRead, err)
	}
	s.stageDone(StageRead, stageStart)

	// Stage 3: extract references into a fresh graph
	stageStart = time.Now()
	ctx = observability.WithStage(ctx, StageGraph)
	g, chunks := buildGraph(extract.New(req.CallToken), records, texts)
	observability.DebugContext(ctx, "Dependency graph built", logfields.Count(g.Len()))
	s.stageDone(StageGraph, stageStart)

	// Stage 4: assemble into the sink
	stageStart = time.Now()
	ctx = observability.WithStage(ctx, StageAssemble)
	out, err := s.sinkFactory(req.Output)
	if err != nil {
		return s.fail(ctx, result, StageAssemble, err)
	}
	result.OutputPath = out.Target()

	preamble := sink.Preamble{BuiltAt: startTime, BuildID: result.BuildID, Revision: revision}
	if err := out.WritePreamble(ctx, preamble); err != nil {
		s.abort(ctx, out)
		return s.fail(ctx, result, StageAssemble, err)
	}
	assembled, err := assemble.Assemble(ctx, g, chunks, out.WriteChunk)
	result.Emitted = assembled.Emitted
	result.Dangling = assembled.Dangling
	if err != nil {
		s.abort(ctx, out)
		return s.fail(ctx, result, StageAssemble, err)
	}
	s.stageDone(StageAssemble, stageStart)

	// Stage 5: commit
	stageStart = time.Now()
	ctx = observability.WithStage(ctx, StageCommit)
	if err := out.Commit(); err != nil {
		return s.fail(ctx, result, StageCommit, err)
	}
	s.stageDone(StageCommit, stageStart)

	s.finish(result, BuildStatusSuccess)
	s.recorder.IncBuildOutcome(metrics.OutcomeSuccess)
	s.recorder.ObserveBuildDuration(result.Duration)
	s.recorder.SetModules(result.Modules, len(result.Emitted), len(result.Dangling))

	observability.InfoContext(ctx, "Build Succeed",
		logfields.Output(result.OutputPath),
		logfields.Count(len(result.Emitted)),
		slog.Int("dangling", len(result.Dangling)),
		logfields.DurationMS(float64(result.Duration.Milliseconds())))

	s.recordEvent(ctx, func() (eventstore.Event, error) {
		return eventstore.NewBuildCompleted(result.BuildID, eventstore.BuildCompletedMeta{
			Modules:    result.Modules,
			Emitted:    len(result.Emitted),
			Dangling:   len(result.Dangling),
			DurationMS: result.Duration.Milliseconds(),
			Output:     result.OutputPath,
		})
	})
	s.publish(ctx, result, nil)
	return result, nil
}

// readAll reads records concurrently; texts[i] belongs to records[i].
func (s *DefaultBuildService) readAll(ctx context.Context, records []scan.Record) ([]string, error) {
	texts := make([]string, len(records))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.readConcurrency)
	for i, rec := range records {
		g.Go(func() error {
			text, err := extract.ReadModule(gctx, rec)
			if err != nil {
				return err
			}
			texts[i] = text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return texts, nil
}

// buildGraph inserts each record's node before its references, in record order.
func buildGraph(ex *extract.Extractor, records []scan.Record, texts []string) (*graph.Graph, map[string]string) {
	g := graph.New()
	chunks := make(map[string]string, len(records))
	for i, rec := range records {
		m := ex.Extract(rec, texts[i])
		g.AddNode(rec.ID)
		for _, dep := range m.Deps {
			g.AddEdge(rec.ID, dep)
		}
		chunks[rec.ID] = m.Chunk
	}
	return g, chunks
}

func (s *DefaultBuildService) stageDone(stage string, start time.Time) {
	s.recorder.ObserveStageDuration(stage, time.Since(start))
	s.recorder.IncStageResult(stage, metrics.ResultSuccess)
}

func (s *DefaultBuildService) finish(result *BuildResult, status BuildStatus) {
	result.Status = status
	result.EndTime = s.now()
	result.Duration = result.EndTime.Sub(result.StartTime)
}

func (s *DefaultBuildService) abort(ctx context.Context, out sink.Sink) {
	if err := out.Abort(); err != nil {
		observability.WarnContext(ctx, "Failed to discard staged bundle", logfields.Output(out.Target()), logfields.Error(err))
	}
}

// fail records the failure everywhere and returns err unchanged.
func (s *DefaultBuildService) fail(ctx context.Context, result *BuildResult, stage string, err error) (*BuildResult, error) {
	status := BuildStatusFailed
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		status = BuildStatusCancelled
	}
	s.finish(result, status)
	result.FailedStage = stage

	s.recorder.IncStageResult(stage, metrics.ResultFailed)
	s.recorder.IncBuildOutcome(metrics.OutcomeFailed)
	s.recorder.ObserveBuildDuration(result.Duration)

	s.recordEvent(ctx, func() (eventstore.Event, error) {
		return eventstore.NewBuildFailed(result.BuildID, eventstore.BuildFailedMeta{
			Stage:      stage,
			Category:   string(ferrors.GetCategory(err)),
			Error:      err.Error(),
			DurationMS: result.Duration.Milliseconds(),
		})
	})
	s.publish(ctx, result, err)
	return result, err
}

// recordEvent appends to the history store. Failures are logged, never returned.
func (s *DefaultBuildService) recordEvent(ctx context.Context, build func() (eventstore.Event, error)) {
	if s.store == nil {
		return
	}
	event, err := build()
	if err == nil {
		err = eventstore.AppendEvent(context.WithoutCancel(ctx), s.store, event)
	}
	if err != nil {
		observability.LogAtContext(ctx, ferrors.LogLevel(err), "Failed to record build event", logfields.Error(err))
	}
}

// publish sends the outcome notification. Failures are logged, never returned.
func (s *DefaultBuildService) publish(ctx context.Context, result *BuildResult, runErr error) {
	event := notify.BuildEvent{
		BuildID:    result.BuildID,
		Status:     string(result.Status),
		Output:     result.OutputPath,
		Modules:    result.Modules,
		Emitted:    len(result.Emitted),
		Dangling:   len(result.Dangling),
		DurationMS: result.Duration.Milliseconds(),
		Timestamp:  result.EndTime,
	}
	if runErr != nil {
		event.Error = runErr.Error()
	}
	if err := s.publisher.Publish(context.WithoutCancel(ctx), event); err != nil {
		observability.LogAtContext(ctx, ferrors.LogLevel(err), "Failed to publish build event", logfields.Error(err))
	}
}
