package commands

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"git.home.luguber.info/inful/requireconcat/internal/eventstore"
	ferrors "git.home.luguber.info/inful/requireconcat/internal/foundation/errors"
	"git.home.luguber.info/inful/requireconcat/internal/logfields"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Since time.Duration `help:"How far back to list builds" default:"24h"`
	Build string        `help:"Show the recorded events of one build id"`
	Limit int           `help:"Maximum number of builds to list" default:"20"`
}

func (h *HistoryCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}
	if cfg.History.Path == "" {
		return ferrors.ConfigError("build history is disabled; set history.path").
			WithContext("config", root.Config).
			Build()
	}

	store, err := eventstore.NewSQLiteStore(cfg.History.Path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	if h.Build != "" {
		return printBuildEvents(ctx, g.stdout(), store, h.Build)
	}

	projection := eventstore.NewBuildHistoryProjection(h.Limit)
	if err := projection.Load(ctx, store, time.Now().Add(-h.Since)); err != nil {
		return err
	}
	return printHistory(g.stdout(), projection.History())
}

func printHistory(w io.Writer, builds []eventstore.BuildSummary) error {
	if len(builds) == 0 {
		_, err := fmt.Fprintln(w, "No builds recorded.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "BUILD\tSTARTED\tSTATUS\tMODE\tMODULES\tEMITTED\tDANGLING\tDURATION\tDETAIL")
	for _, b := range builds {
		detail := b.Output
		if b.Status == eventstore.BuildStatusFailed {
			detail = b.ErrorStage + ": " + b.ErrorMessage
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
			b.BuildID,
			b.StartedAt.Local().Format(time.DateTime),
			b.Status,
			b.Mode,
			b.Modules,
			b.Emitted,
			b.Dangling,
			b.Duration.Round(time.Millisecond),
			detail,
		)
	}
	return tw.Flush()
}

func printBuildEvents(ctx context.Context, w io.Writer, store eventstore.Store, buildID string) error {
	events, err := store.GetByBuildID(ctx, buildID)
	if err != nil {
		return err
	}

	projection := eventstore.NewBuildHistoryProjection(1)
	for _, e := range events {
		projection.Apply(e)
	}
	summary, ok := projection.Build(buildID)
	if !ok {
		return ferrors.NewError(ferrors.CategoryNotFound, "no events recorded for build").
			WithContext(logfields.KeyBuildID, buildID).
			Build()
	}
	if err := printHistory(w, []eventstore.BuildSummary{summary}); err != nil {
		return err
	}

	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}
	for _, e := range events {
		if _, err := fmt.Fprintf(w, "%s  %-15s %s\n", e.Timestamp().Local().Format(time.RFC3339), e.Type(), e.Payload()); err != nil {
			return err
		}
	}
	return nil
}
