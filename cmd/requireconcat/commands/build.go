package commands

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"git.home.luguber.info/inful/requireconcat/internal/build"
	"git.home.luguber.info/inful/requireconcat/internal/config"
	ferrors "git.home.luguber.info/inful/requireconcat/internal/foundation/errors"
	"git.home.luguber.info/inful/requireconcat/internal/logfields"
	"git.home.luguber.info/inful/requireconcat/internal/rebuild"
	"git.home.luguber.info/inful/requireconcat/internal/scan"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Root      string        `short:"r" help:"Source root directory (overrides source.root)"`
	Output    string        `short:"o" help:"Bundle file to write; stdout when unset (overrides output.path)"`
	Watch     bool          `short:"w" help:"Keep running and rebuild when sources change"`
	Interval  time.Duration `help:"Poll interval in watch mode (overrides watch.interval)"`
	CallToken string        `name:"call-token" help:"Function name treated as a module reference (overrides extract.call_token)"`
	Timeout   time.Duration `help:"Abort a one-shot build after this long (0 disables)"`
}

func (b *BuildCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}
	if err := b.applyOverrides(cfg); err != nil {
		return err
	}
	if err := checkOutputOutsideRoot(cfg.Source.Root, cfg.Output.Path); err != nil {
		return err
	}

	rt, err := newBuildRuntime(cfg, g.stdout())
	if err != nil {
		return err
	}
	defer rt.Close(context.Background())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Watch.Enabled {
		return runWatch(ctx, cfg, rt)
	}
	return b.runOnce(ctx, cfg, rt.service)
}

// applyOverrides lets explicit flags win over the configuration file.
func (b *BuildCmd) applyOverrides(cfg *config.Config) error {
	if b.Root != "" {
		cfg.Source.Root = b.Root
	}
	if b.Output != "" {
		cfg.Output.Path = b.Output
	}
	if b.Watch {
		cfg.Watch.Enabled = true
	}
	if b.Interval != 0 {
		cfg.Watch.Interval = b.Interval.String()
	}
	if b.CallToken != "" {
		cfg.Extract.CallToken = b.CallToken
	}
	return config.Validate(cfg)
}

// checkOutputOutsideRoot rejects bundles written into the tree they are
// built from; the next scan would pick the bundle up as a module.
func checkOutputOutsideRoot(root, output string) error {
	if output == "" {
		return nil
	}
	absRoot, err := resolvePath(root)
	if err != nil {
		return pathFailure(err, root)
	}
	absOut, err := resolvePath(output)
	if err != nil {
		return pathFailure(err, output)
	}
	rel, err := filepath.Rel(absRoot, absOut)
	if err != nil {
		return pathFailure(err, output)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil
	}
	return ferrors.ValidationError("output must not be inside the source root").
		WithContext(logfields.KeyRoot, absRoot).
		WithContext(logfields.KeyOutput, absOut).
		Build()
}

// resolvePath makes p absolute and resolves symlinks in its longest existing
// prefix. The missing remainder is joined back unchanged.
func resolvePath(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	existing, rest := abs, ""
	for {
		resolved, err := filepath.EvalSymlinks(existing)
		switch {
		case err == nil:
			return filepath.Join(resolved, rest), nil
		case !errors.Is(err, fs.ErrNotExist):
			return "", err
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			return abs, nil
		}
		rest = filepath.Join(filepath.Base(existing), rest)
		existing = parent
	}
}

func pathFailure(err error, path string) error {
	return ferrors.WrapError(err, ferrors.CategoryValidation, "failed to resolve path").
		Fatal().
		WithContext(logfields.KeyPath, path).
		Build()
}

func (b *BuildCmd) runOnce(ctx context.Context, cfg *config.Config, svc build.BuildService) error {
	if b.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.Timeout)
		defer cancel()
	}

	_, err := svc.Run(ctx, build.BuildRequest{
		Root:      cfg.Source.Root,
		Output:    cfg.Output.Path,
		CallToken: cfg.Extract.CallToken,
		Mode:      build.ModeOneShot,
	})
	return err
}

// runWatch polls until ctx ends, then waits for the in-flight build.
func runWatch(ctx context.Context, cfg *config.Config, rt *buildRuntime) error {
	ctrl := rebuild.NewController(rebuild.Options{
		Root:      cfg.Source.Root,
		Output:    cfg.Output.Path,
		CallToken: cfg.Extract.CallToken,
		Interval:  cfg.Watch.PollInterval(),
	}, scan.NewScanner(), rt.service).WithRecorder(rt.recorder)

	if err := ctrl.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	slog.Info("Shutdown requested, waiting for in-flight build", logfields.Root(cfg.Source.Root))

	// Shutdown is deferred until the running build finishes, however long it takes.
	if err := ctrl.Stop(context.Background()); err != nil {
		return err
	}
	slog.Info("Watcher stopped")
	return nil
}
