package commands

import (
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/requireconcat/internal/config"
	"git.home.luguber.info/inful/requireconcat/internal/observability"
)

// Global carries process-wide handles into subcommands.
type Global struct {
	Logger *slog.Logger
	Stdout io.Writer // Destination for command output; the bundle itself when no output file is set
}

func (g *Global) stdout() io.Writer {
	if g == nil || g.Stdout == nil {
		return os.Stdout
	}
	return g.Stdout
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path (optional when left at the default)" default:"requireconcat.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build   BuildCmd   `cmd:"" help:"Bundle the source tree once, or keep rebuilding it with --watch"`
	History HistoryCmd `cmd:"" help:"List builds recorded in the history store"`
	Info    VersionCmd `cmd:"" name:"version" help:"Print version information"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(observability.NewLogger(os.Stderr, level, string(config.LogFormatText)))
	return nil
}

// LoadConfig reads the configuration file. The default file may be absent;
// an explicitly named one may not.
func (c *CLI) LoadConfig() (*config.Config, error) {
	path := c.Config
	if path == "" {
		path = config.DefaultConfigFile
	}
	cfg, err := config.Load(path, path == config.DefaultConfigFile)
	if err != nil {
		return nil, err
	}
	c.configureLogging(cfg)
	return cfg, nil
}

// configureLogging replaces the bootstrap logger with the configured one.
// -v always wins over logging.level.
func (c *CLI) configureLogging(cfg *config.Config) {
	level := cfg.Logging.Level.SlogLevel()
	if c.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(observability.NewLogger(os.Stderr, level, string(cfg.Logging.Format)))
}
