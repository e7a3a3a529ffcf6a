package sink

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/requireconcat/internal/logfields"
	"git.home.luguber.info/inful/requireconcat/internal/workspace"
)

// FileSink appends the bundle to a staging file in a workspace next to the
// target. Commit renames the staging file over the target; Abort discards it,
// leaving any previous target untouched.
type FileSink struct {
	target string
	ws     *workspace.Manager
	staged string
	f      *os.File
	done   bool
}

// NewFileSink prepares a staging file for target.
func NewFileSink(target string) (*FileSink, error) {
	abs, err := filepath.Abs(target)
	if err != nil {
		return nil, writeFailure(ErrStageFailed, err, target)
	}

	ws := workspace.ForOutput(abs)
	if err := ws.Create(); err != nil {
		return nil, writeFailure(ErrStageFailed, err, abs)
	}
	staged, err := ws.File(filepath.Base(abs))
	if err != nil {
		_ = ws.Cleanup()
		return nil, writeFailure(ErrStageFailed, err, abs)
	}
	f, err := os.OpenFile(staged, os.O_CREATE|os.O_WRONLY|os.O_APPEND|os.O_TRUNC, 0o644)
	if err != nil {
		_ = ws.Cleanup()
		return nil, writeFailure(ErrStageFailed, err, abs)
	}

	return &FileSink{target: abs, ws: ws, staged: staged, f: f}, nil
}

func (s *FileSink) WritePreamble(_ context.Context, p Preamble) error {
	return s.write(p.Render())
}

func (s *FileSink) WriteChunk(_ context.Context, _ string, chunk string) error {
	return s.write(chunk + "\n")
}

func (s *FileSink) write(text string) error {
	if s.done {
		return writeFailure(ErrWriteFailed, os.ErrClosed, s.target)
	}
	if _, err := io.WriteString(s.f, text); err != nil {
		return writeFailure(ErrWriteFailed, err, s.target)
	}
	return nil
}

// Commit flushes the staging file and moves it over the target.
func (s *FileSink) Commit() error {
	if s.done {
		return writeFailure(ErrCommitFailed, os.ErrClosed, s.target)
	}
	s.done = true

	if err := errors.Join(s.f.Sync(), s.f.Close()); err != nil {
		_ = s.ws.Cleanup()
		return writeFailure(ErrCommitFailed, err, s.target)
	}
	if err := os.Rename(s.staged, s.target); err != nil {
		_ = s.ws.Cleanup()
		return writeFailure(ErrCommitFailed, err, s.target)
	}
	if err := s.ws.Cleanup(); err != nil {
		slog.Warn("Failed to remove staging workspace", logfields.Output(s.target), logfields.Error(err))
	}
	return nil
}

// Abort discards the staging file. It is a no-op after Commit.
func (s *FileSink) Abort() error {
	if s.done {
		return nil
	}
	s.done = true

	closeErr := s.f.Close()
	if err := s.ws.Cleanup(); err != nil {
		return writeFailure(ErrWriteFailed, err, s.target)
	}
	if closeErr != nil {
		slog.Debug("Closing aborted staging file failed", logfields.Output(s.target), logfields.Error(closeErr))
	}
	return nil
}

func (s *FileSink) Target() string { return s.target }
