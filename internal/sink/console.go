package sink

import (
	"context"
	"io"
	"os"
)

// ConsoleSink streams the bundle to a writer as it is assembled. It cannot
// roll back: Commit and Abort do nothing.
type ConsoleSink struct {
	w    io.Writer
	name string
}

// NewConsoleSink creates a sink writing to w. A nil w selects stdout.
func NewConsoleSink(w io.Writer) *ConsoleSink {
	if w == nil {
		return &ConsoleSink{w: os.Stdout, name: "stdout"}
	}
	return &ConsoleSink{w: w, name: "console"}
}

func (s *ConsoleSink) WritePreamble(_ context.Context, p Preamble) error {
	if _, err := io.WriteString(s.w, p.Render()); err != nil {
		return writeFailure(ErrWriteFailed, err, s.name)
	}
	return nil
}

func (s *ConsoleSink) WriteChunk(_ context.Context, _ string, chunk string) error {
	if _, err := io.WriteString(s.w, chunk+"\n"); err != nil {
		return writeFailure(ErrWriteFailed, err, s.name)
	}
	return nil
}

func (s *ConsoleSink) Commit() error { return nil }

func (s *ConsoleSink) Abort() error { return nil }

func (s *ConsoleSink) Target() string { return s.name }
