package sink

import (
	"context"
	"time"

	"git.home.luguber.info/inful/requireconcat/internal/extract"
	ferrors "git.home.luguber.info/inful/requireconcat/internal/foundation/errors"
)

var (
	// ErrWriteFailed indicates a preamble or chunk write failed.
	ErrWriteFailed = ferrors.WriteError("failed to write bundle").Build()

	// ErrCommitFailed indicates the staged bundle could not replace the target.
	ErrCommitFailed = ferrors.WriteError("failed to commit bundle").Build()

	// ErrStageFailed indicates the staging area could not be prepared.
	ErrStageFailed = ferrors.WriteError("failed to prepare bundle staging").Build()
)

// Sink receives one bundle. Implementations are used for a single run:
// WritePreamble, then WriteChunk per module, then exactly one of Commit or Abort.
type Sink interface {
	WritePreamble(ctx context.Context, p Preamble) error
	// WriteChunk returns only after the chunk has been written.
	WriteChunk(ctx context.Context, id, chunk string) error
	Commit() error
	Abort() error
	// Target describes the destination for logs.
	Target() string
}

// Preamble carries the build marker fields.
type Preamble struct {
	BuiltAt  time.Time
	BuildID  string
	Revision string // Optional source revision
}

// Render returns the marker comment followed by the registry bootstrap.
func (p Preamble) Render() string {
	marker := "/* require-concat build " + p.BuiltAt.UTC().Format(time.RFC3339) + " id=" + p.BuildID
	if p.Revision != "" {
		marker += " rev=" + p.Revision
	}
	marker += " */\n"

	return marker +
		extract.Registry + " = {};\n" +
		"function require(path) {return " + extract.Registry + "[path].exports;};\n\n"
}

func writeFailure(sentinel *ferrors.ClassifiedError, cause error, target string) error {
	return ferrors.WrapError(cause, sentinel.Category(), sentinel.Message()).
		WithRetry(sentinel.RetryStrategy()).
		WithContext("output", target).
		Build()
}
