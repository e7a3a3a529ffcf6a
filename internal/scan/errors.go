package scan

import (
	ferrors "git.home.luguber.info/inful/requireconcat/internal/foundation/errors"
)

var (
	// ErrRootUnreadable indicates the scan root does not exist or is not a directory.
	ErrRootUnreadable = ferrors.ScanError("source root is not a readable directory").Build()

	// ErrReadDirFailed indicates a directory listing failed during the walk.
	ErrReadDirFailed = ferrors.ScanError("failed to read source directory").Build()

	// ErrStatFailed indicates a directory entry could not be stat'ed.
	ErrStatFailed = ferrors.ScanError("failed to stat source file").Build()

	// ErrAmbiguousModuleID indicates two files normalize to the same logical id.
	ErrAmbiguousModuleID = ferrors.ScanError("two source files map to the same module id").UserAction().Build()
)

// scanFailure builds a classified error that matches sentinel via errors.Is
// while carrying the underlying cause and path.
func scanFailure(sentinel *ferrors.ClassifiedError, cause error, path string) error {
	return ferrors.WrapError(cause, sentinel.Category(), sentinel.Message()).
		WithRetry(sentinel.RetryStrategy()).
		WithContext("path", path).
		Build()
}
