// Package errors provides the classified error primitives used across requireconcat.
//
// Every failure that crosses a package boundary is a ClassifiedError carrying a
// category (scan, cycle, write, config, ...), a severity, a retry hint and a
// small structured context. Pipeline runs inspect the category to decide how a
// failure is reported; the CLI adapter maps it to a process exit code.
//
// Example usage:
//
//	err := errors.ScanError("read directory failed").
//		WithCause(ioErr).
//		WithContext("path", dir).
//		Build()
package errors
