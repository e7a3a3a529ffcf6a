// Package build provides the canonical bundle pipeline for requireconcat.
//
// A run scans the source root, reads every module once, extracts references
// into a fresh dependency graph and streams the assembled chunks into a sink.
// Nothing but the scanned records survives a run. The CLI and the rebuild
// controller both route through BuildService.
package build
