// Package scan walks a source tree and produces one Record per regular file,
// keyed by its logical module id.
//
// A logical id is the forward-slash path of the file relative to the scan
// root with its extension removed. A file named "index" stands for its
// directory, so "a/index.js" and the directory "a" share the id "a"; the
// root's own index becomes the empty id, the implicit main module.
//
// Sibling entries are stat'ed and sibling directories walked concurrently.
// The first I/O error fails the whole scan and any results gathered by work
// still in flight are discarded.
package scan
