// Package workspace manages the staging directory a bundle is written into
// before it replaces the previous output.
//
// The directory is created next to the output target so that promoting the
// staged file is a rename on the same filesystem. Cleanup removes the
// directory and anything left in it, which is how an aborted build discards
// its partial output.
package workspace
