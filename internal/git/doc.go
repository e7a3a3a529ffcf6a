// Package git reads the revision of the work tree a source root lives in, so
// that a bundle can be traced back to the commit it was built from.
package git
