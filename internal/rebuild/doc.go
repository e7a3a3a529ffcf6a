// Package rebuild re-runs the bundle pipeline when the source tree changes.
//
// A Controller polls on a fixed interval. Each tick scans the tree and
// compares the id → modification time map against the snapshot kept from the
// previous tick; only a new id or a changed timestamp starts a run. Deleting a
// file alone does not. At most one tick is in flight at a time.
package rebuild
