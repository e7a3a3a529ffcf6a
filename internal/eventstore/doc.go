// Package eventstore records the history of pipeline runs in SQLite and
// folds it back into per-build summaries for the history command.
package eventstore
