package assemble

import (
	"strings"

	ferrors "git.home.luguber.info/inful/requireconcat/internal/foundation/errors"
)

// ErrCircularDependency is the classified sentinel every cycle failure matches.
var ErrCircularDependency = ferrors.CycleError("circular dependency detected").Build()

// CycleError names the back edge that closed a cycle. Path runs from To
// through the traversal stack to From and back to To.
type CycleError struct {
	From string
	To   string
	Path []string
}

func (e *CycleError) Error() string {
	return "cycle between " + quoteID(e.From) + " and " + quoteID(e.To) + ": " + strings.Join(quoteAll(e.Path), " -> ")
}

func newCycleError(from, to string, path []string) error {
	cycle := &CycleError{From: from, To: to, Path: path}
	return ferrors.WrapError(cycle, ErrCircularDependency.Category(), ErrCircularDependency.Message()).
		WithRetry(ErrCircularDependency.RetryStrategy()).
		WithContext("from", from).
		WithContext("to", to).
		Build()
}

// quoteID keeps the empty root module visible in messages.
func quoteID(id string) string {
	return `"` + id + `"`
}

func quoteAll(ids []string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = quoteID(id)
	}
	return out
}
