// Package assemble orders module chunks so that every module is written after
// everything it references.
package assemble

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/requireconcat/internal/graph"
	"git.home.luguber.info/inful/requireconcat/internal/logfields"
)

// Emitter writes one chunk. It must not return before the write completes.
type Emitter func(ctx context.Context, id, chunk string) error

// Result summarizes one assembly.
type Result struct {
	Emitted  []string // Ids in emission order
	Dangling []string // Referenced ids without a chunk, in discovery order
}

// Assembler performs a depth-first post-order walk over one graph. It is not
// reusable: create one per pipeline run.
type Assembler struct {
	graph  *graph.Graph
	chunks map[string]string
	emit   Emitter

	visited map[string]bool
	onStack map[string]int // id -> position in stack
	stack   []string
	result  Result
}

// New creates an assembler for g. chunks maps ids to rendered code; ids
// without an entry are dangling.
func New(g *graph.Graph, chunks map[string]string, emit Emitter) *Assembler {
	return &Assembler{
		graph:   g,
		chunks:  chunks,
		emit:    emit,
		visited: make(map[string]bool, g.Len()),
		onStack: make(map[string]int),
	}
}

// Run walks every anchor in insertion order, then every node the anchors did
// not reach, so cycles with no anchor are reported too. The first cycle or
// emitter error stops the walk.
func (a *Assembler) Run(ctx context.Context) (Result, error) {
	for _, n := range a.graph.Anchors() {
		if a.visited[n.ID] {
			continue
		}
		if err := a.visit(ctx, n); err != nil {
			return a.result, err
		}
	}
	for _, n := range a.graph.Nodes() {
		if a.visited[n.ID] {
			continue
		}
		if err := a.visit(ctx, n); err != nil {
			return a.result, err
		}
	}

	a.result.Dangling = a.graph.Dangling(func(id string) bool {
		_, ok := a.chunks[id]
		return ok
	})
	for _, id := range a.result.Dangling {
		slog.Debug("Skipping module without source",
			logfields.ModuleID(id),
			logfields.ReferencedBy(a.graph.Node(id).Refs()))
	}
	return a.result, nil
}

func (a *Assembler) visit(ctx context.Context, n *graph.Node) error {
	a.visited[n.ID] = true
	a.onStack[n.ID] = len(a.stack)
	a.stack = append(a.stack, n.ID)

	for _, dep := range n.Deps {
		if pos, ok := a.onStack[dep]; ok {
			path := append(append([]string(nil), a.stack[pos:]...), dep)
			return newCycleError(n.ID, dep, path)
		}
		if a.visited[dep] {
			continue
		}
		if err := a.visit(ctx, a.graph.Node(dep)); err != nil {
			return err
		}
	}

	a.stack = a.stack[:len(a.stack)-1]
	delete(a.onStack, n.ID)

	chunk, ok := a.chunks[n.ID]
	if n.Flushed || !ok {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := a.emit(ctx, n.ID, chunk); err != nil {
		return err
	}
	n.Flushed = true
	a.result.Emitted = append(a.result.Emitted, n.ID)
	return nil
}

// Assemble is a convenience for New(g, chunks, emit).Run(ctx).
func Assemble(ctx context.Context, g *graph.Graph, chunks map[string]string, emit Emitter) (Result, error) {
	return New(g, chunks, emit).Run(ctx)
}
