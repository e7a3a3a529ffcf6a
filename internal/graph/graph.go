// Package graph holds the module dependency graph of a single pipeline run.
package graph

// Node is one logical module id in the graph.
type Node struct {
	ID string
	// Deps lists referenced ids in textual order. Duplicates are kept.
	Deps []string
	// Flushed is set once the node's chunk has been written.
	Flushed bool

	refs    []string
	refSeen map[string]struct{}
}

// Refs returns the ids referring to this node, in first-seen order.
func (n *Node) Refs() []string {
	return n.refs
}

// IsAnchor reports whether no other node refers to n.
func (n *Node) IsAnchor() bool {
	return len(n.refs) == 0
}

func (n *Node) addRef(from string) {
	if _, ok := n.refSeen[from]; ok {
		return
	}
	n.refSeen[from] = struct{}{}
	n.refs = append(n.refs, from)
}

// Graph is a dependency graph with forward and reverse edges that
// remembers the order in which ids were first seen.
type Graph struct {
	nodes map[string]*Node
	order []string
}

// New returns a graph with no nodes or edges.
func New() *Graph {
	return &Graph{nodes: make(map[string]*Node)}
}

// AddNode registers id and returns its node. Duplicate calls return the
// existing node and keep its original position.
func (g *Graph) AddNode(id string) *Node {
	if n, ok := g.nodes[id]; ok {
		return n
	}
	n := &Node{ID: id, refSeen: make(map[string]struct{})}
	g.nodes[id] = n
	g.order = append(g.order, id)
	return n
}

// AddEdge records that "from" references "to". Missing nodes are created
// implicitly, "from" first. Duplicate edges are appended again.
func (g *Graph) AddEdge(from, to string) {
	src := g.AddNode(from)
	dst := g.AddNode(to)
	src.Deps = append(src.Deps, to)
	dst.addRef(from)
}

// Node returns the node for id, or nil.
func (g *Graph) Node(id string) *Node {
	return g.nodes[id]
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.order)
}

// Nodes returns all nodes in insertion order.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, len(g.order))
	for i, id := range g.order {
		out[i] = g.nodes[id]
	}
	return out
}

// Anchors returns the nodes nothing refers to, in insertion order.
func (g *Graph) Anchors() []*Node {
	var out []*Node
	for _, id := range g.order {
		if n := g.nodes[id]; n.IsAnchor() {
			out = append(out, n)
		}
	}
	return out
}

// Dangling returns the ids for which hasChunk reports false, in insertion order.
func (g *Graph) Dangling(hasChunk func(id string) bool) []string {
	var out []string
	for _, id := range g.order {
		if !hasChunk(id) {
			out = append(out, id)
		}
	}
	return out
}
