package heap

import (
	"github.com/dshills/dapviz/internal/debug/program"
)

// DefaultMaxDepth bounds Walk when no depth is configured.
const DefaultMaxDepth = 64

// Edge connects a heap object to a heap object it references.
type Edge struct {
	Parent program.ReferenceID
	Child  program.ReferenceID
}

// Graph is the heap graph of one snapshot. It is built once by Build and
// never modified; every accessor returns a copy.
type Graph struct {
	children map[program.ReferenceID][]program.Variable
	roots    []program.Variable
	locals   []program.Variable
	nodes    []program.ReferenceID
	edges    []Edge
	maxDepth int
}

// BuildOption configures Build.
type BuildOption func(*Graph)

// WithMaxDepth bounds how deep Walk descends from a root.
func WithMaxDepth(depth int) BuildOption {
	return func(g *Graph) {
		if depth > 0 {
			g.maxDepth = depth
		}
	}
}

// Build groups the flattened variables of one thread by parent.
// Variables keep their input order within every group.
func Build(vars []program.Variable, opts ...BuildOption) *Graph {
	g := &Graph{
		children: make(map[program.ReferenceID][]program.Variable),
		maxDepth: DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(g)
	}

	seenNode := make(map[program.ReferenceID]bool)
	seenEdge := make(map[Edge]bool)
	addNode := func(r program.ReferenceID) {
		if r > 0 && !seenNode[r] {
			seenNode[r] = true
			g.nodes = append(g.nodes, r)
		}
	}

	for _, v := range vars {
		parent, ok := v.ParentRef()
		if !ok {
			if v.Reference > 0 {
				g.roots = append(g.roots, v)
			} else {
				g.locals = append(g.locals, v)
			}
			addNode(v.Reference)
			continue
		}

		g.children[parent] = append(g.children[parent], v)
		addNode(parent)
		addNode(v.Reference)

		if parent > 0 && v.Reference > 0 {
			e := Edge{Parent: parent, Child: v.Reference}
			if !seenEdge[e] {
				seenEdge[e] = true
				g.edges = append(g.edges, e)
			}
		}
	}

	return g
}

// Roots returns the scope-owned variables that have heap identity.
func (g *Graph) Roots() []program.Variable {
	return clone(g.roots)
}

// Locals returns the scope-owned variables without heap identity.
func (g *Graph) Locals() []program.Variable {
	return clone(g.locals)
}

// Children returns the variables whose parent is ref.
func (g *Graph) Children(ref program.ReferenceID) []program.Variable {
	return clone(g.children[ref])
}

// Partition splits the children of ref into primitive and reference children,
// keeping their order.
func (g *Graph) Partition(ref program.ReferenceID) (primitives, references []program.Variable) {
	for _, v := range g.children[ref] {
		if v.Reference > 0 {
			references = append(references, v)
		} else {
			primitives = append(primitives, v)
		}
	}
	return primitives, references
}

// Nodes returns every distinct positive reference in first-seen order.
func (g *Graph) Nodes() []program.ReferenceID {
	nodes := make([]program.ReferenceID, len(g.nodes))
	copy(nodes, g.nodes)
	return nodes
}

// Edges returns the distinct parent to child connections between heap objects.
func (g *Graph) Edges() []Edge {
	edges := make([]Edge, len(g.edges))
	copy(edges, g.edges)
	return edges
}

// MaxDepth returns the walk depth bound.
func (g *Graph) MaxDepth() int {
	return g.maxDepth
}

// Step is one node visit reported by Walk.
type Step struct {
	// Parent is the referencing object, nil for roots.
	Parent *program.Variable
	// Node is the visited variable.
	Node program.Variable
	// Depth is 0 for roots.
	Depth int
	// Revisit is set when Node's reference was already expanded elsewhere;
	// its children are not walked again.
	Revisit bool
}

// Walk visits every root and, depth first, every reference child reachable
// from it. Each (parent, child) pair is reported once and each reference is
// expanded once, so cycles terminate. Walk reports whether the depth bound
// cut the walk short.
func (g *Graph) Walk(visit func(Step)) (truncated bool) {
	expanded := make(map[program.ReferenceID]bool)
	seenEdge := make(map[Edge]bool)

	var descend func(node program.Variable, depth int)
	descend = func(node program.Variable, depth int) {
		if depth > g.maxDepth {
			if len(g.children[node.Reference]) > 0 {
				truncated = true
			}
			return
		}
		parent := node
		for _, child := range g.children[node.Reference] {
			if child.Reference <= 0 {
				continue
			}
			e := Edge{Parent: node.Reference, Child: child.Reference}
			if seenEdge[e] {
				continue
			}
			seenEdge[e] = true

			revisit := expanded[child.Reference]
			visit(Step{Parent: &parent, Node: child, Depth: depth, Revisit: revisit})
			if !revisit {
				expanded[child.Reference] = true
				descend(child, depth+1)
			}
		}
	}

	for _, root := range g.roots {
		revisit := expanded[root.Reference]
		visit(Step{Node: root, Revisit: revisit})
		if !revisit {
			expanded[root.Reference] = true
			descend(root, 1)
		}
	}
	return truncated
}

func clone(vars []program.Variable) []program.Variable {
	if len(vars) == 0 {
		return []program.Variable{}
	}
	out := make([]program.Variable, len(vars))
	copy(out, vars)
	return out
}
