// Package cfg provides graph utilities over the program model: the
// control-flow graph, postorder numbering and the dominator tree.
package cfg

import (
	"sort"

	"github.com/raymyers/ralph-aot/pkg/ir"
)

// Graph is a directed graph over dense integer nodes
type Graph struct {
	succs [][]int
	preds [][]int
}

// NewGraph creates a graph with n nodes and no edges
func NewGraph(n int) *Graph {
	return &Graph{
		succs: make([][]int, n),
		preds: make([][]int, n),
	}
}

// Size returns the number of nodes
func (g *Graph) Size() int {
	return len(g.succs)
}

// AddEdge adds an edge from -> to, ignoring duplicates
func (g *Graph) AddEdge(from, to int) {
	for _, s := range g.succs[from] {
		if s == to {
			return
		}
	}
	g.succs[from] = append(g.succs[from], to)
	g.preds[to] = append(g.preds[to], from)
}

// OutgoingEdges returns the successors of a node
func (g *Graph) OutgoingEdges(n int) []int {
	return g.succs[n]
}

// IncomingEdges returns the predecessors of a node
func (g *Graph) IncomingEdges(n int) []int {
	return g.preds[n]
}

// Build constructs the control-flow graph of a program. Besides the
// terminator's targets, every block protected by a try-catch has an edge to
// its handler.
func Build(prog *ir.Program) *Graph {
	g := NewGraph(prog.BlockCount())
	for _, b := range prog.Blocks {
		if term := b.Terminator(); term != nil {
			for _, s := range ir.Successors(term) {
				g.AddEdge(b.Index, s)
			}
		}
		for _, tc := range b.TryCatches {
			g.AddEdge(b.Index, tc.Handler)
		}
	}
	return g
}

// blockAndIndex is a DFS stack entry: a node and how many of its successor
// edges have been explored
type blockAndIndex struct {
	node  int
	index int
}

// Postorder returns the nodes reachable from entry in DFS postorder.
// The walk uses an explicit stack so deep graphs do not recurse.
func Postorder(g *Graph, entry int) []int {
	seen := make([]bool, g.Size())
	order := make([]int, 0, g.Size())

	s := make([]blockAndIndex, 0, 32)
	s = append(s, blockAndIndex{node: entry})
	seen[entry] = true
	for len(s) > 0 {
		tos := len(s) - 1
		x := s[tos]
		if i := x.index; i < len(g.succs[x.node]) {
			s[tos].index++
			next := g.succs[x.node][i]
			if !seen[next] {
				seen[next] = true
				s = append(s, blockAndIndex{node: next})
			}
			continue
		}
		s = s[:tos]
		order = append(order, x.node)
	}
	return order
}

// sortedCopy returns a sorted copy of a node list
func sortedCopy(nodes []int) []int {
	c := append([]int(nil), nodes...)
	sort.Ints(c)
	return c
}
