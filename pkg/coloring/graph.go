// Package coloring assigns integer colors to the nodes of an undirected
// interference graph so that no two adjacent nodes share a color.
package coloring

import (
	"slices"

	"github.com/bits-and-blooms/bitset"
)

// Uncolored marks nodes that are not part of the graph
const Uncolored = -1

// Graph is an undirected interference graph over dense node indices.
// Preference edges connect nodes that should share a color when they do
// not interfere (for example a phi receiver and its inputs). Adjacency is
// kept per node that has edges, as sorted neighbor lists.
type Graph struct {
	size        int
	present     *bitset.BitSet
	edges       map[int][]int
	preferences map[int][]int
}

// NewGraph creates an empty graph with room for n nodes
func NewGraph(n int) *Graph {
	return &Graph{
		size:        n,
		present:     bitset.New(uint(n)),
		edges:       make(map[int][]int),
		preferences: make(map[int][]int),
	}
}

// Size returns the capacity of the graph
func (g *Graph) Size() int {
	return g.size
}

// AddNode adds a node to the graph
func (g *Graph) AddNode(n int) {
	g.present.Set(uint(n))
}

// HasNode reports whether n was added
func (g *Graph) HasNode(n int) bool {
	return g.present.Test(uint(n))
}

// AddEdge adds an interference edge between two nodes
func (g *Graph) AddEdge(a, b int) {
	if a == b {
		return // No self-edges
	}
	g.AddNode(a)
	g.AddNode(b)
	link(g.edges, a, b)
	link(g.edges, b, a)
}

// AddPreference adds a preference edge between two nodes. Preferences do
// not add nodes: a node only gets a color if it interferes or was added.
func (g *Graph) AddPreference(a, b int) {
	if a == b {
		return
	}
	link(g.preferences, a, b)
	link(g.preferences, b, a)
}

// HasEdge returns true if there is an interference edge
func (g *Graph) HasEdge(a, b int) bool {
	_, found := slices.BinarySearch(g.edges[a], b)
	return found
}

// Degree returns the number of neighbors of a node
func (g *Graph) Degree(n int) int {
	return len(g.edges[n])
}

// Neighbors returns the interfering neighbors of a node in ascending
// order. The result must not be modified.
func (g *Graph) Neighbors(n int) []int {
	return g.edges[n]
}

// Preferences returns the preferred partners of a node in ascending
// order. The result must not be modified.
func (g *Graph) Preferences(n int) []int {
	return g.preferences[n]
}

// Nodes returns the nodes of the graph in ascending order
func (g *Graph) Nodes() []int {
	return members(g.present)
}

// link inserts b into the sorted list of a
func link(adj map[int][]int, a, b int) {
	list := adj[a]
	i, found := slices.BinarySearch(list, b)
	if !found {
		adj[a] = slices.Insert(list, i, b)
	}
}

func members(s *bitset.BitSet) []int {
	out := make([]int, 0, s.Count())
	for i, ok := s.NextSet(0); ok; i, ok = s.NextSet(i + 1) {
		out = append(out, int(i))
	}
	return out
}
