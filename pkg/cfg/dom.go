// Dominator tree construction using the iterative algorithm of
// Cooper, Harvey and Kennedy ("A Simple, Fast Dominance Algorithm").

package cfg

// DominatorTree records the immediate dominator of every node
type DominatorTree struct {
	idom     []int // -1 for the entry and unreachable nodes
	children [][]int
	entry    int
}

// BuildDominatorTree computes the dominator tree of g rooted at node 0
func BuildDominatorTree(g *Graph) *DominatorTree {
	return BuildDominatorTreeFrom(g, 0)
}

// BuildDominatorTreeFrom computes the dominator tree of g rooted at entry
func BuildDominatorTreeFrom(g *Graph, entry int) *DominatorTree {
	n := g.Size()
	t := &DominatorTree{
		idom:     make([]int, n),
		children: make([][]int, n),
		entry:    entry,
	}
	for i := range t.idom {
		t.idom[i] = -1
	}
	if n == 0 {
		return t
	}

	po := Postorder(g, entry)
	postnum := make([]int, n)
	for i := range postnum {
		postnum[i] = -1
	}
	for i, b := range po {
		postnum[b] = i
	}

	// Work on the reverse postorder; idom of the entry is itself while
	// iterating so that intersect terminates.
	idom := make([]int, n)
	for i := range idom {
		idom[i] = -1
	}
	idom[entry] = entry

	changed := true
	for changed {
		changed = false
		for i := len(po) - 2; i >= 0; i-- {
			b := po[i]
			newIdom := -1
			for _, p := range g.preds[b] {
				if idom[p] < 0 {
					continue
				}
				if newIdom < 0 {
					newIdom = p
					continue
				}
				newIdom = intersect(p, newIdom, postnum, idom)
			}
			if newIdom >= 0 && idom[b] != newIdom {
				idom[b] = newIdom
				changed = true
			}
		}
	}

	for b, d := range idom {
		if b == entry || d < 0 {
			continue
		}
		t.idom[b] = d
		t.children[d] = append(t.children[d], b)
	}
	for i := range t.children {
		t.children[i] = sortedCopy(t.children[i])
	}
	return t
}

// intersect finds the closest common dominator of b and c.
// It requires a postorder numbering of all the nodes.
func intersect(b, c int, postnum []int, idom []int) int {
	for b != c {
		if postnum[b] < postnum[c] {
			b = idom[b]
		} else {
			c = idom[c]
		}
	}
	return b
}

// ImmediateDominator returns the immediate dominator of n, or -1
func (t *DominatorTree) ImmediateDominator(n int) int {
	return t.idom[n]
}

// Children returns the nodes immediately dominated by n in ascending order
func (t *DominatorTree) Children(n int) []int {
	return t.children[n]
}

// Entry returns the root of the tree
func (t *DominatorTree) Entry() int {
	return t.entry
}

// Reachable reports whether n is part of the tree
func (t *DominatorTree) Reachable(n int) bool {
	return n == t.entry || t.idom[n] >= 0
}

// Dominates reports whether a dominates b (every node dominates itself)
func (t *DominatorTree) Dominates(a, b int) bool {
	if !t.Reachable(b) {
		return false
	}
	for b >= 0 {
		if a == b {
			return true
		}
		b = t.idom[b]
	}
	return false
}

// DominatorGraph returns the tree as a graph with parent -> child edges
func DominatorGraph(t *DominatorTree) *Graph {
	g := NewGraph(len(t.idom))
	for parent, kids := range t.children {
		for _, c := range kids {
			g.AddEdge(parent, c)
		}
	}
	return g
}
