package coloring

import "container/heap"

// Colorize colors g with as few colors as the simplify/select heuristic
// finds. It returns one entry per node; nodes not in the graph are
// Uncolored. Colorize does not modify g and keeps no state between calls.
func Colorize(g *Graph) []int {
	n := g.Size()
	colors := make([]int, n)
	for i := range colors {
		colors[i] = Uncolored
	}

	nodes := g.Nodes()
	degree := make(map[int]int, len(nodes))
	removed := make(map[int]bool, len(nodes))
	queue := make(degreeQueue, 0, len(nodes))
	for _, v := range nodes {
		degree[v] = g.Degree(v)
		queue = append(queue, entry{node: v, degree: degree[v]})
	}
	heap.Init(&queue)

	// Simplify: repeatedly remove the node of lowest remaining degree.
	// Ties break toward the lower index so the result is deterministic.
	// Entries whose degree has since dropped are stale and skipped.
	selectStack := make([]int, 0, len(nodes))
	for queue.Len() > 0 {
		e := heap.Pop(&queue).(entry)
		if removed[e.node] || e.degree != degree[e.node] {
			continue
		}
		removed[e.node] = true
		selectStack = append(selectStack, e.node)
		for _, nb := range g.Neighbors(e.node) {
			if !removed[nb] {
				degree[nb]--
				heap.Push(&queue, entry{node: nb, degree: degree[nb]})
			}
		}
	}

	// Select: pop nodes and give each the first color its neighbors do
	// not use, trying the colors of preferred partners first.
	used := make(map[int]bool)
	for len(selectStack) > 0 {
		top := len(selectStack) - 1
		v := selectStack[top]
		selectStack = selectStack[:top]

		clear(used)
		for _, nb := range g.Neighbors(v) {
			if c := colors[nb]; c != Uncolored {
				used[c] = true
			}
		}

		color := Uncolored
		for _, p := range g.Preferences(v) {
			if c := colors[p]; c != Uncolored && !used[c] {
				color = c
				break
			}
		}
		if color == Uncolored {
			for c := 0; ; c++ {
				if !used[c] {
					color = c
					break
				}
			}
		}
		colors[v] = color
	}
	return colors
}

// MaxColor returns the highest color in colors, or Uncolored if none
func MaxColor(colors []int) int {
	highest := Uncolored
	for _, c := range colors {
		if c > highest {
			highest = c
		}
	}
	return highest
}

type entry struct {
	node, degree int
}

// degreeQueue is a min-heap ordered by degree, then node index
type degreeQueue []entry

func (q degreeQueue) Len() int { return len(q) }

func (q degreeQueue) Less(i, j int) bool {
	if q[i].degree != q[j].degree {
		return q[i].degree < q[j].degree
	}
	return q[i].node < q[j].node
}

func (q degreeQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *degreeQueue) Push(x any) { *q = append(*q, x.(entry)) }

func (q *degreeQueue) Pop() any {
	old := *q
	e := old[len(old)-1]
	*q = old[:len(old)-1]
	return e
}
