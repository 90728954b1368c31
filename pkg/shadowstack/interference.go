package shadowstack

import (
	"github.com/raymyers/ralph-aot/pkg/coloring"
	"github.com/raymyers/ralph-aot/pkg/ir"
)

// buildInterference turns every safepoint live set into a clique. Phi
// receivers get preference edges to their inputs so that a phi and the
// values flowing into it tend to land in the same slot.
func buildInterference(prog *ir.Program, safepoints [][]Safepoint) *coloring.Graph {
	g := coloring.NewGraph(prog.VariableCount())
	for _, sps := range safepoints {
		for _, sp := range sps {
			for i, a := range sp.Live {
				g.AddNode(int(a))
				for _, b := range sp.Live[i+1:] {
					g.AddEdge(int(a), int(b))
				}
			}
		}
	}
	for _, b := range prog.Blocks {
		for _, phi := range b.Phis {
			for _, inc := range phi.Incomings {
				g.AddPreference(int(phi.Receiver), int(inc.Value))
			}
		}
	}
	return g
}

// spilledVariables marks every variable that appears in a safepoint live set
func spilledVariables(n int, safepoints [][]Safepoint) []bool {
	spilled := make([]bool, n)
	for _, sps := range safepoints {
		for _, sp := range sps {
			for _, v := range sp.Live {
				spilled[v] = true
			}
		}
	}
	return spilled
}

// frameSize is one more than the highest color of a spilled variable,
// or 0 when nothing is spilled
func frameSize(colors []int, spilled []bool) int {
	highest := coloring.Uncolored
	for v, c := range colors {
		if spilled[v] && c > highest {
			highest = c
		}
	}
	return highest + 1
}
