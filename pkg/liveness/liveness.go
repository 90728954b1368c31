// Package liveness computes per-block variable liveness for a program.
//
// The analysis is a classic backward dataflow problem solved to a fixpoint:
//
//	LiveIn(b)  = Gen(b) ∪ (LiveOut(b) - Kill(b))
//	LiveOut(b) = ∪ LiveIn(s) for s in succ(b)  ∪  PhiUses(b)
//
// Phi receivers and a handler's exception variable are defined on block
// entry. A phi input is used at the end of the predecessor it flows from,
// not in the phi's own block.
package liveness

import (
	"github.com/bits-and-blooms/bitset"

	"github.com/raymyers/ralph-aot/pkg/cfg"
	"github.com/raymyers/ralph-aot/pkg/ir"
)

// Info holds the liveness result for one program
type Info struct {
	liveIn  []*bitset.BitSet
	liveOut []*bitset.BitSet
	size    uint
}

// LiveIn returns the variables live on entry to block b
func (l *Info) LiveIn(b int) *bitset.BitSet {
	return l.liveIn[b]
}

// LiveOut returns the variables live on exit from block b, including the
// phi inputs that b passes along its outgoing edges
func (l *Info) LiveOut(b int) *bitset.BitSet {
	return l.liveOut[b]
}

// VariableCount returns the width of the sets
func (l *Info) VariableCount() int {
	return int(l.size)
}

// blockSummary is Gen/Kill for a block plus the phi inputs it supplies
type blockSummary struct {
	gen     *bitset.BitSet
	kill    *bitset.BitSet
	phiUses *bitset.BitSet
}

// Analyze computes liveness for prog over its control-flow graph g
func Analyze(prog *ir.Program, g *cfg.Graph) *Info {
	n := prog.BlockCount()
	size := uint(prog.VariableCount())
	info := &Info{
		liveIn:  make([]*bitset.BitSet, n),
		liveOut: make([]*bitset.BitSet, n),
		size:    size,
	}
	if n == 0 {
		return info
	}

	summaries := make([]blockSummary, n)
	for i := range summaries {
		summaries[i] = blockSummary{
			gen:     bitset.New(size),
			kill:    bitset.New(size),
			phiUses: bitset.New(size),
		}
		info.liveIn[i] = bitset.New(size)
		info.liveOut[i] = bitset.New(size)
	}

	for _, b := range prog.Blocks {
		s := summaries[b.Index]
		for i := len(b.Instructions) - 1; i >= 0; i-- {
			instr := b.Instructions[i]
			for _, d := range ir.Defs(instr) {
				s.gen.Clear(uint(d))
				s.kill.Set(uint(d))
			}
			for _, u := range ir.Uses(instr) {
				s.gen.Set(uint(u))
			}
		}
		for _, phi := range b.Phis {
			s.gen.Clear(uint(phi.Receiver))
			s.kill.Set(uint(phi.Receiver))
			for _, inc := range phi.Incomings {
				if inc.Source >= 0 && inc.Source < n {
					summaries[inc.Source].phiUses.Set(uint(inc.Value))
				}
			}
		}
		if b.ExceptionVariable != nil {
			s.gen.Clear(uint(*b.ExceptionVariable))
			s.kill.Set(uint(*b.ExceptionVariable))
		}
	}

	// Iterate in postorder (successors first) until nothing changes.
	// Unreachable blocks are appended so every block gets a result.
	order := cfg.Postorder(g, 0)
	visited := make([]bool, n)
	for _, b := range order {
		visited[b] = true
	}
	for b := 0; b < n; b++ {
		if !visited[b] {
			order = append(order, b)
		}
	}

	changed := true
	for changed {
		changed = false
		for _, b := range order {
			s := summaries[b]
			out := s.phiUses.Clone()
			for _, succ := range g.OutgoingEdges(b) {
				out.InPlaceUnion(info.liveIn[succ])
			}
			in := out.Difference(s.kill)
			in.InPlaceUnion(s.gen)
			if !in.Equal(info.liveIn[b]) || !out.Equal(info.liveOut[b]) {
				info.liveIn[b] = in
				info.liveOut[b] = out
				changed = true
			}
		}
	}
	return info
}

// Members returns the variables of a set in ascending order
func Members(s *bitset.BitSet) []ir.Var {
	vars := make([]ir.Var, 0, s.Count())
	for i, ok := s.NextSet(0); ok; i, ok = s.NextSet(i + 1) {
		vars = append(vars, ir.Var(i))
	}
	return vars
}
