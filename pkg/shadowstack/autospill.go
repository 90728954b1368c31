package shadowstack

import (
	"github.com/raymyers/ralph-aot/pkg/coloring"
	"github.com/raymyers/ralph-aot/pkg/ir"
)

// phiInput is one occurrence of a variable among the inputs of a phi
type phiInput struct {
	phi      *ir.Phi
	incoming ir.Incoming
}

// propagateAutoSpill marks phi receivers whose every input is already
// resident in the receiver's slot when control reaches the phi. Such a
// receiver never needs a store of its own.
//
// An input counts once per incoming edge, and only when it has the
// receiver's color and the exit state of the edge's source block holds it
// in that slot. A receiver that becomes auto-spilled is itself spilled and
// is fed back into the worklist so chains of phis resolve.
func propagateAutoSpill(prog *ir.Program, spilled []bool, colors []int, exit []slotState) []bool {
	n := len(spilled)
	autoSpilled := make([]bool, n)
	consumers := make([][]phiInput, n)
	pending := make([]int, n)

	for _, b := range prog.Blocks {
		for _, phi := range b.Phis {
			if len(phi.Incomings) == 0 {
				continue
			}
			pending[phi.Receiver] = len(phi.Incomings)
			for _, inc := range phi.Incomings {
				consumers[inc.Value] = append(consumers[inc.Value], phiInput{phi: phi, incoming: inc})
			}
		}
	}

	marked := append([]bool(nil), spilled...)
	worklist := make([]ir.Var, 0, n)
	for v := n - 1; v >= 0; v-- {
		if marked[v] {
			worklist = append(worklist, ir.Var(v))
		}
	}

	for len(worklist) > 0 {
		top := len(worklist) - 1
		v := worklist[top]
		worklist = worklist[:top]

		for _, in := range consumers[v] {
			receiver := in.phi.Receiver
			if !resident(receiver, in.incoming, colors, exit) {
				continue
			}
			pending[receiver]--
			if pending[receiver] != 0 || autoSpilled[receiver] {
				continue
			}
			autoSpilled[receiver] = true
			if !marked[receiver] {
				marked[receiver] = true
				worklist = append(worklist, receiver)
			}
		}
	}
	return autoSpilled
}

// resident reports whether inc's value occupies the receiver's slot at the
// end of the incoming edge's source block
func resident(receiver ir.Var, inc ir.Incoming, colors []int, exit []slotState) bool {
	slot := colors[receiver]
	if slot == coloring.Uncolored {
		return true // the receiver never needs a slot
	}
	if colors[inc.Value] != slot {
		return false
	}
	if inc.Source < 0 || inc.Source >= len(exit) {
		return false
	}
	states := exit[inc.Source]
	if states == nil {
		return true // the edge is never taken
	}
	return states[slot] == inc.Value
}
