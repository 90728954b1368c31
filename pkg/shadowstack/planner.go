package shadowstack

import (
	"github.com/raymyers/ralph-aot/pkg/cfg"
	"github.com/raymyers/ralph-aot/pkg/ir"
)

// Slot contents that are not variables
const (
	slotEmpty         ir.Var = -1
	slotUninitialized ir.Var = -2
)

// slotState is the compile-time view of what every slot holds
type slotState []ir.Var

func (s slotState) clone() slotState {
	return append(slotState(nil), s...)
}

// simulation holds the slot states around every safepoint. Blocks that
// are unreachable from the entry have nil states.
type simulation struct {
	before [][]slotState // per block, per safepoint
	after  [][]slotState
	exit   []slotState // per block, state after its last safepoint
}

// step is a pending dominator-tree node with the state it inherits
type step struct {
	node   int
	states slotState
}

// simulate walks the dominator tree from the entry block. Each block
// starts from the exit state of its immediate dominator; every safepoint
// claims the slots of its live variables and empties slots whose occupant
// is no longer live or that were never written. The walk uses an explicit
// stack.
func simulate(method string, domGraph *cfg.Graph, safepoints [][]Safepoint, colors []int, size int) (*simulation, error) {
	n := len(safepoints)
	sim := &simulation{
		before: make([][]slotState, n),
		after:  make([][]slotState, n),
		exit:   make([]slotState, n),
	}
	if n == 0 {
		return sim, nil
	}

	start := make(slotState, size)
	for i := range start {
		start[i] = slotUninitialized
	}
	stack := []step{{node: 0, states: start}}

	for len(stack) > 0 {
		top := len(stack) - 1
		s := stack[top]
		stack = stack[:top]

		previous := s.states
		for _, sp := range safepoints[s.node] {
			states := previous.clone()
			for _, v := range sp.Live {
				slot := colors[v]
				if slot < 0 || slot >= size {
					return nil, invariantf(method, v, "live at b%d[%d] but has slot %d (frame size %d)",
						sp.Block, sp.Instruction, slot, size)
				}
				states[slot] = v
			}
			// The collector scans every slot, so no slot may stay
			// uninitialized past the first safepoint
			for slot, occupant := range states {
				if occupant == slotUninitialized || (occupant >= 0 && !contains(sp.Live, occupant)) {
					states[slot] = slotEmpty
				}
			}
			sim.before[s.node] = append(sim.before[s.node], previous)
			sim.after[s.node] = append(sim.after[s.node], states)
			previous = states
		}
		sim.exit[s.node] = previous

		// Children are pushed in reverse so they pop in ascending order
		children := domGraph.OutgoingEdges(s.node)
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, step{node: children[i], states: previous.clone()})
		}
	}
	return sim, nil
}

// compareStates derives the slot actions that turn old into updated. A
// slot whose new occupant is auto-spilled already holds its value, so its
// action is forced to a no-op.
func compareStates(old, updated slotState, autoSpilled []bool) []SlotUpdate {
	var actions []SlotUpdate
	for slot := range updated {
		occupant := updated[slot]
		if occupant == old[slot] {
			continue
		}
		switch {
		case occupant >= 0:
			if autoSpilled[occupant] {
				continue
			}
			actions = append(actions, SlotUpdate{Slot: slot, Kind: ActionStore, Var: occupant})
		case occupant == slotEmpty:
			actions = append(actions, SlotUpdate{Slot: slot, Kind: ActionClear, Var: NoVar})
		}
	}
	return actions
}

// buildRecords produces one record per safepoint from the simulation
func buildRecords(safepoints [][]Safepoint, sim *simulation, autoSpilled []bool) [][]UpdateRecord {
	records := make([][]UpdateRecord, len(safepoints))
	for b, sps := range safepoints {
		records[b] = make([]UpdateRecord, len(sps))
		reachable := sim != nil && sim.exit[b] != nil
		for i, sp := range sps {
			rec := UpdateRecord{Block: sp.Block, Instruction: sp.Instruction}
			if reachable {
				rec.Actions = compareStates(sim.before[b][i], sim.after[b][i], autoSpilled)
			}
			records[b][i] = rec
		}
	}
	return records
}
