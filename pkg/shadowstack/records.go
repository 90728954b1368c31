package shadowstack

import (
	"sort"

	"github.com/raymyers/ralph-aot/pkg/ir"
)

// ActionKind is what happens to one shadow-stack slot before a safepoint
type ActionKind int

const (
	ActionNone ActionKind = iota
	ActionStore
	ActionClear
)

func (k ActionKind) String() string {
	switch k {
	case ActionStore:
		return "store"
	case ActionClear:
		return "clear"
	}
	return "none"
}

// SlotUpdate is a single slot action. Var is meaningful for stores only.
type SlotUpdate struct {
	Slot int
	Kind ActionKind
	Var  ir.Var
}

// UpdateRecord lists the slot actions to perform immediately before the
// safepoint at (Block, Instruction). Actions are sparse (no-op slots are
// omitted) and sorted by slot.
type UpdateRecord struct {
	Block       int
	Instruction int
	Actions     []SlotUpdate
}

// Action returns the action for slot, ActionNone if the slot is untouched
func (r UpdateRecord) Action(slot int) SlotUpdate {
	for _, a := range r.Actions {
		if a.Slot == slot {
			return a
		}
	}
	return SlotUpdate{Slot: slot, Kind: ActionNone, Var: NoVar}
}

// Safepoint is a potential collection point together with the reference
// variables that must be discoverable while it executes
type Safepoint struct {
	Block       int
	Instruction int
	Live        []ir.Var // ascending
}

// Plan is the complete result of planning one method. It is computed
// without touching the program; Apply or a direct-emission back end
// consumes it.
type Plan struct {
	Method      string
	FrameSize   int
	Colors      []int  // per variable, coloring.Uncolored if never spilled
	Spilled     []bool // live across at least one safepoint
	AutoSpilled []bool
	// Safepoints and Records are indexed by block, each list ascending by
	// instruction index. Blocks unreachable from the entry have records
	// with no actions.
	Safepoints [][]Safepoint
	Records    [][]UpdateRecord
}

// Lookup returns the record for the safepoint at (block, instr)
func (p *Plan) Lookup(block, instr int) (UpdateRecord, bool) {
	if block < 0 || block >= len(p.Records) {
		return UpdateRecord{}, false
	}
	recs := p.Records[block]
	i := sort.Search(len(recs), func(i int) bool { return recs[i].Instruction >= instr })
	if i < len(recs) && recs[i].Instruction == instr {
		return recs[i], true
	}
	return UpdateRecord{}, false
}

// SafepointCount returns the number of safepoints in the method
func (p *Plan) SafepointCount() int {
	n := 0
	for _, sps := range p.Safepoints {
		n += len(sps)
	}
	return n
}

// AutoSpilledCount returns how many variables are auto-spilled
func (p *Plan) AutoSpilledCount() int {
	n := 0
	for _, a := range p.AutoSpilled {
		if a {
			n++
		}
	}
	return n
}

// StoreCount returns the number of store actions across all records
func (p *Plan) StoreCount() int {
	n := 0
	for _, recs := range p.Records {
		for _, r := range recs {
			for _, a := range r.Actions {
				if a.Kind == ActionStore {
					n++
				}
			}
		}
	}
	return n
}
