package shadowstack

import (
	"slices"

	"github.com/raymyers/ralph-aot/pkg/ir"
)

// Apply inserts the root registration calls described by plan into prog.
// Every check runs before the first mutation, so a failing Apply leaves
// prog untouched.
func Apply(prog *ir.Program, plan *Plan) error {
	if err := Check(prog, plan); err != nil {
		return err
	}
	if plan.FrameSize == 0 {
		return nil
	}

	for b, recs := range plan.Records {
		block := prog.BlockAt(b)
		// Later safepoints first so earlier indices stay valid
		for i := len(recs) - 1; i >= 0; i-- {
			rec := recs[i]
			if len(rec.Actions) == 0 {
				continue
			}
			block.Instructions = slices.Insert(block.Instructions, rec.Instruction, rootUpdates(prog, rec)...)
		}
	}
	return nil
}

// Check reports whether Apply would accept plan for prog: the plan must
// validate and every record must point at a safepoint of prog.
func Check(prog *ir.Program, plan *Plan) error {
	if err := plan.Validate(); err != nil {
		return err
	}
	if plan.FrameSize == 0 {
		return nil
	}
	if len(plan.Records) != prog.BlockCount() {
		return invariantf(plan.Method, NoVar, "plan covers %d blocks, program has %d", len(plan.Records), prog.BlockCount())
	}
	for b, recs := range plan.Records {
		block := prog.BlockAt(b)
		for _, rec := range recs {
			if rec.Instruction < 0 || rec.Instruction >= len(block.Instructions) {
				return invariantf(plan.Method, NoVar, "b%d[%d]: no such instruction", b, rec.Instruction)
			}
			if !ir.IsSafepointKind(block.Instructions[rec.Instruction]) {
				return invariantf(plan.Method, NoVar, "b%d[%d]: %s is not a safepoint",
					b, rec.Instruction, ir.FormatInstruction(block.Instructions[rec.Instruction]))
			}
		}
	}
	return nil
}

// rootUpdates builds the instructions for one record in slot order: a
// constant holding the slot index followed by the runtime call
func rootUpdates(prog *ir.Program, rec UpdateRecord) []ir.Instruction {
	out := make([]ir.Instruction, 0, 2*len(rec.Actions))
	for _, a := range rec.Actions {
		slotVar := prog.CreateVariable()
		out = append(out, ir.IntConst{Receiver: slotVar, Value: int32(a.Slot)})
		switch a.Kind {
		case ActionStore:
			out = append(out, ir.Invoke{
				Type:      ir.InvokeSpecial,
				Method:    RegisterGCRoot,
				Arguments: []ir.Var{slotVar, a.Var},
			})
		case ActionClear:
			out = append(out, ir.Invoke{
				Type:      ir.InvokeSpecial,
				Method:    RemoveGCRoot,
				Arguments: []ir.Var{slotVar},
			})
		}
	}
	return out
}
