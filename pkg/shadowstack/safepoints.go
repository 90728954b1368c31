package shadowstack

import (
	"github.com/raymyers/ralph-aot/pkg/ir"
	"github.com/raymyers/ralph-aot/pkg/liveness"
	"github.com/raymyers/ralph-aot/pkg/typeinfer"
)

// isSafepoint reports whether instr may trigger a collection
func isSafepoint(instr ir.Instruction, managed ManagedMethods) bool {
	if !ir.IsSafepointKind(instr) {
		return false
	}
	if inv, ok := instr.(ir.Invoke); ok && managed != nil {
		return managed.IsManaged(inv.Method)
	}
	return true
}

// findSafepoints computes, for every safepoint, the reference variables
// live across it. Variables below reserved (the receiver and parameters,
// which the caller keeps rooted) are dropped.
func findSafepoints(prog *ir.Program, live *liveness.Info, types *typeinfer.Types,
	managed ManagedMethods, reserved int) [][]Safepoint {
	result := make([][]Safepoint, prog.BlockCount())

	for _, b := range prog.Blocks {
		current := live.LiveOut(b.Index).Clone()
		var found []Safepoint
		for j := len(b.Instructions) - 1; j >= 0; j-- {
			instr := b.Instructions[j]
			for _, u := range ir.Uses(instr) {
				current.Set(uint(u))
			}
			for _, d := range ir.Defs(instr) {
				current.Clear(uint(d))
			}
			if !isSafepoint(instr, managed) {
				continue
			}

			var vars []ir.Var
			for _, v := range liveness.Members(current) {
				if int(v) < reserved || !types.IsReference(v) {
					continue
				}
				vars = append(vars, v)
			}
			found = append(found, Safepoint{Block: b.Index, Instruction: j, Live: vars})
		}
		// The exception variable is defined on entry to a handler, so it
		// never escapes the block; liveness already keeps it out of LiveIn.

		// found is in descending instruction order
		for l, r := 0, len(found)-1; l < r; l, r = l+1, r-1 {
			found[l], found[r] = found[r], found[l]
		}
		result[b.Index] = found
	}
	return result
}

// contains reports whether sorted holds v
func contains(sorted []ir.Var, v ir.Var) bool {
	lo, hi := 0, len(sorted)
	for lo < hi {
		mid := (lo + hi) / 2
		switch {
		case sorted[mid] == v:
			return true
		case sorted[mid] < v:
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return false
}
