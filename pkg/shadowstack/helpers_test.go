package shadowstack

import (
	"testing"

	"github.com/raymyers/ralph-aot/pkg/ir"
	"github.com/raymyers/ralph-aot/pkg/typeinfer"
)

var (
	refGC   = mustRef("Foo.gc()V")
	refUse  = mustRef("Foo.use(Ljava/lang/Object;)V")
	refNext = mustRef("Foo.next(Ljava/lang/Object;)Ljava/lang/Object;")
)

func mustRef(s string) ir.MethodRef {
	ref, err := ir.ParseMethodRef(s)
	if err != nil {
		panic(err)
	}
	return ref
}

// gc is a call that may collect and uses nothing
func gc() ir.Instruction {
	return ir.Invoke{Type: ir.InvokeStatic, Method: refGC}
}

// use is a call that reads one reference
func use(v ir.Var) ir.Instruction {
	return ir.Invoke{Type: ir.InvokeStatic, Method: refUse, Arguments: []ir.Var{v}}
}

// next is a call that reads a reference and returns a new one
func next(recv, arg ir.Var) ir.Instruction {
	return ir.Invoke{Type: ir.InvokeStatic, Method: refNext, Arguments: []ir.Var{arg}, Receiver: ir.VarRef(recv)}
}

func str(recv ir.Var, s string) ir.Instruction {
	return ir.StringConst{Receiver: recv, Value: s}
}

func phi(recv ir.Var, pairs ...int) *ir.Phi {
	p := &ir.Phi{Receiver: recv}
	for i := 0; i+1 < len(pairs); i += 2 {
		p.Incomings = append(p.Incomings, ir.Incoming{Value: ir.Var(pairs[i]), Source: pairs[i+1]})
	}
	return p
}

// staticMethod describes a static method named Foo.f with the given descriptor
func staticMethod(desc string) ir.MethodDescriptor {
	return ir.MethodDescriptor{Ref: mustRef("Foo.f" + desc), Static: true}
}

func planFor(t *testing.T, prog *ir.Program, method ir.MethodDescriptor) *Plan {
	t.Helper()
	c := NewContributor(NewMethodRepository(nil, nil))
	plan, err := c.Plan(prog, method, typeinfer.Infer(prog, method))
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	return plan
}

func recordAt(t *testing.T, plan *Plan, block, instr int) UpdateRecord {
	t.Helper()
	rec, ok := plan.Lookup(block, instr)
	if !ok {
		t.Fatalf("no record for b%d[%d]", block, instr)
	}
	return rec
}

// --- Soundness checking by path simulation ---

// pathChecker walks concrete control-flow paths, executing the plan's
// slot actions against a simulated shadow stack. Every definition
// produces a fresh value id; a phi copies the id of its incoming value.
// At each safepoint every live variable must be found in its slot and
// no slot may still hold garbage.
type pathChecker struct {
	t        *testing.T
	prog     *ir.Program
	plan     *Plan
	maxSteps int
	paths    int
}

const garbage = -99

func checkSoundness(t *testing.T, prog *ir.Program, plan *Plan, maxSteps int) int {
	t.Helper()
	pc := &pathChecker{t: t, prog: prog, plan: plan, maxSteps: maxSteps}
	values := make([]int, prog.VariableCount())
	for i := range values {
		values[i] = i + 1 // parameters and anything defined before entry
	}
	mem := make([]int, plan.FrameSize)
	for i := range mem {
		mem[i] = garbage
	}
	pc.enterBlock(0, -1, values, mem, prog.VariableCount()+1, 0)
	if pc.paths == 0 {
		t.Fatal("no paths explored")
	}
	return pc.paths
}

func (pc *pathChecker) enterBlock(b, from int, values, mem []int, nextID, steps int) {
	if steps >= pc.maxSteps {
		pc.paths++
		return
	}
	values = append([]int(nil), values...)
	mem = append([]int(nil), mem...)
	block := pc.prog.BlockAt(b)

	if from >= 0 {
		incoming := make(map[ir.Var]int)
		for _, p := range block.Phis {
			for _, inc := range p.Incomings {
				if inc.Source == from {
					incoming[p.Receiver] = values[inc.Value]
				}
			}
		}
		for v, id := range incoming {
			values[v] = id
		}
	}
	if block.ExceptionVariable != nil {
		values[*block.ExceptionVariable] = nextID
		nextID++
	}

	for j, instr := range block.Instructions {
		if rec, ok := pc.plan.Lookup(b, j); ok {
			for _, a := range rec.Actions {
				switch a.Kind {
				case ActionStore:
					mem[a.Slot] = values[a.Var]
				case ActionClear:
					mem[a.Slot] = 0
				}
			}
			pc.checkSafepoint(b, j, values, mem)
			// An exception may leave through any handler here
			for _, tc := range block.TryCatches {
				pc.enterBlock(tc.Handler, b, values, mem, nextID, steps+1)
			}
		}
		for _, d := range ir.Defs(instr) {
			values[d] = nextID
			nextID++
		}
	}

	normal := 0
	if term := block.Terminator(); term != nil {
		for _, s := range ir.Successors(term) {
			normal++
			pc.enterBlock(s, b, values, mem, nextID, steps+1)
		}
	}
	if normal == 0 {
		pc.paths++
	}
}

func (pc *pathChecker) checkSafepoint(b, j int, values, mem []int) {
	sps := pc.plan.Safepoints[b]
	for _, sp := range sps {
		if sp.Instruction != j {
			continue
		}
		for _, v := range sp.Live {
			slot := pc.plan.Colors[v]
			if mem[slot] != values[v] {
				pc.t.Errorf("b%d[%d]: v%d (value %d) expected in slot %d, found %d",
					b, j, v, values[v], slot, mem[slot])
			}
		}
		for slot, val := range mem {
			if val == garbage {
				pc.t.Errorf("b%d[%d]: slot %d scanned before it was written", b, j, slot)
			}
		}
	}
}

// checkProperties verifies the plan-level properties that hold for
// every method
func checkProperties(t *testing.T, plan *Plan) {
	t.Helper()
	if err := plan.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	highest := -1
	anyLive := false
	for _, sps := range plan.Safepoints {
		for _, sp := range sps {
			for _, v := range sp.Live {
				anyLive = true
				if plan.Colors[v] > highest {
					highest = plan.Colors[v]
				}
			}
		}
	}
	if plan.FrameSize != highest+1 {
		t.Errorf("frame size %d, highest spilled color %d", plan.FrameSize, highest)
	}
	if (plan.FrameSize == 0) == anyLive {
		t.Errorf("frame size %d but live references at safepoints = %v", plan.FrameSize, anyLive)
	}
	for _, recs := range plan.Records {
		for _, r := range recs {
			for _, a := range r.Actions {
				if a.Kind == ActionStore && plan.AutoSpilled[a.Var] {
					t.Errorf("auto-spilled v%d stored at b%d[%d]", a.Var, r.Block, r.Instruction)
				}
			}
		}
	}
}
