package shadowstack

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/raymyers/ralph-aot/pkg/ir"
	"github.com/raymyers/ralph-aot/pkg/typeinfer"
)

func TestNoSafepoints(t *testing.T) {
	// b0: v1 = string "a"; v2 = int 3; return v1
	p := ir.NewProgram(3)
	p.CreateBlock().Instructions = []ir.Instruction{
		str(1, "a"),
		ir.IntConst{Receiver: 2, Value: 3},
		ir.Exit{Value: ir.VarRef(1)},
	}
	before := len(p.Blocks[0].Instructions)

	c := NewContributor(NewMethodRepository(nil, nil))
	size, err := c.Contribute(p, staticMethod("()Ljava/lang/Object;"))
	if err != nil {
		t.Fatal(err)
	}
	if size != 0 {
		t.Errorf("frame size = %d, want 0", size)
	}
	if len(p.Blocks[0].Instructions) != before || p.VariableCount() != 3 {
		t.Error("program must not change when no roots are needed")
	}
}

func TestSingleCallStoresOnlyReferences(t *testing.T) {
	// b0: v1 = string "a"; v2 = int 3; invoke Foo.take(I)V(v2); return v1
	take := mustRef("Foo.take(I)V")
	p := ir.NewProgram(3)
	p.CreateBlock().Instructions = []ir.Instruction{
		str(1, "a"),
		ir.IntConst{Receiver: 2, Value: 3},
		ir.Invoke{Type: ir.InvokeStatic, Method: take, Arguments: []ir.Var{2}},
		ir.Exit{Value: ir.VarRef(1)},
	}
	method := staticMethod("()Ljava/lang/Object;")
	plan := planFor(t, p, method)
	checkProperties(t, plan)

	if plan.FrameSize != 1 {
		t.Fatalf("frame size = %d, want 1", plan.FrameSize)
	}
	rec := recordAt(t, plan, 0, 2)
	want := []SlotUpdate{{Slot: 0, Kind: ActionStore, Var: 1}}
	if !reflect.DeepEqual(rec.Actions, want) {
		t.Errorf("actions = %+v, want %+v", rec.Actions, want)
	}

	if err := Apply(p, plan); err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, instr := range p.Blocks[0].Instructions {
		got = append(got, ir.FormatInstruction(instr))
	}
	wantListing := []string{
		`v1 = string "a"`,
		"v2 = int 3",
		"v3 = int 0",
		"invoke special ralph.runtime.ShadowStack.registerGCRoot(ILjava/lang/Object;)V(v3, v1)",
		"invoke static Foo.take(I)V(v2)",
		"return v1",
	}
	if !reflect.DeepEqual(got, wantListing) {
		t.Errorf("listing:\n%s\nwant:\n%s", strings.Join(got, "\n"), strings.Join(wantListing, "\n"))
	}
}

func TestRepeatedCallDoesNotRestore(t *testing.T) {
	p := ir.NewProgram(2)
	p.CreateBlock().Instructions = []ir.Instruction{
		str(1, "a"),
		gc(),
		gc(),
		ir.Exit{Value: ir.VarRef(1)},
	}
	plan := planFor(t, p, staticMethod("()Ljava/lang/Object;"))
	checkProperties(t, plan)

	first := recordAt(t, plan, 0, 1)
	second := recordAt(t, plan, 0, 2)
	if len(first.Actions) != 1 || first.Actions[0].Kind != ActionStore || first.Actions[0].Var != 1 {
		t.Errorf("first call actions = %+v, want store v1", first.Actions)
	}
	if len(second.Actions) != 0 {
		t.Errorf("second call actions = %+v, want none", second.Actions)
	}
	checkSoundness(t, p, plan, 4)
}

func TestDeadSlotIsCleared(t *testing.T) {
	// v2, v3 live across the first calls, only v2 across the later ones
	p := ir.NewProgram(4)
	p.CreateBlock().Instructions = []ir.Instruction{
		str(2, "a"),
		str(3, "b"),
		gc(),
		use(3),
		gc(),
		use(2),
		ir.Exit{},
	}
	plan := planFor(t, p, staticMethod("()V"))
	checkProperties(t, plan)

	if plan.FrameSize != 2 {
		t.Fatalf("frame size = %d, want 2", plan.FrameSize)
	}
	s2, s3 := plan.Colors[2], plan.Colors[3]
	if s2 == s3 {
		t.Fatalf("interfering v2 and v3 share slot %d", s2)
	}
	first := recordAt(t, plan, 0, 2)
	if len(first.Actions) != 2 {
		t.Errorf("first call actions = %+v, want two stores", first.Actions)
	}
	if rec := recordAt(t, plan, 0, 3); len(rec.Actions) != 0 {
		t.Errorf("use(v3) actions = %+v, want none", rec.Actions)
	}
	want := []SlotUpdate{{Slot: s3, Kind: ActionClear, Var: NoVar}}
	if rec := recordAt(t, plan, 0, 4); !reflect.DeepEqual(rec.Actions, want) {
		t.Errorf("third call actions = %+v, want %+v", rec.Actions, want)
	}
	checkSoundness(t, p, plan, 4)

	if err := Apply(p, plan); err != nil {
		t.Fatal(err)
	}
	var removes, registers int
	for _, instr := range p.Blocks[0].Instructions {
		if inv, ok := instr.(ir.Invoke); ok {
			switch inv.Method.Name {
			case "registerGCRoot":
				registers++
			case "removeGCRoot":
				removes++
			}
		}
	}
	if registers != 2 || removes != 1 {
		t.Errorf("registers=%d removes=%d, want 2 and 1", registers, removes)
	}
}

func TestUnclaimedSlotClearedAtFirstSafepoint(t *testing.T) {
	// Only v2 is live at the first call, but both slots are scanned there
	p := ir.NewProgram(4)
	p.CreateBlock().Instructions = []ir.Instruction{
		str(2, "a"),
		gc(),
		str(3, "b"),
		gc(),
		use(2),
		use(3),
		ir.Exit{},
	}
	plan := planFor(t, p, staticMethod("()V"))
	checkProperties(t, plan)

	if plan.FrameSize != 2 {
		t.Fatalf("frame size = %d, want 2", plan.FrameSize)
	}
	s2, s3 := plan.Colors[2], plan.Colors[3]
	want := []SlotUpdate{
		{Slot: s2, Kind: ActionStore, Var: 2},
		{Slot: s3, Kind: ActionClear, Var: NoVar},
	}
	if s3 < s2 {
		want[0], want[1] = want[1], want[0]
	}
	if rec := recordAt(t, plan, 0, 1); !reflect.DeepEqual(rec.Actions, want) {
		t.Errorf("first call actions = %+v, want %+v", rec.Actions, want)
	}
	want = []SlotUpdate{{Slot: s3, Kind: ActionStore, Var: 3}}
	if rec := recordAt(t, plan, 0, 3); !reflect.DeepEqual(rec.Actions, want) {
		t.Errorf("second call actions = %+v, want %+v", rec.Actions, want)
	}
	checkSoundness(t, p, plan, 4)
}

func TestFirstSafepointOfEachArmClears(t *testing.T) {
	//	b0: if v1 eq then b1 else b2
	//	b1: gc; return
	//	b2: v2 = string; gc; use v2; return
	p := ir.NewProgram(3)
	b0, b1, b2 := p.CreateBlock(), p.CreateBlock(), p.CreateBlock()
	b0.Instructions = []ir.Instruction{ir.Branch{Cond: ir.CondEqual, Operand: 1, Consequent: 1, Alternative: 2}}
	b1.Instructions = []ir.Instruction{gc(), ir.Exit{}}
	b2.Instructions = []ir.Instruction{str(2, "a"), gc(), use(2), ir.Exit{}}
	plan := planFor(t, p, staticMethod("(I)V"))
	checkProperties(t, plan)

	want := []SlotUpdate{{Slot: 0, Kind: ActionClear, Var: NoVar}}
	if rec := recordAt(t, plan, 1, 0); !reflect.DeepEqual(rec.Actions, want) {
		t.Errorf("b1[0] actions = %+v, want %+v", rec.Actions, want)
	}
	checkSoundness(t, p, plan, 4)

	if err := Apply(p, plan); err != nil {
		t.Fatal(err)
	}
	inv, ok := p.Blocks[1].Instructions[1].(ir.Invoke)
	if !ok || inv.Method.Name != RemoveGCRoot.Name {
		t.Errorf("b1 does not start by clearing its slot: %s", ir.FormatInstruction(p.Blocks[1].Instructions[1]))
	}
}

// phiMerge builds a diamond whose arms each spill a fresh reference that
// flows into a phi live across calls in the merge block.
//
//	b0: if v1 eq then b1 else b2
//	b1: v2 = string "a"; gc; goto b3
//	b2: v3 = string "b"; gc; goto b3
//	b3: v4 = phi [v2, b1], [v3, b2]; gc; use v4; return
func phiMerge() *ir.Program {
	p := ir.NewProgram(5)
	b0, b1, b2, b3 := p.CreateBlock(), p.CreateBlock(), p.CreateBlock(), p.CreateBlock()
	b0.Instructions = []ir.Instruction{ir.Branch{Cond: ir.CondEqual, Operand: 1, Consequent: 1, Alternative: 2}}
	b1.Instructions = []ir.Instruction{str(2, "a"), gc(), ir.Jump{Target: 3}}
	b2.Instructions = []ir.Instruction{str(3, "b"), gc(), ir.Jump{Target: 3}}
	b3.Phis = []*ir.Phi{phi(4, 2, 1, 3, 2)}
	b3.Instructions = []ir.Instruction{gc(), use(4), ir.Exit{}}
	return p
}

func TestPhiOfSpilledInputsIsAutoSpilled(t *testing.T) {
	p := phiMerge()
	plan := planFor(t, p, staticMethod("(I)V"))
	checkProperties(t, plan)

	if !plan.AutoSpilled[4] {
		t.Fatal("v4 should be auto-spilled")
	}
	if plan.Colors[2] != plan.Colors[4] || plan.Colors[3] != plan.Colors[4] {
		t.Errorf("phi-connected variables should share a slot: %v", plan.Colors[:5])
	}
	for _, instr := range []int{0, 1} {
		if rec := recordAt(t, plan, 3, instr); len(rec.Actions) != 0 {
			t.Errorf("b3[%d] actions = %+v, want none", instr, rec.Actions)
		}
	}
	if plan.StoreCount() != 2 {
		t.Errorf("store count = %d, want 2 (one per arm)", plan.StoreCount())
	}
	checkSoundness(t, p, plan, 8)
}

func TestPhiWithUnspilledInputIsStored(t *testing.T) {
	// Same diamond, but b2 has no call so v3 never reaches a slot
	p := phiMerge()
	p.Blocks[2].Instructions = []ir.Instruction{str(3, "b"), ir.Jump{Target: 3}}
	plan := planFor(t, p, staticMethod("(I)V"))
	checkProperties(t, plan)

	if plan.AutoSpilled[4] {
		t.Fatal("v4 must not be auto-spilled when an input was never stored")
	}
	rec := recordAt(t, plan, 3, 0)
	if len(rec.Actions) != 1 || rec.Actions[0].Var != 4 {
		t.Errorf("b3[0] actions = %+v, want store v4", rec.Actions)
	}
	checkSoundness(t, p, plan, 8)
}

func TestMergeDoesNotTrustNonDominatingArm(t *testing.T) {
	//	b0: v2 = string "x"; if v1 eq then b1 else b2
	//	b1: gc; goto b3
	//	b2: goto b3
	//	b3: gc; use v2; return
	p := ir.NewProgram(3)
	b0, b1, b2, b3 := p.CreateBlock(), p.CreateBlock(), p.CreateBlock(), p.CreateBlock()
	b0.Instructions = []ir.Instruction{str(2, "x"), ir.Branch{Cond: ir.CondEqual, Operand: 1, Consequent: 1, Alternative: 2}}
	b1.Instructions = []ir.Instruction{gc(), ir.Jump{Target: 3}}
	b2.Instructions = []ir.Instruction{ir.Jump{Target: 3}}
	b3.Instructions = []ir.Instruction{gc(), use(2), ir.Exit{}}

	plan := planFor(t, p, staticMethod("(I)V"))
	checkProperties(t, plan)

	want := []SlotUpdate{{Slot: 0, Kind: ActionStore, Var: 2}}
	if rec := recordAt(t, plan, 1, 0); !reflect.DeepEqual(rec.Actions, want) {
		t.Errorf("arm actions = %+v, want %+v", rec.Actions, want)
	}
	if rec := recordAt(t, plan, 3, 0); !reflect.DeepEqual(rec.Actions, want) {
		t.Errorf("merge actions = %+v, want %+v: the arm does not dominate the merge", rec.Actions, want)
	}
	if rec := recordAt(t, plan, 3, 1); len(rec.Actions) != 0 {
		t.Errorf("second merge call actions = %+v, want none", rec.Actions)
	}
	checkSoundness(t, p, plan, 8)
}

func TestDominatedBlockReusesParentState(t *testing.T) {
	//	b0: v2 = string "x"; gc; goto b1
	//	b1: gc; use v2; return
	p := ir.NewProgram(3)
	b0, b1 := p.CreateBlock(), p.CreateBlock()
	b0.Instructions = []ir.Instruction{str(2, "x"), gc(), ir.Jump{Target: 1}}
	b1.Instructions = []ir.Instruction{gc(), use(2), ir.Exit{}}
	plan := planFor(t, p, staticMethod("()V"))
	checkProperties(t, plan)
	if rec := recordAt(t, plan, 1, 0); len(rec.Actions) != 0 {
		t.Errorf("b1[0] actions = %+v, want none", rec.Actions)
	}
}

// loopProgram builds a loop whose header phi is fed by a spilled value on
// both edges.
//
//	b0: v2 = string "s"; gc; goto b1
//	b1: v3 = phi [v2, b0], [v4, b2]; if v1 eq then b3 else b2
//	b2: v4 = next(v3); gc; goto b1
//	b3: gc; use v3; return
func loopProgram() *ir.Program {
	p := ir.NewProgram(5)
	b0, b1, b2, b3 := p.CreateBlock(), p.CreateBlock(), p.CreateBlock(), p.CreateBlock()
	b0.Instructions = []ir.Instruction{str(2, "s"), gc(), ir.Jump{Target: 1}}
	b1.Phis = []*ir.Phi{phi(3, 2, 0, 4, 2)}
	b1.Instructions = []ir.Instruction{ir.Branch{Cond: ir.CondEqual, Operand: 1, Consequent: 3, Alternative: 2}}
	b2.Instructions = []ir.Instruction{next(4, 3), gc(), ir.Jump{Target: 1}}
	b3.Instructions = []ir.Instruction{gc(), use(3), ir.Exit{}}
	return p
}

func TestLoopPhiAutoSpilled(t *testing.T) {
	p := loopProgram()
	plan := planFor(t, p, staticMethod("(I)V"))
	checkProperties(t, plan)

	if !plan.AutoSpilled[3] {
		t.Error("loop phi v3 should be auto-spilled")
	}
	if plan.FrameSize != 1 {
		t.Errorf("frame size = %d, want 1", plan.FrameSize)
	}
	checkSoundness(t, p, plan, 10)
}

func TestLoopPhiWithUnspilledBackEdge(t *testing.T) {
	// The back-edge value is defined by the last call, so it is never live
	// across a safepoint and the phi must be stored itself.
	p := loopProgram()
	p.Blocks[2].Instructions = []ir.Instruction{gc(), next(4, 3), ir.Jump{Target: 1}}
	plan := planFor(t, p, staticMethod("(I)V"))
	checkProperties(t, plan)

	if plan.AutoSpilled[3] {
		t.Error("v3 must not be auto-spilled")
	}
	checkSoundness(t, p, plan, 10)
}

func TestPhiChainPropagates(t *testing.T) {
	//	b0: if v1 eq then b1 else b2
	//	b1: v2 = string; gc; goto b3
	//	b2: v3 = string; gc; goto b3
	//	b3: v4 = phi [v2, b1], [v3, b2]; gc; if v1 eq then b4 else b5
	//	b4: goto b6
	//	b5: goto b6
	//	b6: v5 = phi [v4, b4], [v4, b5]; gc; use v5; return
	p := ir.NewProgram(6)
	blocks := make([]*ir.BasicBlock, 7)
	for i := range blocks {
		blocks[i] = p.CreateBlock()
	}
	blocks[0].Instructions = []ir.Instruction{ir.Branch{Cond: ir.CondEqual, Operand: 1, Consequent: 1, Alternative: 2}}
	blocks[1].Instructions = []ir.Instruction{str(2, "a"), gc(), ir.Jump{Target: 3}}
	blocks[2].Instructions = []ir.Instruction{str(3, "b"), gc(), ir.Jump{Target: 3}}
	blocks[3].Phis = []*ir.Phi{phi(4, 2, 1, 3, 2)}
	blocks[3].Instructions = []ir.Instruction{gc(), ir.Branch{Cond: ir.CondEqual, Operand: 1, Consequent: 4, Alternative: 5}}
	blocks[4].Instructions = []ir.Instruction{ir.Jump{Target: 6}}
	blocks[5].Instructions = []ir.Instruction{ir.Jump{Target: 6}}
	blocks[6].Phis = []*ir.Phi{phi(5, 4, 4, 4, 5)}
	blocks[6].Instructions = []ir.Instruction{gc(), use(5), ir.Exit{}}

	plan := planFor(t, p, staticMethod("(I)V"))
	checkProperties(t, plan)
	if !plan.AutoSpilled[4] || !plan.AutoSpilled[5] {
		t.Errorf("auto-spilled = %v, want v4 and v5", plan.AutoSpilled)
	}
	if plan.StoreCount() != 2 {
		t.Errorf("store count = %d, want 2", plan.StoreCount())
	}
	checkSoundness(t, p, plan, 10)
}

func TestParametersExcluded(t *testing.T) {
	// instance method: v0 = this, v1 = parameter
	method := ir.MethodDescriptor{Ref: mustRef("Foo.m(Ljava/lang/Object;)V")}
	build := func() *ir.Program {
		p := ir.NewProgram(2)
		p.CreateBlock().Instructions = []ir.Instruction{gc(), use(1), use(0), ir.Exit{}}
		return p
	}

	plan := planFor(t, build(), method)
	if plan.FrameSize != 0 {
		t.Errorf("frame size with exclusion = %d, want 0", plan.FrameSize)
	}

	c := NewContributor(NewMethodRepository(nil, nil))
	c.ExcludeParameters = false
	p := build()
	plan, err := c.Plan(p, method, typeinfer.Infer(p, method))
	if err != nil {
		t.Fatal(err)
	}
	if plan.FrameSize != 2 {
		t.Errorf("frame size without exclusion = %d, want 2", plan.FrameSize)
	}
	checkProperties(t, plan)
	checkSoundness(t, p, plan, 4)
}

func TestUnmanagedCallsAreNotSafepoints(t *testing.T) {
	p := ir.NewProgram(2)
	p.CreateBlock().Instructions = []ir.Instruction{str(1, "a"), gc(), ir.Exit{Value: ir.VarRef(1)}}
	method := staticMethod("()Ljava/lang/Object;")

	for _, repo := range []*MethodRepository{
		NewMethodRepository([]string{"Foo"}, nil),
		NewMethodRepository(nil, []string{"Foo.gc"}),
		NewMethodRepository(nil, []string{"Foo.gc()V"}),
	} {
		c := NewContributor(repo)
		plan, err := c.Plan(p, method, typeinfer.Infer(p, method))
		if err != nil {
			t.Fatal(err)
		}
		if plan.SafepointCount() != 0 || plan.FrameSize != 0 {
			t.Errorf("unmanaged call treated as safepoint: %d safepoints", plan.SafepointCount())
		}
	}
}

func TestAllocationsAreSafepoints(t *testing.T) {
	// Each allocation may collect while the earlier objects are live
	p := ir.NewProgram(7)
	p.CreateBlock().Instructions = []ir.Instruction{
		ir.Construct{Receiver: 1, Type: "A"},
		ir.IntConst{Receiver: 2, Value: 4},
		ir.ConstructArray{Receiver: 3, Size: 2, ItemType: ir.Object},
		ir.CloneArray{Receiver: 4, Array: 3},
		ir.ConstructMultiArray{Receiver: 5, Dimensions: []ir.Var{2, 2}, ItemType: ir.Int},
		ir.InitClass{ClassName: "B"},
		ir.PutElement{Array: 4, Index: 2, Value: 1, ElemType: ir.Object},
		ir.PutElement{Array: 5, Index: 2, Value: 3, ElemType: ir.Object},
		ir.Raise{Exception: 1},
	}
	plan := planFor(t, p, staticMethod("()V"))
	checkProperties(t, plan)
	if plan.SafepointCount() != 6 {
		t.Errorf("safepoints = %d, want 6", plan.SafepointCount())
	}
	var live []ir.Var
	for _, sp := range plan.Safepoints[0] {
		if sp.Instruction == 4 { // newmultiarray
			live = sp.Live
		}
	}
	if !reflect.DeepEqual(live, []ir.Var{1, 3, 4}) {
		t.Errorf("live at newmultiarray = %v, want [1 3 4]", live)
	}
	if plan.FrameSize != 4 {
		t.Errorf("frame size = %d, want 4", plan.FrameSize)
	}
	checkSoundness(t, p, plan, 2)
}

func TestExceptionHandlerSeesStoredRoots(t *testing.T) {
	//	b0: v2 = string; gc; v3 = string; gc; return   (try -> b1)
	//	b1: catch v4; gc; use v2; use v4; return
	p := ir.NewProgram(5)
	b0, b1 := p.CreateBlock(), p.CreateBlock()
	b0.Instructions = []ir.Instruction{str(2, "a"), gc(), str(3, "b"), gc(), use(3), ir.Exit{}}
	b0.TryCatches = []ir.TryCatch{{Handler: 1}}
	b1.ExceptionVariable = ir.VarRef(4)
	b1.Instructions = []ir.Instruction{gc(), use(2), use(4), ir.Exit{}}

	plan := planFor(t, p, staticMethod("()V"))
	checkProperties(t, plan)
	for _, sp := range plan.Safepoints[0] {
		if !contains(sp.Live, 2) {
			t.Errorf("v2 must be live at b0[%d] because the handler uses it", sp.Instruction)
		}
	}
	checkSoundness(t, p, plan, 4)
}

func TestPlanIsDeterministic(t *testing.T) {
	for name, build := range map[string]func() *ir.Program{
		"phi":  phiMerge,
		"loop": loopProgram,
	} {
		t.Run(name, func(t *testing.T) {
			a := planFor(t, build(), staticMethod("(I)V"))
			b := planFor(t, build(), staticMethod("(I)V"))
			if !reflect.DeepEqual(a, b) {
				t.Error("planning the same program twice gave different plans")
			}
		})
	}
}

func TestPlanDoesNotMutate(t *testing.T) {
	p := loopProgram()
	var before, after bytes.Buffer
	ir.NewPrinter(&before).PrintProgram(p)
	planFor(t, p, staticMethod("(I)V"))
	ir.NewPrinter(&after).PrintProgram(p)
	if before.String() != after.String() {
		t.Error("Plan modified the program")
	}
}

func TestContributeTwiceIsStable(t *testing.T) {
	// Inserted runtime calls are not safepoints, so a second run on the
	// rewritten program plans the same frame and inserts nothing new
	p := phiMerge()
	c := NewContributor(NewMethodRepository(nil, nil))
	method := staticMethod("(I)V")
	first, err := c.Contribute(p, method)
	if err != nil {
		t.Fatal(err)
	}
	plan, err := c.Plan(p, method, typeinfer.Infer(p, method))
	if err != nil {
		t.Fatal(err)
	}
	if plan.FrameSize != first {
		t.Errorf("second frame size %d, first %d", plan.FrameSize, first)
	}
}

func TestInvariantErrorMessage(t *testing.T) {
	err := error(invariantf("Foo.f()V", 3, "live but uncolored"))
	var inv *InvariantError
	if !errors.As(err, &inv) {
		t.Fatal("expected *InvariantError")
	}
	if inv.Var != 3 || !strings.Contains(err.Error(), "Foo.f()V: v3: live but uncolored") {
		t.Errorf("error = %q", err.Error())
	}
	if msg := invariantf("Foo.f()V", NoVar, "bad").Error(); strings.Contains(msg, "v-1") {
		t.Errorf("NoVar leaked into message: %q", msg)
	}
}

func TestDump(t *testing.T) {
	plan := planFor(t, phiMerge(), staticMethod("(I)V"))
	var buf bytes.Buffer
	plan.Dump(&buf)
	out := buf.String()
	for _, want := range []string{
		"method Foo.f(I)V frame 1",
		"auto-spilled: v4",
		"b1[1]: live {v2} store 0=v2",
		"b3[0]: live {v4}\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in dump:\n%s", want, out)
		}
	}
}
