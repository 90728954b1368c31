package llvmgen

import (
	"fmt"

	llvm "github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/raymyers/ralph-aot/pkg/cfg"
	"github.com/raymyers/ralph-aot/pkg/ir"
	"github.com/raymyers/ralph-aot/pkg/shadowstack"
	"github.com/raymyers/ralph-aot/pkg/typeinfer"
)

// funcGen holds the state of lowering one method
type funcGen struct {
	g      *Generator
	m      *ir.Method
	prog   *ir.Program
	plan   *shadowstack.Plan
	vtypes *typeinfer.Types
	fn     *llvm.Func

	blocks []*llvm.Block // nil for blocks unreachable from the entry
	preds  [][]int       // control-flow predecessors, one entry per edge
	vals   []value.Value // value of every variable
	phis   []pendingPhi  // phi inputs resolved once every block is lowered
	cur    *llvm.Block
	bi, ii int // position being lowered, for errors
	site   int // next call site id

	frame     FrameLayout
	slotArray *types.ArrayType
	stackData value.Value // [N x i8*]*
	stackNext value.Value // %ralph.stackFrame**
	callSite  value.Value // i32*
	exit      *llvm.Block
	exitUsed  bool
	returns   []*llvm.Incoming
}

type pendingPhi struct {
	inc   *llvm.Incoming
	value ir.Var
}

func newFuncGen(g *Generator, m *ir.Method, plan *shadowstack.Plan, vtypes *typeinfer.Types, fn *llvm.Func) *funcGen {
	fg := &funcGen{
		g:      g,
		m:      m,
		prog:   m.Program,
		plan:   plan,
		vtypes: vtypes,
		fn:     fn,
		vals:   make([]value.Value, m.Program.VariableCount()),
		frame:  ComputeLayout(plan.FrameSize),
	}
	// v0 is the receiver of instance methods, parameters start at v1
	first := 0
	if m.Descriptor.Static {
		first = 1
	}
	for i, p := range fn.Params {
		if v := first + i; v < len(fg.vals) {
			fg.vals[v] = p
		}
	}
	return fg
}

func (fg *funcGen) errorf(format string, args ...any) error {
	return fmt.Errorf("%s: b%d[%d]: %s", fg.m.Descriptor.Name(), fg.bi, fg.ii, fmt.Sprintf(format, args...))
}

func (fg *funcGen) lower() error {
	graph := cfg.Build(fg.prog)
	tree := cfg.BuildDominatorTree(graph)

	entry := fg.fn.NewBlock("entry")
	if fg.frame.Slots > 0 {
		fg.prologue(entry)
		fg.exit = fg.fn.NewBlock("exit")
	}

	n := fg.prog.BlockCount()
	fg.blocks = make([]*llvm.Block, n)
	for b := 0; b < n; b++ {
		if tree.Reachable(b) {
			fg.blocks[b] = fg.fn.NewBlock(fmt.Sprintf("b%d", b))
		}
	}
	fg.preds = make([][]int, n)
	for b := 0; b < n; b++ {
		if fg.blocks[b] == nil {
			continue
		}
		if term := fg.prog.BlockAt(b).Terminator(); term != nil {
			for _, s := range ir.Successors(term) {
				fg.preds[s] = append(fg.preds[s], b)
			}
		}
	}
	entry.NewBr(fg.blocks[0])

	// Dominator preorder visits every definition before its uses
	stack := []int{tree.Entry()}
	for len(stack) > 0 {
		b := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if err := fg.lowerBlock(b); err != nil {
			return err
		}
		children := tree.Children(b)
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}

	for _, p := range fg.phis {
		v := fg.vals[p.value]
		if v == nil {
			return fmt.Errorf("%s: phi input v%d is never defined", fg.m.Descriptor.Name(), p.value)
		}
		p.inc.X = v
	}
	return fg.finishExit()
}

// prologue allocates the frame, clears its slots and pushes it on the
// frame chain
func (fg *funcGen) prologue(entry *llvm.Block) {
	rt := fg.g.rt
	fg.slotArray = types.NewArray(uint64(fg.frame.Slots), types.I8Ptr)
	stackType := types.NewStruct(rt.frameType, fg.slotArray)
	i32 := func(x int64) constant.Constant { return constant.NewInt(types.I32, x) }

	stack := entry.NewAlloca(stackType)
	stack.SetName("stack")
	entry.NewStore(constant.NewZeroInitializer(stackType), stack)

	header := entry.NewGetElementPtr(stackType, stack, i32(0), i32(0))
	header.SetName("stackHeader")
	size := entry.NewGetElementPtr(rt.frameType, header, i32(0), i32(0))
	size.SetName("sizePtr")
	entry.NewStore(i32(int64(fg.frame.Slots)), size)
	site := entry.NewGetElementPtr(rt.frameType, header, i32(0), i32(1))
	site.SetName("callSitePtr")
	fg.callSite = site

	next := entry.NewGetElementPtr(rt.frameType, header, i32(0), i32(2))
	next.SetName("stackNext")
	fg.stackNext = next
	top := entry.NewLoad(rt.framePtr(), rt.top())
	top.SetName("stackTop")
	entry.NewStore(top, next)
	entry.NewStore(header, rt.top())

	data := entry.NewGetElementPtr(stackType, stack, i32(0), i32(1))
	data.SetName("stackData")
	fg.stackData = data
}

// finishExit completes the shared exit block: it merges the return
// values, pops the frame and returns
func (fg *funcGen) finishExit() error {
	if fg.exit == nil {
		return nil
	}
	// Move the exit block after the method's blocks
	blocks := fg.fn.Blocks[:0]
	for _, b := range fg.fn.Blocks {
		if b != fg.exit {
			blocks = append(blocks, b)
		}
	}
	fg.fn.Blocks = blocks
	if !fg.exitUsed {
		return nil
	}
	fg.fn.Blocks = append(fg.fn.Blocks, fg.exit)

	var result value.Value
	if !fg.fn.Sig.RetType.Equal(types.Void) {
		phi := fg.exit.NewPhi(fg.returns...)
		phi.SetName("return")
		result = phi
	}
	rt := fg.g.rt
	restore := fg.exit.NewLoad(rt.framePtr(), fg.stackNext)
	restore.SetName("stackRestore")
	fg.exit.NewStore(restore, rt.top())
	fg.exit.NewRet(result)
	return nil
}

func (fg *funcGen) lowerBlock(b int) error {
	block := fg.prog.BlockAt(b)
	fg.cur = fg.blocks[b]
	fg.bi, fg.ii = b, -1

	for _, phi := range block.Phis {
		if err := fg.lowerPhi(b, phi); err != nil {
			return err
		}
	}
	if block.ExceptionVariable != nil {
		f := fg.g.rt.helper(fnCatch, types.I8Ptr, false)
		fg.define(*block.ExceptionVariable, fg.cur.NewCall(f))
	}

	for j, instr := range block.Instructions {
		fg.ii = j
		if rec, ok := fg.plan.Lookup(b, j); ok {
			if err := fg.updateFrame(rec); err != nil {
				return err
			}
		}
		if err := fg.lowerInstruction(instr); err != nil {
			return err
		}
	}
	if fg.cur.Term == nil {
		return fg.errorf("block falls through without a terminator")
	}
	return nil
}

// lowerPhi creates the phi with one entry per incoming control-flow edge.
// Inputs arriving only through exception edges have no LLVM edge and are
// dropped; a phi left without edges is undefined.
func (fg *funcGen) lowerPhi(b int, phi *ir.Phi) error {
	typ, ok := inferredType(fg.vtypes.TypeOf(phi.Receiver))
	if !ok {
		return fg.errorf("phi v%d has no inferred type", phi.Receiver)
	}
	var incs []*llvm.Incoming
	for _, inc := range phi.Incomings {
		for _, p := range fg.preds[b] {
			if p != inc.Source {
				continue
			}
			in := llvm.NewIncoming(constant.NewUndef(typ), fg.blocks[p])
			incs = append(incs, in)
			fg.phis = append(fg.phis, pendingPhi{inc: in, value: inc.Value})
		}
	}
	if len(incs) == 0 {
		fg.vals[phi.Receiver] = constant.NewUndef(typ)
		return nil
	}
	fg.define(phi.Receiver, fg.cur.NewPhi(incs...))
	return nil
}

// updateFrame writes the slot actions of a safepoint
func (fg *funcGen) updateFrame(rec shadowstack.UpdateRecord) error {
	if fg.frame.Slots == 0 {
		return nil
	}
	i32 := func(x int64) constant.Constant { return constant.NewInt(types.I32, x) }
	fg.cur.NewStore(i32(int64(fg.site)), fg.callSite)
	fg.site++
	for _, a := range rec.Actions {
		var v value.Value
		switch a.Kind {
		case shadowstack.ActionStore:
			var err error
			if v, err = fg.use(a.Var); err != nil {
				return err
			}
			if !v.Type().Equal(types.I8Ptr) {
				return fg.errorf("root v%d is not a reference (%s)", a.Var, v.Type())
			}
		case shadowstack.ActionClear:
			v = constant.NewNull(types.I8Ptr)
		default:
			continue
		}
		cell := fg.cur.NewGetElementPtr(fg.slotArray, fg.stackData, i32(0), i32(int64(a.Slot)))
		fg.cur.NewStore(v, cell)
	}
	return nil
}

// define binds a variable to a freshly computed value
func (fg *funcGen) define(v ir.Var, val value.Value) {
	if n, ok := val.(value.Named); ok {
		n.SetName(fmt.Sprintf("v%d", v))
	}
	fg.vals[v] = val
}

// bind makes a variable an alias of an existing value
func (fg *funcGen) bind(v ir.Var, val value.Value) {
	fg.vals[v] = val
}

func (fg *funcGen) use(v ir.Var) (value.Value, error) {
	if int(v) >= len(fg.vals) || fg.vals[v] == nil {
		return nil, fg.errorf("use of undefined variable v%d", v)
	}
	return fg.vals[v], nil
}

func (fg *funcGen) uses(vars ...ir.Var) ([]value.Value, error) {
	out := make([]value.Value, len(vars))
	for i, v := range vars {
		val, err := fg.use(v)
		if err != nil {
			return nil, err
		}
		out[i] = val
	}
	return out, nil
}

func (fg *funcGen) target(b int) *llvm.Block {
	return fg.blocks[b]
}

func (fg *funcGen) name(s string) constant.Constant {
	return fg.g.rt.name(s)
}

// ret returns from the method, through the exit block when a frame has
// to be popped
func (fg *funcGen) ret(val value.Value) {
	if fg.exit == nil {
		fg.cur.NewRet(val)
		return
	}
	if val != nil {
		fg.returns = append(fg.returns, llvm.NewIncoming(val, fg.cur))
	}
	fg.cur.NewBr(fg.exit)
	fg.exitUsed = true
}

var intPreds = map[ir.BranchCondition]enum.IPred{
	ir.CondEqual:          enum.IPredEQ,
	ir.CondNotEqual:       enum.IPredNE,
	ir.CondLess:           enum.IPredSLT,
	ir.CondGreaterOrEqual: enum.IPredSGE,
	ir.CondGreater:        enum.IPredSGT,
	ir.CondLessOrEqual:    enum.IPredSLE,
	ir.CondNull:           enum.IPredEQ,
	ir.CondNotNull:        enum.IPredNE,
	ir.CondRefEqual:       enum.IPredEQ,
	ir.CondRefNotEqual:    enum.IPredNE,
}
