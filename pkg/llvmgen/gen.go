// Package llvmgen lowers methods to LLVM IR. GC roots are kept in a
// shadow-stack frame allocated in each method's prologue and linked into
// the runtime's frame chain; before every safepoint the slot stores and
// clears of the method's shadowstack.Plan are written into that frame.
package llvmgen

import (
	"fmt"

	llvm "github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"

	"github.com/raymyers/ralph-aot/pkg/ir"
	"github.com/raymyers/ralph-aot/pkg/shadowstack"
	"github.com/raymyers/ralph-aot/pkg/typeinfer"
)

// Generator accumulates the functions of one LLVM module
type Generator struct {
	mod     *llvm.Module
	rt      *runtime
	funcs   map[string]*llvm.Func
	fields  map[string]*llvm.Global
	strs    map[string]*llvm.Global
	strings []string
	frames  map[string]FrameLayout
}

// NewGenerator creates a generator with an empty module
func NewGenerator() *Generator {
	mod := llvm.NewModule()
	return &Generator{
		mod:    mod,
		rt:     newRuntime(mod),
		funcs:  make(map[string]*llvm.Func),
		fields: make(map[string]*llvm.Global),
		strs:   make(map[string]*llvm.Global),
		frames: make(map[string]FrameLayout),
	}
}

// Module returns the generated module
func (g *Generator) Module() *llvm.Module {
	return g.mod
}

// Frames returns the frame layout of every lowered method, by name
func (g *Generator) Frames() map[string]FrameLayout {
	return g.frames
}

// Strings returns the string literal pool. Literal i is read from the
// external global @ralph.str.i, which the runtime initializes.
func (g *Generator) Strings() []string {
	return g.strings
}

// Declare adds the function declaration for a method so that calls to
// it bind to the definition produced by Lower
func (g *Generator) Declare(m *ir.Method) {
	g.function(m.Descriptor.Ref, m.Descriptor.Static)
}

// function returns the function for a method, declaring it on first use.
// Instance methods take the receiver as an extra first parameter.
func (g *Generator) function(ref ir.MethodRef, static bool) *llvm.Func {
	name := ref.String()
	if f, ok := g.funcs[name]; ok {
		return f
	}
	var params []*llvm.Param
	if !static {
		params = append(params, llvm.NewParam("v0", types.I8Ptr))
	}
	for i, p := range ref.Params {
		params = append(params, llvm.NewParam(fmt.Sprintf("v%d", i+1), valueType(p)))
	}
	f := g.mod.NewFunc(name, valueType(ref.Return), params...)
	g.funcs[name] = f
	return f
}

// staticField returns the external global holding a static field
func (g *Generator) staticField(field ir.FieldRef, typ ir.ValueType) *llvm.Global {
	name := field.String()
	if gl, ok := g.fields[name]; ok {
		return gl
	}
	gl := g.mod.NewGlobal(name, storageType(typ))
	gl.Linkage = enum.LinkageExternal
	g.fields[name] = gl
	return gl
}

// stringLiteral returns the global holding the interned string object
func (g *Generator) stringLiteral(s string) *llvm.Global {
	if gl, ok := g.strs[s]; ok {
		return gl
	}
	gl := g.mod.NewGlobal(fmt.Sprintf("ralph.str.%d", len(g.strings)), types.I8Ptr)
	gl.Linkage = enum.LinkageExternal
	g.strs[s] = gl
	g.strings = append(g.strings, s)
	return gl
}

// Lower defines the function for m. The plan must have been computed for
// m's program, and types by typeinfer.Infer on the same program.
func (g *Generator) Lower(m *ir.Method, plan *shadowstack.Plan, vtypes *typeinfer.Types) error {
	name := m.Descriptor.Name()
	if m.Program.BlockCount() == 0 {
		return fmt.Errorf("%s: method has no body", name)
	}
	if plan == nil || len(plan.Records) != m.Program.BlockCount() {
		return fmt.Errorf("%s: plan does not match the program", name)
	}
	fn := g.function(m.Descriptor.Ref, m.Descriptor.Static)
	if len(fn.Blocks) > 0 {
		return fmt.Errorf("%s: defined twice", name)
	}
	fg := newFuncGen(g, m, plan, vtypes, fn)
	if err := fg.lower(); err != nil {
		fn.Blocks = nil
		return err
	}
	g.frames[name] = fg.frame
	return nil
}

// valueType maps a source type to its register representation. Values
// narrower than int are widened, as on the JVM operand stack.
func valueType(t ir.ValueType) types.Type {
	switch t.Kind {
	case ir.KindVoid:
		return types.Void
	case ir.KindLong:
		return types.I64
	case ir.KindFloat:
		return types.Float
	case ir.KindDouble:
		return types.Double
	case ir.KindObject, ir.KindArray:
		return types.I8Ptr
	}
	return types.I32
}

// storageType maps a source type to its in-memory representation
func storageType(t ir.ValueType) types.Type {
	switch t.Kind {
	case ir.KindBoolean, ir.KindByte:
		return types.I8
	case ir.KindShort, ir.KindChar:
		return types.I16
	}
	return valueType(t)
}

// inferredType maps an inferred variable type to its register
// representation
func inferredType(t typeinfer.VariableType) (types.Type, bool) {
	switch t {
	case typeinfer.Int:
		return types.I32, true
	case typeinfer.Long:
		return types.I64, true
	case typeinfer.Float:
		return types.Float, true
	case typeinfer.Double:
		return types.Double, true
	case typeinfer.Unknown:
		return nil, false
	}
	return types.I8Ptr, true
}

// zeroOf returns the zero constant of an integer type
func zeroOf(t *types.IntType) constant.Constant {
	return constant.NewInt(t, 0)
}
