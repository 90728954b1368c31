package llvmgen

import (
	"fmt"

	llvm "github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
)

// Runtime symbols referenced by generated code
const (
	frameTypeName = "ralph.stackFrame"
	stackTopName  = "ralph.stackTop"

	fnAlloc           = "ralph_alloc"           // i8* (i8* class)
	fnAllocArray      = "ralph_allocArray"      // i8* (i8* item, i32 size)
	fnAllocMultiArray = "ralph_allocMultiArray" // i8* (i8* item, i32 dims, i32...)
	fnCloneArray      = "ralph_cloneArray"      // i8* (i8* array)
	fnInitClass       = "ralph_initClass"       // void (i8* class)
	fnThrow           = "ralph_throw"           // void (i8* exception), never returns
	fnCatch           = "ralph_catch"           // i8* (), the exception being handled
	fnFieldAddress    = "ralph_fieldAddress"    // i8* (i8* object, i8* field)
	fnArrayData       = "ralph_arrayData"       // i8* (i8* array)
	fnArrayLength     = "ralph_arrayLength"     // i32 (i8* array)
	fnIsInstance      = "ralph_isInstance"      // i32 (i8* object, i8* type)
	fnResolveVirtual  = "ralph_resolveVirtual"  // i8* (i8* object, i8* method)
)

// runtime declares runtime types, globals and helpers on first use
type runtime struct {
	mod       *llvm.Module
	frameType *types.StructType
	stackTop  *llvm.Global
	helpers   map[string]*llvm.Func
	names     map[string]constant.Constant
}

func newRuntime(mod *llvm.Module) *runtime {
	frame := &types.StructType{}
	frame.Fields = []types.Type{types.I32, types.I32, types.NewPointer(frame)}
	mod.NewTypeDef(frameTypeName, frame)
	return &runtime{
		mod:       mod,
		frameType: frame,
		helpers:   make(map[string]*llvm.Func),
		names:     make(map[string]constant.Constant),
	}
}

// framePtr is the type of the next field and of @ralph.stackTop
func (r *runtime) framePtr() *types.PointerType {
	return types.NewPointer(r.frameType)
}

// top returns @ralph.stackTop, the head of the frame chain
func (r *runtime) top() *llvm.Global {
	if r.stackTop == nil {
		r.stackTop = r.mod.NewGlobal(stackTopName, r.framePtr())
		r.stackTop.Linkage = enum.LinkageExternal
	}
	return r.stackTop
}

// helper returns the declaration of a runtime function
func (r *runtime) helper(name string, ret types.Type, variadic bool, params ...types.Type) *llvm.Func {
	if f, ok := r.helpers[name]; ok {
		return f
	}
	ps := make([]*llvm.Param, len(params))
	for i, t := range params {
		ps[i] = llvm.NewParam(fmt.Sprintf("p%d", i), t)
	}
	f := r.mod.NewFunc(name, ret, ps...)
	f.Sig.Variadic = variadic
	r.helpers[name] = f
	return f
}

// name returns a pointer to a NUL-terminated copy of s, shared by all
// uses within the module
func (r *runtime) name(s string) constant.Constant {
	if c, ok := r.names[s]; ok {
		return c
	}
	data := constant.NewCharArrayFromString(s + "\x00")
	g := r.mod.NewGlobalDef(fmt.Sprintf("ralph.name.%d", len(r.names)), data)
	g.Linkage = enum.LinkagePrivate
	g.Immutable = true
	zero := constant.NewInt(types.I32, 0)
	c := constant.NewGetElementPtr(data.Typ, g, zero, zero)
	r.names[s] = c
	return c
}
