package llvmgen

import (
	llvm "github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/raymyers/ralph-aot/pkg/ir"
)

func (fg *funcGen) lowerInstruction(instr ir.Instruction) error {
	b := fg.cur
	switch i := instr.(type) {
	case ir.IntConst:
		fg.bind(i.Receiver, constant.NewInt(types.I32, int64(i.Value)))
	case ir.LongConst:
		fg.bind(i.Receiver, constant.NewInt(types.I64, i.Value))
	case ir.FloatConst:
		fg.bind(i.Receiver, constant.NewFloat(types.Float, float64(i.Value)))
	case ir.DoubleConst:
		fg.bind(i.Receiver, constant.NewFloat(types.Double, i.Value))
	case ir.StringConst:
		fg.define(i.Receiver, b.NewLoad(types.I8Ptr, fg.g.stringLiteral(i.Value)))
	case ir.NullConst:
		fg.bind(i.Receiver, constant.NewNull(types.I8Ptr))
	case ir.Assign:
		v, err := fg.use(i.Assignee)
		if err != nil {
			return err
		}
		fg.bind(i.Receiver, v)
	case ir.Binary:
		return fg.lowerBinary(i)
	case ir.Cast:
		return fg.lowerCast(i)

	case ir.Construct:
		f := fg.g.rt.helper(fnAlloc, types.I8Ptr, false, types.I8Ptr)
		fg.define(i.Receiver, b.NewCall(f, fg.name(i.Type)))
	case ir.ConstructArray:
		size, err := fg.use(i.Size)
		if err != nil {
			return err
		}
		f := fg.g.rt.helper(fnAllocArray, types.I8Ptr, false, types.I8Ptr, types.I32)
		fg.define(i.Receiver, b.NewCall(f, fg.name(i.ItemType.Descriptor()), size))
	case ir.ConstructMultiArray:
		dims, err := fg.uses(i.Dimensions...)
		if err != nil {
			return err
		}
		f := fg.g.rt.helper(fnAllocMultiArray, types.I8Ptr, true, types.I8Ptr, types.I32)
		args := []value.Value{fg.name(i.ItemType.Descriptor()), constant.NewInt(types.I32, int64(len(dims)))}
		fg.define(i.Receiver, b.NewCall(f, append(args, dims...)...))
	case ir.CloneArray:
		arr, err := fg.use(i.Array)
		if err != nil {
			return err
		}
		f := fg.g.rt.helper(fnCloneArray, types.I8Ptr, false, types.I8Ptr)
		fg.define(i.Receiver, b.NewCall(f, arr))
	case ir.InitClass:
		f := fg.g.rt.helper(fnInitClass, types.Void, false, types.I8Ptr)
		b.NewCall(f, fg.name(i.ClassName))
	case ir.Invoke:
		return fg.lowerInvoke(i)

	case ir.GetField:
		addr, err := fg.fieldAddress(i.Instance, i.Field, i.FieldType)
		if err != nil {
			return err
		}
		v := b.NewLoad(storageType(i.FieldType), addr)
		fg.define(i.Receiver, fg.widen(v, i.FieldType))
	case ir.PutField:
		addr, err := fg.fieldAddress(i.Instance, i.Field, i.FieldType)
		if err != nil {
			return err
		}
		v, err := fg.use(i.Value)
		if err != nil {
			return err
		}
		b.NewStore(fg.narrow(v, i.FieldType), addr)
	case ir.ArrayLength:
		arr, err := fg.use(i.Array)
		if err != nil {
			return err
		}
		f := fg.g.rt.helper(fnArrayLength, types.I32, false, types.I8Ptr)
		fg.define(i.Receiver, b.NewCall(f, arr))
	case ir.GetElement:
		addr, err := fg.elementAddress(i.Array, i.Index, i.ElemType)
		if err != nil {
			return err
		}
		v := b.NewLoad(storageType(i.ElemType), addr)
		fg.define(i.Receiver, fg.widen(v, i.ElemType))
	case ir.PutElement:
		addr, err := fg.elementAddress(i.Array, i.Index, i.ElemType)
		if err != nil {
			return err
		}
		v, err := fg.use(i.Value)
		if err != nil {
			return err
		}
		b.NewStore(fg.narrow(v, i.ElemType), addr)
	case ir.IsInstance:
		v, err := fg.use(i.Value)
		if err != nil {
			return err
		}
		f := fg.g.rt.helper(fnIsInstance, types.I32, false, types.I8Ptr, types.I8Ptr)
		fg.define(i.Receiver, b.NewCall(f, v, fg.name(i.Type.Descriptor())))

	case ir.Raise:
		ex, err := fg.use(i.Exception)
		if err != nil {
			return err
		}
		f := fg.g.rt.helper(fnThrow, types.Void, false, types.I8Ptr)
		b.NewCall(f, ex)
		b.NewUnreachable()
	case ir.Jump:
		b.NewBr(fg.target(i.Target))
	case ir.Branch:
		return fg.lowerBranch(i)
	case ir.BinaryBranch:
		return fg.lowerBinaryBranch(i)
	case ir.Switch:
		cond, err := fg.use(i.Condition)
		if err != nil {
			return err
		}
		cases := make([]*llvm.Case, len(i.Entries))
		for k, e := range i.Entries {
			cases[k] = llvm.NewCase(constant.NewInt(types.I32, int64(e.Condition)), fg.target(e.Target))
		}
		b.NewSwitch(cond, fg.target(i.Default), cases...)
	case ir.Exit:
		if i.Value == nil {
			fg.ret(nil)
			return nil
		}
		v, err := fg.use(*i.Value)
		if err != nil {
			return err
		}
		fg.ret(v)
	default:
		return fg.errorf("cannot lower %T", instr)
	}
	return nil
}

func (fg *funcGen) lowerBinary(i ir.Binary) error {
	x, err := fg.use(i.First)
	if err != nil {
		return err
	}
	y, err := fg.use(i.Second)
	if err != nil {
		return err
	}
	b := fg.cur
	var v value.Value
	switch i.Operand {
	case ir.NumInt, ir.NumLong:
		xt, ok := x.Type().(*types.IntType)
		if !ok {
			return fg.errorf("%s operand v%d is %s", i.Operand, i.First, x.Type())
		}
		if isShift(i.Op) {
			y = fg.convertInt(y, xt)
		}
		switch i.Op {
		case ir.OpAdd:
			v = b.NewAdd(x, y)
		case ir.OpSub:
			v = b.NewSub(x, y)
		case ir.OpMul:
			v = b.NewMul(x, y)
		case ir.OpDiv:
			v = b.NewSDiv(x, y)
		case ir.OpRem:
			v = b.NewSRem(x, y)
		case ir.OpAnd:
			v = b.NewAnd(x, y)
		case ir.OpOr:
			v = b.NewOr(x, y)
		case ir.OpXor:
			v = b.NewXor(x, y)
		case ir.OpShl:
			v = b.NewShl(x, y)
		case ir.OpShr:
			v = b.NewAShr(x, y)
		case ir.OpShru:
			v = b.NewLShr(x, y)
		}
	case ir.NumFloat, ir.NumDouble:
		switch i.Op {
		case ir.OpAdd:
			v = b.NewFAdd(x, y)
		case ir.OpSub:
			v = b.NewFSub(x, y)
		case ir.OpMul:
			v = b.NewFMul(x, y)
		case ir.OpDiv:
			v = b.NewFDiv(x, y)
		case ir.OpRem:
			v = b.NewFRem(x, y)
		default:
			return fg.errorf("%s is not defined on %s", i.Op, i.Operand)
		}
	}
	if v == nil {
		return fg.errorf("cannot lower %s %s", i.Operand, i.Op)
	}
	fg.define(i.Receiver, v)
	return nil
}

func isShift(op ir.BinaryOp) bool {
	return op == ir.OpShl || op == ir.OpShr || op == ir.OpShru
}

// convertInt sign-extends or truncates an integer to the given width
func (fg *funcGen) convertInt(v value.Value, to *types.IntType) value.Value {
	from, ok := v.Type().(*types.IntType)
	if !ok || from.BitSize == to.BitSize {
		return v
	}
	if from.BitSize < to.BitSize {
		return fg.cur.NewSExt(v, to)
	}
	return fg.cur.NewTrunc(v, to)
}

func numericType(t ir.NumericType) types.Type {
	switch t {
	case ir.NumLong:
		return types.I64
	case ir.NumFloat:
		return types.Float
	case ir.NumDouble:
		return types.Double
	}
	return types.I32
}

func isIntegral(t ir.NumericType) bool {
	return t == ir.NumInt || t == ir.NumLong
}

func (fg *funcGen) lowerCast(i ir.Cast) error {
	x, err := fg.use(i.Value)
	if err != nil {
		return err
	}
	if i.From == i.To {
		fg.bind(i.Receiver, x)
		return nil
	}
	b := fg.cur
	to := numericType(i.To)
	var v value.Value
	switch {
	case isIntegral(i.From) && isIntegral(i.To):
		v = fg.convertInt(x, to.(*types.IntType))
	case isIntegral(i.From):
		v = b.NewSIToFP(x, to)
	case isIntegral(i.To):
		v = b.NewFPToSI(x, to)
	case i.To == ir.NumDouble:
		v = b.NewFPExt(x, to)
	default:
		v = b.NewFPTrunc(x, to)
	}
	fg.define(i.Receiver, v)
	return nil
}

func (fg *funcGen) lowerInvoke(i ir.Invoke) error {
	args, err := fg.uses(i.Arguments...)
	if err != nil {
		return err
	}
	if i.Instance != nil {
		inst, err := fg.use(*i.Instance)
		if err != nil {
			return err
		}
		args = append([]value.Value{inst}, args...)
	}

	var call *llvm.InstCall
	if i.Type == ir.InvokeVirtual {
		if i.Instance == nil {
			return fg.errorf("virtual call to %s without an instance", i.Method)
		}
		// The callee signature is the one of a direct call to the method
		sig := fg.g.function(i.Method, false).Sig
		resolve := fg.g.rt.helper(fnResolveVirtual, types.I8Ptr, false, types.I8Ptr, types.I8Ptr)
		target := fg.cur.NewCall(resolve, args[0], fg.name(i.Method.String()))
		callee := fg.cur.NewBitCast(target, types.NewPointer(sig))
		call = fg.cur.NewCall(callee, args...)
	} else {
		call = fg.cur.NewCall(fg.g.function(i.Method, i.Type == ir.InvokeStatic), args...)
	}
	if i.Receiver != nil {
		fg.define(*i.Receiver, call)
	}
	return nil
}

// fieldAddress returns a pointer to a static field's global or to an
// instance field within its object
func (fg *funcGen) fieldAddress(instance *ir.Var, field ir.FieldRef, typ ir.ValueType) (value.Value, error) {
	if instance == nil {
		return fg.g.staticField(field, typ), nil
	}
	obj, err := fg.use(*instance)
	if err != nil {
		return nil, err
	}
	f := fg.g.rt.helper(fnFieldAddress, types.I8Ptr, false, types.I8Ptr, types.I8Ptr)
	addr := fg.cur.NewCall(f, obj, fg.name(field.String()))
	return fg.cur.NewBitCast(addr, types.NewPointer(storageType(typ))), nil
}

func (fg *funcGen) elementAddress(array, index ir.Var, elem ir.ValueType) (value.Value, error) {
	vs, err := fg.uses(array, index)
	if err != nil {
		return nil, err
	}
	st := storageType(elem)
	f := fg.g.rt.helper(fnArrayData, types.I8Ptr, false, types.I8Ptr)
	data := fg.cur.NewBitCast(fg.cur.NewCall(f, vs[0]), types.NewPointer(st))
	return fg.cur.NewGetElementPtr(st, data, vs[1]), nil
}

// widen extends a value loaded from memory to its register type
func (fg *funcGen) widen(v value.Value, t ir.ValueType) value.Value {
	if storageType(t).Equal(valueType(t)) {
		return v
	}
	if t.Kind == ir.KindChar || t.Kind == ir.KindBoolean {
		return fg.cur.NewZExt(v, types.I32)
	}
	return fg.cur.NewSExt(v, types.I32)
}

// narrow truncates a register value to its in-memory type
func (fg *funcGen) narrow(v value.Value, t ir.ValueType) value.Value {
	st := storageType(t)
	if st.Equal(valueType(t)) {
		return v
	}
	return fg.cur.NewTrunc(v, st)
}

func (fg *funcGen) lowerBranch(i ir.Branch) error {
	x, err := fg.use(i.Operand)
	if err != nil {
		return err
	}
	pred, ok := intPreds[i.Cond]
	if !ok {
		return fg.errorf("unknown condition %s", i.Cond)
	}
	var zero value.Value
	switch t := x.Type().(type) {
	case *types.PointerType:
		if i.Cond != ir.CondNull && i.Cond != ir.CondNotNull {
			return fg.errorf("%s applied to a reference", i.Cond)
		}
		zero = constant.NewNull(t)
	case *types.IntType:
		if i.Cond == ir.CondNull || i.Cond == ir.CondNotNull {
			return fg.errorf("%s applied to an integer", i.Cond)
		}
		zero = zeroOf(t)
	default:
		return fg.errorf("cannot branch on %s", x.Type())
	}
	cmp := fg.cur.NewICmp(pred, x, zero)
	fg.cur.NewCondBr(cmp, fg.target(i.Consequent), fg.target(i.Alternative))
	return nil
}

func (fg *funcGen) lowerBinaryBranch(i ir.BinaryBranch) error {
	vs, err := fg.uses(i.First, i.Second)
	if err != nil {
		return err
	}
	if i.Cond == ir.CondNull || i.Cond == ir.CondNotNull {
		return fg.errorf("%s takes a single operand", i.Cond)
	}
	pred, ok := intPreds[i.Cond]
	if !ok {
		return fg.errorf("unknown condition %s", i.Cond)
	}
	ref := i.Cond == ir.CondRefEqual || i.Cond == ir.CondRefNotEqual
	if _, isPtr := vs[0].Type().(*types.PointerType); isPtr != ref {
		return fg.errorf("%s applied to %s", i.Cond, vs[0].Type())
	}
	cmp := fg.cur.NewICmp(pred, vs[0], vs[1])
	fg.cur.NewCondBr(cmp, fg.target(i.Consequent), fg.target(i.Alternative))
	return nil
}
