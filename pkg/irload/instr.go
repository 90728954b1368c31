package irload

import (
	"strconv"

	"github.com/raymyers/ralph-aot/pkg/ir"
)

var invocationTypes = map[string]ir.InvocationType{
	"virtual": ir.InvokeVirtual,
	"special": ir.InvokeSpecial,
	"static":  ir.InvokeStatic,
}

var numericTypes = map[string]ir.NumericType{
	"int":    ir.NumInt,
	"long":   ir.NumLong,
	"float":  ir.NumFloat,
	"double": ir.NumDouble,
}

var binaryOps = map[string]ir.BinaryOp{
	"add":  ir.OpAdd,
	"sub":  ir.OpSub,
	"mul":  ir.OpMul,
	"div":  ir.OpDiv,
	"rem":  ir.OpRem,
	"and":  ir.OpAnd,
	"or":   ir.OpOr,
	"xor":  ir.OpXor,
	"shl":  ir.OpShl,
	"shr":  ir.OpShr,
	"shru": ir.OpShru,
}

var conditions = map[string]ir.BranchCondition{
	"eq":      ir.CondEqual,
	"ne":      ir.CondNotEqual,
	"lt":      ir.CondLess,
	"ge":      ir.CondGreaterOrEqual,
	"gt":      ir.CondGreater,
	"le":      ir.CondLessOrEqual,
	"isnull":  ir.CondNull,
	"notnull": ir.CondNotNull,
	"refeq":   ir.CondRefEqual,
	"refne":   ir.CondRefNotEqual,
}

// unaryConditions may be used with a single operand
var unaryConditions = map[ir.BranchCondition]bool{
	ir.CondEqual: true, ir.CondNotEqual: true, ir.CondLess: true,
	ir.CondGreaterOrEqual: true, ir.CondGreater: true, ir.CondLessOrEqual: true,
	ir.CondNull: true, ir.CondNotNull: true,
}

// lowerInstruction converts one instruction. Operand positions in args:
//
//	assign, clone, length, throw    [value]
//	binary                          [first, second]
//	cast, instanceof                [value]
//	newarray                        [size]
//	newmultiarray                   [dim...]
//	invoke                          [arg...]
//	putfield                        [value]
//	getelement                      [array, index]
//	putelement                      [array, index, value]
//	if                              [operand] or [first, second]
//	switch                          [condition]
//	return                          [] or [value]
func (b *builder) lowerInstruction(s InstructionSpec) (ir.Instruction, error) {
	switch s.Op {
	case "int":
		recv, err := b.recv(s)
		if err != nil {
			return nil, err
		}
		v, err := strconv.ParseInt(s.Value, 0, 32)
		if err != nil {
			return nil, b.errorf("bad int constant %q", s.Value)
		}
		return ir.IntConst{Receiver: recv, Value: int32(v)}, nil
	case "long":
		recv, err := b.recv(s)
		if err != nil {
			return nil, err
		}
		v, err := strconv.ParseInt(s.Value, 0, 64)
		if err != nil {
			return nil, b.errorf("bad long constant %q", s.Value)
		}
		return ir.LongConst{Receiver: recv, Value: v}, nil
	case "float":
		recv, err := b.recv(s)
		if err != nil {
			return nil, err
		}
		v, err := strconv.ParseFloat(s.Value, 32)
		if err != nil {
			return nil, b.errorf("bad float constant %q", s.Value)
		}
		return ir.FloatConst{Receiver: recv, Value: float32(v)}, nil
	case "double":
		recv, err := b.recv(s)
		if err != nil {
			return nil, err
		}
		v, err := strconv.ParseFloat(s.Value, 64)
		if err != nil {
			return nil, b.errorf("bad double constant %q", s.Value)
		}
		return ir.DoubleConst{Receiver: recv, Value: v}, nil
	case "string":
		recv, err := b.recv(s)
		if err != nil {
			return nil, err
		}
		return ir.StringConst{Receiver: recv, Value: s.Value}, nil
	case "nullconst":
		recv, err := b.recv(s)
		if err != nil {
			return nil, err
		}
		return ir.NullConst{Receiver: recv}, nil

	case "assign":
		recv, args, err := b.recvArgs(s, 1)
		if err != nil {
			return nil, err
		}
		return ir.Assign{Receiver: recv, Assignee: args[0]}, nil
	case "binary":
		recv, args, err := b.recvArgs(s, 2)
		if err != nil {
			return nil, err
		}
		op, ok := binaryOps[s.Bin]
		if !ok {
			return nil, b.errorf("unknown binary operator %q", s.Bin)
		}
		operand, err := b.numeric(s.Kind, "int")
		if err != nil {
			return nil, err
		}
		return ir.Binary{Op: op, Operand: operand, Receiver: recv, First: args[0], Second: args[1]}, nil
	case "cast":
		recv, args, err := b.recvArgs(s, 1)
		if err != nil {
			return nil, err
		}
		from, err := b.numeric(s.From, "")
		if err != nil {
			return nil, err
		}
		to, err := b.numeric(s.To, "")
		if err != nil {
			return nil, err
		}
		return ir.Cast{Receiver: recv, Value: args[0], From: from, To: to}, nil

	case "new":
		recv, err := b.recv(s)
		if err != nil {
			return nil, err
		}
		if s.Type == "" {
			return nil, b.errorf("new needs a class type")
		}
		return ir.Construct{Receiver: recv, Type: s.Type}, nil
	case "newarray":
		recv, args, err := b.recvArgs(s, 1)
		if err != nil {
			return nil, err
		}
		item, err := b.valueType(s.Type)
		if err != nil {
			return nil, err
		}
		return ir.ConstructArray{Receiver: recv, Size: args[0], ItemType: item}, nil
	case "newmultiarray":
		recv, err := b.recv(s)
		if err != nil {
			return nil, err
		}
		if len(s.Args) == 0 {
			return nil, b.errorf("newmultiarray needs at least one dimension")
		}
		dims, err := b.args(s, len(s.Args))
		if err != nil {
			return nil, err
		}
		item, err := b.valueType(s.Type)
		if err != nil {
			return nil, err
		}
		return ir.ConstructMultiArray{Receiver: recv, Dimensions: dims, ItemType: item}, nil
	case "clone":
		recv, args, err := b.recvArgs(s, 1)
		if err != nil {
			return nil, err
		}
		return ir.CloneArray{Receiver: recv, Array: args[0]}, nil
	case "initclass":
		if s.Type == "" {
			return nil, b.errorf("initclass needs a class type")
		}
		return ir.InitClass{ClassName: s.Type}, nil

	case "invoke":
		return b.invoke(s)
	case "getfield":
		recv, err := b.recv(s)
		if err != nil {
			return nil, err
		}
		inst, field, typ, err := b.fieldAccess(s)
		if err != nil {
			return nil, err
		}
		return ir.GetField{Receiver: recv, Instance: inst, Field: field, FieldType: typ}, nil
	case "putfield":
		args, err := b.args(s, 1)
		if err != nil {
			return nil, err
		}
		inst, field, typ, err := b.fieldAccess(s)
		if err != nil {
			return nil, err
		}
		return ir.PutField{Instance: inst, Field: field, FieldType: typ, Value: args[0]}, nil
	case "length":
		recv, args, err := b.recvArgs(s, 1)
		if err != nil {
			return nil, err
		}
		return ir.ArrayLength{Receiver: recv, Array: args[0]}, nil
	case "getelement":
		recv, args, err := b.recvArgs(s, 2)
		if err != nil {
			return nil, err
		}
		elem, err := b.valueType(s.Type)
		if err != nil {
			return nil, err
		}
		return ir.GetElement{Receiver: recv, Array: args[0], Index: args[1], ElemType: elem}, nil
	case "putelement":
		args, err := b.args(s, 3)
		if err != nil {
			return nil, err
		}
		elem, err := b.valueType(s.Type)
		if err != nil {
			return nil, err
		}
		return ir.PutElement{Array: args[0], Index: args[1], Value: args[2], ElemType: elem}, nil
	case "instanceof":
		recv, args, err := b.recvArgs(s, 1)
		if err != nil {
			return nil, err
		}
		typ, err := b.valueType(s.Type)
		if err != nil {
			return nil, err
		}
		return ir.IsInstance{Receiver: recv, Value: args[0], Type: typ}, nil

	case "throw":
		args, err := b.args(s, 1)
		if err != nil {
			return nil, err
		}
		return ir.Raise{Exception: args[0]}, nil
	case "goto":
		t, err := b.requiredTarget(s.Target, "target")
		if err != nil {
			return nil, err
		}
		return ir.Jump{Target: t}, nil
	case "if":
		return b.branch(s)
	case "switch":
		return b.switchInstr(s)
	case "return":
		if len(s.Args) == 0 {
			return ir.Exit{}, nil
		}
		args, err := b.args(s, 1)
		if err != nil {
			return nil, err
		}
		return ir.Exit{Value: ir.VarRef(args[0])}, nil
	case "":
		return nil, b.errorf("instruction has no op")
	}
	return nil, b.errorf("unknown op %q", s.Op)
}

func (b *builder) recv(s InstructionSpec) (ir.Var, error) {
	if s.Recv == nil {
		return 0, b.errorf("%s needs a receiver", s.Op)
	}
	return b.variable(*s.Recv)
}

func (b *builder) optionalVar(x *int) (*ir.Var, error) {
	if x == nil {
		return nil, nil
	}
	v, err := b.variable(*x)
	if err != nil {
		return nil, err
	}
	return ir.VarRef(v), nil
}

func (b *builder) args(s InstructionSpec, n int) ([]ir.Var, error) {
	if len(s.Args) != n {
		return nil, b.errorf("%s takes %d operands, got %d", s.Op, n, len(s.Args))
	}
	vars := make([]ir.Var, n)
	for i, a := range s.Args {
		v, err := b.variable(a)
		if err != nil {
			return nil, err
		}
		vars[i] = v
	}
	return vars, nil
}

func (b *builder) recvArgs(s InstructionSpec, n int) (ir.Var, []ir.Var, error) {
	recv, err := b.recv(s)
	if err != nil {
		return 0, nil, err
	}
	args, err := b.args(s, n)
	return recv, args, err
}

func (b *builder) numeric(name, fallback string) (ir.NumericType, error) {
	if name == "" {
		name = fallback
	}
	t, ok := numericTypes[name]
	if !ok {
		return 0, b.errorf("unknown numeric type %q", name)
	}
	return t, nil
}

func (b *builder) valueType(desc string) (ir.ValueType, error) {
	t, err := ir.ParseType(desc)
	if err != nil {
		return ir.ValueType{}, b.errorf("%v", err)
	}
	if t.Kind == ir.KindVoid {
		return ir.ValueType{}, b.errorf("void is not a value type")
	}
	return t, nil
}

func (b *builder) requiredTarget(x *int, what string) (int, error) {
	if x == nil {
		return 0, b.errorf("missing %s block", what)
	}
	return b.target(*x)
}

// invoke defaults to static dispatch without an instance and virtual
// dispatch with one
func (b *builder) invoke(s InstructionSpec) (ir.Instruction, error) {
	ref, err := ir.ParseMethodRef(s.Method)
	if err != nil {
		return nil, b.errorf("%v", err)
	}
	kind := s.Kind
	if kind == "" {
		kind = "static"
		if s.Instance != nil {
			kind = "virtual"
		}
	}
	typ, ok := invocationTypes[kind]
	if !ok {
		return nil, b.errorf("unknown invocation type %q", kind)
	}
	if typ == ir.InvokeStatic && s.Instance != nil {
		return nil, b.errorf("static invoke of %s has an instance", ref)
	}
	if typ != ir.InvokeStatic && s.Instance == nil {
		return nil, b.errorf("%s invoke of %s needs an instance", kind, ref)
	}
	if len(s.Args) != len(ref.Params) {
		return nil, b.errorf("%s takes %d arguments, got %d", ref, len(ref.Params), len(s.Args))
	}
	args, err := b.args(s, len(s.Args))
	if err != nil {
		return nil, err
	}
	inst, err := b.optionalVar(s.Instance)
	if err != nil {
		return nil, err
	}
	recv, err := b.optionalVar(s.Recv)
	if err != nil {
		return nil, err
	}
	if recv != nil && ref.Return.Kind == ir.KindVoid {
		return nil, b.errorf("void method %s cannot have a receiver", ref)
	}
	return ir.Invoke{Type: typ, Method: ref, Instance: inst, Arguments: args, Receiver: recv}, nil
}

func (b *builder) fieldAccess(s InstructionSpec) (*ir.Var, ir.FieldRef, ir.ValueType, error) {
	field, err := ir.ParseFieldRef(s.Field)
	if err != nil {
		return nil, ir.FieldRef{}, ir.ValueType{}, b.errorf("%v", err)
	}
	typ, err := b.valueType(s.Type)
	if err != nil {
		return nil, ir.FieldRef{}, ir.ValueType{}, err
	}
	inst, err := b.optionalVar(s.Instance)
	if err != nil {
		return nil, ir.FieldRef{}, ir.ValueType{}, err
	}
	return inst, field, typ, nil
}

func (b *builder) branch(s InstructionSpec) (ir.Instruction, error) {
	cond, ok := conditions[s.Cond]
	if !ok {
		return nil, b.errorf("unknown condition %q", s.Cond)
	}
	then, err := b.requiredTarget(s.Then, "then")
	if err != nil {
		return nil, err
	}
	els, err := b.requiredTarget(s.Else, "else")
	if err != nil {
		return nil, err
	}
	switch len(s.Args) {
	case 1:
		if !unaryConditions[cond] {
			return nil, b.errorf("condition %s needs two operands", cond)
		}
		args, err := b.args(s, 1)
		if err != nil {
			return nil, err
		}
		return ir.Branch{Cond: cond, Operand: args[0], Consequent: then, Alternative: els}, nil
	case 2:
		if cond == ir.CondNull || cond == ir.CondNotNull {
			return nil, b.errorf("condition %s takes one operand", cond)
		}
		args, err := b.args(s, 2)
		if err != nil {
			return nil, err
		}
		return ir.BinaryBranch{Cond: cond, First: args[0], Second: args[1], Consequent: then, Alternative: els}, nil
	}
	return nil, b.errorf("if takes one or two operands, got %d", len(s.Args))
}

func (b *builder) switchInstr(s InstructionSpec) (ir.Instruction, error) {
	args, err := b.args(s, 1)
	if err != nil {
		return nil, err
	}
	def, err := b.requiredTarget(s.Default, "default")
	if err != nil {
		return nil, err
	}
	sw := ir.Switch{Condition: args[0], Default: def}
	seen := make(map[int32]bool)
	for _, c := range s.Cases {
		if seen[c.Value] {
			return nil, b.errorf("duplicate switch case %d", c.Value)
		}
		seen[c.Value] = true
		t, err := b.target(c.Target)
		if err != nil {
			return nil, err
		}
		sw.Entries = append(sw.Entries, ir.SwitchEntry{Condition: c.Value, Target: t})
	}
	return sw, nil
}
