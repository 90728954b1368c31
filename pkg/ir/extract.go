package ir

// Defs returns the variables defined by an instruction
func Defs(instr Instruction) []Var {
	switch i := instr.(type) {
	case IntConst:
		return []Var{i.Receiver}
	case LongConst:
		return []Var{i.Receiver}
	case FloatConst:
		return []Var{i.Receiver}
	case DoubleConst:
		return []Var{i.Receiver}
	case StringConst:
		return []Var{i.Receiver}
	case NullConst:
		return []Var{i.Receiver}
	case Assign:
		return []Var{i.Receiver}
	case Binary:
		return []Var{i.Receiver}
	case Cast:
		return []Var{i.Receiver}
	case Construct:
		return []Var{i.Receiver}
	case ConstructArray:
		return []Var{i.Receiver}
	case ConstructMultiArray:
		return []Var{i.Receiver}
	case CloneArray:
		return []Var{i.Receiver}
	case Invoke:
		if i.Receiver != nil {
			return []Var{*i.Receiver}
		}
	case GetField:
		return []Var{i.Receiver}
	case ArrayLength:
		return []Var{i.Receiver}
	case GetElement:
		return []Var{i.Receiver}
	case IsInstance:
		return []Var{i.Receiver}
	}
	return nil
}

// Uses returns the variables read by an instruction
func Uses(instr Instruction) []Var {
	switch i := instr.(type) {
	case Assign:
		return []Var{i.Assignee}
	case Binary:
		return []Var{i.First, i.Second}
	case Cast:
		return []Var{i.Value}
	case ConstructArray:
		return []Var{i.Size}
	case ConstructMultiArray:
		return append([]Var(nil), i.Dimensions...)
	case CloneArray:
		return []Var{i.Array}
	case Invoke:
		var uses []Var
		if i.Instance != nil {
			uses = append(uses, *i.Instance)
		}
		return append(uses, i.Arguments...)
	case GetField:
		if i.Instance != nil {
			return []Var{*i.Instance}
		}
	case PutField:
		if i.Instance != nil {
			return []Var{*i.Instance, i.Value}
		}
		return []Var{i.Value}
	case ArrayLength:
		return []Var{i.Array}
	case GetElement:
		return []Var{i.Array, i.Index}
	case PutElement:
		return []Var{i.Array, i.Index, i.Value}
	case IsInstance:
		return []Var{i.Value}
	case Raise:
		return []Var{i.Exception}
	case Branch:
		return []Var{i.Operand}
	case BinaryBranch:
		return []Var{i.First, i.Second}
	case Switch:
		return []Var{i.Condition}
	case Exit:
		if i.Value != nil {
			return []Var{*i.Value}
		}
	}
	return nil
}

// Successors returns the block indices an instruction may branch to
func Successors(instr Instruction) []int {
	switch i := instr.(type) {
	case Jump:
		return []int{i.Target}
	case Branch:
		return []int{i.Consequent, i.Alternative}
	case BinaryBranch:
		return []int{i.Consequent, i.Alternative}
	case Switch:
		succs := make([]int, 0, len(i.Entries)+1)
		for _, e := range i.Entries {
			succs = append(succs, e.Target)
		}
		return append(succs, i.Default)
	}
	return nil
}

// IsTerminator reports whether an instruction ends a block
func IsTerminator(instr Instruction) bool {
	switch instr.(type) {
	case Jump, Branch, BinaryBranch, Switch, Exit, Raise:
		return true
	}
	return false
}

// IsSafepointKind reports whether an instruction is of a kind that may
// trigger garbage collection: calls, allocation, array cloning, class
// initialization and exception raising. Whether a particular invoke is a
// safepoint additionally depends on the callee being managed.
func IsSafepointKind(instr Instruction) bool {
	switch instr.(type) {
	case Invoke, Construct, ConstructArray, ConstructMultiArray, CloneArray, InitClass, Raise:
		return true
	}
	return false
}

// Terminator returns the last instruction of the block, or nil
func (b *BasicBlock) Terminator() Instruction {
	if len(b.Instructions) == 0 {
		return nil
	}
	return b.Instructions[len(b.Instructions)-1]
}
