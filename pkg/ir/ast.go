// Package ir defines the managed program model consumed by the back end.
// A method body is a control-flow graph of basic blocks over versioned (SSA)
// variables. Blocks hold phi nodes followed by a list of instructions; the
// last instruction of a block is its terminator.
package ir

// Var is an index into a method's variable table.
// Variable 0 is the implicit receiver slot, variables 1..n are parameters.
type Var int

// InvocationType selects how a method is dispatched
type InvocationType int

const (
	InvokeVirtual InvocationType = iota
	InvokeSpecial
	InvokeStatic
)

func (t InvocationType) String() string {
	names := []string{"virtual", "special", "static"}
	if int(t) < len(names) {
		return names[t]
	}
	return "?"
}

// NumericType is the operand type of arithmetic instructions
type NumericType int

const (
	NumInt NumericType = iota
	NumLong
	NumFloat
	NumDouble
)

func (t NumericType) String() string {
	names := []string{"int", "long", "float", "double"}
	if int(t) < len(names) {
		return names[t]
	}
	return "?"
}

// BinaryOp is an arithmetic or bitwise operator
type BinaryOp int

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpRem
	OpAnd
	OpOr
	OpXor
	OpShl
	OpShr
	OpShru
)

func (o BinaryOp) String() string {
	names := []string{"add", "sub", "mul", "div", "rem", "and", "or", "xor", "shl", "shr", "shru"}
	if int(o) < len(names) {
		return names[o]
	}
	return "?"
}

// BranchCondition is the condition of a branch instruction
type BranchCondition int

const (
	CondEqual BranchCondition = iota
	CondNotEqual
	CondLess
	CondGreaterOrEqual
	CondGreater
	CondLessOrEqual
	CondNull
	CondNotNull
	CondRefEqual
	CondRefNotEqual
)

func (c BranchCondition) String() string {
	names := []string{"eq", "ne", "lt", "ge", "gt", "le", "null", "notnull", "refeq", "refne"}
	if int(c) < len(names) {
		return names[c]
	}
	return "?"
}

// --- Instruction Types ---

// Instruction is the interface for all program instructions
type Instruction interface {
	implInstruction()
}

// IntConst loads an int constant
type IntConst struct {
	Receiver Var
	Value    int32
}

// LongConst loads a long constant
type LongConst struct {
	Receiver Var
	Value    int64
}

// FloatConst loads a float constant
type FloatConst struct {
	Receiver Var
	Value    float32
}

// DoubleConst loads a double constant
type DoubleConst struct {
	Receiver Var
	Value    float64
}

// StringConst loads a reference to an interned string
type StringConst struct {
	Receiver Var
	Value    string
}

// NullConst loads the null reference
type NullConst struct {
	Receiver Var
}

// Assign copies a variable: receiver = assignee
type Assign struct {
	Receiver Var
	Assignee Var
}

// Binary performs receiver = first op second
type Binary struct {
	Op       BinaryOp
	Operand  NumericType
	Receiver Var
	First    Var
	Second   Var
}

// Cast converts a numeric value between operand types
type Cast struct {
	Receiver Var
	Value    Var
	From     NumericType
	To       NumericType
}

// Construct allocates a new object of the given class
type Construct struct {
	Receiver Var
	Type     string
}

// ConstructArray allocates a one-dimensional array
type ConstructArray struct {
	Receiver Var
	Size     Var
	ItemType ValueType
}

// ConstructMultiArray allocates a multi-dimensional array with one
// dimension per entry of Dimensions. ItemType is the innermost element type.
type ConstructMultiArray struct {
	Receiver   Var
	Dimensions []Var
	ItemType   ValueType
}

// CloneArray performs a shallow copy of an array
type CloneArray struct {
	Receiver Var
	Array    Var
}

// InitClass runs the static initializer of a class if needed
type InitClass struct {
	ClassName string
}

// Invoke calls a method. Instance is nil for static calls, Receiver is nil
// when the result is discarded or the method returns void.
type Invoke struct {
	Type      InvocationType
	Method    MethodRef
	Instance  *Var
	Arguments []Var
	Receiver  *Var
}

// GetField reads an instance field (or a static field when Instance is nil)
type GetField struct {
	Receiver  Var
	Instance  *Var
	Field     FieldRef
	FieldType ValueType
}

// PutField writes an instance field (or a static field when Instance is nil)
type PutField struct {
	Instance  *Var
	Field     FieldRef
	FieldType ValueType
	Value     Var
}

// ArrayLength reads the length of an array
type ArrayLength struct {
	Receiver Var
	Array    Var
}

// GetElement reads an array element
type GetElement struct {
	Receiver Var
	Array    Var
	Index    Var
	ElemType ValueType
}

// PutElement writes an array element
type PutElement struct {
	Array    Var
	Index    Var
	Value    Var
	ElemType ValueType
}

// IsInstance tests whether a reference is an instance of a type
type IsInstance struct {
	Receiver Var
	Value    Var
	Type     ValueType
}

// Raise throws an exception; it terminates its block
type Raise struct {
	Exception Var
}

// Jump is an unconditional branch
type Jump struct {
	Target int
}

// Branch compares one operand against zero (or null)
type Branch struct {
	Cond        BranchCondition
	Operand     Var
	Consequent  int
	Alternative int
}

// BinaryBranch compares two operands
type BinaryBranch struct {
	Cond        BranchCondition
	First       Var
	Second      Var
	Consequent  int
	Alternative int
}

// SwitchEntry is one case of a Switch
type SwitchEntry struct {
	Condition int32
	Target    int
}

// Switch is an indexed branch over int constants
type Switch struct {
	Condition Var
	Entries   []SwitchEntry
	Default   int
}

// Exit returns from the method
type Exit struct {
	Value *Var // nil for void
}

// Marker methods for Instruction interface
func (IntConst) implInstruction()            {}
func (LongConst) implInstruction()           {}
func (FloatConst) implInstruction()          {}
func (DoubleConst) implInstruction()         {}
func (StringConst) implInstruction()         {}
func (NullConst) implInstruction()           {}
func (Assign) implInstruction()              {}
func (Binary) implInstruction()              {}
func (Cast) implInstruction()                {}
func (Construct) implInstruction()           {}
func (ConstructArray) implInstruction()      {}
func (ConstructMultiArray) implInstruction() {}
func (CloneArray) implInstruction()          {}
func (InitClass) implInstruction()           {}
func (Invoke) implInstruction()              {}
func (GetField) implInstruction()            {}
func (PutField) implInstruction()            {}
func (ArrayLength) implInstruction()         {}
func (GetElement) implInstruction()          {}
func (PutElement) implInstruction()          {}
func (IsInstance) implInstruction()          {}
func (Raise) implInstruction()               {}
func (Jump) implInstruction()                {}
func (Branch) implInstruction()              {}
func (BinaryBranch) implInstruction()        {}
func (Switch) implInstruction()              {}
func (Exit) implInstruction()                {}

// --- Blocks and Programs ---

// Incoming is one input of a phi node: the value flowing in from Source
type Incoming struct {
	Value  Var
	Source int // predecessor block index
}

// Phi merges values from predecessor blocks
type Phi struct {
	Receiver  Var
	Incomings []Incoming
}

// TryCatch routes exceptions raised inside a block to a handler block
type TryCatch struct {
	Handler       int
	ExceptionType string // empty catches everything
}

// BasicBlock is a straight-line sequence of instructions
type BasicBlock struct {
	Index             int
	Phis              []*Phi
	Instructions      []Instruction
	ExceptionVariable *Var // defined on entry when the block is a handler
	TryCatches        []TryCatch
}

// Program is the body of a single method
type Program struct {
	Blocks   []*BasicBlock
	varCount int
}

// NewProgram creates an empty program with the given number of variables
func NewProgram(varCount int) *Program {
	return &Program{varCount: varCount}
}

// CreateBlock appends a new empty block and returns it
func (p *Program) CreateBlock() *BasicBlock {
	b := &BasicBlock{Index: len(p.Blocks)}
	p.Blocks = append(p.Blocks, b)
	return b
}

// CreateVariable allocates a fresh variable
func (p *Program) CreateVariable() Var {
	v := Var(p.varCount)
	p.varCount++
	return v
}

// VariableCount returns the size of the variable table
func (p *Program) VariableCount() int {
	return p.varCount
}

// EnsureVariables grows the variable table to at least n entries
func (p *Program) EnsureVariables(n int) {
	if n > p.varCount {
		p.varCount = n
	}
}

// BlockCount returns the number of basic blocks
func (p *Program) BlockCount() int {
	return len(p.Blocks)
}

// BlockAt returns the block with the given index
func (p *Program) BlockAt(i int) *BasicBlock {
	return p.Blocks[i]
}

// Copy returns a copy of the program structure. Instructions are never
// mutated in place, so copying the instruction slices isolates insertions.
func (p *Program) Copy() *Program {
	c := &Program{varCount: p.varCount, Blocks: make([]*BasicBlock, len(p.Blocks))}
	for i, b := range p.Blocks {
		nb := &BasicBlock{
			Index:        b.Index,
			Instructions: append([]Instruction(nil), b.Instructions...),
			TryCatches:   append([]TryCatch(nil), b.TryCatches...),
		}
		if b.ExceptionVariable != nil {
			v := *b.ExceptionVariable
			nb.ExceptionVariable = &v
		}
		for _, phi := range b.Phis {
			nb.Phis = append(nb.Phis, &Phi{
				Receiver:  phi.Receiver,
				Incomings: append([]Incoming(nil), phi.Incomings...),
			})
		}
		c.Blocks[i] = nb
	}
	return c
}

// Method pairs a reader-level descriptor with its body
type Method struct {
	Descriptor MethodDescriptor
	Program    *Program
}

// Module is a compilation unit: a list of methods
type Module struct {
	Methods []*Method
}

// VarRef returns a pointer to v, for optional operands
func VarRef(v Var) *Var {
	return &v
}
