// Package irload reads methods written in a YAML block notation and
// builds ir.Module values from them.
//
// A file holds a list of methods. Each method names its reference
// (Class.name(Params)Return) and lists its blocks in index order:
//
//	methods:
//	  - name: Foo.f(Ljava/lang/Object;)V
//	    static: true
//	    blocks:
//	      - instructions:
//	          - {op: string, recv: 2, value: hello}
//	          - {op: invoke, kind: static, method: Foo.gc()V}
//	          - {op: return}
//
// Operands of an instruction are listed in args; the meaning of each
// position depends on op (see lowerInstruction). Op and condition names
// follow the listing printer except where the listing word is a YAML
// keyword: the null constant is nullconst and the null test is isnull.
package irload

// File is the top-level document
type File struct {
	Methods []MethodSpec `yaml:"methods"`
}

// MethodSpec describes one method body. Variables is the size of the
// variable table; when zero it is derived from the highest variable
// mentioned.
type MethodSpec struct {
	Name      string      `yaml:"name"`
	Static    bool        `yaml:"static,omitempty"`
	Variables int         `yaml:"variables,omitempty"`
	Blocks    []BlockSpec `yaml:"blocks"`
}

// BlockSpec describes one basic block
type BlockSpec struct {
	Phis         []PhiSpec         `yaml:"phis,omitempty"`
	Exception    *int              `yaml:"exception,omitempty"`
	TryCatch     []TryCatchSpec    `yaml:"try_catch,omitempty"`
	Instructions []InstructionSpec `yaml:"instructions"`
}

// PhiSpec describes a phi node
type PhiSpec struct {
	Receiver  int            `yaml:"receiver"`
	Incomings []IncomingSpec `yaml:"incomings"`
}

// IncomingSpec is one phi input
type IncomingSpec struct {
	Value  int `yaml:"value"`
	Source int `yaml:"source"`
}

// TryCatchSpec routes exceptions of the block to a handler
type TryCatchSpec struct {
	Handler int    `yaml:"handler"`
	Type    string `yaml:"type,omitempty"`
}

// CaseSpec is one switch entry
type CaseSpec struct {
	Value  int32 `yaml:"value"`
	Target int   `yaml:"target"`
}

// InstructionSpec is the flat encoding of every instruction kind
type InstructionSpec struct {
	Op       string     `yaml:"op"`
	Recv     *int       `yaml:"recv,omitempty"`
	Args     []int      `yaml:"args,omitempty"`
	Value    string     `yaml:"value,omitempty"`
	Type     string     `yaml:"type,omitempty"`
	Method   string     `yaml:"method,omitempty"`
	Kind     string     `yaml:"kind,omitempty"`
	Instance *int       `yaml:"instance,omitempty"`
	Field    string     `yaml:"field,omitempty"`
	Bin      string     `yaml:"bin,omitempty"`
	From     string     `yaml:"from,omitempty"`
	To       string     `yaml:"to,omitempty"`
	Cond     string     `yaml:"cond,omitempty"`
	Then     *int       `yaml:"then,omitempty"`
	Else     *int       `yaml:"else,omitempty"`
	Target   *int       `yaml:"target,omitempty"`
	Cases    []CaseSpec `yaml:"cases,omitempty"`
	Default  *int       `yaml:"default,omitempty"`
}
