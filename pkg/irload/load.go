package irload

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/raymyers/ralph-aot/pkg/ir"
)

// Error reports an invalid method together with its position.
// Block and Instruction are -1 when the error is not tied to one.
type Error struct {
	Method      string
	Block       int
	Instruction int
	Msg         string
}

func (e *Error) Error() string {
	switch {
	case e.Block < 0:
		return fmt.Sprintf("%s: %s", e.Method, e.Msg)
	case e.Instruction < 0:
		return fmt.Sprintf("%s: b%d: %s", e.Method, e.Block, e.Msg)
	}
	return fmt.Sprintf("%s: b%d[%d]: %s", e.Method, e.Block, e.Instruction, e.Msg)
}

// LoadFile reads a module from a YAML file
func LoadFile(path string) (*ir.Module, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	mod, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return mod, nil
}

// Parse reads a module from YAML source
func Parse(data []byte) (*ir.Module, error) {
	return Load(bytes.NewReader(data))
}

// Load decodes a module. Unknown keys are rejected.
func Load(r io.Reader) (*ir.Module, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var file File
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return &ir.Module{}, nil
		}
		return nil, fmt.Errorf("decode: %w", err)
	}
	return Build(&file)
}

// Build converts a decoded file into a module, validating every operand
func Build(file *File) (*ir.Module, error) {
	mod := &ir.Module{}
	for _, ms := range file.Methods {
		m, err := buildMethod(ms)
		if err != nil {
			return nil, err
		}
		mod.Methods = append(mod.Methods, m)
	}
	return mod, nil
}

type builder struct {
	method string
	block  int
	instr  int
	blocks int
	limit  int // 0 when the variable table is sized from use
	maxVar int
}

func (b *builder) errorf(format string, args ...any) *Error {
	return &Error{Method: b.method, Block: b.block, Instruction: b.instr, Msg: fmt.Sprintf(format, args...)}
}

func (b *builder) variable(x int) (ir.Var, error) {
	if x < 0 || (b.limit > 0 && x >= b.limit) {
		return 0, b.errorf("variable v%d out of range", x)
	}
	if x > b.maxVar {
		b.maxVar = x
	}
	return ir.Var(x), nil
}

func (b *builder) target(x int) (int, error) {
	if x < 0 || x >= b.blocks {
		return 0, b.errorf("block b%d out of range", x)
	}
	return x, nil
}

func buildMethod(ms MethodSpec) (*ir.Method, error) {
	b := &builder{method: ms.Name, block: -1, instr: -1, blocks: len(ms.Blocks), limit: ms.Variables, maxVar: -1}
	ref, err := ir.ParseMethodRef(ms.Name)
	if err != nil {
		return nil, b.errorf("%v", err)
	}
	if ms.Variables < 0 {
		return nil, b.errorf("negative variable count %d", ms.Variables)
	}
	if len(ms.Blocks) == 0 {
		return nil, b.errorf("method has no blocks")
	}
	desc := ir.MethodDescriptor{Ref: ref, Static: ms.Static}
	if ms.Variables > 0 && ms.Variables <= desc.ParameterCount() {
		return nil, b.errorf("%d variables cannot hold %d parameters", ms.Variables, desc.ParameterCount())
	}

	prog := ir.NewProgram(0)
	for i, bs := range ms.Blocks {
		b.block, b.instr = i, -1
		if err := b.buildBlock(prog.CreateBlock(), bs); err != nil {
			return nil, err
		}
	}

	n := ms.Variables
	if n == 0 {
		n = max(b.maxVar+1, desc.ParameterCount()+1)
	}
	prog.EnsureVariables(n)
	return &ir.Method{Descriptor: desc, Program: prog}, nil
}

func (b *builder) buildBlock(block *ir.BasicBlock, bs BlockSpec) error {
	if bs.Exception != nil {
		v, err := b.variable(*bs.Exception)
		if err != nil {
			return err
		}
		block.ExceptionVariable = ir.VarRef(v)
	}
	for _, tc := range bs.TryCatch {
		h, err := b.target(tc.Handler)
		if err != nil {
			return err
		}
		block.TryCatches = append(block.TryCatches, ir.TryCatch{Handler: h, ExceptionType: tc.Type})
	}
	for _, ps := range bs.Phis {
		phi, err := b.buildPhi(ps)
		if err != nil {
			return err
		}
		block.Phis = append(block.Phis, phi)
	}

	if len(bs.Instructions) == 0 {
		return b.errorf("block has no instructions")
	}
	for j, is := range bs.Instructions {
		b.instr = j
		instr, err := b.lowerInstruction(is)
		if err != nil {
			return err
		}
		last := j == len(bs.Instructions)-1
		if ir.IsTerminator(instr) != last {
			if last {
				return b.errorf("block does not end with a terminator")
			}
			return b.errorf("%s in the middle of a block", is.Op)
		}
		block.Instructions = append(block.Instructions, instr)
	}
	return nil
}

func (b *builder) buildPhi(ps PhiSpec) (*ir.Phi, error) {
	recv, err := b.variable(ps.Receiver)
	if err != nil {
		return nil, err
	}
	if len(ps.Incomings) == 0 {
		return nil, b.errorf("phi v%d has no incomings", recv)
	}
	phi := &ir.Phi{Receiver: recv}
	for _, inc := range ps.Incomings {
		v, err := b.variable(inc.Value)
		if err != nil {
			return nil, err
		}
		src, err := b.target(inc.Source)
		if err != nil {
			return nil, err
		}
		phi.Incomings = append(phi.Incomings, ir.Incoming{Value: v, Source: src})
	}
	return phi, nil
}
