// Listing output for the program model. The format is line oriented:
// one label per block, phis first, then instructions.

package ir

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Printer outputs methods in a deterministic textual listing
type Printer struct {
	w io.Writer
}

// NewPrinter creates a new listing printer
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// PrintModule prints every method of a module
func (p *Printer) PrintModule(mod *Module) {
	for i, m := range mod.Methods {
		p.PrintMethod(m)
		if i < len(mod.Methods)-1 {
			fmt.Fprintln(p.w)
		}
	}
}

// PrintMethod prints a method header followed by its blocks
func (p *Printer) PrintMethod(m *Method) {
	kind := "method"
	if m.Descriptor.Static {
		kind = "static method"
	}
	fmt.Fprintf(p.w, "%s %s {\n", kind, m.Descriptor.Name())
	p.PrintProgram(m.Program)
	fmt.Fprintln(p.w, "}")
}

// PrintProgram prints the blocks of a program
func (p *Printer) PrintProgram(prog *Program) {
	for _, b := range prog.Blocks {
		fmt.Fprintf(p.w, "b%d:", b.Index)
		if b.ExceptionVariable != nil {
			fmt.Fprintf(p.w, " catch v%d", *b.ExceptionVariable)
		}
		fmt.Fprintln(p.w)
		for _, phi := range b.Phis {
			fmt.Fprintf(p.w, "  v%d = phi", phi.Receiver)
			for j, inc := range phi.Incomings {
				if j > 0 {
					fmt.Fprint(p.w, ",")
				}
				fmt.Fprintf(p.w, " [v%d, b%d]", inc.Value, inc.Source)
			}
			fmt.Fprintln(p.w)
		}
		for _, instr := range b.Instructions {
			fmt.Fprintf(p.w, "  %s\n", FormatInstruction(instr))
		}
		for _, tc := range b.TryCatches {
			typ := tc.ExceptionType
			if typ == "" {
				typ = "*"
			}
			fmt.Fprintf(p.w, "  try %s goto b%d\n", typ, tc.Handler)
		}
	}
}

// FormatInstruction renders a single instruction
func FormatInstruction(instr Instruction) string {
	switch i := instr.(type) {
	case IntConst:
		return fmt.Sprintf("v%d = int %d", i.Receiver, i.Value)
	case LongConst:
		return fmt.Sprintf("v%d = long %dL", i.Receiver, i.Value)
	case FloatConst:
		return fmt.Sprintf("v%d = float %s", i.Receiver, strconv.FormatFloat(float64(i.Value), 'g', -1, 32))
	case DoubleConst:
		return fmt.Sprintf("v%d = double %s", i.Receiver, strconv.FormatFloat(i.Value, 'g', -1, 64))
	case StringConst:
		return fmt.Sprintf("v%d = string %q", i.Receiver, i.Value)
	case NullConst:
		return fmt.Sprintf("v%d = null", i.Receiver)
	case Assign:
		return fmt.Sprintf("v%d = v%d", i.Receiver, i.Assignee)
	case Binary:
		return fmt.Sprintf("v%d = %s %s v%d, v%d", i.Receiver, i.Op, i.Operand, i.First, i.Second)
	case Cast:
		return fmt.Sprintf("v%d = cast %s to %s v%d", i.Receiver, i.From, i.To, i.Value)
	case Construct:
		return fmt.Sprintf("v%d = new %s", i.Receiver, i.Type)
	case ConstructArray:
		return fmt.Sprintf("v%d = newarray %s[v%d]", i.Receiver, i.ItemType, i.Size)
	case ConstructMultiArray:
		return fmt.Sprintf("v%d = newmultiarray %s[%s]", i.Receiver, i.ItemType, formatVars(i.Dimensions))
	case CloneArray:
		return fmt.Sprintf("v%d = clone v%d", i.Receiver, i.Array)
	case InitClass:
		return fmt.Sprintf("initclass %s", i.ClassName)
	case Invoke:
		return formatInvoke(i)
	case GetField:
		if i.Instance == nil {
			return fmt.Sprintf("v%d = getstatic %s as %s", i.Receiver, i.Field, i.FieldType)
		}
		return fmt.Sprintf("v%d = v%d.%s as %s", i.Receiver, *i.Instance, i.Field, i.FieldType)
	case PutField:
		if i.Instance == nil {
			return fmt.Sprintf("putstatic %s = v%d as %s", i.Field, i.Value, i.FieldType)
		}
		return fmt.Sprintf("v%d.%s = v%d as %s", *i.Instance, i.Field, i.Value, i.FieldType)
	case ArrayLength:
		return fmt.Sprintf("v%d = length v%d", i.Receiver, i.Array)
	case GetElement:
		return fmt.Sprintf("v%d = v%d[v%d] as %s", i.Receiver, i.Array, i.Index, i.ElemType)
	case PutElement:
		return fmt.Sprintf("v%d[v%d] = v%d as %s", i.Array, i.Index, i.Value, i.ElemType)
	case IsInstance:
		return fmt.Sprintf("v%d = v%d instanceof %s", i.Receiver, i.Value, i.Type)
	case Raise:
		return fmt.Sprintf("throw v%d", i.Exception)
	case Jump:
		return fmt.Sprintf("goto b%d", i.Target)
	case Branch:
		return fmt.Sprintf("if v%d %s then b%d else b%d", i.Operand, i.Cond, i.Consequent, i.Alternative)
	case BinaryBranch:
		return fmt.Sprintf("if v%d %s v%d then b%d else b%d", i.First, i.Cond, i.Second, i.Consequent, i.Alternative)
	case Switch:
		var sb strings.Builder
		fmt.Fprintf(&sb, "switch v%d", i.Condition)
		for _, e := range i.Entries {
			fmt.Fprintf(&sb, " %d: b%d", e.Condition, e.Target)
		}
		fmt.Fprintf(&sb, " default: b%d", i.Default)
		return sb.String()
	case Exit:
		if i.Value == nil {
			return "return"
		}
		return fmt.Sprintf("return v%d", *i.Value)
	}
	return "???"
}

func formatInvoke(i Invoke) string {
	var sb strings.Builder
	if i.Receiver != nil {
		fmt.Fprintf(&sb, "v%d = ", *i.Receiver)
	}
	fmt.Fprintf(&sb, "invoke %s %s", i.Type, i.Method)
	if i.Instance != nil {
		fmt.Fprintf(&sb, " on v%d", *i.Instance)
	}
	fmt.Fprintf(&sb, "(%s)", formatVars(i.Arguments))
	return sb.String()
}

func formatVars(vars []Var) string {
	parts := make([]string, len(vars))
	for i, v := range vars {
		parts[i] = fmt.Sprintf("v%d", v)
	}
	return strings.Join(parts, ", ")
}
